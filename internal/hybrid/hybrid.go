// Package hybrid implements the hybrid combiner (C8): max-normalization of
// dense and sparse result lists blended with an adaptive alpha weight,
// grounded on the teacher's RRFFusion (internal/search/fusion.go) for the
// union-sort-and-normalize shape and on PatternClassifier
// (internal/search/patterns.go) for the query-shape regexes.
package hybrid

import (
	"regexp"
	"sort"
	"strings"

	"github.com/Aman-CERP/codesearch-mcp/internal/retrieval"
)

// normalizeFloor keeps a degenerate (all-zero or single-candidate) list
// from producing a divide-by-zero; spec §4.8 "floor 0.01".
const normalizeFloor = 0.01

// Alpha adjustment amounts (spec §4.8).
const (
	semanticBoost     = 0.1
	identifierPenalty = 0.2
)

// semanticPhrases are substrings whose presence marks a query as
// "semantic-looking" (spec §4.8).
var semanticPhrases = []string{"how to", "explain", "implement", "pattern", "example"}

// identifier-shaped query patterns, adapted from the teacher's
// PatternClassifier camelCase/snake_case/PascalCase regexes plus the
// spec's dotted-path and call-expression additions.
var (
	camelCasePattern  = regexp.MustCompile(`^[a-z]+([A-Z][a-z0-9]*)+$`)
	pascalCasePattern = regexp.MustCompile(`^([A-Z][a-z0-9]*){2,}$`)
	snakeCasePattern  = regexp.MustCompile(`^[a-z]+(_[a-z0-9]+)+$`)
	callExprPattern   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*\(\)?$`)
	dottedPathPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)+(\(\))?$`)
)

// Combine normalizes dense and sparse by their own max (floored), blends
// them with an alpha adapted to the query's shape, and returns the union
// sorted descending. If sparse is nil or hybrid is disabled, dense is
// returned unchanged (spec §4.8).
func Combine(queryText string, dense, sparse []retrieval.SearchResult, baseAlpha float64, hybridEnabled bool) []retrieval.SearchResult {
	if !hybridEnabled || sparse == nil {
		return dense
	}

	alpha := AdaptiveAlpha(queryText, baseAlpha)

	denseByID := indexByID(dense)
	sparseByID := indexByID(sparse)
	denseMax := maxScore(dense)
	sparseMax := maxScore(sparse)

	ids := unionIDs(dense, sparse)
	out := make([]retrieval.SearchResult, 0, len(ids))
	for _, id := range ids {
		var d, s float64
		var base retrieval.SearchResult
		haveBase := false

		if r, ok := denseByID[id]; ok {
			d = r.Score / denseMax
			base = r
			haveBase = true
		}
		if r, ok := sparseByID[id]; ok {
			s = r.Score / sparseMax
			if !haveBase {
				base = r
			}
		}

		combined := alpha*d + (1-alpha)*s
		base.Score = combined
		base.HybridScore = &retrieval.HybridScore{Dense: d, Sparse: s, Combined: combined}
		out = append(out, base)
	}

	retrieval.SortResults(out)
	return out
}

// AdaptiveAlpha adjusts baseAlpha per spec §4.8's query-shape heuristics,
// clamped to [0,1].
func AdaptiveAlpha(queryText string, baseAlpha float64) float64 {
	alpha := baseAlpha
	if looksSemantic(queryText) {
		alpha += semanticBoost
	}
	if looksIdentifierShaped(queryText) {
		alpha -= identifierPenalty
	}
	if alpha > 1.0 {
		alpha = 1.0
	}
	if alpha < 0.0 {
		alpha = 0.0
	}
	return alpha
}

func looksSemantic(query string) bool {
	lower := strings.ToLower(query)
	for _, phrase := range semanticPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func looksIdentifierShaped(query string) bool {
	q := strings.TrimSpace(query)
	if q == "" {
		return false
	}
	if strings.Contains(q, " ") {
		// None of the identifier patterns admits a space, so a query
		// containing one never matches and is not identifier-shaped.
		return dottedPathPattern.MatchString(q) || callExprPattern.MatchString(q)
	}
	return camelCasePattern.MatchString(q) ||
		pascalCasePattern.MatchString(q) ||
		snakeCasePattern.MatchString(q) ||
		dottedPathPattern.MatchString(q) ||
		callExprPattern.MatchString(q)
}

func indexByID(results []retrieval.SearchResult) map[string]retrieval.SearchResult {
	m := make(map[string]retrieval.SearchResult, len(results))
	for _, r := range results {
		m[r.ID] = r
	}
	return m
}

func maxScore(results []retrieval.SearchResult) float64 {
	max := 0.0
	for _, r := range results {
		if r.Score > max {
			max = r.Score
		}
	}
	if max < normalizeFloor {
		return normalizeFloor
	}
	return max
}

func unionIDs(a, b []retrieval.SearchResult) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	ids := make([]string, 0, len(a)+len(b))
	for _, r := range a {
		if _, ok := seen[r.ID]; !ok {
			seen[r.ID] = struct{}{}
			ids = append(ids, r.ID)
		}
	}
	for _, r := range b {
		if _, ok := seen[r.ID]; !ok {
			seen[r.ID] = struct{}{}
			ids = append(ids, r.ID)
		}
	}
	sort.Strings(ids)
	return ids
}
