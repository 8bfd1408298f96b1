// Package contextasm implements the context assembler (C10): it groups
// adjacent same-file results into CodeReferences, estimates token cost,
// enforces a budget, and applies optional boosts to the candidate set
// before assembly (spec §4.10). Grounded on the teacher's
// AdjacentContext/Range shapes in internal/search/types.go for the
// same-file grouping idea, adapted to the spec's own merge/budget rules.
package contextasm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Aman-CERP/codesearch-mcp/internal/chunk"
	"github.com/Aman-CERP/codesearch-mcp/internal/retrieval"
)

// Defaults applied when an Assembler is constructed with non-positive
// values.
const (
	DefaultGroupGapLines = 10
	DefaultCharsPerToken = 4
)

// Boost amounts (spec §4.10), all clamped to a final score of ≤1.0.
const (
	preferredTypeBoost = 0.1
	recentFileBoost    = 0.1
	openFileBoost      = 0.15
	nonTestBoost       = 0.05

	// gapMarkerThresholdLines is the line gap beyond which a merged
	// snippet gets an explicit gap marker (spec §4.10 "inserting a 'gap'
	// marker when neighbors are >3 lines apart").
	gapMarkerThresholdLines = 3
)

// BoostOptions configures the optional pre-assembly score adjustments.
type BoostOptions struct {
	PreferFunctions bool
	PreferClasses   bool

	// MaxPerLanguage caps how many candidates from any one language are
	// kept (0 = unlimited), applied after boosts.
	MaxPerLanguage int
	// MaxFilesPerType caps how many candidates from any one file are kept
	// (0 = unlimited).
	MaxFilesPerType int

	RecentFiles map[string]bool
	OpenFiles   map[string]bool
}

// Assembler is the context assembler capability (C10).
type Assembler struct {
	groupGapLines int
	charsPerToken int
}

// New creates an Assembler, applying spec defaults for non-positive
// values.
func New(groupGapLines, charsPerToken int) *Assembler {
	if groupGapLines <= 0 {
		groupGapLines = DefaultGroupGapLines
	}
	if charsPerToken <= 0 {
		charsPerToken = DefaultCharsPerToken
	}
	return &Assembler{groupGapLines: groupGapLines, charsPerToken: charsPerToken}
}

// Assemble applies boosts, diversifies/caps the candidate set, groups
// adjacent same-file results, and truncates to budget (spec §4.10).
func (a *Assembler) Assemble(results []retrieval.SearchResult, opts BoostOptions, maxTokens, available int) retrieval.AssembledContext {
	boosted := a.applyBoosts(results, opts)
	diversified := a.diversify(boosted, opts)
	retrieval.SortResults(diversified)

	groups := a.group(diversified)

	budget := maxTokens
	if available > 0 && available < budget {
		budget = available
	}
	if budget <= 0 {
		budget = maxTokens
	}

	kept := make([]retrieval.CodeReference, 0, len(groups))
	used := 0
	droppedFiles := make(map[string]struct{})
	droppedTypes := make(map[string]struct{})
	droppedCount := 0
	overBudget := false

	for _, g := range groups {
		if overBudget || used+g.EstTokens > budget {
			overBudget = true
			droppedCount++
			droppedFiles[g.FilePath] = struct{}{}
			for _, t := range g.ChunkTypes {
				droppedTypes[string(t)] = struct{}{}
			}
			continue
		}
		kept = append(kept, g)
		used += g.EstTokens
	}

	out := retrieval.AssembledContext{
		References: kept,
		UsedTokens: used,
	}
	if droppedCount > 0 {
		out.Truncated = true
		out.Summary = truncationSummary(droppedCount, droppedFiles, droppedTypes)
	}
	return out
}

// applyBoosts adds per-type, recency, open-file, and non-test boosts,
// clamping each result's score to ≤1.0.
func (a *Assembler) applyBoosts(results []retrieval.SearchResult, opts BoostOptions) []retrieval.SearchResult {
	out := make([]retrieval.SearchResult, len(results))
	for i, r := range results {
		out[i] = r
		if r.Chunk == nil {
			continue
		}
		score := r.Score
		if opts.PreferFunctions && r.Chunk.ChunkType == chunk.TypeFunction {
			score += preferredTypeBoost
		}
		if opts.PreferClasses && r.Chunk.ChunkType == chunk.TypeClass {
			score += preferredTypeBoost
		}
		if opts.RecentFiles != nil && opts.RecentFiles[r.Chunk.FilePath] {
			score += recentFileBoost
		}
		if opts.OpenFiles != nil && opts.OpenFiles[r.Chunk.FilePath] {
			score += openFileBoost
		}
		if !r.Chunk.Metadata.IsTest {
			score += nonTestBoost
		}
		if score > 1.0 {
			score = 1.0
		}
		out[i].Score = score
	}
	return out
}

// diversify caps takes per language and per file, preserving score order
// (the caller sorts before and after).
func (a *Assembler) diversify(results []retrieval.SearchResult, opts BoostOptions) []retrieval.SearchResult {
	if opts.MaxPerLanguage <= 0 && opts.MaxFilesPerType <= 0 {
		return results
	}

	sorted := make([]retrieval.SearchResult, len(results))
	copy(sorted, results)
	retrieval.SortResults(sorted)

	langCount := make(map[string]int)
	fileCount := make(map[string]int)
	out := make([]retrieval.SearchResult, 0, len(sorted))

	for _, r := range sorted {
		if r.Chunk == nil {
			out = append(out, r)
			continue
		}
		if opts.MaxPerLanguage > 0 && langCount[r.Chunk.Language] >= opts.MaxPerLanguage {
			continue
		}
		if opts.MaxFilesPerType > 0 && fileCount[r.Chunk.FilePath] >= opts.MaxFilesPerType {
			continue
		}
		langCount[r.Chunk.Language]++
		fileCount[r.Chunk.FilePath]++
		out = append(out, r)
	}
	return out
}

// group merges consecutive same-file results whose line gap is within
// groupGapLines into one CodeReference (spec §4.10).
func (a *Assembler) group(results []retrieval.SearchResult) []retrieval.CodeReference {
	byFile := make(map[string][]retrieval.SearchResult)
	var fileOrder []string
	for _, r := range results {
		if r.Chunk == nil {
			continue
		}
		fp := r.Chunk.FilePath
		if _, ok := byFile[fp]; !ok {
			fileOrder = append(fileOrder, fp)
		}
		byFile[fp] = append(byFile[fp], r)
	}

	var refs []retrieval.CodeReference
	for _, fp := range fileOrder {
		group := byFile[fp]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Chunk.StartLine < group[j].Chunk.StartLine
		})

		var current []retrieval.SearchResult
		flush := func() {
			if len(current) == 0 {
				return
			}
			refs = append(refs, a.mergeGroup(current))
			current = nil
		}

		for _, r := range group {
			if len(current) == 0 {
				current = append(current, r)
				continue
			}
			last := current[len(current)-1]
			gap := r.Chunk.StartLine - last.Chunk.EndLine
			if gap >= 0 && gap <= a.groupGapLines {
				current = append(current, r)
				continue
			}
			flush()
			current = append(current, r)
		}
		flush()
	}

	// Re-sort merged references by score desc to restore the overall
	// ranking across files (grouping only coalesces within one file).
	sort.SliceStable(refs, func(i, j int) bool { return refs[i].Score > refs[j].Score })
	return refs
}

// mergeGroup combines one file's consecutive results into a single
// CodeReference with an averaged score and a merged snippet.
func (a *Assembler) mergeGroup(group []retrieval.SearchResult) retrieval.CodeReference {
	first := group[0].Chunk
	last := group[len(group)-1].Chunk

	var snippet strings.Builder
	var idsInGroup []string
	var typesInGroup []chunk.Type
	seenTypes := make(map[chunk.Type]struct{})
	var scoreSum float64
	for i, r := range group {
		if i > 0 {
			gap := r.Chunk.StartLine - group[i-1].Chunk.EndLine
			if gap > gapMarkerThresholdLines {
				snippet.WriteString("\n... (gap) ...\n")
			} else {
				snippet.WriteString("\n")
			}
		}
		snippet.WriteString(r.Snippet)
		idsInGroup = append(idsInGroup, r.ID)
		if _, ok := seenTypes[r.Chunk.ChunkType]; !ok {
			seenTypes[r.Chunk.ChunkType] = struct{}{}
			typesInGroup = append(typesInGroup, r.Chunk.ChunkType)
		}
		scoreSum += r.Score
	}

	merged := snippet.String()
	return retrieval.CodeReference{
		FilePath:   first.FilePath,
		Language:   first.Language,
		StartLine:  first.StartLine,
		EndLine:    last.EndLine,
		Snippet:    merged,
		Score:      scoreSum / float64(len(group)),
		ChunkIDs:   idsInGroup,
		ChunkTypes: typesInGroup,
		EstTokens:  EstimateTokens(merged, a.charsPerToken),
	}
}

// EstimateTokens returns ceil(len(text)/charsPerToken).
func EstimateTokens(text string, charsPerToken int) int {
	if charsPerToken <= 0 {
		charsPerToken = DefaultCharsPerToken
	}
	n := len(text)
	return (n + charsPerToken - 1) / charsPerToken
}

func truncationSummary(dropped int, files, types map[string]struct{}) string {
	fileList := make([]string, 0, len(files))
	for f := range files {
		fileList = append(fileList, f)
	}
	sort.Strings(fileList)

	typeList := make([]string, 0, len(types))
	for t := range types {
		typeList = append(typeList, t)
	}
	sort.Strings(typeList)

	summary := fmt.Sprintf("omitted %d reference(s) over budget across files: %s",
		dropped, strings.Join(fileList, ", "))
	if len(typeList) > 0 {
		summary += fmt.Sprintf(" (types: %s)", strings.Join(typeList, ", "))
	}
	return summary
}
