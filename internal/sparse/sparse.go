// Package sparse implements the sparse scorer (C7): a scroll-based
// substring-occurrence keyword score over the vector index's payloads,
// bounded by a time budget and a scanned-chunk cap, grounded on the
// teacher's scroll/filter idioms in internal/vectorindex.
package sparse

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/Aman-CERP/codesearch-mcp/internal/chunk"
	"github.com/Aman-CERP/codesearch-mcp/internal/retrieval"
	"github.com/Aman-CERP/codesearch-mcp/internal/vectorindex"
)

// Defaults applied when a Scorer is constructed with non-positive values.
const (
	DefaultTimeout   = 10 * time.Second
	DefaultMaxChunks = 20000
	ScrollPageSize   = 1000
)

// Scorer is the sparse scorer capability (C7).
type Scorer struct {
	index     vectorindex.Index
	timeout   time.Duration
	maxChunks int
}

// New creates a Scorer bounded by timeout and maxChunks, applying spec
// defaults for non-positive values.
func New(index vectorindex.Index, timeout time.Duration, maxChunks int) *Scorer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxChunks <= 0 {
		maxChunks = DefaultMaxChunks
	}
	return &Scorer{index: index, timeout: timeout, maxChunks: maxChunks}
}

// Score scrolls the collection accumulating substring-occurrence scores
// for q's tokens, applies q's post-scoring filters, sorts desc, and
// truncates to q.Limit (spec §4.7).
func (s *Scorer) Score(ctx context.Context, q retrieval.Query) ([]retrieval.SearchResult, error) {
	tokens := tokenize(q.Text)
	if len(tokens) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	deadline := time.Now().Add(s.timeout)

	results := make([]retrieval.SearchResult, 0, q.Limit)
	scanned := 0
	offset := ""

	for {
		if scanned >= s.maxChunks || time.Now().After(deadline) {
			break
		}

		page, err := s.index.Scroll(ctx, nil, ScrollPageSize, offset)
		if err != nil {
			return nil, err
		}

		for _, hit := range page.Hits {
			if scanned >= s.maxChunks {
				break
			}
			scanned++

			c := chunkFromPayload(hit.ID, hit.Payload)
			score := scoreTokens(c.Content, tokens)
			if score <= 0 {
				continue
			}
			if !passesFilters(c, score, q) {
				continue
			}
			results = append(results, retrieval.SearchResult{
				ID:    hit.ID,
				Score: score,
				Chunk: c,
			})
		}

		if page.NextOffset == "" {
			break
		}
		offset = page.NextOffset
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

// tokenize splits a query into lowercase, non-empty whitespace-separated
// tokens; substring matching (not token-boundary matching) is then applied
// against chunk content per spec §4.7.
func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// scoreTokens counts the number of substring occurrences of each token in
// content, summed across tokens.
func scoreTokens(content string, tokens []string) float64 {
	lower := strings.ToLower(content)
	var score float64
	for _, tok := range tokens {
		score += float64(strings.Count(lower, tok))
	}
	return score
}

// passesFilters applies spec §4.7's post-scoring filters. Threshold is
// compared against the raw occurrence-count score, not a normalized one;
// this is intentional, see DESIGN.md's Open Question (a).
func passesFilters(c *chunk.Chunk, score float64, q retrieval.Query) bool {
	if q.Threshold > 0 && score < q.Threshold {
		return false
	}
	if q.Language != "" && c.Language != q.Language {
		return false
	}
	if q.ChunkType != "" && c.ChunkType != q.ChunkType {
		return false
	}
	if q.FilePath != "" && c.FilePath != q.FilePath {
		return false
	}
	if q.PreferImplementation && c.Metadata.FileKind != chunk.KindCode {
		return false
	}
	return true
}

// chunkFromPayload reconstructs the subset of Chunk fields the sparse
// scorer and its downstream stages need directly from a scrolled point's
// payload, mirroring how the payload was shaped at upsert time (payload ≡
// Chunk minus id, spec §3).
func chunkFromPayload(id string, payload map[string]any) *chunk.Chunk {
	c := &chunk.Chunk{ID: id}
	if v, ok := payload["content"].(string); ok {
		c.Content = v
	}
	if v, ok := payload["filePath"].(string); ok {
		c.FilePath = v
	}
	if v, ok := payload["language"].(string); ok {
		c.Language = v
	}
	if v, ok := payload["chunkType"].(string); ok {
		c.ChunkType = chunk.Type(v)
	}
	c.StartLine = intFromPayload(payload["startLine"])
	c.EndLine = intFromPayload(payload["endLine"])
	if v, ok := payload["functionName"].(string); ok {
		c.FunctionName = v
	}
	if v, ok := payload["className"].(string); ok {
		c.ClassName = v
	}
	if fk, ok := payload["fileKind"].(string); ok {
		c.Metadata.FileKind = chunk.Kind(fk)
	}
	return c
}

// intFromPayload normalizes the numeric representations a payload value
// may come back as depending on the backend (Qdrant returns int64 for
// integer-valued fields, the in-memory fake index stores Go ints as-is).
func intFromPayload(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
