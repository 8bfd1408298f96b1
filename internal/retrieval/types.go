// Package retrieval holds the shared data-model types the search pipeline's
// stages (cache, sparse scorer, hybrid combiner, re-ranker, context
// assembler) pass between each other, mirroring spec §3's DATA MODEL.
package retrieval

import (
	"time"

	"github.com/Aman-CERP/codesearch-mcp/internal/chunk"
)

// Query is a single search request, carrying the text plus the filters and
// options every pipeline stage reads from.
type Query struct {
	Text string

	Language             string
	FilePath             string
	ChunkType            chunk.Type
	PreferImplementation bool

	Limit     int
	Threshold float64

	EnableHybrid    bool
	EnableReranking bool

	PreferFunctions bool
	PreferClasses   bool

	MaxFilesPerType int
	MaxTokens       int
}

// WithDefaults fills in the spec-documented defaults for zero-valued fields.
func (q Query) WithDefaults() Query {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Threshold <= 0 {
		q.Threshold = 0.25
	}
	return q
}

// HybridScore breaks a combined score down into its dense/sparse/combined
// components, present only when the hybrid combiner (C8) ran.
type HybridScore struct {
	Dense    float64
	Sparse   float64
	Combined float64
}

// SearchResult is one scored hit flowing through the pipeline.
type SearchResult struct {
	ID    string
	Score float64
	Chunk *chunk.Chunk

	// Snippet is at most 5 lines of Chunk.Content plus an ellipsis marker
	// when truncated.
	Snippet string
	// Context is a human-readable display string (e.g. "file.go:12-34").
	Context string

	HybridScore    *HybridScore
	RerankedScore  *float64
}

// Clone returns a deep-enough copy for cache storage: the Chunk pointer is
// copied by value so later pipeline mutations to a live result never leak
// into a cached one (spec §4.6 "deep-copied result list").
func (r SearchResult) Clone() SearchResult {
	out := r
	if r.Chunk != nil {
		c := *r.Chunk
		out.Chunk = &c
	}
	if r.HybridScore != nil {
		hs := *r.HybridScore
		out.HybridScore = &hs
	}
	if r.RerankedScore != nil {
		rs := *r.RerankedScore
		out.RerankedScore = &rs
	}
	return out
}

// CloneResults deep-copies a result slice, used both when admitting a
// result set into the cache and when returning a cached entry to a caller.
func CloneResults(results []SearchResult) []SearchResult {
	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = r.Clone()
	}
	return out
}

// SortResults applies invariant I6: score descending, ties broken by
// (rerankedScore desc, id asc).
func SortResults(results []SearchResult) {
	sortResults(results)
}

// QueryMetadata is the subset of a Query's filters retained on a
// CacheEntry purely for invalidation matching (spec §4.6), not for
// re-running the query.
type QueryMetadata struct {
	Language  string
	FilePath  string
	ChunkType chunk.Type
}

// CacheEntry is one cached query's result set plus the bookkeeping the
// search cache (C6) needs for LRU eviction, TTL expiry, and invalidation.
type CacheEntry struct {
	QueryFingerprint uint64
	Results          []SearchResult
	CreatedAt        time.Time
	LastAccess       time.Time
	QueryMetadata    QueryMetadata
}

// CodeReference is one emitted unit of the final context-assembled result
// list: either a single chunk or several adjacent chunks from the same file
// merged together (spec §4.10).
type CodeReference struct {
	FilePath   string
	Language   string
	StartLine  int
	EndLine    int
	Snippet    string
	Score      float64
	ChunkIDs   []string
	ChunkTypes []chunk.Type
	EstTokens  int
}

// AssembledContext is the context assembler's final output: the ordered
// reference list plus a summary of anything dropped for budget reasons.
type AssembledContext struct {
	References []CodeReference
	UsedTokens int
	Truncated  bool
	Summary    string
}
