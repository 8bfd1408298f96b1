// Package search orchestrates a single query through the query-time half of
// spec §2's data flow: cache lookup (C6), dense vector search (C3) plus an
// optional sparse score (C7), hybrid combine (C8), optional re-rank (C9),
// and cache admission — returning a flat result list that get_code_context
// style callers then hand to the context assembler (C10). Grounded on the
// teacher's internal/search/engine.go Engine.Search orchestration shape
// (parallel BM25+vector search, fuse, rerank, enrich), adapted to this
// design's cache-first, sparse-as-scroll architecture.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/Aman-CERP/codesearch-mcp/internal/cache"
	"github.com/Aman-CERP/codesearch-mcp/internal/contextasm"
	"github.com/Aman-CERP/codesearch-mcp/internal/embed"
	amanerrors "github.com/Aman-CERP/codesearch-mcp/internal/errors"
	"github.com/Aman-CERP/codesearch-mcp/internal/hybrid"
	"github.com/Aman-CERP/codesearch-mcp/internal/indexer"
	"github.com/Aman-CERP/codesearch-mcp/internal/retrieval"
	"github.com/Aman-CERP/codesearch-mcp/internal/rerank"
	"github.com/Aman-CERP/codesearch-mcp/internal/sparse"
	"github.com/Aman-CERP/codesearch-mcp/internal/vectorindex"
)

// maxSnippetLines bounds how much of a chunk's content becomes its display
// snippet (spec §3 "Snippet is at most 5 lines").
const maxSnippetLines = 5

// Response is one Search call's result set plus the metadata spec §8's
// literal scenarios check directly: cacheHit (scenario 2) and reranked
// (scenario 4).
type Response struct {
	Results  []retrieval.SearchResult
	CacheHit bool
	Reranked bool
	Alpha    float64
}

// Pipeline wires the search-time capabilities together. Cache, sparse
// scorer, and reranker are each optional (nil disables the stage), so the
// same Pipeline serves a minimal config (dense-only, no cache) and a fully
// configured one.
type Pipeline struct {
	index    vectorindex.Index
	embedder embed.Embedder
	cache    *cache.Cache
	sparse   *sparse.Scorer
	reranker *rerank.Reranker
	alpha    float64
}

// New creates a Pipeline.
func New(index vectorindex.Index, embedder embed.Embedder, c *cache.Cache, sparseScorer *sparse.Scorer, reranker *rerank.Reranker, baseAlpha float64) *Pipeline {
	return &Pipeline{index: index, embedder: embedder, cache: c, sparse: sparseScorer, reranker: reranker, alpha: baseAlpha}
}

// Search runs one query through the pipeline.
func (p *Pipeline) Search(ctx context.Context, q retrieval.Query) (Response, error) {
	q = q.WithDefaults()

	var fp cache.Fingerprint
	if p.cache != nil {
		fp = cache.ComputeFingerprint(q.Text, q.Language, string(q.ChunkType), q.FilePath, q.Limit, q.Threshold)
		if cached, hit := p.cache.Get(fp); hit {
			return Response{Results: cached, CacheHit: true}, nil
		}
	}

	dense, err := p.denseSearch(ctx, q)
	if err != nil {
		return Response{}, err
	}

	var sparseResults []retrieval.SearchResult
	useSparse := q.EnableHybrid && p.sparse != nil
	if useSparse {
		sparseResults, err = p.sparse.Score(ctx, q)
		if err != nil {
			// A Scroll transport failure degrades to a dense-only result
			// rather than failing the whole query; Combine treats a nil
			// sparse slice as "sparse unavailable".
			sparseResults = nil
		}
	}

	combined := hybrid.Combine(q.Text, dense, sparseResults, p.alpha, q.EnableHybrid)

	results := combined
	reranked := false
	if q.EnableReranking && p.reranker != nil {
		results, reranked = p.reranker.RerankWithStatus(ctx, q.Text, combined)
	}

	if p.cache != nil {
		meta := retrieval.QueryMetadata{Language: q.Language, FilePath: q.FilePath, ChunkType: q.ChunkType}
		p.cache.Admit(fp, results, q.Text, meta)
	}

	return Response{
		Results:  results,
		Reranked: reranked,
		Alpha:    hybrid.AdaptiveAlpha(q.Text, p.alpha),
	}, nil
}

// GetContext runs Search and assembles the results into code references
// (C10), the operation get_code_context exposes. A query that matches no
// chunks is a typed not_found error, per spec §7.
func (p *Pipeline) GetContext(ctx context.Context, q retrieval.Query, assembler *contextasm.Assembler, opts contextasm.BoostOptions, maxTokens, available int) (retrieval.AssembledContext, error) {
	resp, err := p.Search(ctx, q)
	if err != nil {
		return retrieval.AssembledContext{}, err
	}
	if len(resp.Results) == 0 {
		return retrieval.AssembledContext{}, amanerrors.NotFound(fmt.Sprintf("no chunks matched query %q", q.Text), nil)
	}
	return assembler.Assemble(resp.Results, opts, maxTokens, available), nil
}

// denseSearch embeds the query text and runs a filtered similarity search
// against the vector index (spec §4.2, §4.3).
func (p *Pipeline) denseSearch(ctx context.Context, q retrieval.Query) ([]retrieval.SearchResult, error) {
	vectors, err := p.embedder.Embed(ctx, []string{q.Text}, embed.KindQuery)
	if err != nil {
		return nil, amanerrors.ExternalUnavailable("embed query", err)
	}
	if len(vectors) == 0 {
		return nil, amanerrors.ExternalUnavailable("embedder returned no vector for query", nil)
	}

	hits, err := p.index.Search(ctx, vectors[0], vectorindex.SearchOptions{
		Limit:          q.Limit,
		ScoreThreshold: float32(q.Threshold),
		Filter:         buildFilter(q),
		WithPayload:    true,
	})
	if err != nil {
		return nil, amanerrors.ExternalUnavailable("dense search", err)
	}

	results := make([]retrieval.SearchResult, len(hits))
	for i, h := range hits {
		c := indexer.ChunkFromPayload(h.ID, h.Payload)
		results[i] = retrieval.SearchResult{
			ID:      h.ID,
			Score:   float64(h.Score),
			Chunk:   c,
			Snippet: snippet(c.Content),
			Context: fmt.Sprintf("%s:%d-%d", c.FilePath, c.StartLine, c.EndLine),
		}
	}
	retrieval.SortResults(results)
	return results, nil
}

// buildFilter translates a Query's equality filters into the vector
// index's payload filter (spec §4.3, the four indexed payload keys).
func buildFilter(q retrieval.Query) vectorindex.Filter {
	if q.Language == "" && q.ChunkType == "" && q.FilePath == "" {
		return nil
	}
	f := vectorindex.Filter{}
	if q.Language != "" {
		f[vectorindex.PayloadLanguage] = q.Language
	}
	if q.ChunkType != "" {
		f[vectorindex.PayloadChunkType] = string(q.ChunkType)
	}
	if q.FilePath != "" {
		f[vectorindex.PayloadFilePath] = q.FilePath
	}
	return f
}

func snippet(content string) string {
	lines := strings.Split(content, "\n")
	if len(lines) <= maxSnippetLines {
		return content
	}
	return strings.Join(lines[:maxSnippetLines], "\n") + "\n..."
}
