package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/codesearch-mcp/internal/cache"
	"github.com/Aman-CERP/codesearch-mcp/internal/contextasm"
	"github.com/Aman-CERP/codesearch-mcp/internal/embed"
	amanerrors "github.com/Aman-CERP/codesearch-mcp/internal/errors"
	"github.com/Aman-CERP/codesearch-mcp/internal/retrieval"
	"github.com/Aman-CERP/codesearch-mcp/internal/rerank"
	"github.com/Aman-CERP/codesearch-mcp/internal/sparse"
	"github.com/Aman-CERP/codesearch-mcp/internal/vectorindex"
)

// chunkPoint builds a vectorindex.Point whose payload shape matches what
// indexer.ChunkFromPayload expects (payload ≡ chunk minus id, spec §3).
func chunkPoint(id string, vector []float32, content, filePath, language, chunkType string) vectorindex.Point {
	return vectorindex.Point{
		ID:     id,
		Vector: vector,
		Payload: map[string]any{
			"content":    content,
			"filePath":   filePath,
			"language":   language,
			"chunkType":  chunkType,
			"fileKind":   "code",
			"startLine":  1,
			"endLine":    10,
		},
	}
}

func setupIndex(t *testing.T, embedder embed.Embedder, queryText string) (*vectorindex.FakeIndex, []float32) {
	t.Helper()
	qVecs, err := embedder.Embed(context.Background(), []string{queryText}, embed.KindQuery)
	require.NoError(t, err)
	matching := qVecs[0]

	opposite := make([]float32, len(matching))
	for i, v := range matching {
		opposite[i] = -v
	}

	idx := vectorindex.NewFakeIndex()
	require.NoError(t, idx.EnsureCollection(context.Background(), len(matching)))
	require.NoError(t, idx.Upsert(context.Background(), []vectorindex.Point{
		chunkPoint("match", matching, "func retry() { backoff() }", "retry.go", "go", "function"),
		chunkPoint("mismatch", opposite, "type Config struct {}", "config.go", "go", "type"),
	}, true))
	return idx, matching
}

func TestPipeline_DenseSearchReturnsResultsSortedByScore(t *testing.T) {
	embedder := embed.NewFakeEmbedder("test-model", 8)
	idx, _ := setupIndex(t, embedder, "retry logic")

	p := New(idx, embedder, nil, nil, nil, 0.7)
	resp, err := p.Search(context.Background(), retrieval.Query{Text: "retry logic", Threshold: 0.0001})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "match", resp.Results[0].ID)
	assert.False(t, resp.CacheHit)
}

func TestPipeline_CacheHitShortCircuitsSecondIdenticalQuery(t *testing.T) {
	embedder := embed.NewFakeEmbedder("test-model", 8)
	idx, _ := setupIndex(t, embedder, "retry logic")
	c := cache.New(cache.DefaultMaxSize, cache.DefaultTTL)
	defer c.Close()

	p := New(idx, embedder, c, nil, nil, 0.7)
	q := retrieval.Query{Text: "retry logic", Threshold: 0.0001}

	first, err := p.Search(context.Background(), q)
	require.NoError(t, err)
	require.False(t, first.CacheHit)
	require.NotEmpty(t, first.Results)

	second, err := p.Search(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, len(first.Results), len(second.Results))
}

func TestPipeline_HybridCombinesDenseAndSparseWhenEnabled(t *testing.T) {
	embedder := embed.NewFakeEmbedder("test-model", 8)
	idx, _ := setupIndex(t, embedder, "backoff")
	scorer := sparse.New(idx, time.Second, 1000)

	p := New(idx, embedder, nil, scorer, nil, 0.5)
	resp, err := p.Search(context.Background(), retrieval.Query{Text: "backoff", Threshold: 0.0001, EnableHybrid: true})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	// "backoff" appears in the "match" chunk's content, so the sparse
	// score should keep it ranked first alongside the dense signal.
	assert.Equal(t, "match", resp.Results[0].ID)
	require.NotNil(t, resp.Results[0].HybridScore)
}

type slowRerankClient struct{ delay time.Duration }

func (s *slowRerankClient) Complete(ctx context.Context, prompt string) (string, error) {
	select {
	case <-time.After(s.delay):
		return `{"rankedIndices":[0]}`, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestPipeline_RerankTimeoutStillReturnsResultsWithRerankedFalse(t *testing.T) {
	embedder := embed.NewFakeEmbedder("test-model", 8)
	idx, _ := setupIndex(t, embedder, "retry logic")
	reranker := rerank.New(&slowRerankClient{delay: 50 * time.Millisecond}, 5*time.Millisecond, 0)

	p := New(idx, embedder, nil, nil, reranker, 0.7)
	resp, err := p.Search(context.Background(), retrieval.Query{
		Text: "retry logic", Threshold: 0.0001, EnableReranking: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.False(t, resp.Reranked)
}

func TestPipeline_GetContextReturnsNotFoundWhenNoMatches(t *testing.T) {
	embedder := embed.NewFakeEmbedder("test-model", 8)
	idx, _ := setupIndex(t, embedder, "retry logic")

	p := New(idx, embedder, nil, nil, nil, 0.7)
	// A threshold no chunk can meet forces an empty dense result set.
	_, err := p.GetContext(context.Background(), retrieval.Query{Text: "retry logic", Threshold: 2.0},
		contextasm.New(10, 4), contextasm.BoostOptions{}, 10000, 0)
	require.Error(t, err)
	assert.Equal(t, amanerrors.KindNotFound, amanerrors.GetKind(err))
}
