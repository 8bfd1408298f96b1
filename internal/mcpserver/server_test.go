package mcpserver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/codesearch-mcp/internal/cache"
	"github.com/Aman-CERP/codesearch-mcp/internal/config"
	"github.com/Aman-CERP/codesearch-mcp/internal/contextasm"
	"github.com/Aman-CERP/codesearch-mcp/internal/embed"
	"github.com/Aman-CERP/codesearch-mcp/internal/indexer"
	"github.com/Aman-CERP/codesearch-mcp/internal/search"
	"github.com/Aman-CERP/codesearch-mcp/internal/sparse"
	"github.com/Aman-CERP/codesearch-mcp/internal/vectorindex"
)

func testConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Embedding.VoyageAPIKey = "test"
	cfg.Qdrant.URL = "http://localhost:6333"
	return cfg
}

// newCRUDTestServer wires a Server over a real Indexer so index_directory/
// index_file/remove_file/clear_index/create_payload_indexes exercise the
// actual scan->chunk->embed->upsert pipeline. FakeEmbedder's hash-derived
// vectors make similarity scores unpredictable, so these tests only assert
// on chunk/point counts, never on search ranking.
func newCRUDTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	cfg := testConfig()

	embedder := embed.NewFakeEmbedder("voyage-code-3", 8)
	idx := vectorindex.NewFakeIndex()

	ix, err := indexer.New(root, cfg, embedder, idx, nil)
	require.NoError(t, err)

	c := cache.New(cfg.Retrieval.SearchCacheMaxSize, 0)
	sc := sparse.New(idx, 0, 0)
	pipeline := search.New(idx, embedder, c, sc, nil, cfg.Retrieval.HybridSearchAlpha)
	asm := contextasm.New(cfg.Retrieval.ContextGroupGapLines, cfg.Retrieval.ContextCharsPerToken)

	return New(cfg, ix, pipeline, c, asm, idx, embedder, nil), root
}

// chunkPoint builds a point whose payload shape matches what
// indexer.ChunkFromPayload expects (payload == chunk minus id).
func chunkPoint(id string, vector []float32, content, filePath, language, chunkType string) vectorindex.Point {
	return vectorindex.Point{
		ID:     id,
		Vector: vector,
		Payload: map[string]any{
			"content":   content,
			"filePath":  filePath,
			"language":  language,
			"chunkType": chunkType,
			"fileKind":  "code",
			"startLine": 1,
			"endLine":   10,
		},
	}
}

// newSearchTestServer preloads a FakeIndex with a point whose vector is
// exactly the query embedding of queryText, guaranteeing a perfect-cosine
// match regardless of FakeEmbedder's hash-derived randomness (same
// technique as internal/search's own pipeline_test.go).
func newSearchTestServer(t *testing.T, queryText, content, filePath string) *Server {
	t.Helper()
	cfg := testConfig()
	embedder := embed.NewFakeEmbedder("voyage-code-3", 8)

	ctx := context.Background()
	qVecs, err := embedder.Embed(ctx, []string{queryText}, embed.KindQuery)
	require.NoError(t, err)

	idx := vectorindex.NewFakeIndex()
	require.NoError(t, idx.EnsureCollection(ctx, len(qVecs[0])))
	require.NoError(t, idx.Upsert(ctx, []vectorindex.Point{
		chunkPoint("match-1", qVecs[0], content, filePath, "go", "function"),
	}, true))

	ix, err := indexer.New(t.TempDir(), cfg, embedder, idx, nil)
	require.NoError(t, err)

	c := cache.New(cfg.Retrieval.SearchCacheMaxSize, 0)
	sc := sparse.New(idx, 0, 0)
	pipeline := search.New(idx, embedder, c, sc, nil, cfg.Retrieval.HybridSearchAlpha)
	asm := contextasm.New(cfg.Retrieval.ContextGroupGapLines, cfg.Retrieval.ContextCharsPerToken)

	return New(cfg, ix, pipeline, c, asm, idx, embedder, nil)
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func substantialFuncBody(name string) string {
	return "package main\n\nfunc " + name + "() string {\n" +
		"\t// long enough to clear the chunker's minimum chunk size\n" +
		"\treturn \"hello from " + name + ", padding this out a little more\"\n" +
		"}\n"
}

func TestIndexDirectory_IndexesEligibleFiles(t *testing.T) {
	srv, root := newCRUDTestServer(t)
	writeFile(t, root, "retry.go", substantialFuncBody("retryRequest"))

	ctx := context.Background()
	_, idxOut, err := srv.handleIndexDirectory(ctx, nil, IndexDirectoryInput{})
	require.NoError(t, err)
	require.Equal(t, 1, idxOut.FilesIndexed)
	require.GreaterOrEqual(t, idxOut.ChunksCreated, 1)

	_, statsOut, err := srv.handleGetIndexingStats(ctx, nil, GetIndexingStatsInput{})
	require.NoError(t, err)
	require.Equal(t, 1, statsOut.FilesIndexed)
	require.NotNil(t, statsOut.LastRun)
}

func TestIndexFileThenRemoveFile(t *testing.T) {
	srv, root := newCRUDTestServer(t)
	writeFile(t, root, "a.go", substantialFuncBody("alpha"))

	ctx := context.Background()
	_, out, err := srv.handleIndexFile(ctx, nil, IndexFileInput{Path: "a.go"})
	require.NoError(t, err)
	require.GreaterOrEqual(t, out.ChunksCount, 1)

	_, rmOut, err := srv.handleRemoveFile(ctx, nil, RemoveFileInput{Path: "a.go"})
	require.NoError(t, err)
	require.True(t, rmOut.Removed)

	_, statsOut, err := srv.handleGetIndexingStats(ctx, nil, GetIndexingStatsInput{})
	require.NoError(t, err)
	require.Equal(t, 0, statsOut.ChunksIndexed)
}

func TestClearIndex_DeletesEverything(t *testing.T) {
	srv, root := newCRUDTestServer(t)
	writeFile(t, root, "b.go", substantialFuncBody("beta"))
	ctx := context.Background()

	_, _, err := srv.handleIndexDirectory(ctx, nil, IndexDirectoryInput{})
	require.NoError(t, err)

	_, clearOut, err := srv.handleClearIndex(ctx, nil, ClearIndexInput{})
	require.NoError(t, err)
	require.True(t, clearOut.Cleared)

	_, statsOut, err := srv.handleGetIndexingStats(ctx, nil, GetIndexingStatsInput{})
	require.NoError(t, err)
	require.Equal(t, 0, statsOut.ChunksIndexed)
}

func TestCreatePayloadIndexesIsIdempotent(t *testing.T) {
	srv, _ := newCRUDTestServer(t)
	ctx := context.Background()

	_, out1, err := srv.handleCreatePayloadIndexes(ctx, nil, CreatePayloadIndexesInput{})
	require.NoError(t, err)
	require.True(t, out1.Created)

	_, out2, err := srv.handleCreatePayloadIndexes(ctx, nil, CreatePayloadIndexesInput{})
	require.NoError(t, err)
	require.True(t, out2.Created)
}

func TestSearchCode_RequiresText(t *testing.T) {
	srv, _ := newCRUDTestServer(t)
	_, _, err := srv.handleSearchCode(context.Background(), nil, SearchInput{})
	require.Error(t, err)
	toolErr, ok := err.(*ToolError)
	require.True(t, ok)
	require.Equal(t, ErrCodeInvalidParams, toolErr.Code)
}

func TestSearchCode_ReturnsMatchingChunk(t *testing.T) {
	srv := newSearchTestServer(t, "how does retry backoff work", "func retry() { backoff() }", "retry.go")

	_, out, err := srv.handleSearchCode(context.Background(), nil, SearchInput{Text: "how does retry backoff work"})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	require.Equal(t, "retry.go", out.Results[0].FilePath)
}

func TestSearchCode_CacheHitOnRepeatedQuery(t *testing.T) {
	srv := newSearchTestServer(t, "config struct shape", "type Config struct{}", "config.go")
	ctx := context.Background()

	_, first, err := srv.handleSearchCode(ctx, nil, SearchInput{Text: "config struct shape"})
	require.NoError(t, err)
	require.False(t, first.CacheHit)

	_, second, err := srv.handleSearchCode(ctx, nil, SearchInput{Text: "config struct shape"})
	require.NoError(t, err)
	require.True(t, second.CacheHit)

	_, invOut, err := srv.handleInvalidateFileCache(ctx, nil, InvalidateFileCacheInput{Path: "config.go"})
	require.NoError(t, err)
	require.Equal(t, 1, invOut.EvictedCount)

	_, third, err := srv.handleSearchCode(ctx, nil, SearchInput{Text: "config struct shape"})
	require.NoError(t, err)
	require.False(t, third.CacheHit)
}

func TestClearSearchCache_ResetsCounters(t *testing.T) {
	srv := newSearchTestServer(t, "payload handler", "func handle() {}", "handler.go")
	ctx := context.Background()

	_, _, err := srv.handleSearchCode(ctx, nil, SearchInput{Text: "payload handler"})
	require.NoError(t, err)

	_, clearOut, err := srv.handleClearSearchCache(ctx, nil, ClearSearchCacheInput{})
	require.NoError(t, err)
	require.True(t, clearOut.Cleared)

	_, statsOut, err := srv.handleGetSearchStats(ctx, nil, GetSearchStatsInput{})
	require.NoError(t, err)
	require.Equal(t, int64(0), statsOut.Hits)
	require.Equal(t, int64(0), statsOut.Misses)
}

func TestGetCodeContext_AssemblesReferences(t *testing.T) {
	srv := newSearchTestServer(t, "gamma handler implementation", "func gammaHandler() {}", "gamma.go")

	_, out, err := srv.handleGetCodeContext(context.Background(), nil, GetCodeContextInput{
		SearchInput: SearchInput{Text: "gamma handler implementation"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.References)
	require.Equal(t, "gamma.go", out.References[0].FilePath)
}

func TestGetHealthStatus_ReportsEmbedderAndIndex(t *testing.T) {
	srv := newSearchTestServer(t, "anything", "func anything() {}", "x.go")
	_, out, err := srv.handleGetHealthStatus(context.Background(), nil, GetHealthStatusInput{})
	require.NoError(t, err)
	require.True(t, out.Healthy)
	require.True(t, out.EmbeddingOK)
	require.True(t, out.VectorIndexOK)
}

func TestMethodNotFoundError(t *testing.T) {
	err := NewMethodNotFoundError("not_a_real_method")
	require.Equal(t, ErrCodeMethodNotFound, err.Code)
}
