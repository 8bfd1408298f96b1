package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amanerrors "github.com/Aman-CERP/codesearch-mcp/internal/errors"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "voyage-code-3", cfg.Embedding.Model)
	assert.Equal(t, 100, cfg.Embedding.BatchSize)
	assert.Equal(t, "codebase", cfg.Qdrant.CollectionName)
	assert.Equal(t, 800, cfg.Chunking.ChunkSize)
	assert.Equal(t, 100, cfg.Chunking.ChunkOverlap)
	assert.Equal(t, int64(1<<20), cfg.Chunking.MaxFileSize)
	assert.Equal(t, 0.7, cfg.Retrieval.HybridSearchAlpha)
	assert.False(t, cfg.Retrieval.EnableLLMReranking)
	assert.Equal(t, 25000, cfg.Retrieval.LLMRerankerTimeoutMs)
	assert.Equal(t, 10000, cfg.Retrieval.KeywordSearchTimeoutMs)
	assert.Equal(t, 20000, cfg.Retrieval.KeywordSearchMaxChunks)
	assert.Equal(t, 300, cfg.Retrieval.SearchCacheTTLSeconds)
	assert.Equal(t, 500, cfg.Retrieval.SearchCacheMaxSize)
	assert.Equal(t, 32000, cfg.Retrieval.ContextWindowSize)
	assert.True(t, cfg.Watcher.Enabled)
	assert.Equal(t, 300, cfg.Watcher.DebounceMs)
	assert.Equal(t, 1, cfg.Watcher.QueueConcurrency)
	assert.NotEmpty(t, cfg.Chunking.ExcludePatterns)
	assert.NotEmpty(t, cfg.Chunking.SupportedExtensions)
}

func TestLoad_ReadsYAMLAndAppliesEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	yamlContent := `
qdrant:
  url: http://localhost:6333
embedding:
  model: voyage-code-3
  batchSize: 50
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "codesearch.yaml"), []byte(yamlContent), 0o644))

	t.Setenv("VOYAGE_API_KEY", "test-voyage-key")
	t.Setenv("QDRANT_API_KEY", "test-qdrant-key")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "test-voyage-key", cfg.Embedding.VoyageAPIKey)
	assert.Equal(t, "test-qdrant-key", cfg.Qdrant.APIKey)
	assert.Equal(t, "http://localhost:6333", cfg.Qdrant.URL)
	assert.Equal(t, 50, cfg.Embedding.BatchSize)
}

func TestLoad_MissingVoyageAPIKey_ReturnsConfigInvalid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "codesearch.yaml"), []byte("qdrant:\n  url: http://localhost:6333\n"), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Equal(t, amanerrors.KindConfigInvalid, amanerrors.GetKind(err))
}

func TestValidate_ChunkSizeOutOfRange(t *testing.T) {
	cfg := NewConfig()
	cfg.Embedding.VoyageAPIKey = "k"
	cfg.Qdrant.URL = "http://localhost:6333"
	cfg.Chunking.ChunkSize = 50

	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, amanerrors.KindConfigInvalid, amanerrors.GetKind(err))
}

func TestValidate_ChunkOverlapMustBeLessThanChunkSize(t *testing.T) {
	cfg := NewConfig()
	cfg.Embedding.VoyageAPIKey = "k"
	cfg.Qdrant.URL = "http://localhost:6333"
	cfg.Chunking.ChunkSize = 200
	cfg.Chunking.ChunkOverlap = 200

	err := cfg.Validate()
	require.Error(t, err)
}

func TestValidate_HybridSearchAlphaOutOfRange(t *testing.T) {
	cfg := NewConfig()
	cfg.Embedding.VoyageAPIKey = "k"
	cfg.Qdrant.URL = "http://localhost:6333"
	cfg.Retrieval.HybridSearchAlpha = 1.5

	require.Error(t, cfg.Validate())
}

func TestValidate_LLMRerankerTimeoutTooLow(t *testing.T) {
	cfg := NewConfig()
	cfg.Embedding.VoyageAPIKey = "k"
	cfg.Qdrant.URL = "http://localhost:6333"
	cfg.Retrieval.LLMRerankerTimeoutMs = 1000

	require.Error(t, cfg.Validate())
}

func TestValidate_RerankerBaseURLAndProjectIDMutuallyExclusive(t *testing.T) {
	cfg := NewConfig()
	cfg.Embedding.VoyageAPIKey = "k"
	cfg.Qdrant.URL = "http://localhost:6333"
	cfg.Retrieval.EnableLLMReranking = true
	cfg.Retrieval.LLMRerankerBaseURL = "https://api.example.com"
	cfg.Retrieval.LLMRerankerProjectID = "proj-123"

	require.Error(t, cfg.Validate())
}

func TestValidate_WatcherQueueConcurrencyMustBePositive(t *testing.T) {
	cfg := NewConfig()
	cfg.Embedding.VoyageAPIKey = "k"
	cfg.Qdrant.URL = "http://localhost:6333"
	cfg.Watcher.QueueConcurrency = 0

	require.Error(t, cfg.Validate())
}

func TestValidate_Passes(t *testing.T) {
	cfg := NewConfig()
	cfg.Embedding.VoyageAPIKey = "k"
	cfg.Qdrant.URL = "http://localhost:6333"

	assert.NoError(t, cfg.Validate())
}

func TestNormalizedRerankerBaseURL(t *testing.T) {
	cfg := NewConfig()
	cfg.Retrieval.LLMRerankerBaseURL = "https://api.example.com"
	assert.Equal(t, "https://api.example.com/v1", cfg.NormalizedRerankerBaseURL())

	cfg.Retrieval.LLMRerankerBaseURL = "https://api.example.com/v1/"
	assert.Equal(t, "https://api.example.com/v1", cfg.NormalizedRerankerBaseURL())

	cfg.Retrieval.LLMRerankerBaseURL = ""
	assert.Equal(t, "", cfg.NormalizedRerankerBaseURL())
}
