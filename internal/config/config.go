// Package config loads the retrieval/indexing core's configuration from a
// YAML file, with environment variable overrides for secrets, following
// the teacher's nested-struct-with-yaml-tags shape and Validate()/
// WithDefaults() pattern.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	amanerrors "github.com/Aman-CERP/codesearch-mcp/internal/errors"
)

// Config is the complete configuration for the retrieval/indexing core,
// mirroring spec §6's enumerated configuration keys one struct per concern.
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Watcher   WatcherConfig   `yaml:"watcher"`
	Cache     CacheConfig     `yaml:"cache"`
}

// EmbeddingConfig configures the embedding capability (C2).
type EmbeddingConfig struct {
	// VoyageAPIKey is never read from YAML; it comes exclusively from the
	// VOYAGE_API_KEY environment variable so it never lands in a config
	// file on disk.
	VoyageAPIKey string `yaml:"-"`

	Model     string `yaml:"model"`
	BatchSize int    `yaml:"batchSize"`
}

// QdrantConfig configures the vector index capability (C3).
type QdrantConfig struct {
	URL string `yaml:"url"`
	// APIKey comes from QDRANT_API_KEY; optional.
	APIKey         string `yaml:"-"`
	CollectionName string `yaml:"collectionName"`
}

// ChunkingConfig configures the chunker (C1) and the indexer's file walk (C4).
type ChunkingConfig struct {
	ChunkSize           int      `yaml:"chunkSize"`
	ChunkOverlap        int      `yaml:"chunkOverlap"`
	MaxFileSize         int64    `yaml:"maxFileSize"`
	ExcludePatterns     []string `yaml:"excludePatterns"`
	SupportedExtensions []string `yaml:"supportedExtensions"`
}

// RetrievalConfig configures the hybrid pipeline (C6-C10).
type RetrievalConfig struct {
	HybridSearchAlpha float64 `yaml:"hybridSearchAlpha"`

	EnableLLMReranking    bool   `yaml:"enableLLMReranking"`
	LLMRerankerModel      string `yaml:"llmRerankerModel"`
	LLMRerankerAPIKey     string `yaml:"-"` // LLM_RERANKER_API_KEY
	LLMRerankerBaseURL    string `yaml:"llmRerankerBaseUrl"`
	LLMRerankerProjectID  string `yaml:"llmRerankerProjectId"`
	LLMRerankerTimeoutMs  int    `yaml:"llmRerankerTimeoutMs"`

	KeywordSearchTimeoutMs  int `yaml:"keywordSearchTimeoutMs"`
	KeywordSearchMaxChunks  int `yaml:"keywordSearchMaxChunks"`

	SearchCacheTTLSeconds int `yaml:"searchCacheTTL"`
	SearchCacheMaxSize    int `yaml:"searchCacheMaxSize"`

	ContextWindowSize     int `yaml:"contextWindowSize"`
	ContextReservedTokens int `yaml:"contextReservedTokens"`
	ContextCharsPerToken  int `yaml:"contextCharsPerToken"`
	ContextGroupGapLines  int `yaml:"contextGroupGapLines"`
}

// WatcherConfig configures the watcher + task queue (C5).
type WatcherConfig struct {
	Enabled           bool `yaml:"enabled"`
	DebounceMs        int  `yaml:"debounceMs"`
	QueueConcurrency  int  `yaml:"queueConcurrency"`
	AutoRestart       bool `yaml:"autoRestart"`
}

// CacheConfig holds cache knobs that are not read from YAML. NewConfig and
// Load leave it zero; the search cache (C6) is built from RetrievalConfig's
// SearchCacheTTLSeconds and SearchCacheMaxSize instead.
type CacheConfig struct {
	TTLSeconds int `yaml:"-"`
	MaxSize    int `yaml:"-"`
}

var defaultExcludePatterns = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/*.min.js",
	"**/*.min.css",
}

var defaultSupportedExtensions = []string{
	".go", ".ts", ".tsx", ".js", ".jsx", ".py", ".md", ".mdx",
}

// NewConfig returns a Config populated with spec §6's documented defaults.
func NewConfig() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Model:     "voyage-code-3",
			BatchSize: 100,
		},
		Qdrant: QdrantConfig{
			CollectionName: "codebase",
		},
		Chunking: ChunkingConfig{
			ChunkSize:           800,
			ChunkOverlap:        100,
			MaxFileSize:         1 << 20, // 1 MiB
			ExcludePatterns:     append([]string(nil), defaultExcludePatterns...),
			SupportedExtensions: append([]string(nil), defaultSupportedExtensions...),
		},
		Retrieval: RetrievalConfig{
			HybridSearchAlpha:      0.7,
			EnableLLMReranking:     false,
			LLMRerankerTimeoutMs:   25000,
			KeywordSearchTimeoutMs: 10000,
			KeywordSearchMaxChunks: 20000,
			SearchCacheTTLSeconds:  300,
			SearchCacheMaxSize:     500,
			ContextWindowSize:      32000,
			ContextReservedTokens:  2000,
			ContextCharsPerToken:   4,
			ContextGroupGapLines:   10,
		},
		Watcher: WatcherConfig{
			Enabled:          true,
			DebounceMs:       300,
			QueueConcurrency: 1,
			AutoRestart:      true,
		},
	}
}

// Load reads configuration from dir/codesearch.yaml (or .yml), applies
// environment variable overrides for secrets, and validates the result.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{"codesearch.yaml", "codesearch.yml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return amanerrors.ConfigInvalid(fmt.Sprintf("failed to parse config file %s: %v", path, err), err)
		}
		return nil
	}
	return nil
}

// applyEnvOverrides applies the secret environment variables named in spec §6.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("VOYAGE_API_KEY"); v != "" {
		c.Embedding.VoyageAPIKey = v
	}
	if v := os.Getenv("QDRANT_API_KEY"); v != "" {
		c.Qdrant.APIKey = v
	}
	if v := os.Getenv("QDRANT_URL"); v != "" {
		c.Qdrant.URL = v
	}
	if v := os.Getenv("LLM_RERANKER_API_KEY"); v != "" {
		c.Retrieval.LLMRerankerAPIKey = v
	}
}

// Validate checks range and consistency constraints from spec §6,
// returning a config_invalid error (fatal at startup) on violation.
func (c *Config) Validate() error {
	if c.Embedding.VoyageAPIKey == "" {
		return amanerrors.ConfigInvalid("voyageApiKey is required (set VOYAGE_API_KEY)", nil)
	}
	if c.Qdrant.URL == "" {
		return amanerrors.ConfigInvalid("qdrantUrl is required", nil)
	}
	if c.Chunking.ChunkSize < 100 || c.Chunking.ChunkSize > 1000 {
		return amanerrors.ConfigInvalid(fmt.Sprintf("chunkSize must be in [100,1000], got %d", c.Chunking.ChunkSize), nil)
	}
	if c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return amanerrors.ConfigInvalid("chunkOverlap must be < chunkSize", nil)
	}
	if c.Retrieval.HybridSearchAlpha < 0 || c.Retrieval.HybridSearchAlpha > 1 {
		return amanerrors.ConfigInvalid("hybridSearchAlpha must be in [0,1]", nil)
	}
	if c.Retrieval.LLMRerankerTimeoutMs < 5000 {
		return amanerrors.ConfigInvalid("llmRerankerTimeoutMs must be >= 5000", nil)
	}
	if c.Retrieval.EnableLLMReranking {
		if c.Retrieval.LLMRerankerBaseURL != "" && c.Retrieval.LLMRerankerProjectID != "" {
			return amanerrors.ConfigInvalid(
				"llmRerankerBaseUrl and llmRerankerProjectId are mutually exclusive; spec mandates the normalized single-/v1 base-URL form", nil)
		}
	}
	if c.Watcher.QueueConcurrency < 1 {
		return amanerrors.ConfigInvalid("watcherQueueConcurrency must be >= 1", nil)
	}
	return nil
}

// NormalizedRerankerBaseURL returns LLMRerankerBaseURL with exactly one
// trailing "/v1" segment, per spec §6 / §9(e): the project-id+base-URL
// combination is rejected by Validate, so by the time this is called only
// the normalized single-/v1 form remains.
func (c *Config) NormalizedRerankerBaseURL() string {
	base := strings.TrimRight(c.Retrieval.LLMRerankerBaseURL, "/")
	if base == "" {
		return ""
	}
	if strings.HasSuffix(base, "/v1") {
		return base
	}
	return base + "/v1"
}

// DefaultIndexWorkers returns the directory-fan-out worker count the
// indexer (C4) uses when none is configured explicitly.
func DefaultIndexWorkers() int {
	return runtime.NumCPU()
}

// HostPort splits QdrantConfig.URL (e.g. "http://localhost:6333" or
// "localhost:6334") into the host/port/TLS triple the vectorindex client
// dials with.
func (q QdrantConfig) HostPort() (host string, port int, useTLS bool, err error) {
	raw := q.URL
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, false, fmt.Errorf("invalid qdrantUrl %q: %w", q.URL, err)
	}
	useTLS = u.Scheme == "https" || u.Scheme == "grpcs"
	host = u.Hostname()
	if host == "" {
		return "", 0, false, fmt.Errorf("invalid qdrantUrl %q: missing host", q.URL)
	}
	port = 6334
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return "", 0, false, fmt.Errorf("invalid qdrantUrl %q: bad port: %w", q.URL, err)
		}
	}
	return host, port, useTLS, nil
}
