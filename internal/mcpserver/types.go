// Package mcpserver exposes the retrieval/indexing core (C1-C10) through
// the tool-RPC method list spec §6 enumerates. The transport framing and
// SSE keepalive loop are out of this spec's core scope (spec §1); this
// package only registers the tool surface on top of whatever transport the
// caller runs the underlying *mcp.Server with.
package mcpserver

// IndexDirectoryInput is index_directory's parameter schema.
type IndexDirectoryInput struct {
	Path string `json:"path,omitempty" jsonschema:"ignored: index_directory always indexes the project root the server was started in"`
}

// IndexDirectoryOutput reports the resulting indexing stats.
type IndexDirectoryOutput struct {
	FilesScanned  int      `json:"filesScanned"`
	FilesIndexed  int      `json:"filesIndexed"`
	FilesSkipped  int      `json:"filesSkipped"`
	ChunksCreated int      `json:"chunksCreated"`
	Warnings      int      `json:"warnings"`
	Errors        int      `json:"errors"`
	Critical      int      `json:"critical"`
	DurationMs    int64    `json:"durationMs"`
	FailedFiles   []string `json:"failedFiles,omitempty"`
}

// IndexFileInput is index_file's and reindex_file's parameter schema.
type IndexFileInput struct {
	Path string `json:"path" jsonschema:"file path, relative to the project root"`
}

// IndexFileOutput reports the chunks produced for one file.
type IndexFileOutput struct {
	Path        string `json:"path"`
	ChunksCount int    `json:"chunksCount"`
}

// RemoveFileInput is remove_file's parameter schema.
type RemoveFileInput struct {
	Path string `json:"path" jsonschema:"file path, relative to the project root"`
}

// RemoveFileOutput confirms a removal.
type RemoveFileOutput struct {
	Removed bool `json:"removed"`
}

// ClearIndexInput is clear_index's parameter schema (no parameters).
type ClearIndexInput struct{}

// ClearIndexOutput confirms the index was cleared.
type ClearIndexOutput struct {
	Cleared bool `json:"cleared"`
}

// SearchInput is the common schema shared by search_code, search_functions,
// search_classes, find_similar, and codebase_search.
type SearchInput struct {
	Text                 string `json:"text" jsonschema:"natural-language or keyword query"`
	Language             string `json:"language,omitempty" jsonschema:"filter by language"`
	FilePath             string `json:"filePath,omitempty" jsonschema:"filter by exact file path (disables result caching for this query)"`
	ChunkType            string `json:"chunkType,omitempty" jsonschema:"filter by chunk type, e.g. function, class, interface"`
	PreferImplementation bool   `json:"preferImplementation,omitempty" jsonschema:"prefer code chunks (fileKind=code) over docs"`
	Limit                int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 50"`
	Threshold            float64 `json:"threshold,omitempty" jsonschema:"minimum score threshold, default 0.25"`
	EnableHybrid         bool   `json:"enableHybrid,omitempty" jsonschema:"blend in sparse keyword scoring"`
	EnableReranking      bool   `json:"enableReranking,omitempty" jsonschema:"re-rank candidates with the configured LLM"`
	MaxFilesPerType      int    `json:"maxFilesPerType,omitempty" jsonschema:"cap results taken from any single file"`
}

// SearchOutput is the common result shape for every search_* tool.
type SearchOutput struct {
	Results  []SearchResultOutput `json:"results"`
	CacheHit bool                 `json:"cacheHit"`
	Reranked bool                 `json:"reranked"`
	Alpha    float64              `json:"alpha"`
}

// SearchResultOutput is one scored hit surfaced to the caller.
type SearchResultOutput struct {
	ID            string  `json:"id"`
	Score         float64 `json:"score"`
	FilePath      string  `json:"filePath"`
	Language      string  `json:"language"`
	ChunkType     string  `json:"chunkType"`
	StartLine     int     `json:"startLine"`
	EndLine       int     `json:"endLine"`
	FunctionName  string  `json:"functionName,omitempty"`
	ClassName     string  `json:"className,omitempty"`
	Snippet       string  `json:"snippet"`
	Context       string  `json:"context"`
	DenseScore    float64 `json:"denseScore,omitempty"`
	SparseScore   float64 `json:"sparseScore,omitempty"`
	RerankedScore float64 `json:"rerankedScore,omitempty"`
}

// GetCodeContextInput is get_code_context's parameter schema: the same
// query shape as a search, plus the token budget the context assembler
// enforces.
type GetCodeContextInput struct {
	SearchInput
	MaxTokens       int  `json:"maxTokens,omitempty" jsonschema:"token budget for the assembled context, default contextWindowSize-contextReservedTokens"`
	PreferFunctions bool `json:"preferFunctions,omitempty"`
	PreferClasses   bool `json:"preferClasses,omitempty"`
}

// GetCodeContextOutput is the context assembler's output (spec §4.10).
type GetCodeContextOutput struct {
	References []CodeReferenceOutput `json:"references"`
	UsedTokens int                    `json:"usedTokens"`
	Truncated  bool                   `json:"truncated"`
	Summary    string                 `json:"summary,omitempty"`
}

// CodeReferenceOutput is one emitted reference, possibly merging several
// adjacent chunks from the same file.
type CodeReferenceOutput struct {
	FilePath  string  `json:"filePath"`
	Language  string  `json:"language"`
	StartLine int     `json:"startLine"`
	EndLine   int     `json:"endLine"`
	Snippet   string  `json:"snippet"`
	Score     float64 `json:"score"`
	EstTokens int     `json:"estTokens"`
}

// GetIndexingStatsInput has no parameters.
type GetIndexingStatsInput struct{}

// GetIndexingStatsOutput reports the indexer's current bookkeeping plus
// the most recent indexDirectory run's stats, if any.
type GetIndexingStatsOutput struct {
	FilesIndexed  int    `json:"filesIndexed"`
	ChunksIndexed int    `json:"chunksIndexed"`
	Collection    string `json:"collection"`
	EmbeddingModel string `json:"embeddingModel"`
	Dimension     int    `json:"dimension"`
	LastRun       *IndexDirectoryOutput `json:"lastRun,omitempty"`
}

// GetSearchStatsInput has no parameters.
type GetSearchStatsInput struct{}

// GetSearchStatsOutput reports the search cache's running counters (spec §4.6).
type GetSearchStatsOutput struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	HitRate     float64 `json:"hitRate"`
	Size        int     `json:"size"`
	MemEstimate int64   `json:"memEstimateBytes"`
}

// GetEnhancedStatsInput has no parameters.
type GetEnhancedStatsInput struct{}

// GetEnhancedStatsOutput combines indexing and search stats plus vector
// index call latency, for a single-call dashboard-style view.
type GetEnhancedStatsOutput struct {
	Indexing GetIndexingStatsOutput `json:"indexing"`
	Search   GetSearchStatsOutput   `json:"search"`
	Latency  map[string]OperationLatencyOutput `json:"latency"`
}

// OperationLatencyOutput summarizes recent call latency for one vector
// index operation.
type OperationLatencyOutput struct {
	Samples int   `json:"samples"`
	MeanMs  int64 `json:"meanMs"`
	MaxMs   int64 `json:"maxMs"`
}

// GetHealthStatusInput has no parameters.
type GetHealthStatusInput struct{}

// GetHealthStatusOutput reports reachability of the core's external
// collaborators (embedding provider, vector index) without exposing any
// implementation detail beyond up/down plus a message.
type GetHealthStatusOutput struct {
	Healthy       bool   `json:"healthy"`
	EmbeddingOK   bool   `json:"embeddingOk"`
	VectorIndexOK bool   `json:"vectorIndexOk"`
	Message       string `json:"message,omitempty"`
}

// ClearSearchCacheInput has no parameters.
type ClearSearchCacheInput struct{}

// ClearSearchCacheOutput confirms the cache was cleared. Per spec §9(b),
// this also resets the cache's hit/miss counters (documented behavior,
// the alternative of leaving counters intact is equally acceptable but
// this repo picks the reset).
type ClearSearchCacheOutput struct {
	Cleared bool `json:"cleared"`
}

// InvalidateFileCacheInput is invalidate_file_cache's parameter schema.
type InvalidateFileCacheInput struct {
	Path string `json:"path" jsonschema:"file path whose cache entries should be evicted"`
}

// InvalidateFileCacheOutput reports how many cache entries were evicted.
type InvalidateFileCacheOutput struct {
	EvictedCount int `json:"evictedCount"`
}

// CreatePayloadIndexesInput has no parameters.
type CreatePayloadIndexesInput struct{}

// CreatePayloadIndexesOutput confirms the payload indexes exist.
type CreatePayloadIndexesOutput struct {
	Created bool `json:"created"`
}
