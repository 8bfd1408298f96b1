// Package mcpserver registers the §6 tool method list on top of the
// modelcontextprotocol go-sdk, bridging each tool call to the retrieval and
// indexing core (internal/indexer, internal/search, internal/cache,
// internal/contextasm). Grounded on the teacher's internal/mcp/server.go
// NewServer/registerTools/mcp.AddTool shape; the tool surface itself is
// redesigned from the teacher's four ad hoc tools to spec §6's eighteen
// named methods.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/codesearch-mcp/internal/cache"
	"github.com/Aman-CERP/codesearch-mcp/internal/chunk"
	"github.com/Aman-CERP/codesearch-mcp/internal/config"
	"github.com/Aman-CERP/codesearch-mcp/internal/contextasm"
	"github.com/Aman-CERP/codesearch-mcp/internal/embed"
	amanerrors "github.com/Aman-CERP/codesearch-mcp/internal/errors"
	"github.com/Aman-CERP/codesearch-mcp/internal/indexer"
	"github.com/Aman-CERP/codesearch-mcp/internal/retrieval"
	"github.com/Aman-CERP/codesearch-mcp/internal/search"
	"github.com/Aman-CERP/codesearch-mcp/internal/vectorindex"
	"github.com/Aman-CERP/codesearch-mcp/pkg/version"
)

// Server bridges the tool-RPC method list to the retrieval/indexing core.
type Server struct {
	mcp *mcp.Server

	cfg      *config.Config
	ix       *indexer.Indexer
	pipeline *search.Pipeline
	cache    *cache.Cache
	asm      *contextasm.Assembler
	index    vectorindex.Index
	embedder embed.Embedder
	logger   *slog.Logger

	mu      sync.Mutex
	lastRun *IndexDirectoryOutput
}

// New creates the tool-RPC surface over an already-constructed core.
func New(cfg *config.Config, ix *indexer.Indexer, pipeline *search.Pipeline, c *cache.Cache, asm *contextasm.Assembler, index vectorindex.Index, embedder embed.Embedder, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		ix:       ix,
		pipeline: pipeline,
		cache:    c,
		asm:      asm,
		index:    index,
		embedder: embedder,
		logger:   logger,
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "codesearch-mcp",
		Version: version.Version,
	}, nil)

	s.registerTools()
	return s
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Serve runs the server until ctx is cancelled. Transport framing and SSE
// keepalives are the out-of-core tool-RPC front end (spec §1); this only
// drives whichever transport it's given.
func (s *Server) Serve(ctx context.Context, transport mcp.Transport) error {
	return s.mcp.Run(ctx, transport)
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_directory",
		Description: "Walk a directory, chunk every eligible file, embed the chunks, and upsert them into the vector index. Resumable: files already indexed at their current modification time are skipped.",
	}, s.handleIndexDirectory)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_file",
		Description: "Chunk, embed, and upsert a single file. If the file was already indexed, its old chunks are removed first.",
	}, s.handleIndexFile)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "reindex_file",
		Description: "Re-index a single file unconditionally, even if its modification time hasn't changed.",
	}, s.handleReindexFile)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "remove_file",
		Description: "Delete all indexed chunks belonging to a file.",
	}, s.handleRemoveFile)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "clear_index",
		Description: "Delete every indexed point. Irreversible.",
	}, s.handleClearIndex)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_code",
		Description: "Hybrid semantic + keyword search over indexed code and docs, with optional LLM re-ranking.",
	}, s.handleSearchCode)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_functions",
		Description: "Like search_code, biased toward function/method chunks.",
	}, s.handleSearchFunctions)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_classes",
		Description: "Like search_code, biased toward class/interface chunks.",
	}, s.handleSearchClasses)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "find_similar",
		Description: "Find chunks whose content is semantically similar to the given text, ignoring keyword overlap weighting.",
	}, s.handleFindSimilar)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "codebase_search",
		Description: "General-purpose codebase search; an alias of search_code for callers that want the more descriptive method name.",
	}, s.handleSearchCode)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_code_context",
		Description: "Run a search and assemble the results into token-budgeted, adjacency-grouped code references suitable for pasting into an LLM prompt.",
	}, s.handleGetCodeContext)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_indexing_stats",
		Description: "Report the indexer's current file/chunk counts and the most recent index_directory run's stats.",
	}, s.handleGetIndexingStats)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_search_stats",
		Description: "Report the search cache's hit/miss counters and current size.",
	}, s.handleGetSearchStats)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_enhanced_stats",
		Description: "Combine indexing stats, search cache stats, and vector index call latency into one response.",
	}, s.handleGetEnhancedStats)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_health_status",
		Description: "Check reachability of the embedding provider and vector index.",
	}, s.handleGetHealthStatus)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "clear_search_cache",
		Description: "Evict every cached search result.",
	}, s.handleClearSearchCache)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "invalidate_file_cache",
		Description: "Evict cached search results that reference a specific file.",
	}, s.handleInvalidateFileCache)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "create_payload_indexes",
		Description: "Ensure the vector index's keyword payload indexes (chunkType, language, filePath, fileKind) exist. Idempotent.",
	}, s.handleCreatePayloadIndexes)

	s.logger.Info("tool-RPC surface registered", slog.Int("count", 18))
}

// --- indexing tools ---

func (s *Server) handleIndexDirectory(ctx context.Context, _ *mcp.CallToolRequest, in IndexDirectoryInput) (*mcp.CallToolResult, IndexDirectoryOutput, error) {
	stats, err := s.ix.IndexDirectory(ctx)
	if err != nil {
		return nil, IndexDirectoryOutput{}, MapError(err)
	}
	out := IndexDirectoryOutput{
		FilesScanned:  stats.FilesScanned,
		FilesIndexed:  stats.FilesIndexed,
		FilesSkipped:  stats.FilesSkipped,
		ChunksCreated: stats.ChunksCreated,
		Warnings:      stats.CountBySeverity(indexer.SeverityWarning),
		Errors:        stats.CountBySeverity(indexer.SeverityError),
		Critical:      stats.CountBySeverity(indexer.SeverityCritical),
		DurationMs:    stats.Duration.Milliseconds(),
	}
	for _, f := range stats.Failures {
		out.FailedFiles = append(out.FailedFiles, fmt.Sprintf("%s: %s", f.Path, f.Message))
	}
	s.mu.Lock()
	s.lastRun = &out
	s.mu.Unlock()
	return nil, out, nil
}

func (s *Server) handleIndexFile(ctx context.Context, _ *mcp.CallToolRequest, in IndexFileInput) (*mcp.CallToolResult, IndexFileOutput, error) {
	if in.Path == "" {
		return nil, IndexFileOutput{}, NewInvalidParamsError("path is required")
	}
	chunks, err := s.ix.IndexFile(ctx, in.Path)
	if err != nil {
		return nil, IndexFileOutput{}, MapError(err)
	}
	return nil, IndexFileOutput{Path: in.Path, ChunksCount: len(chunks)}, nil
}

func (s *Server) handleReindexFile(ctx context.Context, _ *mcp.CallToolRequest, in IndexFileInput) (*mcp.CallToolResult, IndexFileOutput, error) {
	if in.Path == "" {
		return nil, IndexFileOutput{}, NewInvalidParamsError("path is required")
	}
	chunks, err := s.ix.ReindexFile(ctx, in.Path)
	if err != nil {
		return nil, IndexFileOutput{}, MapError(err)
	}
	return nil, IndexFileOutput{Path: in.Path, ChunksCount: len(chunks)}, nil
}

func (s *Server) handleRemoveFile(ctx context.Context, _ *mcp.CallToolRequest, in RemoveFileInput) (*mcp.CallToolResult, RemoveFileOutput, error) {
	if in.Path == "" {
		return nil, RemoveFileOutput{}, NewInvalidParamsError("path is required")
	}
	if err := s.ix.RemoveFile(ctx, in.Path); err != nil {
		return nil, RemoveFileOutput{}, MapError(err)
	}
	if s.cache != nil {
		s.cache.InvalidateFile(in.Path)
	}
	return nil, RemoveFileOutput{Removed: true}, nil
}

func (s *Server) handleClearIndex(ctx context.Context, _ *mcp.CallToolRequest, _ ClearIndexInput) (*mcp.CallToolResult, ClearIndexOutput, error) {
	if err := s.ix.ClearIndex(ctx); err != nil {
		return nil, ClearIndexOutput{}, MapError(err)
	}
	if s.cache != nil {
		s.cache.Clear()
	}
	return nil, ClearIndexOutput{Cleared: true}, nil
}

// --- search tools ---

func toQuery(in SearchInput) (retrieval.Query, error) {
	if len(in.Text) == 0 {
		return retrieval.Query{}, NewInvalidParamsError("text is required")
	}
	return retrieval.Query{
		Text:                 in.Text,
		Language:             in.Language,
		FilePath:             in.FilePath,
		ChunkType:            chunk.Type(in.ChunkType),
		PreferImplementation: in.PreferImplementation,
		Limit:                in.Limit,
		Threshold:            in.Threshold,
		EnableHybrid:         in.EnableHybrid,
		EnableReranking:      in.EnableReranking,
		MaxFilesPerType:      in.MaxFilesPerType,
	}, nil
}

func toSearchOutput(resp search.Response) SearchOutput {
	out := SearchOutput{CacheHit: resp.CacheHit, Reranked: resp.Reranked, Alpha: resp.Alpha}
	out.Results = make([]SearchResultOutput, 0, len(resp.Results))
	for _, r := range resp.Results {
		ro := SearchResultOutput{
			ID:      r.ID,
			Score:   r.Score,
			Snippet: r.Snippet,
			Context: r.Context,
		}
		if r.Chunk != nil {
			ro.FilePath = r.Chunk.FilePath
			ro.Language = r.Chunk.Language
			ro.ChunkType = string(r.Chunk.ChunkType)
			ro.StartLine = r.Chunk.StartLine
			ro.EndLine = r.Chunk.EndLine
			ro.FunctionName = r.Chunk.FunctionName
			ro.ClassName = r.Chunk.ClassName
		}
		if r.HybridScore != nil {
			ro.DenseScore = r.HybridScore.Dense
			ro.SparseScore = r.HybridScore.Sparse
		}
		if r.RerankedScore != nil {
			ro.RerankedScore = *r.RerankedScore
		}
		out.Results = append(out.Results, ro)
	}
	return out
}

func (s *Server) handleSearchCode(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	q, err := toQuery(in)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	resp, err := s.pipeline.Search(ctx, q)
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}
	return nil, toSearchOutput(resp), nil
}

func (s *Server) handleSearchFunctions(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	if in.ChunkType == "" {
		in.ChunkType = string(chunk.TypeFunction)
	}
	return s.handleSearchCode(ctx, nil, in)
}

func (s *Server) handleSearchClasses(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	if in.ChunkType == "" {
		in.ChunkType = string(chunk.TypeClass)
	}
	return s.handleSearchCode(ctx, nil, in)
}

func (s *Server) handleFindSimilar(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	in.EnableHybrid = false
	in.EnableReranking = false
	return s.handleSearchCode(ctx, nil, in)
}

func (s *Server) handleGetCodeContext(ctx context.Context, _ *mcp.CallToolRequest, in GetCodeContextInput) (*mcp.CallToolResult, GetCodeContextOutput, error) {
	q, err := toQuery(in.SearchInput)
	if err != nil {
		return nil, GetCodeContextOutput{}, err
	}
	maxTokens := in.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.cfg.Retrieval.ContextWindowSize - s.cfg.Retrieval.ContextReservedTokens
	}
	available := s.cfg.Retrieval.ContextWindowSize - s.cfg.Retrieval.ContextReservedTokens
	opts := contextasm.BoostOptions{
		PreferFunctions: in.PreferFunctions,
		MaxFilesPerType: in.MaxFilesPerType,
	}
	opts.PreferClasses = in.PreferClasses

	assembled, err := s.pipeline.GetContext(ctx, q, s.asm, opts, maxTokens, available)
	if err != nil {
		return nil, GetCodeContextOutput{}, MapError(err)
	}
	out := GetCodeContextOutput{
		UsedTokens: assembled.UsedTokens,
		Truncated:  assembled.Truncated,
		Summary:    assembled.Summary,
	}
	for _, r := range assembled.References {
		out.References = append(out.References, CodeReferenceOutput{
			FilePath:  r.FilePath,
			Language:  r.Language,
			StartLine: r.StartLine,
			EndLine:   r.EndLine,
			Snippet:   r.Snippet,
			Score:     r.Score,
			EstTokens: r.EstTokens,
		})
	}
	return nil, out, nil
}

// --- stats and health tools ---

func (s *Server) handleGetIndexingStats(_ context.Context, _ *mcp.CallToolRequest, _ GetIndexingStatsInput) (*mcp.CallToolResult, GetIndexingStatsOutput, error) {
	files, chunks := s.ix.GetStats()
	s.mu.Lock()
	lastRun := s.lastRun
	s.mu.Unlock()
	return nil, GetIndexingStatsOutput{
		FilesIndexed:   files,
		ChunksIndexed:  chunks,
		Collection:     s.cfg.Qdrant.CollectionName,
		EmbeddingModel: s.cfg.Embedding.Model,
		Dimension:      s.embedder.Dimensions(),
		LastRun:        lastRun,
	}, nil
}

func (s *Server) handleGetSearchStats(_ context.Context, _ *mcp.CallToolRequest, _ GetSearchStatsInput) (*mcp.CallToolResult, GetSearchStatsOutput, error) {
	if s.cache == nil {
		return nil, GetSearchStatsOutput{}, nil
	}
	st := s.cache.Stats()
	return nil, GetSearchStatsOutput{
		Hits:        st.Hits,
		Misses:      st.Misses,
		HitRate:     st.HitRate(),
		Size:        st.Size,
		MemEstimate: st.MemEstimate,
	}, nil
}

func (s *Server) handleGetEnhancedStats(ctx context.Context, req *mcp.CallToolRequest, _ GetEnhancedStatsInput) (*mcp.CallToolResult, GetEnhancedStatsOutput, error) {
	_, indexingOut, err := s.handleGetIndexingStats(ctx, req, GetIndexingStatsInput{})
	if err != nil {
		return nil, GetEnhancedStatsOutput{}, err
	}
	_, searchOut, err := s.handleGetSearchStats(ctx, req, GetSearchStatsInput{})
	if err != nil {
		return nil, GetEnhancedStatsOutput{}, err
	}
	latency := map[string]OperationLatencyOutput{}
	if s.index != nil {
		for op, l := range s.index.Stats() {
			latency[op] = OperationLatencyOutput{
				Samples: l.Samples,
				MeanMs:  l.Mean.Milliseconds(),
				MaxMs:   l.Max.Milliseconds(),
			}
		}
	}
	return nil, GetEnhancedStatsOutput{Indexing: indexingOut, Search: searchOut, Latency: latency}, nil
}

func (s *Server) handleGetHealthStatus(ctx context.Context, _ *mcp.CallToolRequest, _ GetHealthStatusInput) (*mcp.CallToolResult, GetHealthStatusOutput, error) {
	out := GetHealthStatusOutput{EmbeddingOK: true, VectorIndexOK: true}

	if s.embedder != nil {
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		ok := s.embedder.Available(checkCtx)
		cancel()
		if !ok {
			out.EmbeddingOK = false
			out.Message += "embedding provider unreachable; "
		}
	}

	if s.index != nil {
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := s.index.Scroll(checkCtx, nil, 1, "")
		cancel()
		if err != nil {
			out.VectorIndexOK = false
			out.Message += fmt.Sprintf("vector index unreachable: %v; ", err)
		}
	}

	out.Healthy = out.EmbeddingOK && out.VectorIndexOK
	return nil, out, nil
}

// --- cache tools ---

func (s *Server) handleClearSearchCache(_ context.Context, _ *mcp.CallToolRequest, _ ClearSearchCacheInput) (*mcp.CallToolResult, ClearSearchCacheOutput, error) {
	if s.cache != nil {
		s.cache.Clear()
	}
	return nil, ClearSearchCacheOutput{Cleared: true}, nil
}

func (s *Server) handleInvalidateFileCache(_ context.Context, _ *mcp.CallToolRequest, in InvalidateFileCacheInput) (*mcp.CallToolResult, InvalidateFileCacheOutput, error) {
	if in.Path == "" {
		return nil, InvalidateFileCacheOutput{}, NewInvalidParamsError("path is required")
	}
	if s.cache == nil {
		return nil, InvalidateFileCacheOutput{}, nil
	}
	n := s.cache.InvalidateFile(in.Path)
	return nil, InvalidateFileCacheOutput{EvictedCount: n}, nil
}

func (s *Server) handleCreatePayloadIndexes(ctx context.Context, _ *mcp.CallToolRequest, _ CreatePayloadIndexesInput) (*mcp.CallToolResult, CreatePayloadIndexesOutput, error) {
	if s.index == nil {
		return nil, CreatePayloadIndexesOutput{}, amanerrors.ExternalUnavailable("no vector index configured", nil)
	}
	if err := s.index.EnsurePayloadIndexes(ctx); err != nil {
		return nil, CreatePayloadIndexesOutput{}, MapError(err)
	}
	return nil, CreatePayloadIndexesOutput{Created: true}, nil
}
