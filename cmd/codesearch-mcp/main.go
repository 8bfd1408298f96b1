// Command codesearch-mcp runs the retrieval/indexing core (internal/indexer,
// internal/search, internal/cache, internal/contextasm) behind the tool-RPC
// surface in internal/mcpserver, speaking stdio per the Model Context
// Protocol. Grounded on the teacher's cmd/amanmcp entry point (load config,
// construct the capabilities, wire the server, run until signalled), pared
// down to this spec's single-binary scope: the teacher's cobra-based
// daemon/setup/sessions/switch CLI sits entirely in the out-of-scope
// tool-RPC front end (spec §1) this repo doesn't reimplement.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/codesearch-mcp/internal/cache"
	"github.com/Aman-CERP/codesearch-mcp/internal/config"
	"github.com/Aman-CERP/codesearch-mcp/internal/contextasm"
	"github.com/Aman-CERP/codesearch-mcp/internal/embed"
	"github.com/Aman-CERP/codesearch-mcp/internal/indexer"
	"github.com/Aman-CERP/codesearch-mcp/internal/logging"
	"github.com/Aman-CERP/codesearch-mcp/internal/mcpserver"
	"github.com/Aman-CERP/codesearch-mcp/internal/rerank"
	"github.com/Aman-CERP/codesearch-mcp/internal/search"
	"github.com/Aman-CERP/codesearch-mcp/internal/sparse"
	"github.com/Aman-CERP/codesearch-mcp/internal/vectorindex"
	"github.com/Aman-CERP/codesearch-mcp/internal/watcher"
	"github.com/Aman-CERP/codesearch-mcp/pkg/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "codesearch-mcp:", err)
		os.Exit(1)
	}
}

func run() error {
	cleanup, err := logging.SetupDefault()
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer cleanup()
	logger := slog.Default()

	root, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getwd: %w", err)
	}

	cfg, err := config.Load(root)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	embedder, err := embed.NewVoyageEmbedder(ctx, embed.VoyageConfig{
		APIKey:    cfg.Embedding.VoyageAPIKey,
		Model:     cfg.Embedding.Model,
		BatchSize: cfg.Embedding.BatchSize,
	})
	if err != nil {
		return fmt.Errorf("create embedder: %w", err)
	}
	cachedEmbedder := embed.NewCachedEmbedder(embedder, embed.DefaultEmbeddingCacheSize)

	host, port, useTLS, err := cfg.Qdrant.HostPort()
	if err != nil {
		return fmt.Errorf("parse qdrantUrl: %w", err)
	}
	index, err := vectorindex.NewQdrantIndex(vectorindex.QdrantConfig{
		Host:       host,
		Port:       port,
		APIKey:     cfg.Qdrant.APIKey,
		UseTLS:     useTLS,
		Collection: cfg.Qdrant.CollectionName,
	}, logger)
	if err != nil {
		return fmt.Errorf("create vector index: %w", err)
	}
	defer index.Close()

	if err := index.EnsureCollection(ctx, cachedEmbedder.Dimensions()); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}
	if err := index.EnsurePayloadIndexes(ctx); err != nil {
		return fmt.Errorf("ensure payload indexes: %w", err)
	}

	ix, err := indexer.New(root, cfg, cachedEmbedder, index, logger)
	if err != nil {
		return fmt.Errorf("create indexer: %w", err)
	}
	defer ix.Close()

	searchCache := cache.New(cfg.Retrieval.SearchCacheMaxSize, time.Duration(cfg.Retrieval.SearchCacheTTLSeconds)*time.Second)
	defer searchCache.Close()

	sparseScorer := sparse.New(index,
		time.Duration(cfg.Retrieval.KeywordSearchTimeoutMs)*time.Millisecond,
		cfg.Retrieval.KeywordSearchMaxChunks)

	var reranker *rerank.Reranker
	if cfg.Retrieval.EnableLLMReranking && cfg.Retrieval.LLMRerankerAPIKey != "" {
		client := rerank.NewHTTPClient(
			cfg.NormalizedRerankerBaseURL(),
			cfg.Retrieval.LLMRerankerAPIKey,
			cfg.Retrieval.LLMRerankerModel,
			time.Duration(cfg.Retrieval.LLMRerankerTimeoutMs)*time.Millisecond,
		)
		reranker = rerank.New(client,
			time.Duration(cfg.Retrieval.LLMRerankerTimeoutMs)*time.Millisecond,
			cfg.Retrieval.ContextWindowSize)
	}

	pipeline := search.New(index, cachedEmbedder, searchCache, sparseScorer, reranker, cfg.Retrieval.HybridSearchAlpha)
	assembler := contextasm.New(cfg.Retrieval.ContextGroupGapLines, cfg.Retrieval.ContextCharsPerToken)

	srv := mcpserver.New(cfg, ix, pipeline, searchCache, assembler, index, cachedEmbedder, logger)

	var watchSvc *watcher.Service
	if cfg.Watcher.Enabled {
		watchSvc, err = watcher.NewService(watcher.Options{
			DebounceWindow:      time.Duration(cfg.Watcher.DebounceMs) * time.Millisecond,
			QueueConcurrency:    cfg.Watcher.QueueConcurrency,
			AutoRestart:         cfg.Watcher.AutoRestart,
			IgnorePatterns:      cfg.Chunking.ExcludePatterns,
			SupportedExtensions: cfg.Chunking.SupportedExtensions,
		}, indexer.NewWatcherHandler(ix), logger)
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		if err := watchSvc.Start(ctx, root); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		defer watchSvc.Stop()
	}

	logger.Info("codesearch-mcp starting",
		slog.String("version", version.Version),
		slog.String("root", root),
		slog.Bool("watcher", cfg.Watcher.Enabled))

	return srv.Serve(ctx, &mcp.StdioTransport{})
}
