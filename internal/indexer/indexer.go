package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/codesearch-mcp/internal/chunk"
	"github.com/Aman-CERP/codesearch-mcp/internal/config"
	"github.com/Aman-CERP/codesearch-mcp/internal/embed"
	amanerrors "github.com/Aman-CERP/codesearch-mcp/internal/errors"
	"github.com/Aman-CERP/codesearch-mcp/internal/scanner"
	"github.com/Aman-CERP/codesearch-mcp/internal/vectorindex"
)

// Indexer orchestrates scan -> chunk -> embed -> upsert for a single
// project root, owning per-file identity between the chunker and the
// vector index (spec §4.4).
type Indexer struct {
	root   string
	cfg    *config.Config
	logger *slog.Logger

	codeChunker     chunk.Chunker
	markdownChunker chunk.Chunker
	embedder        embed.Embedder
	index           vectorindex.Index
	scanner         *scanner.Scanner

	mu                  sync.Mutex
	records             map[string]fileRecord
	collectionReady     bool
	collectionDimension int

	// lockPath guards destructive operations (clearIndex, reindexFile)
	// against concurrent invocations from the watcher and the tool-RPC
	// layer racing each other, grounded on the teacher's FileLock usage
	// around its own destructive index operations.
	lockPath string
}

// New creates an Indexer for the given project root.
func New(root string, cfg *config.Config, embedder embed.Embedder, index vectorindex.Index, logger *slog.Logger) (*Indexer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s, err := scanner.New()
	if err != nil {
		return nil, fmt.Errorf("indexer: create scanner: %w", err)
	}

	return &Indexer{
		root:            root,
		cfg:             cfg,
		logger:          logger,
		codeChunker:     chunk.NewCodeChunker(logger),
		markdownChunker: chunk.NewMarkdownChunker(),
		embedder:        embedder,
		index:           index,
		scanner:         s,
		records:         make(map[string]fileRecord),
		lockPath:        filepath.Join(root, ".codesearch-mcp.lock"),
	}, nil
}

// Close releases chunker resources.
func (ix *Indexer) Close() {
	if c, ok := ix.codeChunker.(interface{ Close() }); ok {
		c.Close()
	}
}

// CountIndexedChunks returns the number of chunks this Indexer has
// recorded as indexed, summed across all files it has seen.
func (ix *Indexer) CountIndexedChunks() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	total := 0
	for _, r := range ix.records {
		total += r.Chunks
	}
	return total
}

// GetStats returns a snapshot of indexed file/chunk counts.
func (ix *Indexer) GetStats() (files int, chunks int) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	total := 0
	for _, r := range ix.records {
		total += r.Chunks
	}
	return len(ix.records), total
}

// IndexDirectory walks root respecting include-extension and exclude-glob
// patterns, indexing every eligible file. Resumable: files whose
// (filePath, lastModified) are already recorded are skipped.
func (ix *Indexer) IndexDirectory(ctx context.Context) (*Stats, error) {
	start := time.Now()
	stats := &Stats{}

	results, err := ix.scanner.Scan(ctx, &scanner.ScanOptions{
		RootDir:          ix.root,
		ExcludePatterns:  ix.cfg.Chunking.ExcludePatterns,
		RespectGitignore: true,
		MaxFileSize:      ix.cfg.Chunking.MaxFileSize,
	})
	if err != nil {
		return nil, amanerrors.ExternalUnavailable("failed to start directory scan", err)
	}

	var files []*scanner.FileInfo
	for r := range results {
		if r.Error != nil {
			stats.fail("", r.Error.Error(), SeverityWarning)
			continue
		}
		if !ix.extensionSupported(r.File.Path) {
			continue
		}
		files = append(files, r.File)
	}
	stats.FilesScanned = len(files)

	workers := config.DefaultIndexWorkers()
	if workers < 1 {
		workers = 1
	}

	var statsMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, f := range files {
		f := f
		ix.mu.Lock()
		rec, seen := ix.records[f.Path]
		ix.mu.Unlock()
		if seen && !f.ModTime.After(rec.ModTime) {
			statsMu.Lock()
			stats.FilesSkipped++
			statsMu.Unlock()
			continue
		}

		g.Go(func() error {
			n, err := ix.indexFileInternal(gctx, f.Path, false)
			statsMu.Lock()
			defer statsMu.Unlock()
			if err != nil {
				if amanerrors.GetKind(err) == amanerrors.KindExternalUnavailable {
					return err // connection failure aborts the run (spec §4.4)
				}
				stats.fail(f.Path, err.Error(), SeverityError)
				return nil
			}
			stats.FilesIndexed++
			stats.ChunksCreated += n
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return stats, err
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

// IndexFile reads, chunks, embeds, and upserts a single file. For a path
// already indexed, chunks are removed-by-filter before the new chunks are
// upserted.
func (ix *Indexer) IndexFile(ctx context.Context, relPath string) ([]*chunk.Chunk, error) {
	_, chunks, err := ix.indexFileWithChunks(ctx, relPath, false)
	return chunks, err
}

// ReindexFile behaves like IndexFile but forces the remove-first step even
// if the file's modification time is unchanged. Guarded by the same
// advisory file lock as ClearIndex so a watcher-driven reindex and a
// tool-RPC-driven one never interleave their remove-then-insert sequence
// for the same file.
func (ix *Indexer) ReindexFile(ctx context.Context, relPath string) ([]*chunk.Chunk, error) {
	fl := flock.New(ix.lockPath)
	locked, err := fl.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil || !locked {
		return nil, amanerrors.ExternalUnavailable("reindexFile: failed to acquire index lock", err)
	}
	defer func() { _ = fl.Unlock() }()

	_, chunks, err := ix.indexFileWithChunks(ctx, relPath, true)
	return chunks, err
}

func (ix *Indexer) indexFileWithChunks(ctx context.Context, relPath string, force bool) (int, []*chunk.Chunk, error) {
	absPath := filepath.Join(ix.root, relPath)
	info, err := os.Stat(absPath)
	if err != nil {
		return 0, nil, amanerrors.NotFound(fmt.Sprintf("file not found: %s", relPath), err)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return 0, nil, amanerrors.ParseFailed(fmt.Sprintf("failed to read %s", relPath), err)
	}

	language := scanner.DetectLanguage(relPath)
	contentType := scanner.DetectContentType(language)

	var chunker chunk.Chunker
	switch contentType {
	case scanner.ContentTypeCode:
		chunker = ix.codeChunker
	case scanner.ContentTypeMarkdown:
		chunker = ix.markdownChunker
	default:
		return 0, nil, nil
	}

	chunks, err := chunker.Chunk(ctx, &chunk.FileInput{
		Path:     relPath,
		Content:  content,
		Language: language,
		ModTime:  info.ModTime(),
		Size:     info.Size(),
	})
	if err != nil {
		// Parser failures degrade to generic chunking inside the chunker
		// itself (spec §4.4); reaching here means something else failed.
		return 0, nil, amanerrors.ParseFailed(fmt.Sprintf("failed to chunk %s", relPath), err)
	}

	ix.mu.Lock()
	_, existing := ix.records[relPath]
	ix.mu.Unlock()

	if existing || force {
		if err := ix.index.DeleteByFilter(ctx, vectorindex.Filter{vectorindex.PayloadFilePath: relPath}); err != nil {
			return 0, nil, amanerrors.ExternalUnavailable(fmt.Sprintf("failed to remove existing chunks for %s", relPath), err)
		}
	}

	if len(chunks) > 0 {
		if err := ix.embedAndUpsert(ctx, chunks); err != nil {
			return 0, nil, err
		}
	}

	ix.mu.Lock()
	ix.records[relPath] = fileRecord{ModTime: info.ModTime(), Chunks: len(chunks)}
	ix.mu.Unlock()

	return len(chunks), chunks, nil
}

func (ix *Indexer) indexFileInternal(ctx context.Context, relPath string, force bool) (int, error) {
	n, _, err := ix.indexFileWithChunks(ctx, relPath, force)
	return n, err
}

// embedAndUpsert embeds chunks in batches of the configured size and
// upserts them, sequentially: chunk -> embed -> upsert is strictly
// ordered within one file (spec §4.4 "Ordering").
func (ix *Indexer) embedAndUpsert(ctx context.Context, chunks []*chunk.Chunk) error {
	batchSize := ix.cfg.Embedding.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	if err := ix.ensureCollectionForSession(ctx); err != nil {
		return err
	}

	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}

		vectors, err := ix.embedder.Embed(ctx, texts, embed.KindDocument)
		if err != nil {
			return amanerrors.ExternalUnavailable("embedding request failed", err)
		}

		points := make([]vectorindex.Point, len(batch))
		for i, c := range batch {
			if len(vectors[i]) != ix.collectionDimension {
				return amanerrors.DimensionMismatch(
					fmt.Sprintf("embedding for chunk %s has dimension %d, expected %d", c.ID, len(vectors[i]), ix.collectionDimension), nil)
			}
			points[i] = vectorindex.Point{
				ID:      c.ID,
				Vector:  vectors[i],
				Payload: chunkPayload(c),
			}
		}

		if err := ix.index.Upsert(ctx, points, false); err != nil {
			return amanerrors.ExternalUnavailable("upsert failed", err)
		}
	}

	return nil
}

// ensureCollectionForSession verifies (once per process) that the
// collection exists with the embedder's current dimension, per spec §4.4
// ("On first upsert of a session the indexer verifies that every vector
// length equals D... If D differs from the existing collection's D, the
// indexer triggers ensureCollection's recreate path").
func (ix *Indexer) ensureCollectionForSession(ctx context.Context) error {
	ix.mu.Lock()
	ready := ix.collectionReady
	ix.mu.Unlock()
	if ready {
		return nil
	}

	dim := ix.embedder.Dimensions()
	if err := ix.index.EnsureCollection(ctx, dim); err != nil {
		return amanerrors.ExternalUnavailable("failed to ensure collection", err)
	}
	if err := ix.index.EnsurePayloadIndexes(ctx); err != nil {
		return amanerrors.ExternalUnavailable("failed to ensure payload indexes", err)
	}

	ix.mu.Lock()
	ix.collectionReady = true
	ix.collectionDimension = dim
	ix.mu.Unlock()
	return nil
}

// RemoveFile deletes every chunk whose filePath equals relPath.
func (ix *Indexer) RemoveFile(ctx context.Context, relPath string) error {
	if err := ix.index.DeleteByFilter(ctx, vectorindex.Filter{vectorindex.PayloadFilePath: relPath}); err != nil {
		return amanerrors.ExternalUnavailable(fmt.Sprintf("failed to remove %s", relPath), err)
	}
	ix.mu.Lock()
	delete(ix.records, relPath)
	ix.mu.Unlock()
	return nil
}

// ClearIndex deletes every point in the collection. Guarded by an
// advisory file lock so a concurrent watcher-driven index operation
// cannot interleave with the wipe.
func (ix *Indexer) ClearIndex(ctx context.Context) error {
	fl := flock.New(ix.lockPath)
	locked, err := fl.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil || !locked {
		return amanerrors.ExternalUnavailable("clearIndex: failed to acquire index lock", err)
	}
	defer func() { _ = fl.Unlock() }()

	if err := ix.index.DeleteByFilter(ctx, vectorindex.Filter{}); err != nil {
		return amanerrors.ExternalUnavailable("failed to clear index", err)
	}

	ix.mu.Lock()
	ix.records = make(map[string]fileRecord)
	ix.collectionReady = false
	ix.mu.Unlock()
	return nil
}

func (ix *Indexer) extensionSupported(relPath string) bool {
	ext := filepath.Ext(relPath)
	for _, e := range ix.cfg.Chunking.SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}
