package indexer

import "context"

// WatcherHandler adapts an Indexer to the watcher package's IndexerHandler
// interface, dropping the chunk slice that Indexer's own API returns for
// direct (tool-RPC) callers but that the watcher's task queue has no use
// for.
type WatcherHandler struct {
	ix *Indexer
}

// NewWatcherHandler wraps ix for use as a watcher.IndexerHandler.
func NewWatcherHandler(ix *Indexer) *WatcherHandler {
	return &WatcherHandler{ix: ix}
}

func (h *WatcherHandler) IndexFile(ctx context.Context, relPath string) error {
	_, err := h.ix.IndexFile(ctx, relPath)
	return err
}

func (h *WatcherHandler) ReindexFile(ctx context.Context, relPath string) error {
	_, err := h.ix.ReindexFile(ctx, relPath)
	return err
}

func (h *WatcherHandler) RemoveFile(ctx context.Context, relPath string) error {
	return h.ix.RemoveFile(ctx, relPath)
}

// HandleGitignoreChange reconciles the index against the updated ignore
// rules by re-walking the directory; newly eligible files are picked up
// by the normal resumable scan. Removing now-ignored files is left to an
// explicit clear_index/reindex_directory call, since distinguishing
// "ignored" from "deleted" chunks would require walking the whole
// collection on every .gitignore edit.
func (h *WatcherHandler) HandleGitignoreChange(ctx context.Context, relPath string) error {
	_, err := h.ix.IndexDirectory(ctx)
	return err
}

// ReloadConfig is a no-op: Indexer holds its *config.Config by reference,
// so a config file reload performed by the caller is visible on the next
// operation without any action here.
func (h *WatcherHandler) ReloadConfig(ctx context.Context) error {
	return nil
}
