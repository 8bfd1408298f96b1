package watcher

import (
	"context"
	"log/slog"
	"sync"
)

// IndexerHandler is the subset of the indexer (C4) that the watcher's task
// queue dispatches to. Defined locally so this package depends only on the
// shape it needs, not the concrete indexer type.
type IndexerHandler interface {
	IndexFile(ctx context.Context, relPath string) error
	ReindexFile(ctx context.Context, relPath string) error
	RemoveFile(ctx context.Context, relPath string) error
	HandleGitignoreChange(ctx context.Context, relPath string) error
	ReloadConfig(ctx context.Context) error
}

// Service wires a HybridWatcher's debounced events into a bounded-
// concurrency TaskQueue that drives the indexer, implementing the full
// watcher + task queue capability (spec §4.5).
type Service struct {
	opts    Options
	indexer IndexerHandler
	logger  *slog.Logger

	mu      sync.Mutex
	watcher *HybridWatcher
	queue   *TaskQueue
	root    string
	ctx     context.Context
	stopped bool
}

// NewService creates a watcher service for the given project root. Start
// must be called to begin watching.
func NewService(opts Options, indexer IndexerHandler, logger *slog.Logger) (*Service, error) {
	opts = opts.WithDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{opts: opts, indexer: indexer, logger: logger}
	return s, nil
}

// Start begins watching root and dispatching debounced events through the
// task queue to the indexer.
func (s *Service) Start(ctx context.Context, root string) error {
	s.mu.Lock()
	s.root = root
	s.ctx = ctx
	s.mu.Unlock()

	return s.startWatcherLocked(ctx, root)
}

func (s *Service) startWatcherLocked(ctx context.Context, root string) error {
	w, err := NewHybridWatcher(s.opts)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.watcher = w
	q := NewTaskQueue(s.opts.QueueConcurrency, s.handle, s.logger)
	q.OnCrash(func(taskID string, r any) {
		s.logger.Error("watcher task queue worker crashed",
			slog.String("task_id", taskID))
		if s.opts.AutoRestart {
			go s.restart()
		}
	})
	s.queue = q
	s.mu.Unlock()

	q.Start(ctx)
	go s.forward(ctx, w)

	return w.Start(ctx, root)
}

// forward drains the watcher's batched, debounced events into the task
// queue one event at a time, preserving the batch's emission order.
func (s *Service) forward(ctx context.Context, w *HybridWatcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-w.Events():
			if !ok {
				return
			}
			s.mu.Lock()
			q := s.queue
			s.mu.Unlock()
			if q == nil {
				continue
			}
			for _, ev := range batch {
				q.Enqueue(ev)
			}
		}
	}
}

// handle dispatches a single debounced event to the indexer, mirroring the
// teacher coordinator's event-to-operation switch.
func (s *Service) handle(ctx context.Context, event FileEvent) error {
	if event.IsDir {
		return nil
	}
	switch event.Operation {
	case OpCreate, OpModify:
		return s.indexer.IndexFile(ctx, event.Path)
	case OpDelete, OpRename:
		// A rename arrives as RENAME on the old path plus CREATE on the new
		// one, so the old path is removed like a delete.
		return s.indexer.RemoveFile(ctx, event.Path)
	case OpGitignoreChange:
		return s.indexer.HandleGitignoreChange(ctx, event.Path)
	case OpConfigChange:
		return s.indexer.ReloadConfig(ctx)
	default:
		return nil
	}
}

// restart replaces the underlying watcher after a task queue crash,
// leaving the existing queue (and its pending tasks) untouched, per spec
// §4.5 ("restarts the watcher. Pending tasks in the queue are retained").
func (s *Service) restart() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	old := s.watcher
	ctx := s.ctx
	root := s.root
	s.mu.Unlock()

	if old != nil {
		_ = old.Stop()
	}

	w, err := NewHybridWatcher(s.opts)
	if err != nil {
		s.logger.Error("failed to restart watcher", slog.String("error", err.Error()))
		return
	}

	s.mu.Lock()
	s.watcher = w
	s.mu.Unlock()

	go s.forward(ctx, w)
	if err := w.Start(ctx, root); err != nil {
		s.logger.Error("restarted watcher exited", slog.String("error", err.Error()))
	}
}

// Stop stops the watcher and drains the task queue.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	w := s.watcher
	q := s.queue
	s.mu.Unlock()

	if w != nil {
		_ = w.Stop()
	}
	if q != nil {
		q.Stop()
	}
}

// QueueResults exposes recent task outcomes. The MCP tools
// (get_indexing_stats, get_health_status) do not call it.
func (s *Service) QueueResults() []TaskResult {
	s.mu.Lock()
	q := s.queue
	s.mu.Unlock()
	if q == nil {
		return nil
	}
	return q.Results()
}

// QueuePending returns the number of tasks waiting to be dispatched.
func (s *Service) QueuePending() int {
	s.mu.Lock()
	q := s.queue
	s.mu.Unlock()
	if q == nil {
		return 0
	}
	return q.Pending()
}
