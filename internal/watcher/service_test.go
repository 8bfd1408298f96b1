package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeIndexerHandler struct {
	mu       sync.Mutex
	indexed  []string
	removed  []string
	reindexed []string
	gitignoreReconciled int
	configReloaded      int
}

func (f *fakeIndexerHandler) IndexFile(ctx context.Context, relPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, relPath)
	return nil
}

func (f *fakeIndexerHandler) ReindexFile(ctx context.Context, relPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reindexed = append(f.reindexed, relPath)
	return nil
}

func (f *fakeIndexerHandler) RemoveFile(ctx context.Context, relPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, relPath)
	return nil
}

func (f *fakeIndexerHandler) HandleGitignoreChange(ctx context.Context, relPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gitignoreReconciled++
	return nil
}

func (f *fakeIndexerHandler) ReloadConfig(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configReloaded++
	return nil
}

func (f *fakeIndexerHandler) snapshot() (indexed, removed []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.indexed...), append([]string(nil), f.removed...)
}

func TestService_DispatchesDebouncedEventsToIndexer(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package main\n"), 0o644))

	handler := &fakeIndexerHandler{}
	opts := DefaultOptions()
	opts.DebounceWindow = 20 * time.Millisecond
	opts.QueueConcurrency = 1

	svc, err := NewService(opts, handler, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = svc.Start(ctx, root) }()
	defer svc.Stop()

	time.Sleep(50 * time.Millisecond) // let the watcher finish its initial setup

	require.NoError(t, os.WriteFile(filepath.Join(root, "b.go"), []byte("package main\n\nfunc B() {}\n"), 0o644))

	require.Eventually(t, func() bool {
		indexed, _ := handler.snapshot()
		for _, p := range indexed {
			if p == "b.go" {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)
}
