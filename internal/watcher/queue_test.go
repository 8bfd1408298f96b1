package watcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskQueue_ProcessesEnqueuedTask(t *testing.T) {
	var handled atomic.Int32
	q := NewTaskQueue(1, func(ctx context.Context, e FileEvent) error {
		handled.Add(1)
		return nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	q.Enqueue(FileEvent{Path: "a.go", Operation: OpCreate})

	require.Eventually(t, func() bool { return handled.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
}

func TestTaskQueue_PreservesEnqueueOrderWithSingleWorker(t *testing.T) {
	var mu sync.Mutex
	var order []string

	q := NewTaskQueue(1, func(ctx context.Context, e FileEvent) error {
		mu.Lock()
		order = append(order, e.Path)
		mu.Unlock()
		return nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	for i := 0; i < 5; i++ {
		q.Enqueue(FileEvent{Path: fmt.Sprintf("file-%d.go", i), Operation: OpModify})
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 5
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i, path := range order {
		assert.Equal(t, fmt.Sprintf("file-%d.go", i), path)
	}
}

func TestTaskQueue_ConcurrencyBoundsActiveWorkers(t *testing.T) {
	const concurrency = 2
	var active atomic.Int32
	var maxActive atomic.Int32
	release := make(chan struct{})

	q := NewTaskQueue(concurrency, func(ctx context.Context, e FileEvent) error {
		n := active.Add(1)
		for {
			cur := maxActive.Load()
			if n <= cur || maxActive.CompareAndSwap(cur, n) {
				break
			}
		}
		<-release
		active.Add(-1)
		return nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	for i := 0; i < 6; i++ {
		q.Enqueue(FileEvent{Path: fmt.Sprintf("file-%d.go", i), Operation: OpModify})
	}

	require.Eventually(t, func() bool { return active.Load() == concurrency }, time.Second, 5*time.Millisecond)
	close(release)

	assert.LessOrEqual(t, int(maxActive.Load()), concurrency)
}

func TestTaskQueue_RecordsFailureWithoutStoppingWorker(t *testing.T) {
	q := NewTaskQueue(1, func(ctx context.Context, e FileEvent) error {
		if e.Path == "bad.go" {
			return assertError("boom")
		}
		return nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	q.Enqueue(FileEvent{Path: "bad.go", Operation: OpModify})
	q.Enqueue(FileEvent{Path: "good.go", Operation: OpModify})

	require.Eventually(t, func() bool { return len(q.Results()) == 2 }, time.Second, 5*time.Millisecond)

	results := q.Results()
	assert.Equal(t, OutcomeFailed, results[0].Outcome)
	assert.Equal(t, OutcomeSucceeded, results[1].Outcome)
}

func TestTaskQueue_RecoversFromPanickingTask(t *testing.T) {
	var crashed atomic.Bool
	q := NewTaskQueue(1, func(ctx context.Context, e FileEvent) error {
		if e.Path == "panics.go" {
			panic("simulated crash")
		}
		return nil
	}, nil)
	q.OnCrash(func(taskID string, r any) { crashed.Store(true) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	q.Enqueue(FileEvent{Path: "panics.go", Operation: OpModify})
	q.Enqueue(FileEvent{Path: "after.go", Operation: OpModify})

	require.Eventually(t, func() bool { return len(q.Results()) == 2 }, time.Second, 5*time.Millisecond)

	assert.True(t, crashed.Load())
	results := q.Results()
	assert.Equal(t, OutcomeFailed, results[0].Outcome)
	assert.Equal(t, OutcomeSucceeded, results[1].Outcome)
}

func TestTaskQueue_StopClearsQueuedTasks(t *testing.T) {
	block := make(chan struct{})
	var started atomic.Int32

	q := NewTaskQueue(1, func(ctx context.Context, e FileEvent) error {
		started.Add(1)
		<-block
		return nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	q.Enqueue(FileEvent{Path: "in-flight.go", Operation: OpModify})
	require.Eventually(t, func() bool { return started.Load() == 1 }, time.Second, 5*time.Millisecond)

	q.Enqueue(FileEvent{Path: "never-runs.go", Operation: OpModify})
	require.Equal(t, 1, q.Pending())

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(block)
	}()
	q.Stop()

	results := q.Results()
	require.Len(t, results, 2)

	byPath := make(map[string]TaskOutcome)
	for _, r := range results {
		byPath[r.Event.Path] = r.Outcome
	}
	assert.Equal(t, OutcomeSucceeded, byPath["in-flight.go"])
	assert.Equal(t, OutcomeQueueCleared, byPath["never-runs.go"])
}

func TestTaskQueue_TaskIDFormat(t *testing.T) {
	id := taskID(FileEvent{Path: "src/main.go", Operation: OpModify})
	assert.Equal(t, "modify:src/main.go", id)
}

type assertError string

func (e assertError) Error() string { return string(e) }
