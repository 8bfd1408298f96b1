// Package vectorindex implements the vector index capability (collections,
// points, filtered search, payload indexes) against Qdrant.
package vectorindex

import (
	"context"
	"sync"
	"time"
)

// Distance metric used for the collection. Qdrant is the only backend this
// package targets, so cosine is the only value exercised today.
const Distance = "cosine"

// Payload keys that carry keyword indexes for filtering, per spec §4.3.
const (
	PayloadChunkType = "chunkType"
	PayloadLanguage  = "language"
	PayloadFilePath  = "filePath"
	PayloadFileKind  = "fileKind"
)

// Point is a single vector + payload to upsert.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// Filter is a conjunction of field-equality predicates.
type Filter map[string]any

// SearchOptions configures a similarity search.
type SearchOptions struct {
	Limit          int
	ScoreThreshold float32 // 0 means unset
	Filter         Filter
	WithPayload    bool
}

// Hit is one search or scroll result.
type Hit struct {
	ID      string
	Score   float32 // cosine similarity, higher is better
	Vector  []float32
	Payload map[string]any
}

// ScrollPage is one page of a cursor-paginated scroll.
type ScrollPage struct {
	Hits       []Hit
	NextOffset string // empty when exhausted
}

// Index is the vector index capability's contract (spec §4.3). Every
// operation records its latency into a bounded ring for observability.
type Index interface {
	// EnsureCollection creates the collection if absent. If it exists with a
	// different dimension, it is deleted and recreated (all data lost).
	EnsureCollection(ctx context.Context, dimension int) error

	// EnsurePayloadIndexes creates keyword indexes on the fixed metadata
	// fields used for filtering. Idempotent.
	EnsurePayloadIndexes(ctx context.Context) error

	// Upsert writes points in batches of at most MaxUpsertBatch. Any point
	// whose vector length differs from the collection's dimension is
	// rejected without partially applying the batch it belongs to.
	Upsert(ctx context.Context, points []Point, wait bool) error

	DeleteByFilter(ctx context.Context, filter Filter) error
	DeleteByIDs(ctx context.Context, ids []string) error

	Search(ctx context.Context, vector []float32, opts SearchOptions) ([]Hit, error)

	// Scroll pages through all points matching filter (nil means no
	// filter). Pass the previous page's NextOffset to continue; empty
	// string starts from the beginning.
	Scroll(ctx context.Context, filter Filter, pageSize int, offset string) (ScrollPage, error)

	// Stats reports recent per-call latency, grouped by operation name.
	Stats() LatencyStats

	Close() error
}

// MaxUpsertBatch is the largest batch Upsert will send in a single call
// (spec §4.3: "batch size ≤256").
const MaxUpsertBatch = 256

// latencyRingSize bounds the observability ring kept per operation.
const latencyRingSize = 256

// latencyRing is a fixed-capacity ring buffer of call durations for one
// operation name, used only for observability (p50/p99-style reporting),
// never for control flow.
type latencyRing struct {
	mu     sync.Mutex
	durs   [latencyRingSize]time.Duration
	next   int
	filled int
}

func (r *latencyRing) record(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.durs[r.next] = d
	r.next = (r.next + 1) % latencyRingSize
	if r.filled < latencyRingSize {
		r.filled++
	}
}

func (r *latencyRing) snapshot() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Duration, r.filled)
	copy(out, r.durs[:r.filled])
	return out
}

// LatencyStats summarizes recent call latency per operation.
type LatencyStats map[string]OperationLatency

// OperationLatency reports sample count and simple aggregates for one
// operation's recent calls.
type OperationLatency struct {
	Samples int
	Mean    time.Duration
	Max     time.Duration
}

// latencyTracker is embedded by Index implementations to record and report
// per-operation latency without duplicating ring bookkeeping.
type latencyTracker struct {
	mu    sync.Mutex
	rings map[string]*latencyRing
}

func newLatencyTracker() *latencyTracker {
	return &latencyTracker{rings: make(map[string]*latencyRing)}
}

func (t *latencyTracker) track(op string) func() {
	start := time.Now()
	return func() {
		t.mu.Lock()
		r, ok := t.rings[op]
		if !ok {
			r = &latencyRing{}
			t.rings[op] = r
		}
		t.mu.Unlock()
		r.record(time.Since(start))
	}
}

func (t *latencyTracker) stats() LatencyStats {
	t.mu.Lock()
	rings := make(map[string]*latencyRing, len(t.rings))
	for op, r := range t.rings {
		rings[op] = r
	}
	t.mu.Unlock()

	out := make(LatencyStats, len(rings))
	for op, r := range rings {
		samples := r.snapshot()
		if len(samples) == 0 {
			continue
		}
		var sum, max time.Duration
		for _, d := range samples {
			sum += d
			if d > max {
				max = d
			}
		}
		out[op] = OperationLatency{
			Samples: len(samples),
			Mean:    sum / time.Duration(len(samples)),
			Max:     max,
		}
	}
	return out
}
