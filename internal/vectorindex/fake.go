package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// FakeIndex is an in-memory Index for indexer/hybrid/rerank tests. It
// implements the same filter/threshold/pagination semantics as
// QdrantIndex without a network dependency.
type FakeIndex struct {
	mu        sync.Mutex
	dimension int
	points    map[string]Point
	order     []string // insertion order, used for stable scroll pagination

	*latencyTracker
}

var _ Index = (*FakeIndex)(nil)

// NewFakeIndex returns an empty fake index.
func NewFakeIndex() *FakeIndex {
	return &FakeIndex{
		points:         make(map[string]Point),
		latencyTracker: newLatencyTracker(),
	}
}

func (f *FakeIndex) EnsureCollection(ctx context.Context, dimension int) error {
	defer f.track("ensure_collection")()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dimension != 0 && f.dimension != dimension {
		f.points = make(map[string]Point)
		f.order = nil
	}
	f.dimension = dimension
	return nil
}

func (f *FakeIndex) EnsurePayloadIndexes(ctx context.Context) error {
	defer f.track("ensure_payload_indexes")()
	return nil
}

func (f *FakeIndex) Upsert(ctx context.Context, points []Point, wait bool) error {
	defer f.track("upsert")()
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, p := range points {
		if f.dimension != 0 && len(p.Vector) != f.dimension {
			return fmt.Errorf("vectorindex: point %s: dimension_mismatch: expected %d, got %d", p.ID, f.dimension, len(p.Vector))
		}
	}
	for _, p := range points {
		if _, exists := f.points[p.ID]; !exists {
			f.order = append(f.order, p.ID)
		}
		f.points[p.ID] = p
	}
	return nil
}

func (f *FakeIndex) DeleteByFilter(ctx context.Context, filter Filter) error {
	defer f.track("delete_by_filter")()
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, p := range f.points {
		if matchesFilter(p.Payload, filter) {
			delete(f.points, id)
		}
	}
	f.compactOrder()
	return nil
}

func (f *FakeIndex) DeleteByIDs(ctx context.Context, ids []string) error {
	defer f.track("delete_by_ids")()
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, id := range ids {
		delete(f.points, id)
	}
	f.compactOrder()
	return nil
}

func (f *FakeIndex) compactOrder() {
	kept := f.order[:0]
	for _, id := range f.order {
		if _, ok := f.points[id]; ok {
			kept = append(kept, id)
		}
	}
	f.order = kept
}

func (f *FakeIndex) Search(ctx context.Context, vector []float32, opts SearchOptions) ([]Hit, error) {
	defer f.track("search")()
	f.mu.Lock()
	defer f.mu.Unlock()

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	hits := make([]Hit, 0, len(f.points))
	for _, p := range f.points {
		if !matchesFilter(p.Payload, opts.Filter) {
			continue
		}
		score := cosineSimilarity(vector, p.Vector)
		if opts.ScoreThreshold > 0 && score < opts.ScoreThreshold {
			continue
		}
		hit := Hit{ID: p.ID, Score: score}
		if opts.WithPayload {
			hit.Payload = p.Payload
		}
		hits = append(hits, hit)
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (f *FakeIndex) Scroll(ctx context.Context, filter Filter, pageSize int, offset string) (ScrollPage, error) {
	defer f.track("scroll")()
	f.mu.Lock()
	defer f.mu.Unlock()

	if pageSize <= 0 {
		pageSize = 1000
	}

	start := 0
	if offset != "" {
		for i, id := range f.order {
			if id == offset {
				start = i
				break
			}
		}
	}

	var hits []Hit
	end := start
	for end < len(f.order) && len(hits) < pageSize {
		p := f.points[f.order[end]]
		end++
		if !matchesFilter(p.Payload, filter) {
			continue
		}
		hits = append(hits, Hit{ID: p.ID, Vector: p.Vector, Payload: p.Payload})
	}

	next := ""
	if end < len(f.order) {
		next = f.order[end]
	}
	return ScrollPage{Hits: hits, NextOffset: next}, nil
}

func (f *FakeIndex) Stats() LatencyStats { return f.latencyTracker.stats() }

func (f *FakeIndex) Close() error { return nil }

// Count returns the number of live points, for tests.
func (f *FakeIndex) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.points)
}

func matchesFilter(payload map[string]any, filter Filter) bool {
	for k, v := range filter {
		if payload[k] != v {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
