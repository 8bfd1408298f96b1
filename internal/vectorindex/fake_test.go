package vectorindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeIndex_UpsertAndSearch(t *testing.T) {
	idx := NewFakeIndex()
	ctx := context.Background()
	require.NoError(t, idx.EnsureCollection(ctx, 3))

	require.NoError(t, idx.Upsert(ctx, []Point{
		{ID: "a", Vector: []float32{1, 0, 0}, Payload: map[string]any{"filePath": "a.go"}},
		{ID: "b", Vector: []float32{0, 1, 0}, Payload: map[string]any{"filePath": "b.go"}},
	}, false))

	hits, err := idx.Search(ctx, []float32{1, 0, 0}, SearchOptions{Limit: 10, WithPayload: true})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Equal(t, "a.go", hits[0].Payload["filePath"])
}

func TestFakeIndex_DimensionMismatchRejected(t *testing.T) {
	idx := NewFakeIndex()
	ctx := context.Background()
	require.NoError(t, idx.EnsureCollection(ctx, 3))

	err := idx.Upsert(ctx, []Point{{ID: "a", Vector: []float32{1, 0}}}, false)
	assert.ErrorContains(t, err, "dimension_mismatch")
}

func TestFakeIndex_EnsureCollectionRecreateClearsOnDimensionChange(t *testing.T) {
	idx := NewFakeIndex()
	ctx := context.Background()
	require.NoError(t, idx.EnsureCollection(ctx, 3))
	require.NoError(t, idx.Upsert(ctx, []Point{{ID: "a", Vector: []float32{1, 0, 0}}}, false))
	assert.Equal(t, 1, idx.Count())

	require.NoError(t, idx.EnsureCollection(ctx, 4))
	assert.Equal(t, 0, idx.Count())
}

func TestFakeIndex_SearchFilterAndThreshold(t *testing.T) {
	idx := NewFakeIndex()
	ctx := context.Background()
	require.NoError(t, idx.EnsureCollection(ctx, 2))
	require.NoError(t, idx.Upsert(ctx, []Point{
		{ID: "go-file", Vector: []float32{1, 0}, Payload: map[string]any{"language": "go"}},
		{ID: "py-file", Vector: []float32{0.9, 0.1}, Payload: map[string]any{"language": "python"}},
	}, false))

	hits, err := idx.Search(ctx, []float32{1, 0}, SearchOptions{Limit: 10, Filter: Filter{"language": "python"}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "py-file", hits[0].ID)

	hits, err = idx.Search(ctx, []float32{1, 0}, SearchOptions{Limit: 10, ScoreThreshold: 0.995})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "go-file", hits[0].ID)
}

func TestFakeIndex_DeleteByFilterAndByIDs(t *testing.T) {
	idx := NewFakeIndex()
	ctx := context.Background()
	require.NoError(t, idx.EnsureCollection(ctx, 2))
	require.NoError(t, idx.Upsert(ctx, []Point{
		{ID: "a", Vector: []float32{1, 0}, Payload: map[string]any{"filePath": "a.go"}},
		{ID: "b", Vector: []float32{0, 1}, Payload: map[string]any{"filePath": "b.go"}},
		{ID: "c", Vector: []float32{1, 1}, Payload: map[string]any{"filePath": "a.go"}},
	}, false))

	require.NoError(t, idx.DeleteByFilter(ctx, Filter{"filePath": "a.go"}))
	assert.Equal(t, 1, idx.Count())

	require.NoError(t, idx.DeleteByIDs(ctx, []string{"b"}))
	assert.Equal(t, 0, idx.Count())
}

func TestFakeIndex_ScrollPaginatesAllPoints(t *testing.T) {
	idx := NewFakeIndex()
	ctx := context.Background()
	require.NoError(t, idx.EnsureCollection(ctx, 1))

	var points []Point
	for i := 0; i < 5; i++ {
		points = append(points, Point{ID: string(rune('a' + i)), Vector: []float32{float32(i)}})
	}
	require.NoError(t, idx.Upsert(ctx, points, false))

	seen := map[string]bool{}
	offset := ""
	for {
		page, err := idx.Scroll(ctx, nil, 2, offset)
		require.NoError(t, err)
		for _, h := range page.Hits {
			seen[h.ID] = true
		}
		if page.NextOffset == "" {
			break
		}
		offset = page.NextOffset
	}
	assert.Len(t, seen, 5)
}

func TestFakeIndex_StatsRecordsCalls(t *testing.T) {
	idx := NewFakeIndex()
	ctx := context.Background()
	require.NoError(t, idx.EnsureCollection(ctx, 2))
	_, _ = idx.Search(ctx, []float32{1, 0}, SearchOptions{Limit: 5})

	stats := idx.Stats()
	require.Contains(t, stats, "search")
	assert.Equal(t, 1, stats["search"].Samples)
}
