package sparse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/codesearch-mcp/internal/retrieval"
	"github.com/Aman-CERP/codesearch-mcp/internal/vectorindex"
)

func point(id, content, filePath, language, chunkType, fileKind string) vectorindex.Point {
	return vectorindex.Point{
		ID:     id,
		Vector: []float32{0.1, 0.2},
		Payload: map[string]any{
			"content":                     content,
			vectorindex.PayloadFilePath:   filePath,
			vectorindex.PayloadLanguage:   language,
			vectorindex.PayloadChunkType:  chunkType,
			vectorindex.PayloadFileKind:   fileKind,
			"startLine":                   1,
			"endLine":                     10,
		},
	}
}

func TestScorer_ScoresBySubstringOccurrenceCount(t *testing.T) {
	idx := vectorindex.NewFakeIndex()
	require.NoError(t, idx.EnsureCollection(context.Background(), 2))
	require.NoError(t, idx.Upsert(context.Background(), []vectorindex.Point{
		point("a", "token token other", "a.go", "go", "function", "code"),
		point("b", "token once", "b.go", "go", "function", "code"),
		point("c", "nothing relevant", "c.go", "go", "function", "code"),
	}, false))

	s := New(idx, time.Second, 100)
	results, err := s.Score(context.Background(), retrieval.Query{Text: "token", Limit: 10}.WithDefaults())
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, 2.0, results[0].Score)
	assert.Equal(t, "b", results[1].ID)
	assert.Equal(t, 1.0, results[1].Score)
}

func TestScorer_AppliesPostScoringFilters(t *testing.T) {
	idx := vectorindex.NewFakeIndex()
	require.NoError(t, idx.EnsureCollection(context.Background(), 2))
	require.NoError(t, idx.Upsert(context.Background(), []vectorindex.Point{
		point("go-chunk", "parse tokens here", "a.go", "go", "function", "code"),
		point("py-chunk", "parse tokens here", "a.py", "python", "function", "code"),
	}, false))

	s := New(idx, time.Second, 100)
	q := retrieval.Query{Text: "parse tokens", Language: "python", Limit: 10}.WithDefaults()
	results, err := s.Score(context.Background(), q)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "py-chunk", results[0].ID)
}

func TestScorer_TruncatesToLimit(t *testing.T) {
	idx := vectorindex.NewFakeIndex()
	require.NoError(t, idx.EnsureCollection(context.Background(), 2))
	pts := make([]vectorindex.Point, 0, 5)
	for i := 0; i < 5; i++ {
		pts = append(pts, point(string(rune('a'+i)), "match match match", "f.go", "go", "function", "code"))
	}
	require.NoError(t, idx.Upsert(context.Background(), pts, false))

	s := New(idx, time.Second, 100)
	results, err := s.Score(context.Background(), retrieval.Query{Text: "match", Limit: 2}.WithDefaults())
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestScorer_NoMatchingTokensReturnsEmpty(t *testing.T) {
	idx := vectorindex.NewFakeIndex()
	require.NoError(t, idx.EnsureCollection(context.Background(), 2))
	require.NoError(t, idx.Upsert(context.Background(), []vectorindex.Point{
		point("a", "irrelevant content", "a.go", "go", "function", "code"),
	}, false))

	s := New(idx, time.Second, 100)
	results, err := s.Score(context.Background(), retrieval.Query{Text: "zzzznotpresent", Limit: 10}.WithDefaults())
	require.NoError(t, err)
	assert.Empty(t, results)
}
