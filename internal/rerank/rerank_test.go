package rerank

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/codesearch-mcp/internal/retrieval"
)

type fakeClient struct {
	response string
	err      error
	delay    time.Duration
}

func (f *fakeClient) Complete(ctx context.Context, prompt string) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.response, f.err
}

func candidates(ids ...string) []retrieval.SearchResult {
	out := make([]retrieval.SearchResult, len(ids))
	for i, id := range ids {
		out[i] = retrieval.SearchResult{ID: id, Score: 1.0 - float64(i)*0.1}
	}
	return out
}

func TestRerank_AppliesParsedPermutation(t *testing.T) {
	client := &fakeClient{response: `here is my answer: {"rankedIndices": [2, 0, 1]}`}
	r := New(client, time.Second, 3)

	out := r.Rerank(context.Background(), "query", candidates("a", "b", "c"))
	require.Len(t, out, 3)
	assert.Equal(t, "c", out[0].ID)
	assert.Equal(t, "a", out[1].ID)
	assert.Equal(t, "b", out[2].ID)

	assert.True(t, *out[0].RerankedScore > *out[1].RerankedScore)
	assert.True(t, *out[1].RerankedScore > *out[2].RerankedScore)
}

func TestRerank_FallsBackToInputOrderOnParseFailure(t *testing.T) {
	client := &fakeClient{response: "not json at all"}
	r := New(client, time.Second, 3)

	out := r.Rerank(context.Background(), "query", candidates("a", "b"))
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "b", out[1].ID)
	assert.Equal(t, DefaultConfidence, out[0].Score)
	assert.Equal(t, DefaultConfidence, out[1].Score)
}

func TestRerank_FallsBackToInputOrderOnTransportError(t *testing.T) {
	client := &fakeClient{err: errors.New("connection refused")}
	r := New(client, time.Second, 3)

	out := r.Rerank(context.Background(), "query", candidates("a", "b"))
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "b", out[1].ID)
}

func TestRerank_EnforcesHardTimeout(t *testing.T) {
	client := &fakeClient{response: `{"rankedIndices":[0]}`, delay: 50 * time.Millisecond}
	r := New(client, 10*time.Millisecond, 3)

	start := time.Now()
	out := r.Rerank(context.Background(), "query", candidates("a", "b"))
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 40*time.Millisecond)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID, "timeout should fall back to input order")
}

func TestRerank_FillsUnusedSlotsFromRemainingCandidates(t *testing.T) {
	client := &fakeClient{response: `{"rankedIndices":[1]}`}
	r := New(client, time.Second, 0) // maxResults=0 means no cap

	out := r.Rerank(context.Background(), "query", candidates("a", "b", "c"))
	require.Len(t, out, 3)
	assert.Equal(t, "b", out[0].ID)
	// remaining candidates fill in original order, skipping the used index
	assert.Equal(t, "a", out[1].ID)
	assert.Equal(t, "c", out[2].ID)
}

func TestRerank_IgnoresOutOfRangeAndDuplicateIndices(t *testing.T) {
	client := &fakeClient{response: `{"rankedIndices":[5, 1, 1, -1]}`}
	r := New(client, time.Second, 2)

	out := r.Rerank(context.Background(), "query", candidates("a", "b"))
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].ID)
	assert.Equal(t, "a", out[1].ID)
}

func TestRerank_EmptyCandidatesReturnsEmpty(t *testing.T) {
	client := &fakeClient{response: `{"rankedIndices":[0]}`}
	r := New(client, time.Second, 3)

	out := r.Rerank(context.Background(), "query", nil)
	assert.Empty(t, out)
}
