package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeEmbedder_DeterministicAndNormalized(t *testing.T) {
	e := NewFakeEmbedder("fake", 16)

	v1, err := e.Embed(context.Background(), []string{"hello"}, KindDocument)
	require.NoError(t, err)
	v2, err := e.Embed(context.Background(), []string{"hello"}, KindDocument)
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Len(t, v1[0], 16)

	var sumSquares float64
	for _, f := range v1[0] {
		sumSquares += float64(f) * float64(f)
	}
	assert.InDelta(t, 1.0, sumSquares, 1e-3)
}

func TestFakeEmbedder_DifferentKindDifferentVector(t *testing.T) {
	e := NewFakeEmbedder("fake", 16)

	docVec, err := e.Embed(context.Background(), []string{"same"}, KindDocument)
	require.NoError(t, err)
	queryVec, err := e.Embed(context.Background(), []string{"same"}, KindQuery)
	require.NoError(t, err)

	assert.NotEqual(t, docVec, queryVec)
}

func TestFakeEmbedder_Lifecycle(t *testing.T) {
	e := NewFakeEmbedder("fake", 8)
	assert.True(t, e.Available(context.Background()))
	require.NoError(t, e.Close())
	assert.False(t, e.Available(context.Background()))
}
