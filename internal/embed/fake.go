package embed

import (
	"context"
	"hash/fnv"
)

// FakeEmbedder is a deterministic, in-process Embedder used in tests and
// as a recording stand-in for the vector index/indexer test suites — no
// network calls, no API key. Vectors are derived from a text hash so
// identical input always yields identical output.
type FakeEmbedder struct {
	model  string
	dims   int
	closed bool
}

var _ Embedder = (*FakeEmbedder)(nil)

// NewFakeEmbedder creates a fake embedder for the given model/dimension.
func NewFakeEmbedder(model string, dims int) *FakeEmbedder {
	if dims <= 0 {
		dims = 32
	}
	return &FakeEmbedder{model: model, dims: dims}
}

func (f *FakeEmbedder) Embed(ctx context.Context, texts []string, kind Kind) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = normalizeVector(deterministicVector(text+string(kind), f.dims))
	}
	return out, nil
}

func (f *FakeEmbedder) Dimensions() int                   { return f.dims }
func (f *FakeEmbedder) ModelName() string                 { return f.model }
func (f *FakeEmbedder) Available(ctx context.Context) bool { return !f.closed }
func (f *FakeEmbedder) Close() error                      { f.closed = true; return nil }

// deterministicVector expands a FNV hash of text into a fixed-length
// pseudo-random vector via a simple linear congruential walk.
func deterministicVector(text string, dims int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, dims)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed>>40)%2000-1000) / 1000.0
	}
	return vec
}
