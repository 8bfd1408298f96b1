// Package embed produces dense vector embeddings for chunk and query text
// against an external embedding provider.
package embed

import (
	"context"
	"math"
	"time"
)

// Kind distinguishes the two embedding input types the wire contract
// accepts; providers may apply different instruction prefixes per kind.
type Kind string

const (
	KindDocument Kind = "document"
	KindQuery    Kind = "query"
)

// Batch and timeout defaults.
const (
	MinBatchSize     = 1
	MaxBatchSize     = 100
	DefaultBatchSize = 100

	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
)

// ModelDimensions is the fixed model -> dimension table (spec §4.2: "the
// configured model implies D, looked up in a fixed table").
var ModelDimensions = map[string]int{
	"voyage-code-3":  1024,
	"voyage-code-2":  1536,
	"voyage-3":       1024,
	"voyage-3-lite":  512,
	"voyage-3-large": 1024,
}

// DefaultModel is used when no embeddingModel is configured.
const DefaultModel = "voyage-code-3"

// DimensionForModel returns the declared dimension for a model name.
func DimensionForModel(model string) (int, bool) {
	d, ok := ModelDimensions[model]
	return d, ok
}

// Embedder generates vector embeddings for text (spec contract:
// embed(texts, kind) -> [ℝ^D], batched with inter-batch backoff).
type Embedder interface {
	// Embed generates one embedding per input text, in order. A failure
	// is propagated to the caller; the capability never returns a
	// partial result for a batch.
	Embed(ctx context.Context, texts []string, kind Kind) ([][]float32, error)

	// Dimensions returns D, the embedding dimension for this model.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available reports whether the provider is currently reachable.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// normalizeVector normalizes a vector to unit length so cosine similarity
// in C3 reduces to a dot product.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
