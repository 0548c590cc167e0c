// Package embed provides embedding providers for chunk and query text.
//
// The remote provider talks to the shared DGX embedding server; the static
// provider generates deterministic hash-based vectors for offline and test
// use. Both normalize vectors to unit length at the provider boundary so
// the index can use a plain dot product for cosine similarity.
package embed

import (
	"context"
	"math"
)

// Embedder generates embedding vectors for text.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, one vector per
	// input in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector dimensionality.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// DefaultBatchSize returns the preferred batch size when neither the
	// config nor the job server specifies one.
	DefaultBatchSize() int

	// Available reports whether the provider can serve requests right now.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// normalizeVector normalizes a vector to unit length.
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
