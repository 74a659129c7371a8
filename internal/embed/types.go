// Package embed provides the gateway to the external embedding
// service. The gateway is stateless and performs no retries: retry
// policy belongs to the indexing engine, which knows whether a retry
// budget remains for the file being processed.
package embed

import (
	"context"
	"math"
	"time"
)

// Defaults for the Ollama embedder.
const (
	DefaultOllamaHost = "http://localhost:11434"
	DefaultModel      = "nomic-embed-text"
	DefaultTimeout    = 60 * time.Second
	DefaultDimensions = 768

	// OllamaPoolSize bounds idle HTTP connections to the local server.
	OllamaPoolSize = 4

	// MaxInputChars truncates pathological inputs before they hit the
	// model's context window.
	MaxInputChars = 8192
)

// Embedder generates embedding vectors for text.
type Embedder interface {
	// Embed generates the embedding for a single text. Fails with an
	// EmbedUnavailable error on connection failure and an EmbedTimeout
	// error after a bounded wait; it never retries internally.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding dimensionality.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Close releases resources.
	Close() error
}

// ollamaEmbedRequest is the request body for POST /api/embed.
type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

// ollamaEmbedResponse is the response body from POST /api/embed.
type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// ollamaModelInfo describes one installed model.
type ollamaModelInfo struct {
	Name string `json:"name"`
}

// ollamaModelListResponse is the response from GET /api/tags.
type ollamaModelListResponse struct {
	Models []ollamaModelInfo `json:"models"`
}

// normalizeVector normalizes a vector to unit length in place.
// Cosine similarity on normalized vectors reduces to a dot product.
func normalizeVector(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
