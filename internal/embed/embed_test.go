package embed

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierr "github.com/designtools/libindex/internal/errors"
)

// newEmbedServer returns an httptest server that answers /api/tags with
// the given model and /api/embed with a fixed vector, counting embed
// calls.
func newEmbedServer(t *testing.T, model string, vector []float64, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_ = json.NewEncoder(w).Encode(ollamaModelListResponse{
				Models: []ollamaModelInfo{{Name: model}},
			})
		case "/api/embed":
			if calls != nil {
				calls.Add(1)
			}
			_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{
				Embeddings: [][]float64{vector},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestOllamaEmbedder_EmbedReturnsNormalizedVector(t *testing.T) {
	// Given a reachable embedding service
	server := newEmbedServer(t, "nomic-embed-text", []float64{3, 4, 0}, nil)
	defer server.Close()

	embedder, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host:  server.URL,
		Model: "nomic-embed-text",
	})
	require.NoError(t, err)
	defer func() { _ = embedder.Close() }()

	// When embedding a text
	vec, err := embedder.Embed(context.Background(), "hero section markup")

	// Then the vector is returned with unit length
	require.NoError(t, err)
	require.Len(t, vec, 3)
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestOllamaEmbedder_DetectsDimensionsFromProbe(t *testing.T) {
	// Given a service returning 5-dimensional vectors
	server := newEmbedServer(t, "nomic-embed-text", []float64{1, 2, 3, 4, 5}, nil)
	defer server.Close()

	// When constructing without configured dimensions
	embedder, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host:  server.URL,
		Model: "nomic-embed-text",
	})
	require.NoError(t, err)
	defer func() { _ = embedder.Close() }()

	// Then the probe determines the dimension
	assert.Equal(t, 5, embedder.Dimensions())
}

func TestOllamaEmbedder_MissingModelIsUnavailable(t *testing.T) {
	// Given a service without the requested model
	server := newEmbedServer(t, "some-other-model", []float64{1}, nil)
	defer server.Close()

	// When constructing
	_, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host:  server.URL,
		Model: "nomic-embed-text",
	})

	// Then construction fails with an unavailable error
	require.Error(t, err)
	var ie *ierr.IndexError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, ierr.ErrCodeEmbedUnavailable, ie.Code)
}

func TestOllamaEmbedder_ConnectionRefusedIsUnavailable(t *testing.T) {
	// Given an embedder pointed at a dead endpoint
	embedder, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host:            "http://127.0.0.1:1",
		Model:           "nomic-embed-text",
		Dimensions:      4,
		Timeout:         2 * time.Second,
		SkipHealthCheck: true,
	})
	require.NoError(t, err)
	defer func() { _ = embedder.Close() }()

	// When embedding
	_, err = embedder.Embed(context.Background(), "some text")

	// Then the error carries the unavailable code
	require.Error(t, err)
	var ie *ierr.IndexError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, ierr.ErrCodeEmbedUnavailable, ie.Code)
	assert.True(t, ie.Retryable)
}

func TestOllamaEmbedder_SlowServerIsTimeout(t *testing.T) {
	// Given a server that never answers in time
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	embedder, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host:            server.URL,
		Model:           "nomic-embed-text",
		Dimensions:      4,
		Timeout:         50 * time.Millisecond,
		SkipHealthCheck: true,
	})
	require.NoError(t, err)
	defer func() { _ = embedder.Close() }()

	// When embedding
	_, err = embedder.Embed(context.Background(), "some text")

	// Then the error carries the timeout code
	require.Error(t, err)
	var ie *ierr.IndexError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, ierr.ErrCodeEmbedTimeout, ie.Code)
}

func TestOllamaEmbedder_CallerCancellationIsNotTimeout(t *testing.T) {
	// Given a server slower than the caller's patience
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	embedder, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host:            server.URL,
		Model:           "nomic-embed-text",
		Dimensions:      4,
		Timeout:         time.Minute,
		SkipHealthCheck: true,
	})
	require.NoError(t, err)
	defer func() { _ = embedder.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	// When the caller cancels mid-request
	_, err = embedder.Embed(ctx, "some text")

	// Then the cancellation is surfaced as is
	require.ErrorIs(t, err, context.Canceled)
}

func TestOllamaEmbedder_EmptyTextYieldsZeroVector(t *testing.T) {
	// Given an embedder with known dimensions
	embedder, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host:            "http://127.0.0.1:1",
		Model:           "nomic-embed-text",
		Dimensions:      4,
		SkipHealthCheck: true,
	})
	require.NoError(t, err)
	defer func() { _ = embedder.Close() }()

	// When embedding whitespace
	vec, err := embedder.Embed(context.Background(), "   \n\t  ")

	// Then a zero vector is returned without any API call
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0, 0}, vec)
}

func TestOllamaEmbedder_DimensionMismatchIsRejected(t *testing.T) {
	// Given a service returning fewer dimensions than configured
	server := newEmbedServer(t, "nomic-embed-text", []float64{1, 2}, nil)
	defer server.Close()

	embedder, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host:       server.URL,
		Model:      "nomic-embed-text",
		Dimensions: 768,
	})
	require.NoError(t, err)
	defer func() { _ = embedder.Close() }()

	// When embedding
	_, err = embedder.Embed(context.Background(), "some text")

	// Then the mismatch is reported
	require.Error(t, err)
	var ie *ierr.IndexError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, ierr.ErrCodeDimensionMismatch, ie.Code)
}

func TestOllamaEmbedder_EmbedAfterCloseFails(t *testing.T) {
	embedder, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host:            "http://127.0.0.1:1",
		Model:           "nomic-embed-text",
		Dimensions:      4,
		SkipHealthCheck: true,
	})
	require.NoError(t, err)
	require.NoError(t, embedder.Close())

	_, err = embedder.Embed(context.Background(), "some text")
	require.Error(t, err)
}

func TestCachedEmbedder_HitAvoidsSecondCall(t *testing.T) {
	// Given a cached embedder over a counting server
	var calls atomic.Int64
	server := newEmbedServer(t, "nomic-embed-text", []float64{1, 0, 0}, &calls)
	defer server.Close()

	inner, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host:            server.URL,
		Model:           "nomic-embed-text",
		Dimensions:      3,
		SkipHealthCheck: true,
	})
	require.NoError(t, err)

	cached, err := NewCachedEmbedder(inner, 16)
	require.NoError(t, err)
	defer func() { _ = cached.Close() }()

	// When embedding the same text twice
	first, err := cached.Embed(context.Background(), "navbar markup")
	require.NoError(t, err)
	second, err := cached.Embed(context.Background(), "navbar markup")
	require.NoError(t, err)

	// Then only one API call was made
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, 1, cached.Len())
}

func TestCachedEmbedder_DistinctTextsMiss(t *testing.T) {
	var calls atomic.Int64
	server := newEmbedServer(t, "nomic-embed-text", []float64{1, 0, 0}, &calls)
	defer server.Close()

	inner, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host:            server.URL,
		Model:           "nomic-embed-text",
		Dimensions:      3,
		SkipHealthCheck: true,
	})
	require.NoError(t, err)

	cached, err := NewCachedEmbedder(inner, 16)
	require.NoError(t, err)
	defer func() { _ = cached.Close() }()

	_, err = cached.Embed(context.Background(), "navbar markup")
	require.NoError(t, err)
	_, err = cached.Embed(context.Background(), "footer markup")
	require.NoError(t, err)

	assert.Equal(t, int64(2), calls.Load())
}

func TestCachedEmbedder_ErrorsAreNotCached(t *testing.T) {
	// Given an unreachable inner embedder
	inner, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host:            "http://127.0.0.1:1",
		Model:           "nomic-embed-text",
		Dimensions:      3,
		SkipHealthCheck: true,
	})
	require.NoError(t, err)

	cached, err := NewCachedEmbedder(inner, 16)
	require.NoError(t, err)
	defer func() { _ = cached.Close() }()

	// When embedding fails
	_, err = cached.Embed(context.Background(), "navbar markup")
	require.Error(t, err)

	// Then nothing was cached
	assert.Equal(t, 0, cached.Len())
}

func TestNormalizeVector(t *testing.T) {
	vec := normalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, float64(vec[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(vec[1]), 1e-6)

	zero := normalizeVector([]float32{0, 0})
	assert.Equal(t, []float32{0, 0}, zero)
}
