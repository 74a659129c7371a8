package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	ierr "github.com/designtools/libindex/internal/errors"
)

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	// Host is the Ollama API endpoint.
	Host string
	// Model is the embedding model name.
	Model string
	// Dimensions is the expected dimensionality (0 = auto-detect).
	Dimensions int
	// Timeout bounds each embedding request.
	Timeout time.Duration
	// SkipHealthCheck disables the startup connectivity check (tests).
	SkipHealthCheck bool
}

// OllamaEmbedder generates embeddings using Ollama's HTTP API.
type OllamaEmbedder struct {
	client    *http.Client
	transport *http.Transport
	config    OllamaConfig

	mu     sync.RWMutex
	closed bool
	dims   int
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder creates a new Ollama embedder and verifies the
// service is reachable and the model installed.
func NewOllamaEmbedder(ctx context.Context, cfg OllamaConfig) (*OllamaEmbedder, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	// No http.Client.Timeout: it would override the per-request
	// context timeout set in Embed
	transport := &http.Transport{
		MaxIdleConns:        OllamaPoolSize,
		MaxIdleConnsPerHost: OllamaPoolSize,
		MaxConnsPerHost:     OllamaPoolSize * 2,
		IdleConnTimeout:     10 * time.Second,
	}

	e := &OllamaEmbedder{
		client:    &http.Client{Transport: transport},
		transport: transport,
		config:    cfg,
		dims:      cfg.Dimensions,
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()

		if err := e.checkModel(checkCtx); err != nil {
			transport.CloseIdleConnections()
			return nil, err
		}

		if e.dims == 0 {
			dims, err := e.detectDimensions(checkCtx)
			if err != nil {
				transport.CloseIdleConnections()
				return nil, err
			}
			e.dims = dims
		}
	}

	if e.dims == 0 {
		e.dims = DefaultDimensions
	}

	return e, nil
}

// checkModel verifies Ollama is reachable and the configured model is
// installed.
func (e *OllamaEmbedder) checkModel(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Host+"/api/tags", nil)
	if err != nil {
		return ierr.New(ierr.ErrCodeEmbedUnavailable, "failed to build Ollama request", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return ierr.New(ierr.ErrCodeEmbedUnavailable,
			fmt.Sprintf("failed to connect to Ollama at %s", e.config.Host), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return ierr.New(ierr.ErrCodeEmbedUnavailable,
			fmt.Sprintf("Ollama returned status %d: %s", resp.StatusCode, string(body)), nil)
	}

	var list ollamaModelListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return ierr.New(ierr.ErrCodeEmbedUnavailable, "failed to decode Ollama model list", err)
	}

	want := strings.ToLower(e.config.Model)
	wantBase := strings.Split(want, ":")[0]
	for _, m := range list.Models {
		name := strings.ToLower(m.Name)
		if name == want || strings.Split(name, ":")[0] == wantBase {
			return nil
		}
	}

	return ierr.New(ierr.ErrCodeEmbedUnavailable,
		fmt.Sprintf("model %s is not installed (run: ollama pull %s)", e.config.Model, e.config.Model), nil)
}

// detectDimensions learns the dimensionality from a probe embedding.
func (e *OllamaEmbedder) detectDimensions(ctx context.Context) (int, error) {
	vec, err := e.doEmbed(ctx, "dimension detection")
	if err != nil {
		return 0, err
	}
	if len(vec) == 0 {
		return 0, ierr.New(ierr.ErrCodeEmbedUnavailable, "Ollama returned an empty embedding", nil)
	}
	return len(vec), nil
}

// Embed generates the embedding for a single text.
// Connection failures map to EmbedUnavailable and deadline expiry to
// EmbedTimeout; there are no internal retries.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, ierr.New(ierr.ErrCodeInternal, "embedder is closed", nil)
	}
	e.mu.RUnlock()

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, e.dims), nil
	}
	if len(trimmed) > MaxInputChars {
		trimmed = trimmed[:MaxInputChars]
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	vec, err := e.doEmbed(timeoutCtx, trimmed)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, ierr.New(ierr.ErrCodeEmbedTimeout,
				fmt.Sprintf("embedding timed out after %s", e.config.Timeout), err)
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		var ie *ierr.IndexError
		if errors.As(err, &ie) {
			return nil, err
		}
		return nil, ierr.New(ierr.ErrCodeEmbedUnavailable, "embedding request failed", err)
	}

	if e.dims > 0 && len(vec) != e.dims {
		return nil, ierr.New(ierr.ErrCodeDimensionMismatch,
			fmt.Sprintf("expected %d dimensions, got %d", e.dims, len(vec)), nil)
	}

	return vec, nil
}

// doEmbed performs one embedding request. It runs the HTTP call in a
// goroutine and watches the context, so cancellation unblocks
// immediately instead of waiting for the HTTP stack.
func (e *OllamaEmbedder) doEmbed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{
		Model: e.config.Model,
		Input: text,
	})
	if err != nil {
		return nil, ierr.New(ierr.ErrCodeInternal, "failed to marshal embed request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	type result struct {
		vec []float32
		err error
	}
	resultCh := make(chan result, 1)

	go func() {
		resp, err := e.client.Do(req)
		if err != nil {
			resultCh <- result{nil, err}
			return
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			resultCh <- result{nil, ierr.New(ierr.ErrCodeEmbedUnavailable,
				fmt.Sprintf("embedding failed with status %d: %s", resp.StatusCode, string(respBody)), nil)}
			return
		}

		var apiResult ollamaEmbedResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiResult); err != nil {
			resultCh <- result{nil, ierr.New(ierr.ErrCodeEmbedUnavailable, "failed to decode embed response", err)}
			return
		}

		if len(apiResult.Embeddings) == 0 {
			resultCh <- result{nil, ierr.New(ierr.ErrCodeEmbedUnavailable, "no embedding returned", nil)}
			return
		}

		raw := apiResult.Embeddings[0]
		vec := make([]float32, len(raw))
		for i, v := range raw {
			vec[i] = float32(v)
		}
		resultCh <- result{normalizeVector(vec), nil}
	}()

	select {
	case <-ctx.Done():
		e.transport.CloseIdleConnections()
		return nil, ctx.Err()
	case r := <-resultCh:
		return r.vec, r.err
	}
}

// Dimensions returns the embedding dimension.
func (e *OllamaEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the model identifier.
func (e *OllamaEmbedder) ModelName() string {
	return e.config.Model
}

// Close releases resources.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.transport.CloseIdleConnections()
	return nil
}
