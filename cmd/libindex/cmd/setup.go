package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/designtools/libindex/internal/config"
	"github.com/designtools/libindex/internal/embed"
	"github.com/designtools/libindex/internal/store"
)

// loadConfig resolves the effective configuration for the library
// passed on the command line.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(libraryFlag)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if logLevelFlag != "" {
		cfg.LogLevel = logLevelFlag
	}
	return cfg, nil
}

// openStore opens the hybrid store in the library's state directory.
func openStore(cfg *config.Config, dims int) (*store.HybridStore, error) {
	st, err := store.Open(store.HybridConfig{
		Dir:        cfg.StateDir(),
		Dimensions: dims,
		M:          cfg.Store.HNSWM,
		EfSearch:   cfg.Store.HNSWEfSearch,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot open vector store: %w", err)
	}
	return st, nil
}

// openEmbedder connects to Ollama and wraps it with the LRU cache.
// The health check runs here so an unreachable service fails at
// startup, not mid-run.
func openEmbedder(ctx context.Context, cfg *config.Config) (embed.Embedder, error) {
	ollama, err := embed.NewOllamaEmbedder(ctx, embed.OllamaConfig{
		Host:       cfg.Embeddings.OllamaHost,
		Model:      cfg.Embeddings.Model,
		Dimensions: cfg.Embeddings.Dimensions,
		Timeout:    cfg.EmbedTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding service unavailable: %w", err)
	}

	cached, err := embed.NewCachedEmbedder(ollama, cfg.Embeddings.CacheSize)
	if err != nil {
		_ = ollama.Close()
		return nil, err
	}

	slog.Debug("embedder ready",
		slog.String("model", cached.ModelName()),
		slog.Int("dimensions", cached.Dimensions()))
	return cached, nil
}
