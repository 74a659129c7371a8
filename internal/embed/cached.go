package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the default number of cached embeddings.
const DefaultCacheSize = 2048

// CachedEmbedder wraps an Embedder with an LRU cache keyed by text and
// model, so re-indexing unchanged chunks avoids repeat API calls.
type CachedEmbedder struct {
	embedder Embedder
	cache    *lru.Cache[string, []float32]
}

var _ Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder wraps embedder with a cache of the given size.
func NewCachedEmbedder(embedder Embedder, size int) (*CachedEmbedder, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &CachedEmbedder{
		embedder: embedder,
		cache:    cache,
	}, nil
}

// cacheKey hashes text together with the model name so switching
// models never serves stale vectors.
func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.New()
	h.Write([]byte(text))
	h.Write([]byte{0})
	h.Write([]byte(c.embedder.ModelName()))
	return hex.EncodeToString(h.Sum(nil))
}

// Embed returns the cached embedding for text, or delegates to the
// wrapped embedder on a miss.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}

// Dimensions returns the wrapped embedder's dimension.
func (c *CachedEmbedder) Dimensions() int {
	return c.embedder.Dimensions()
}

// ModelName returns the wrapped embedder's model identifier.
func (c *CachedEmbedder) ModelName() string {
	return c.embedder.ModelName()
}

// Len returns the number of cached entries.
func (c *CachedEmbedder) Len() int {
	return c.cache.Len()
}

// Close closes the wrapped embedder and clears the cache.
func (c *CachedEmbedder) Close() error {
	c.cache.Purge()
	return c.embedder.Close()
}
