package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/maypok86/otter"
)

const defaultCacheCapacity = 1024

// CachedEmbedder is a read-through cache in front of another Embedder. The
// same goal text is embedded at retrieval time and again when the session is
// promoted to memory; the cache collapses those into one provider call.
type CachedEmbedder struct {
	inner Embedder
	cache otter.Cache[string, []float32]
}

// NewCachedEmbedder wraps inner with an in-process cache of the given capacity.
func NewCachedEmbedder(inner Embedder, capacity int) (*CachedEmbedder, error) {
	if capacity <= 0 {
		capacity = defaultCacheCapacity
	}
	cache, err := otter.MustBuilder[string, []float32](capacity).Build()
	if err != nil {
		return nil, fmt.Errorf("building embedding cache: %w", err)
	}
	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

// Embed returns a cached vector when the exact text was embedded before,
// otherwise delegates to the wrapped embedder. Errors are never cached.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, vec)
	return vec, nil
}

// Dims returns the wrapped embedder's dimensionality.
func (c *CachedEmbedder) Dims() int {
	return c.inner.Dims()
}

// Model returns the wrapped embedder's model identifier.
func (c *CachedEmbedder) Model() string {
	return c.inner.Model()
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
