// ABOUTME: Query-embedding cache wrapped around any embedder
// ABOUTME: Cache failures are logged and bypassed so they never fail a request
package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/BASF-LSU-Collaborations/ragui/internal/logging"
	"go.uber.org/zap"
)

// Embedder is the wrapped embedding source
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Cache stores vectors by key
type Cache interface {
	Get(ctx context.Context, key string) ([]float64, bool, error)
	Set(ctx context.Context, key string, vector []float64) error
}

// CachedEmbedder serves repeated queries from the cache
type CachedEmbedder struct {
	next   Embedder
	cache  Cache
	model  string
	logger *zap.Logger
}

// New wraps next with cache. model namespaces the keys so switching models never
// returns vectors of the wrong shape.
func New(next Embedder, cache Cache, model string, logger *zap.Logger) *CachedEmbedder {
	return &CachedEmbedder{
		next:   next,
		cache:  cache,
		model:  model,
		logger: logging.OrNop(logger).Named("embedcache"),
	}
}

// Embed returns a cached vector or computes and stores a fresh one
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	key := Key(c.model, text)

	vec, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed", zap.Error(err))
	} else if ok {
		c.logger.Debug("cache hit", zap.String("key", key))
		return vec, nil
	}

	vec, err = c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, key, vec); err != nil {
		c.logger.Warn("cache write failed", zap.Error(err))
	}
	return vec, nil
}

// Key derives the cache key for a model and text
func Key(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return "ragui:emb:" + hex.EncodeToString(sum[:])
}
