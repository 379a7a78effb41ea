package embedding

import (
	"context"

	"go.uber.org/zap"

	"github.com/hallucination-lab/backend/internal/metrics"
	"github.com/hallucination-lab/backend/pkg/logger"
	"github.com/hallucination-lab/backend/pkg/utils"
)

// Cache stores vectors by model and content hash. Implemented by the redis
// cache client.
type Cache interface {
	GetEmbedding(ctx context.Context, model, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, model, textHash string, embedding []float32) error
}

// CachedEmbedder consults cache before delegating misses to next. Cache
// errors degrade to misses.
type CachedEmbedder struct {
	next  Embedder
	cache Cache
}

func NewCachedEmbedder(next Embedder, cache Cache) *CachedEmbedder {
	return &CachedEmbedder{next: next, cache: cache}
}

func (c *CachedEmbedder) Dimensions() int { return c.next.Dimensions() }

func (c *CachedEmbedder) Model() string { return c.next.Model() }

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	hashes := make([]string, len(texts))

	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		hashes[i] = utils.HashString(text)

		cached, found, err := c.cache.GetEmbedding(ctx, c.Model(), hashes[i])
		if err != nil {
			logger.Warn("Embedding cache read failed", zap.Error(err))
		}
		if found && len(cached) == c.Dimensions() {
			metrics.CacheHits.WithLabelValues("embedding").Inc()
			out[i] = cached
			continue
		}

		metrics.CacheMisses.WithLabelValues("embedding").Inc()
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	fresh, err := c.next.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	for j, idx := range missIdx {
		out[idx] = fresh[j]
		if err := c.cache.SetEmbedding(ctx, c.Model(), hashes[idx], fresh[j]); err != nil {
			logger.Warn("Embedding cache write failed", zap.Error(err))
		}
	}

	return out, nil
}
