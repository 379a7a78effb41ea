package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapCache struct {
	entries  map[string][]float32
	failRead bool
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string][]float32)}
}

func (m *mapCache) GetEmbedding(_ context.Context, model, textHash string) ([]float32, bool, error) {
	if m.failRead {
		return nil, false, errors.New("cache down")
	}
	v, ok := m.entries[model+":"+textHash]
	return v, ok, nil
}

func (m *mapCache) SetEmbedding(_ context.Context, model, textHash string, embedding []float32) error {
	m.entries[model+":"+textHash] = embedding
	return nil
}

type countingEmbedder struct {
	*HashEmbedder
	seen [][]string
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.seen = append(c.seen, texts)
	return c.HashEmbedder.Embed(ctx, texts)
}

func TestCachedEmbedder_OnlyEmbedsMisses(t *testing.T) {
	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder(16)}
	cache := newMapCache()
	e := NewCachedEmbedder(inner, cache)

	first, err := e.Embed(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	assert.Len(t, cache.entries, 2)

	second, err := e.Embed(context.Background(), []string{"beta", "gamma", "alpha"})
	require.NoError(t, err)

	require.Len(t, inner.seen, 2)
	assert.Equal(t, []string{"gamma"}, inner.seen[1])

	assert.Equal(t, first[1], second[0])
	assert.Equal(t, first[0], second[2])
	assert.Len(t, second[1], 16)
}

func TestCachedEmbedder_CacheFailureFallsThrough(t *testing.T) {
	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder(16)}
	cache := newMapCache()
	cache.failRead = true

	vectors, err := NewCachedEmbedder(inner, cache).Embed(context.Background(), []string{"alpha"})
	require.NoError(t, err)
	assert.Len(t, vectors, 1)
	assert.Len(t, inner.seen, 1)
}

func TestCachedEmbedder_IgnoresWrongSizedEntries(t *testing.T) {
	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder(16)}
	cache := newMapCache()
	e := NewCachedEmbedder(inner, cache)

	_, err := e.Embed(context.Background(), []string{"alpha"})
	require.NoError(t, err)
	for k := range cache.entries {
		cache.entries[k] = []float32{1, 2}
	}

	vectors, err := e.Embed(context.Background(), []string{"alpha"})
	require.NoError(t, err)
	assert.Len(t, vectors[0], 16)
	assert.Len(t, inner.seen, 2)
}
