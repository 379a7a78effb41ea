package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hallucination-lab/backend/internal/catalog"
	"github.com/hallucination-lab/backend/pkg/config"
)

func offlineConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		LLM: config.LLMConfig{
			APIKey:           "sk-test",
			BaseURL:          "http://127.0.0.1:1/v1",
			Model:            "gpt-test",
			Temperature:      0.7,
			MaxTokens:        100,
			TimeoutSec:       1,
			BreakerThreshold: 3,
		},
		Embedding: config.EmbeddingConfig{Provider: "hash", Dimensions: 64},
		SQLite:    config.SQLiteConfig{Path: filepath.Join(dir, "experiments.db")},
		Vector: config.VectorConfig{
			Backend:    "sqlitevec",
			Path:       filepath.Join(dir, "knowledge.db"),
			Collection: "kb_test",
		},
		Export: config.ExportConfig{Dir: filepath.Join(dir, "exports")},
		Runner: config.RunnerConfig{TopK: 3},
	}
}

func TestBuild_Offline(t *testing.T) {
	ctx := context.Background()
	cfg := offlineConfig(t)

	harness, err := Build(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { harness.Close() })

	require.NotNil(t, harness.Store)
	require.NotNil(t, harness.Agent)
	require.NotNil(t, harness.Knowledge)
	require.NotNil(t, harness.Ingester)
	require.NotNil(t, harness.Runner)
	assert.Equal(t, catalog.Default().Counts(), harness.Catalog.Counts())
	assert.Equal(t, "gpt-test", harness.Agent.Model())

	added, err := harness.Knowledge.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.Positive(t, added)

	require.NoError(t, harness.Close())

	// The knowledge base persists across restarts.
	reopened, err := Build(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	n, err := reopened.Knowledge.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, added, n)
}

func TestBuild_RejectsInvalidConfig(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.LLM.APIKey = ""

	_, err := Build(context.Background(), cfg)
	assert.ErrorIs(t, err, config.ErrMissingAPIKey)
}

func TestOpenKnowledge_OpenAIRequiresKey(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.Embedding.Provider = "openai"
	cfg.Embedding.APIKey = ""

	_, _, err := OpenKnowledge(context.Background(), cfg)
	assert.ErrorIs(t, err, config.ErrMissingAPIKey)
}

func TestOpenIndex_UnknownBackend(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.Vector.Backend = "faiss"

	_, err := OpenIndex(context.Background(), cfg, 64)
	assert.Error(t, err)
}

func TestOpenStore_WithoutAPIKey(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.LLM.APIKey = ""

	store, err := OpenStore(cfg)
	require.NoError(t, err)
	defer store.Close()

	stats, err := store.GetStatistics()
	require.NoError(t, err)
	assert.Zero(t, stats.TotalExperiments)
}
