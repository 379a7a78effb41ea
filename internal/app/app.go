package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hallucination-lab/backend/internal/cache/redis"
	"github.com/hallucination-lab/backend/internal/catalog"
	"github.com/hallucination-lab/backend/internal/embedding"
	"github.com/hallucination-lab/backend/internal/experiment"
	"github.com/hallucination-lab/backend/internal/knowledge"
	"github.com/hallucination-lab/backend/internal/llm"
	"github.com/hallucination-lab/backend/internal/mitigation"
	"github.com/hallucination-lab/backend/internal/storage/sqlite"
	"github.com/hallucination-lab/backend/internal/vector"
	"github.com/hallucination-lab/backend/internal/vector/milvus"
	"github.com/hallucination-lab/backend/internal/vector/sqlitevec"
	"github.com/hallucination-lab/backend/pkg/circuitbreaker"
	"github.com/hallucination-lab/backend/pkg/config"
	"github.com/hallucination-lab/backend/pkg/logger"
)

// App holds every component built from one configuration.
type App struct {
	Config    *config.Config
	Store     *sqlite.Client
	Catalog   *catalog.Catalog
	Agent     *mitigation.Agent
	Knowledge *knowledge.Oracle
	Ingester  *knowledge.Ingester
	Runner    *experiment.Runner

	closers []func() error
}

// Build validates cfg and wires the full harness.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &App{Config: cfg}

	store, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)

	cat, err := catalog.Load(cfg.Runner.VectorsFile)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load test vectors: %w", err)
	}
	a.Catalog = cat

	a.Agent = NewAgent(cfg)

	kb, closeKB, err := OpenKnowledge(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Knowledge = kb
	a.closers = append(a.closers, closeKB)
	a.Ingester = knowledge.NewIngester(kb, 0)

	a.Runner = experiment.NewRunner(
		store,
		a.Agent,
		kb,
		cat,
		experiment.HeuristicJudge{AutoFlagErrors: cfg.Runner.AutoFlagErrors},
		experiment.Options{
			TopK:        cfg.Runner.TopK,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		},
	)

	logger.Info("Harness initialized",
		zap.String("model", cfg.LLM.Model),
		zap.String("vector_backend", cfg.Vector.Backend),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.Int("vectors", cat.Counts().Total),
	)

	return a, nil
}

// Close releases components in reverse order of construction.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// OpenStore opens the experiment store and makes sure its schema exists.
func OpenStore(cfg *config.Config) (*sqlite.Client, error) {
	store, err := sqlite.NewClient(cfg.SQLite.Path, sqlite.Options{
		ExportDir:          cfg.Export.Dir,
		DefaultModel:       cfg.LLM.Model,
		DefaultTemperature: cfg.LLM.Temperature,
		DefaultMaxTokens:   cfg.LLM.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open experiment store: %w", err)
	}

	if err := store.InitSchema(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func NewAgent(cfg *config.Config) *mitigation.Agent {
	var breaker *circuitbreaker.Breaker
	if cfg.LLM.BreakerThreshold > 0 {
		breaker = circuitbreaker.New("llm", circuitbreaker.Config{
			FailureThreshold: uint32(cfg.LLM.BreakerThreshold),
			Cooldown:         time.Duration(cfg.LLM.BreakerCooldownSec) * time.Second,
			OnStateChange:    circuitbreaker.LogStateChanges(logger.GetLogger()),
		})
	}

	client := llm.NewClient(llm.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     time.Duration(cfg.LLM.TimeoutSec) * time.Second,
		Breaker:     breaker,
	})
	return mitigation.NewAgent(client)
}

// NewEmbedder builds the configured embedder, wrapped in the redis cache
// when enabled. An unreachable redis only disables caching.
func NewEmbedder(ctx context.Context, cfg *config.Config) (embedding.Embedder, func() error, error) {
	noop := func() error { return nil }

	var base embedding.Embedder
	switch cfg.Embedding.Provider {
	case "hash":
		base = embedding.NewHashEmbedder(cfg.Embedding.Dimensions)
	case "openai", "":
		if cfg.Embedding.APIKey == "" {
			return nil, noop, config.ErrMissingAPIKey
		}
		base = embedding.NewOpenAIEmbedder(embedding.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			BatchSize:  cfg.Embedding.BatchSize,
		})
	default:
		return nil, noop, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}

	if !cfg.Redis.Enabled {
		return base, noop, nil
	}

	cache, err := redis.NewClient(ctx, redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TTL:      time.Duration(cfg.Redis.TTLHours) * time.Hour,
	})
	if err != nil {
		logger.Warn("Embedding cache unavailable, continuing without it", zap.Error(err))
		return base, noop, nil
	}

	return embedding.NewCachedEmbedder(base, cache), cache.Close, nil
}

func OpenIndex(ctx context.Context, cfg *config.Config, dims int) (vector.Index, error) {
	collection := vector.Collection{
		Name:        cfg.Vector.Collection,
		Description: cfg.Vector.Description,
		Dimensions:  dims,
	}

	switch cfg.Vector.Backend {
	case "sqlitevec", "":
		return sqlitevec.Open(cfg.Vector.Path, collection)
	case "milvus":
		return milvus.Open(ctx, cfg.Vector.Endpoint, cfg.Vector.APIKey, collection)
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.Vector.Backend)
	}
}

// OpenKnowledge builds the knowledge base oracle. The returned func closes
// the index and the embedding cache.
func OpenKnowledge(ctx context.Context, cfg *config.Config) (*knowledge.Oracle, func() error, error) {
	embedder, closeEmbedder, err := NewEmbedder(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build embedder: %w", err)
	}

	index, err := OpenIndex(ctx, cfg, embedder.Dimensions())
	if err != nil {
		closeEmbedder()
		return nil, nil, fmt.Errorf("failed to open vector index: %w", err)
	}

	kb, err := knowledge.Open(ctx, index, embedder)
	if err != nil {
		index.Close()
		closeEmbedder()
		return nil, nil, fmt.Errorf("failed to open knowledge base: %w", err)
	}

	closeAll := func() error {
		return errors.Join(kb.Close(), closeEmbedder())
	}
	return kb, closeAll, nil
}
