package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hallucination-lab/backend/pkg/logger"
)

const embeddingPrefix = "embedding:"

type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

// Client caches embedding vectors keyed by model and content hash.
type Client struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis embedding cache initialized",
		zap.String("addr", addr),
		zap.Duration("ttl", cfg.TTL),
	)

	return &Client{client: client, ttl: cfg.TTL}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func embeddingKey(model, textHash string) string {
	return embeddingPrefix + model + ":" + textHash
}

func (c *Client) SetEmbedding(ctx context.Context, model, textHash string, embedding []float32) error {
	data, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	if err := c.client.Set(ctx, embeddingKey(model, textHash), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set embedding cache: %w", err)
	}

	logger.Debug("Embedding cached", zap.String("model", model), zap.String("text_hash", textHash))
	return nil
}

// GetEmbedding reports found=false on a miss rather than an error.
func (c *Client) GetEmbedding(ctx context.Context, model, textHash string) ([]float32, bool, error) {
	data, err := c.client.Get(ctx, embeddingKey(model, textHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get embedding cache: %w", err)
	}

	var embedding []float32
	if err := json.Unmarshal(data, &embedding); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal embedding: %w", err)
	}

	logger.Debug("Embedding cache hit", zap.String("model", model), zap.String("text_hash", textHash))
	return embedding, true, nil
}

// InvalidateEmbeddings drops every cached vector for model, or for all
// models when model is empty.
func (c *Client) InvalidateEmbeddings(ctx context.Context, model string) (int, error) {
	pattern := embeddingPrefix + "*"
	if model != "" {
		pattern = embeddingPrefix + model + ":*"
	}

	deleted := 0
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("Failed to delete cache key", zap.String("key", iter.Val()), zap.Error(err))
			continue
		}
		deleted++
	}

	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Embedding cache invalidated", zap.String("model", model), zap.Int("deleted", deleted))
	return deleted, nil
}
