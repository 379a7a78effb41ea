package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/hallucination-lab/backend/pkg/logger"
	"github.com/hallucination-lab/backend/pkg/retry"
)

var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Embedder turns texts into fixed-size vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Model() string
}

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	BatchSize  int
}

type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	batchSize  int
	policy     retry.Policy
}

func NewOpenAIEmbedder(cfg Config) *OpenAIEmbedder {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	policy := retry.DefaultPolicy("embeddings")
	policy.Logger = logger.GetLogger()
	policy.Retryable = isTransient

	logger.Info("Embedding client initialized",
		zap.String("model", cfg.Model),
		zap.Int("dimensions", cfg.Dimensions),
	)

	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		batchSize:  batchSize,
		policy:     policy,
	}
}

func (e *OpenAIEmbedder) Dimensions() int { return e.dimensions }

func (e *OpenAIEmbedder) Model() string { return e.model }

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	embeddings := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += e.batchSize {
		end := i + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[i:end]

		vectors, err := retry.Value(ctx, e.policy, func(ctx context.Context) ([][]float32, error) {
			return e.embedBatch(ctx, batch)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to generate embeddings: %w", err)
		}

		embeddings = append(embeddings, vectors...)
	}

	logger.Debug("Embeddings generated", zap.Int("count", len(embeddings)))

	return embeddings, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: batch,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(batch) {
		return nil, retry.Permanent(fmt.Errorf("expected %d embeddings, got %d", len(batch), len(resp.Data)))
	}

	sort.Slice(resp.Data, func(a, b int) bool { return resp.Data[a].Index < resp.Data[b].Index })

	vectors := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		if e.dimensions > 0 && len(data.Embedding) != e.dimensions {
			return nil, retry.Permanent(fmt.Errorf("%w: want %d, got %d", ErrDimensionMismatch, e.dimensions, len(data.Embedding)))
		}
		vectors[i] = data.Embedding
	}

	return vectors, nil
}

// isTransient retries rate limits, server errors and transport failures.
func isTransient(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}

	return true
}
