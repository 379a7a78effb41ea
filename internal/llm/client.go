package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/hallucination-lab/backend/pkg/circuitbreaker"
	"github.com/hallucination-lab/backend/pkg/logger"
)

var ErrEmptyResponse = errors.New("completion returned no choices")

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	// Timeout bounds a single completion call. Zero disables it.
	Timeout time.Duration
	// Breaker fails calls fast while the endpoint keeps erroring. Optional.
	Breaker *circuitbreaker.Breaker
}

// Client talks to any OpenAI-compatible chat completions endpoint.
type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	breaker     *circuitbreaker.Breaker
}

type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	// Temperature overrides the client default when set.
	Temperature *float32
	MaxTokens   int
}

type CompletionResponse struct {
	Content      string
	FinishReason string
	Model        string
	Usage        Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func NewClient(cfg Config) *Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	logger.Info("LLM client initialized",
		zap.String("model", cfg.Model),
		zap.String("base_url", clientConfig.BaseURL),
		zap.Duration("timeout", cfg.Timeout),
	)

	return &Client{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		breaker:     cfg.Breaker,
	}
}

func (c *Client) Model() string { return c.model }

func (c *Client) Temperature() float32 { return c.temperature }

func (c *Client) MaxTokens() int { return c.maxTokens }

// Complete sends one chat completion. Failures are returned as-is, there is
// no retry: every call is a measured experiment sample.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	temperature := c.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	// go-openai drops a zero temperature from the payload, which the server
	// reads as its own default.
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.UserPrompt,
	})

	request := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	var resp openai.ChatCompletionResponse
	call := func() error {
		var err error
		resp, err = c.client.CreateChatCompletion(ctx, request)
		return err
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(call)
	} else {
		err = call()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	logger.Debug("LLM completion generated",
		zap.String("model", resp.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
	)

	model := resp.Model
	if model == "" {
		model = c.model
	}

	return &CompletionResponse{
		Content:      resp.Choices[0].Message.Content,
		FinishReason: string(resp.Choices[0].FinishReason),
		Model:        model,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}
