package mitigation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hallucination-lab/backend/internal/llm"
	"github.com/hallucination-lab/backend/internal/metrics"
	"github.com/hallucination-lab/backend/internal/storage/models"
	"github.com/hallucination-lab/backend/pkg/logger"
	"github.com/hallucination-lab/backend/pkg/utils"
)

// ErrorPrefix marks response text produced from a failed remote call.
const ErrorPrefix = "ERROR: "

// Fixed temperature for the RAG answer and the constitutional critique round.
const lowTemperature float32 = 0.3

var ErrUnknownStrategy = errors.New("unknown mitigation strategy")

// ChatClient is the remote completion call the agent dispatches to.
type ChatClient interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
	Model() string
}

// TransportError is a failed remote call, recovered into a Result.
type TransportError struct {
	Strategy models.Strategy
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s query failed: %v", e.Strategy, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

type Options struct {
	// ContextDocuments feeds the rag strategy. Empty means fall back to baseline.
	ContextDocuments []string
}

type Metadata struct {
	ResponseTimeMS   float64 `json:"response_time_ms"`
	TokensUsed       int     `json:"tokens_used,omitempty"`
	PromptTokens     int     `json:"prompt_tokens,omitempty"`
	CompletionTokens int     `json:"completion_tokens,omitempty"`
	Model            string  `json:"model,omitempty"`
	FinishReason     string  `json:"finish_reason,omitempty"`

	RetrievedDocuments []string `json:"retrieved_documents,omitempty"`
	NumDocuments       int      `json:"num_documents,omitempty"`

	InitialResponse  string `json:"initial_response,omitempty"`
	CritiqueResponse string `json:"critique_response,omitempty"`
	CritiqueRounds   int    `json:"num_critique_rounds,omitempty"`

	Error string `json:"error,omitempty"`
}

type Result struct {
	Text     string
	Metadata Metadata
	// Failure is set when the remote call failed; Text then starts with ErrorPrefix.
	Failure *TransportError
}

func (r *Result) Failed() bool { return r.Failure != nil }

type Agent struct {
	client ChatClient
}

func NewAgent(client ChatClient) *Agent {
	return &Agent{client: client}
}

func (a *Agent) Model() string { return a.client.Model() }

// Query applies strategy to prompt and dispatches it. The returned error is
// non-nil only for an unknown strategy, which is rejected before any remote
// call. Remote failures come back as a Result with Failure set.
func (a *Agent) Query(ctx context.Context, prompt string, strategy models.Strategy, opts Options) (*Result, error) {
	var (
		result *Result
		err    error
	)

	start := time.Now()

	switch strategy {
	case models.StrategyBaseline:
		result, err = a.queryBaseline(ctx, prompt)
	case models.StrategyRAG:
		if len(opts.ContextDocuments) == 0 {
			logger.Warn("RAG strategy requires context documents, using baseline instead",
				zap.String("prompt", truncate(prompt, 80)),
			)
			metrics.RAGFallbacks.Inc()
			result, err = a.queryBaseline(ctx, prompt)
		} else {
			result, err = a.queryRAG(ctx, prompt, opts.ContextDocuments)
		}
	case models.StrategyConstitutionalAI:
		result, err = a.queryConstitutional(ctx, prompt)
	case models.StrategyChainOfThought:
		result, err = a.queryChainOfThought(ctx, prompt)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}

	metrics.CompletionDuration.WithLabelValues(string(strategy)).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.CompletionTotal.WithLabelValues(string(strategy), "error").Inc()
		return failure(strategy, err), nil
	}

	metrics.CompletionTotal.WithLabelValues(string(strategy), "success").Inc()
	metrics.LLMTokensUsed.WithLabelValues(result.Metadata.Model, string(strategy)).Add(float64(result.Metadata.TokensUsed))

	return result, nil
}

func (a *Agent) queryBaseline(ctx context.Context, prompt string) (*Result, error) {
	start := time.Now()

	resp, err := a.client.Complete(ctx, llm.CompletionRequest{UserPrompt: prompt})
	if err != nil {
		return nil, err
	}

	return &Result{
		Text:     resp.Content,
		Metadata: singleCallMetadata(resp, time.Since(start)),
	}, nil
}

func (a *Agent) queryRAG(ctx context.Context, prompt string, documents []string) (*Result, error) {
	start := time.Now()

	temperature := lowTemperature
	resp, err := a.client.Complete(ctx, llm.CompletionRequest{
		UserPrompt:  BuildRAGPrompt(prompt, documents),
		Temperature: &temperature,
	})
	if err != nil {
		return nil, err
	}

	meta := singleCallMetadata(resp, time.Since(start))
	meta.RetrievedDocuments = documents
	meta.NumDocuments = len(documents)

	return &Result{Text: resp.Content, Metadata: meta}, nil
}

func (a *Agent) queryConstitutional(ctx context.Context, prompt string) (*Result, error) {
	start := time.Now()

	initial, err := a.client.Complete(ctx, llm.CompletionRequest{UserPrompt: prompt})
	if err != nil {
		return nil, err
	}

	temperature := lowTemperature
	critique, err := a.client.Complete(ctx, llm.CompletionRequest{
		UserPrompt:  BuildCritiquePrompt(prompt, initial.Content),
		Temperature: &temperature,
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Text: ExtractRevised(critique.Content),
		Metadata: Metadata{
			ResponseTimeMS:   millis(time.Since(start)),
			TokensUsed:       initial.Usage.TotalTokens + critique.Usage.TotalTokens,
			Model:            a.client.Model(),
			InitialResponse:  initial.Content,
			CritiqueResponse: critique.Content,
			CritiqueRounds:   1,
		},
	}, nil
}

func (a *Agent) queryChainOfThought(ctx context.Context, prompt string) (*Result, error) {
	start := time.Now()

	resp, err := a.client.Complete(ctx, llm.CompletionRequest{UserPrompt: BuildChainOfThoughtPrompt(prompt)})
	if err != nil {
		return nil, err
	}

	return &Result{
		Text:     resp.Content,
		Metadata: singleCallMetadata(resp, time.Since(start)),
	}, nil
}

func singleCallMetadata(resp *llm.CompletionResponse, elapsed time.Duration) Metadata {
	return Metadata{
		ResponseTimeMS:   millis(elapsed),
		TokensUsed:       resp.Usage.TotalTokens,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		Model:            resp.Model,
		FinishReason:     resp.FinishReason,
	}
}

func failure(strategy models.Strategy, err error) *Result {
	logger.Error("Mitigation query failed",
		zap.String("strategy", string(strategy)),
		zap.Error(err),
	)

	return &Result{
		Text: ErrorPrefix + err.Error(),
		Metadata: Metadata{
			ResponseTimeMS: 0,
			Error:          err.Error(),
		},
		Failure: &TransportError{Strategy: strategy, Err: err},
	}
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return utils.Clip(s, n) + "..."
}
