package experiment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hallucination-lab/backend/internal/catalog"
	"github.com/hallucination-lab/backend/internal/knowledge"
	"github.com/hallucination-lab/backend/internal/metrics"
	"github.com/hallucination-lab/backend/internal/mitigation"
	"github.com/hallucination-lab/backend/internal/storage/models"
	"github.com/hallucination-lab/backend/pkg/logger"
)

var ErrNoVectors = errors.New("no test vectors selected")

type Store interface {
	CreateExperiment(name string, strategy models.Strategy, description string, opts models.ExperimentOptions) (int64, error)
	LogTest(experimentID int64, promptText, responseText string, isHallucination bool, meta models.TestMetadata) (*models.TestIDs, error)
}

type Querier interface {
	Query(ctx context.Context, prompt string, strategy models.Strategy, opts mitigation.Options) (*mitigation.Result, error)
	Model() string
}

type Retriever interface {
	Query(ctx context.Context, text string, k int) (*knowledge.Retrieval, error)
}

type Options struct {
	TopK        int
	Temperature float32
	MaxTokens   int
}

type Runner struct {
	store     Store
	agent     Querier
	retriever Retriever
	catalog   *catalog.Catalog
	judge     Judge
	opts      Options
}

// NewRunner wires a batch runner. retriever may be nil, in which case rag
// runs fall back to baseline for every prompt.
func NewRunner(store Store, agent Querier, retriever Retriever, cat *catalog.Catalog, judge Judge, opts Options) *Runner {
	if opts.TopK <= 0 {
		opts.TopK = knowledge.DefaultTopK
	}
	if judge == nil {
		judge = HeuristicJudge{}
	}
	return &Runner{
		store:     store,
		agent:     agent,
		retriever: retriever,
		catalog:   cat,
		judge:     judge,
		opts:      opts,
	}
}

type RunRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Strategy    models.Strategy `json:"strategy" validate:"required"`
	// Class restricts the run to one vector class; empty runs all of them.
	Class catalog.Class `json:"class"`
	// Limit caps the number of vectors; zero means no cap.
	Limit int `json:"limit" validate:"gte=0"`
	// Progress, when set, is called after each recorded test.
	Progress func(p Progress) `json:"-"`
}

type Progress struct {
	ExperimentID int64       `json:"experiment_id"`
	Done         int         `json:"done"`
	Total        int         `json:"total"`
	Outcome      TestOutcome `json:"outcome"`
}

type TestOutcome struct {
	PromptID          int64                    `json:"prompt_id"`
	Prompt            string                   `json:"prompt"`
	Class             catalog.Class            `json:"class"`
	Category          string                   `json:"category"`
	Response          string                   `json:"response"`
	IsHallucination   bool                     `json:"is_hallucination"`
	HallucinationType models.HallucinationType `json:"hallucination_type"`
	Severity          models.Severity          `json:"severity"`
	NeedsReview       bool                     `json:"needs_review"`
	Failed            bool                     `json:"failed"`
	ResponseTimeMS    float64                  `json:"response_time_ms"`
	TokensUsed        int                      `json:"tokens_used"`
	RetrievedDocs     int                      `json:"retrieved_documents"`
}

type RunReport struct {
	RunID             string          `json:"run_id"`
	ExperimentID      int64           `json:"experiment_id"`
	Name              string          `json:"name"`
	Strategy          models.Strategy `json:"strategy"`
	Class             catalog.Class   `json:"class,omitempty"`
	Model             string          `json:"model"`
	Total             int             `json:"total"`
	Hallucinations    int             `json:"hallucinations"`
	NeedsReview       int             `json:"needs_review"`
	Failures          int             `json:"failures"`
	TotalTokens       int             `json:"total_tokens"`
	AvgResponseTimeMS float64         `json:"avg_response_time_ms"`
	HallucinationRate string          `json:"hallucination_rate"`
	StartedAt         time.Time       `json:"started_at"`
	Duration          time.Duration   `json:"duration"`
	Tests             []TestOutcome   `json:"tests"`
}

func (r *Runner) selectVectors(req RunRequest) ([]catalog.Vector, error) {
	var vectors []catalog.Vector
	if req.Class == "" {
		vectors = r.catalog.All()
	} else {
		class, err := catalog.ParseClass(string(req.Class))
		if err != nil {
			return nil, err
		}
		vectors = r.catalog.Vectors(class)
	}

	if req.Limit > 0 && req.Limit < len(vectors) {
		vectors = vectors[:req.Limit]
	}
	if len(vectors) == 0 {
		return nil, ErrNoVectors
	}
	return vectors, nil
}

// Run executes the selected vectors under one new experiment. Each test is
// persisted as soon as it is judged, so a cancelled run keeps what it
// finished; the partial report is returned alongside the context error.
func (r *Runner) Run(ctx context.Context, req RunRequest) (*RunReport, error) {
	strategy, err := models.ParseStrategy(string(req.Strategy))
	if err != nil {
		return nil, err
	}

	vectors, err := r.selectVectors(req)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	name := req.Name
	if name == "" {
		name = fmt.Sprintf("%s_%s", strategy, runID[:8])
	}

	temperature := r.opts.Temperature
	experimentID, err := r.store.CreateExperiment(name, strategy, req.Description, models.ExperimentOptions{
		ModelName:   r.agent.Model(),
		Temperature: &temperature,
		MaxTokens:   r.opts.MaxTokens,
		Notes:       "run_id=" + runID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create experiment: %w", err)
	}

	report := &RunReport{
		RunID:        runID,
		ExperimentID: experimentID,
		Name:         name,
		Strategy:     strategy,
		Class:        req.Class,
		Model:        r.agent.Model(),
		StartedAt:    time.Now().UTC(),
		Tests:        make([]TestOutcome, 0, len(vectors)),
	}

	log := logger.With(zap.String("run_id", runID), zap.Int64("experiment_id", experimentID))
	log.Info("Starting experiment run",
		zap.String("strategy", string(strategy)),
		zap.Int("vectors", len(vectors)),
	)

	var totalTime float64
	for i, v := range vectors {
		if err := ctx.Err(); err != nil {
			r.finish(report, totalTime)
			return report, fmt.Errorf("run interrupted after %d of %d tests: %w", i, len(vectors), err)
		}

		log.Debug("Running test vector", zap.Int("index", i+1), zap.Int("total", len(vectors)))

		outcome, err := r.runOne(ctx, experimentID, strategy, v)
		if err != nil {
			r.finish(report, totalTime)
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return report, fmt.Errorf("run interrupted after %d of %d tests: %w", i, len(vectors), ctxErr)
			}
			return report, err
		}

		report.Tests = append(report.Tests, *outcome)
		totalTime += outcome.ResponseTimeMS
		report.TotalTokens += outcome.TokensUsed
		if outcome.IsHallucination {
			report.Hallucinations++
		}
		if outcome.NeedsReview {
			report.NeedsReview++
		}
		if outcome.Failed {
			report.Failures++
		}

		if req.Progress != nil {
			req.Progress(Progress{
				ExperimentID: experimentID,
				Done:         i + 1,
				Total:        len(vectors),
				Outcome:      *outcome,
			})
		}
	}

	r.finish(report, totalTime)

	log.Info("Experiment run completed",
		zap.Int("total", report.Total),
		zap.Int("hallucinations", report.Hallucinations),
		zap.String("rate", report.HallucinationRate),
	)

	return report, nil
}

func (r *Runner) runOne(ctx context.Context, experimentID int64, strategy models.Strategy, v catalog.Vector) (*TestOutcome, error) {
	var retrieval *knowledge.Retrieval
	if strategy == models.StrategyRAG && r.retriever != nil {
		got, err := r.retriever.Query(ctx, v.Prompt, r.opts.TopK)
		if err != nil {
			logger.Warn("Knowledge base retrieval failed", zap.Error(err))
		} else {
			retrieval = got
		}
	}

	var opts mitigation.Options
	if retrieval != nil {
		opts.ContextDocuments = retrieval.Documents
	}

	result, err := r.agent.Query(ctx, v.Prompt, strategy, opts)
	if err != nil {
		return nil, err
	}
	// A call cut short by the caller has no response to judge.
	if result.Failed() && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	verdict := r.judge.Judge(v, result)

	meta := models.TestMetadata{
		PromptCategory:        v.Category,
		Intent:                v.Description,
		ExpectedHallucination: v.ExpectedHallucination,
		VectorType:            string(v.Class),
		ResponseTimeMS:        result.Metadata.ResponseTimeMS,
		TokensUsed:            result.Metadata.TokensUsed,
		HallucinationType:     verdict.Type,
		Severity:              verdict.Severity,
		Description:           verdict.Description,
		Evidence:              verdict.Evidence,
		FalseClaim:            verdict.FalseClaim,
	}
	if retrieval != nil && len(retrieval.Documents) > 0 {
		meta.RAG = &models.RAGSnapshot{
			Documents: retrieval.Documents,
			Scores:    retrieval.Scores,
		}
	}

	ids, err := r.store.LogTest(experimentID, v.Prompt, result.Text, verdict.IsHallucination, meta)
	if err != nil {
		return nil, fmt.Errorf("failed to log test: %w", err)
	}

	metrics.TestsLogged.WithLabelValues(string(strategy), strconv.FormatBool(verdict.IsHallucination)).Inc()

	outcome := &TestOutcome{
		PromptID:          ids.PromptID,
		Prompt:            v.Prompt,
		Class:             v.Class,
		Category:          v.Category,
		Response:          result.Text,
		IsHallucination:   verdict.IsHallucination,
		HallucinationType: verdict.Type,
		Severity:          verdict.Severity,
		NeedsReview:       verdict.NeedsReview,
		Failed:            result.Failed(),
		ResponseTimeMS:    result.Metadata.ResponseTimeMS,
		TokensUsed:        result.Metadata.TokensUsed,
	}
	if meta.RAG != nil {
		outcome.RetrievedDocs = len(meta.RAG.Documents)
	}
	return outcome, nil
}

func (r *Runner) finish(report *RunReport, totalTime float64) {
	report.Total = len(report.Tests)
	report.HallucinationRate = models.FormatRate(report.Hallucinations, report.Total)
	if report.Total > 0 {
		report.AvgResponseTimeMS = totalTime / float64(report.Total)
	}
	report.Duration = time.Since(report.StartedAt)
}
