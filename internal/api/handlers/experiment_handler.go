package handlers

import (
	"path/filepath"

	"github.com/gofiber/fiber/v2"

	"github.com/hallucination-lab/backend/internal/middleware/validation"
	"github.com/hallucination-lab/backend/internal/storage/models"
)

type ExperimentStore interface {
	CreateExperiment(name string, strategy models.Strategy, description string, opts models.ExperimentOptions) (int64, error)
	GetExperiment(id int64) (*models.Experiment, error)
	LogTest(experimentID int64, promptText, responseText string, isHallucination bool, meta models.TestMetadata) (*models.TestIDs, error)
	GetRAGContext(promptID int64) (*models.RAGContext, error)
	GetExperimentResults(experimentID int64) ([]models.ResultRow, error)
	GetAllResults() ([]models.ResultRow, error)
	GetAllExperiments() ([]models.ExperimentSummary, error)
	GetStatistics() (*models.Statistics, error)
	ExportToCSV(experimentID int64, outputPath string) (string, error)
}

type ExperimentHandler struct {
	store ExperimentStore
}

func NewExperimentHandler(store ExperimentStore) *ExperimentHandler {
	return &ExperimentHandler{store: store}
}

type createExperimentRequest struct {
	Name        string   `json:"name" validate:"required,max=200"`
	Strategy    string   `json:"strategy" validate:"required,strategy"`
	Description string   `json:"description"`
	ModelName   string   `json:"model_name"`
	Temperature *float32 `json:"temperature" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   int      `json:"max_tokens" validate:"gte=0"`
	Notes       string   `json:"notes"`
}

func (h *ExperimentHandler) CreateExperiment(c *fiber.Ctx) error {
	var req createExperimentRequest
	if err := validation.Body(c, &req); err != nil {
		return fail(c, err, "Invalid experiment")
	}

	id, err := h.store.CreateExperiment(req.Name, models.Strategy(req.Strategy), req.Description, models.ExperimentOptions{
		ModelName:   req.ModelName,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Notes:       req.Notes,
	})
	if err != nil {
		return fail(c, err, "Failed to create experiment")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"experiment_id": id,
	})
}

func (h *ExperimentHandler) GetExperiment(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err, "Invalid experiment id")
	}

	exp, err := h.store.GetExperiment(id)
	if err != nil {
		return fail(c, err, "Failed to get experiment")
	}

	return c.JSON(fiber.Map{
		"experiment_id":       exp.ID,
		"name":                exp.Name,
		"description":         exp.Description,
		"mitigation_strategy": exp.Strategy,
		"created_at":          exp.CreatedAt.UTC(),
		"model_name":          exp.ModelName,
		"temperature":         exp.Temperature,
		"max_tokens":          exp.MaxTokens,
		"notes":               exp.Notes,
	})
}

func (h *ExperimentHandler) ListExperiments(c *fiber.Ctx) error {
	summaries, err := h.store.GetAllExperiments()
	if err != nil {
		return fail(c, err, "Failed to list experiments")
	}

	out := make([]fiber.Map, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, fiber.Map{
			"experiment_id":           s.ExperimentID,
			"name":                    s.Name,
			"mitigation_strategy":     s.Strategy,
			"created_at":              s.CreatedAt.UTC(),
			"total_tests":             s.TotalTests,
			"hallucinations_detected": s.HallucinationsDetected,
			"hallucination_rate":      s.HallucinationRate,
		})
	}

	return c.JSON(fiber.Map{"experiments": out})
}

type ragSnapshotRequest struct {
	Documents []string  `json:"documents" validate:"required,min=1"`
	Scores    []float64 `json:"scores"`
}

type logTestRequest struct {
	PromptText            string  `json:"prompt_text" validate:"required,maxprompt"`
	ResponseText          string  `json:"response_text"`
	IsHallucination       bool    `json:"is_hallucination"`
	PromptCategory        string  `json:"prompt_category"`
	Intent                string  `json:"intent"`
	ExpectedHallucination *bool   `json:"expected_hallucination"`
	VectorType            string  `json:"vector_type"`
	ResponseTimeMS        float64 `json:"response_time_ms" validate:"gte=0"`
	TokensUsed            int     `json:"tokens_used" validate:"gte=0"`
	HallucinationType     string  `json:"hallucination_type" validate:"hallucination_type"`
	Severity              string  `json:"severity" validate:"severity"`
	Description           string  `json:"description"`
	Evidence              string  `json:"evidence"`
	FalseClaim            string  `json:"false_claim"`

	RAG *ragSnapshotRequest `json:"rag" validate:"omitempty"`
}

func (h *ExperimentHandler) LogTest(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err, "Invalid experiment id")
	}

	var req logTestRequest
	if err := validation.Body(c, &req); err != nil {
		return fail(c, err, "Invalid test")
	}

	meta := models.TestMetadata{
		PromptCategory:        req.PromptCategory,
		Intent:                req.Intent,
		ExpectedHallucination: req.ExpectedHallucination,
		VectorType:            req.VectorType,
		ResponseTimeMS:        req.ResponseTimeMS,
		TokensUsed:            req.TokensUsed,
		HallucinationType:     models.HallucinationType(req.HallucinationType),
		Severity:              models.Severity(req.Severity),
		Description:           req.Description,
		Evidence:              req.Evidence,
		FalseClaim:            req.FalseClaim,
	}
	if req.RAG != nil {
		meta.RAG = &models.RAGSnapshot{Documents: req.RAG.Documents, Scores: req.RAG.Scores}
	}

	ids, err := h.store.LogTest(id, req.PromptText, req.ResponseText, req.IsHallucination, meta)
	if err != nil {
		return fail(c, err, "Failed to log test")
	}

	resp := fiber.Map{
		"prompt_id":        ids.PromptID,
		"response_id":      ids.ResponseID,
		"hallucination_id": ids.HallucinationID,
	}
	if ids.RAGContextID != 0 {
		resp["rag_context_id"] = ids.RAGContextID
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *ExperimentHandler) GetResults(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err, "Invalid experiment id")
	}

	if _, err := h.store.GetExperiment(id); err != nil {
		return fail(c, err, "Failed to get experiment")
	}

	rows, err := h.store.GetExperimentResults(id)
	if err != nil {
		return fail(c, err, "Failed to get results")
	}

	return c.JSON(fiber.Map{"results": resultMaps(rows)})
}

func (h *ExperimentHandler) GetAllResults(c *fiber.Ctx) error {
	rows, err := h.store.GetAllResults()
	if err != nil {
		return fail(c, err, "Failed to get results")
	}
	return c.JSON(fiber.Map{"results": resultMaps(rows)})
}

func (h *ExperimentHandler) GetRAGContext(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err, "Invalid prompt id")
	}

	rc, err := h.store.GetRAGContext(id)
	if err != nil {
		return fail(c, err, "Failed to get RAG context")
	}

	return c.JSON(fiber.Map{
		"context_id":          rc.ID,
		"prompt_id":           rc.PromptID,
		"retrieved_documents": rc.RetrievedDocuments,
		"relevance_scores":    rc.RelevanceScores,
		"num_documents":       rc.NumDocuments,
	})
}

func (h *ExperimentHandler) GetStatistics(c *fiber.Ctx) error {
	stats, err := h.store.GetStatistics()
	if err != nil {
		return fail(c, err, "Failed to get statistics")
	}

	byStrategy := make(fiber.Map, len(stats.ByStrategy))
	for _, s := range stats.ByStrategy {
		byStrategy[string(s.Strategy)] = fiber.Map{
			"total_tests":        s.TotalTests,
			"hallucinations":     s.Hallucinations,
			"hallucination_rate": s.HallucinationRate,
		}
	}

	return c.JSON(fiber.Map{
		"total_experiments": stats.TotalExperiments,
		"total_tests":       stats.TotalTests,
		"by_strategy":       byStrategy,
	})
}

// Export writes the CSV under the configured export directory and sends it.
// An id of 0 exports every experiment.
func (h *ExperimentHandler) Export(c *fiber.Ctx) error {
	var id int64
	if c.Params("id") != "" {
		var err error
		if id, err = paramID(c, "id"); err != nil {
			return fail(c, err, "Invalid experiment id")
		}
		if _, err := h.store.GetExperiment(id); err != nil {
			return fail(c, err, "Failed to get experiment")
		}
	}

	path, err := h.store.ExportToCSV(id, "")
	if err != nil {
		return fail(c, err, "Failed to export results")
	}

	return c.Download(path, filepath.Base(path))
}

func resultMaps(rows []models.ResultRow) []fiber.Map {
	out := make([]fiber.Map, 0, len(rows))
	for _, r := range rows {
		out = append(out, fiber.Map{
			"experiment_id":       r.ExperimentID,
			"name":                r.ExperimentName,
			"mitigation_strategy": r.Strategy,
			"prompt_text":         r.PromptText,
			"prompt_category":     r.PromptCategory,
			"vector_type":         r.VectorType,
			"response_text":       r.ResponseText,
			"response_time_ms":    r.ResponseTimeMS,
			"tokens_used":         r.TokensUsed,
			"is_hallucination":    r.IsHallucination,
			"hallucination_type":  r.HallucinationType,
			"severity":            r.Severity,
			"description":         r.Description,
			"false_claim":         r.FalseClaim,
			"created_at":          r.CreatedAt.UTC(),
		})
	}
	return out
}
