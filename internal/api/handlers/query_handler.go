package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/hallucination-lab/backend/internal/knowledge"
	"github.com/hallucination-lab/backend/internal/middleware/validation"
	"github.com/hallucination-lab/backend/internal/mitigation"
	"github.com/hallucination-lab/backend/internal/storage/models"
	"github.com/hallucination-lab/backend/pkg/logger"
)

type Agent interface {
	Query(ctx context.Context, prompt string, strategy models.Strategy, opts mitigation.Options) (*mitigation.Result, error)
}

type Retriever interface {
	Query(ctx context.Context, text string, k int) (*knowledge.Retrieval, error)
}

// QueryHandler sends a single prompt through the mitigation agent.
type QueryHandler struct {
	agent     Agent
	retriever Retriever
	topK      int
}

func NewQueryHandler(agent Agent, retriever Retriever, topK int) *QueryHandler {
	if topK <= 0 {
		topK = knowledge.DefaultTopK
	}
	return &QueryHandler{
		agent:     agent,
		retriever: retriever,
		topK:      topK,
	}
}

type queryRequest struct {
	Prompt   string `json:"prompt" validate:"required,maxprompt"`
	Strategy string `json:"strategy" validate:"required,strategy"`
	// ContextDocuments overrides retrieval for the rag strategy.
	ContextDocuments []string `json:"context_documents"`
	TopK             int      `json:"top_k" validate:"gte=0,lte=20"`
}

func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	var req queryRequest
	if err := validation.Body(c, &req); err != nil {
		return fail(c, err, "Invalid query")
	}

	strategy := models.Strategy(req.Strategy)
	opts := mitigation.Options{ContextDocuments: req.ContextDocuments}

	var retrieval *knowledge.Retrieval
	if strategy == models.StrategyRAG && len(opts.ContextDocuments) == 0 && h.retriever != nil {
		k := req.TopK
		if k == 0 {
			k = h.topK
		}
		r, err := h.retriever.Query(c.UserContext(), req.Prompt, k)
		if err != nil {
			logger.Warn("Knowledge base retrieval failed", zap.Error(err))
		} else {
			retrieval = r
			opts.ContextDocuments = r.Documents
		}
	}

	result, err := h.agent.Query(c.UserContext(), req.Prompt, strategy, opts)
	if err != nil {
		return fail(c, err, "Failed to process query")
	}

	resp := fiber.Map{
		"response": result.Text,
		"strategy": strategy,
		"metadata": result.Metadata,
		"failed":   result.Failed(),
	}
	if retrieval != nil {
		resp["retrieval"] = retrieval
	}

	if result.Failed() {
		return c.Status(fiber.StatusBadGateway).JSON(resp)
	}
	return c.JSON(resp)
}
