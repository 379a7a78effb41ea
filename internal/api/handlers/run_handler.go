package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/hallucination-lab/backend/internal/catalog"
	"github.com/hallucination-lab/backend/internal/experiment"
	"github.com/hallucination-lab/backend/internal/middleware/validation"
	"github.com/hallucination-lab/backend/internal/storage/models"
)

type Runner interface {
	Run(ctx context.Context, req experiment.RunRequest) (*experiment.RunReport, error)
}

// RunHandler exposes the test vector catalog and batch runs over it.
type RunHandler struct {
	runner  Runner
	catalog *catalog.Catalog
}

func NewRunHandler(runner Runner, cat *catalog.Catalog) *RunHandler {
	return &RunHandler{
		runner:  runner,
		catalog: cat,
	}
}

func (h *RunHandler) ListVectors(c *fiber.Ctx) error {
	var vectors []catalog.Vector
	if class := c.Query("class"); class != "" {
		parsed, err := catalog.ParseClass(class)
		if err != nil {
			return fail(c, err, "Invalid vector class")
		}
		vectors = h.catalog.Vectors(parsed)
	} else {
		vectors = h.catalog.All()
	}

	return c.JSON(fiber.Map{
		"counts":  h.catalog.Counts(),
		"vectors": vectors,
	})
}

type runRequest struct {
	Name        string `json:"name" validate:"max=200"`
	Description string `json:"description"`
	Strategy    string `json:"strategy" validate:"required,strategy"`
	Class       string `json:"class" validate:"omitempty,oneof=intentional unintentional control"`
	Limit       int    `json:"limit" validate:"gte=0"`
}

// StartRun runs synchronously and returns the full report. A run cut short
// by the client disconnecting still returns what was recorded.
func (h *RunHandler) StartRun(c *fiber.Ctx) error {
	var req runRequest
	if err := validation.Body(c, &req); err != nil {
		return fail(c, err, "Invalid run")
	}

	report, err := h.runner.Run(c.UserContext(), experiment.RunRequest{
		Name:        req.Name,
		Description: req.Description,
		Strategy:    models.Strategy(req.Strategy),
		Class:       catalog.Class(req.Class),
		Limit:       req.Limit,
	})
	if err != nil {
		if report != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return c.Status(fiber.StatusRequestTimeout).JSON(fiber.Map{
				"error":  err.Error(),
				"report": report,
			})
		}
		return fail(c, err, "Failed to run experiment")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"report": report,
		"text":   experiment.GenerateReport(report),
	})
}
