package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/hallucination-lab/backend/internal/catalog"
	"github.com/hallucination-lab/backend/internal/experiment"
	"github.com/hallucination-lab/backend/internal/knowledge"
	"github.com/hallucination-lab/backend/internal/mitigation"
	"github.com/hallucination-lab/backend/internal/storage/models"
	"github.com/hallucination-lab/backend/internal/storage/sqlite"
	"github.com/hallucination-lab/backend/pkg/logger"
)

func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, sqlite.ErrExperimentNotFound),
		errors.Is(err, sqlite.ErrRAGContextNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, models.ErrInvalidStrategy),
		errors.Is(err, models.ErrInvalidHallucinationType),
		errors.Is(err, models.ErrInvalidSeverity),
		errors.Is(err, mitigation.ErrUnknownStrategy),
		errors.Is(err, catalog.ErrUnknownClass),
		errors.Is(err, experiment.ErrNoVectors),
		errors.Is(err, knowledge.ErrEmptyText),
		errors.Is(err, knowledge.ErrNoContent):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// fail logs err and writes it as a JSON error. Server-side failures are
// reported with the generic message; client errors carry the cause.
func fail(c *fiber.Ctx, err error, message string) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		logger.Error(message, zap.Error(err), zap.String("path", c.Path()))
		return c.Status(status).JSON(fiber.Map{"error": message})
	}

	logger.Debug(message, zap.Error(err), zap.String("path", c.Path()))
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func paramID(c *fiber.Ctx, name string) (int64, error) {
	id, err := c.ParamsInt(name)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, name+" must be a positive integer")
	}
	return int64(id), nil
}
