package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/hallucination-lab/backend/internal/catalog"
	"github.com/hallucination-lab/backend/internal/experiment"
	"github.com/hallucination-lab/backend/internal/middleware/validation"
	"github.com/hallucination-lab/backend/internal/storage/models"
	"github.com/hallucination-lab/backend/pkg/logger"
)

// RunStreamHandler runs one experiment per websocket connection and pushes
// every judged test to the client as it is recorded.
//
// The client sends a single run message, the same body POST /runs takes.
// The server answers with "started", one "progress" per test, then either
// "complete" or "error", and closes. Closing the socket early cancels the
// run; tests already recorded are kept.
type RunStreamHandler struct {
	runner Runner
}

func NewRunStreamHandler(runner Runner) *RunStreamHandler {
	return &RunStreamHandler{
		runner: runner,
	}
}

// Upgrade rejects plain HTTP requests to the stream route.
func (h *RunStreamHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func (h *RunStreamHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("Run stream connection established")

	defer func() {
		c.Close()
		logger.Info("Run stream connection closed")
	}()

	var req runRequest
	if err := c.ReadJSON(&req); err != nil {
		logger.Warn("Failed to read run stream message", zap.Error(err))
		h.sendError(c, "invalid run message")
		return
	}
	if err := validation.Struct(&req); err != nil {
		h.sendError(c, err.Error())
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The client sends nothing after the run message, so a read error means
	// it went away.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()
	// The conn goes back to a pool once this handler returns.
	defer func() {
		c.Close()
		<-readerDone
	}()

	started := false
	report, err := h.runner.Run(ctx, experiment.RunRequest{
		Name:        req.Name,
		Description: req.Description,
		Strategy:    models.Strategy(req.Strategy),
		Class:       catalog.Class(req.Class),
		Limit:       req.Limit,
		Progress: func(p experiment.Progress) {
			if !started {
				started = true
				h.send(c, fiber.Map{"type": "started", "experiment_id": p.ExperimentID, "total": p.Total})
			}
			h.send(c, fiber.Map{"type": "progress", "progress": p})
		},
	})
	if err != nil {
		logger.Warn("Streamed run failed", zap.Error(err))
		msg := fiber.Map{"type": "error", "error": err.Error()}
		if report != nil {
			msg["report"] = report
		}
		h.send(c, msg)
		return
	}

	h.send(c, fiber.Map{
		"type":   "complete",
		"report": report,
		"text":   experiment.GenerateReport(report),
	})
}

func (h *RunStreamHandler) send(c *websocket.Conn, msg fiber.Map) {
	if err := c.WriteJSON(msg); err != nil {
		logger.Debug("Failed to write run stream message", zap.Error(err))
	}
}

func (h *RunStreamHandler) sendError(c *websocket.Conn, errorMsg string) {
	h.send(c, fiber.Map{
		"type":  "error",
		"error": errorMsg,
	})
}
