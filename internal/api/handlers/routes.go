package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/hallucination-lab/backend/internal/metrics"
)

type Set struct {
	Experiments *ExperimentHandler
	Query       *QueryHandler
	Documents   *DocumentHandler
	Runs        *RunHandler
	// RunStream is optional.
	RunStream *RunStreamHandler
	// Limit guards the routes that spend model tokens. Nil disables it.
	Limit fiber.Handler
}

// Register mounts every route under /api/v1, plus /metrics at the root.
func Register(app *fiber.App, h Set) {
	limit := h.Limit
	if limit == nil {
		limit = func(c *fiber.Ctx) error { return c.Next() }
	}

	app.Get("/metrics", metrics.MetricsHandler())

	api := app.Group("/api/v1")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Post("/experiments", h.Experiments.CreateExperiment)
	api.Get("/experiments", h.Experiments.ListExperiments)
	api.Get("/experiments/:id", h.Experiments.GetExperiment)
	api.Post("/experiments/:id/tests", h.Experiments.LogTest)
	api.Get("/experiments/:id/results", h.Experiments.GetResults)
	api.Get("/experiments/:id/export", h.Experiments.Export)
	api.Get("/results", h.Experiments.GetAllResults)
	api.Get("/results/export", h.Experiments.Export)
	api.Get("/prompts/:id/rag-context", h.Experiments.GetRAGContext)
	api.Get("/statistics", h.Experiments.GetStatistics)

	api.Get("/vectors", h.Runs.ListVectors)
	api.Post("/runs", limit, h.Runs.StartRun)
	if h.RunStream != nil {
		api.Get("/runs/stream", limit, h.RunStream.Upgrade, websocket.New(h.RunStream.HandleConnection))
	}
	api.Post("/query", limit, h.Query.HandleQuery)

	kb := api.Group("/knowledge")
	kb.Get("/count", h.Documents.Count)
	kb.Post("/seed", limit, h.Documents.Seed)
	kb.Post("/search", limit, h.Documents.Search)
	kb.Post("/documents", limit, h.Documents.AddDocuments)
	kb.Post("/ingest", limit, h.Documents.UploadDocument)
	api.Delete("/knowledge", h.Documents.Clear)
}
