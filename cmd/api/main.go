package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/hallucination-lab/backend/internal/api/handlers"
	"github.com/hallucination-lab/backend/internal/app"
	"github.com/hallucination-lab/backend/internal/metrics"
	"github.com/hallucination-lab/backend/internal/middleware/ratelimit"
	"github.com/hallucination-lab/backend/internal/middleware/security"
	"github.com/hallucination-lab/backend/pkg/config"
	appLogger "github.com/hallucination-lab/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load(os.Getenv("HALLUC_CONFIG"))
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting hallucination harness API server")

	metrics.Init()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	harness, err := app.Build(ctx, cfg)
	cancel()
	if err != nil {
		appLogger.Fatal("Failed to initialize harness", zap.Error(err))
	}
	defer harness.Close()

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: cfg.Server.RateLimitPerMinute,
	})
	defer limiter.Stop()

	server := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	server.Use(recover.New())
	server.Use(logger.New())
	server.Use(security.HeadersMiddleware(security.HeadersConfig{
		HSTS: cfg.Server.TLS,
	}))
	server.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Client-ID",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))

	handlers.Register(server, handlers.Set{
		Experiments: handlers.NewExperimentHandler(harness.Store),
		Query:       handlers.NewQueryHandler(harness.Agent, harness.Knowledge, cfg.Runner.TopK),
		Documents:   handlers.NewDocumentHandler(harness.Knowledge, harness.Ingester),
		Runs:        handlers.NewRunHandler(harness.Runner, harness.Catalog),
		RunStream:   handlers.NewRunStreamHandler(harness.Runner),
		Limit:       limiter.Middleware(),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := server.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Warn("Shutdown did not complete cleanly", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
