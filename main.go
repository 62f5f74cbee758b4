package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"casefile-progress/archive"
	"casefile-progress/config"
	"casefile-progress/handlers"
	"casefile-progress/middleware"
	"casefile-progress/services"
	"casefile-progress/store"
	"casefile-progress/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func main() {
	cfg, dotenv, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "event", "startup_config_invalid", "error", err.Error())
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	if !dotenv {
		logger.Info("no .env file found, reading environment variables directly", "event", "startup_dotenv_missing")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st store.Store
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory store", "event", "startup_memory_store")
		st = store.NewMemory()
	} else {
		pg, err := store.OpenPostgres(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Error("failed to connect to database", "event", "startup_db_failed", "error", err.Error())
			os.Exit(1)
		}
		st = pg
	}
	defer st.Close()

	progressionService := services.NewProgressionService(st, cfg.RewardWeights(), logger)
	progressionService.Evaluator = services.NewEvaluator(cfg.LegendExemptionCount)

	if cfg.R2().Enabled() {
		r2, err := archive.NewR2(ctx, cfg.R2())
		if err != nil {
			logger.Error("failed to initialize R2 client", "event", "startup_r2_failed", "error", err.Error())
			os.Exit(1)
		}
		progressionService.Archiver = r2
	}

	reconciler := workers.NewReferralReconciler(progressionService, cfg.ReferralReconcileInterval, cfg.ReferralReconcileBatch, logger)
	if err := reconciler.Start(ctx); err != nil {
		logger.Error("failed to start referral reconciler", "event", "startup_reconciler_failed", "error", err.Error())
		os.Exit(1)
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024,
	})

	// GLOBAL: Only Gateway requests allowed
	app.Use(middleware.GatewayAuthMiddleware(cfg.GameServiceToken, logger))

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Email, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID, Retry-After",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	handlers.SetupProgressionRoutes(app, progressionService, logger)

	go func() {
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			logger.Error("server error", "event", "http_listen_failed", "error", err.Error())
			stop()
		}
	}()

	logger.Info("server running",
		"event", "startup_complete",
		"addr", cfg.HTTPAddr,
		"origins", cfg.AllowedOrigins,
		"archive", cfg.R2().Enabled(),
	)

	<-ctx.Done()
	logger.Info("shutting down server", "event", "shutdown_started")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "event", "shutdown_http_failed", "error", err.Error())
	}
	if err := reconciler.Stop(); err != nil {
		logger.Error("reconciler shutdown failed", "event", "shutdown_reconciler_failed", "error", err.Error())
	}
}
