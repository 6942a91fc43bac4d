// Package main is the entry point for the FloatChat API server.
//
// It loads configuration, connects to Postgres and applies the schema,
// wires the ingestion, translation, and chat services onto the HTTP
// chassis, and serves until interrupted. Graceful shutdown is handled via
// OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"floatchat/internal/api/handlers"
	"floatchat/internal/chat"
	"floatchat/internal/config"
	"floatchat/internal/core"
	"floatchat/internal/db"
	"floatchat/internal/ingest"
	"floatchat/internal/llm"
	"floatchat/internal/observability"
	"floatchat/internal/translate"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so main() can cleanly exit on error.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("floatchat API starting",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}

	profileRepo := db.NewProfileRepository(pool)
	floatRepo := db.NewFloatRepository(pool)
	historyRepo := db.NewHistoryRepository(pool)

	metrics := observability.NewMetrics()

	llmClient := llm.NewClient(cfg.LLM)
	translator := translate.New(translate.WithAssist(translate.NewLLMAssist(llmClient)))
	composer := chat.NewComposer(translator, profileRepo, llmClient, historyRepo, cfg.Chat, logger)

	ingestSvc := ingest.NewService(profileRepo, floatRepo, cfg.Ingest.Parallelism, logger, metrics)
	fetcher := ingest.NewFetcher(nil, cfg.Ingest.IndexURL, cfg.Ingest.Mirrors, logger)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Metrics = metrics
	srv.HealthProbes = []core.HealthProbe{
		core.ProbeFunc{ProbeName: "database", Fn: pool.Ping},
	}
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		handlers.NewArgoHandler(profileRepo, floatRepo, logger).RegisterRoutes,
		handlers.NewChatHandler(composer, historyRepo, metrics, logger).RegisterRoutes,
		handlers.NewIngestHandler(ingestSvc, fetcher, logger).RegisterRoutes,
	)
	srv.MountRoutes()

	return serveHTTP(ctx, srv, cfg, logger)
}

// serveHTTP runs the server until the context is cancelled or ListenAndServe
// fails, then shuts down with a 10-second deadline.
func serveHTTP(ctx context.Context, srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger for the given level string.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
