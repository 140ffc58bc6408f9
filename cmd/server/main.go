// Command server starts the fraudlab scoring service.
//
// Usage:
//
//	go run ./cmd/server
//
// Configuration is read from the environment (and .env when present); see
// internal/config. The model manifest written by `fraudgen features
// --calibrate` is loaded from MODEL_MANIFEST.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"lumina/fraud-lab/internal/api"
	"lumina/fraud-lab/internal/config"
	"lumina/fraud-lab/internal/scoring"
	"lumina/fraud-lab/internal/store"
	"lumina/fraud-lab/internal/webhook"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	slog.SetDefault(newLogger(cfg.Server))

	// ── Wire dependencies ─────────────────────────────────────────────────────
	history, closeStore, err := newHistoryStore(cfg)
	if err != nil {
		slog.Error("history store unavailable", "backend", cfg.History.Backend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	manifest, err := scoring.LoadManifest(cfg.Model.ManifestPath)
	if err != nil {
		slog.Error("model manifest not loaded", "path", cfg.Model.ManifestPath, "error", err)
		os.Exit(1)
	}
	engine, err := scoring.New(manifest, scoring.DeviationScorer{})
	if err != nil {
		slog.Error("scoring engine", "error", err)
		os.Exit(1)
	}

	notifier := webhook.New(cfg.Alerts.WebhookURLs, cfg.Alerts.Timeout)
	handler := api.NewHandler(history, engine, notifier)
	router := api.NewRouter(handler)

	// ── Start HTTP server ─────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server listening",
			"port", cfg.Server.Port,
			"environment", cfg.Server.Environment,
			"history_backend", cfg.History.Backend,
			"model", manifest.Model,
			"model_version", manifest.Version,
			"features", len(manifest.Features),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	notifier.Wait()
	slog.Info("server stopped")
}

func newLogger(cfg config.ServerConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func newHistoryStore(cfg *config.Service) (store.HistoryStore, func(), error) {
	opts := store.Options{Lookback: cfg.History.Lookback, Retention: cfg.History.Retention}
	switch cfg.History.Backend {
	case config.BackendRedis:
		client, err := store.NewRedisClient(cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				slog.Warn("redis close", "error", err)
			}
		}
		return store.NewRedis(client, cfg.History.KeyPrefix, opts), closeFn, nil
	default:
		return store.NewMemory(opts), func() {}, nil
	}
}
