package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"papertrade/internal/config"
	"papertrade/internal/db"
	"papertrade/internal/quotes"
	"papertrade/internal/registry"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.LoadForWorker()
	if err != nil {
		slog.Error("failed to load worker config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	refresher := registry.NewService(database, quotes.NewFromConfig(cfg))
	scheduler := registry.NewScheduler(time.Duration(cfg.RefreshIntervalSec)*time.Second, refresher)

	slog.Info("price refresh worker started", "interval_sec", cfg.RefreshIntervalSec)

	if err := scheduler.Run(ctx); err != nil && err != context.Canceled {
		slog.Error("worker stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("price refresh worker stopped")
}
