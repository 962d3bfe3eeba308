package main

import (
	"context"
	"expvar"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"papertrade/internal/api"
	"papertrade/internal/auth"
	"papertrade/internal/config"
	"papertrade/internal/db"
	"papertrade/internal/ledger"
	"papertrade/internal/portfolio"
	"papertrade/internal/quotes"
	"papertrade/internal/registry"
	"papertrade/internal/stream"
	"papertrade/internal/telemetry"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.LoadForServer()
	if err != nil {
		slog.Error("failed to load server config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	verifier := auth.NewHTTPVerifier(cfg.AuthServiceURL, cfg.AuthServiceAPIKey)
	ledgerService := ledger.NewService(database)
	valuator := portfolio.NewService(database)

	hub := stream.NewHub()
	streamServer := stream.NewServer(hub, verifier)

	refresher := registry.NewService(database, quotes.NewFromConfig(cfg))
	refresher.SetNotify(func(updates []db.PriceUpdate) {
		ticks := make([]stream.PriceTick, 0, len(updates))
		for _, update := range updates {
			ticks = append(ticks, stream.PriceTick{
				Symbol:        update.Symbol,
				Price:         update.CurrentPrice,
				ChangePercent: update.ChangePercent,
			})
		}
		hub.Broadcast(ticks)
	})

	if cfg.QuoteProviderName != "" {
		scheduler := registry.NewScheduler(time.Duration(cfg.RefreshIntervalSec)*time.Second, refresher)
		go func() {
			if err := scheduler.Run(ctx); err != nil && err != context.Canceled {
				slog.Error("refresh scheduler stopped", "error", err)
			}
		}()
	}

	router := chi.NewRouter()
	router.Use(telemetry.APIRequestMetricsMiddleware)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/debug/vars", expvar.Handler())
	router.Get("/ws", streamServer.Handler())

	apiServer := api.NewServer(database, ledgerService, valuator, refresher, verifier)
	apiServer.Mount(router)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	slog.Info("api server started", "port", cfg.Port)

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-serverErrCh:
		slog.Error("api server terminated unexpectedly", "error", err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	slog.Info("api server stopped")
}
