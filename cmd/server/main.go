package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wadjakorntonsri/ngo-site-api/pkg/adapters/handler"
	"github.com/wadjakorntonsri/ngo-site-api/pkg/adapters/repository"
	"github.com/wadjakorntonsri/ngo-site-api/pkg/config"
	"github.com/wadjakorntonsri/ngo-site-api/pkg/core/services"
	"github.com/wadjakorntonsri/ngo-site-api/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Repository
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	repo, err := repository.Open(connectCtx, cfg.DatabaseURL, cfg.DatabaseName)
	cancel()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to database")
	}

	// Initialize Services
	analytics := services.NewAnalyticsService(repo, repo)
	stats := services.NewStatsService(repo, repo)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.NewRouter(cfg, analytics, stats, repo),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logging.Info().Str("port", cfg.Port).Str("env", cfg.AppEnv).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logging.Error().Err(err).Msg("Server failed")
		}
	case <-ctx.Done():
		logging.Info().Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Graceful shutdown failed")
	}
	if err := repo.Close(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Failed to close database")
	}
}
