package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/wadjakorntonsri/ngo-site-api/pkg/adapters/handler"
	"github.com/wadjakorntonsri/ngo-site-api/pkg/adapters/repository"
	"github.com/wadjakorntonsri/ngo-site-api/pkg/config"
	"github.com/wadjakorntonsri/ngo-site-api/pkg/core/services"
	"github.com/wadjakorntonsri/ngo-site-api/pkg/logging"
)

var (
	mux   http.Handler
	mu    sync.Mutex
	build = setup
)

// router builds the dependencies on first use. A failed attempt is not
// cached, so a warm instance recovers once the database is reachable again.
func router() (http.Handler, error) {
	mu.Lock()
	defer mu.Unlock()
	if mux != nil {
		return mux, nil
	}

	built, err := build()
	if err != nil {
		return nil, err
	}
	mux = built
	return mux, nil
}

func setup() (http.Handler, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	// Note: On Vercel, a local SQLite file is ephemeral; use MongoDB or a Turso URL in DATABASE_URL
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	repo, err := repository.Open(ctx, cfg.DatabaseURL, cfg.DatabaseName)
	if err != nil {
		return nil, err
	}

	analytics := services.NewAnalyticsService(repo, repo)
	stats := services.NewStatsService(repo, repo)
	return handler.NewRouter(cfg, analytics, stats, repo), nil
}

// Handler is the entrypoint for Vercel
func Handler(w http.ResponseWriter, r *http.Request) {
	h, err := router()
	if err != nil {
		logging.Error().Err(err).Msg("Function initialisation failed")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"success":false,"message":"Service unavailable"}`))
		return
	}
	h.ServeHTTP(w, r)
}
