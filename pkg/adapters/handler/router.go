package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wadjakorntonsri/ngo-site-api/pkg/config"
	"github.com/wadjakorntonsri/ngo-site-api/pkg/ports"
)

// NewRouter creates and configures the main application router
func NewRouter(cfg *config.Config, analytics ports.AnalyticsService, stats ports.StatsService, store Pinger) http.Handler {
	clients := NewClientResolver(cfg.TrustedProxies)
	h := NewAnalyticsHandler(analytics, stats, store, clients, cfg.IsDevelopment())

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: len(cfg.CORSOrigins) > 0,
		MaxAge:           300,
	}))

	// Public Routes
	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/analytics", func(r chi.Router) {
		// Keyed on the same resolved address that dedup uses.
		limiter := httprate.Limit(cfg.RateLimitRequests, cfg.RateLimitWindow,
			httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
				return clients.Resolve(r), nil
			}),
			httprate.WithLimitHandler(h.TrackLimited),
		)
		r.With(limiter).Post("/track", h.Track)
		r.Get("/geographic-reach", h.GeographicReach)

		// Protected Routes
		r.Group(func(r chi.Router) {
			if cfg.AdminAuthEnabled() {
				r.Use(NewMiddleware(cfg.JWTSecret).AuthMiddleware)
			}
			r.Get("/admin-stats", h.AdminStats)
		})
	})

	return r
}
