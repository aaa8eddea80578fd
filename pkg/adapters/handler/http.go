package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/wadjakorntonsri/ngo-site-api/pkg/core/domain"
	"github.com/wadjakorntonsri/ngo-site-api/pkg/logging"
	"github.com/wadjakorntonsri/ngo-site-api/pkg/metrics"
	"github.com/wadjakorntonsri/ngo-site-api/pkg/ports"
)

const maxTrackBody = 16 << 10

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type AnalyticsHandler struct {
	analytics ports.AnalyticsService
	stats     ports.StatsService
	store     Pinger
	clients   *ClientResolver
	debug     bool
}

func NewAnalyticsHandler(analytics ports.AnalyticsService, stats ports.StatsService, store Pinger, clients *ClientResolver, debug bool) *AnalyticsHandler {
	return &AnalyticsHandler{
		analytics: analytics,
		stats:     stats,
		store:     store,
		clients:   clients,
		debug:     debug,
	}
}

type successResponse struct {
	Success bool `json:"success"`
}

type geographicReachResponse struct {
	Success bool                  `json:"success"`
	Total   int64                 `json:"total"`
	Data    []domain.CountryReach `json:"data"`
}

type adminStatsResponse struct {
	Success bool               `json:"success"`
	Stats   *domain.AdminStats `json:"stats"`
}

// Track records a page view. Tracking is best-effort, so the response is
// always a success whatever happened to the body or the store.
func (h *AnalyticsHandler) Track(w http.ResponseWriter, r *http.Request) {
	var req TrackVisitRequest
	body := http.MaxBytesReader(w, r.Body, maxTrackBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("unreadable track body, using defaults")
		req = TrackVisitRequest{}
	}
	req.normalize()

	h.analytics.TrackVisit(r.Context(), h.clients.Resolve(r), req.Country, req.Page, r.UserAgent())
	writeJSON(w, r, http.StatusOK, successResponse{Success: true})
}

// TrackLimited answers requests over the rate limit exactly like a recorded
// one, without storing anything.
func (h *AnalyticsHandler) TrackLimited(w http.ResponseWriter, r *http.Request) {
	metrics.VisitsRateLimited.Inc()
	logging.Ctx(r.Context()).Debug().Msg("track request over rate limit")
	writeJSON(w, r, http.StatusOK, successResponse{Success: true})
}

func (h *AnalyticsHandler) GeographicReach(w http.ResponseWriter, r *http.Request) {
	reach, err := h.analytics.GeographicReach(r.Context())
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("geographic reach failed")
		writeError(w, r, http.StatusInternalServerError, "Failed to fetch geographic reach", err, h.debug)
		return
	}

	writeJSON(w, r, http.StatusOK, geographicReachResponse{
		Success: true,
		Total:   reach.Total,
		Data:    reach.Data,
	})
}

func (h *AnalyticsHandler) AdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.AdminStats(r.Context())
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("admin stats failed")
		writeError(w, r, http.StatusInternalServerError, "Failed to fetch admin stats", err, h.debug)
		return
	}

	writeJSON(w, r, http.StatusOK, adminStatsResponse{Success: true, Stats: stats})
}

func (h *AnalyticsHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("store ping failed")
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
