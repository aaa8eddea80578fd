package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	VisitsRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "visits_recorded_total",
			Help: "Total number of page views persisted",
		},
	)

	VisitsDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "visits_deduplicated_total",
			Help: "Total number of page views suppressed by the cooldown window",
		},
	)

	VisitsRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "visits_rate_limited_total",
			Help: "Total number of track requests skipped by the per-client rate limit",
		},
	)

	VisitTrackingErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "visit_tracking_errors_total",
			Help: "Total number of page views dropped because of an error",
		},
	)

	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_query_duration_seconds",
			Help:    "Duration of document store queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// ObserveQuery records how long a store operation took.
//
//	defer metrics.ObserveQuery("count_visits", time.Now())
func ObserveQuery(operation string, start time.Time) {
	StoreQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func RecordHTTPRequest(method, route, status string, duration time.Duration) {
	HTTPRequests.WithLabelValues(method, route, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
