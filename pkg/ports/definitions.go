package ports

import (
	"context"
	"errors"
	"time"

	"github.com/wadjakorntonsri/ngo-site-api/pkg/core/domain"
)

// ErrUnknownCollection is returned for collections the store does not serve.
var ErrUnknownCollection = errors.New("unknown collection")

// VisitRepository defines storage operations for visits
type VisitRepository interface {
	// RecordVisitOnce inserts visit unless a visit for the same (IP, Page)
	// was recorded within window. The check and the insert are atomic.
	RecordVisitOnce(ctx context.Context, visit *domain.Visit, window time.Duration) (bool, error)
	CountVisits(ctx context.Context) (int64, error)
	CountDistinctVisitors(ctx context.Context) (int64, error)
	CountVisitsByCountry(ctx context.Context) ([]domain.CountryCount, error)
	DumpVisits(ctx context.Context) ([]domain.Visit, error) // For migration
}

// ContentRepository reads collections owned by the CMS.
type ContentRepository interface {
	// CountUsersByCountry groups registered users; a missing country is
	// reported as domain.UnknownCountry.
	CountUsersByCountry(ctx context.Context) ([]domain.CountryCount, error)
	// Count returns the number of documents in collection whose fields
	// equal every entry of filters.
	Count(ctx context.Context, collection domain.Collection, filters map[string]interface{}) (int64, error)
	InsertDocuments(ctx context.Context, collection domain.Collection, docs []domain.Document) (int, error)
}

// Repository is the full store contract implemented by each backend.
type Repository interface {
	VisitRepository
	ContentRepository
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// AnalyticsService defines the visitor analytics operations
type AnalyticsService interface {
	// TrackVisit is best-effort: failures are logged, never returned.
	TrackVisit(ctx context.Context, ip, country, page, userAgent string)
	GeographicReach(ctx context.Context) (*domain.GeographicReach, error)
}

// StatsService builds the admin dashboard summary
type StatsService interface {
	AdminStats(ctx context.Context) (*domain.AdminStats, error)
}
