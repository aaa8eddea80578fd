package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/wadjakorntonsri/ngo-site-api/pkg/core/domain"
	"github.com/wadjakorntonsri/ngo-site-api/pkg/logging"
	"github.com/wadjakorntonsri/ngo-site-api/pkg/metrics"
	"github.com/wadjakorntonsri/ngo-site-api/pkg/ports"
)

// DedupWindow is the cooldown during which repeat views of a page from the
// same address are not recorded again.
const DedupWindow = time.Hour

const trackTimeout = 5 * time.Second

type AnalyticsService struct {
	visits  ports.VisitRepository
	content ports.ContentRepository
	now     func() time.Time
}

func NewAnalyticsService(visits ports.VisitRepository, content ports.ContentRepository) *AnalyticsService {
	return &AnalyticsService{
		visits:  visits,
		content: content,
		now:     time.Now,
	}
}

// TrackVisit records a page view unless the same address viewed the same page
// within DedupWindow. It never reports failure: errors are logged and counted
// so analytics can not break the public site.
func (s *AnalyticsService) TrackVisit(ctx context.Context, ip, country, page, userAgent string) {
	visit := domain.NewVisit(ip, country, page, userAgent, s.now())

	// Detach from the request so a client hanging up does not drop the write.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), trackTimeout)
	defer cancel()

	recorded, err := s.visits.RecordVisitOnce(ctx, visit, DedupWindow)
	if err != nil {
		metrics.VisitTrackingErrors.Inc()
		logging.Ctx(ctx).Warn().Err(err).
			Str("page", visit.Page).
			Msg("visit tracking failed")
		return
	}
	if !recorded {
		metrics.VisitsDeduplicated.Inc()
		logging.Ctx(ctx).Debug().
			Str("page", visit.Page).
			Msg("duplicate visit within cooldown")
		return
	}
	metrics.VisitsRecorded.Inc()
}

// GeographicReach merges visit and registered-user counts per country.
func (s *AnalyticsService) GeographicReach(ctx context.Context) (*domain.GeographicReach, error) {
	visitCounts, err := s.visits.CountVisitsByCountry(ctx)
	if err != nil {
		return nil, fmt.Errorf("count visits by country: %w", err)
	}

	userCounts, err := s.content.CountUsersByCountry(ctx)
	if err != nil {
		return nil, fmt.Errorf("count users by country: %w", err)
	}

	return buildGeographicReach(visitCounts, userCounts), nil
}

func buildGeographicReach(visitCounts, userCounts []domain.CountryCount) *domain.GeographicReach {
	index := make(map[string]int)
	merged := make([]domain.CountryReach, 0, len(visitCounts)+len(userCounts))

	add := func(c domain.CountryCount) {
		country := c.Country
		if country == "" {
			country = domain.UnknownCountry
		}
		if i, ok := index[country]; ok {
			merged[i].Visitors += c.Count
			return
		}
		index[country] = len(merged)
		merged = append(merged, domain.CountryReach{Country: country, Visitors: c.Count})
	}
	for _, c := range visitCounts {
		add(c)
	}
	for _, c := range userCounts {
		add(c)
	}

	var total int64
	for _, r := range merged {
		total += r.Visitors
	}

	for i := range merged {
		merged[i].Percentage = percentage(merged[i].Visitors, total)
		merged[i].Flag = FlagFor(merged[i].Country)
	}

	// Stable keeps merge order between countries with equal counts.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Visitors > merged[j].Visitors
	})

	return &domain.GeographicReach{Total: total, Data: merged}
}

func percentage(count, total int64) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(count) / float64(total) * 100))
}
