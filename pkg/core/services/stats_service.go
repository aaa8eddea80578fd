package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/wadjakorntonsri/ngo-site-api/pkg/core/domain"
	"github.com/wadjakorntonsri/ngo-site-api/pkg/ports"
)

type StatsService struct {
	visits  ports.VisitRepository
	content ports.ContentRepository
}

func NewStatsService(visits ports.VisitRepository, content ports.ContentRepository) *StatsService {
	return &StatsService{visits: visits, content: content}
}

// AdminStats runs every count concurrently. The first failing count cancels
// the rest and fails the whole snapshot.
func (s *StatsService) AdminStats(ctx context.Context) (*domain.AdminStats, error) {
	var stats domain.AdminStats
	g, ctx := errgroup.WithContext(ctx)

	count := func(dst *int64, collection domain.Collection, filters map[string]interface{}) {
		g.Go(func() error {
			n, err := s.content.Count(ctx, collection, filters)
			if err != nil {
				return fmt.Errorf("count %s: %w", collection, err)
			}
			*dst = n
			return nil
		})
	}

	count(&stats.Blogs, domain.CollectionBlogs, nil)
	count(&stats.Programs, domain.CollectionPrograms, nil)
	count(&stats.Team, domain.CollectionTeamMembers, nil)
	count(&stats.Partners, domain.CollectionPartners, nil)
	count(&stats.Jobs, domain.CollectionJobs, nil)
	count(&stats.Subscribers, domain.CollectionSubscribers, map[string]interface{}{"status": "active"})
	count(&stats.Applications, domain.CollectionApplications, nil)

	g.Go(func() error {
		n, err := s.visits.CountVisits(ctx)
		if err != nil {
			return fmt.Errorf("count page views: %w", err)
		}
		stats.PageViews = n
		return nil
	})
	g.Go(func() error {
		n, err := s.visits.CountDistinctVisitors(ctx)
		if err != nil {
			return fmt.Errorf("count distinct visitors: %w", err)
		}
		stats.Visitors = n
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &stats, nil
}
