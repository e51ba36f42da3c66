package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Service assembles the analytics summary. Aggregation is pure; the
// repository only loads rows, so zero history simply yields zeroed blocks.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Summarize computes the full analytics payload for a user.
func (s *Service) Summarize(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	rows, err := s.repo.LoadTaskRows(ctx, userID)
	if err != nil {
		return nil, err
	}
	rated, err := s.repo.LoadRatedSessions(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile, err := s.repo.LoadProfileStats(ctx, userID)
	if err != nil {
		return nil, err
	}

	quick := buildQuickStats(rows, profile)
	byCategory := buildCategoryStats(rows)
	byTime := buildTimeOfDayStats(rows)

	return &Summary{
		QuickStats:      quick,
		ByCategory:      byCategory,
		BestTimeOfDay:   byTime,
		StuckCategories: buildStuckCategories(rated),
		Trend:           buildTrend(rows, time.Now()),
		Insights:        buildInsights(quick, byCategory, byTime),
	}, nil
}
