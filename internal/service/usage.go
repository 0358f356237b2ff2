package service

import (
	"context"
	"fmt"

	"github.com/utafrali/revu/internal/domain"
)

// UsageReporter reports the current month's usage of one metered API.
// *quota.Gateway implements it.
type UsageReporter interface {
	API() string
	UsageStats(ctx context.Context) (domain.UsageStats, error)
}

// UsageService summarises metered API consumption.
type UsageService struct {
	reporters []UsageReporter
}

// NewUsageService creates a usage service over the given gateways.
func NewUsageService(reporters ...UsageReporter) *UsageService {
	return &UsageService{reporters: reporters}
}

// Stats returns this month's usage keyed by API name.
func (s *UsageService) Stats(ctx context.Context) (map[string]domain.UsageStats, error) {
	stats := make(map[string]domain.UsageStats, len(s.reporters))
	for _, r := range s.reporters {
		st, err := r.UsageStats(ctx)
		if err != nil {
			return nil, fmt.Errorf("usage stats for %s: %w", r.API(), err)
		}
		stats[r.API()] = st
	}
	return stats, nil
}
