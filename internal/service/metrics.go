package service

import (
	"context"

	"github.com/iliyamo/box-office/internal/model"
	"github.com/iliyamo/box-office/internal/repository"
)

// GetMetrics returns the global rollup from one consistent read-only view.
func (s *Service) GetMetrics(ctx context.Context) (model.Metrics, error) {
	var m model.Metrics
	err := s.store.ReadOnly(ctx, func(ctx context.Context, q repository.Queries) error {
		now := s.clock.Now()
		var err error
		m, err = q.Rollup(ctx, now, now.Add(s.soonWindow))
		return err
	})
	return m, err
}
