package order

import (
	"context"
	"encoding/json"
	"errors"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/Additional-Code/loft/internal/cache"
	repo "github.com/Additional-Code/loft/internal/repository/order"
	"github.com/Additional-Code/loft/pkg/errorbank"
)

// Stats returns the aggregate overview, served from cache when warm.
func (s *Service) Stats(ctx context.Context) (*repo.Stats, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Stats")
	defer span.End()

	if s.cache != nil {
		raw, err := s.cache.Get(ctx, StatsCacheKey)
		if err == nil {
			var stats repo.Stats
			if err := json.Unmarshal(raw, &stats); err == nil {
				return &stats, nil
			}
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("stats cache read failed", zap.Error(err))
		}
	}

	stats, err := s.RefreshStats(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stats failed")
		return nil, err
	}
	return stats, nil
}

// RefreshStats recomputes the overview and stores it in cache.
func (s *Service) RefreshStats(ctx context.Context) (*repo.Stats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, errorbank.Internal("failed to compute order stats", errorbank.WithCause(err))
	}
	if s.cache != nil {
		raw, err := json.Marshal(stats)
		if err == nil {
			err = s.cache.Set(ctx, StatsCacheKey, raw, s.statsTTL)
		}
		if err != nil {
			s.logger.Warn("stats cache write failed", zap.Error(err))
		}
	}
	return stats, nil
}
