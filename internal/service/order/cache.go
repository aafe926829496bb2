package order

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/Additional-Code/loft/internal/cache"
	"github.com/Additional-Code/loft/internal/entity"
)

// StatsCacheKey holds the cached stats overview.
const StatsCacheKey = "orders:stats:overview"

func (s *Service) cacheKey(id string) string {
	return "orders:" + id
}

func (s *Service) getFromCache(ctx context.Context, id string) (*entity.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, s.cacheKey(id))
	if err != nil {
		return nil, err
	}
	var order entity.Order
	if err := json.Unmarshal(bytes, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) error {
	if s.cache == nil || order == nil {
		return nil
	}
	bytes, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, s.cacheKey(order.ID), bytes, s.cacheTTL)
}

// invalidate drops the order and the stats overview after a write.
func (s *Service) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.cacheKey(id)); err != nil {
		s.logger.Warn("orders cache delete failed", zap.String("id", id), zap.Error(err))
	}
	s.InvalidateStats(ctx)
}

// InvalidateStats drops the cached stats overview.
func (s *Service) InvalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, StatsCacheKey); err != nil {
		s.logger.Warn("stats cache delete failed", zap.Error(err))
	}
}
