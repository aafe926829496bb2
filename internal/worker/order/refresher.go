package order

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/loft/internal/config"
	repo "github.com/Additional-Code/loft/internal/repository/order"
	ordersvc "github.com/Additional-Code/loft/internal/service/order"
)

const refreshTimeout = 30 * time.Second

// StatsRefresher recomputes and caches the order overview.
type StatsRefresher interface {
	RefreshStats(ctx context.Context) (*repo.Stats, error)
}

// Refresher re-warms the stats cache on a cron schedule.
type Refresher struct {
	cron     *cron.Cron
	schedule string
	stats    StatsRefresher
	logger   *zap.Logger
}

// NewRefresher builds the scheduled stats refresher.
func NewRefresher(cfg config.Config, svc *ordersvc.Service, logger *zap.Logger) *Refresher {
	return newRefresher(cfg.Orders.StatsRefreshCron, svc, logger)
}

func newRefresher(schedule string, stats StatsRefresher, logger *zap.Logger) *Refresher {
	return &Refresher{
		cron:     cron.New(),
		schedule: schedule,
		stats:    stats,
		logger:   logger,
	}
}

// Start registers the job and starts the scheduler. An empty schedule disables it.
func (r *Refresher) Start(context.Context) error {
	if r.schedule == "" {
		r.logger.Info("stats refresher disabled")
		return nil
	}
	if _, err := r.cron.AddFunc(r.schedule, r.refresh); err != nil {
		return err
	}
	r.cron.Start()
	r.logger.Info("stats refresher started", zap.String("schedule", r.schedule))
	return nil
}

// Stop waits for a running refresh to finish or ctx to expire.
func (r *Refresher) Stop(ctx context.Context) error {
	done := r.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Refresher) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	stats, err := r.stats.RefreshStats(ctx)
	if err != nil {
		r.logger.Warn("stats refresh failed", zap.Error(err))
		return
	}
	r.logger.Debug("stats refreshed", zap.Int64("total_orders", stats.Total))
}

func runRefresher(lc fx.Lifecycle, r *Refresher) {
	lc.Append(fx.Hook{
		OnStart: r.Start,
		OnStop:  r.Stop,
	})
}
