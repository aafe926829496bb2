package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const maxLoggedQuery = 512

// queryHook records query latency and logs failed or slow statements.
type queryHook struct {
	logger   *zap.Logger
	slow     time.Duration
	duration metric.Float64Histogram
}

func newQueryHook(logger *zap.Logger, slow time.Duration) *queryHook {
	duration, _ := otel.Meter("github.com/Additional-Code/loft/database").Float64Histogram("loft.db.query.duration",
		metric.WithDescription("SQL statement latency"),
		metric.WithUnit("ms"),
	)
	return &queryHook{logger: logger, slow: slow, duration: duration}
}

func (h *queryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *queryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)
	operation := event.Operation()

	if h.duration != nil {
		h.duration.Record(ctx, float64(elapsed.Microseconds())/1000, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.Bool("error", failed(event.Err)),
		))
	}

	switch {
	case failed(event.Err):
		h.logger.Warn("sql query failed",
			zap.String("operation", operation),
			zap.String("query", truncate(event.Query)),
			zap.Duration("elapsed", elapsed),
			zap.Error(event.Err),
		)
	case h.slow > 0 && elapsed >= h.slow:
		h.logger.Warn("slow sql query",
			zap.String("operation", operation),
			zap.String("query", truncate(event.Query)),
			zap.Duration("elapsed", elapsed),
		)
	}
}

// failed ignores sql.ErrNoRows, which repositories translate into not-found results.
func failed(err error) bool {
	return err != nil && !errors.Is(err, sql.ErrNoRows)
}

func truncate(query string) string {
	if len(query) <= maxLoggedQuery {
		return query
	}
	return query[:maxLoggedQuery] + "..."
}
