package order

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/loft/internal/config"
	"github.com/Additional-Code/loft/internal/messaging"
	ordersvc "github.com/Additional-Code/loft/internal/service/order"
	"github.com/Additional-Code/loft/internal/worker"
)

// StatsInvalidator drops the cached order overview.
type StatsInvalidator interface {
	InvalidateStats(ctx context.Context)
}

// NewOrderEventsHandler consumes order lifecycle events and keeps the stats overview fresh.
func NewOrderEventsHandler(logger *zap.Logger, cfg config.Config, svc *ordersvc.Service) worker.HandlerRegistration {
	return worker.HandlerRegistration{
		Name:    "order_events",
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: newEventsHandler(logger, svc),
	}
}

func newEventsHandler(logger *zap.Logger, stats StatsInvalidator) messaging.Handler {
	return func(ctx context.Context, msg messaging.Message) error {
		eventType := msg.Headers[messaging.HeaderEventType]

		var event ordersvc.Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode order event", zap.String("event_type", eventType), zap.Error(err))
			return err
		}
		if eventType == "" {
			eventType = string(event.Type)
		}

		switch ordersvc.EventType(eventType) {
		case ordersvc.EventOrderCreated, ordersvc.EventStatusChanged, ordersvc.EventOrderCancelled,
			ordersvc.EventPaymentStatusChanged:
			stats.InvalidateStats(ctx)
		case ordersvc.EventTrackingUpdated:
		default:
			logger.Warn("unknown order event", zap.String("event_type", eventType), zap.String("order_id", event.OrderID))
			return nil
		}

		logger.Info("order event processed",
			zap.String("event_type", eventType),
			zap.String("trace_id", trace.SpanContextFromContext(ctx).TraceID().String()),
			zap.String("order_id", event.OrderID),
			zap.String("number", event.Number),
			zap.String("status", string(event.Status)),
		)
		return nil
	}
}
