package order

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Additional-Code/loft/internal/entity"
)

type serviceMetrics struct {
	created     metric.Int64Counter
	transitions metric.Int64Counter
}

func newServiceMetrics() *serviceMetrics {
	meter := otel.Meter("github.com/Additional-Code/loft/service/order")
	m := &serviceMetrics{}
	m.created, _ = meter.Int64Counter("loft.orders.created",
		metric.WithDescription("Orders placed"),
	)
	m.transitions, _ = meter.Int64Counter("loft.orders.transitions",
		metric.WithDescription("Order status, payment and tracking changes"),
	)
	return m
}

func (m *serviceMetrics) orderCreated(ctx context.Context, orderType entity.OrderType) {
	if m.created != nil {
		m.created.Add(ctx, 1, metric.WithAttributes(attribute.String("order_type", string(orderType))))
	}
}

func (m *serviceMetrics) transition(ctx context.Context, kind EventType, to string) {
	if m.transitions != nil {
		m.transitions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", string(kind)),
			attribute.String("to", to),
		))
	}
}
