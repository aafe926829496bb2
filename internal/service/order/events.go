package order

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/Additional-Code/loft/internal/entity"
	"github.com/Additional-Code/loft/internal/messaging"
)

// EventType discriminates order lifecycle events on the bus.
type EventType string

const (
	EventOrderCreated         EventType = "order.created"
	EventStatusChanged        EventType = "order.status_changed"
	EventOrderCancelled       EventType = "order.cancelled"
	EventPaymentStatusChanged EventType = "order.payment_status_changed"
	EventTrackingUpdated      EventType = "order.tracking_updated"
)

// Event is emitted after every persisted order change.
type Event struct {
	Type           EventType            `json:"type"`
	OrderID        string               `json:"order_id"`
	Number         string               `json:"number"`
	CustomerID     string               `json:"customer_id"`
	PreviousStatus entity.OrderStatus   `json:"previous_status,omitempty"`
	Status         entity.OrderStatus   `json:"status"`
	PaymentStatus  entity.PaymentStatus `json:"payment_status"`
	TrackingNumber string               `json:"tracking_number,omitempty"`
	OccurredAt     time.Time            `json:"occurred_at"`
}

func newEvent(t EventType, order *entity.Order, previous entity.OrderStatus, at time.Time) Event {
	return Event{
		Type:           t,
		OrderID:        order.ID,
		Number:         order.Number,
		CustomerID:     order.CustomerID,
		PreviousStatus: previous,
		Status:         order.Status,
		PaymentStatus:  order.PaymentStatus,
		TrackingNumber: order.TrackingNumber,
		OccurredAt:     at,
	}
}

// publish is best effort: the write already happened, so failures are logged only.
func (s *Service) publish(ctx context.Context, event Event) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal order event", zap.String("type", string(event.Type)), zap.Error(err))
		return
	}
	headers := map[string]string{messaging.HeaderEventType: string(event.Type)}
	if err := s.publisher.Publish(ctx, []byte(event.OrderID), payload, headers); err != nil {
		s.logger.Error("publish order event",
			zap.String("type", string(event.Type)),
			zap.String("order_id", event.OrderID),
			zap.Error(err),
		)
	}
}
