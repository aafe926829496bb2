package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/loft/internal/entity"
	repo "github.com/Additional-Code/loft/internal/repository/order"
	"github.com/Additional-Code/loft/pkg/errorbank"
)

// maxTrackingLength matches the tracking_number column width.
const maxTrackingLength = 128

// cancellable lists the statuses a customer may cancel from.
var cancellable = []entity.OrderStatus{entity.OrderStatusPending, entity.OrderStatusConfirmed}

// CanCancel reports whether a customer may cancel an order in status s.
func CanCancel(s entity.OrderStatus) bool {
	for _, c := range cancellable {
		if s == c {
			return true
		}
	}
	return false
}

func appendNote(existing, note string) string {
	if strings.TrimSpace(existing) == "" {
		return note
	}
	return existing + "\n" + note
}

// Cancel moves the customer's own order to cancelled, appending the reason to its notes.
// Only pending and confirmed orders can be cancelled; repeating a cancel fails.
func (s *Service) Cancel(ctx context.Context, customerID, id, reason string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Cancel", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	current, err := s.load(ctx, span, id)
	if err != nil {
		return nil, err
	}
	if !current.OwnedBy(customerID) {
		return nil, errorbank.NotFound("order not found")
	}
	if !CanCancel(current.Status) {
		return nil, cannotCancel(current.Status)
	}

	reason = strings.TrimSpace(s.sanitize(reason))
	if reason == "" {
		reason = "no reason provided"
	}
	notes := appendNote(current.Notes, "Cancelled by customer: "+reason)

	now := s.now()
	err = s.repo.CompareAndSwapStatus(ctx, id, current.Version, cancellable, entity.OrderStatusCancelled, notes, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancel failed")
		if errors.Is(err, repo.ErrVersionConflict) {
			return nil, s.explainLostRace(ctx, span, id)
		}
		return nil, s.writeError(err, "failed to cancel order")
	}

	updated, err := s.afterWrite(ctx, span, id, EventOrderCancelled, current.Status, now)
	if err != nil {
		return nil, err
	}
	s.metrics.transition(ctx, EventOrderCancelled, string(entity.OrderStatusCancelled))
	s.logger.Info("order cancelled by customer", zap.String("id", id), zap.String("previous_status", string(current.Status)))
	return updated, nil
}

// explainLostRace re-reads after a failed compare-and-swap to tell a guard failure from a
// concurrent modification.
func (s *Service) explainLostRace(ctx context.Context, span trace.Span, id string) error {
	latest, err := s.load(ctx, span, id)
	if err != nil {
		return err
	}
	if !CanCancel(latest.Status) {
		return cannotCancel(latest.Status)
	}
	return errorbank.Conflict("order was modified concurrently; retry", errorbank.WithDetail("version", latest.Version))
}

func cannotCancel(status entity.OrderStatus) error {
	return errorbank.InvalidTransition("cannot cancel at this stage", errorbank.WithDetail("status", string(status)))
}

// SetStatus sets any enumerated status regardless of the current one. Entering delivered
// stamps the delivery date once. expectedVersion <= 0 means last write wins.
func (s *Service) SetStatus(ctx context.Context, id string, status entity.OrderStatus, expectedVersion int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.SetStatus", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.status", string(status)),
	))
	defer span.End()

	if !status.Valid() {
		return nil, errorbank.BadRequest("validation failed", errorbank.WithFieldErrors(errorbank.FieldError{
			Field:   "status",
			Message: "must be one of pending, confirmed, processing, shipped, delivered, completed, cancelled, returned",
		}))
	}

	previous, err := s.load(ctx, span, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.repo.UpdateStatus(ctx, id, status, expectedVersion, now); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return nil, s.writeError(err, "failed to update order status")
	}

	updated, err := s.afterWrite(ctx, span, id, EventStatusChanged, previous.Status, now)
	if err != nil {
		return nil, err
	}
	s.metrics.transition(ctx, EventStatusChanged, string(status))
	s.logger.Info("order status updated",
		zap.String("id", id),
		zap.String("from", string(previous.Status)),
		zap.String("to", string(status)),
	)
	return updated, nil
}

// SetPaymentStatus records a payment status. It never moves the fulfilment status.
func (s *Service) SetPaymentStatus(ctx context.Context, id string, status entity.PaymentStatus, expectedVersion int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.SetPaymentStatus", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.payment_status", string(status)),
	))
	defer span.End()

	if !status.Valid() {
		return nil, errorbank.BadRequest("validation failed", errorbank.WithFieldErrors(errorbank.FieldError{
			Field:   "paymentStatus",
			Message: "must be one of pending, paid, failed, refunded",
		}))
	}

	now := s.now()
	if err := s.repo.UpdatePaymentStatus(ctx, id, status, expectedVersion, now); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return nil, s.writeError(err, "failed to update payment status")
	}

	updated, err := s.afterWrite(ctx, span, id, EventPaymentStatusChanged, "", now)
	if err != nil {
		return nil, err
	}
	s.metrics.transition(ctx, EventPaymentStatusChanged, string(status))
	s.logger.Info("order payment status updated", zap.String("id", id), zap.String("payment_status", string(status)))
	return updated, nil
}

// SetTrackingNumber records the carrier tracking number.
func (s *Service) SetTrackingNumber(ctx context.Context, id, tracking string, expectedVersion int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.SetTrackingNumber", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	tracking = strings.TrimSpace(s.sanitize(tracking))
	switch {
	case tracking == "":
		return nil, errorbank.BadRequest("validation failed", errorbank.WithFieldErrors(errorbank.FieldError{
			Field:   "trackingNumber",
			Message: "is required",
		}))
	case utf8.RuneCountInString(tracking) > maxTrackingLength:
		return nil, errorbank.BadRequest("validation failed", errorbank.WithFieldErrors(errorbank.FieldError{
			Field:   "trackingNumber",
			Message: fmt.Sprintf("must be at most %d characters", maxTrackingLength),
		}))
	}

	now := s.now()
	if err := s.repo.SetTrackingNumber(ctx, id, tracking, expectedVersion, now); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return nil, s.writeError(err, "failed to update tracking number")
	}

	updated, err := s.afterWrite(ctx, span, id, EventTrackingUpdated, "", now)
	if err != nil {
		return nil, err
	}
	s.metrics.transition(ctx, EventTrackingUpdated, "tracking")
	return updated, nil
}

func (s *Service) writeError(err error, msg string) error {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return errorbank.NotFound("order not found")
	case errors.Is(err, repo.ErrVersionConflict):
		return errorbank.Conflict("order was modified concurrently; retry")
	default:
		return errorbank.Internal(msg, errorbank.WithCause(err))
	}
}

// afterWrite reloads the order, refreshes caches and publishes the change.
func (s *Service) afterWrite(ctx context.Context, span trace.Span, id string, event EventType, previous entity.OrderStatus, at time.Time) (*entity.Order, error) {
	s.invalidate(ctx, id)
	updated, err := s.load(ctx, span, id)
	if err != nil {
		return nil, err
	}
	if err := s.storeInCache(ctx, updated); err != nil {
		s.logger.Warn("orders cache write failed", zap.String("id", id), zap.Error(err))
	}
	s.publish(ctx, newEvent(event, updated, previous, at))
	return updated, nil
}
