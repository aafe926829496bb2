package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/loft/internal/entity"
	repo "github.com/Additional-Code/loft/internal/repository/order"
	"github.com/Additional-Code/loft/pkg/errorbank"
)

// maxAmount is the largest value a NUMERIC(12,2) money column holds.
var maxAmount = decimal.RequireFromString("9999999999.99")

// LineInput is one requested order line.
type LineInput struct {
	ItemID          string
	Quantity        int
	Price           decimal.Decimal
	IsRental        bool
	RentalDuration  int
	RentalStartDate *time.Time
	RentalEndDate   *time.Time
}

// CreateInput carries a checkout request for one customer.
type CreateInput struct {
	CustomerID      string
	Items           []LineInput
	ShippingAddress entity.Address
	BillingAddress  *entity.Address
	PaymentMethod   string
	Notes           string

	// Optional client-declared values; when present they must match what is derived.
	DeclaredTotal *decimal.Decimal
	DeclaredType  entity.OrderType
}

// ValidateCreate checks the request shape and returns one message per offending field.
func ValidateCreate(in CreateInput) []errorbank.FieldError {
	var errs []errorbank.FieldError
	add := func(field, msg string) {
		errs = append(errs, errorbank.FieldError{Field: field, Message: msg})
	}

	if len(in.Items) == 0 {
		add("items", "at least one item is required")
	}
	for i, line := range in.Items {
		prefix := fmt.Sprintf("items[%d]", i)
		if strings.TrimSpace(line.ItemID) == "" {
			add(prefix+".itemId", "is required")
		}
		if line.Quantity < 1 {
			add(prefix+".quantity", "must be at least 1")
		}
		switch {
		case line.Price.IsNegative():
			add(prefix+".price", "must not be negative")
		case !line.Price.Equal(line.Price.Round(2)):
			add(prefix+".price", "must have at most 2 decimal places")
		case line.Price.GreaterThan(maxAmount):
			add(prefix+".price", "exceeds the maximum amount "+maxAmount.StringFixed(2))
		}
		if line.IsRental {
			errs = append(errs, validateRental(prefix, line)...)
		}
	}

	errs = append(errs, validateAddress("shippingAddress", in.ShippingAddress)...)
	if in.BillingAddress != nil {
		errs = append(errs, validateAddress("billingAddress", *in.BillingAddress)...)
	}
	if strings.TrimSpace(in.PaymentMethod) == "" {
		add("paymentMethod", "is required")
	}
	if in.DeclaredType != "" && !in.DeclaredType.Valid() {
		add("orderType", "must be one of purchase, rental, mixed")
	}
	return errs
}

func validateRental(prefix string, line LineInput) []errorbank.FieldError {
	var errs []errorbank.FieldError
	if line.RentalDuration < 1 {
		errs = append(errs, errorbank.FieldError{Field: prefix + ".rentalDuration", Message: "is required for rental items"})
	}
	if line.RentalStartDate == nil {
		errs = append(errs, errorbank.FieldError{Field: prefix + ".rentalStartDate", Message: "is required for rental items"})
	}
	if line.RentalEndDate == nil {
		errs = append(errs, errorbank.FieldError{Field: prefix + ".rentalEndDate", Message: "is required for rental items"})
	}
	if len(errs) > 0 {
		return errs
	}
	want := day(*line.RentalStartDate).AddDate(0, 0, line.RentalDuration)
	if !day(*line.RentalEndDate).Equal(want) {
		errs = append(errs, errorbank.FieldError{
			Field:   prefix + ".rentalEndDate",
			Message: fmt.Sprintf("must be %d days after rentalStartDate", line.RentalDuration),
		})
	}
	return errs
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func validateAddress(field string, a entity.Address) []errorbank.FieldError {
	var errs []errorbank.FieldError
	required := []struct{ name, value string }{
		{"street", a.Street},
		{"city", a.City},
		{"postalCode", a.PostalCode},
		{"country", a.Country},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, errorbank.FieldError{Field: field + "." + r.name, Message: "is required"})
		}
	}
	return errs
}

// DeriveOrderType returns purchase when no line is a rental, rental when every line is,
// and mixed otherwise.
func DeriveOrderType(lines []entity.OrderLine) entity.OrderType {
	rentals := 0
	for _, l := range lines {
		if l.IsRental {
			rentals++
		}
	}
	switch {
	case rentals == 0:
		return entity.OrderTypePurchase
	case rentals == len(lines):
		return entity.OrderTypeRental
	default:
		return entity.OrderTypeMixed
	}
}

// Create validates the checkout request and persists a new pending order owned by the
// customer.
func (s *Service) Create(ctx context.Context, in CreateInput) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(
		attribute.String("customer.id", in.CustomerID),
		attribute.Int("order.lines", len(in.Items)),
	))
	defer span.End()

	if in.CustomerID == "" {
		return nil, errorbank.Unauthenticated("authentication required")
	}
	if fields := ValidateCreate(in); len(fields) > 0 {
		return nil, errorbank.BadRequest("validation failed", errorbank.WithFieldErrors(fields...))
	}

	method := strings.ToLower(strings.TrimSpace(in.PaymentMethod))
	if _, ok := s.paymentMethods[method]; !ok {
		return nil, errorbank.BadRequest("validation failed", errorbank.WithFieldErrors(errorbank.FieldError{
			Field:   "paymentMethod",
			Message: "unsupported payment method, accepted: " + s.acceptedList,
		}))
	}

	lines := make([]entity.OrderLine, 0, len(in.Items))
	ids := make([]string, 0, len(in.Items))
	for _, item := range in.Items {
		line := entity.OrderLine{
			ItemID:   strings.TrimSpace(item.ItemID),
			Quantity: item.Quantity,
			Price:    item.Price,
			IsRental: item.IsRental,
		}
		if item.IsRental {
			start, end := day(*item.RentalStartDate), day(*item.RentalEndDate)
			line.RentalDuration = item.RentalDuration
			line.RentalStartDate = &start
			line.RentalEndDate = &end
		}
		lines = append(lines, line)
		ids = append(ids, line.ItemID)
	}

	total := sum(lines)
	if total.GreaterThan(maxAmount) {
		return nil, errorbank.BadRequest("validation failed", errorbank.WithFieldErrors(errorbank.FieldError{
			Field:   "totalAmount",
			Message: "exceeds the maximum amount " + maxAmount.StringFixed(2),
		}))
	}
	orderType := DeriveOrderType(lines)
	if in.DeclaredTotal != nil && !in.DeclaredTotal.Equal(total) {
		return nil, errorbank.BadRequest("validation failed", errorbank.WithFieldErrors(errorbank.FieldError{
			Field:   "totalAmount",
			Message: fmt.Sprintf("does not match item total %s", total.StringFixed(2)),
		}))
	}
	if in.DeclaredType != "" && in.DeclaredType != orderType {
		return nil, errorbank.BadRequest("validation failed", errorbank.WithFieldErrors(errorbank.FieldError{
			Field:   "orderType",
			Message: fmt.Sprintf("does not match items, expected %s", orderType),
		}))
	}

	if err := s.checkCatalog(ctx, ids); err != nil {
		return nil, err
	}

	billing := in.ShippingAddress
	if in.BillingAddress != nil {
		billing = *in.BillingAddress
	}

	now := s.now()
	order := &entity.Order{
		CustomerID:      in.CustomerID,
		Items:           lines,
		OrderType:       orderType,
		TotalAmount:     total,
		Status:          entity.OrderStatusPending,
		PaymentStatus:   entity.PaymentStatusPending,
		PaymentMethod:   method,
		ShippingAddress: in.ShippingAddress,
		BillingAddress:  billing,
		Notes:           s.sanitize(strings.TrimSpace(in.Notes)),
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.insert(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, err
	}
	span.SetAttributes(attribute.String("order.id", order.ID), attribute.String("order.number", order.Number))

	if err := s.storeInCache(ctx, order); err != nil {
		s.logger.Warn("orders cache write failed", zap.String("id", order.ID), zap.Error(err))
	}
	s.InvalidateStats(ctx)
	s.metrics.orderCreated(ctx, order.OrderType)
	s.publish(ctx, newEvent(EventOrderCreated, order, "", now))

	s.logger.Info("order created",
		zap.String("id", order.ID),
		zap.String("number", order.Number),
		zap.String("customer_id", order.CustomerID),
		zap.String("order_type", string(order.OrderType)),
	)
	return order, nil
}

// insert assigns identifiers and writes the order, regenerating the number on collision.
func (s *Service) insert(ctx context.Context, order *entity.Order) error {
	var err error
	for attempt := 0; attempt < maxNumberTries; attempt++ {
		order.ID = uuid.NewString()
		order.Number = s.numbers(order.CreatedAt)
		err = s.repo.Create(ctx, order)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repo.ErrDuplicateNumber) {
			return errorbank.Internal("failed to create order", errorbank.WithCause(err))
		}
		s.logger.Warn("order number collision; regenerating", zap.String("number", order.Number), zap.Int("attempt", attempt+1))
	}
	return errorbank.Internal("failed to allocate a unique order number", errorbank.WithCause(err))
}

func (s *Service) checkCatalog(ctx context.Context, ids []string) error {
	if !s.verifyItems || s.catalog == nil {
		return nil
	}
	missing, err := s.catalog.Missing(ctx, ids)
	if err != nil {
		return errorbank.Internal("failed to verify items", errorbank.WithCause(err))
	}
	if len(missing) == 0 {
		return nil
	}
	fields := make([]errorbank.FieldError, 0, len(missing))
	for _, id := range missing {
		fields = append(fields, errorbank.FieldError{Field: "items", Message: fmt.Sprintf("item %s does not exist", id)})
	}
	return errorbank.BadRequest("validation failed", errorbank.WithFieldErrors(fields...))
}
