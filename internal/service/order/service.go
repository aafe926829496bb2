package order

import (
	"context"
	"errors"
	"html"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/loft/internal/cache"
	"github.com/Additional-Code/loft/internal/config"
	"github.com/Additional-Code/loft/internal/entity"
	"github.com/Additional-Code/loft/internal/messaging"
	repo "github.com/Additional-Code/loft/internal/repository/order"
	"github.com/Additional-Code/loft/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/loft/service/order")

// Repository is the persistence contract the service relies on.
type Repository interface {
	Create(ctx context.Context, order *entity.Order) error
	GetByID(ctx context.Context, id string) (*entity.Order, error)
	List(ctx context.Context, f repo.Filter) ([]entity.Order, int64, error)
	UpdateStatus(ctx context.Context, id string, status entity.OrderStatus, expectedVersion int64, now time.Time) error
	UpdatePaymentStatus(ctx context.Context, id string, status entity.PaymentStatus, expectedVersion int64, now time.Time) error
	SetTrackingNumber(ctx context.Context, id, tracking string, expectedVersion int64, now time.Time) error
	CompareAndSwapStatus(ctx context.Context, id string, expectedVersion int64, from []entity.OrderStatus, to entity.OrderStatus, notes string, now time.Time) error
	Stats(ctx context.Context) (*repo.Stats, error)
}

// Catalog reports which referenced item ids are unknown.
type Catalog interface {
	Missing(ctx context.Context, ids []string) ([]string, error)
}

// Service encapsulates business logic around orders.
type Service struct {
	repo           Repository
	catalog        Catalog
	cache          cache.Store
	cacheTTL       time.Duration
	statsTTL       time.Duration
	logger         *zap.Logger
	publisher      messaging.Client
	messaging      messagingConfig
	paymentMethods map[string]struct{}
	acceptedList   string
	verifyItems    bool
	sanitizer      *bluemonday.Policy
	metrics        *serviceMetrics
	now            func() time.Time
	numbers        func(time.Time) string
}

// messagingConfig contains messaging specific knobs we care about.
type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository Repository
	Catalog    Catalog `optional:"true"`
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	methods := make(map[string]struct{}, len(p.Config.Orders.PaymentMethods))
	for _, m := range p.Config.Orders.PaymentMethods {
		methods[m] = struct{}{}
	}
	accepted := slices.Sorted(maps.Keys(methods))
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:           p.Repository,
		catalog:        p.Catalog,
		cache:          p.Cache,
		cacheTTL:       p.Config.Cache.DefaultTTL,
		statsTTL:       p.Config.Orders.StatsTTL,
		logger:         logger,
		publisher:      p.Publisher,
		paymentMethods: methods,
		acceptedList:   strings.Join(accepted, ", "),
		verifyItems:    p.Config.Orders.VerifyItems,
		sanitizer:      bluemonday.StrictPolicy(),
		metrics:        newServiceMetrics(),
		now:            func() time.Time { return time.Now().UTC() },
		numbers:        NewOrderNumber,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
	}
}

// Get retrieves any order by id, consulting cache when available.
func (s *Service) Get(ctx context.Context, id string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	if order, err := s.getFromCache(ctx, id); err == nil {
		return order, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("orders cache read failed", zap.String("id", id), zap.Error(err))
	}

	order, err := s.load(ctx, span, id)
	if err != nil {
		return nil, err
	}

	if err := s.storeInCache(ctx, order); err != nil {
		s.logger.Warn("orders cache write failed", zap.String("id", id), zap.Error(err))
	}
	return order, nil
}

// GetForCustomer returns the order only if customerID owns it. Foreign orders are
// reported as missing.
func (s *Service) GetForCustomer(ctx context.Context, customerID, id string) (*entity.Order, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.OwnedBy(customerID) {
		return nil, errorbank.NotFound("order not found")
	}
	return order, nil
}

// List returns a page of orders matching the filter and the total match count.
func (s *Service) List(ctx context.Context, f repo.Filter) ([]entity.Order, int64, repo.Filter, error) {
	f = f.Normalise()
	ctx, span := serviceTracer.Start(ctx, "OrderService.List")
	defer span.End()

	orders, total, err := s.repo.List(ctx, f)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, 0, f, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return orders, total, f, nil
}

// ListForCustomer scopes List to the customer's own orders.
func (s *Service) ListForCustomer(ctx context.Context, customerID string, f repo.Filter) ([]entity.Order, int64, repo.Filter, error) {
	if customerID == "" {
		return nil, 0, f, errorbank.Unauthenticated("authentication required")
	}
	f.CustomerID = customerID
	return s.List(ctx, f)
}

// load reads straight from the repository, bypassing cache.
func (s *Service) load(ctx context.Context, span trace.Span, id string) (*entity.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	return order, nil
}

// sanitize strips markup and returns plain text, not HTML-escaped output.
func (s *Service) sanitize(text string) string {
	return html.UnescapeString(s.sanitizer.Sanitize(text))
}

func sum(lines []entity.OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}
