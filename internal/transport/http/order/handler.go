package order

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/loft/internal/auth"
	"github.com/Additional-Code/loft/internal/dto"
	"github.com/Additional-Code/loft/internal/entity"
	"github.com/Additional-Code/loft/internal/presentation/http/response"
	repo "github.com/Additional-Code/loft/internal/repository/order"
	service "github.com/Additional-Code/loft/internal/service/order"
	"github.com/Additional-Code/loft/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/loft/transport/http/order")

// Service is the order behaviour the HTTP layer depends on.
type Service interface {
	Create(ctx context.Context, in service.CreateInput) (*entity.Order, error)
	Get(ctx context.Context, id string) (*entity.Order, error)
	GetForCustomer(ctx context.Context, customerID, id string) (*entity.Order, error)
	List(ctx context.Context, f repo.Filter) ([]entity.Order, int64, repo.Filter, error)
	ListForCustomer(ctx context.Context, customerID string, f repo.Filter) ([]entity.Order, int64, repo.Filter, error)
	Cancel(ctx context.Context, customerID, id, reason string) (*entity.Order, error)
	SetStatus(ctx context.Context, id string, status entity.OrderStatus, expectedVersion int64) (*entity.Order, error)
	SetPaymentStatus(ctx context.Context, id string, status entity.PaymentStatus, expectedVersion int64) (*entity.Order, error)
	SetTrackingNumber(ctx context.Context, id, tracking string, expectedVersion int64) (*entity.Order, error)
	Stats(ctx context.Context) (*repo.Stats, error)
}

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts customer routes under /user/orders and administrator routes under
// /admin/orders, each behind its own gate.
func Register(e *echo.Echo, reg *auth.Registry, h *Handler) {
	user := e.Group("/user/orders", auth.Require(reg, auth.KindCustomer))
	user.POST("", h.create)
	user.GET("", h.listOwn)
	user.GET("/:id", h.getOwn)
	user.PATCH("/:id/cancel", h.cancel)

	admin := e.Group("/admin/orders", auth.Require(reg, auth.KindAdministrator))
	admin.GET("", h.list)
	admin.GET("/stats/overview", h.stats)
	admin.GET("/status/:status", h.listByStatus)
	admin.GET("/:id", h.get)
	admin.PATCH("/:id/status", h.setStatus)
	admin.PATCH("/:id/payment", h.setPayment)
	admin.PATCH("/:id/tracking", h.setTracking)
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)
	identity, _ := auth.Current(c)

	var payload dto.CreateOrderRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	in := payload.ToInput(identity.ID)
	if fields := service.ValidateCreate(in); len(fields) > 0 {
		return b.WithError(errorbank.BadRequest("validation failed", errorbank.WithFieldErrors(fields...))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create",
		trace.WithAttributes(attribute.String("customer.id", identity.ID)))
	defer span.End()

	order, err := h.svc.Create(ctx, in)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) listOwn(c echo.Context) error {
	b := response.New(c)
	identity, _ := auth.Current(c)

	filter, err := bindFilter(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.listOwn")
	defer span.End()

	orders, total, applied, err := h.svc.ListForCustomer(ctx, identity.ID, filter)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponses(orders)).
		WithPagination(response.NewPagination(applied.Page, applied.Limit, total)).
		Build()
}

func (h *Handler) getOwn(c echo.Context) error {
	b := response.New(c)
	identity, _ := auth.Current(c)

	id, err := orderID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getOwn", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	order, err := h.svc.GetForCustomer(ctx, identity.ID, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) cancel(c echo.Context) error {
	b := response.New(c)
	identity, _ := auth.Current(c)

	id, err := orderID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload dto.CancelOrderRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.cancel", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	order, err := h.svc.Cancel(ctx, identity.ID, id, payload.Reason)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	filter, err := bindFilter(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	return h.renderList(c, b, filter)
}

func (h *Handler) listByStatus(c echo.Context) error {
	b := response.New(c)

	filter, err := bindFilter(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	filter.Status = entity.OrderStatus(c.Param("status"))
	if !filter.Status.Valid() {
		return b.WithError(errorbank.BadRequest("invalid status",
			errorbank.WithFieldErrors(errorbank.FieldError{Field: "status", Message: "unknown order status"}))).Build()
	}
	return h.renderList(c, b, filter)
}

func (h *Handler) renderList(c echo.Context, b *response.Builder, filter repo.Filter) error {
	ctx, span := httpTracer.Start(c.Request().Context(), "orders.list")
	defer span.End()

	orders, total, applied, err := h.svc.List(ctx, filter)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponses(orders)).
		WithPagination(response.NewPagination(applied.Page, applied.Limit, total)).
		Build()
}

func (h *Handler) get(c echo.Context) error {
	b := response.New(c)

	id, err := orderID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.get", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	order, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) stats(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.stats")
	defer span.End()

	stats, err := h.svc.Stats(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewStatsResponse(stats)).Build()
}

func (h *Handler) setStatus(c echo.Context) error {
	b := response.New(c)

	id, err := orderID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload dto.StatusUpdateRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	status := entity.OrderStatus(payload.Status)
	if !status.Valid() {
		return b.WithError(errorbank.BadRequest("invalid status",
			errorbank.WithFieldErrors(errorbank.FieldError{Field: "status", Message: "unknown order status"}))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.setStatus",
		trace.WithAttributes(attribute.String("order.id", id), attribute.String("order.status", string(status))))
	defer span.End()

	order, err := h.svc.SetStatus(ctx, id, status, dto.Version(payload.ExpectedVersion))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) setPayment(c echo.Context) error {
	b := response.New(c)

	id, err := orderID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload dto.PaymentUpdateRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	status := entity.PaymentStatus(payload.PaymentStatus)
	if !status.Valid() {
		return b.WithError(errorbank.BadRequest("invalid payment status",
			errorbank.WithFieldErrors(errorbank.FieldError{Field: "paymentStatus", Message: "unknown payment status"}))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.setPayment", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	order, err := h.svc.SetPaymentStatus(ctx, id, status, dto.Version(payload.ExpectedVersion))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponse(order)).Build()
}

func (h *Handler) setTracking(c echo.Context) error {
	b := response.New(c)

	id, err := orderID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload dto.TrackingUpdateRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.setTracking", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	order, err := h.svc.SetTrackingNumber(ctx, id, payload.TrackingNumber, dto.Version(payload.ExpectedVersion))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewOrderResponse(order)).Build()
}

func orderID(c echo.Context) (string, error) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", errorbank.BadRequest("invalid order id", errorbank.WithCause(err))
	}
	return id, nil
}

func bindFilter(c echo.Context) (repo.Filter, error) {
	var q dto.OrderListQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return repo.Filter{}, errorbank.BadRequest("invalid query", errorbank.WithCause(err))
	}
	filter, fields := q.ToFilter()
	if len(fields) > 0 {
		return repo.Filter{}, errorbank.BadRequest("invalid query", errorbank.WithFieldErrors(fields...))
	}
	return filter, nil
}
