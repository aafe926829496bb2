package account

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"

	"github.com/Additional-Code/loft/internal/auth"
	"github.com/Additional-Code/loft/internal/dto"
	"github.com/Additional-Code/loft/internal/entity"
	"github.com/Additional-Code/loft/internal/presentation/http/response"
	service "github.com/Additional-Code/loft/internal/service/account"
	"github.com/Additional-Code/loft/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/loft/transport/http/account")

// Service is the account behaviour the HTTP layer depends on.
type Service interface {
	RegisterCustomer(ctx context.Context, in service.RegisterInput) (*entity.Customer, auth.Token, error)
	LoginCustomer(ctx context.Context, email, password string) (*entity.Customer, auth.Token, error)
	LoginAdministrator(ctx context.Context, email, password string) (*entity.Administrator, auth.Token, error)
	Customer(ctx context.Context, id string) (*entity.Customer, error)
	Administrator(ctx context.Context, id string) (*entity.Administrator, error)
	UpdateProfile(ctx context.Context, id string, patch service.ProfilePatch) (*entity.Customer, error)
}

// Handler exposes login, registration and profile endpoints.
type Handler struct {
	svc Service
}

// NewHandler constructs an account Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the public auth routes and the gated profile routes.
func Register(e *echo.Echo, reg *auth.Registry, h *Handler) {
	e.POST("/user/auth/register", h.register)
	e.POST("/user/auth/login", h.loginCustomer)
	e.POST("/admin/auth/login", h.loginAdministrator)
	e.GET("/admin/auth/me", h.me, auth.Require(reg, auth.KindAdministrator))

	profile := e.Group("/user/profile", auth.Require(reg, auth.KindCustomer))
	profile.GET("", h.profile)
	profile.PATCH("", h.updateProfile)
}

func (h *Handler) register(c echo.Context) error {
	b := response.New(c)

	var payload dto.RegisterRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "auth.register")
	defer span.End()

	customer, token, err := h.svc.RegisterCustomer(ctx, payload.ToInput())
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.NewCustomerAuthResponse(customer, token)).Build()
}

func (h *Handler) loginCustomer(c echo.Context) error {
	b := response.New(c)

	payload, err := bindLogin(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "auth.loginCustomer")
	defer span.End()

	customer, token, err := h.svc.LoginCustomer(ctx, payload.Email, payload.Password)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewCustomerAuthResponse(customer, token)).Build()
}

func (h *Handler) loginAdministrator(c echo.Context) error {
	b := response.New(c)

	payload, err := bindLogin(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "auth.loginAdministrator")
	defer span.End()

	admin, token, err := h.svc.LoginAdministrator(ctx, payload.Email, payload.Password)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewAdministratorAuthResponse(admin, token)).Build()
}

func (h *Handler) me(c echo.Context) error {
	b := response.New(c)
	identity, _ := auth.Current(c)

	admin, err := h.svc.Administrator(c.Request().Context(), identity.ID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewAdministratorResponse(admin)).Build()
}

func (h *Handler) profile(c echo.Context) error {
	b := response.New(c)
	identity, _ := auth.Current(c)

	customer, err := h.svc.Customer(c.Request().Context(), identity.ID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewCustomerResponse(customer)).Build()
}

func (h *Handler) updateProfile(c echo.Context) error {
	b := response.New(c)
	identity, _ := auth.Current(c)

	var payload dto.ProfileUpdateRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "auth.updateProfile")
	defer span.End()

	customer, err := h.svc.UpdateProfile(ctx, identity.ID, payload.ToPatch())
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NewCustomerResponse(customer)).Build()
}

func bindLogin(c echo.Context) (dto.LoginRequest, error) {
	var payload dto.LoginRequest
	if err := c.Bind(&payload); err != nil {
		return payload, errorbank.BadRequest("invalid payload", errorbank.WithCause(err))
	}
	var fields []errorbank.FieldError
	if payload.Email == "" {
		fields = append(fields, errorbank.FieldError{Field: "email", Message: "is required"})
	}
	if payload.Password == "" {
		fields = append(fields, errorbank.FieldError{Field: "password", Message: "is required"})
	}
	if len(fields) > 0 {
		return payload, errorbank.BadRequest("validation failed", errorbank.WithFieldErrors(fields...))
	}
	return payload, nil
}
