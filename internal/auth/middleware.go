package auth

import (
	"context"
	"errors"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/Additional-Code/loft/internal/presentation/http/response"
	"github.com/Additional-Code/loft/pkg/errorbank"
)

type gateMetrics struct {
	rejections metric.Int64Counter
}

func newGateMetrics() *gateMetrics {
	meter := otel.Meter("github.com/Additional-Code/loft/auth")
	rejections, err := meter.Int64Counter("loft.auth.rejections",
		metric.WithDescription("Requests rejected by the authorization gate"),
	)
	if err != nil {
		return &gateMetrics{}
	}
	return &gateMetrics{rejections: rejections}
}

func (m *gateMetrics) reject(ctx context.Context, kind Kind, reason string) {
	if m == nil || m.rejections == nil {
		return
	}
	m.rejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.String("reason", reason),
	))
}

// Require returns middleware admitting only requests carrying a resolved principal of
// the given kind. There is no hierarchy between kinds.
func Require(registry *Registry, kind Kind) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			identity, err := registry.Authenticate(req.Context(), kind, req.Header.Get(echo.HeaderAuthorization))
			if err != nil {
				reason, message, ok := rejection(err)
				if !ok {
					registry.metrics.reject(req.Context(), kind, "resolve_failed")
					registry.logger.Error("auth gate could not resolve principal",
						zap.String("kind", string(kind)),
						zap.String("path", c.Path()),
						zap.Error(err),
					)
					return response.New(c).WithError(errorbank.Internal("failed to resolve account", errorbank.WithCause(err))).Build()
				}
				registry.metrics.reject(req.Context(), kind, reason)
				registry.logger.Debug("request rejected by auth gate",
					zap.String("kind", string(kind)),
					zap.String("reason", reason),
					zap.String("path", c.Path()),
					zap.Error(err),
				)
				return response.New(c).WithError(errorbank.Unauthenticated(message, errorbank.WithCause(err))).Build()
			}

			attach(c, identity)
			return next(c)
		}
	}
}

// rejection classifies credential and principal failures. Anything else, such as a store
// outage, is not a rejection and ok is false.
func rejection(err error) (reason, message string, ok bool) {
	switch {
	case errors.Is(err, ErrMissingToken):
		return "missing_token", "authentication required", true
	case errors.Is(err, ErrExpiredToken):
		return "expired_token", "token expired", true
	case errors.Is(err, ErrWrongDomain):
		return "wrong_domain", "invalid token", true
	case errors.Is(err, ErrPrincipalInactive):
		return "inactive", "account not found or inactive", true
	case errors.Is(err, ErrPrincipalNotFound):
		return "not_found", "account not found or inactive", true
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token", "invalid token", true
	default:
		return "", "", false
	}
}
