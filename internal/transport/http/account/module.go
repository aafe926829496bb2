package account

import (
	"go.uber.org/fx"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/loft/internal/auth"
)

// Module wires HTTP account handlers.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(func(e *echo.Echo, reg *auth.Registry, h *Handler) {
		Register(e, reg, h)
	}),
)
