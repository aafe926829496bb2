package http

import (
	"go.uber.org/fx"

	accounttransport "github.com/Additional-Code/loft/internal/transport/http/account"
	ordertransport "github.com/Additional-Code/loft/internal/transport/http/order"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	accounttransport.Module,
	ordertransport.Module,
)
