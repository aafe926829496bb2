package order

import (
	"go.uber.org/fx"

	catalogrepo "github.com/Additional-Code/loft/internal/repository/catalog"
	repo "github.com/Additional-Code/loft/internal/repository/order"
)

// Module provides the order service to Fx.
var Module = fx.Provide(
	NewService,
	func(r *repo.Repository) Repository { return r },
	func(c *catalogrepo.Repository) Catalog { return c },
)
