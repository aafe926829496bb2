package account

import (
	"go.uber.org/fx"

	adminrepo "github.com/Additional-Code/loft/internal/repository/admin"
	customerrepo "github.com/Additional-Code/loft/internal/repository/customer"
)

// Module provides the account service and registers its principal stores with auth.
var Module = fx.Provide(
	NewService,
	func(r *customerrepo.Repository) Customers { return r },
	func(r *adminrepo.Repository) Administrators { return r },
	fx.Annotate(customerBinding, fx.ResultTags(`group:"auth.stores"`)),
	fx.Annotate(administratorBinding, fx.ResultTags(`group:"auth.stores"`)),
)
