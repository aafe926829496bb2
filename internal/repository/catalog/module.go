package catalog

import "go.uber.org/fx"

// Module provides the catalog lookup to Fx.
var Module = fx.Provide(NewRepository)
