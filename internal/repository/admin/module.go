package admin

import "go.uber.org/fx"

// Module provides the administrator repository to Fx.
var Module = fx.Provide(NewRepository)
