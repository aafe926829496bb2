package order

import "go.uber.org/fx"

// Module registers order-related worker handlers and the stats refresher.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			NewOrderEventsHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
		NewRefresher,
	),
	fx.Invoke(runRefresher),
)
