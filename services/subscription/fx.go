package subscription

import (
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.module",
	fx.Provide(
		NewService,
	),
)

var Server = fx.Module("subscription.server",
	Module,
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
