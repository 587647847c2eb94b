package tenant

import (
	"go.uber.org/fx"
)

var Module = fx.Module("tenant.module",
	fx.Provide(
		NewService,
	),
)

var Server = fx.Module("tenant.server",
	Module,
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
