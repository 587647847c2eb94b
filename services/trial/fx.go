package trial

import (
	"context"

	"smallbiznis-crm/services/subscription"

	"go.uber.org/fx"
)

var Module = fx.Module("trial.module",
	fx.Provide(
		NewService,
	),
	fx.Invoke(registerInvalidation),
)

var Server = fx.Module("trial.server",
	Module,
	fx.Provide(
		NewHandler,
		NewAccessGuard,
	),
	fx.Invoke(RegisterRoutes),
)

// registerInvalidation drops cached facts whenever a subscription changes.
func registerInvalidation(subs *subscription.Service, svc *Service) {
	subs.AddListener(func(ctx context.Context, tenantID string) {
		svc.Invalidate(ctx, tenantID)
	})
}
