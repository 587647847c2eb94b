package schema

import (
	"context"

	"smallbiznis-crm/pkg/db"
	"smallbiznis-crm/services/reminder"
	"smallbiznis-crm/services/subscription"
	"smallbiznis-crm/services/tenant"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module migrates every table before the servers and workers start.
var Module = fx.Module("schema", fx.Invoke(register))

// Models lists the persisted types in dependency order.
func Models() []any {
	return []any{
		&tenant.Tenant{},
		&subscription.Subscription{},
		&reminder.Reminder{},
	}
}

func register(lc fx.Lifecycle, conn *gorm.DB) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if err := db.Migrate(conn, Models()...); err != nil {
				zap.L().Error("[schema] migration failed", zap.Error(err))
				return err
			}
			zap.L().Info("[schema] migration complete")
			return nil
		},
	})
}
