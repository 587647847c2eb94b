package main

import (
	"log"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"smallbiznis-crm/pkg/config"
	"smallbiznis-crm/pkg/db"
	"smallbiznis-crm/pkg/featureflags"
	"smallbiznis-crm/pkg/gen"
	"smallbiznis-crm/pkg/hashistack/secretmanager"
	"smallbiznis-crm/pkg/logger"
	"smallbiznis-crm/pkg/mailer"
	"smallbiznis-crm/pkg/otelcol"
	"smallbiznis-crm/pkg/payment"
	"smallbiznis-crm/pkg/redis"
	"smallbiznis-crm/pkg/task"
	"smallbiznis-crm/services/reminder"
	"smallbiznis-crm/services/schema"
	"smallbiznis-crm/services/subscription"
	"smallbiznis-crm/services/tenant"
	"smallbiznis-crm/services/trial"
)

func main() {
	opts := []fx.Option{
		configModule(),
		logger.Module,
		db.Module,
		schema.Module,
		redis.Module,
		gen.Module,
		otelcol.Module,
		featureflags.Module,
		payment.Module,
		mailer.Module,
		task.Client,
		task.Server,
		tenant.Module,
		subscription.Module,
		trial.Module,
		reminder.Module,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

func configModule() fx.Option {
	if _, ok := os.LookupEnv("REMOTE_CONFIG_PROVIDER"); ok {
		return fx.Options(secretmanager.Module, config.RemoteModule)
	}
	return config.Module
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})
