package main

import (
	"log"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"smallbiznis-crm/pkg/accesscontrol"
	"smallbiznis-crm/pkg/config"
	"smallbiznis-crm/pkg/db"
	"smallbiznis-crm/pkg/featureflags"
	"smallbiznis-crm/pkg/gen"
	"smallbiznis-crm/pkg/hashistack/secretmanager"
	"smallbiznis-crm/pkg/hashistack/servicediscover"
	"smallbiznis-crm/pkg/httpapi"
	"smallbiznis-crm/pkg/logger"
	"smallbiznis-crm/pkg/otelcol"
	"smallbiznis-crm/pkg/payment"
	"smallbiznis-crm/pkg/profiling"
	"smallbiznis-crm/pkg/redis"
	"smallbiznis-crm/pkg/server"
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
		profiling.Module,
		featureflags.Module,
		accesscontrol.Module,
		payment.Module,
		tenant.Server,
		subscription.Server,
		trial.Server,
		httpapi.Module,
		server.ProvideGRPCServer,
		server.ProvideHTTPServer,
		servicediscover.Module,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

// configModule switches to the remote provider (with vault secrets) when REMOTE_CONFIG_PROVIDER is set.
func configModule() fx.Option {
	if _, ok := os.LookupEnv("REMOTE_CONFIG_PROVIDER"); ok {
		return fx.Options(secretmanager.Module, config.RemoteModule)
	}
	return config.Module
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})
