package httpapi

import (
	"net/http"

	"smallbiznis-crm/pkg/config"
	"smallbiznis-crm/pkg/errutil"
	"smallbiznis-crm/pkg/health"
	"smallbiznis-crm/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("httpapi",
	health.Module,
	fx.Provide(
		NewRouter,
		NewHandler,
	),
)

// Router splits routes into the public group and the tenant-scoped group.
// Tenant routes require X-TENANT-ID and, when ACCESS_CONTROL.ENFORCE is on, pass the access guard.
type Router struct {
	Engine *gin.Engine
	Public *gin.RouterGroup
	Tenant *gin.RouterGroup
}

type Params struct {
	fx.In
	Config *config.Config
	Health health.HealthService
	Guard  middleware.AccessGuard `optional:"true"`
}

func NewRouter(p Params) *Router {
	if p.Config.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.Logger(), middleware.Error())

	engine.GET("/healthz", p.Health.Liveness)
	engine.GET("/readyz", p.Health.Readiness)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	tenant := engine.Group("", middleware.Tenant())
	if p.Config.AccessControl.Enforce {
		guard := p.Guard
		if guard == nil {
			zap.L().Error("access control enforced but no guard is registered")
			guard = denyAll
		}
		tenant.Use(gin.HandlerFunc(guard))
	}

	return &Router{
		Engine: engine,
		Public: engine.Group(""),
		Tenant: tenant,
	}
}

func denyAll(c *gin.Context) {
	_ = c.Error(errutil.ServiceUnavailable("access control unavailable", nil))
	c.Abort()
}

func NewHandler(r *Router) http.Handler {
	return r.Engine
}
