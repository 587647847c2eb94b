package trial

import (
	"context"

	"smallbiznis-crm/pkg/accesscontrol"
	"smallbiznis-crm/pkg/errutil"
	"smallbiznis-crm/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type StatusResolver interface {
	Status(ctx context.Context, tenantID string) (TrialStatus, error)
}

// RequireAccess lets a request through only when the tenant's gate state is
// allowed on the route. Unknown tenants get 404; any other failure to resolve
// the state denies with 503.
func RequireAccess(resolver StatusResolver, enforcer accesscontrol.Enforcer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		tenantID, ok := middleware.TenantID(ctx)
		if !ok {
			_ = c.Error(errutil.Unauthorized("tenant identity is required", nil))
			c.Abort()
			return
		}

		status, err := resolver.Status(ctx, tenantID)
		if err != nil {
			if errutil.StatusOf(err) == errutil.StatusNotFound {
				_ = c.Error(err)
			} else {
				logger(ctx).Error("failed to resolve trial status", zap.String("tenant_id", tenantID), zap.Error(err))
				_ = c.Error(errutil.ServiceUnavailable("access check unavailable", err))
			}
			c.Abort()
			return
		}

		state := StateOf(status)
		allowed, err := enforcer.Allowed(string(state), c.Request.URL.Path, c.Request.Method)
		if err != nil {
			logger(ctx).Error("access enforcement failed", zap.String("tenant_id", tenantID), zap.Error(err))
			_ = c.Error(errutil.ServiceUnavailable("access check unavailable", err))
			c.Abort()
			return
		}

		if !allowed {
			_ = c.Error(errutil.PaymentRequired("your free trial has ended, subscribe to continue", nil))
			c.Abort()
			return
		}

		c.Next()
	}
}

// NewAccessGuard adapts RequireAccess for the tenant route group.
func NewAccessGuard(svc *Service, enforcer accesscontrol.Enforcer) middleware.AccessGuard {
	return middleware.AccessGuard(RequireAccess(svc, enforcer))
}
