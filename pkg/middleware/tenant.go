package middleware

import (
	"context"
	"strings"

	"smallbiznis-crm/pkg/errutil"

	"github.com/gin-gonic/gin"
)

// TenantHeader carries the tenant identity established by the upstream auth layer.
const TenantHeader = "X-TENANT-ID"

type tenantKey struct{}

var TenantContextKey = tenantKey{}

// Tenant copies the tenant identity from the request header into the request context.
// Requests without one are rejected.
func Tenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := strings.TrimSpace(c.GetHeader(TenantHeader))
		if tenantID == "" {
			_ = c.Error(errutil.Unauthorized("tenant identity is required", nil))
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(WithTenantID(c.Request.Context(), tenantID))
		c.Next()
	}
}

func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, TenantContextKey, tenantID)
}

// TenantID returns the tenant identity stored on ctx.
func TenantID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(TenantContextKey).(string)
	return id, ok && id != ""
}
