package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"smallbiznis-crm/pkg/errutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
	gin.SetMode(gin.TestMode)
}

func newRouter(h gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(Error())
	r.GET("/t", Tenant(), h)
	return r
}

func TestTenantMissingHeader(t *testing.T) {
	r := newRouter(func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/t", nil))

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), `"unauthorized"`)
}

func TestTenantInContext(t *testing.T) {
	var got string
	r := newRouter(func(c *gin.Context) {
		got, _ = TenantID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/t", nil)
	req.Header.Set(TenantHeader, "tenant-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "tenant-1", got)
}

func TestErrorRendersBaseError(t *testing.T) {
	r := newRouter(func(c *gin.Context) {
		_ = c.Error(errutil.NotFound("tenant not found", nil))
	})

	req := httptest.NewRequest(http.MethodGet, "/t", nil)
	req.Header.Set(TenantHeader, "tenant-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "tenant not found")
}

func TestErrorRendersUnknownAsInternal(t *testing.T) {
	r := newRouter(func(c *gin.Context) {
		_ = c.Error(errors.New("db down"))
	})

	req := httptest.NewRequest(http.MethodGet, "/t", nil)
	req.Header.Set(TenantHeader, "tenant-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotContains(t, w.Body.String(), "db down")
}
