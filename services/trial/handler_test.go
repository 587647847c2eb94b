package trial

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"smallbiznis-crm/pkg/accesscontrol"
	"smallbiznis-crm/pkg/errutil"
	"smallbiznis-crm/pkg/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func get(r http.Handler, path, tenantID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if tenantID != "" {
		req.Header.Set(middleware.TenantHeader, tenantID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func newEngine(h *Handler, guards ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Error())
	g := r.Group("", middleware.Tenant())
	g.Use(guards...)
	g.GET("/api/billing/trial", h.Status)
	g.GET("/api/billing/trial/banner", h.Banner)
	g.GET("/api/contacts", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func TestHandlerStatus(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(t0.Add(13*day + 12*time.Hour))
	r := newEngine(NewHandler(f.svc))

	w := get(r, "/api/billing/trial", "tenant-1")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	s, err := DecodeTrialStatus(w.Body.Bytes())
	require.NoError(t, err)
	require.True(t, s.IsTrialActive)
	require.Equal(t, 1, s.DaysLeft)
	require.False(t, s.HasSubscription)
}

func TestHandlerStatusErrors(t *testing.T) {
	f := newFixture(t)
	r := newEngine(NewHandler(f.svc))

	require.Equal(t, http.StatusUnauthorized, get(r, "/api/billing/trial", "").Code)
	require.Equal(t, http.StatusNotFound, get(r, "/api/billing/trial", "nobody").Code)
}

func TestHandlerBanner(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(t0.Add(15 * day))
	r := newEngine(NewHandler(f.svc))

	w := get(r, "/api/billing/trial/banner", "tenant-1")
	require.Equal(t, http.StatusOK, w.Code)

	var b Banner
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
	require.Equal(t, Expired, b.State)
	require.True(t, b.Blocking)
	require.Equal(t, "RM59.99/month", b.PriceLabel)
}

type resolverFunc func(ctx context.Context, tenantID string) (TrialStatus, error)

func (f resolverFunc) Status(ctx context.Context, tenantID string) (TrialStatus, error) {
	return f(ctx, tenantID)
}

func TestRequireAccess(t *testing.T) {
	f := newFixture(t)
	enforcer, err := accesscontrol.NewDefault()
	require.NoError(t, err)
	r := newEngine(NewHandler(f.svc), RequireAccess(f.svc, enforcer))

	f.clock.Set(t0.Add(day))
	require.Equal(t, http.StatusNoContent, get(r, "/api/contacts", "tenant-1").Code)

	f.clock.Set(t0.Add(15 * day))
	require.Equal(t, http.StatusPaymentRequired, get(r, "/api/contacts", "tenant-1").Code)
	// billing stays reachable so the tenant can subscribe
	require.Equal(t, http.StatusOK, get(r, "/api/billing/trial", "tenant-1").Code)

	require.Equal(t, http.StatusNotFound, get(r, "/api/contacts", "nobody").Code)
}

func TestRequireAccessFailsClosed(t *testing.T) {
	enforcer, err := accesscontrol.NewDefault()
	require.NoError(t, err)

	broken := resolverFunc(func(context.Context, string) (TrialStatus, error) {
		return TrialStatus{}, errors.New("redis and postgres are down")
	})
	r := newEngine(NewHandler(nil), RequireAccess(broken, enforcer))

	require.Equal(t, http.StatusServiceUnavailable, get(r, "/api/contacts", "tenant-1").Code)

	subscribed := resolverFunc(func(context.Context, string) (TrialStatus, error) {
		return TrialStatus{HasSubscription: true}, nil
	})
	r = newEngine(NewHandler(nil), RequireAccess(subscribed, enforcer))
	require.Equal(t, http.StatusNoContent, get(r, "/api/contacts", "tenant-1").Code)

	missing := resolverFunc(func(context.Context, string) (TrialStatus, error) {
		return TrialStatus{}, errutil.NotFound("tenant not found", nil)
	})
	r = newEngine(NewHandler(nil), RequireAccess(missing, enforcer))
	require.Equal(t, http.StatusNotFound, get(r, "/api/contacts", "tenant-1").Code)
}
