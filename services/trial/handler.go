package trial

import (
	"net/http"

	"smallbiznis-crm/pkg/httpapi"
	"smallbiznis-crm/pkg/middleware"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func RegisterRoutes(r *httpapi.Router, h *Handler) {
	r.Tenant.GET("/api/billing/trial", h.Status)
	r.Tenant.GET("/api/billing/trial/banner", h.Banner)
}

// Status serves the TrialStatus contract for the calling tenant.
func (h *Handler) Status(c *gin.Context) {
	tenantID, _ := middleware.TenantID(c.Request.Context())

	status, err := h.svc.Status(c.Request.Context(), tenantID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, status)
}

func (h *Handler) Banner(c *gin.Context) {
	tenantID, _ := middleware.TenantID(c.Request.Context())

	banner, err := h.svc.Banner(c.Request.Context(), tenantID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, banner)
}
