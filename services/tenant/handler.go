package tenant

import (
	"net/http"

	"smallbiznis-crm/pkg/errutil"
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

// RegisterRoutes exposes signup publicly and tenant reads behind the tenant identity.
func RegisterRoutes(r *httpapi.Router, h *Handler) {
	r.Public.POST("/api/tenants", h.Create)
	r.Tenant.GET("/api/tenants/:id", h.Get)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	t, err := h.svc.CreateTenant(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, t)
}

func (h *Handler) Get(c *gin.Context) {
	current, _ := middleware.TenantID(c.Request.Context())
	if c.Param("id") != current {
		_ = c.Error(errutil.Forbidden("tenant mismatch", nil))
		return
	}

	t, err := h.svc.GetTenant(c.Request.Context(), current)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, t)
}
