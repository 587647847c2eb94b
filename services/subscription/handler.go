package subscription

import (
	"errors"
	"io"
	"net/http"

	"smallbiznis-crm/pkg/errutil"
	"smallbiznis-crm/pkg/httpapi"
	"smallbiznis-crm/pkg/middleware"

	"github.com/gin-gonic/gin"
)

const (
	signatureHeader = "Stripe-Signature"
	maxWebhookBody  = int64(512 << 10)
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func RegisterRoutes(r *httpapi.Router, h *Handler) {
	r.Tenant.POST("/api/billing/checkout", h.Checkout)
	r.Public.POST("/api/billing/webhook", h.Webhook)
}

func (h *Handler) Checkout(c *gin.Context) {
	tenantID, _ := middleware.TenantID(c.Request.Context())

	resp, err := h.svc.CreateCheckout(c.Request.Context(), tenantID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			_ = c.Error(errutil.PayloadTooLarge("webhook payload too large", err))
			return
		}
		_ = c.Error(errutil.BadRequest("failed to read body", err))
		return
	}

	if err := h.svc.HandleWebhook(c.Request.Context(), payload, c.GetHeader(signatureHeader)); err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusOK)
}
