package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/urugendo/bustickets/internal/payment"
	"github.com/urugendo/bustickets/internal/repository"
	"github.com/urugendo/bustickets/internal/service/payments"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	service payments.ReconcileUseCase
	logger  *zap.Logger
}

type paymentStatusResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

// mtnWebhook is the requesttopay resource MTN posts back; referenceId is the
// X-Reference-Id of the original request.
type mtnWebhook struct {
	ReferenceID string `json:"referenceId"`
	Status      string `json:"status"`
	Reason      string `json:"reason"`
}

type airtelWebhook struct {
	Transaction struct {
		ID         string `json:"id"`
		StatusCode string `json:"status_code"`
		Message    string `json:"message"`
	} `json:"transaction"`
}

func NewPaymentHandler(service payments.ReconcileUseCase, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{service: service, logger: logger}
}

func (h *PaymentHandler) Register(router *gin.RouterGroup) {
	router.GET("/:reference/status", h.status)
	router.POST("/webhook/:provider", h.webhook)
}

func (h *PaymentHandler) status(c *gin.Context) {
	reference := c.Param("reference")
	booking, reason, err := h.service.Poll(c.Request.Context(), reference)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown booking reference"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, paymentStatusResponse{
		Reference: booking.Reference,
		Status:    string(booking.Status),
		Reason:    reason,
	})
}

// webhook acknowledges every well-formed delivery with 200 regardless of the
// internal outcome. A non-2xx answer would make the provider redeliver
// forever; anomalies go to the log instead.
func (h *PaymentHandler) webhook(c *gin.Context) {
	provider := c.Param("provider")

	externalID, status, ok := h.parseWebhook(c, provider)
	if !ok {
		return
	}

	if err := h.service.HandleWebhook(c.Request.Context(), externalID, status); err != nil {
		h.logger.Warn("webhook processing failed",
			zap.String("provider", provider), zap.String("external_id", externalID), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"acknowledged": true})
}

func (h *PaymentHandler) parseWebhook(c *gin.Context, provider string) (string, payment.Status, bool) {
	switch provider {
	case "mtn":
		var body mtnWebhook
		if err := c.ShouldBindJSON(&body); err != nil || body.ReferenceID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed webhook payload"})
			return "", payment.Status{}, false
		}
		return body.ReferenceID, mapMTNWebhookStatus(body), true
	case "airtel":
		var body airtelWebhook
		if err := c.ShouldBindJSON(&body); err != nil || body.Transaction.ID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed webhook payload"})
			return "", payment.Status{}, false
		}
		return body.Transaction.ID, payment.MapAirtelStatus(body.Transaction.StatusCode, body.Transaction.Message), true
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown provider"})
		return "", payment.Status{}, false
	}
}

func mapMTNWebhookStatus(body mtnWebhook) payment.Status {
	switch body.Status {
	case "SUCCESSFUL":
		return payment.Status{State: payment.StateSuccess}
	case "FAILED":
		return payment.Status{State: payment.StateFailure, Reason: body.Reason}
	default:
		return payment.Status{State: payment.StatePending}
	}
}
