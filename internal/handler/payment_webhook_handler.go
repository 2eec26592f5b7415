package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"lexpost/internal/service"
)

const maxWebhookBytes = 1 << 20

type PaymentWebhookHandler struct {
	billing *service.BillingService
	log     *slog.Logger
}

func NewPaymentWebhookHandler(billing *service.BillingService, log *slog.Logger) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{billing: billing, log: log}
}

// Handle verifies the Stripe-Signature header over the raw body and reconciles the event.
// Unauthenticated or malformed deliveries get the same generic 400.
func (h *PaymentWebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	err = h.billing.HandleWebhook(c.Request.Context(), body, c.GetHeader("Stripe-Signature"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"received": true})
	case errors.Is(err, service.ErrInvalidWebhook):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
	default:
		// Non-2xx makes the processor redeliver.
		h.log.Warn("webhook processing failed", "error", err)
		respondError(c, err)
	}
}
