package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lexpost/internal/domain"
	"lexpost/internal/middleware"
	"lexpost/internal/service"
)

type SubscriptionHandler struct {
	billing *service.BillingService
}

func NewSubscriptionHandler(billing *service.BillingService) *SubscriptionHandler {
	return &SubscriptionHandler{billing: billing}
}

// Quote previews the price of plan_type with an optional code.
func (h *SubscriptionHandler) Quote(c *gin.Context) {
	q, err := h.billing.Quote(c.Request.Context(), middleware.GetUserID(c), domain.PlanType(c.Query("plan_type")), c.Query("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

type checkoutRequest struct {
	PlanType     domain.PlanType `json:"plan_type" binding:"required"`
	DiscountCode string          `json:"discount_code" binding:"max=64"`
}

func (h *SubscriptionHandler) Checkout(c *gin.Context) {
	var req checkoutRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.billing.Checkout(c.Request.Context(), actor(c), middleware.GetEmail(c), req.PlanType, req.DiscountCode)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusCreated
	if res.Subscription == nil {
		status = http.StatusAccepted
	}
	c.JSON(status, res)
}

func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	sub, err := h.billing.Cancel(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscription": sub})
}
