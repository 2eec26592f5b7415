package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lexpost/internal/middleware"
	"lexpost/internal/service"
)

type MeHandler struct {
	profiles *service.ProfileService
	billing  *service.BillingService
}

func NewMeHandler(profiles *service.ProfileService, billing *service.BillingService) *MeHandler {
	return &MeHandler{profiles: profiles, billing: billing}
}

// Get returns the profile, the active subscription and the letters left on it.
func (h *MeHandler) Get(c *gin.Context) {
	me, err := h.profiles.Me(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, me)
}

type updateMeRequest struct {
	FullName string `json:"full_name" binding:"required,max=255"`
}

func (h *MeHandler) Update(c *gin.Context) {
	var req updateMeRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.profiles.UpdateName(c.Request.Context(), middleware.GetUserID(c), req.FullName)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": p})
}

func (h *MeHandler) Subscriptions(c *gin.Context) {
	list, err := h.billing.ListForUser(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": list})
}
