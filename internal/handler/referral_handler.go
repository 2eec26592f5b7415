package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lexpost/internal/middleware"
	"lexpost/internal/service"
)

type ReferralHandler struct {
	referral *service.ReferralService
}

func NewReferralHandler(referral *service.ReferralService) *ReferralHandler {
	return &ReferralHandler{referral: referral}
}

type validateCodeRequest struct {
	Code string `json:"code" binding:"required,max=64"`
}

// Validate checks a discount code for the caller. Unknown or unusable codes are
// answered with valid=false, not an error.
func (h *ReferralHandler) Validate(c *gin.Context) {
	var req validateCodeRequest
	if !bindJSON(c, &req) {
		return
	}
	v, err := h.referral.ValidateCode(c.Request.Context(), req.Code, middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// Mine is the employee's own code, points and commission history.
func (h *ReferralHandler) Mine(c *gin.Context) {
	limit, offset := page(c)
	summary, err := h.referral.MyReferrals(c.Request.Context(), middleware.GetUserID(c), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
