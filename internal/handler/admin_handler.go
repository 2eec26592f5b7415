package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"lexpost/internal/domain"
	"lexpost/internal/service"
)

type AdminHandler struct {
	admin    *service.AdminService
	profiles *service.ProfileService
	referral *service.ReferralService
}

func NewAdminHandler(admin *service.AdminService, profiles *service.ProfileService, referral *service.ReferralService) *AdminHandler {
	return &AdminHandler{admin: admin, profiles: profiles, referral: referral}
}

func (h *AdminHandler) Dashboard(c *gin.Context) {
	stats, err := h.admin.Dashboard(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ListProfiles supports ?search= on name/email and ?role=.
func (h *AdminHandler) ListProfiles(c *gin.Context) {
	limit, offset := page(c)
	list, total, err := h.profiles.List(c.Request.Context(), strings.TrimSpace(c.Query("search")), domain.Role(c.Query("role")), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profiles": list, "total": total})
}

type changeRoleRequest struct {
	Role domain.Role `json:"role" binding:"required"`
}

// ChangeRole promotes or demotes a profile; coupons are issued or deactivated to match.
func (h *AdminHandler) ChangeRole(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var req changeRoleRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.profiles.ChangeRole(c.Request.Context(), actor(c), id, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": p})
}

func (h *AdminHandler) UpdateCoupon(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var req service.CouponUpdate
	if !bindJSON(c, &req) {
		return
	}
	coupon, err := h.referral.UpdateCoupon(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"coupon": coupon})
}

// Commissions lists commission payments, optionally for one ?employee_id=.
func (h *AdminHandler) Commissions(c *gin.Context) {
	limit, offset := page(c)
	employeeID, _ := strconv.ParseUint(c.Query("employee_id"), 10, 64)
	list, total, err := h.referral.ListCommissions(c.Request.Context(), uint(employeeID), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"commissions": list, "total": total})
}

func (h *AdminHandler) Settings(c *gin.Context) {
	settings, err := h.admin.Settings(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

type updateSettingRequest struct {
	Value string `json:"value" binding:"required"`
}

func (h *AdminHandler) UpdateSetting(c *gin.Context) {
	var req updateSettingRequest
	if !bindJSON(c, &req) {
		return
	}
	key := c.Param("key")
	if err := h.admin.UpdateSetting(c.Request.Context(), actor(c), key, req.Value); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": req.Value})
}
