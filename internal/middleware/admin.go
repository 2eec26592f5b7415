package middleware

import (
	"github.com/gin-gonic/gin"

	"lexpost/internal/apperr"
	"lexpost/internal/authz"
)

// RequireCapability rejects callers whose role does not hold want.
func RequireCapability(az *authz.Authorizer, want authz.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := GetRole(c)
		if role == "" {
			AbortWithError(c, apperr.Auth("unauthorized"))
			return
		}
		if !az.Can(role, want) {
			AbortWithError(c, apperr.Authorization("%s access required", want))
			return
		}
		c.Next()
	}
}
