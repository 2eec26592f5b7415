package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"lexpost/internal/apperr"
	"lexpost/internal/auth"
	"lexpost/internal/domain"
	"lexpost/internal/models"
)

const (
	userIDKey = "user_id"
	emailKey  = "email"
	roleKey   = "role"
)

// ProfileProvisioner returns the stored profile for a verified identity, creating it on first sight.
type ProfileProvisioner interface {
	EnsureProfile(ctx context.Context, uc *auth.UserContext) (*models.Profile, error)
}

// AuthRequired verifies the bearer token and sets user_id, email and role in context.
// The role comes from the stored profile, not from the token.
func AuthRequired(idp auth.IdentityProvider, profiles ProfileProvisioner) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			AbortWithError(c, apperr.Auth("missing authorization header"))
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			AbortWithError(c, apperr.Auth("invalid authorization format"))
			return
		}
		uc, err := idp.GetUserContext(c.Request.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			if apperr.Get(err) == nil {
				err = apperr.Auth("invalid or expired token").Wrap(err)
			}
			AbortWithError(c, err)
			return
		}
		p, err := profiles.EnsureProfile(c.Request.Context(), uc)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.Set(userIDKey, p.ID)
		c.Set(emailKey, p.Email)
		c.Set(roleKey, p.Role)
		c.Next()
	}
}

// GetUserID returns the authenticated user ID (must be used after AuthRequired).
func GetUserID(c *gin.Context) uint {
	v, ok := c.Get(userIDKey)
	if !ok {
		return 0
	}
	id, _ := v.(uint)
	return id
}

func GetEmail(c *gin.Context) string {
	return c.GetString(emailKey)
}

func GetRole(c *gin.Context) domain.Role {
	v, ok := c.Get(roleKey)
	if !ok {
		return ""
	}
	r, _ := v.(domain.Role)
	return r
}
