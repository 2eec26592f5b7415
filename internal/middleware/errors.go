package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lexpost/internal/apperr"
	"lexpost/internal/logger"
)

// AbortWithError writes err as {"error": {"type", "message"}} with its mapped status.
// Internal failures and invariant violations never echo their cause.
func AbortWithError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	body := gin.H{"type": apperr.TypeInternal, "message": "internal server error"}

	appErr := apperr.Get(err)
	switch {
	case appErr == nil, appErr.Type == apperr.TypeInternal, appErr.Type == apperr.TypeInvariantViolation:
		logger.WithComponent("http").Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"request_id", c.GetString(requestIDKey),
			"error", err,
		)
		if appErr != nil {
			body["type"] = appErr.Type
		}
	default:
		body["type"] = appErr.Type
		body["message"] = appErr.Message
		if appErr.Retryable {
			body["retryable"] = true
		}
	}
	if status == 0 {
		status = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}
