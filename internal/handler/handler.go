// Package handler exposes the services over HTTP.
package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"lexpost/internal/apperr"
	"lexpost/internal/middleware"
	"lexpost/internal/service"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// respondError answers with {"error": {"type", "message"}} and the error's status.
func respondError(c *gin.Context, err error) {
	middleware.AbortWithError(c, err)
}

func actor(c *gin.Context) service.Actor {
	return service.Actor{ID: middleware.GetUserID(c), Role: middleware.GetRole(c)}
}

func idParam(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("invalid %s", name)
	}
	return uint(id), nil
}

func page(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		respondError(c, bindingError(err))
		return false
	}
	return true
}
