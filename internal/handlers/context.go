package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/mentorhub/internal/middleware"
	"github.com/charlesng35/mentorhub/pkg/errors"
	"github.com/charlesng35/mentorhub/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// currentUserID returns the authenticated caller, writing a 401 when the auth middleware did not
// run or rejected the token.
func currentUserID(c *gin.Context) (string, bool) {
	userID := strings.TrimSpace(c.GetString(middleware.CtxUserIDKey))
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return "", false
	}
	return userID, true
}
