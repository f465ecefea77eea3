package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/talenthub/internal/auth"
	"github.com/charlesng35/talenthub/internal/middleware"
	"github.com/charlesng35/talenthub/pkg/errors"
	"github.com/charlesng35/talenthub/pkg/response"
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

// currentPrincipal returns the authenticated caller or writes a 401.
func currentPrincipal(c *gin.Context) (iauth.Principal, bool) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		response.Error(c, errors.ErrUnauthorized)
		return iauth.Principal{}, false
	}
	return principal, true
}
