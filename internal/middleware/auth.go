package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/talenthub/internal/auth"
	"github.com/charlesng35/talenthub/pkg/errors"
	"github.com/charlesng35/talenthub/pkg/response"
)

const (
	CtxPrincipalKey = "authPrincipal"
	CtxUserIDKey    = "userID"
	CtxRoleKey      = "userRole"
)

// Authenticator resolves a bearer token to the calling principal.
type Authenticator interface {
	Authenticate(token string) (iauth.Principal, error)
}

// Auth enforces bearer token authentication.
func Auth(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		principal, err := authn.Authenticate(token)
		if err != nil {
			// Normalise all validation failures to 401
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		SetPrincipal(c, principal)
		c.Next()
	}
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[7:])
}

// SetPrincipal propagates identity into the request context.
func SetPrincipal(c *gin.Context, principal iauth.Principal) {
	c.Set(CtxPrincipalKey, principal)
	c.Set(CtxUserIDKey, principal.ID)
	c.Set(CtxRoleKey, principal.Role)
}

// PrincipalFrom returns the principal stored by Auth.
func PrincipalFrom(c *gin.Context) (iauth.Principal, bool) {
	v, ok := c.Get(CtxPrincipalKey)
	if !ok {
		return iauth.Principal{}, false
	}
	principal, ok := v.(iauth.Principal)
	return principal, ok && principal.ID != ""
}
