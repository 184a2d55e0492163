package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"shirly.shop/app/internal/modules/auth"
	"shirly.shop/app/internal/shared/apperr"
)

const ctxKeyIdentity = "identity"

// Authenticator resolves bearer tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (auth.Identity, error)
}

// Authenticate attaches the identity behind "Authorization: Bearer <token>".
// Missing or invalid tokens leave the request anonymous; RequireAuth decides.
func Authenticate(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := bearerToken(c.GetHeader("Authorization"))
		if tok == "" {
			c.Next()
			return
		}
		id, err := a.Authenticate(c.Request.Context(), tok)
		switch {
		case err == nil:
			c.Set(ctxKeyIdentity, id)
		case errors.Is(err, auth.ErrUnauthenticated):
			c.Set(ctxKeyBadToken, true)
		default:
			Fail(c, apperr.Wrap(err))
			return
		}
		c.Next()
	}
}

const ctxKeyBadToken = "bad_token"

func bearerToken(h string) string {
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

func CurrentUser(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(ctxKeyIdentity)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}

// MustUser is for handlers behind RequireAuth.
func MustUser(c *gin.Context) auth.Identity {
	id, _ := CurrentUser(c)
	return id
}

func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			msg := "authentication required"
			if c.GetBool(ctxKeyBadToken) {
				msg = "session expired, please log in again"
			}
			Fail(c, apperr.UnauthorizedErr(msg))
			return
		}
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := CurrentUser(c)
		if !ok {
			Fail(c, apperr.UnauthorizedErr("authentication required"))
			return
		}
		if !id.User.IsAdmin() {
			Fail(c, apperr.ForbiddenErr("admin access required"))
			return
		}
		c.Next()
	}
}
