package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/rosterd/internal/auditctx"
	"github.com/charlesng35/rosterd/pkg/errors"
	"github.com/charlesng35/rosterd/pkg/response"
)

const (
	CtxUsernameKey = "username"
)

// Authorizer resolves a bearer token to the username it was issued for.
type Authorizer interface {
	Authorize(ctx context.Context, token string) (string, error)
}

// Auth rejects requests without a valid bearer token for a registered user.
func Auth(gate Authorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		token := strings.TrimSpace(authz[7:])
		username, err := gate.Authorize(c.Request.Context(), token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(CtxUsernameKey, username)
		c.Request = c.Request.WithContext(auditctx.WithActor(c.Request.Context(), auditctx.Actor{
			Username:  username,
			IPAddress: c.ClientIP(),
		}))

		c.Next()
	}
}
