package middleware

import (
	"context"
	"strings"

	"bitwise74/smart-librarian/internal/apperr"
	"bitwise74/smart-librarian/internal/model"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AccessCookie is the cookie carrying the access token for browser clients
const AccessCookie = "access_token"

// Authenticator resolves an access token to its user
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// BearerToken extracts the access token from the Authorization header,
// falling back to the access token cookie
func BearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}

	if v, err := c.Cookie(AccessCookie); err == nil {
		return v
	}

	return ""
}

// NewAuthMiddleware rejects requests without a valid access token. The
// resolved user is stored as "user" and its ID as "userID".
func NewAuthMiddleware(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetString("requestID")

		u, err := a.Authenticate(c.Request.Context(), BearerToken(c))
		if err != nil {
			if apperr.KindOf(err) == apperr.KindInternal {
				zap.L().Error("Failed to authenticate request", zap.Error(err), zap.String("requestID", requestID))
			}

			c.AbortWithStatusJSON(apperr.Status(apperr.KindOf(err)), gin.H{
				"error":     apperr.Message(err),
				"requestID": requestID,
			})
			return
		}

		c.Set("user", u)
		c.Set("userID", u.ID)
		c.Next()
	}
}

// NewOptionalAuthMiddleware identifies the caller when it can and lets
// anonymous requests through otherwise
func NewOptionalAuthMiddleware(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			c.Next()
			return
		}

		u, err := a.Authenticate(c.Request.Context(), token)
		if err == nil {
			c.Set("user", u)
			c.Set("userID", u.ID)
		}

		c.Next()
	}
}

// CurrentUser returns the user stored by the auth middleware
func CurrentUser(c *gin.Context) (*model.User, bool) {
	v, ok := c.Get("user")
	if !ok {
		return nil, false
	}

	u, ok := v.(*model.User)
	return u, ok && u != nil
}
