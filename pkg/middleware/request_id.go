// Package middleware contains any custom middleware used in the app
package middleware

import (
	"bitwise74/smart-librarian/pkg/util"

	"github.com/gin-gonic/gin"
)

// NewRequestIDMiddleware returns a new middleware function that generates a request ID for
// each incoming request and sets it as requestID. The ID is echoed in the X-Request-ID header.
func NewRequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := util.RandStr(10)

		c.Set("requestID", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}
