// Package root holds the liveness endpoints
package root

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Heartbeat answers HEAD probes without a body
func Heartbeat(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Status(http.StatusOK)
}

func Health(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
