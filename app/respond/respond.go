// Package respond writes error responses in the shape every handler uses
package respond

import (
	"net/http"

	"bitwise74/smart-librarian/internal/apperr"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error writes err as {"error", "requestID"} with the status of its kind.
// Internal errors are logged and their cause is hidden from the client.
func Error(c *gin.Context, err error) {
	requestID := c.GetString("requestID")
	kind := apperr.KindOf(err)

	if kind == apperr.KindInternal || kind == apperr.KindUnavailable {
		zap.L().Error("Request failed", zap.Error(err), zap.String("requestID", requestID))
	} else {
		zap.L().Debug("Request rejected", zap.Error(err), zap.String("requestID", requestID))
	}

	c.JSON(apperr.Status(kind), gin.H{
		"error":     apperr.Message(err),
		"requestID": requestID,
	})
}

// Bind decodes the JSON body into v and answers 400 when it can't
func Bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		requestID := c.GetString("requestID")

		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})

		zap.L().Debug("Can't bind request body", zap.Error(err), zap.String("requestID", requestID))
		return false
	}

	return true
}

// Message writes a plain {"message"} success body
func Message(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, gin.H{"message": msg})
}
