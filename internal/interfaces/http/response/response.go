package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	domainerrors "kwala.backend/internal/domain/errors"
	"kwala.backend/pkg/errtrack"
	"kwala.backend/pkg/logger"
)

// Success sends data with "success": true merged in
func Success(c *gin.Context, status int, data gin.H) {
	body := gin.H{"success": true}
	for k, v := range data {
		body[k] = v
	}
	c.JSON(status, body)
}

// Error maps err onto its HTTP status and sends the failure body.
// Server-side failures are logged and reported.
func Error(c *gin.Context, err error) {
	appErr := domainerrors.FromError(err)

	if appErr.Status >= http.StatusInternalServerError {
		ctx := c.Request.Context()
		logger.Error(ctx, "Request failed", zap.String("code", appErr.Code), zap.Error(err))
		errtrack.Capture(ctx, err)
	}

	ErrorWithError(c, appErr.Status, appErr.Code, appErr.Message)
}

// ErrorWithError sends an error response with a specific status and message
func ErrorWithError(c *gin.Context, status int, code string, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"code":    code,
		"error":   message,
	})
}
