package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/visicontrol/visicontrol/pkg/errors"
	"github.com/visicontrol/visicontrol/pkg/logger"
)

// Envelope is the fixed part of every API payload. Handlers add their own
// top-level fields (items, count, updated, ...) next to it.
type Envelope struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Success writes {"ok": true} merged with the supplied fields.
func Success(c *gin.Context, statusCode int, fields gin.H) {
	body := gin.H{"ok": true}
	for key, value := range fields {
		if key == "ok" {
			continue
		}
		body[key] = value
	}
	c.JSON(statusCode, body)
}

// OK is shorthand for Success with http.StatusOK.
func OK(c *gin.Context, fields gin.H) {
	Success(c, http.StatusOK, fields)
}

// Error writes a JSON error response derived from an AppError. Errors that map
// to a 5xx status are logged with their internal cause; the client only sees
// the generic message.
func Error(c *gin.Context, err error) {
	if err == nil {
		err = appErrors.ErrInternalServer
	}

	appErr := appErrors.FromError(err)
	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}

	if status >= http.StatusInternalServerError {
		fields := []zap.Field{zap.String("code", appErr.Code)}
		if c.Request != nil {
			fields = append(fields,
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
			)
		}
		if appErr.Internal != nil {
			fields = append(fields, zap.Error(appErr.Internal))
		}
		logger.WithModule("http").Error("request failed", fields...)
	}

	c.JSON(status, Envelope{
		OK:      false,
		Message: appErr.Message,
		Code:    appErr.Code,
	})
}
