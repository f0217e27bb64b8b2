// internal/middleware/logging_middleware.go
package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"escpos-service/internal/utils"
)

// routeParams are the path parameters copied into request logs
var routeParams = []string{"printer_id", "job_id", "type"}

// LoggingMiddleware logs every request with its route, the printer or job it
// addressed, the response size and any handler errors.
func LoggingMiddleware(logger *utils.ServiceLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		duration := time.Since(startTime)

		fields := append(routeFields(c), zap.Int("response_bytes", c.Writer.Size()))
		if route := c.FullPath(); route != "" {
			fields = append(fields, zap.String("route", route))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", strings.TrimSpace(c.Errors.String())))
		}

		logger.LogAPIRequest(
			c.Request.Method,
			c.Request.URL.Path,
			utils.GetRequestID(c),
			c.ClientIP(),
			c.Writer.Status(),
			duration,
			fields...,
		)
	}
}

// routeFields returns the non-empty route parameters as log fields
func routeFields(c *gin.Context) []zap.Field {
	var fields []zap.Field
	for _, name := range routeParams {
		if v := c.Param(name); v != "" {
			fields = append(fields, zap.String(name, v))
		}
	}
	return fields
}
