package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// ServiceName is reported on every request log line.
const ServiceName = "order-intake"

// StructuredLogging provides structured JSON logging for all requests
func StructuredLogging() gin.HandlerFunc {
	return LoggingMiddleware(slog.Default(), ServiceName)
}

// LoggingMiddleware logs one line per request. The level follows the status
// class: 2xx info, 4xx warn, 5xx error.
func LoggingMiddleware(logger *slog.Logger, serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		statusCode := c.Writer.Status()
		var outcome string
		var level slog.Level

		switch {
		case statusCode >= 200 && statusCode < 400:
			outcome = "success"
			level = slog.LevelInfo
		case statusCode >= 400 && statusCode < 500:
			outcome = "client_error"
			level = slog.LevelWarn
		case statusCode >= 500:
			outcome = "server_error"
			level = slog.LevelError
		default:
			outcome = "unknown"
			level = slog.LevelInfo
		}

		attrs := []slog.Attr{
			slog.String("service", serviceName),
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status_code", statusCode),
			slog.Int64("duration_ms", time.Since(startTime).Milliseconds()),
			slog.String("outcome", outcome),
		}

		// Set by handlers and auth after c.Next, so read them late.
		for _, key := range []string{"correlation_id", ContextUserID, ContextRole, "session_id"} {
			if v, ok := c.Get(key); ok {
				attrs = append(attrs, slog.Any(key, v))
			}
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}

		logger.LogAttrs(c.Request.Context(), level, "request processed", attrs...)
	}
}
