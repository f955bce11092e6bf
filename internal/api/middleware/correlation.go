package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderCorrelationID carries the request's correlation id both ways.
const HeaderCorrelationID = "X-Correlation-ID"

// CorrelationMiddleware handles correlation ID tracking. An incoming
// X-Correlation-ID is kept; otherwise X-Request-ID is used, and failing
// both a new UUID is generated.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(HeaderCorrelationID)
		if correlationID == "" {
			correlationID = c.GetHeader("X-Request-ID")
		}
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		c.Set("correlation_id", correlationID)
		c.Header(HeaderCorrelationID, correlationID)

		c.Next()
	}
}
