package middleware

import (
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/wellness-kit/order-intake/internal/api/response"
)

// RequireRole returns middleware that enforces role-based access control
func RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := c.Get(ContextRole)
		if !ok {
			response.Forbidden(c, "user role not found in context")
			c.Abort()
			return
		}

		userRole, ok := role.(string)
		if !ok {
			response.Forbidden(c, "invalid role format")
			c.Abort()
			return
		}

		if !slices.Contains(allowedRoles, userRole) {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}

		c.Next()
	}
}
