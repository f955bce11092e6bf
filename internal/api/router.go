package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wellness-kit/order-intake/internal/api/handlers"
	"github.com/wellness-kit/order-intake/internal/api/middleware"
	"github.com/wellness-kit/order-intake/internal/api/response"
	"github.com/wellness-kit/order-intake/internal/config"
	"github.com/wellness-kit/order-intake/internal/orders"
	"github.com/wellness-kit/order-intake/internal/session"
	"github.com/wellness-kit/order-intake/internal/storage"
	"github.com/wellness-kit/order-intake/pkg/auth"
)

// Deps are the services the router wires into handlers.
type Deps struct {
	Config   *config.Config
	Registry *session.Registry
	Store    storage.Store
	Orders   *orders.Service
}

// NewRouter creates and configures the Gin router with all routes and middleware.
func NewRouter(deps Deps) *gin.Engine {
	cfg := deps.Config
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.CorrelationMiddleware())
	r.Use(middleware.StructuredLogging())
	r.MaxMultipartMemory = cfg.Upload.MaxFileSize

	// Health check (no auth required)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"service":  middleware.ServiceName,
			"sessions": deps.Registry.Len(),
		})
	})

	importHandler := handlers.NewImportHandler(deps.Registry, deps.Store, cfg)
	orderHandler := handlers.NewOrderHandler(deps.Orders)

	writers := middleware.RequireRole(auth.RoleAdmin, auth.RoleOperator)
	readers := middleware.RequireRole(auth.Roles...)

	v1 := r.Group("/api/v1")

	// The sample file is public so operators can fetch it before signing in.
	v1.GET("/template", handlers.HandleTemplate)

	authed := v1.Group("")
	authed.Use(middleware.AuthMiddleware(&cfg.JWT))
	{
		authed.POST("/imports", writers, importHandler.HandleCreate)
		authed.GET("/imports/:id", readers, importHandler.HandleGet)
		authed.PUT("/imports/:id", writers, importHandler.HandleReplace)
		authed.DELETE("/imports/:id", writers, importHandler.HandleDelete)
		authed.POST("/imports/:id/strip-invalid", writers, importHandler.HandleStripInvalid)
		authed.GET("/imports/:id/export", readers, importHandler.HandleExport)
		authed.POST("/imports/:id/submit", writers, importHandler.HandleSubmit)

		authed.POST("/orders", writers, orderHandler.HandleCreate)
	}

	// Token generation endpoint (dev only, generates test JWTs)
	r.POST("/dev/token", devTokenHandler(cfg))

	return r
}

// devTokenHandler returns a handler that generates test JWTs for development.
func devTokenHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserID string `json:"user_id"`
			Role   string `json:"role"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request", nil)
			return
		}

		userID := uuid.New()
		if req.UserID != "" {
			parsed, err := uuid.Parse(req.UserID)
			if err != nil {
				response.BadRequest(c, "invalid user_id", nil)
				return
			}
			userID = parsed
		}
		if req.Role == "" {
			req.Role = auth.RoleAdmin
		}
		if !auth.ValidRole(req.Role) {
			response.BadRequest(c, "unknown role", auth.Roles)
			return
		}

		token, err := auth.GenerateToken(cfg.JWT.Secret, cfg.JWT.Issuer, userID, req.Role, cfg.JWT.ExpiryHours)
		if err != nil {
			response.InternalError(c, "failed to generate token")
			return
		}

		response.Success(c, http.StatusOK, gin.H{"token": token, "user_id": userID, "role": req.Role})
	}
}
