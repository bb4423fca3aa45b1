package routes

import (
	"net/http"

	"mmh_backend/internal/auth"
	"mmh_backend/internal/handlers"
	"mmh_backend/internal/logger"
	"mmh_backend/internal/metrics"
	"mmh_backend/internal/middleware"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// RegisterRoutes mounts the API under /api/v1 plus the operational endpoints.
func RegisterRoutes(
	ginRouter *gin.Engine,
	appHandlers *handlers.AppHandlers,
	tokens *auth.TokenManager,
	users middleware.UserLookup,
	m *metrics.Metrics,
) {
	authMw := middleware.AuthMiddleware(tokens, users)

	api := ginRouter.Group("/api/v1")
	{
		appHandlers.AuthHandler.RegisterRoutes(api, authMw)
		appHandlers.UserHandler.RegisterRoutes(api, authMw)
		appHandlers.OfferHandler.RegisterRoutes(api, authMw)
		appHandlers.OrderHandler.RegisterRoutes(api, authMw)
		api.GET("/health", appHandlers.HealthHandler.Health)
	}

	ginRouter.GET("/health", appHandlers.HealthHandler.Health)
	if m != nil {
		ginRouter.GET("/metrics", gin.WrapH(m.Handler()))
	}
	ginRouter.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	ginRouter.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "domain": "http", "message": "Route not found"}})
	})

	logger.Info("HTTP routes registered", "routes", len(ginRouter.Routes()))
}
