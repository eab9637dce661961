package http

import (
	"github.com/gin-gonic/gin"
	"github.com/pricelens/backend/config"
	"github.com/sirupsen/logrus"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, logger *logrus.Logger) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/retailers", handler.ListRetailers)

		retailer := v1.Group("/retailers/:retailer")
		{
			retailer.GET("/products", handler.ListProducts)
			retailer.GET("/categories", handler.ListCategories)
			retailer.GET("/export", handler.ExportCatalog)
			retailer.POST("/refresh", handler.RefreshCatalog)
		}
	}

	return router
}
