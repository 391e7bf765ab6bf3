package routes

import (
	"net/http"

	"bestsellers-etl/controllers"
	"bestsellers-etl/middleware"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, status *controllers.StatusController, jwtSecret string) {
	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Public routes
		v1.GET("/health", status.Health)

		// Protected routes (require a bearer token when a secret is configured)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(jwtSecret))
		{
			protected.GET("/load-status", status.ListLoadStatus)
			protected.GET("/load-status/:date", status.GetLoadStatus)

			protected.GET("/runs", status.ListRuns)
			protected.GET("/runs/:run_uuid", status.GetRun)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Endpoint not found"})
	})
}
