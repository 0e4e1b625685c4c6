package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all HTTP routes for the server
func SetupRoutes(router *gin.Engine, h *Handlers) {
	// Apply global middleware in order
	router.Use(RecoveryMiddleware())
	router.Use(CORSMiddleware())
	router.Use(LoggingMiddleware())

	api := router.Group("/api")
	{
		api.Use(RequestValidationMiddleware())

		api.GET("/health", h.HealthHandler)
		api.GET("/models", h.ListModels)

		api.POST("/runs", h.CreateRun)
		api.GET("/runs", h.ListRuns)
		api.GET("/runs/:id", h.GetRun)
		api.DELETE("/runs/:id", h.DeleteRun)
		api.POST("/runs/:id/cancel", h.CancelRun)
		api.GET("/runs/:id/records", h.GetRecords)
		api.GET("/runs/:id/report", h.GetReport)
	}

	// WebSocket endpoint for live run progress (outside the JSON
	// validation middleware)
	router.GET("/ws/runs/:id", h.StreamRunProgress)

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "LLM Evaluation API",
			"status":  "ok",
			"endpoints": gin.H{
				"health":   "/api/health",
				"models":   "/api/models",
				"runs":     "/api/runs",
				"progress": "/ws/runs/:id",
			},
		})
	})

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "Not Found",
			Message: "The requested endpoint does not exist",
			Code:    http.StatusNotFound,
		})
	})
}
