package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/mentorhub/internal/app"
	"github.com/charlesng35/mentorhub/internal/handlers"
	"github.com/charlesng35/mentorhub/internal/monitoring"
)

func registerHealthRoutes(r *gin.Engine, cfg *app.Config, manager *monitoring.HealthManager) {
	if !cfg.Monitoring.Health.Enabled {
		r.GET("/health", disabledHealthHandler)
		r.GET("/health/live", disabledHealthHandler)
		r.GET("/health/ready", disabledHealthHandler)
		return
	}

	handler := handlers.NewHealthHandler(manager, cfg.Monitoring.Health.Timeout)
	r.GET("/health", handler.Health)
	r.GET("/health/live", handler.Liveness)
	r.GET("/health/ready", handler.Readiness)
}

func disabledHealthHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"success": false,
		"status":  "disabled",
	})
}
