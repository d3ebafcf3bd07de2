package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/mentorhub/internal/handlers"
)

func registerConnectionRoutes(api *gin.RouterGroup, handler *handlers.ConnectionHandler) {
	group := api.Group("/connections")
	{
		group.GET("", handler.List)
		group.PATCH("/:id/complete", handler.Complete)
		group.POST("/:id/detach", handler.Detach)
	}
}

func registerDashboardRoutes(api *gin.RouterGroup, handler *handlers.DashboardHandler) {
	api.GET("/dashboard", handler.Get)
}
