package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/mentorhub/internal/handlers"
)

func registerProfileRoutes(api *gin.RouterGroup, handler *handlers.ProfileHandler) {
	group := api.Group("/profile")
	{
		group.GET("/notifications", handler.NotificationSettings)
		group.PUT("/notifications", handler.UpdateNotificationSettings)
	}
}
