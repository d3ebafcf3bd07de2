package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/mentorhub/internal/handlers"
)

func registerRequestRoutes(api *gin.RouterGroup, handler *handlers.RequestHandler) {
	group := api.Group("/requests")
	{
		group.POST("", handler.Create)
		group.GET("/incoming", handler.Incoming)
		group.GET("/outgoing", handler.Outgoing)
		group.PATCH("/:id/accept", handler.Accept)
		group.PATCH("/:id/reject", handler.Reject)
	}
}
