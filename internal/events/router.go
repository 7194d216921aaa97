package events

import (
	"github.com/gin-gonic/gin"
)

func SetupEventRoutes(router *gin.RouterGroup, controller Controller) {
	// Public routes - buyers browse without an account
	publicEvents := router.Group("/events")
	{
		publicEvents.GET("/:eventId", controller.GetEvent) // GET /api/v1/events/:eventId
	}
}
