package seats

import (
	"boxoffice/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupSeatRoutes(rg *gin.RouterGroup, controller *Controller) {

	// BUYER HOLD OPERATIONS

	holds := rg.Group("/holds")
	holds.Use(middleware.SessionID())
	{
		holds.POST("", controller.AcquireHolds)      // POST /api/v1/holds
		holds.PUT("/extend", controller.ExtendHolds) // PUT /api/v1/holds/extend
		holds.DELETE("", controller.ReleaseHolds)    // DELETE /api/v1/holds
		holds.GET("", controller.CurrentHolds)       // GET /api/v1/holds?event_id=xxx
	}

	// PUBLIC SEAT MAP

	rg.GET("/events/:eventId/seats", controller.SeatMap) // GET /api/v1/events/:eventId/seats
}
