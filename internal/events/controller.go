package events

import (
	"net/http"

	"boxoffice/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
)

type Controller interface {
	GetEvent(c *gin.Context)
}

type controller struct {
	service Service
}

func NewController(service Service) Controller {
	return &controller{service: service}
}

// GetEvent godoc
// @Summary      Get event
// @Description  Returns an event and whether it currently accepts bookings
// @Tags         events
// @Produce      json
// @Param        eventId  path  string  true  "Event ID"
// @Success      200  {object}  response.StandardApiResponse{data=EventResponse}
// @Failure      404  {object}  response.StandardApiResponse
// @Router       /events/{eventId} [get]
func (ctrl *controller) GetEvent(c *gin.Context) {
	event, err := ctrl.service.GetEvent(c.Request.Context(), c.Param("eventId"))
	if err != nil {
		response.RespondError(c, "Failed to get event", err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Event retrieved successfully", event, nil)
}
