package seats

import (
	"net/http"
	"time"

	"boxoffice/internal/shared/apperrors"
	"boxoffice/internal/shared/middleware"
	"boxoffice/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

//  SEAT HOLDING

// AcquireHolds godoc
// @Summary      Hold seats
// @Description  Places temporary holds on seats for the caller's session. All seats are held or none are.
// @Tags         holds
// @Accept       json
// @Produce      json
// @Param        X-Session-ID  header  string               true  "Buyer session"
// @Param        request       body    AcquireHoldsRequest  true  "Seats to hold"
// @Success      200  {object}  response.StandardApiResponse{data=HoldResponse}
// @Failure      409  {object}  response.StandardApiResponse
// @Router       /holds [post]
func (c *Controller) AcquireHolds(ctx *gin.Context) {
	var req AcquireHoldsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	eventID, seatIDs, err := parseIDs(req.EventID, req.SeatIDs)
	if err != nil {
		response.RespondError(ctx, "Invalid request data", err)
		return
	}

	holds, err := c.service.AcquireHolds(ctx.Request.Context(), eventID, seatIDs, middleware.GetSessionID(ctx))
	if err != nil {
		response.RespondError(ctx, "Failed to hold seats", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Seats held successfully", holds, nil)
}

// ExtendHolds godoc
// @Summary      Extend holds for checkout
// @Tags         holds
// @Accept       json
// @Produce      json
// @Param        X-Session-ID  header  string              true  "Buyer session"
// @Param        request       body    ExtendHoldsRequest  true  "Seats to extend"
// @Success      200  {object}  response.StandardApiResponse{data=HoldResponse}
// @Failure      409  {object}  response.StandardApiResponse
// @Router       /holds/extend [put]
func (c *Controller) ExtendHolds(ctx *gin.Context) {
	var req ExtendHoldsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	eventID, seatIDs, err := parseIDs(req.EventID, req.SeatIDs)
	if err != nil {
		response.RespondError(ctx, "Invalid request data", err)
		return
	}

	ttl := time.Duration(req.TTLSeconds) * time.Second
	holds, err := c.service.ExtendHolds(ctx.Request.Context(), eventID, seatIDs, middleware.GetSessionID(ctx), ttl)
	if err != nil {
		response.RespondError(ctx, "Failed to extend holds", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Holds extended successfully", holds, nil)
}

// ReleaseHolds godoc
// @Summary      Release holds
// @Description  Releases the listed seats the session holds. Seats held by others are ignored.
// @Tags         holds
// @Accept       json
// @Produce      json
// @Param        X-Session-ID  header  string               true  "Buyer session"
// @Param        request       body    ReleaseHoldsRequest  true  "Seats to release"
// @Success      200  {object}  response.StandardApiResponse{data=ReleaseResponse}
// @Router       /holds [delete]
func (c *Controller) ReleaseHolds(ctx *gin.Context) {
	var req ReleaseHoldsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	seatIDs, err := parseUUIDs(req.SeatIDs)
	if err != nil {
		response.RespondError(ctx, "Invalid request data", err)
		return
	}

	released, err := c.service.ReleaseHolds(ctx.Request.Context(), seatIDs, middleware.GetSessionID(ctx))
	if err != nil {
		response.RespondError(ctx, "Failed to release holds", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Holds released successfully", released, nil)
}

// CurrentHolds godoc
// @Summary      List the session's holds for an event
// @Tags         holds
// @Produce      json
// @Param        X-Session-ID  header  string  true  "Buyer session"
// @Param        event_id      query   string  true  "Event ID"
// @Success      200  {object}  response.StandardApiResponse{data=HoldResponse}
// @Router       /holds [get]
func (c *Controller) CurrentHolds(ctx *gin.Context) {
	eventID, err := uuid.Parse(ctx.Query("event_id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "event_id query parameter is required", nil, "invalid event ID")
		return
	}

	holds, err := c.service.CurrentHolds(ctx.Request.Context(), middleware.GetSessionID(ctx), eventID)
	if err != nil {
		response.RespondError(ctx, "Failed to get holds", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Holds retrieved successfully", holds, nil)
}

//  SEAT MAP

// SeatMap godoc
// @Summary      Event seat map
// @Description  Returns every seat of the event with its status as buyers see it
// @Tags         seats
// @Produce      json
// @Param        eventId  path  string  true  "Event ID"
// @Success      200  {object}  response.StandardApiResponse{data=SeatMapResponse}
// @Router       /events/{eventId}/seats [get]
func (c *Controller) SeatMap(ctx *gin.Context) {
	eventID, err := uuid.Parse(ctx.Param("eventId"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid event ID", nil, err.Error())
		return
	}

	seatMap, err := c.service.SeatMap(ctx.Request.Context(), eventID)
	if err != nil {
		response.RespondError(ctx, "Failed to get seat map", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Seat map retrieved successfully", seatMap, nil)
}

func parseIDs(eventID string, seatIDs []string) (uuid.UUID, []uuid.UUID, error) {
	event, err := uuid.Parse(eventID)
	if err != nil {
		return uuid.Nil, nil, apperrors.New(apperrors.CodeInvalidRequest, "invalid event ID")
	}
	seats, err := parseUUIDs(seatIDs)
	if err != nil {
		return uuid.Nil, nil, err
	}
	return event, seats, nil
}

func parseUUIDs(raw []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, apperrors.Newf(apperrors.CodeInvalidRequest, "invalid seat ID %q", s)
		}
		out = append(out, id)
	}
	return out, nil
}
