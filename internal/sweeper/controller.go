package sweeper

import (
	"net/http"

	"boxoffice/internal/shared/clock"
	"boxoffice/internal/shared/middleware"
	"boxoffice/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
)

type Controller struct {
	sweeper *Sweeper
	clock   clock.Clock
}

func NewController(sweeper *Sweeper, clk clock.Clock) *Controller {
	return &Controller{sweeper: sweeper, clock: clk}
}

// Sweep godoc
// @Summary      Run one expiry sweep
// @Description  Expires overdue orders and reclaims orphaned seat locks. Called by the scheduler.
// @Tags         internal
// @Produce      json
// @Param        X-Sweep-Secret  header  string  true  "Shared scheduler secret"
// @Success      200  {object}  response.StandardApiResponse{data=Result}
// @Failure      401  {object}  response.StandardApiResponse
// @Router       /internal/sweep [post]
func (c *Controller) Sweep(ctx *gin.Context) {
	result, err := c.sweeper.Sweep(ctx.Request.Context(), c.clock.Now())
	if err != nil {
		response.RespondError(ctx, "Sweep failed", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Sweep completed", result, nil)
}

// SetupSweepRoutes mounts the trigger outside the public API prefix.
func SetupSweepRoutes(router gin.IRouter, controller *Controller, secret string) {
	internal := router.Group("/internal")
	internal.Use(middleware.SweepSecret(secret))
	{
		internal.POST("/sweep", controller.Sweep) // POST /internal/sweep
	}
}
