package payments

import (
	"boxoffice/internal/shared/config"
	"boxoffice/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupPaymentRoutes(rg *gin.RouterGroup, controller *Controller, cfg *config.Config) {

	// ADMIN CONFIRMATION

	admin := rg.Group("/admin/orders")
	admin.Use(middleware.JWTAuthWithConfig(cfg), middleware.RequireAdmin())
	{
		admin.POST("/:id/confirm", controller.ConfirmPayment) // POST /api/v1/admin/orders/:id/confirm
	}

	// GATEWAY CALLBACK

	gateway := rg.Group("/payments")
	gateway.Use(middleware.GatewaySignature(cfg.Payments.WebhookSecret))
	{
		gateway.POST("/callback", controller.GatewayCallback) // POST /api/v1/payments/callback
	}
}
