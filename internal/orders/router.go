package orders

import (
	"boxoffice/internal/shared/config"
	"boxoffice/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupOrderRoutes configures buyer and admin order routes
func SetupOrderRoutes(rg *gin.RouterGroup, controller *Controller, cfg *config.Config) {

	// BUYER ORDER OPERATIONS

	orders := rg.Group("/orders")
	{
		orders.POST("", middleware.SessionID(), controller.CreateOrder)     // POST /api/v1/orders
		orders.GET("/:orderNumber", controller.GetOrder)                    // GET /api/v1/orders/:orderNumber
		orders.POST("/:orderNumber/claim-payment", controller.ClaimPayment) // POST /api/v1/orders/:orderNumber/claim-payment
	}

	// ADMIN ORDER OPERATIONS

	admin := rg.Group("/admin/orders")
	admin.Use(middleware.JWTAuthWithConfig(cfg), middleware.RequireAdmin())
	{
		admin.GET("", controller.ListOrders)              // GET /api/v1/admin/orders?status=&event_id=
		admin.GET("/:id", controller.GetOrderByID)        // GET /api/v1/admin/orders/:id
		admin.POST("/:id/reject", controller.RejectOrder) // POST /api/v1/admin/orders/:id/reject
	}
}

// Route definitions for reference:
//
// ORDER CREATION
// POST   /api/v1/orders                                 - Turn held seats into a PENDING order
// Request body: { "event_id": "...", "seat_ids": ["..."], "payment_method": "bank_transfer" }
//
// BUYER ACCESS (Authorization: Bearer <access token from order creation>)
// GET    /api/v1/orders/:orderNumber                    - Look up the order
// POST   /api/v1/orders/:orderNumber/claim-payment      - Report payment, await admin review
//
// Order Flow:
// 1. Buyer holds seats with POST /holds
// 2. Buyer creates the order with POST /orders and keeps the access token
// 3. Buyer claims payment with contact details
// 4. Admin confirms (POST /admin/orders/:id/confirm) or rejects the order
// 5. Unpaid orders expire and their seats return to sale
