package orders

import (
	"net/http"
	"strings"

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

//  BUYER OPERATIONS

// CreateOrder godoc
// @Summary      Create a pending order from held seats
// @Description  Converts the session's holds into a PENDING order. The access token in the reply is shown once.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        X-Session-ID  header  string              true  "Buyer session"
// @Param        request       body    CreateOrderRequest  true  "Held seats"
// @Success      201  {object}  response.StandardApiResponse{data=CreateOrderResponse}
// @Failure      409  {object}  response.StandardApiResponse
// @Failure      422  {object}  response.StandardApiResponse
// @Router       /orders [post]
func (c *Controller) CreateOrder(ctx *gin.Context) {
	var req CreateOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid event ID", nil, err.Error())
		return
	}
	seatIDs := make([]uuid.UUID, 0, len(req.SeatIDs))
	for _, raw := range req.SeatIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid seat ID", nil, err.Error())
			return
		}
		seatIDs = append(seatIDs, id)
	}

	created, err := c.service.CreatePending(ctx.Request.Context(), eventID, seatIDs, middleware.GetSessionID(ctx), req.PaymentMethod)
	if err != nil {
		response.RespondError(ctx, "Failed to create order", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Order created successfully", created, nil)
}

// GetOrder godoc
// @Summary      Look up an order
// @Tags         orders
// @Produce      json
// @Param        orderNumber    path    string  true  "Order number"
// @Param        Authorization  header  string  true  "Bearer <access token>"
// @Success      200  {object}  response.StandardApiResponse{data=OrderResponse}
// @Failure      401  {object}  response.StandardApiResponse
// @Router       /orders/{orderNumber} [get]
func (c *Controller) GetOrder(ctx *gin.Context) {
	order, err := c.service.Lookup(ctx.Request.Context(), ctx.Param("orderNumber"), bearerToken(ctx))
	if err != nil {
		response.RespondError(ctx, "Failed to get order", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Order retrieved successfully", order, nil)
}

// ClaimPayment godoc
// @Summary      Report an offline payment
// @Description  Records contact details and moves the order to PENDING_CONFIRMATION for admin review.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        orderNumber    path    string               true  "Order number"
// @Param        Authorization  header  string               true  "Bearer <access token>"
// @Param        request        body    ClaimPaymentRequest  true  "Contact details"
// @Success      200  {object}  response.StandardApiResponse{data=OrderResponse}
// @Failure      409  {object}  response.StandardApiResponse
// @Failure      410  {object}  response.StandardApiResponse
// @Router       /orders/{orderNumber}/claim-payment [post]
func (c *Controller) ClaimPayment(ctx *gin.Context) {
	var req ClaimPaymentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	order, err := c.service.ClaimPayment(ctx.Request.Context(), ctx.Param("orderNumber"), bearerToken(ctx), req.Contact, req.PaymentMethod)
	if err != nil {
		response.RespondError(ctx, "Failed to claim payment", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Payment claim recorded, awaiting confirmation", order, nil)
}

//  ADMIN OPERATIONS

// ListOrders godoc
// @Summary      List orders
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        status    query  string  false  "Order status"
// @Param        event_id  query  string  false  "Event ID"
// @Param        page      query  int     false  "Page number"  default(1)
// @Param        limit     query  int     false  "Page size"    default(20)
// @Success      200  {object}  response.StandardApiResponse{data=OrderListResponse}
// @Router       /admin/orders [get]
func (c *Controller) ListOrders(ctx *gin.Context) {
	var query OrderListQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	orders, err := c.service.List(ctx.Request.Context(), query)
	if err != nil {
		response.RespondError(ctx, "Failed to list orders", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Orders retrieved successfully", orders, nil)
}

// GetOrderByID godoc
// @Summary      Get an order
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  string  true  "Order ID"
// @Success      200  {object}  response.StandardApiResponse{data=OrderResponse}
// @Failure      404  {object}  response.StandardApiResponse
// @Router       /admin/orders/{id} [get]
func (c *Controller) GetOrderByID(ctx *gin.Context) {
	orderID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid order ID", nil, err.Error())
		return
	}

	order, err := c.service.Get(ctx.Request.Context(), orderID)
	if err != nil {
		response.RespondError(ctx, "Failed to get order", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Order retrieved successfully", order, nil)
}

// RejectOrder godoc
// @Summary      Reject an order
// @Description  Cancels a PENDING or PENDING_CONFIRMATION order and frees its seats.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path  string              true  "Order ID"
// @Param        request  body  RejectOrderRequest  true  "Rejection reason"
// @Success      200  {object}  response.StandardApiResponse{data=OrderResponse}
// @Failure      409  {object}  response.StandardApiResponse
// @Router       /admin/orders/{id}/reject [post]
func (c *Controller) RejectOrder(ctx *gin.Context) {
	orderID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid order ID", nil, err.Error())
		return
	}

	var req RejectOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	order, err := c.service.Reject(ctx.Request.Context(), orderID, req.Reason, middleware.Actor(ctx))
	if err != nil {
		response.RespondError(ctx, "Failed to reject order", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Order rejected successfully", order, nil)
}

func bearerToken(ctx *gin.Context) string {
	header := ctx.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
