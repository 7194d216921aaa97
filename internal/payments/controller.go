package payments

import (
	"net/http"

	"boxoffice/internal/shared/middleware"
	"boxoffice/internal/shared/utils/response"
	"boxoffice/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
)

const gatewayActor = "payment-gateway"

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

// ConfirmPayment godoc
// @Summary      Confirm an order's payment
// @Description  Marks the order PAID and its seats SOLD. Repeating the call returns the same result with replayed=true.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path  string                 true  "Order ID"
// @Param        request  body  ConfirmPaymentRequest  false "Payment evidence"
// @Success      200  {object}  response.StandardApiResponse{data=Result}
// @Failure      409  {object}  response.StandardApiResponse
// @Failure      422  {object}  response.StandardApiResponse
// @Router       /admin/orders/{id}/confirm [post]
func (c *Controller) ConfirmPayment(ctx *gin.Context) {
	orderID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid order ID", nil, err.Error())
		return
	}

	var req ConfirmPaymentRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
			return
		}
	}

	evidence := Evidence{
		Source:        SourceAdmin,
		TransactionID: req.TransactionID,
		Amount:        req.Amount,
		Method:        req.Method,
	}
	result, err := c.service.Confirm(ctx.Request.Context(), orderID, evidence, middleware.Actor(ctx))
	if err != nil {
		response.RespondError(ctx, "Failed to confirm payment", err)
		return
	}

	message := "Payment confirmed successfully"
	if result.Replayed {
		message = "Payment was already confirmed"
	}
	response.RespondJSON(ctx, "success", http.StatusOK, message, result, nil)
}

// GatewayCallback godoc
// @Summary      Payment gateway callback
// @Description  Signed notification from the payment gateway. Retries of a processed callback are acknowledged without effect.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        X-Signature  header  string           true  "Hex HMAC-SHA256 of the body"
// @Param        request      body    GatewayCallback  true  "Callback payload"
// @Success      200  {object}  response.StandardApiResponse{data=Result}
// @Failure      401  {object}  response.StandardApiResponse
// @Router       /payments/callback [post]
func (c *Controller) GatewayCallback(ctx *gin.Context) {
	// The signature middleware already consumed the body.
	var req GatewayCallback
	if err := binding.JSON.BindBody(middleware.RawBody(ctx), &req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid callback payload", nil, err.Error())
		return
	}

	if req.Status == "FAILED" {
		logger.GetDefault().InfoWithContext(ctx.Request.Context(), "Gateway reported a failed payment", map[string]interface{}{
			"reference":      req.Reference,
			"transaction_id": req.TransactionID,
		})
		response.RespondJSON(ctx, "success", http.StatusOK, "Callback acknowledged", nil, nil)
		return
	}

	amount := req.Amount
	evidence := Evidence{
		Source:        SourceGateway,
		TransactionID: req.TransactionID,
		Amount:        &amount,
		Method:        req.Method,
	}
	result, err := c.service.ConfirmByReference(ctx.Request.Context(), req.Reference, evidence, gatewayActor)
	if err != nil {
		response.RespondError(ctx, "Failed to process callback", err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Callback processed", result, nil)
}
