package payments

// ConfirmPaymentRequest is the admin "funds received" action.
type ConfirmPaymentRequest struct {
	TransactionID string `json:"transaction_id" binding:"omitempty,max=255"`
	Amount        *int64 `json:"amount" binding:"omitempty,min=0"`
	Method        string `json:"method" binding:"omitempty,max=50"`
}

// GatewayCallback is the signed payload posted by the payment gateway. Reference
// is the order number shown to the payer.
type GatewayCallback struct {
	Reference     string `json:"reference" binding:"required,max=16"`
	TransactionID string `json:"transaction_id" binding:"required,max=255"`
	Amount        int64  `json:"amount" binding:"min=0"`
	Method        string `json:"method" binding:"omitempty,max=50"`
	Status        string `json:"status" binding:"omitempty,oneof=SUCCEEDED FAILED"`
}
