package orders

// CreateOrderRequest turns the session's held seats into a pending order.
type CreateOrderRequest struct {
	EventID       string   `json:"event_id" binding:"required,uuid"`
	SeatIDs       []string `json:"seat_ids" binding:"required,min=1,dive,uuid"`
	PaymentMethod string   `json:"payment_method" binding:"omitempty,max=50"`
}

// ContactInfo is filled in by the buyer when claiming payment.
type ContactInfo struct {
	Name  string `json:"name" binding:"required,max=255" validate:"required,max=255"`
	Email string `json:"email" binding:"required,email,max=255" validate:"required,email,max=255"`
	Phone string `json:"phone" binding:"omitempty,max=50" validate:"omitempty,max=50"`
}

type ClaimPaymentRequest struct {
	Contact       ContactInfo `json:"contact" binding:"required"`
	PaymentMethod string      `json:"payment_method" binding:"omitempty,max=50"`
}

type RejectOrderRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// OrderListQuery filters the admin order listing.
type OrderListQuery struct {
	Status  string `form:"status" binding:"omitempty,oneof=PENDING PENDING_CONFIRMATION PAID CANCELLED EXPIRED"`
	EventID string `form:"event_id" binding:"omitempty,uuid"`
	Page    int    `form:"page" binding:"omitempty,min=1"`
	Limit   int    `form:"limit" binding:"omitempty,min=1,max=100"`
}
