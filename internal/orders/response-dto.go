package orders

import (
	"time"
)

type OrderItemResponse struct {
	SeatID    string `json:"seat_id"`
	Label     string `json:"label"`
	Section   string `json:"section"`
	Row       string `json:"row"`
	Number    string `json:"number"`
	SeatClass string `json:"seat_class"`
	Price     int64  `json:"price"`
}

type PaymentResponse struct {
	Method        string     `json:"method"`
	Status        string     `json:"status"`
	TransactionID string     `json:"transaction_id,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
}

type OrderResponse struct {
	ID           string              `json:"id"`
	OrderNumber  string              `json:"order_number"`
	EventID      string              `json:"event_id"`
	Status       Status              `json:"status"`
	TotalAmount  int64               `json:"total_amount"`
	Currency     string              `json:"currency"`
	ExpiresAt    time.Time           `json:"expires_at"`
	Contact      *ContactInfo        `json:"contact,omitempty"`
	Items        []OrderItemResponse `json:"items"`
	Payment      *PaymentResponse    `json:"payment,omitempty"`
	PaidAt       *time.Time          `json:"paid_at,omitempty"`
	CancelledAt  *time.Time          `json:"cancelled_at,omitempty"`
	CancelReason string              `json:"cancel_reason,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
}

// CreateOrderResponse carries the plaintext access token. It is returned once
// and never stored.
type CreateOrderResponse struct {
	Order       *OrderResponse `json:"order"`
	AccessToken string         `json:"access_token"`
}

type OrderListResponse struct {
	Orders     []OrderResponse `json:"orders"`
	TotalCount int64           `json:"total_count"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"total_pages"`
}

// ExpireResult reports what a single expiry attempt did.
type ExpireResult struct {
	Expired       bool `json:"expired"`
	SeatsReleased int  `json:"seats_released"`
}

func (o *Order) ToResponse() *OrderResponse {
	resp := &OrderResponse{
		ID:           o.ID.String(),
		OrderNumber:  o.OrderNumber,
		EventID:      o.EventID.String(),
		Status:       o.Status,
		TotalAmount:  o.TotalAmount,
		Currency:     o.Currency,
		ExpiresAt:    o.ExpiresAt,
		Items:        make([]OrderItemResponse, 0, len(o.Items)),
		PaidAt:       o.PaidAt,
		CancelledAt:  o.CancelledAt,
		CancelReason: o.CancelReason,
		CreatedAt:    o.CreatedAt,
	}
	if o.ContactEmail != "" || o.ContactName != "" {
		resp.Contact = &ContactInfo{Name: o.ContactName, Email: o.ContactEmail, Phone: o.ContactPhone}
	}
	for i := range o.Items {
		item := &o.Items[i]
		resp.Items = append(resp.Items, OrderItemResponse{
			SeatID:    item.SeatID.String(),
			Label:     item.Label(),
			Section:   item.Section,
			Row:       item.Row,
			Number:    item.Number,
			SeatClass: item.SeatClass,
			Price:     item.Price,
		})
	}
	if p := o.Payment; p != nil {
		resp.Payment = &PaymentResponse{Method: p.Method, Status: p.Status.String(), PaidAt: p.PaidAt}
		if p.TransactionID != nil {
			resp.Payment.TransactionID = *p.TransactionID
		}
	}
	return resp
}
