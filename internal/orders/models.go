package orders

import (
	"time"

	"github.com/google/uuid"
)

// Order is never deleted; terminal orders are kept for audit.
type Order struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OrderNumber     string     `gorm:"size:16;uniqueIndex;not null" json:"order_number"`
	EventID         uuid.UUID  `gorm:"type:uuid;index;not null" json:"event_id"`
	SessionID       string     `gorm:"size:128;index;not null" json:"-"`
	Status          Status     `gorm:"type:varchar(30);not null;default:'PENDING';check:status IN ('PENDING','PENDING_CONFIRMATION','PAID','CANCELLED','EXPIRED')" json:"status"`
	TotalAmount     int64      `gorm:"not null" json:"total_amount"`
	Currency        string     `gorm:"type:varchar(3);not null" json:"currency"`
	ExpiresAt       time.Time  `gorm:"not null" json:"expires_at"`
	ContactName     string     `gorm:"size:255" json:"contact_name"`
	ContactEmail    string     `gorm:"size:255" json:"contact_email"`
	ContactPhone    string     `gorm:"size:50" json:"contact_phone"`
	AccessTokenHash string     `gorm:"size:100;not null" json:"-"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	CancelReason    string     `gorm:"size:500" json:"cancel_reason,omitempty"`
	CancelledBy     string     `gorm:"size:255" json:"cancelled_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	// Relationships
	Items   []OrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:RESTRICT;"`
	Payment *Payment    `json:"payment,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:RESTRICT;"`
}

// OrderItem snapshots the seat at order time. Active is cleared when the order
// dies, which frees the seat for another order.
type OrderItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID   uuid.UUID `gorm:"type:uuid;index;not null" json:"order_id"`
	SeatID    uuid.UUID `gorm:"type:uuid;index;not null" json:"seat_id"`
	Section   string    `gorm:"size:50" json:"section"`
	Row       string    `gorm:"size:10" json:"row"`
	Number    string    `gorm:"size:20" json:"number"`
	SeatClass string    `gorm:"size:50" json:"seat_class"`
	Price     int64     `gorm:"not null" json:"price"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Label is the seat number shown to buyers, e.g. "A2".
func (i *OrderItem) Label() string {
	return i.Row + i.Number
}

// Payment is 1:1 with its order. WebhookProcessed flips to true exactly once.
type Payment struct {
	ID               uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID          uuid.UUID     `gorm:"type:uuid;uniqueIndex;not null" json:"order_id"`
	Amount           int64         `gorm:"not null" json:"amount"`
	Currency         string        `gorm:"type:varchar(3);not null" json:"currency"`
	Method           string        `gorm:"type:varchar(50)" json:"method"`
	Status           PaymentStatus `gorm:"type:varchar(20);not null;default:'PENDING';check:status IN ('PENDING','COMPLETED','FAILED')" json:"status"`
	TransactionID    *string       `gorm:"size:255;uniqueIndex" json:"transaction_id,omitempty"`
	WebhookReceived  bool          `gorm:"not null;default:false" json:"webhook_received"`
	WebhookProcessed bool          `gorm:"not null;default:false" json:"webhook_processed"`
	PaidAt           *time.Time    `json:"paid_at,omitempty"`
	FailureReason    string        `gorm:"size:500" json:"failure_reason,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

func (OrderItem) TableName() string {
	return "order_items"
}

func (Payment) TableName() string {
	return "payments"
}

// SeatIDs returns the seats the order references.
func (o *Order) SeatIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(o.Items))
	for _, item := range o.Items {
		ids = append(ids, item.SeatID)
	}
	return ids
}

// Models lists the tables this package owns, for migrations.
func Models() []interface{} {
	return []interface{}{&Order{}, &OrderItem{}, &Payment{}}
}
