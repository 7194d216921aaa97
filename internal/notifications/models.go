package notifications

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Purpose string

const (
	PurposeOrderPaid       Purpose = "ORDER_PAID"
	PurposeRejectionNotice Purpose = "REJECTION_NOTICE"
	PurposeOrderExpired    Purpose = "ORDER_EXPIRED"
)

const defaultNotificationKind = "order"

// Notification is a domain event for the downstream notification pipeline.
// Delivery (email, QR codes, PDFs) happens elsewhere.
type Notification struct {
	ID      uuid.UUID `json:"id"`
	Purpose Purpose   `json:"purpose"`
	Kind    string    `json:"kind"`

	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	EventID     uuid.UUID `json:"event_id"`

	RecipientEmail string `json:"recipient_email,omitempty"`
	RecipientName  string `json:"recipient_name,omitempty"`

	Amount    int64  `json:"amount"`
	Currency  string `json:"currency,omitempty"`
	TicketURL string `json:"ticket_url,omitempty"`
	Reason    string `json:"reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// PartitionKey keeps every message about one order on one partition.
func (n *Notification) PartitionKey() string {
	return n.OrderID.String()
}

func (n *Notification) ToJSON() ([]byte, error) {
	return json.Marshal(n)
}

type NotificationBuilder struct {
	n *Notification
}

func NewNotificationBuilder(purpose Purpose) *NotificationBuilder {
	return &NotificationBuilder{n: &Notification{
		ID:        uuid.New(),
		Purpose:   purpose,
		Kind:      defaultNotificationKind,
		CreatedAt: time.Now().UTC(),
	}}
}

func (b *NotificationBuilder) WithOrder(orderID uuid.UUID, orderNumber string, eventID uuid.UUID) *NotificationBuilder {
	b.n.OrderID = orderID
	b.n.OrderNumber = orderNumber
	b.n.EventID = eventID
	return b
}

func (b *NotificationBuilder) WithRecipient(email, name string) *NotificationBuilder {
	b.n.RecipientEmail = email
	b.n.RecipientName = name
	return b
}

func (b *NotificationBuilder) WithAmount(amount int64, currency string) *NotificationBuilder {
	b.n.Amount = amount
	b.n.Currency = currency
	return b
}

func (b *NotificationBuilder) WithTicketURL(url string) *NotificationBuilder {
	b.n.TicketURL = url
	return b
}

func (b *NotificationBuilder) WithReason(reason string) *NotificationBuilder {
	b.n.Reason = reason
	return b
}

func (b *NotificationBuilder) Build() *Notification {
	return b.n
}

// AuditEntry records who changed what. Old and New are JSON snapshots of the
// fields that changed.
type AuditEntry struct {
	ID       uuid.UUID       `json:"id"`
	Actor    string          `json:"actor"`
	Action   string          `json:"action"`
	Entity   string          `json:"entity"`
	EntityID string          `json:"entity_id"`
	Old      json.RawMessage `json:"old,omitempty"`
	New      json.RawMessage `json:"new,omitempty"`
	At       time.Time       `json:"at"`
}

// NewAuditEntry snapshots old and new as JSON. Values that fail to marshal are dropped.
func NewAuditEntry(actor, action, entity, entityID string, before, after interface{}) *AuditEntry {
	return &AuditEntry{
		ID:       uuid.New(),
		Actor:    actor,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Old:      snapshot(before),
		New:      snapshot(after),
		At:       time.Now().UTC(),
	}
}

func snapshot(v interface{}) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

// Message is what a Publisher puts on the wire.
type Message struct {
	Topic   string
	Key     string
	Payload []byte
	Headers map[string]string
}
