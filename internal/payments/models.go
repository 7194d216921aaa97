package payments

import (
	"strings"

	"boxoffice/internal/orders"

	"github.com/google/uuid"
)

type Source string

const (
	SourceAdmin   Source = "ADMIN"
	SourceGateway Source = "GATEWAY"
)

// Evidence is what the caller knows about the payment. Amount is optional and,
// when present, must match the order total in minor units.
type Evidence struct {
	Source        Source `validate:"required,oneof=ADMIN GATEWAY"`
	TransactionID string `validate:"omitempty,max=255"`
	Amount        *int64 `validate:"omitempty,min=0"`
	Method        string `validate:"omitempty,max=50"`
}

// Result of a confirmation. Replayed is true when the order had already been
// confirmed and nothing changed.
type Result struct {
	Order    *orders.OrderResponse `json:"order"`
	Replayed bool                  `json:"replayed"`
}

// TicketIssuer produces the opaque credential reference sent with the
// "order paid" notification.
type TicketIssuer interface {
	TicketURL(orderNumber string, eventID uuid.UUID) string
}

// TemplateTicketIssuer fills {order_number} and {event_id} in a URL template.
type TemplateTicketIssuer struct {
	template string
}

func NewTemplateTicketIssuer(template string) *TemplateTicketIssuer {
	return &TemplateTicketIssuer{template: template}
}

func (t *TemplateTicketIssuer) TicketURL(orderNumber string, eventID uuid.UUID) string {
	return strings.NewReplacer(
		"{order_number}", orderNumber,
		"{event_id}", eventID.String(),
	).Replace(t.template)
}
