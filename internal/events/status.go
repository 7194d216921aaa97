package events

type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusOnSale    Status = "ON_SALE"
	StatusClosed    Status = "CLOSED"
	StatusCancelled Status = "CANCELLED"
)
