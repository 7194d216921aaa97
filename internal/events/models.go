package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is the bookable show a seat inventory belongs to. Event administration
// lives elsewhere; this service only needs to know whether sales are open.
type Event struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Name         string     `json:"name" gorm:"not null;size:255"`
	Venue        string     `json:"venue" gorm:"size:255"`
	Status       Status     `json:"status" gorm:"type:varchar(20);not null;default:'DRAFT'"`
	SalesStartAt *time.Time `json:"sales_start_at"`
	SalesEndAt   *time.Time `json:"sales_end_at"`
	StartsAt     time.Time  `json:"starts_at" gorm:"not null"`
	CreatedAt    time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Event) TableName() string {
	return "events"
}

// Bookable reports whether the event accepts new orders at now.
func (e *Event) Bookable(now time.Time) bool {
	if e.Status != StatusOnSale {
		return false
	}
	if e.SalesStartAt != nil && now.Before(*e.SalesStartAt) {
		return false
	}
	if e.SalesEndAt != nil && !now.Before(*e.SalesEndAt) {
		return false
	}
	return now.Before(e.StartsAt)
}

type EventResponse struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Venue        string     `json:"venue"`
	Status       Status     `json:"status"`
	SalesStartAt *time.Time `json:"sales_start_at,omitempty"`
	SalesEndAt   *time.Time `json:"sales_end_at,omitempty"`
	StartsAt     time.Time  `json:"starts_at"`
	Bookable     bool       `json:"bookable"`
}

func (e *Event) ToResponse(now time.Time) EventResponse {
	return EventResponse{
		ID:           e.ID.String(),
		Name:         e.Name,
		Venue:        e.Venue,
		Status:       e.Status,
		SalesStartAt: e.SalesStartAt,
		SalesEndAt:   e.SalesEndAt,
		StartsAt:     e.StartsAt,
		Bookable:     e.Bookable(now),
	}
}
