package seats

import (
	"time"

	"github.com/google/uuid"
)

type SeatStatus string

const (
	StatusAvailable SeatStatus = "AVAILABLE"
	StatusLocked    SeatStatus = "LOCKED"
	StatusReserved  SeatStatus = "RESERVED"
	StatusSold      SeatStatus = "SOLD"
	StatusRemoved   SeatStatus = "REMOVED"
)

// Holdable reports whether a hold may be granted on a seat in this status.
// LOCKED seats are holdable; whether the existing hold is still live is the
// hold store's call.
func (s SeatStatus) Holdable() bool {
	return s == StatusAvailable || s == StatusLocked
}

// Seat is one sellable position for an event. Price is in minor currency units.
type Seat struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	EventID   uuid.UUID  `gorm:"type:uuid;index;not null;uniqueIndex:idx_event_seat_label" json:"event_id"`
	Section   string     `gorm:"size:50;not null;uniqueIndex:idx_event_seat_label" json:"section"`
	Row       string     `gorm:"size:10;not null;uniqueIndex:idx_event_seat_label" json:"row"`
	Number    string     `gorm:"size:20;not null;uniqueIndex:idx_event_seat_label" json:"number"`
	SeatClass string     `gorm:"size:50;not null;default:'STANDARD'" json:"seat_class"`
	Price     int64      `gorm:"not null;check:price >= 0" json:"price"`
	Status    SeatStatus `gorm:"type:varchar(20);not null;index;default:'AVAILABLE';check:status IN ('AVAILABLE','LOCKED','RESERVED','SOLD','REMOVED')" json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Seat) TableName() string {
	return "seats"
}

// Label is the buyer-facing seat name used in conflict reports, e.g. "A2".
func (s *Seat) Label() string {
	return s.Row + s.Number
}

// SeatHold is a time-boxed claim on one seat by one session. A hold whose
// ExpiresAt is not after now is treated as absent everywhere.
type SeatHold struct {
	SeatID       uuid.UUID  `gorm:"type:uuid;primaryKey" json:"seat_id"`
	EventID      uuid.UUID  `gorm:"type:uuid;not null" json:"event_id"`
	SessionID    string     `gorm:"size:128;not null" json:"session_id"`
	TicketTypeID *uuid.UUID `gorm:"type:uuid" json:"ticket_type_id,omitempty"`
	ExpiresAt    time.Time  `gorm:"not null;index" json:"expires_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (SeatHold) TableName() string {
	return "seat_holds"
}

func (h *SeatHold) Live(now time.Time) bool {
	return now.Before(h.ExpiresAt)
}

// EffectiveStatus is what buyers see: a LOCKED seat whose hold lapsed is AVAILABLE.
func EffectiveStatus(seat *Seat, hold *SeatHold, now time.Time) SeatStatus {
	if seat.Status == StatusLocked && (hold == nil || !hold.Live(now)) {
		return StatusAvailable
	}
	if seat.Status == StatusAvailable && hold != nil && hold.Live(now) {
		return StatusLocked
	}
	return seat.Status
}
