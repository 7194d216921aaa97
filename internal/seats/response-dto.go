package seats

import (
	"time"
)

type HeldSeatInfo struct {
	SeatID    string    `json:"seat_id"`
	Label     string    `json:"label"`
	Section   string    `json:"section"`
	Row       string    `json:"row"`
	Number    string    `json:"number"`
	SeatClass string    `json:"seat_class"`
	Price     int64     `json:"price"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HoldResponse describes the holds a session owns on one event. ExpiresAt is the
// earliest expiry among the seats.
type HoldResponse struct {
	EventID    string         `json:"event_id"`
	SessionID  string         `json:"session_id"`
	Seats      []HeldSeatInfo `json:"seats"`
	TotalPrice int64          `json:"total_price"`
	ExpiresAt  *time.Time     `json:"expires_at,omitempty"`
	TTL        int            `json:"ttl_seconds"`
}

type ReleaseResponse struct {
	Released []string `json:"released"`
	Count    int      `json:"count"`
}

type SeatMapEntry struct {
	SeatID    string     `json:"seat_id"`
	Label     string     `json:"label"`
	Section   string     `json:"section"`
	Row       string     `json:"row"`
	Number    string     `json:"number"`
	SeatClass string     `json:"seat_class"`
	Price     int64      `json:"price"`
	Status    SeatStatus `json:"status"`
}

type SeatMapResponse struct {
	EventID     string         `json:"event_id"`
	Seats       []SeatMapEntry `json:"seats"`
	Available   int            `json:"available"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// OrphanReleaseResult reports what a stale-lock cleanup pass reclaimed.
type OrphanReleaseResult struct {
	HoldsPurged   int64 `json:"holds_purged"`
	SeatsReleased int64 `json:"seats_released"`
}
