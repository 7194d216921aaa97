package seats

// AcquireHoldsRequest asks for holds on seats of one event for the caller's session.
type AcquireHoldsRequest struct {
	EventID string   `json:"event_id" binding:"required,uuid"`
	SeatIDs []string `json:"seat_ids" binding:"required,min=1,dive,uuid"`
}

// ExtendHoldsRequest moves a session's holds to the checkout window.
// TTLSeconds of 0 means the default checkout TTL.
type ExtendHoldsRequest struct {
	EventID    string   `json:"event_id" binding:"required,uuid"`
	SeatIDs    []string `json:"seat_ids" binding:"required,min=1,dive,uuid"`
	TTLSeconds int      `json:"ttl_seconds" binding:"omitempty,min=0"`
}

type ReleaseHoldsRequest struct {
	SeatIDs []string `json:"seat_ids" binding:"required,min=1,dive,uuid"`
}
