package constants

import (
	"fmt"

	"github.com/google/uuid"
)

// Redis Key Layout
// This file centralizes every Redis key the Boxoffice service writes
// Pattern: boxoffice:{module}:{identifier}

// ================== REDIS KEY PREFIXES ==================

const (
	CACHE_PREFIX = "boxoffice"
)

// ================== SEATS MODULE ==================

// Seat map cache (read model, invalidated on every seat or hold change)
const (
	CACHE_KEY_SEAT_MAP = CACHE_PREFIX + ":seatmap:" // + event-id
)

// Seat hold store keys (authoritative when HOLD_STORE=redis)
const (
	KEY_SEAT_HOLD     = CACHE_PREFIX + ":seat_hold:"     // + seat-id, hash with TTL
	KEY_SESSION_HOLDS = CACHE_PREFIX + ":session_holds:" // + session-id, set of seat ids
)

// ================== RATE LIMITING ==================

const (
	KEY_RATE_LIMIT = CACHE_PREFIX + ":ratelimit:" // + ip:type
)

// ================== KEY BUILDERS ==================

// BuildSeatMapKey builds the cache key of an event's seat map
func BuildSeatMapKey(eventID uuid.UUID) string {
	return CACHE_KEY_SEAT_MAP + eventID.String()
}

// BuildSeatHoldKey builds the key of one seat's hold record
func BuildSeatHoldKey(seatID uuid.UUID) string {
	return KEY_SEAT_HOLD + seatID.String()
}

// BuildSessionHoldsKey builds the key of a session's hold index
func BuildSessionHoldsKey(sessionID string) string {
	return KEY_SESSION_HOLDS + sessionID
}

// BuildRateLimitKey builds the sliding-window key for a client and budget
func BuildRateLimitKey(clientIP, limitType string) string {
	return fmt.Sprintf("%s%s:%s", KEY_RATE_LIMIT, clientIP, limitType)
}
