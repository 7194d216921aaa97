package seats

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// HoldStore keeps per-seat exclusive holds. Every implementation must make
// Acquire a single atomic conditional write per call: a seat is taken only when
// it has no hold, its hold has expired, or the hold already belongs to the
// caller's session.
type HoldStore interface {
	// Acquire writes all holds or none. It returns the seats lost to live holds
	// of other sessions; a non-empty result means nothing was written.
	Acquire(ctx context.Context, holds []SeatHold, now time.Time) (lost []uuid.UUID, err error)
	// Active returns the live holds on the given seats, whoever owns them.
	Active(ctx context.Context, seatIDs []uuid.UUID, now time.Time) ([]SeatHold, error)
	// Extend moves expiry to until only if every seat is live and owned by
	// sessionID. Otherwise it returns the offending seats and writes nothing.
	Extend(ctx context.Context, seatIDs []uuid.UUID, sessionID string, now, until time.Time) (notHeld []uuid.UUID, err error)
	// Release deletes holds owned by sessionID and ignores everything else.
	Release(ctx context.Context, seatIDs []uuid.UUID, sessionID string) (released []uuid.UUID, err error)
	// ReleaseSeats and ExtendSeats act regardless of owner. The order engine
	// uses them once a seat belongs to an order.
	ReleaseSeats(ctx context.Context, seatIDs []uuid.UUID) error
	ExtendSeats(ctx context.Context, seatIDs []uuid.UUID, now, until time.Time) error
	ListBySession(ctx context.Context, sessionID string, eventID uuid.UUID, now time.Time) ([]SeatHold, error)
	// PurgeExpired deletes expired holds, limited to seatIDs when given.
	PurgeExpired(ctx context.Context, now time.Time, seatIDs ...uuid.UUID) (int64, error)
	// Transactional reports whether writes join the unit of work carried by ctx.
	Transactional() bool
}

const (
	HoldStorePostgres = "postgres"
	HoldStoreRedis    = "redis"
	HoldStoreMemory   = "memory"
)

// NewHoldStore picks the backend named by kind. Callers never see the difference.
func NewHoldStore(kind string, db *gorm.DB, rdb *redis.Client) (HoldStore, error) {
	switch kind {
	case "", HoldStorePostgres:
		return NewPostgresHoldStore(db), nil
	case HoldStoreRedis:
		if rdb == nil {
			return nil, fmt.Errorf("redis hold store requires a redis client")
		}
		return NewRedisHoldStore(rdb), nil
	case HoldStoreMemory:
		return NewMemoryHoldStore(), nil
	}
	return nil, fmt.Errorf("unknown hold store %q", kind)
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
