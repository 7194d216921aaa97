package sweeper

import (
	"context"
	"time"

	"boxoffice/internal/orders"
	"boxoffice/internal/seats"
	"boxoffice/pkg/logger"

	"github.com/google/uuid"
)

// OrderExpirer is the slice of the order service the sweeper drives.
type OrderExpirer interface {
	DueForExpiry(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	Expire(ctx context.Context, orderID uuid.UUID, now time.Time) (*orders.ExpireResult, error)
}

// LockReclaimer returns LOCKED seats whose holds lapsed to sale.
type LockReclaimer interface {
	ReleaseOrphanLocks(ctx context.Context, limit int) (*seats.OrphanReleaseResult, error)
}

// Result counts one sweep pass. Failed orders stay due and are picked up by the
// next pass.
type Result struct {
	Found         int           `json:"found"`
	Succeeded     int           `json:"succeeded"`
	Failed        int           `json:"failed"`
	SeatsReleased int64         `json:"seats_released"`
	HoldsReleased int64         `json:"holds_released"`
	Duration      time.Duration `json:"duration"`
}

type Sweeper struct {
	orders    OrderExpirer
	locks     LockReclaimer
	batchSize int
	logger    *logger.Logger
}

func New(expirer OrderExpirer, locks LockReclaimer, batchSize int) *Sweeper {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Sweeper{
		orders:    expirer,
		locks:     locks,
		batchSize: batchSize,
		logger:    logger.GetDefault(),
	}
}

// Sweep expires every order due at now, each in its own unit of work, then
// reclaims orphaned seat locks. Overlapping runs are safe: expiring an order
// that is already terminal does nothing.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (*Result, error) {
	start := time.Now()
	result := &Result{}

	due, err := s.orders.DueForExpiry(ctx, now, s.batchSize)
	if err != nil {
		return nil, err
	}
	result.Found = len(due)

	for _, orderID := range due {
		if ctx.Err() != nil {
			result.Failed += result.Found - result.Succeeded - result.Failed
			break
		}
		expired, err := s.orders.Expire(ctx, orderID, now)
		if err != nil {
			result.Failed++
			s.logger.ErrorWithContext(ctx, "Failed to expire order", err, map[string]interface{}{
				"order_id": orderID.String(),
			})
			continue
		}
		result.Succeeded++
		result.SeatsReleased += int64(expired.SeatsReleased)
	}

	if s.locks != nil {
		orphans, err := s.locks.ReleaseOrphanLocks(ctx, s.batchSize)
		if err != nil {
			s.logger.ErrorWithContext(ctx, "Failed to release orphan seat locks", err, nil)
		} else {
			result.HoldsReleased = orphans.HoldsPurged
			result.SeatsReleased += orphans.SeatsReleased
		}
	}

	result.Duration = time.Since(start)
	s.logger.LogSweepCompleted(ctx, result.Found, result.Succeeded, result.Failed, result.HoldsReleased, result.Duration)
	return result, nil
}
