package seats

import (
	"context"
	"errors"
	"strings"
	"time"

	"boxoffice/internal/shared/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errRollbackHolds = errors.New("hold write rolled back")

// PostgresHoldStore keeps holds in the seat_holds table, keyed by seat. It joins
// the unit of work carried by ctx, so holds commit or roll back with seat status.
type PostgresHoldStore struct {
	db *gorm.DB
}

func NewPostgresHoldStore(db *gorm.DB) *PostgresHoldStore {
	return &PostgresHoldStore{db: db}
}

func (s *PostgresHoldStore) Transactional() bool { return true }

const upsertHoldsSuffix = ` ON CONFLICT (seat_id) DO UPDATE SET
	event_id = EXCLUDED.event_id,
	session_id = EXCLUDED.session_id,
	ticket_type_id = EXCLUDED.ticket_type_id,
	expires_at = EXCLUDED.expires_at,
	updated_at = EXCLUDED.updated_at
WHERE seat_holds.expires_at <= ? OR seat_holds.session_id = EXCLUDED.session_id
RETURNING seat_id`

func (s *PostgresHoldStore) Acquire(ctx context.Context, holds []SeatHold, now time.Time) ([]uuid.UUID, error) {
	holds = uniqueHolds(holds)
	if len(holds) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	args := make([]interface{}, 0, len(holds)*7+1)
	sb.WriteString("INSERT INTO seat_holds (seat_id, event_id, session_id, ticket_type_id, expires_at, created_at, updated_at) VALUES ")
	for i, h := range holds {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?)")
		args = append(args, h.SeatID, h.EventID, h.SessionID, h.TicketTypeID, h.ExpiresAt, now, now)
	}
	sb.WriteString(upsertHoldsSuffix)
	args = append(args, now)

	var lost []uuid.UUID
	err := database.Conn(ctx, s.db).Transaction(func(tx *gorm.DB) error {
		var written []string
		if err := tx.Raw(sb.String(), args...).Scan(&written).Error; err != nil {
			return err
		}

		won := make(map[string]struct{}, len(written))
		for _, id := range written {
			won[id] = struct{}{}
		}
		for _, h := range holds {
			if _, ok := won[h.SeatID.String()]; !ok {
				lost = append(lost, h.SeatID)
			}
		}
		if len(lost) > 0 {
			return errRollbackHolds
		}
		return nil
	})
	if errors.Is(err, errRollbackHolds) {
		return lost, nil
	}
	if err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *PostgresHoldStore) Active(ctx context.Context, seatIDs []uuid.UUID, now time.Time) ([]SeatHold, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	var holds []SeatHold
	err := database.Conn(ctx, s.db).
		Where("seat_id IN ? AND expires_at > ?", seatIDs, now).
		Order("seat_id").
		Find(&holds).Error
	return holds, err
}

func (s *PostgresHoldStore) Extend(ctx context.Context, seatIDs []uuid.UUID, sessionID string, now, until time.Time) ([]uuid.UUID, error) {
	seatIDs = uniqueIDs(seatIDs)
	if len(seatIDs) == 0 {
		return nil, nil
	}

	var notHeld []uuid.UUID
	err := database.Conn(ctx, s.db).Transaction(func(tx *gorm.DB) error {
		var held []SeatHold
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("seat_id IN ? AND session_id = ? AND expires_at > ?", seatIDs, sessionID, now).
			Find(&held).Error
		if err != nil {
			return err
		}

		notHeld = missingSeats(seatIDs, held)
		if len(notHeld) > 0 {
			return nil
		}

		return tx.Model(&SeatHold{}).
			Where("seat_id IN ? AND session_id = ?", seatIDs, sessionID).
			Updates(map[string]interface{}{"expires_at": until, "updated_at": now}).Error
	})
	if err != nil {
		return nil, err
	}
	return notHeld, nil
}

func (s *PostgresHoldStore) Release(ctx context.Context, seatIDs []uuid.UUID, sessionID string) ([]uuid.UUID, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	var deleted []SeatHold
	err := database.Conn(ctx, s.db).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "seat_id"}}}).
		Where("seat_id IN ? AND session_id = ?", seatIDs, sessionID).
		Delete(&deleted).Error
	if err != nil {
		return nil, err
	}

	released := make([]uuid.UUID, 0, len(deleted))
	for _, h := range deleted {
		released = append(released, h.SeatID)
	}
	return released, nil
}

func (s *PostgresHoldStore) ReleaseSeats(ctx context.Context, seatIDs []uuid.UUID) error {
	if len(seatIDs) == 0 {
		return nil
	}
	return database.Conn(ctx, s.db).Where("seat_id IN ?", seatIDs).Delete(&SeatHold{}).Error
}

func (s *PostgresHoldStore) ExtendSeats(ctx context.Context, seatIDs []uuid.UUID, now, until time.Time) error {
	if len(seatIDs) == 0 {
		return nil
	}
	return database.Conn(ctx, s.db).Model(&SeatHold{}).
		Where("seat_id IN ?", seatIDs).
		Updates(map[string]interface{}{"expires_at": until, "updated_at": now}).Error
}

func (s *PostgresHoldStore) ListBySession(ctx context.Context, sessionID string, eventID uuid.UUID, now time.Time) ([]SeatHold, error) {
	var holds []SeatHold
	err := database.Conn(ctx, s.db).
		Where("session_id = ? AND event_id = ? AND expires_at > ?", sessionID, eventID, now).
		Order("seat_id").
		Find(&holds).Error
	return holds, err
}

func (s *PostgresHoldStore) PurgeExpired(ctx context.Context, now time.Time, seatIDs ...uuid.UUID) (int64, error) {
	q := database.Conn(ctx, s.db).Where("expires_at <= ?", now)
	if len(seatIDs) > 0 {
		q = q.Where("seat_id IN ?", seatIDs)
	}
	res := q.Delete(&SeatHold{})
	return res.RowsAffected, res.Error
}

func uniqueHolds(holds []SeatHold) []SeatHold {
	seen := make(map[uuid.UUID]struct{}, len(holds))
	out := make([]SeatHold, 0, len(holds))
	for _, h := range holds {
		if _, ok := seen[h.SeatID]; ok {
			continue
		}
		seen[h.SeatID] = struct{}{}
		out = append(out, h)
	}
	return out
}

// missingSeats returns the ids in want that no hold in have covers, in want's order.
func missingSeats(want []uuid.UUID, have []SeatHold) []uuid.UUID {
	covered := make(map[uuid.UUID]struct{}, len(have))
	for _, h := range have {
		covered[h.SeatID] = struct{}{}
	}
	var missing []uuid.UUID
	for _, id := range want {
		if _, ok := covered[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
