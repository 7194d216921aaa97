package seats

import (
	"context"

	"boxoffice/internal/shared/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	CreateSeats(ctx context.Context, seats []Seat) error
	GetSeatsByIDs(ctx context.Context, seatIDs []uuid.UUID) ([]Seat, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]Seat, error)

	// LockSeats row-locks the event's seats in id order so concurrent units of
	// work touching overlapping seats queue instead of deadlocking.
	LockSeats(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID) ([]Seat, error)
	// SetStatus moves seats to status. When from is given only seats currently in
	// one of those statuses change. It returns the number of rows changed.
	SetStatus(ctx context.Context, seatIDs []uuid.UUID, status SeatStatus, from ...SeatStatus) (int64, error)
	// ListOrphanLocked returns LOCKED seats no active order line references.
	ListOrphanLocked(ctx context.Context, limit int) ([]Seat, error)
	// ActiveOrderSeats returns the subset of seatIDs referenced by a live order.
	ActiveOrderSeats(ctx context.Context, seatIDs []uuid.UUID) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateSeats(ctx context.Context, seats []Seat) error {
	for i := range seats {
		if seats[i].ID == uuid.Nil {
			seats[i].ID = uuid.New()
		}
	}
	return database.Conn(ctx, r.db).CreateInBatches(&seats, 200).Error
}

func (r *repository) GetSeatsByIDs(ctx context.Context, seatIDs []uuid.UUID) ([]Seat, error) {
	var seats []Seat
	err := database.Conn(ctx, r.db).
		Where("id IN ?", seatIDs).
		Order("id").
		Find(&seats).Error
	return seats, err
}

func (r *repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]Seat, error) {
	var seats []Seat
	err := database.Conn(ctx, r.db).
		Where("event_id = ? AND status <> ?", eventID, StatusRemoved).
		Order("section ASC, row ASC, number ASC").
		Find(&seats).Error
	return seats, err
}

func (r *repository) LockSeats(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID) ([]Seat, error) {
	var seats []Seat
	err := database.Conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("event_id = ? AND id IN ?", eventID, seatIDs).
		Order("id").
		Find(&seats).Error
	return seats, err
}

func (r *repository) SetStatus(ctx context.Context, seatIDs []uuid.UUID, status SeatStatus, from ...SeatStatus) (int64, error) {
	if len(seatIDs) == 0 {
		return 0, nil
	}
	q := database.Conn(ctx, r.db).Model(&Seat{}).Where("id IN ?", seatIDs)
	if len(from) > 0 {
		q = q.Where("status IN ?", from)
	}
	res := q.Update("status", status)
	return res.RowsAffected, res.Error
}

func (r *repository) ListOrphanLocked(ctx context.Context, limit int) ([]Seat, error) {
	var seats []Seat
	q := database.Conn(ctx, r.db).
		Where("status = ?", StatusLocked).
		Where("NOT EXISTS (SELECT 1 FROM order_items oi WHERE oi.seat_id = seats.id AND oi.active)").
		Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&seats).Error
	return seats, err
}

func (r *repository) ActiveOrderSeats(ctx context.Context, seatIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	var ids []string
	err := database.Conn(ctx, r.db).
		Table("order_items").
		Where("seat_id IN ? AND active", seatIDs).
		Pluck("seat_id", &ids).Error
	if err != nil {
		return nil, err
	}

	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, err
		}
		out = append(out, parsed)
	}
	return out, nil
}
