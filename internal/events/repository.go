package events

import (
	"context"

	"boxoffice/internal/shared/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*Event, error)
	// GetForShare reads the event under a shared row lock so a concurrent status
	// change waits for the surrounding unit of work.
	GetForShare(ctx context.Context, id uuid.UUID) (*Event, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, event *Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	return database.Conn(ctx, r.db).Create(event).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	var event Event
	if err := database.Conn(ctx, r.db).Where("id = ?", id).First(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repository) GetForShare(ctx context.Context, id uuid.UUID) (*Event, error) {
	var event Event
	err := database.Conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "SHARE"}).
		Where("id = ?", id).
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}
