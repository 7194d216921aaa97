package events

import (
	"context"
	"errors"

	"boxoffice/internal/shared/apperrors"
	"boxoffice/internal/shared/clock"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Service interface {
	GetEvent(ctx context.Context, id string) (*EventResponse, error)
}

type service struct {
	repo  Repository
	clock clock.Clock
}

func NewService(repo Repository, clk clock.Clock) Service {
	return &service{repo: repo, clock: clk}
}

func (s *service) GetEvent(ctx context.Context, id string) (*EventResponse, error) {
	eventID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "invalid event ID")
	}

	event, err := s.repo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "event not found")
		}
		return nil, apperrors.Storage("get event", err)
	}

	resp := event.ToResponse(s.clock.Now())
	return &resp, nil
}
