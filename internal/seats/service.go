package seats

import (
	"context"
	"sort"
	"time"

	"boxoffice/internal/shared/apperrors"
	"boxoffice/internal/shared/clock"
	"boxoffice/internal/shared/config"
	"boxoffice/internal/shared/constants"
	"boxoffice/internal/shared/database"
	"boxoffice/pkg/cache"
	"boxoffice/pkg/logger"

	"github.com/google/uuid"
)

type Service interface {
	SetCacheService(cacheService cache.Service)

	// Seat holds (lock manager)
	AcquireHolds(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, sessionID string) (*HoldResponse, error)
	ExtendHolds(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, sessionID string, ttl time.Duration) (*HoldResponse, error)
	ReleaseHolds(ctx context.Context, seatIDs []uuid.UUID, sessionID string) (*ReleaseResponse, error)
	CurrentHolds(ctx context.Context, sessionID string, eventID uuid.UUID) (*HoldResponse, error)

	// Public seat map
	SeatMap(ctx context.Context, eventID uuid.UUID) (*SeatMapResponse, error)
	InvalidateSeatMap(ctx context.Context, eventIDs ...uuid.UUID)

	// ReleaseOrphanLocks purges expired holds and returns LOCKED seats that no
	// live hold or active order covers to AVAILABLE.
	ReleaseOrphanLocks(ctx context.Context, limit int) (*OrphanReleaseResult, error)
}

type service struct {
	repo   Repository
	holds  HoldStore
	tx     database.Transactor
	clock  clock.Clock
	config *config.Config
	cache  cache.Service
	logger *logger.Logger
}

func NewService(repo Repository, holds HoldStore, tx database.Transactor, clk clock.Clock, cfg *config.Config) Service {
	return &service{
		repo:   repo,
		holds:  holds,
		tx:     tx,
		clock:  clk,
		config: cfg,
		logger: logger.GetDefault(),
	}
}

func (s *service) SetCacheService(cacheService cache.Service) {
	s.cache = cacheService
}

//  SEAT HOLDING

func (s *service) AcquireHolds(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, sessionID string) (*HoldResponse, error) {
	ids, err := s.validateBatch(seatIDs, sessionID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	expiresAt := now.Add(s.config.Booking.HoldTTL)

	var held []Seat
	wrote := false
	// Across retries: seats this call took fresh, and the session's earlier holds.
	fresh := make(map[uuid.UUID]struct{})
	prior := make(map[uuid.UUID]SeatHold)
	err = apperrors.Retry(ctx, func() error {
		return apperrors.Storage("acquire holds", s.tx.WithTx(ctx, func(ctx context.Context) error {
			if _, err := s.holds.PurgeExpired(ctx, now, ids...); err != nil {
				return err
			}

			seats, err := s.repo.LockSeats(ctx, eventID, ids)
			if err != nil {
				return err
			}
			bad := unavailableLabels(ids, seats)
			inOrder, err := s.repo.ActiveOrderSeats(ctx, ids)
			if err != nil {
				return err
			}
			bad = append(bad, labelsFor(without(inOrder, bad, seats), seats)...)
			if len(bad) > 0 {
				return apperrors.WithSeats(apperrors.CodeSeatUnavailable, "seats are not available", bad)
			}

			active, err := s.holds.Active(ctx, ids, now)
			if err != nil {
				return err
			}
			var foreign []uuid.UUID
			owned := make(map[uuid.UUID]struct{}, len(active))
			for _, h := range active {
				if h.SessionID != sessionID {
					foreign = append(foreign, h.SeatID)
					continue
				}
				owned[h.SeatID] = struct{}{}
				if _, ok := fresh[h.SeatID]; !ok {
					if _, seen := prior[h.SeatID]; !seen {
						prior[h.SeatID] = h
					}
				}
			}
			if len(foreign) > 0 {
				return apperrors.WithSeats(apperrors.CodeSeatContested, "seats are held by another buyer", labelsFor(foreign, seats))
			}

			holds := make([]SeatHold, 0, len(ids))
			for _, id := range ids {
				holds = append(holds, SeatHold{SeatID: id, EventID: eventID, SessionID: sessionID, ExpiresAt: expiresAt})
			}
			lost, err := s.holds.Acquire(ctx, holds, now)
			if err != nil {
				return err
			}
			if len(lost) > 0 {
				return apperrors.WithSeats(apperrors.CodeSeatContested, "seats are held by another buyer", labelsFor(lost, seats))
			}
			wrote = true
			for _, id := range ids {
				if _, ok := owned[id]; !ok {
					fresh[id] = struct{}{}
				}
			}

			if _, err := s.repo.SetStatus(ctx, ids, StatusLocked, StatusAvailable); err != nil {
				return err
			}
			held = seats
			return nil
		}))
	})
	if err != nil {
		if wrote && !s.holds.Transactional() {
			// The seat rows rolled back; undo the out-of-band hold writes too.
			s.compensateHolds(context.WithoutCancel(ctx), sessionID, fresh, prior, now)
		}
		return nil, err
	}

	s.InvalidateSeatMap(ctx, eventID)
	s.logger.LogHoldsAcquired(ctx, eventID.String(), sessionID, len(held), expiresAt)

	holds := make([]SeatHold, 0, len(held))
	for _, seat := range held {
		holds = append(holds, SeatHold{SeatID: seat.ID, EventID: eventID, SessionID: sessionID, ExpiresAt: expiresAt})
	}
	return buildHoldResponse(eventID, sessionID, held, holds, now), nil
}

func (s *service) ExtendHolds(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, sessionID string, ttl time.Duration) (*HoldResponse, error) {
	ids, err := s.validateBatch(seatIDs, sessionID)
	if err != nil {
		return nil, err
	}

	if ttl <= 0 {
		ttl = s.config.Booking.CheckoutTTL
	}
	if ceiling := s.config.Booking.CheckoutTTLMax; ceiling > 0 && ttl > ceiling {
		ttl = ceiling
	}

	now := s.clock.Now()
	until := now.Add(ttl)

	var seats []Seat
	err = apperrors.Retry(ctx, func() error {
		return apperrors.Storage("extend holds", s.tx.WithTx(ctx, func(ctx context.Context) error {
			var err error
			seats, err = s.repo.GetSeatsByIDs(ctx, ids)
			if err != nil {
				return err
			}

			active, err := s.holds.Active(ctx, ids, now)
			if err != nil {
				return err
			}
			owned := make([]SeatHold, 0, len(active))
			for _, h := range active {
				if h.SessionID == sessionID && h.EventID == eventID {
					owned = append(owned, h)
				}
			}
			if missing := missingSeats(ids, owned); len(missing) > 0 {
				return apperrors.WithSeats(apperrors.CodeNotHeldBySession, "seats are not held by this session", labelsFor(missing, seats))
			}

			notHeld, err := s.holds.Extend(ctx, ids, sessionID, now, until)
			if err != nil {
				return err
			}
			if len(notHeld) > 0 {
				return apperrors.WithSeats(apperrors.CodeNotHeldBySession, "seats are not held by this session", labelsFor(notHeld, seats))
			}
			return nil
		}))
	})
	if err != nil {
		return nil, err
	}

	holds := make([]SeatHold, 0, len(seats))
	for _, seat := range seats {
		holds = append(holds, SeatHold{SeatID: seat.ID, EventID: eventID, SessionID: sessionID, ExpiresAt: until})
	}
	return buildHoldResponse(eventID, sessionID, seats, holds, now), nil
}

func (s *service) ReleaseHolds(ctx context.Context, seatIDs []uuid.UUID, sessionID string) (*ReleaseResponse, error) {
	if sessionID == "" {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "session ID is required")
	}
	ids := uniqueIDs(seatIDs)
	resp := &ReleaseResponse{Released: []string{}}
	if len(ids) == 0 {
		return resp, nil
	}

	var released []uuid.UUID
	var seats []Seat
	err := apperrors.Retry(ctx, func() error {
		return apperrors.Storage("release holds", s.tx.WithTx(ctx, func(ctx context.Context) error {
			// Seats already in one of the session's orders stay with the order.
			inOrder, err := s.repo.ActiveOrderSeats(ctx, ids)
			if err != nil {
				return err
			}
			released, err = s.holds.Release(ctx, subtract(ids, inOrder), sessionID)
			if err != nil || len(released) == 0 {
				return err
			}
			if seats, err = s.repo.GetSeatsByIDs(ctx, released); err != nil {
				return err
			}
			_, err = s.repo.SetStatus(ctx, released, StatusAvailable, StatusLocked)
			return err
		}))
	})
	if err != nil {
		return nil, err
	}

	for _, id := range released {
		resp.Released = append(resp.Released, id.String())
	}
	resp.Count = len(released)

	if len(released) > 0 {
		s.InvalidateSeatMap(ctx, eventsOf(seats)...)
		s.logger.LogHoldsReleased(ctx, sessionID, len(released))
	}
	return resp, nil
}

func (s *service) CurrentHolds(ctx context.Context, sessionID string, eventID uuid.UUID) (*HoldResponse, error) {
	if sessionID == "" {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "session ID is required")
	}

	now := s.clock.Now()
	holds, err := s.holds.ListBySession(ctx, sessionID, eventID, now)
	if err != nil {
		return nil, apperrors.Storage("list holds", err)
	}
	if len(holds) == 0 {
		return buildHoldResponse(eventID, sessionID, nil, nil, now), nil
	}

	ids := make([]uuid.UUID, 0, len(holds))
	for _, h := range holds {
		ids = append(ids, h.SeatID)
	}
	seats, err := s.repo.GetSeatsByIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.Storage("get seats", err)
	}

	return buildHoldResponse(eventID, sessionID, seats, holds, now), nil
}

//  SEAT MAP

func seatMapKey(eventID uuid.UUID) string {
	return constants.BuildSeatMapKey(eventID)
}

func (s *service) SeatMap(ctx context.Context, eventID uuid.UUID) (*SeatMapResponse, error) {
	if s.cache == nil {
		return s.buildSeatMap(ctx, eventID)
	}

	var resp SeatMapResponse
	err := s.cache.GetOrSet(ctx, seatMapKey(eventID), s.config.Redis.SeatMapCacheTTL, func() (interface{}, error) {
		return s.buildSeatMap(ctx, eventID)
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *service) buildSeatMap(ctx context.Context, eventID uuid.UUID) (*SeatMapResponse, error) {
	now := s.clock.Now()

	seats, err := s.repo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, apperrors.Storage("list seats", err)
	}

	ids := make([]uuid.UUID, 0, len(seats))
	for _, seat := range seats {
		ids = append(ids, seat.ID)
	}
	active, err := s.holds.Active(ctx, ids, now)
	if err != nil {
		return nil, apperrors.Storage("list holds", err)
	}
	byseat := make(map[uuid.UUID]*SeatHold, len(active))
	for i := range active {
		byseat[active[i].SeatID] = &active[i]
	}

	resp := &SeatMapResponse{
		EventID:     eventID.String(),
		Seats:       make([]SeatMapEntry, 0, len(seats)),
		GeneratedAt: now,
	}
	for i := range seats {
		seat := &seats[i]
		status := EffectiveStatus(seat, byseat[seat.ID], now)
		if status == StatusAvailable {
			resp.Available++
		}
		resp.Seats = append(resp.Seats, SeatMapEntry{
			SeatID:    seat.ID.String(),
			Label:     seat.Label(),
			Section:   seat.Section,
			Row:       seat.Row,
			Number:    seat.Number,
			SeatClass: seat.SeatClass,
			Price:     seat.Price,
			Status:    status,
		})
	}
	return resp, nil
}

func (s *service) InvalidateSeatMap(ctx context.Context, eventIDs ...uuid.UUID) {
	if s.cache == nil || len(eventIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(eventIDs))
	for _, id := range eventIDs {
		keys = append(keys, seatMapKey(id))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.WarnContext(ctx, "Failed to invalidate seat map", "error", err.Error())
	}
}

//  STALE LOCK CLEANUP

func (s *service) ReleaseOrphanLocks(ctx context.Context, limit int) (*OrphanReleaseResult, error) {
	now := s.clock.Now()
	result := &OrphanReleaseResult{}

	purged, err := s.holds.PurgeExpired(ctx, now)
	if err != nil {
		return nil, apperrors.Storage("purge expired holds", err)
	}
	result.HoldsPurged = purged

	candidates, err := s.repo.ListOrphanLocked(ctx, limit)
	if err != nil {
		return nil, apperrors.Storage("list locked seats", err)
	}
	if len(candidates) == 0 {
		return result, nil
	}

	byEvent := make(map[uuid.UUID][]uuid.UUID)
	for _, seat := range candidates {
		byEvent[seat.EventID] = append(byEvent[seat.EventID], seat.ID)
	}

	var touched []uuid.UUID
	for eventID, ids := range byEvent {
		var released int64
		err := apperrors.Retry(ctx, func() error {
			return apperrors.Storage("release orphan locks", s.tx.WithTx(ctx, func(ctx context.Context) error {
				locked, err := s.repo.LockSeats(ctx, eventID, ids)
				if err != nil {
					return err
				}
				active, err := s.holds.Active(ctx, ids, now)
				if err != nil {
					return err
				}
				stale := make([]uuid.UUID, 0, len(locked))
				for _, seat := range locked {
					if seat.Status == StatusLocked && !holdCovers(active, seat.ID) {
						stale = append(stale, seat.ID)
					}
				}
				released, err = s.repo.SetStatus(ctx, stale, StatusAvailable, StatusLocked)
				return err
			}))
		})
		if err != nil {
			return result, err
		}
		if released > 0 {
			result.SeatsReleased += released
			touched = append(touched, eventID)
		}
	}

	s.InvalidateSeatMap(ctx, touched...)
	return result, nil
}

//  HELPERS

// compensateHolds releases the holds a failed acquire created and puts the
// session's earlier holds back to their previous expiry.
func (s *service) compensateHolds(ctx context.Context, sessionID string, fresh map[uuid.UUID]struct{}, prior map[uuid.UUID]SeatHold, now time.Time) {
	if len(fresh) > 0 {
		ids := make([]uuid.UUID, 0, len(fresh))
		for id := range fresh {
			ids = append(ids, id)
		}
		if _, err := s.holds.Release(ctx, ids, sessionID); err != nil {
			s.logger.ErrorWithContext(ctx, "Failed to compensate hold write", err, map[string]interface{}{"session_id": sessionID})
		}
	}

	for id, h := range prior {
		if _, err := s.holds.Extend(ctx, []uuid.UUID{id}, sessionID, now, h.ExpiresAt); err != nil {
			s.logger.ErrorWithContext(ctx, "Failed to restore hold expiry", err, map[string]interface{}{"session_id": sessionID})
		}
	}
}

func (s *service) validateBatch(seatIDs []uuid.UUID, sessionID string) ([]uuid.UUID, error) {
	if sessionID == "" {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "session ID is required")
	}
	ids := uniqueIDs(seatIDs)
	if len(ids) == 0 {
		return nil, apperrors.New(apperrors.CodeInvalidRequest, "at least one seat is required")
	}
	if limit := s.config.Booking.MaxSeatsPerRequest; len(ids) > limit {
		return nil, apperrors.Newf(apperrors.CodeTooManySeats, "requested %d seats, at most %d allowed per request", len(ids), limit)
	}
	return ids, nil
}

// unavailableLabels names requested seats that are missing from the event or
// in a status that cannot be held.
func unavailableLabels(requested []uuid.UUID, seats []Seat) []string {
	found := make(map[uuid.UUID]*Seat, len(seats))
	for i := range seats {
		found[seats[i].ID] = &seats[i]
	}
	var bad []string
	for _, id := range requested {
		seat, ok := found[id]
		switch {
		case !ok:
			bad = append(bad, id.String())
		case !seat.Status.Holdable():
			bad = append(bad, seat.Label())
		}
	}
	return bad
}

// labelsFor maps seat ids to labels, falling back to the id for unknown seats.
func labelsFor(ids []uuid.UUID, seats []Seat) []string {
	byID := make(map[uuid.UUID]string, len(seats))
	for i := range seats {
		byID[seats[i].ID] = seats[i].Label()
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if label, ok := byID[id]; ok {
			out = append(out, label)
		} else {
			out = append(out, id.String())
		}
	}
	return out
}

// without drops ids whose label is already listed in labels.
func without(ids []uuid.UUID, labels []string, seats []Seat) []uuid.UUID {
	listed := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		listed[l] = struct{}{}
	}
	var out []uuid.UUID
	for i, label := range labelsFor(ids, seats) {
		if _, ok := listed[label]; !ok {
			out = append(out, ids[i])
		}
	}
	return out
}

func subtract(ids, remove []uuid.UUID) []uuid.UUID {
	drop := make(map[uuid.UUID]struct{}, len(remove))
	for _, id := range remove {
		drop[id] = struct{}{}
	}
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := drop[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func holdCovers(holds []SeatHold, seatID uuid.UUID) bool {
	for _, h := range holds {
		if h.SeatID == seatID {
			return true
		}
	}
	return false
}

func eventsOf(seats []Seat) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	var out []uuid.UUID
	for _, seat := range seats {
		if _, ok := seen[seat.EventID]; !ok {
			seen[seat.EventID] = struct{}{}
			out = append(out, seat.EventID)
		}
	}
	return out
}

func buildHoldResponse(eventID uuid.UUID, sessionID string, seats []Seat, holds []SeatHold, now time.Time) *HoldResponse {
	bySeat := make(map[uuid.UUID]SeatHold, len(holds))
	for _, h := range holds {
		bySeat[h.SeatID] = h
	}

	resp := &HoldResponse{
		EventID:   eventID.String(),
		SessionID: sessionID,
		Seats:     make([]HeldSeatInfo, 0, len(seats)),
	}
	for _, seat := range seats {
		h, ok := bySeat[seat.ID]
		if !ok {
			continue
		}
		resp.Seats = append(resp.Seats, HeldSeatInfo{
			SeatID:    seat.ID.String(),
			Label:     seat.Label(),
			Section:   seat.Section,
			Row:       seat.Row,
			Number:    seat.Number,
			SeatClass: seat.SeatClass,
			Price:     seat.Price,
			ExpiresAt: h.ExpiresAt,
		})
		resp.TotalPrice += seat.Price
		if resp.ExpiresAt == nil || h.ExpiresAt.Before(*resp.ExpiresAt) {
			exp := h.ExpiresAt
			resp.ExpiresAt = &exp
		}
	}
	sort.Slice(resp.Seats, func(i, j int) bool {
		a, b := resp.Seats[i], resp.Seats[j]
		if a.Section != b.Section {
			return a.Section < b.Section
		}
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		if len(a.Number) != len(b.Number) {
			return len(a.Number) < len(b.Number)
		}
		return a.Number < b.Number
	})
	if resp.ExpiresAt != nil {
		resp.TTL = int(resp.ExpiresAt.Sub(now).Seconds())
	}
	return resp
}
