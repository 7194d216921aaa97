package seats

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryHoldStore keeps holds in process memory. It is only correct for a
// single-instance deployment and for tests.
type MemoryHoldStore struct {
	mu    sync.Mutex
	holds map[uuid.UUID]SeatHold
}

func NewMemoryHoldStore() *MemoryHoldStore {
	return &MemoryHoldStore{holds: make(map[uuid.UUID]SeatHold)}
}

func (s *MemoryHoldStore) Transactional() bool { return false }

func (s *MemoryHoldStore) Acquire(_ context.Context, holds []SeatHold, now time.Time) ([]uuid.UUID, error) {
	holds = uniqueHolds(holds)

	s.mu.Lock()
	defer s.mu.Unlock()

	var lost []uuid.UUID
	for _, h := range holds {
		if cur, ok := s.holds[h.SeatID]; ok && cur.Live(now) && cur.SessionID != h.SessionID {
			lost = append(lost, h.SeatID)
		}
	}
	if len(lost) > 0 {
		return lost, nil
	}

	for _, h := range holds {
		h.CreatedAt = now
		if cur, ok := s.holds[h.SeatID]; ok && cur.SessionID == h.SessionID {
			h.CreatedAt = cur.CreatedAt
		}
		h.UpdatedAt = now
		s.holds[h.SeatID] = h
	}
	return nil, nil
}

func (s *MemoryHoldStore) Active(_ context.Context, seatIDs []uuid.UUID, now time.Time) ([]SeatHold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []SeatHold
	for _, id := range uniqueIDs(seatIDs) {
		if h, ok := s.holds[id]; ok && h.Live(now) {
			out = append(out, h)
		}
	}
	sortHolds(out)
	return out, nil
}

func (s *MemoryHoldStore) Extend(_ context.Context, seatIDs []uuid.UUID, sessionID string, now, until time.Time) ([]uuid.UUID, error) {
	seatIDs = uniqueIDs(seatIDs)

	s.mu.Lock()
	defer s.mu.Unlock()

	var notHeld []uuid.UUID
	for _, id := range seatIDs {
		h, ok := s.holds[id]
		if !ok || !h.Live(now) || h.SessionID != sessionID {
			notHeld = append(notHeld, id)
		}
	}
	if len(notHeld) > 0 {
		return notHeld, nil
	}

	for _, id := range seatIDs {
		h := s.holds[id]
		h.ExpiresAt = until
		h.UpdatedAt = now
		s.holds[id] = h
	}
	return nil, nil
}

func (s *MemoryHoldStore) Release(_ context.Context, seatIDs []uuid.UUID, sessionID string) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var released []uuid.UUID
	for _, id := range uniqueIDs(seatIDs) {
		if h, ok := s.holds[id]; ok && h.SessionID == sessionID {
			delete(s.holds, id)
			released = append(released, id)
		}
	}
	return released, nil
}

func (s *MemoryHoldStore) ReleaseSeats(_ context.Context, seatIDs []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range seatIDs {
		delete(s.holds, id)
	}
	return nil
}

func (s *MemoryHoldStore) ExtendSeats(_ context.Context, seatIDs []uuid.UUID, now, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range seatIDs {
		if h, ok := s.holds[id]; ok {
			h.ExpiresAt = until
			h.UpdatedAt = now
			s.holds[id] = h
		}
	}
	return nil
}

func (s *MemoryHoldStore) ListBySession(_ context.Context, sessionID string, eventID uuid.UUID, now time.Time) ([]SeatHold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []SeatHold
	for _, h := range s.holds {
		if h.SessionID == sessionID && h.EventID == eventID && h.Live(now) {
			out = append(out, h)
		}
	}
	sortHolds(out)
	return out, nil
}

func (s *MemoryHoldStore) PurgeExpired(_ context.Context, now time.Time, seatIDs ...uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	purge := func(id uuid.UUID) {
		if h, ok := s.holds[id]; ok && !h.Live(now) {
			delete(s.holds, id)
			purged++
		}
	}

	if len(seatIDs) > 0 {
		for _, id := range seatIDs {
			purge(id)
		}
		return purged, nil
	}
	for id := range s.holds {
		purge(id)
	}
	return purged, nil
}

func sortHolds(holds []SeatHold) {
	sort.Slice(holds, func(i, j int) bool {
		return holds[i].SeatID.String() < holds[j].SeatID.String()
	})
}
