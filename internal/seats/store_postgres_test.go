package seats_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"boxoffice/internal/orders"
	"boxoffice/internal/seats"
	"boxoffice/internal/shared/database"
	"boxoffice/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pgHolds(eventID uuid.UUID, session string, expiresAt time.Time, seatIDs ...uuid.UUID) []seats.SeatHold {
	out := make([]seats.SeatHold, 0, len(seatIDs))
	for _, id := range seatIDs {
		out = append(out, seats.SeatHold{SeatID: id, EventID: eventID, SessionID: session, ExpiresAt: expiresAt})
	}
	return out
}

func TestPostgresHoldStore_ConditionalWrite(t *testing.T) {
	db := testutil.OpenPostgres(t)
	store := seats.NewPostgresHoldStore(db)
	ctx := context.Background()
	now := testutil.Epoch
	eventID := uuid.New()
	a1, a2 := uuid.New(), uuid.New()

	lost, err := store.Acquire(ctx, pgHolds(eventID, "s1", now.Add(10*time.Minute), a1), now)
	require.NoError(t, err)
	assert.Empty(t, lost)

	// s2 loses a1, so a2 must not be written either
	lost, err = store.Acquire(ctx, pgHolds(eventID, "s2", now.Add(10*time.Minute), a1, a2), now)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a1}, lost)
	active, err := store.Active(ctx, []uuid.UUID{a2}, now)
	require.NoError(t, err)
	assert.Empty(t, active)

	// Once s1's hold lapses s2 may take the seat
	later := now.Add(11 * time.Minute)
	lost, err = store.Acquire(ctx, pgHolds(eventID, "s2", later.Add(10*time.Minute), a1, a2), later)
	require.NoError(t, err)
	assert.Empty(t, lost)

	held, err := store.ListBySession(ctx, "s2", eventID, later)
	require.NoError(t, err)
	assert.Len(t, held, 2)

	notHeld, err := store.Extend(ctx, []uuid.UUID{a1, a2}, "s1", later, later.Add(15*time.Minute))
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{a1, a2}, notHeld)

	released, err := store.Release(ctx, []uuid.UUID{a1, a2}, "s1")
	require.NoError(t, err)
	assert.Empty(t, released)

	released, err = store.Release(ctx, []uuid.UUID{a1}, "s2")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a1}, released)
}

func TestPostgresHoldStore_ConcurrentAcquireHasOneWinner(t *testing.T) {
	db := testutil.OpenPostgres(t)
	store := seats.NewPostgresHoldStore(db)
	now := testutil.Epoch
	eventID, seatID := uuid.New(), uuid.New()

	const contenders = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			lost, err := store.Acquire(context.Background(),
				pgHolds(eventID, fmt.Sprintf("session-%d", i), now.Add(10*time.Minute), seatID), now)
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			if len(lost) == 0 {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestPostgresHoldStore_RolledBackWithUnitOfWork(t *testing.T) {
	db := testutil.OpenPostgres(t)
	store := seats.NewPostgresHoldStore(db)
	uow := database.NewUnitOfWork(db, 5*time.Second)
	now := testutil.Epoch
	seatID := uuid.New()
	boom := errors.New("boom")

	err := uow.WithTx(context.Background(), func(ctx context.Context) error {
		lost, err := store.Acquire(ctx, pgHolds(uuid.New(), "s1", now.Add(time.Minute), seatID), now)
		require.NoError(t, err)
		require.Empty(t, lost)
		return boom
	})
	require.ErrorIs(t, err, boom)

	active, err := store.Active(context.Background(), []uuid.UUID{seatID}, now)
	require.NoError(t, err)
	assert.Empty(t, active)
	assert.True(t, store.Transactional())
}

func TestPostgresHoldStore_PurgeExpired(t *testing.T) {
	db := testutil.OpenPostgres(t)
	store := seats.NewPostgresHoldStore(db)
	ctx := context.Background()
	now := testutil.Epoch
	eventID := uuid.New()
	stale, live := uuid.New(), uuid.New()

	_, err := store.Acquire(ctx, pgHolds(eventID, "s1", now.Add(time.Minute), stale), now)
	require.NoError(t, err)
	_, err = store.Acquire(ctx, pgHolds(eventID, "s1", now.Add(time.Hour), live), now)
	require.NoError(t, err)

	purged, err := store.PurgeExpired(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	active, err := store.Active(ctx, []uuid.UUID{stale, live}, now)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, live, active[0].SeatID)
}

func TestPostgresSeatRepository_StatusAndOrphans(t *testing.T) {
	db := testutil.OpenPostgres(t)
	repo := seats.NewRepository(db)
	ctx := context.Background()
	eventID := uuid.New()

	list := []seats.Seat{
		{EventID: eventID, Section: "MAIN", Row: "A", Number: "1", Price: 5000, Status: seats.StatusAvailable},
		{EventID: eventID, Section: "MAIN", Row: "A", Number: "2", Price: 5000, Status: seats.StatusAvailable},
		{EventID: eventID, Section: "MAIN", Row: "A", Number: "3", Price: 5000, Status: seats.StatusSold},
	}
	require.NoError(t, repo.CreateSeats(ctx, list))
	a1, a2, a3 := list[0], list[1], list[2]

	changed, err := repo.SetStatus(ctx, []uuid.UUID{a1.ID, a2.ID, a3.ID}, seats.StatusLocked, seats.StatusAvailable)
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed)

	locked, err := repo.LockSeats(ctx, eventID, []uuid.UUID{a3.ID, a1.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, locked, 2)
	assert.Equal(t, seats.StatusSold, byID(locked, a3.ID).Status)
	assert.Equal(t, seats.StatusLocked, byID(locked, a1.ID).Status)

	// a2 sits in a live order, so only a1 is an orphan
	item := orders.OrderItem{ID: uuid.New(), OrderID: uuid.New(), SeatID: a2.ID, Row: "A", Number: "2", Price: 5000, Active: true}
	require.NoError(t, db.Create(&item).Error)

	orphans, err := repo.ListOrphanLocked(ctx, 10)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, a1.ID, orphans[0].ID)

	inOrder, err := repo.ActiveOrderSeats(ctx, []uuid.UUID{a1.ID, a2.ID})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a2.ID}, inOrder)
}

func byID(list []seats.Seat, id uuid.UUID) seats.Seat {
	for _, s := range list {
		if s.ID == id {
			return s
		}
	}
	return seats.Seat{}
}
