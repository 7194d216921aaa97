package seats

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var storeEpoch = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

// holdStores returns a fresh instance of every non-relational store.
func holdStores(t *testing.T) map[string]HoldStore {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return map[string]HoldStore{
		HoldStoreMemory: NewMemoryHoldStore(),
		HoldStoreRedis:  NewRedisHoldStore(rdb),
	}
}

func holdsFor(eventID uuid.UUID, session string, expiresAt time.Time, seatIDs ...uuid.UUID) []SeatHold {
	out := make([]SeatHold, 0, len(seatIDs))
	for _, id := range seatIDs {
		out = append(out, SeatHold{SeatID: id, EventID: eventID, SessionID: session, ExpiresAt: expiresAt})
	}
	return out
}

func TestHoldStore_AcquireIsAllOrNothing(t *testing.T) {
	for name, store := range holdStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			event := uuid.New()
			a1, a2, a3 := uuid.New(), uuid.New(), uuid.New()
			until := storeEpoch.Add(10 * time.Minute)

			lost, err := store.Acquire(ctx, holdsFor(event, "x", until, a1, a2), storeEpoch)
			require.NoError(t, err)
			assert.Empty(t, lost)

			lost, err = store.Acquire(ctx, holdsFor(event, "y", until, a2, a3), storeEpoch)
			require.NoError(t, err)
			assert.Equal(t, []uuid.UUID{a2}, lost)

			// a3 must not have been written for y.
			active, err := store.Active(ctx, []uuid.UUID{a1, a2, a3}, storeEpoch)
			require.NoError(t, err)
			require.Len(t, active, 2)
			for _, h := range active {
				assert.Equal(t, "x", h.SessionID)
				assert.NotEqual(t, a3, h.SeatID)
			}
		})
	}
}

func TestHoldStore_ExpiredHoldsAreInvisibleAndReclaimable(t *testing.T) {
	for name, store := range holdStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			event := uuid.New()
			seat := uuid.New()

			_, err := store.Acquire(ctx, holdsFor(event, "x", storeEpoch.Add(time.Minute), seat), storeEpoch)
			require.NoError(t, err)

			later := storeEpoch.Add(2 * time.Minute)
			active, err := store.Active(ctx, []uuid.UUID{seat}, later)
			require.NoError(t, err)
			assert.Empty(t, active)

			listed, err := store.ListBySession(ctx, "x", event, later)
			require.NoError(t, err)
			assert.Empty(t, listed)

			lost, err := store.Acquire(ctx, holdsFor(event, "y", later.Add(10*time.Minute), seat), later)
			require.NoError(t, err)
			assert.Empty(t, lost)

			active, err = store.Active(ctx, []uuid.UUID{seat}, later)
			require.NoError(t, err)
			require.Len(t, active, 1)
			assert.Equal(t, "y", active[0].SessionID)
		})
	}
}

func TestHoldStore_SameSessionReacquireRefreshesExpiry(t *testing.T) {
	for name, store := range holdStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			event := uuid.New()
			seat := uuid.New()

			_, err := store.Acquire(ctx, holdsFor(event, "x", storeEpoch.Add(time.Minute), seat), storeEpoch)
			require.NoError(t, err)
			lost, err := store.Acquire(ctx, holdsFor(event, "x", storeEpoch.Add(5*time.Minute), seat), storeEpoch)
			require.NoError(t, err)
			assert.Empty(t, lost)

			active, err := store.Active(ctx, []uuid.UUID{seat}, storeEpoch.Add(3*time.Minute))
			require.NoError(t, err)
			require.Len(t, active, 1)
			assert.True(t, active[0].ExpiresAt.Equal(storeEpoch.Add(5*time.Minute)))
		})
	}
}

func TestHoldStore_ExtendRequiresOwnership(t *testing.T) {
	for name, store := range holdStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			event := uuid.New()
			mine, theirs := uuid.New(), uuid.New()
			until := storeEpoch.Add(10 * time.Minute)

			_, err := store.Acquire(ctx, holdsFor(event, "x", until, mine), storeEpoch)
			require.NoError(t, err)
			_, err = store.Acquire(ctx, holdsFor(event, "y", until, theirs), storeEpoch)
			require.NoError(t, err)

			notHeld, err := store.Extend(ctx, []uuid.UUID{mine, theirs}, "x", storeEpoch, storeEpoch.Add(time.Hour))
			require.NoError(t, err)
			assert.Equal(t, []uuid.UUID{theirs}, notHeld)

			// Nothing moved.
			active, err := store.Active(ctx, []uuid.UUID{mine}, storeEpoch)
			require.NoError(t, err)
			require.Len(t, active, 1)
			assert.True(t, active[0].ExpiresAt.Equal(until))

			notHeld, err = store.Extend(ctx, []uuid.UUID{mine}, "x", storeEpoch, storeEpoch.Add(time.Hour))
			require.NoError(t, err)
			assert.Empty(t, notHeld)
		})
	}
}

func TestHoldStore_ReleaseIgnoresForeignHolds(t *testing.T) {
	for name, store := range holdStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			event := uuid.New()
			mine, theirs, never := uuid.New(), uuid.New(), uuid.New()
			until := storeEpoch.Add(10 * time.Minute)

			_, err := store.Acquire(ctx, holdsFor(event, "x", until, mine), storeEpoch)
			require.NoError(t, err)
			_, err = store.Acquire(ctx, holdsFor(event, "y", until, theirs), storeEpoch)
			require.NoError(t, err)

			released, err := store.Release(ctx, []uuid.UUID{mine, theirs, never}, "x")
			require.NoError(t, err)
			assert.Equal(t, []uuid.UUID{mine}, released)

			active, err := store.Active(ctx, []uuid.UUID{mine, theirs}, storeEpoch)
			require.NoError(t, err)
			require.Len(t, active, 1)
			assert.Equal(t, theirs, active[0].SeatID)
		})
	}
}

func TestHoldStore_UnconditionalSeatOperations(t *testing.T) {
	for name, store := range holdStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			event := uuid.New()
			a, b := uuid.New(), uuid.New()

			_, err := store.Acquire(ctx, holdsFor(event, "x", storeEpoch.Add(time.Minute), a, b), storeEpoch)
			require.NoError(t, err)

			require.NoError(t, store.ExtendSeats(ctx, []uuid.UUID{a}, storeEpoch, storeEpoch.Add(24*time.Hour)))
			active, err := store.Active(ctx, []uuid.UUID{a, b}, storeEpoch.Add(time.Hour))
			require.NoError(t, err)
			require.Len(t, active, 1)
			assert.Equal(t, a, active[0].SeatID)

			require.NoError(t, store.ReleaseSeats(ctx, []uuid.UUID{a}))
			active, err = store.Active(ctx, []uuid.UUID{a}, storeEpoch)
			require.NoError(t, err)
			assert.Empty(t, active)
		})
	}
}

func TestHoldStore_PurgeExpired(t *testing.T) {
	for name, store := range holdStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			event := uuid.New()
			stale, fresh := uuid.New(), uuid.New()

			_, err := store.Acquire(ctx, holdsFor(event, "x", storeEpoch.Add(time.Minute), stale), storeEpoch)
			require.NoError(t, err)
			_, err = store.Acquire(ctx, holdsFor(event, "y", storeEpoch.Add(time.Hour), fresh), storeEpoch)
			require.NoError(t, err)

			purged, err := store.PurgeExpired(ctx, storeEpoch.Add(2*time.Minute))
			require.NoError(t, err)
			assert.Equal(t, int64(1), purged)

			listed, err := store.ListBySession(ctx, "y", event, storeEpoch.Add(2*time.Minute))
			require.NoError(t, err)
			require.Len(t, listed, 1)
			assert.Equal(t, fresh, listed[0].SeatID)
		})
	}
}

func TestNewHoldStore(t *testing.T) {
	store, err := NewHoldStore(HoldStoreMemory, nil, nil)
	require.NoError(t, err)
	assert.False(t, store.Transactional())

	_, err = NewHoldStore(HoldStoreRedis, nil, nil)
	assert.Error(t, err)

	_, err = NewHoldStore("etcd", nil, nil)
	assert.Error(t, err)
}
