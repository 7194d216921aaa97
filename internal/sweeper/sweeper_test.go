package sweeper_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"boxoffice/internal/orders"
	"boxoffice/internal/seats"
	"boxoffice/internal/sweeper"
	"boxoffice/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweep_ExpiresOverdueOrders(t *testing.T) {
	st := testutil.NewStack()
	ctx := context.Background()
	event, s := st.World.SeedEvent(st.Clock.Now(), 5000, "A1", "A2")
	ids := []uuid.UUID{s[0].ID, s[1].ID}

	_, err := st.Seats.AcquireHolds(ctx, event.ID, ids, "session-x")
	require.NoError(t, err)
	created, err := st.Orders.CreatePending(ctx, event.ID, ids, "session-x", "")
	require.NoError(t, err)
	orderID := uuid.MustParse(created.Order.ID)

	result, err := st.Sweeper.Sweep(ctx, st.Clock.Now().Add(10*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, result.Found)
	assert.Equal(t, orders.StatusPending, st.World.Order(orderID).Status)

	st.Clock.Advance(16 * time.Minute)
	result, err = st.Sweeper.Sweep(ctx, st.Clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Found)
	assert.Equal(t, 1, result.Succeeded)
	assert.Zero(t, result.Failed)
	assert.Equal(t, int64(2), result.SeatsReleased)

	assert.Equal(t, orders.StatusExpired, st.World.Order(orderID).Status)
	for _, id := range ids {
		assert.Equal(t, seats.StatusAvailable, st.World.Seat(id).Status)
	}
	active, err := st.Holds.Active(ctx, ids, st.Clock.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, active)

	// A second pass finds nothing left to do.
	result, err = st.Sweeper.Sweep(ctx, st.Clock.Now())
	require.NoError(t, err)
	assert.Zero(t, result.Found)
}

func TestSweep_ReclaimsOrphanedLocks(t *testing.T) {
	st := testutil.NewStack()
	ctx := context.Background()
	event, s := st.World.SeedEvent(st.Clock.Now(), 5000, "C1")

	_, err := st.Seats.AcquireHolds(ctx, event.ID, []uuid.UUID{s[0].ID}, "session-x")
	require.NoError(t, err)
	st.Clock.Advance(time.Hour)

	result, err := st.Sweeper.Sweep(ctx, st.Clock.Now())
	require.NoError(t, err)
	assert.Zero(t, result.Found)
	assert.Equal(t, int64(1), result.HoldsReleased)
	assert.Equal(t, int64(1), result.SeatsReleased)
	assert.Equal(t, seats.StatusAvailable, st.World.Seat(s[0].ID).Status)
}

type fakeExpirer struct {
	due     []uuid.UUID
	failing map[uuid.UUID]bool
	expired []uuid.UUID
	limit   int
}

func (f *fakeExpirer) DueForExpiry(_ context.Context, _ time.Time, limit int) ([]uuid.UUID, error) {
	f.limit = limit
	return f.due, nil
}

func (f *fakeExpirer) Expire(_ context.Context, orderID uuid.UUID, _ time.Time) (*orders.ExpireResult, error) {
	if f.failing[orderID] {
		return nil, errors.New("deadlock detected")
	}
	f.expired = append(f.expired, orderID)
	return &orders.ExpireResult{Expired: true, SeatsReleased: 1}, nil
}

func TestSweep_OneFailureDoesNotStopTheBatch(t *testing.T) {
	bad := uuid.New()
	fake := &fakeExpirer{
		due:     []uuid.UUID{uuid.New(), bad, uuid.New()},
		failing: map[uuid.UUID]bool{bad: true},
	}

	result, err := sweeper.New(fake, nil, 0).Sweep(context.Background(), testutil.Epoch)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Found)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, int64(2), result.SeatsReleased)
	assert.Len(t, fake.expired, 2)
	assert.Equal(t, 100, fake.limit)
}

func TestSweep_CancelledContextCountsRemainingAsFailed(t *testing.T) {
	fake := &fakeExpirer{due: []uuid.UUID{uuid.New(), uuid.New()}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := sweeper.New(fake, nil, 10).Sweep(ctx, testutil.Epoch)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Failed)
	assert.Empty(t, fake.expired)
}

func TestJobProcessor_RunsOnStartupAndStops(t *testing.T) {
	st := testutil.NewStack()
	ctx := context.Background()
	event, s := st.World.SeedEvent(st.Clock.Now(), 5000, "D1")
	ids := []uuid.UUID{s[0].ID}

	_, err := st.Seats.AcquireHolds(ctx, event.ID, ids, "session-x")
	require.NoError(t, err)
	created, err := st.Orders.CreatePending(ctx, event.ID, ids, "session-x", "")
	require.NoError(t, err)
	st.Clock.Advance(time.Hour)

	jp := sweeper.NewJobProcessor(st.Sweeper, st.Clock, &sweeper.JobConfig{Interval: time.Hour, RunOnStartup: true})
	jp.Start(ctx)

	orderID := uuid.MustParse(created.Order.ID)
	assert.Eventually(t, func() bool {
		return st.World.Order(orderID).Status == orders.StatusExpired
	}, 2*time.Second, 10*time.Millisecond)

	jp.Stop()
	jp.Stop()
	assert.Equal(t, "stopped", jp.GetJobStatus()["status"])
}

func TestSweepRoute_RequiresSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := testutil.NewStack()
	router := gin.New()
	sweeper.SetupSweepRoutes(router, sweeper.NewController(st.Sweeper, st.Clock), st.Config.Sweeper.Secret)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/internal/sweep", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/internal/sweep", nil)
	req.Header.Set("X-Sweep-Secret", st.Config.Sweeper.Secret)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status string         `json:"status"`
		Data   sweeper.Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "success", body.Status)
	assert.Zero(t, body.Data.Found)
}
