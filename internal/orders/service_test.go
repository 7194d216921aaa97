package orders_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"boxoffice/internal/events"
	"boxoffice/internal/notifications"
	"boxoffice/internal/orders"
	"boxoffice/internal/seats"
	"boxoffice/internal/shared/apperrors"
	"boxoffice/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var contact = orders.ContactInfo{Name: "Ada Lovelace", Email: "ada@example.com", Phone: "+44 20 7946 0000"}

func seatIDs(list []seats.Seat) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(list))
	for _, s := range list {
		out = append(out, s.ID)
	}
	return out
}

// heldOrder seeds A1 and A2, holds them for session and creates a pending order.
func heldOrder(t *testing.T, st *testutil.Stack, session string) (*orders.CreateOrderResponse, []seats.Seat) {
	t.Helper()
	ctx := context.Background()
	event, s := st.World.SeedEvent(st.Clock.Now(), 5000, "A1", "A2")

	_, err := st.Seats.AcquireHolds(ctx, event.ID, seatIDs(s), session)
	require.NoError(t, err)

	created, err := st.Orders.CreatePending(ctx, event.ID, seatIDs(s), session, "")
	require.NoError(t, err)
	return created, s
}

func TestCreatePending_SnapshotsHeldSeats(t *testing.T) {
	st := testutil.NewStack()
	created, s := heldOrder(t, st, "session-x")

	order := created.Order
	assert.Equal(t, orders.StatusPending, order.Status)
	assert.Equal(t, int64(10000), order.TotalAmount)
	assert.True(t, order.ExpiresAt.Equal(testutil.Epoch.Add(15*time.Minute)))
	assert.Regexp(t, `^BX-[A-HJ-NP-Z2-9]{8}$`, order.OrderNumber)
	assert.Len(t, created.AccessToken, 64)
	labels := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		labels = append(labels, item.Label)
	}
	assert.ElementsMatch(t, []string{"A1", "A2"}, labels)
	assert.Equal(t, "PENDING", order.Payment.Status)
	assert.Equal(t, "BANK_TRANSFER", order.Payment.Method)

	for _, seat := range s {
		assert.Equal(t, seats.StatusReserved, st.World.Seat(seat.ID).Status)
	}

	// Holds now live as long as the order.
	active, err := st.Holds.Active(context.Background(), seatIDs(s), testutil.Epoch.Add(14*time.Minute))
	require.NoError(t, err)
	assert.Len(t, active, 2)

	stored := st.World.OrderByNumber(order.OrderNumber)
	require.NotNil(t, stored)
	assert.NotEqual(t, created.AccessToken, stored.AccessTokenHash)
}

func TestCreatePending_RequiresTheSessionsOwnHolds(t *testing.T) {
	st := testutil.NewStack()
	ctx := context.Background()
	event, s := st.World.SeedEvent(st.Clock.Now(), 5000, "A1", "A2")

	_, err := st.Seats.AcquireHolds(ctx, event.ID, seatIDs(s[:1]), "session-x")
	require.NoError(t, err)

	_, err = st.Orders.CreatePending(ctx, event.ID, seatIDs(s), "session-x", "")
	assert.ErrorIs(t, err, apperrors.ErrSeatNotHeld)

	_, err = st.Orders.CreatePending(ctx, event.ID, seatIDs(s[:1]), "session-y", "")
	assert.ErrorIs(t, err, apperrors.ErrSeatNotHeld)

	// Nothing was reserved by the failed attempts.
	assert.Equal(t, seats.StatusLocked, st.World.Seat(s[0].ID).Status)
	assert.Equal(t, seats.StatusAvailable, st.World.Seat(s[1].ID).Status)
}

func TestCreatePending_ExpiredHoldIsNotEnough(t *testing.T) {
	st := testutil.NewStack()
	ctx := context.Background()
	event, s := st.World.SeedEvent(st.Clock.Now(), 5000, "A1")

	_, err := st.Seats.AcquireHolds(ctx, event.ID, seatIDs(s), "session-x")
	require.NoError(t, err)
	st.Clock.Advance(st.Config.Booking.HoldTTL)

	_, err = st.Orders.CreatePending(ctx, event.ID, seatIDs(s), "session-x", "")
	assert.ErrorIs(t, err, apperrors.ErrSeatNotHeld)
}

func TestCreatePending_EventMustBeOnSale(t *testing.T) {
	st := testutil.NewStack()
	ctx := context.Background()
	event, s := st.World.SeedEvent(st.Clock.Now(), 5000, "A1")

	_, err := st.Seats.AcquireHolds(ctx, event.ID, seatIDs(s), "session-x")
	require.NoError(t, err)
	st.World.SetEventStatus(event.ID, events.StatusClosed)

	_, err = st.Orders.CreatePending(ctx, event.ID, seatIDs(s), "session-x", "")
	assert.ErrorIs(t, err, apperrors.ErrEventNotBookable)
}

func TestCreatePending_ConcurrentOrdersOneWinner(t *testing.T) {
	st := testutil.NewStack()
	ctx := context.Background()
	event, s := st.World.SeedEvent(st.Clock.Now(), 5000, "A1")

	_, err := st.Seats.AcquireHolds(ctx, event.ID, seatIDs(s), "session-x")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = st.Orders.CreatePending(ctx, event.ID, seatIDs(s), "session-x", "")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, apperrors.ErrSeatNotHeld)
	}
	assert.Equal(t, 1, wins)
}

func TestCreatePending_SeatsOfALiveOrderCannotBeReleasedOrReheld(t *testing.T) {
	cfg := testutil.TestConfig()
	cfg.Booking.OrderSeatStatus = string(seats.StatusLocked)
	st := testutil.NewStackWithConfig(cfg)
	ctx := context.Background()

	created, s := heldOrder(t, st, "session-x")
	assert.Equal(t, seats.StatusLocked, st.World.Seat(s[0].ID).Status)

	released, err := st.Seats.ReleaseHolds(ctx, seatIDs(s), "session-x")
	require.NoError(t, err)
	assert.Zero(t, released.Count)

	// Even after every hold lapses the order still owns the seats.
	st.Clock.Advance(time.Hour)
	_, err = st.Seats.AcquireHolds(ctx, uuid.MustParse(created.Order.EventID), seatIDs(s), "session-y")
	assert.ErrorIs(t, err, apperrors.ErrSeatUnavailable)
}

func TestClaimPayment_MovesToPendingConfirmation(t *testing.T) {
	st := testutil.NewStack()
	ctx := context.Background()
	created, s := heldOrder(t, st, "session-x")
	st.Clock.Advance(5 * time.Minute)

	claimed, err := st.Orders.ClaimPayment(ctx, created.Order.OrderNumber, created.AccessToken, contact, "CARD_ON_DELIVERY")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPendingConfirmation, claimed.Status)
	require.NotNil(t, claimed.Contact)
	assert.Equal(t, "ada@example.com", claimed.Contact.Email)
	assert.Equal(t, "CARD_ON_DELIVERY", claimed.Payment.Method)
	assert.True(t, claimed.ExpiresAt.Equal(st.Clock.Now().Add(24*time.Hour)))

	// Holds follow the review window.
	active, err := st.Holds.Active(ctx, seatIDs(s), st.Clock.Now().Add(23*time.Hour))
	require.NoError(t, err)
	assert.Len(t, active, 2)

	_, err = st.Orders.ClaimPayment(ctx, created.Order.OrderNumber, created.AccessToken, contact, "")
	assert.ErrorIs(t, err, apperrors.ErrAlreadyPendingConfirmation)
}

func TestClaimPayment_Failures(t *testing.T) {
	st := testutil.NewStack()
	ctx := context.Background()
	created, _ := heldOrder(t, st, "session-x")
	number := created.Order.OrderNumber

	_, err := st.Orders.ClaimPayment(ctx, number, "not-the-token", contact, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)

	_, err = st.Orders.ClaimPayment(ctx, "BX-NOPE2345", created.AccessToken, contact, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)

	_, err = st.Orders.ClaimPayment(ctx, number, created.AccessToken, orders.ContactInfo{Name: "Ada", Email: "not-an-email"}, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)

	st.Clock.Advance(16 * time.Minute)
	_, err = st.Orders.ClaimPayment(ctx, number, created.AccessToken, contact, "")
	assert.ErrorIs(t, err, apperrors.ErrOrderExpired)
}

func TestClaimPayment_TerminalStatesAreReported(t *testing.T) {
	st := testutil.NewStack()
	ctx := context.Background()
	created, _ := heldOrder(t, st, "session-x")
	orderID := uuid.MustParse(created.Order.ID)

	_, err := st.Orders.Reject(ctx, orderID, "duplicate order", "admin@example.com")
	require.NoError(t, err)

	_, err = st.Orders.ClaimPayment(ctx, created.Order.OrderNumber, created.AccessToken, contact, "")
	assert.ErrorIs(t, err, apperrors.ErrOrderCancelled)
}

func TestLookup_RequiresToken(t *testing.T) {
	st := testutil.NewStack()
	ctx := context.Background()
	created, _ := heldOrder(t, st, "session-x")

	found, err := st.Orders.Lookup(ctx, created.Order.OrderNumber, created.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, created.Order.ID, found.ID)

	_, err = st.Orders.Lookup(ctx, created.Order.OrderNumber, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestReject_ReleasesSeatsAndNotifies(t *testing.T) {
	st := testutil.NewStack()
	ctx := context.Background()
	created, s := heldOrder(t, st, "session-x")
	orderID := uuid.MustParse(created.Order.ID)

	_, err := st.Orders.ClaimPayment(ctx, created.Order.OrderNumber, created.AccessToken, contact, "")
	require.NoError(t, err)

	rejected, err := st.Orders.Reject(ctx, orderID, "no funds received", "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, rejected.Status)
	assert.Equal(t, "no funds received", rejected.CancelReason)
	assert.Equal(t, "FAILED", rejected.Payment.Status)

	for _, seat := range s {
		assert.Equal(t, seats.StatusAvailable, st.World.Seat(seat.ID).Status)
	}
	active, err := st.Holds.Active(ctx, seatIDs(s), st.Clock.Now())
	require.NoError(t, err)
	assert.Empty(t, active)

	stored := st.World.Order(orderID)
	assert.Equal(t, "admin@example.com", stored.CancelledBy)
	for _, item := range stored.Items {
		assert.False(t, item.Active)
	}

	notices := st.Sink.Notifications(notifications.PurposeRejectionNotice)
	require.Len(t, notices, 1)
	assert.Equal(t, orderID, notices[0].OrderID)
	assert.Equal(t, "ada@example.com", notices[0].RecipientEmail)
	assert.Len(t, st.Sink.Audit("order.reject"), 1)

	// Released seats are sellable again.
	_, err = st.Seats.AcquireHolds(ctx, uuid.MustParse(created.Order.EventID), seatIDs(s), "session-y")
	require.NoError(t, err)
}

func TestReject_FromTerminalIsAnAnomaly(t *testing.T) {
	st := testutil.NewStack()
	ctx := context.Background()
	created, _ := heldOrder(t, st, "session-x")
	orderID := uuid.MustParse(created.Order.ID)

	_, err := st.Orders.Reject(ctx, orderID, "first", "admin@example.com")
	require.NoError(t, err)

	_, err = st.Orders.Reject(ctx, orderID, "second", "admin@example.com")
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	assert.Len(t, st.Sink.Audit("order.reject.anomaly"), 1)
	assert.Len(t, st.Sink.Notifications(notifications.PurposeRejectionNotice), 1)

	_, err = st.Orders.Reject(ctx, uuid.New(), "missing", "admin@example.com")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestExpire_IsIdempotentAndWaitsForTheDeadline(t *testing.T) {
	st := testutil.NewStack()
	ctx := context.Background()
	created, s := heldOrder(t, st, "session-x")
	orderID := uuid.MustParse(created.Order.ID)

	result, err := st.Orders.Expire(ctx, orderID, st.Clock.Now().Add(10*time.Minute))
	require.NoError(t, err)
	assert.False(t, result.Expired)

	later := st.Clock.Now().Add(16 * time.Minute)
	result, err = st.Orders.Expire(ctx, orderID, later)
	require.NoError(t, err)
	assert.True(t, result.Expired)
	assert.Equal(t, 2, result.SeatsReleased)

	stored := st.World.Order(orderID)
	assert.Equal(t, orders.StatusExpired, stored.Status)
	assert.Equal(t, orders.PaymentFailed, stored.Payment.Status)
	for _, seat := range s {
		assert.Equal(t, seats.StatusAvailable, st.World.Seat(seat.ID).Status)
	}

	result, err = st.Orders.Expire(ctx, orderID, later)
	require.NoError(t, err)
	assert.False(t, result.Expired)
	assert.Len(t, st.Sink.Notifications(notifications.PurposeOrderExpired), 1)
}

func TestExpire_RetriesStorageFaults(t *testing.T) {
	st := testutil.NewStack()
	ctx := context.Background()
	created, _ := heldOrder(t, st, "session-x")
	orderID := uuid.MustParse(created.Order.ID)

	st.World.FailNextTx(testutil.ErrStorage)
	result, err := st.Orders.Expire(ctx, orderID, st.Clock.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, result.Expired)
}

func TestDueForExpiry_HonoursReviewPolicy(t *testing.T) {
	cfg := testutil.TestConfig()
	cfg.Sweeper.IncludeAwaitingReview = false
	st := testutil.NewStackWithConfig(cfg)
	ctx := context.Background()

	created, _ := heldOrder(t, st, "session-x")
	_, err := st.Orders.ClaimPayment(ctx, created.Order.OrderNumber, created.AccessToken, contact, "")
	require.NoError(t, err)

	due, err := st.Orders.DueForExpiry(ctx, st.Clock.Now().Add(48*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestList_FiltersAndPaginates(t *testing.T) {
	st := testutil.NewStack()
	ctx := context.Background()
	first, _ := heldOrder(t, st, "session-x")
	st.Clock.Advance(time.Second)
	heldOrder(t, st, "session-y")

	_, err := st.Orders.Reject(ctx, uuid.MustParse(first.Order.ID), "test", "admin")
	require.NoError(t, err)

	all, err := st.Orders.List(ctx, orders.OrderListQuery{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), all.TotalCount)
	assert.Equal(t, 2, all.TotalPages)
	assert.Len(t, all.Orders, 1)

	cancelled, err := st.Orders.List(ctx, orders.OrderListQuery{Status: string(orders.StatusCancelled)})
	require.NoError(t, err)
	require.Len(t, cancelled.Orders, 1)
	assert.Equal(t, first.Order.ID, cancelled.Orders[0].ID)
}

func TestList_RejectsUnknownStatus(t *testing.T) {
	st := testutil.NewStack()

	_, err := st.Orders.List(context.Background(), orders.OrderListQuery{Status: "SHIPPED"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)
}
