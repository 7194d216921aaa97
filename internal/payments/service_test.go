package payments_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"boxoffice/internal/notifications"
	"boxoffice/internal/orders"
	"boxoffice/internal/payments"
	"boxoffice/internal/seats"
	"boxoffice/internal/shared/apperrors"
	"boxoffice/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var contact = orders.ContactInfo{Name: "Grace Hopper", Email: "grace@example.com"}

type claimedOrder struct {
	id     uuid.UUID
	number string
	seats  []uuid.UUID
}

// claimed walks an order through hold, create and claim.
func claimed(t *testing.T, st *testutil.Stack) claimedOrder {
	t.Helper()
	ctx := context.Background()
	event, s := st.World.SeedEvent(st.Clock.Now(), 4500, "A1", "A2")
	ids := []uuid.UUID{s[0].ID, s[1].ID}

	_, err := st.Seats.AcquireHolds(ctx, event.ID, ids, "session-x")
	require.NoError(t, err)
	created, err := st.Orders.CreatePending(ctx, event.ID, ids, "session-x", "")
	require.NoError(t, err)
	_, err = st.Orders.ClaimPayment(ctx, created.Order.OrderNumber, created.AccessToken, contact, "")
	require.NoError(t, err)

	return claimedOrder{id: uuid.MustParse(created.Order.ID), number: created.Order.OrderNumber, seats: ids}
}

func adminEvidence(txID string) payments.Evidence {
	return payments.Evidence{Source: payments.SourceAdmin, TransactionID: txID}
}

func amount(v int64) *int64 { return &v }

func TestConfirm_PaysOnceAndReplaysAfter(t *testing.T) {
	st := testutil.NewStack()
	ctx := context.Background()
	o := claimed(t, st)

	first, err := st.Payments.Confirm(ctx, o.id, adminEvidence("TX-1001"), "admin@example.com")
	require.NoError(t, err)
	assert.False(t, first.Replayed)
	assert.Equal(t, orders.StatusPaid, first.Order.Status)
	require.NotNil(t, first.Order.Payment)
	assert.Equal(t, "COMPLETED", first.Order.Payment.Status)
	assert.Equal(t, "TX-1001", first.Order.Payment.TransactionID)

	for _, id := range o.seats {
		assert.Equal(t, seats.StatusSold, st.World.Seat(id).Status)
	}
	active, err := st.Holds.Active(ctx, o.seats, st.Clock.Now())
	require.NoError(t, err)
	assert.Empty(t, active)

	second, err := st.Payments.Confirm(ctx, o.id, adminEvidence("TX-1001"), "admin@example.com")
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, orders.StatusPaid, second.Order.Status)
	assert.Equal(t, first.Order.ID, second.Order.ID)

	paid := st.Sink.Notifications(notifications.PurposeOrderPaid)
	require.Len(t, paid, 1)
	assert.Equal(t, "grace@example.com", paid[0].RecipientEmail)
	assert.Equal(t, int64(9000), paid[0].Amount)
	assert.Contains(t, paid[0].TicketURL, o.number)
	assert.Len(t, st.Sink.Audit("payment.confirm"), 1)
}

func TestConfirm_ConcurrentCallersNotifyOnce(t *testing.T) {
	st := testutil.NewStack()
	o := claimed(t, st)

	var wg sync.WaitGroup
	results := make([]*payments.Result, 6)
	errs := make([]error, len(results))
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = st.Payments.Confirm(context.Background(), o.id, adminEvidence(""), "admin@example.com")
		}(i)
	}
	wg.Wait()

	fresh := 0
	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, orders.StatusPaid, results[i].Order.Status)
		if !results[i].Replayed {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh)
	assert.Len(t, st.Sink.Notifications(notifications.PurposeOrderPaid), 1)
}

func TestConfirm_PendingOrderCanBePaidDirectly(t *testing.T) {
	st := testutil.NewStack()
	ctx := context.Background()
	event, s := st.World.SeedEvent(st.Clock.Now(), 4500, "B1")
	ids := []uuid.UUID{s[0].ID}

	_, err := st.Seats.AcquireHolds(ctx, event.ID, ids, "session-x")
	require.NoError(t, err)
	created, err := st.Orders.CreatePending(ctx, event.ID, ids, "session-x", "")
	require.NoError(t, err)

	result, err := st.Payments.ConfirmByReference(ctx, created.Order.OrderNumber, payments.Evidence{
		Source:        payments.SourceGateway,
		TransactionID: "gw_123",
		Amount:        amount(4500),
		Method:        "CARD",
	}, "payment-gateway")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, result.Order.Status)
	assert.Equal(t, "CARD", result.Order.Payment.Method)

	stored := st.World.Order(uuid.MustParse(created.Order.ID))
	assert.True(t, stored.Payment.WebhookReceived)
	assert.True(t, stored.Payment.WebhookProcessed)
}

func TestConfirm_AdminCannotApproveAnUnclaimedOrder(t *testing.T) {
	st := testutil.NewStack()
	ctx := context.Background()
	event, s := st.World.SeedEvent(st.Clock.Now(), 4500, "B1")
	ids := []uuid.UUID{s[0].ID}

	_, err := st.Seats.AcquireHolds(ctx, event.ID, ids, "session-x")
	require.NoError(t, err)
	created, err := st.Orders.CreatePending(ctx, event.ID, ids, "session-x", "")
	require.NoError(t, err)
	orderID := uuid.MustParse(created.Order.ID)

	_, err = st.Payments.Confirm(ctx, orderID, adminEvidence("TX-4001"), "admin@example.com")
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	assert.Equal(t, orders.StatusPending, st.World.Order(orderID).Status)
	assert.Equal(t, seats.StatusReserved, st.World.Seat(s[0].ID).Status)
	assert.Len(t, st.Sink.Audit("payment.confirm.anomaly"), 1)
	assert.Empty(t, st.Sink.Notifications(notifications.PurposeOrderPaid))
}

func TestConfirm_AfterRejectIsAlreadyFinal(t *testing.T) {
	st := testutil.NewStack()
	ctx := context.Background()
	o := claimed(t, st)

	_, err := st.Orders.Reject(ctx, o.id, "no funds received", "admin@example.com")
	require.NoError(t, err)
	for _, id := range o.seats {
		assert.Equal(t, seats.StatusAvailable, st.World.Seat(id).Status)
	}

	_, err = st.Payments.Confirm(ctx, o.id, adminEvidence("TX-2001"), "admin@example.com")
	assert.ErrorIs(t, err, apperrors.ErrAlreadyFinal)
	assert.Len(t, st.Sink.Audit("payment.confirm.anomaly"), 1)
	assert.Empty(t, st.Sink.Notifications(notifications.PurposeOrderPaid))

	stored := st.World.Order(o.id)
	assert.Equal(t, orders.StatusCancelled, stored.Status)
	assert.Equal(t, orders.PaymentFailed, stored.Payment.Status)
}

func TestConfirm_AfterExpiryIsAlreadyFinal(t *testing.T) {
	st := testutil.NewStack()
	ctx := context.Background()
	o := claimed(t, st)

	_, err := st.Orders.Expire(ctx, o.id, st.Clock.Now().Add(25*time.Hour))
	require.NoError(t, err)

	_, err = st.Payments.Confirm(ctx, o.id, adminEvidence(""), "admin@example.com")
	assert.ErrorIs(t, err, apperrors.ErrAlreadyFinal)
}

func TestConfirm_AmountMismatchLeavesOrderUntouched(t *testing.T) {
	st := testutil.NewStack()
	ctx := context.Background()
	o := claimed(t, st)

	_, err := st.Payments.ConfirmByReference(ctx, o.number, payments.Evidence{
		Source:        payments.SourceGateway,
		TransactionID: "gw_short",
		Amount:        amount(100),
	}, "payment-gateway")
	assert.ErrorIs(t, err, apperrors.ErrPaymentAmountMismatch)

	stored := st.World.Order(o.id)
	assert.Equal(t, orders.StatusPendingConfirmation, stored.Status)
	assert.False(t, stored.Payment.WebhookProcessed)
	for _, id := range o.seats {
		assert.Equal(t, seats.StatusReserved, st.World.Seat(id).Status)
	}
}

func TestConfirm_GatewayReplayMarksWebhookReceived(t *testing.T) {
	st := testutil.NewStack()
	ctx := context.Background()
	o := claimed(t, st)

	_, err := st.Payments.Confirm(ctx, o.id, adminEvidence("TX-3001"), "admin@example.com")
	require.NoError(t, err)
	assert.False(t, st.World.Order(o.id).Payment.WebhookReceived)

	result, err := st.Payments.ConfirmByReference(ctx, o.number, payments.Evidence{
		Source:        payments.SourceGateway,
		TransactionID: "TX-3001",
	}, "payment-gateway")
	require.NoError(t, err)
	assert.True(t, result.Replayed)
	assert.True(t, st.World.Order(o.id).Payment.WebhookReceived)
	assert.Len(t, st.Sink.Notifications(notifications.PurposeOrderPaid), 1)
}

func TestConfirm_RejectsBadInput(t *testing.T) {
	st := testutil.NewStack()
	ctx := context.Background()

	_, err := st.Payments.Confirm(ctx, uuid.New(), payments.Evidence{Source: "CASH"}, "admin@example.com")
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)

	_, err = st.Payments.Confirm(ctx, uuid.New(), adminEvidence(""), "admin@example.com")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = st.Payments.ConfirmByReference(ctx, "BX-MISSING", adminEvidence(""), "admin@example.com")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestConfirm_TransactionIDIsSingleUse(t *testing.T) {
	st := testutil.NewStack()
	ctx := context.Background()
	first := claimed(t, st)
	second := claimed(t, st)

	_, err := st.Payments.Confirm(ctx, first.id, adminEvidence("TX-DUP"), "admin@example.com")
	require.NoError(t, err)

	_, err = st.Payments.Confirm(ctx, second.id, adminEvidence("TX-DUP"), "admin@example.com")
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)
	assert.Equal(t, orders.StatusPendingConfirmation, st.World.Order(second.id).Status)
}

func TestConfirm_RetriesStorageFaults(t *testing.T) {
	st := testutil.NewStack()
	ctx := context.Background()
	o := claimed(t, st)

	st.World.FailNextTx(testutil.ErrStorage, testutil.ErrStorage)
	result, err := st.Payments.Confirm(ctx, o.id, adminEvidence(""), "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, result.Order.Status)
}

func TestConfirm_LostCommitAcknowledgementStillNotifies(t *testing.T) {
	st := testutil.NewStack()
	ctx := context.Background()
	o := claimed(t, st)

	st.World.FailNextCommit(testutil.ErrStorage)
	result, err := st.Payments.Confirm(ctx, o.id, adminEvidence("TX-2001"), "admin@example.com")
	require.NoError(t, err)
	assert.False(t, result.Replayed)
	assert.Equal(t, orders.StatusPaid, result.Order.Status)
	assert.Len(t, st.Sink.Notifications(notifications.PurposeOrderPaid), 1)
	assert.Len(t, st.Sink.Audit("payment.confirm"), 1)

	again, err := st.Payments.Confirm(ctx, o.id, adminEvidence("TX-2001"), "admin@example.com")
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Len(t, st.Sink.Notifications(notifications.PurposeOrderPaid), 1)
}

func TestTemplateTicketIssuer(t *testing.T) {
	eventID := uuid.MustParse("6f1c1c8e-2f4b-4c1e-9d55-0c0d6b0d7a11")
	issuer := payments.NewTemplateTicketIssuer("https://tickets.test/{event_id}/{order_number}.pdf")
	assert.Equal(t, "https://tickets.test/6f1c1c8e-2f4b-4c1e-9d55-0c0d6b0d7a11/BX-ABCD2345.pdf", issuer.TicketURL("BX-ABCD2345", eventID))
}
