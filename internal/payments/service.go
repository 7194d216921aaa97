package payments

import (
	"context"
	"errors"
	"time"

	"boxoffice/internal/notifications"
	"boxoffice/internal/orders"
	"boxoffice/internal/seats"
	"boxoffice/internal/shared/apperrors"
	"boxoffice/internal/shared/clock"
	"boxoffice/internal/shared/database"
	"boxoffice/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service is the only code path that moves an order to PAID.
type Service interface {
	Confirm(ctx context.Context, orderID uuid.UUID, evidence Evidence, actor string) (*Result, error)
	// ConfirmByReference resolves the order from the payment reference the
	// gateway echoes back (the order number).
	ConfirmByReference(ctx context.Context, orderNumber string, evidence Evidence, actor string) (*Result, error)
}

type Deps struct {
	Orders   orders.Repository
	Seats    seats.Repository
	Holds    seats.HoldStore
	Tx       database.Transactor
	Clock    clock.Clock
	Notifier notifications.Notifier
	Auditor  notifications.Auditor
	Tickets  TicketIssuer
	SeatMaps orders.SeatMapInvalidator
}

type service struct {
	orders   orders.Repository
	seats    seats.Repository
	holds    seats.HoldStore
	tx       database.Transactor
	clock    clock.Clock
	notifier notifications.Notifier
	auditor  notifications.Auditor
	tickets  TicketIssuer
	seatMaps orders.SeatMapInvalidator
	validate *validator.Validate
	logger   *logger.Logger
}

func NewService(deps Deps) Service {
	return &service{
		orders:   deps.Orders,
		seats:    deps.Seats,
		holds:    deps.Holds,
		tx:       deps.Tx,
		clock:    deps.Clock,
		notifier: deps.Notifier,
		auditor:  deps.Auditor,
		tickets:  deps.Tickets,
		seatMaps: deps.SeatMaps,
		validate: validator.New(),
		logger:   logger.GetDefault(),
	}
}

type loadFunc func(ctx context.Context) (*orders.Order, error)

func (s *service) Confirm(ctx context.Context, orderID uuid.UUID, evidence Evidence, actor string) (*Result, error) {
	return s.confirm(ctx, orderID.String(), func(ctx context.Context) (*orders.Order, error) {
		return s.orders.GetByIDForUpdate(ctx, orderID)
	}, evidence, actor)
}

func (s *service) ConfirmByReference(ctx context.Context, orderNumber string, evidence Evidence, actor string) (*Result, error) {
	return s.confirm(ctx, orderNumber, func(ctx context.Context) (*orders.Order, error) {
		return s.orders.GetByNumberForUpdate(ctx, orderNumber)
	}, evidence, actor)
}

// outcome is what one attempt of the unit of work decided.
type outcome struct {
	order    *orders.Order
	from     orders.Status
	replayed bool
}

func (s *service) confirm(ctx context.Context, ref string, load loadFunc, evidence Evidence, actor string) (*Result, error) {
	if err := s.validate.Struct(evidence); err != nil {
		return nil, apperrors.Newf(apperrors.CodeInvalidRequest, "invalid payment evidence: %v", err)
	}

	var out outcome
	// applied remembers an attempt whose commit reported an error, which may
	// still have landed.
	var applied *outcome
	err := apperrors.Retry(ctx, func() error {
		out = outcome{}
		return apperrors.Storage("confirm payment", s.tx.WithTx(ctx, func(ctx context.Context) error {
			order, err := load(ctx)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.New(apperrors.CodeNotFound, "order not found")
			}
			if err != nil {
				return err
			}
			out.order = order
			out.from = order.Status
			if err := s.apply(ctx, &out, evidence); err != nil {
				return err
			}
			if out.replayed && applied != nil && sameInstant(order.PaidAt, applied.order.PaidAt) {
				out.replayed = false
				out.from = applied.from
			}
			if !out.replayed {
				applied = &outcome{order: order, from: out.from}
			}
			return nil
		}))
	})
	if err != nil {
		if apperrors.IsAnomaly(err) {
			s.logger.LogAnomaly(ctx, "payment.confirm", ref, actor, err)
			s.auditor.Record(ctx, notifications.NewAuditEntry(actor, "payment.confirm.anomaly", "order", ref, nil, map[string]string{
				"error":          err.Error(),
				"source":         string(evidence.Source),
				"transaction_id": evidence.TransactionID,
			}))
		}
		return nil, err
	}

	order := out.order
	if out.replayed {
		s.logger.InfoWithContext(ctx, "Payment confirmation replayed", map[string]interface{}{
			"order_id": order.ID.String(),
			"source":   string(evidence.Source),
			"actor":    actor,
		})
		return &Result{Order: order.ToResponse(), Replayed: true}, nil
	}

	if s.seatMaps != nil {
		s.seatMaps.InvalidateSeatMap(ctx, order.EventID)
	}
	s.logger.LogOrderTransition(ctx, order.ID.String(), out.from.String(), order.Status.String(), actor)
	s.notifier.OrderPaid(ctx, notifications.NewNotificationBuilder(notifications.PurposeOrderPaid).
		WithOrder(order.ID, order.OrderNumber, order.EventID).
		WithRecipient(order.ContactEmail, order.ContactName).
		WithAmount(order.TotalAmount, order.Currency).
		WithTicketURL(s.tickets.TicketURL(order.OrderNumber, order.EventID)).
		Build())
	s.auditor.Record(ctx, notifications.NewAuditEntry(actor, "payment.confirm", "order", order.ID.String(),
		map[string]string{"status": out.from.String()},
		map[string]string{"status": order.Status.String(), "source": string(evidence.Source), "transaction_id": evidence.TransactionID},
	))

	return &Result{Order: order.ToResponse()}, nil
}

// apply runs inside the unit of work with the order row locked.
func (s *service) apply(ctx context.Context, out *outcome, evidence Evidence) error {
	order := out.order
	payment := order.Payment
	if payment == nil {
		return errors.New("order has no payment record")
	}
	now := s.clock.Now()

	if payment.WebhookProcessed || order.Status == orders.StatusPaid {
		out.replayed = true
		if evidence.Source == SourceGateway && !payment.WebhookReceived {
			payment.WebhookReceived = true
			payment.UpdatedAt = now
			return s.orders.UpdatePayment(ctx, payment)
		}
		return nil
	}

	switch order.Status {
	case orders.StatusCancelled, orders.StatusExpired:
		return apperrors.Newf(apperrors.CodeAlreadyFinal, "order %s is %s and cannot be paid", order.OrderNumber, order.Status)
	}
	// Only the gateway may pay an order the buyer never claimed
	if order.Status == orders.StatusPending && evidence.Source != SourceGateway {
		return apperrors.Newf(apperrors.CodeInvalidTransition, "order %s has no payment claim to approve", order.OrderNumber)
	}
	if !order.Status.CanTransitionTo(orders.StatusPaid) {
		return apperrors.Newf(apperrors.CodeInvalidTransition, "order %s is %s", order.OrderNumber, order.Status)
	}
	if evidence.Amount != nil && *evidence.Amount != order.TotalAmount {
		return apperrors.Newf(apperrors.CodePaymentAmountMismatch, "paid %d, order total is %d", *evidence.Amount, order.TotalAmount)
	}

	if err := s.completePayment(ctx, payment, evidence, now); err != nil {
		return err
	}

	order.Status = orders.StatusPaid
	order.PaidAt = &now
	order.UpdatedAt = now
	if err := s.orders.Update(ctx, order); err != nil {
		return err
	}

	ids := order.SeatIDs()
	if _, err := s.seats.SetStatus(ctx, ids, seats.StatusSold, seats.StatusReserved, seats.StatusLocked, seats.StatusAvailable); err != nil {
		return err
	}
	return s.holds.ReleaseSeats(ctx, ids)
}

// sameInstant compares timestamps at the database's microsecond precision.
func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Truncate(time.Microsecond).Equal(b.Truncate(time.Microsecond))
}

func (s *service) completePayment(ctx context.Context, payment *orders.Payment, evidence Evidence, now time.Time) error {
	payment.Status = orders.PaymentCompleted
	if evidence.TransactionID != "" {
		txID := evidence.TransactionID
		payment.TransactionID = &txID
	}
	if evidence.Method != "" {
		payment.Method = evidence.Method
	}
	if evidence.Source == SourceGateway {
		payment.WebhookReceived = true
	}
	payment.WebhookProcessed = true
	payment.PaidAt = &now
	payment.UpdatedAt = now

	err := s.orders.UpdatePayment(ctx, payment)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.Newf(apperrors.CodeInvalidRequest, "transaction %s is already recorded for another payment", evidence.TransactionID)
	}
	return err
}
