package orders

import (
	"context"
	"errors"
	"math"
	"time"

	"boxoffice/internal/events"
	"boxoffice/internal/notifications"
	"boxoffice/internal/seats"
	"boxoffice/internal/shared/apperrors"
	"boxoffice/internal/shared/clock"
	"boxoffice/internal/shared/config"
	"boxoffice/internal/shared/database"
	"boxoffice/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Service interface {
	// Buyer operations
	CreatePending(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, sessionID, paymentMethod string) (*CreateOrderResponse, error)
	ClaimPayment(ctx context.Context, orderNumber, accessToken string, contact ContactInfo, paymentMethod string) (*OrderResponse, error)
	Lookup(ctx context.Context, orderNumber, accessToken string) (*OrderResponse, error)

	// Admin operations
	Reject(ctx context.Context, orderID uuid.UUID, reason, actor string) (*OrderResponse, error)
	Get(ctx context.Context, orderID uuid.UUID) (*OrderResponse, error)
	List(ctx context.Context, query OrderListQuery) (*OrderListResponse, error)

	// Sweeper operations
	DueForExpiry(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	Expire(ctx context.Context, orderID uuid.UUID, now time.Time) (*ExpireResult, error)
}

// SeatMapInvalidator drops cached seat maps after seat status changes.
type SeatMapInvalidator interface {
	InvalidateSeatMap(ctx context.Context, eventIDs ...uuid.UUID)
}

type Deps struct {
	Repo     Repository
	Seats    seats.Repository
	Holds    seats.HoldStore
	Events   events.Repository
	Tx       database.Transactor
	Clock    clock.Clock
	Notifier notifications.Notifier
	Auditor  notifications.Auditor
	SeatMaps SeatMapInvalidator
	Config   *config.Config
}

type service struct {
	repo     Repository
	seats    seats.Repository
	holds    seats.HoldStore
	events   events.Repository
	tx       database.Transactor
	clock    clock.Clock
	notifier notifications.Notifier
	auditor  notifications.Auditor
	seatMaps SeatMapInvalidator
	config   *config.Config
	validate *validator.Validate
	logger   *logger.Logger
}

func NewService(deps Deps) Service {
	return &service{
		repo:     deps.Repo,
		seats:    deps.Seats,
		holds:    deps.Holds,
		events:   deps.Events,
		tx:       deps.Tx,
		clock:    deps.Clock,
		notifier: deps.Notifier,
		auditor:  deps.Auditor,
		seatMaps: deps.SeatMaps,
		config:   deps.Config,
		validate: validator.New(),
		logger:   logger.GetDefault(),
	}
}

//  ORDER CREATION

// CreatePending is not retried on storage faults: a commit that succeeded but
// reported an error would otherwise create a second order attempt.
func (s *service) CreatePending(ctx context.Context, eventID uuid.UUID, seatIDs []uuid.UUID, sessionID, paymentMethod string) (*CreateOrderResponse, error) {
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
	if paymentMethod == "" {
		paymentMethod = s.config.Booking.DefaultPayMethod
	}

	token, tokenHash, err := newAccessToken(s.config.Booking.TokenHashCost)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	expiresAt := now.Add(s.config.Booking.OrderTTL)
	seatStatus := s.orderSeatStatus()

	var order *Order
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		event, err := s.events.GetForShare(ctx, eventID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.New(apperrors.CodeEventNotBookable, "event does not exist")
		}
		if err != nil {
			return err
		}
		if !event.Bookable(now) {
			return apperrors.Newf(apperrors.CodeEventNotBookable, "event is not open for sales (%s)", event.Status)
		}

		locked, err := s.seats.LockSeats(ctx, eventID, ids)
		if err != nil {
			return err
		}
		if err := s.verifyHeld(ctx, ids, locked, sessionID, eventID, now); err != nil {
			return err
		}

		order, err = s.buildOrder(ctx, eventID, sessionID, paymentMethod, tokenHash, locked, now, expiresAt)
		if err != nil {
			return err
		}
		if err := s.repo.Create(ctx, order); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperrors.WithSeats(apperrors.CodeSeatNotHeld, "seats already belong to another order", seatLabels(locked))
			}
			return err
		}

		if _, err := s.seats.SetStatus(ctx, ids, seatStatus, seats.StatusAvailable, seats.StatusLocked); err != nil {
			return err
		}
		return s.holds.ExtendSeats(ctx, ids, now, expiresAt)
	})
	if err != nil {
		return nil, apperrors.Storage("create order", err)
	}

	s.invalidate(ctx, eventID)
	s.logger.LogOrderCreated(ctx, order.ID.String(), order.OrderNumber, eventID.String(), order.TotalAmount)

	return &CreateOrderResponse{Order: order.ToResponse(), AccessToken: token}, nil
}

// verifyHeld checks that every requested seat exists, is still sellable, is not
// referenced by a live order and carries an unexpired hold owned by sessionID.
func (s *service) verifyHeld(ctx context.Context, ids []uuid.UUID, locked []seats.Seat, sessionID string, eventID uuid.UUID, now time.Time) error {
	byID := make(map[uuid.UUID]*seats.Seat, len(locked))
	for i := range locked {
		byID[locked[i].ID] = &locked[i]
	}

	active, err := s.holds.Active(ctx, ids, now)
	if err != nil {
		return err
	}
	owned := make(map[uuid.UUID]bool, len(active))
	for _, h := range active {
		if h.SessionID == sessionID && h.EventID == eventID {
			owned[h.SeatID] = true
		}
	}

	inOrder, err := s.seats.ActiveOrderSeats(ctx, ids)
	if err != nil {
		return err
	}
	taken := make(map[uuid.UUID]bool, len(inOrder))
	for _, id := range inOrder {
		taken[id] = true
	}

	var bad []string
	for _, id := range ids {
		seat, ok := byID[id]
		switch {
		case !ok:
			bad = append(bad, id.String())
		case !seat.Status.Holdable() || taken[id] || !owned[id]:
			bad = append(bad, seat.Label())
		}
	}
	if len(bad) > 0 {
		return apperrors.WithSeats(apperrors.CodeSeatNotHeld, "seats are not held by this session", bad)
	}
	return nil
}

func (s *service) buildOrder(ctx context.Context, eventID uuid.UUID, sessionID, paymentMethod, tokenHash string, locked []seats.Seat, now, expiresAt time.Time) (*Order, error) {
	number, err := s.uniqueOrderNumber(ctx)
	if err != nil {
		return nil, err
	}

	order := &Order{
		ID:              uuid.New(),
		OrderNumber:     number,
		EventID:         eventID,
		SessionID:       sessionID,
		Status:          StatusPending,
		Currency:        s.config.Booking.Currency,
		ExpiresAt:       expiresAt,
		AccessTokenHash: tokenHash,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, seat := range locked {
		order.Items = append(order.Items, OrderItem{
			ID:        uuid.New(),
			OrderID:   order.ID,
			SeatID:    seat.ID,
			Section:   seat.Section,
			Row:       seat.Row,
			Number:    seat.Number,
			SeatClass: seat.SeatClass,
			Price:     seat.Price,
			Active:    true,
			CreatedAt: now,
		})
		order.TotalAmount += seat.Price
	}
	order.Payment = &Payment{
		ID:        uuid.New(),
		OrderID:   order.ID,
		Amount:    order.TotalAmount,
		Currency:  order.Currency,
		Method:    paymentMethod,
		Status:    PaymentPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return order, nil
}

func (s *service) uniqueOrderNumber(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		number, err := newOrderNumber()
		if err != nil {
			return "", err
		}
		exists, err := s.repo.NumberExists(ctx, number)
		if err != nil {
			return "", err
		}
		if !exists {
			return number, nil
		}
	}
	return "", errors.New("could not generate a unique order number")
}

//  BUYER OPERATIONS

func (s *service) ClaimPayment(ctx context.Context, orderNumber, accessToken string, contact ContactInfo, paymentMethod string) (*OrderResponse, error) {
	if err := s.validate.Struct(contact); err != nil {
		return nil, apperrors.Newf(apperrors.CodeInvalidRequest, "invalid contact info: %v", err)
	}

	// bcrypt runs before the row lock is taken.
	if _, err := s.authenticate(ctx, orderNumber, accessToken); err != nil {
		return nil, err
	}

	var order *Order
	var from Status
	err := apperrors.Retry(ctx, func() error {
		return apperrors.Storage("claim payment", s.tx.WithTx(ctx, func(ctx context.Context) error {
			var err error
			order, err = s.repo.GetByNumberForUpdate(ctx, orderNumber)
			if err != nil {
				return err
			}

			now := s.clock.Now()
			if err := claimable(order, now); err != nil {
				return err
			}

			from = order.Status
			order.Status = StatusPendingConfirmation
			order.ContactName = contact.Name
			order.ContactEmail = contact.Email
			order.ContactPhone = contact.Phone
			order.ExpiresAt = now.Add(s.config.Booking.ReviewTTL)
			order.UpdatedAt = now
			if err := s.repo.Update(ctx, order); err != nil {
				return err
			}

			if order.Payment != nil && paymentMethod != "" {
				order.Payment.Method = paymentMethod
				order.Payment.UpdatedAt = now
				if err := s.repo.UpdatePayment(ctx, order.Payment); err != nil {
					return err
				}
			}
			return s.holds.ExtendSeats(ctx, order.SeatIDs(), now, order.ExpiresAt)
		}))
	})
	if err != nil {
		return nil, err
	}

	s.logger.LogOrderTransition(ctx, order.ID.String(), from.String(), order.Status.String(), "buyer")
	return order.ToResponse(), nil
}

// claimable maps the buyer-facing status errors. A PENDING order past its
// deadline is expired even before the sweeper gets to it.
func claimable(order *Order, now time.Time) error {
	switch order.Status {
	case StatusPaid:
		return apperrors.New(apperrors.CodeAlreadyPaid, "order is already paid")
	case StatusPendingConfirmation:
		return apperrors.New(apperrors.CodeAlreadyPendingConfirmation, "payment was already claimed and is awaiting confirmation")
	case StatusExpired:
		return apperrors.New(apperrors.CodeOrderExpired, "order has expired")
	case StatusCancelled:
		return apperrors.New(apperrors.CodeOrderCancelled, "order was cancelled")
	}
	if !now.Before(order.ExpiresAt) {
		return apperrors.New(apperrors.CodeOrderExpired, "order has expired")
	}
	return nil
}

func (s *service) Lookup(ctx context.Context, orderNumber, accessToken string) (*OrderResponse, error) {
	order, err := s.authenticate(ctx, orderNumber, accessToken)
	if err != nil {
		return nil, err
	}
	return order.ToResponse(), nil
}

// authenticate loads the order and checks the bearer token. Unknown orders and
// wrong tokens are indistinguishable to the caller.
func (s *service) authenticate(ctx context.Context, orderNumber, accessToken string) (*Order, error) {
	order, err := s.repo.GetByNumber(ctx, orderNumber)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		tokenMatches(dummyTokenHash, accessToken)
		return nil, apperrors.New(apperrors.CodeInvalidToken, "invalid order number or access token")
	}
	if err != nil {
		return nil, apperrors.Storage("get order", err)
	}
	if !tokenMatches(order.AccessTokenHash, accessToken) {
		return nil, apperrors.New(apperrors.CodeInvalidToken, "invalid order number or access token")
	}
	return order, nil
}

// dummyTokenHash keeps the unknown-order path as slow as a real comparison.
const dummyTokenHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoO5uM1tY8lYzHc5x5cX4xFvTQ0b3o2K2G"

//  ADMIN OPERATIONS

func (s *service) Reject(ctx context.Context, orderID uuid.UUID, reason, actor string) (*OrderResponse, error) {
	var order *Order
	var from Status
	err := apperrors.Retry(ctx, func() error {
		return apperrors.Storage("reject order", s.tx.WithTx(ctx, func(ctx context.Context) error {
			var err error
			order, err = s.repo.GetByIDForUpdate(ctx, orderID)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.New(apperrors.CodeNotFound, "order not found")
			}
			if err != nil {
				return err
			}
			if !order.Status.CanTransitionTo(StatusCancelled) {
				return apperrors.Newf(apperrors.CodeInvalidTransition, "order %s is %s and cannot be rejected", order.OrderNumber, order.Status)
			}

			now := s.clock.Now()
			from = order.Status
			order.Status = StatusCancelled
			order.CancelledAt = &now
			order.CancelReason = reason
			order.CancelledBy = actor
			order.UpdatedAt = now
			if err := s.repo.Update(ctx, order); err != nil {
				return err
			}
			if err := s.failPayment(ctx, order, reason, now); err != nil {
				return err
			}
			_, err = s.releaseSeats(ctx, order)
			return err
		}))
	})
	if err != nil {
		if apperrors.IsAnomaly(err) {
			s.logger.LogAnomaly(ctx, "order.reject", orderID.String(), actor, err)
			s.auditor.Record(ctx, notifications.NewAuditEntry(actor, "order.reject.anomaly", "order", orderID.String(), nil, map[string]string{"error": err.Error()}))
		}
		return nil, err
	}

	s.invalidate(ctx, order.EventID)
	s.logger.LogOrderTransition(ctx, order.ID.String(), from.String(), order.Status.String(), actor)
	s.auditor.Record(ctx, notifications.NewAuditEntry(actor, "order.reject", "order", order.ID.String(),
		map[string]string{"status": from.String()},
		map[string]string{"status": order.Status.String(), "reason": reason},
	))
	s.notifier.RejectionNotice(ctx, notifications.NewNotificationBuilder(notifications.PurposeRejectionNotice).
		WithOrder(order.ID, order.OrderNumber, order.EventID).
		WithRecipient(order.ContactEmail, order.ContactName).
		WithAmount(order.TotalAmount, order.Currency).
		WithReason(reason).
		Build())

	return order.ToResponse(), nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*OrderResponse, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.New(apperrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, apperrors.Storage("get order", err)
	}
	return order.ToResponse(), nil
}

func (s *service) List(ctx context.Context, query OrderListQuery) (*OrderListResponse, error) {
	if query.Status != "" && !Status(query.Status).IsValid() {
		return nil, apperrors.Newf(apperrors.CodeInvalidRequest, "unknown order status %q", query.Status)
	}
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 20
	}

	orders, total, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, apperrors.Storage("list orders", err)
	}

	resp := &OrderListResponse{
		Orders:     make([]OrderResponse, 0, len(orders)),
		TotalCount: total,
		Page:       query.Page,
		Limit:      query.Limit,
		TotalPages: int(math.Ceil(float64(total) / float64(query.Limit))),
	}
	for i := range orders {
		resp.Orders = append(resp.Orders, *orders[i].ToResponse())
	}
	return resp, nil
}

//  EXPIRY

func (s *service) DueForExpiry(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	statuses := []Status{StatusPending}
	if s.config.Sweeper.IncludeAwaitingReview {
		statuses = append(statuses, StatusPendingConfirmation)
	}
	ids, err := s.repo.ListDue(ctx, statuses, now, limit)
	if err != nil {
		return nil, apperrors.Storage("list due orders", err)
	}
	return ids, nil
}

// Expire is idempotent: orders that are already terminal or not yet due are left alone.
func (s *service) Expire(ctx context.Context, orderID uuid.UUID, now time.Time) (*ExpireResult, error) {
	result := &ExpireResult{}
	var order *Order
	var from Status
	err := apperrors.Retry(ctx, func() error {
		*result = ExpireResult{}
		return apperrors.Storage("expire order", s.tx.WithTx(ctx, func(ctx context.Context) error {
			var err error
			order, err = s.repo.GetByIDForUpdate(ctx, orderID)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.New(apperrors.CodeNotFound, "order not found")
			}
			if err != nil {
				return err
			}
			if !s.expirable(order, now) {
				return nil
			}

			from = order.Status
			order.Status = StatusExpired
			order.UpdatedAt = now
			if err := s.repo.Update(ctx, order); err != nil {
				return err
			}
			if err := s.failPayment(ctx, order, "order expired", now); err != nil {
				return err
			}
			released, err := s.releaseSeats(ctx, order)
			if err != nil {
				return err
			}
			result.Expired = true
			result.SeatsReleased = released
			return nil
		}))
	})
	if err != nil {
		return nil, err
	}

	if result.Expired {
		s.invalidate(ctx, order.EventID)
		s.logger.LogOrderTransition(ctx, order.ID.String(), from.String(), order.Status.String(), "sweeper")
		s.notifier.OrderExpired(ctx, notifications.NewNotificationBuilder(notifications.PurposeOrderExpired).
			WithOrder(order.ID, order.OrderNumber, order.EventID).
			WithRecipient(order.ContactEmail, order.ContactName).
			Build())
	}
	return result, nil
}

func (s *service) expirable(order *Order, now time.Time) bool {
	if now.Before(order.ExpiresAt) {
		return false
	}
	switch order.Status {
	case StatusPending:
		return true
	case StatusPendingConfirmation:
		return s.config.Sweeper.IncludeAwaitingReview
	}
	return false
}

//  HELPERS

func (s *service) failPayment(ctx context.Context, order *Order, reason string, now time.Time) error {
	if order.Payment == nil {
		return nil
	}
	order.Payment.Status = PaymentFailed
	order.Payment.FailureReason = reason
	order.Payment.UpdatedAt = now
	return s.repo.UpdatePayment(ctx, order.Payment)
}

// releaseSeats frees a dead order's seats: line items go inactive, unsold seats
// return to AVAILABLE and their holds are deleted.
func (s *service) releaseSeats(ctx context.Context, order *Order) (int, error) {
	ids := order.SeatIDs()
	if err := s.repo.DeactivateItems(ctx, order.ID); err != nil {
		return 0, err
	}
	for i := range order.Items {
		order.Items[i].Active = false
	}
	released, err := s.seats.SetStatus(ctx, ids, seats.StatusAvailable, seats.StatusReserved, seats.StatusLocked)
	if err != nil {
		return 0, err
	}
	if err := s.holds.ReleaseSeats(ctx, ids); err != nil {
		return 0, err
	}
	return int(released), nil
}

func (s *service) orderSeatStatus() seats.SeatStatus {
	if seats.SeatStatus(s.config.Booking.OrderSeatStatus) == seats.StatusLocked {
		return seats.StatusLocked
	}
	return seats.StatusReserved
}

func (s *service) invalidate(ctx context.Context, eventID uuid.UUID) {
	if s.seatMaps != nil {
		s.seatMaps.InvalidateSeatMap(ctx, eventID)
	}
}

func seatLabels(list []seats.Seat) []string {
	out := make([]string, 0, len(list))
	for i := range list {
		out = append(out, list[i].Label())
	}
	return out
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
