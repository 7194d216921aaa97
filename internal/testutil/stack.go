package testutil

import (
	"context"
	"sync"
	"time"

	"boxoffice/internal/notifications"
	"boxoffice/internal/orders"
	"boxoffice/internal/payments"
	"boxoffice/internal/seats"
	"boxoffice/internal/shared/clock"
	"boxoffice/internal/shared/config"
	"boxoffice/internal/sweeper"
)

// Epoch is the wall-clock start of every fixture.
var Epoch = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

// TestConfig mirrors the production defaults with a cheap bcrypt cost.
func TestConfig() *config.Config {
	return &config.Config{
		Booking: config.BookingConfig{
			HoldStore:          seats.HoldStoreMemory,
			HoldTTL:            10 * time.Minute,
			CheckoutTTL:        15 * time.Minute,
			CheckoutTTLMax:     15 * time.Minute,
			MaxSeatsPerRequest: 10,
			OrderTTL:           15 * time.Minute,
			ReviewTTL:          24 * time.Hour,
			OrderSeatStatus:    string(seats.StatusReserved),
			TxTimeout:          30 * time.Second,
			TokenHashCost:      4,
			Currency:           "USD",
			DefaultPayMethod:   "BANK_TRANSFER",
		},
		Sweeper: config.SweeperConfig{
			Enabled:               true,
			Interval:              time.Minute,
			BatchSize:             100,
			IncludeAwaitingReview: true,
			Secret:                "sweep-secret",
		},
		Payments: config.PaymentsConfig{
			WebhookSecret:     "gateway-secret",
			TicketURLTemplate: "https://tickets.test/t/{event_id}/{order_number}",
		},
	}
}

// Stack wires every service over one World and a memory hold store.
type Stack struct {
	World    *World
	Clock    *clock.Manual
	Config   *config.Config
	Holds    *seats.MemoryHoldStore
	Sink     *Sink
	Seats    seats.Service
	Orders   orders.Service
	Payments payments.Service
	Sweeper  *sweeper.Sweeper
}

func NewStack() *Stack {
	return NewStackWithConfig(TestConfig())
}

func NewStackWithConfig(cfg *config.Config) *Stack {
	w := NewWorld()
	clk := clock.NewManual(Epoch)
	holds := seats.NewMemoryHoldStore()
	sink := &Sink{}

	seatService := seats.NewService(w.Seats(), holds, w, clk, cfg)
	orderService := orders.NewService(orders.Deps{
		Repo:     w.Orders(),
		Seats:    w.Seats(),
		Holds:    holds,
		Events:   w.Events(),
		Tx:       w,
		Clock:    clk,
		Notifier: sink,
		Auditor:  sink,
		SeatMaps: seatService,
		Config:   cfg,
	})
	paymentService := payments.NewService(payments.Deps{
		Orders:   w.Orders(),
		Seats:    w.Seats(),
		Holds:    holds,
		Tx:       w,
		Clock:    clk,
		Notifier: sink,
		Auditor:  sink,
		Tickets:  payments.NewTemplateTicketIssuer(cfg.Payments.TicketURLTemplate),
		SeatMaps: seatService,
	})

	return &Stack{
		World:    w,
		Clock:    clk,
		Config:   cfg,
		Holds:    holds,
		Sink:     sink,
		Seats:    seatService,
		Orders:   orderService,
		Payments: paymentService,
		Sweeper:  sweeper.New(orderService, seatService, cfg.Sweeper.BatchSize),
	}
}

// Sink records notifications and audit entries in emission order.
type Sink struct {
	mu            sync.Mutex
	notifications []*notifications.Notification
	audit         []*notifications.AuditEntry
}

func (s *Sink) OrderPaid(_ context.Context, n *notifications.Notification) {
	s.add(notifications.PurposeOrderPaid, n)
}

func (s *Sink) RejectionNotice(_ context.Context, n *notifications.Notification) {
	s.add(notifications.PurposeRejectionNotice, n)
}

func (s *Sink) OrderExpired(_ context.Context, n *notifications.Notification) {
	s.add(notifications.PurposeOrderExpired, n)
}

func (s *Sink) Record(_ context.Context, entry *notifications.AuditEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, entry)
}

func (s *Sink) add(purpose notifications.Purpose, n *notifications.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.Purpose = purpose
	s.notifications = append(s.notifications, n)
}

// Notifications returns the recorded notifications with the given purpose.
func (s *Sink) Notifications(purpose notifications.Purpose) []*notifications.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*notifications.Notification
	for _, n := range s.notifications {
		if n.Purpose == purpose {
			out = append(out, n)
		}
	}
	return out
}

// Audit returns the recorded audit entries with the given action.
func (s *Sink) Audit(action string) []*notifications.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*notifications.AuditEntry
	for _, e := range s.audit {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}
