// Package testutil provides an in-memory relational store and fixtures for
// service-level tests. Units of work are serialized and roll back on error,
// standing in for Postgres row locks and transactions.
package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"boxoffice/internal/events"
	"boxoffice/internal/orders"
	"boxoffice/internal/seats"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txMarker struct{}

// World is the shared state behind the in-memory repositories.
type World struct {
	txMu sync.Mutex
	mu   sync.Mutex

	events map[uuid.UUID]events.Event
	seats  map[uuid.UUID]seats.Seat
	orders map[uuid.UUID]*orders.Order

	faults       []error
	commitFaults []error
	txRuns       int
}

func NewWorld() *World {
	return &World{
		events: make(map[uuid.UUID]events.Event),
		seats:  make(map[uuid.UUID]seats.Seat),
		orders: make(map[uuid.UUID]*orders.Order),
	}
}

//  UNIT OF WORK

// WithTx implements database.Transactor. Nested calls join the outer unit of work.
func (w *World) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txMarker{}) != nil {
		return fn(ctx)
	}

	w.txMu.Lock()
	defer w.txMu.Unlock()

	w.mu.Lock()
	w.txRuns++
	if len(w.faults) > 0 {
		err := w.faults[0]
		w.faults = w.faults[1:]
		w.mu.Unlock()
		return err
	}
	snap := w.snapshot()
	w.mu.Unlock()

	if err := fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		w.mu.Lock()
		w.restore(snap)
		w.mu.Unlock()
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.commitFaults) > 0 {
		err := w.commitFaults[0]
		w.commitFaults = w.commitFaults[1:]
		return err
	}
	return nil
}

// FailNextTx makes the next len(errs) units of work fail with the given errors
// before running.
func (w *World) FailNextTx(errs ...error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.faults = append(w.faults, errs...)
}

// FailNextCommit makes the next len(errs) units of work keep their writes but
// report the given errors, like a commit whose acknowledgement was lost.
func (w *World) FailNextCommit(errs ...error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.commitFaults = append(w.commitFaults, errs...)
}

// TxRuns counts units of work started, including injected failures.
func (w *World) TxRuns() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.txRuns
}

type worldSnapshot struct {
	events map[uuid.UUID]events.Event
	seats  map[uuid.UUID]seats.Seat
	orders map[uuid.UUID]*orders.Order
}

func (w *World) snapshot() worldSnapshot {
	snap := worldSnapshot{
		events: make(map[uuid.UUID]events.Event, len(w.events)),
		seats:  make(map[uuid.UUID]seats.Seat, len(w.seats)),
		orders: make(map[uuid.UUID]*orders.Order, len(w.orders)),
	}
	for k, v := range w.events {
		snap.events[k] = v
	}
	for k, v := range w.seats {
		snap.seats[k] = v
	}
	for k, v := range w.orders {
		snap.orders[k] = cloneOrder(v)
	}
	return snap
}

func (w *World) restore(snap worldSnapshot) {
	w.events = snap.events
	w.seats = snap.seats
	w.orders = snap.orders
}

func cloneOrder(o *orders.Order) *orders.Order {
	c := *o
	c.Items = append([]orders.OrderItem(nil), o.Items...)
	if o.Payment != nil {
		p := *o.Payment
		if o.Payment.TransactionID != nil {
			txID := *o.Payment.TransactionID
			p.TransactionID = &txID
		}
		c.Payment = &p
	}
	return &c
}

//  FIXTURES

// SeedEvent stores an on-sale event with one seat per label ("A1", "B12"), all
// AVAILABLE in section MAIN at price.
func (w *World) SeedEvent(now time.Time, price int64, labels ...string) (events.Event, []seats.Seat) {
	w.mu.Lock()
	defer w.mu.Unlock()

	event := events.Event{
		ID:        uuid.New(),
		Name:      "Test Event",
		Venue:     "Main Hall",
		Status:    events.StatusOnSale,
		StartsAt:  now.Add(30 * 24 * time.Hour),
		CreatedAt: now,
		UpdatedAt: now,
	}
	w.events[event.ID] = event

	created := make([]seats.Seat, 0, len(labels))
	for _, label := range labels {
		seat := seats.Seat{
			ID:        uuid.New(),
			EventID:   event.ID,
			Section:   "MAIN",
			Row:       label[:1],
			Number:    label[1:],
			SeatClass: "STANDARD",
			Price:     price,
			Status:    seats.StatusAvailable,
			CreatedAt: now,
			UpdatedAt: now,
		}
		w.seats[seat.ID] = seat
		created = append(created, seat)
	}
	return event, created
}

// SetEventStatus changes an event outside any unit of work.
func (w *World) SetEventStatus(eventID uuid.UUID, status events.Status) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e := w.events[eventID]
	e.Status = status
	w.events[eventID] = e
}

func (w *World) Seat(id uuid.UUID) seats.Seat {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seats[id]
}

func (w *World) Order(id uuid.UUID) *orders.Order {
	w.mu.Lock()
	defer w.mu.Unlock()
	o, ok := w.orders[id]
	if !ok {
		return nil
	}
	return cloneOrder(o)
}

// OrderByNumber returns the stored order, or nil.
func (w *World) OrderByNumber(number string) *orders.Order {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, o := range w.orders {
		if o.OrderNumber == number {
			return cloneOrder(o)
		}
	}
	return nil
}

//  REPOSITORIES

func (w *World) Events() events.Repository { return &eventRepo{w} }
func (w *World) Seats() seats.Repository   { return &seatRepo{w} }
func (w *World) Orders() orders.Repository { return &orderRepo{w} }

type eventRepo struct{ w *World }

func (r *eventRepo) Create(_ context.Context, event *events.Event) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	r.w.events[event.ID] = *event
	return nil
}

func (r *eventRepo) GetByID(_ context.Context, id uuid.UUID) (*events.Event, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	e, ok := r.w.events[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &e, nil
}

func (r *eventRepo) GetForShare(ctx context.Context, id uuid.UUID) (*events.Event, error) {
	return r.GetByID(ctx, id)
}

type seatRepo struct{ w *World }

func (r *seatRepo) CreateSeats(_ context.Context, list []seats.Seat) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	for _, s := range list {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		r.w.seats[s.ID] = s
	}
	return nil
}

func (r *seatRepo) GetSeatsByIDs(_ context.Context, ids []uuid.UUID) ([]seats.Seat, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	out := r.w.pick(ids, func(seats.Seat) bool { return true })
	sortByLabel(out)
	return out, nil
}

func (r *seatRepo) ListByEvent(_ context.Context, eventID uuid.UUID) ([]seats.Seat, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	var out []seats.Seat
	for _, s := range r.w.seats {
		if s.EventID == eventID {
			out = append(out, s)
		}
	}
	sortByLabel(out)
	return out, nil
}

func (r *seatRepo) LockSeats(_ context.Context, eventID uuid.UUID, ids []uuid.UUID) ([]seats.Seat, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	out := r.w.pick(ids, func(s seats.Seat) bool { return s.EventID == eventID })
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (r *seatRepo) SetStatus(_ context.Context, ids []uuid.UUID, status seats.SeatStatus, from ...seats.SeatStatus) (int64, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	var changed int64
	for _, id := range ids {
		s, ok := r.w.seats[id]
		if !ok || (len(from) > 0 && !statusIn(s.Status, from)) {
			continue
		}
		s.Status = status
		r.w.seats[id] = s
		changed++
	}
	return changed, nil
}

func (r *seatRepo) ListOrphanLocked(_ context.Context, limit int) ([]seats.Seat, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	taken := r.w.activeItemSeats()
	var out []seats.Seat
	for _, s := range r.w.seats {
		if s.Status == seats.StatusLocked && !taken[s.ID] {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *seatRepo) ActiveOrderSeats(_ context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	taken := r.w.activeItemSeats()
	var out []uuid.UUID
	for _, id := range ids {
		if taken[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (w *World) pick(ids []uuid.UUID, keep func(seats.Seat) bool) []seats.Seat {
	out := make([]seats.Seat, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if s, ok := w.seats[id]; ok && keep(s) {
			out = append(out, s)
		}
	}
	return out
}

func (w *World) activeItemSeats() map[uuid.UUID]bool {
	taken := make(map[uuid.UUID]bool)
	for _, o := range w.orders {
		for _, item := range o.Items {
			if item.Active {
				taken[item.SeatID] = true
			}
		}
	}
	return taken
}

type orderRepo struct{ w *World }

func (r *orderRepo) Create(_ context.Context, order *orders.Order) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()

	taken := r.w.activeItemSeats()
	for _, o := range r.w.orders {
		if o.OrderNumber == order.OrderNumber {
			return gorm.ErrDuplicatedKey
		}
	}
	for _, item := range order.Items {
		if item.Active && taken[item.SeatID] {
			return gorm.ErrDuplicatedKey
		}
	}
	r.w.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *orderRepo) NumberExists(_ context.Context, number string) (bool, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	for _, o := range r.w.orders {
		if o.OrderNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (r *orderRepo) GetByID(_ context.Context, id uuid.UUID) (*orders.Order, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	o, ok := r.w.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return sortedItems(cloneOrder(o)), nil
}

func (r *orderRepo) GetByNumber(_ context.Context, number string) (*orders.Order, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	for _, o := range r.w.orders {
		if o.OrderNumber == number {
			return sortedItems(cloneOrder(o)), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *orderRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*orders.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *orderRepo) GetByNumberForUpdate(ctx context.Context, number string) (*orders.Order, error) {
	return r.GetByNumber(ctx, number)
}

func (r *orderRepo) Update(_ context.Context, order *orders.Order) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	stored, ok := r.w.orders[order.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	updated := cloneOrder(order)
	updated.Items = stored.Items
	updated.Payment = stored.Payment
	r.w.orders[order.ID] = updated
	return nil
}

func (r *orderRepo) UpdatePayment(_ context.Context, payment *orders.Payment) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	stored, ok := r.w.orders[payment.OrderID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if payment.TransactionID != nil {
		for id, o := range r.w.orders {
			if id == payment.OrderID || o.Payment == nil || o.Payment.TransactionID == nil {
				continue
			}
			if *o.Payment.TransactionID == *payment.TransactionID {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	p := *payment
	stored.Payment = &p
	return nil
}

func (r *orderRepo) DeactivateItems(_ context.Context, orderID uuid.UUID) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	stored, ok := r.w.orders[orderID]
	if !ok {
		return nil
	}
	for i := range stored.Items {
		stored.Items[i].Active = false
	}
	return nil
}

func (r *orderRepo) ListDue(_ context.Context, statuses []orders.Status, now time.Time, limit int) ([]uuid.UUID, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	var due []*orders.Order
	for _, o := range r.w.orders {
		if o.ExpiresAt.Before(now) && orderStatusIn(o.Status, statuses) {
			due = append(due, o)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ExpiresAt.Before(due[j].ExpiresAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	ids := make([]uuid.UUID, 0, len(due))
	for _, o := range due {
		ids = append(ids, o.ID)
	}
	return ids, nil
}

func (r *orderRepo) List(_ context.Context, query orders.OrderListQuery) ([]orders.Order, int64, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 20
	}

	var matched []orders.Order
	for _, o := range r.w.orders {
		if query.Status != "" && string(o.Status) != query.Status {
			continue
		}
		if query.EventID != "" && o.EventID.String() != query.EventID {
			continue
		}
		matched = append(matched, *cloneOrder(o))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	start := (query.Page - 1) * query.Limit
	if start >= len(matched) {
		return []orders.Order{}, total, nil
	}
	end := start + query.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func sortedItems(o *orders.Order) *orders.Order {
	sort.Slice(o.Items, func(i, j int) bool {
		a, b := o.Items[i], o.Items[j]
		if a.Section != b.Section {
			return a.Section < b.Section
		}
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Number < b.Number
	})
	return o
}

func sortByLabel(list []seats.Seat) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Section != b.Section {
			return a.Section < b.Section
		}
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Number < b.Number
	})
}

func statusIn(s seats.SeatStatus, list []seats.SeatStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func orderStatusIn(s orders.Status, list []orders.Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ErrStorage is a connectivity-style failure for fault injection.
var ErrStorage = errors.New("connection reset by peer")
