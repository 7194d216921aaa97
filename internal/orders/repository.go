package orders

import (
	"context"
	"time"

	"boxoffice/internal/shared/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	// Create inserts the order with its items and payment.
	Create(ctx context.Context, order *Order) error
	NumberExists(ctx context.Context, orderNumber string) (bool, error)

	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*Order, error)
	// GetByIDForUpdate row-locks the order for the surrounding unit of work.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Order, error)
	GetByNumberForUpdate(ctx context.Context, orderNumber string) (*Order, error)

	// Update writes the order's own columns, never its items.
	Update(ctx context.Context, order *Order) error
	UpdatePayment(ctx context.Context, payment *Payment) error
	// DeactivateItems frees the order's seats for other orders.
	DeactivateItems(ctx context.Context, orderID uuid.UUID) error

	// ListDue returns ids of orders in one of statuses whose deadline is before now.
	ListDue(ctx context.Context, statuses []Status, now time.Time, limit int) ([]uuid.UUID, error)
	List(ctx context.Context, query OrderListQuery) ([]Order, int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, order *Order) error {
	return database.Conn(ctx, r.db).Create(order).Error
}

func (r *repository) NumberExists(ctx context.Context, orderNumber string) (bool, error) {
	var count int64
	err := database.Conn(ctx, r.db).Model(&Order{}).Where("order_number = ?", orderNumber).Count(&count).Error
	return count > 0, err
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	return r.first(database.Conn(ctx, r.db), "id = ?", id)
}

func (r *repository) GetByNumber(ctx context.Context, orderNumber string) (*Order, error) {
	return r.first(database.Conn(ctx, r.db), "order_number = ?", orderNumber)
}

func (r *repository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Order, error) {
	return r.first(database.Conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}), "id = ?", id)
}

func (r *repository) GetByNumberForUpdate(ctx context.Context, orderNumber string) (*Order, error) {
	return r.first(database.Conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}), "order_number = ?", orderNumber)
}

func (r *repository) first(q *gorm.DB, where string, arg interface{}) (*Order, error) {
	var order Order
	err := q.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("section, row, number") }).
		Preload("Payment").
		Where(where, arg).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) Update(ctx context.Context, order *Order) error {
	return database.Conn(ctx, r.db).Omit(clause.Associations).Save(order).Error
}

func (r *repository) UpdatePayment(ctx context.Context, payment *Payment) error {
	return database.Conn(ctx, r.db).Save(payment).Error
}

func (r *repository) DeactivateItems(ctx context.Context, orderID uuid.UUID) error {
	return database.Conn(ctx, r.db).Model(&OrderItem{}).
		Where("order_id = ? AND active", orderID).
		Update("active", false).Error
}

func (r *repository) ListDue(ctx context.Context, statuses []Status, now time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	q := database.Conn(ctx, r.db).Model(&Order{}).
		Where("status IN ? AND expires_at < ?", statuses, now).
		Order("expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Pluck("id", &ids).Error
	return ids, err
}

func (r *repository) List(ctx context.Context, query OrderListQuery) ([]Order, int64, error) {
	var orders []Order
	var totalCount int64

	if query.Page <= 0 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 20
	}

	baseQuery := database.Conn(ctx, r.db).Model(&Order{})
	if query.Status != "" {
		baseQuery = baseQuery.Where("status = ?", query.Status)
	}
	if query.EventID != "" {
		baseQuery = baseQuery.Where("event_id = ?", query.EventID)
	}

	if err := baseQuery.Count(&totalCount).Error; err != nil {
		return nil, 0, err
	}

	offset := (query.Page - 1) * query.Limit
	err := baseQuery.
		Preload("Items").
		Preload("Payment").
		Order("created_at DESC").
		Offset(offset).
		Limit(query.Limit).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, totalCount, nil
}
