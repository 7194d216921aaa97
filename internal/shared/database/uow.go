package database

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Transactor runs fn inside one atomic unit of work. Nested calls join the
// transaction already carried by ctx.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

// UnitOfWork is the gorm-backed Transactor. Every transaction is bounded by timeout.
type UnitOfWork struct {
	db      *gorm.DB
	timeout time.Duration
}

func NewUnitOfWork(db *gorm.DB, timeout time.Duration) *UnitOfWork {
	return &UnitOfWork{db: db, timeout: timeout}
}

func (u *UnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// TxFromContext returns the transaction carried by ctx, if any.
func TxFromContext(ctx context.Context) *gorm.DB {
	tx, _ := ctx.Value(txKey{}).(*gorm.DB)
	return tx
}

// Conn returns the transaction carried by ctx, falling back to db bound to ctx.
func Conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return db.WithContext(ctx)
}
