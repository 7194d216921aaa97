package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"boxoffice/internal/events"
	"boxoffice/internal/orders"
	"boxoffice/internal/seats"
	"boxoffice/internal/shared/database"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	defaultTestDBURL       = "host=localhost port=5432 user=boxoffice_user password=boxoffice_password dbname=boxoffice_test sslmode=disable"
	testDBLockID     int64 = 73310517
)

// OpenPostgres connects to TEST_DATABASE_URL, migrates every model and holds
// an advisory lock for the test's lifetime. The test is skipped when no
// database is reachable.
func OpenPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		dsn = defaultTestDBURL
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Skipf("skipping Postgres integration tests: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		t.Skipf("skipping Postgres integration tests: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	conn, err := sqlDB.Conn(context.Background())
	if err != nil {
		t.Fatalf("acquire lock conn: %v", err)
	}
	if _, err := conn.ExecContext(context.Background(), `SELECT pg_advisory_lock($1)`, testDBLockID); err != nil {
		conn.Close()
		t.Fatalf("acquire test lock: %v", err)
	}
	t.Cleanup(func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, testDBLockID)
		conn.Close()
	})

	if err := database.Migrate(db, Models()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.Exec(`TRUNCATE payments, order_items, orders, seat_holds, seats, events`).Error; err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return db
}

// Models lists every table the service owns.
func Models() []interface{} {
	models := []interface{}{&events.Event{}, &seats.Seat{}, &seats.SeatHold{}}
	return append(models, orders.Models()...)
}
