package database

import (
	"gorm.io/gorm"
)

// MigrateConstraints adds critical database constraints for concurrency control
func MigrateConstraints(db *gorm.DB) error {
	// A seat may be referenced by at most one live order line at a time
	err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS uniq_active_order_item_seat
		ON order_items (seat_id)
		WHERE active;
	`).Error
	if err != nil {
		return err
	}

	// currentHolds resynchronisation reads by session
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_seat_holds_session_event
		ON seat_holds (session_id, event_id);
	`).Error
	if err != nil {
		return err
	}

	// Sweeper scans due orders by status and deadline
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_orders_status_expires_at
		ON orders (status, expires_at);
	`).Error
	if err != nil {
		return err
	}

	return nil
}
