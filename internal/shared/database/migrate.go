package database

import (
	"gorm.io/gorm"
)

// Migrate creates or updates the tables for the given models, then applies the
// constraints gorm tags cannot express.
func Migrate(db *gorm.DB, models ...interface{}) error {
	if err := db.AutoMigrate(models...); err != nil {
		return err
	}
	return MigrateConstraints(db)
}
