package db

import (
	"github.com/sirupsen/logrus"

	"gorm.io/driver/mysql" // MySQL driver for GORM
	"gorm.io/gorm"         // GORM ORM library

	"predictpro/internal/domain"
	"predictpro/internal/settings"
)

// Models is every persisted collection, in one place so the server and the
// migrate command cannot drift apart.
func Models() []any {
	return []any{
		&domain.User{},
		&domain.InventoryItem{},
		&domain.Referral{},
		&domain.Voucher{},
		&domain.ActivityEntry{},
		&settings.Document{},
	}
}

// Migrate performs automatic migration for the database schema
func Migrate(dsn string) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		logrus.Fatalf("failed to connect database: %v", err)
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		logrus.Fatalf("migration failed: %v", err)
	}
	logrus.Info("Migration completed.")
}
