// Package datastore opens the database connection and owns schema migration.
package datastore

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	"github.com/opsdeck/opsdeck/internal/conf"
	"github.com/opsdeck/opsdeck/internal/datastore/entities"
)

// Open connects to the configured database and runs migrations.
func Open(settings *conf.DatabaseSettings) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch settings.Dialect {
	case "sqlite":
		dialector = sqlite.Open(settings.DSN)
	case "mysql":
		dialector = mysql.Open(settings.DSN)
	default:
		return nil, fmt.Errorf("unsupported database dialect %q", settings.Dialect)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gorm_logger.Default.LogMode(gorm_logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", settings.Dialect, err)
	}

	if settings.Dialect == "sqlite" {
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the schema for every entity.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&entities.User{},
		&entities.NotificationTemplate{},
		&entities.AlertCondition{},
		&entities.AlertEvent{},
		&entities.CommandGroup{},
		&entities.CommandRule{},
		&entities.CommandPattern{},
		&entities.CommandMatch{},
		&entities.SystemMetric{},
		&entities.AuthLog{},
		&entities.SystemLog{},
		&entities.ActivityLog{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database schema: %w", err)
	}
	return nil
}
