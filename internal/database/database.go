package database

import (
	"fmt"

	"github.com/ksred/folio-api/internal/config"
	"github.com/ksred/folio-api/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// AutoMigrate creates or updates the schema for all portfolio entities.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.Transaction{},
		&types.Holding{},
		&types.Dividend{},
		&types.CorporateActionRecord{},
	)
}
