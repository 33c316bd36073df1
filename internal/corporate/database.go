package corporate

import (
	"errors"

	"github.com/ksred/folio-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) GetHolding(userID, symbol string) (*types.Holding, error) {
	var holding types.Holding
	if err := d.db.Where("user_id = ? AND symbol = ?", userID, symbol).
		First(&holding).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &holding, nil
}

// ApplyAction persists the corporate action record and the adjusted holding
// as a single atomic unit. A reader must never observe one without the other.
func (d *Database) ApplyAction(record *types.CorporateActionRecord, holding *types.Holding) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(record).Error; err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Save(holding).Error; err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

// ListActions returns the user's corporate action records, newest first,
// optionally filtered to one symbol.
func (d *Database) ListActions(userID, symbol string) ([]types.CorporateActionRecord, error) {
	query := d.db.Where("user_id = ?", userID)
	if symbol != "" {
		query = query.Where("symbol = ?", symbol)
	}

	var actions []types.CorporateActionRecord
	if err := query.Order("timestamp DESC").Find(&actions).Error; err != nil {
		return nil, err
	}
	return actions, nil
}
