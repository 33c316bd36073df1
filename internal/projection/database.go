package projection

import (
	"github.com/ksred/folio-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// ListTransactions returns the user's full trade history in replay order:
// timestamp ascending, ties broken by insertion order.
func (d *Database) ListTransactions(userID string) ([]types.Transaction, error) {
	var transactions []types.Transaction
	if err := d.db.Where("user_id = ?", userID).
		Order("timestamp ASC, id ASC").
		Find(&transactions).Error; err != nil {
		return nil, err
	}
	return transactions, nil
}

// ListActions returns the user's corporate action records in replay order.
func (d *Database) ListActions(userID string) ([]types.CorporateActionRecord, error) {
	var actions []types.CorporateActionRecord
	if err := d.db.Where("user_id = ?", userID).
		Order("timestamp ASC, id ASC").
		Find(&actions).Error; err != nil {
		return nil, err
	}
	return actions, nil
}

// GetHoldings returns the currently persisted holdings for a user.
func (d *Database) GetHoldings(userID string) ([]types.Holding, error) {
	var holdings []types.Holding
	if err := d.db.Where("user_id = ?", userID).Find(&holdings).Error; err != nil {
		return nil, err
	}
	return holdings, nil
}

// ReplaceHoldings overwrites the user's derived holdings in one transaction:
// closed symbols are removed, surviving symbols updated, new symbols created.
func (d *Database) ReplaceHoldings(userID string, holdings map[string]types.Holding) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var existing []types.Holding
	if err := tx.Where("user_id = ?", userID).Find(&existing).Error; err != nil {
		tx.Rollback()
		return err
	}

	pending := make(map[string]types.Holding, len(holdings))
	for symbol, holding := range holdings {
		pending[symbol] = holding
	}

	for _, row := range existing {
		updated, ok := pending[row.Symbol]
		if !ok {
			// Holdings are derived rows; remove them outright so the
			// unique (user_id, symbol) index lets a later buy reopen
			// the symbol. A soft-deleted row would block that insert.
			if err := tx.Unscoped().Delete(&row).Error; err != nil {
				tx.Rollback()
				return err
			}
			continue
		}
		row.Quantity = updated.Quantity
		row.AverageCost = updated.AverageCost
		if row.CurrentPrice.IsZero() {
			// Same default the projection applies: a row with no price
			// yet is valued at its average cost.
			row.CurrentPrice = updated.CurrentPrice
		}
		if err := tx.Save(&row).Error; err != nil {
			tx.Rollback()
			return err
		}
		delete(pending, row.Symbol)
	}

	for _, holding := range pending {
		holding := holding
		if err := tx.Create(&holding).Error; err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit().Error
}
