package ledger

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

func (d *Database) CreateTransaction(transaction *types.Transaction) error {
	return d.db.Create(transaction).Error
}

func (d *Database) GetTransaction(transactionID, userID string) (*types.Transaction, error) {
	var transaction types.Transaction
	if err := d.db.Where("transaction_id = ? AND user_id = ?", transactionID, userID).
		First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &transaction, nil
}

// ListTransactions returns the user's trades ordered by (timestamp, id)
// ascending, optionally filtered to one symbol.
func (d *Database) ListTransactions(userID, symbol string) ([]types.Transaction, error) {
	query := d.db.Where("user_id = ?", userID)
	if symbol != "" {
		query = query.Where("symbol = ?", symbol)
	}

	var transactions []types.Transaction
	if err := query.Order("timestamp ASC, id ASC").Find(&transactions).Error; err != nil {
		return nil, err
	}
	return transactions, nil
}

func (d *Database) DeleteTransaction(transactionID, userID string) error {
	result := d.db.Where("transaction_id = ? AND user_id = ?", transactionID, userID).
		Delete(&types.Transaction{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
