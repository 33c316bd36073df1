package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ksred/folio-api/internal/config"
	"github.com/ksred/folio-api/internal/database"
	"github.com/ksred/folio-api/internal/locks"
	"github.com/ksred/folio-api/internal/money"
	"github.com/ksred/folio-api/internal/projection"
	"github.com/ksred/folio-api/internal/types"
)

// setupTestDB prepares an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to initialize test database")

	require.NoError(t, database.AutoMigrate(db), "failed to migrate schema")

	return db
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db := setupTestDB(t)
	userLocks := locks.New()
	projectionService := projection.NewService(db, userLocks)

	cfg := &config.Config{}
	cfg.Trading.DefaultCommissionRate = 0.0004

	return NewService(db, projectionService, userLocks, cfg), db
}

func d(s string) decimal.Decimal { return money.MustFromString(s) }

var baseTime = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func TestAppendBuy(t *testing.T) {
	service, db := newTestService(t)

	transaction, err := service.Append(&AppendRequest{
		UserID:    "user-1",
		Symbol:    "THYAO",
		Side:      "BUY",
		Quantity:  d("100"),
		Price:     d("250.50"),
		Timestamp: baseTime,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, transaction.TransactionID)
	assert.True(t, transaction.GrossAmount.Equal(d("25050")), "gross: got %s", transaction.GrossAmount)
	assert.True(t, transaction.Commission.Equal(d("10.02")), "commission: got %s", transaction.Commission)

	// Append triggers a full recompute: the derived holding exists already.
	var holding types.Holding
	require.NoError(t, db.Where("user_id = ? AND symbol = ?", "user-1", "THYAO").First(&holding).Error)
	assert.True(t, holding.Quantity.Equal(d("100")))
	assert.True(t, holding.AverageCost.Equal(d("250.6002")), "average cost: got %s", holding.AverageCost)
}

func TestAppendRejectsOversell(t *testing.T) {
	service, db := newTestService(t)

	_, err := service.Append(&AppendRequest{
		UserID:    "user-1",
		Symbol:    "THYAO",
		Side:      "BUY",
		Quantity:  d("100"),
		Price:     d("250.50"),
		Timestamp: baseTime,
	})
	require.NoError(t, err)

	_, err = service.Append(&AppendRequest{
		UserID:    "user-1",
		Symbol:    "THYAO",
		Side:      "SELL",
		Quantity:  d("150"),
		Price:     d("265.00"),
		Timestamp: baseTime.Add(time.Hour),
	})
	require.Error(t, err)

	var insufficient *types.InsufficientHoldingsError
	require.True(t, errors.As(err, &insufficient), "expected InsufficientHoldingsError, got %v", err)
	assert.Equal(t, "THYAO", insufficient.Symbol)
	assert.True(t, insufficient.Requested.Equal(d("150")))
	assert.True(t, insufficient.Available.Equal(d("100")))

	// The rejected sell must leave the ledger and holdings unchanged.
	var transactionCount int64
	require.NoError(t, db.Model(&types.Transaction{}).Where("user_id = ?", "user-1").Count(&transactionCount).Error)
	assert.EqualValues(t, 1, transactionCount)

	var holding types.Holding
	require.NoError(t, db.Where("user_id = ? AND symbol = ?", "user-1", "THYAO").First(&holding).Error)
	assert.True(t, holding.Quantity.Equal(d("100")))
}

func TestAppendSellAgainstUnknownSymbol(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.Append(&AppendRequest{
		UserID:   "user-1",
		Symbol:   "GARAN",
		Side:     "SELL",
		Quantity: d("1"),
		Price:    d("10"),
	})

	var insufficient *types.InsufficientHoldingsError
	require.True(t, errors.As(err, &insufficient), "expected InsufficientHoldingsError, got %v", err)
	assert.True(t, insufficient.Available.IsZero())
}

func TestAppendPartialSellKeepsAverageCost(t *testing.T) {
	service, db := newTestService(t)

	_, err := service.Append(&AppendRequest{
		UserID:    "user-1",
		Symbol:    "THYAO",
		Side:      "BUY",
		Quantity:  d("100"),
		Price:     d("250.50"),
		Timestamp: baseTime,
	})
	require.NoError(t, err)

	_, err = service.Append(&AppendRequest{
		UserID:    "user-1",
		Symbol:    "THYAO",
		Side:      "SELL",
		Quantity:  d("50"),
		Price:     d("265.00"),
		Timestamp: baseTime.Add(time.Hour),
	})
	require.NoError(t, err)

	var holding types.Holding
	require.NoError(t, db.Where("user_id = ? AND symbol = ?", "user-1", "THYAO").First(&holding).Error)
	assert.True(t, holding.Quantity.Equal(d("50")))
	// A sell shrinks quantity and total cost proportionally; the average
	// cost does not move.
	assert.True(t, holding.AverageCost.Equal(d("250.6002")), "average cost: got %s", holding.AverageCost)
}

func TestAppendValidation(t *testing.T) {
	service, _ := newTestService(t)

	testCases := []struct {
		name string
		req  AppendRequest
	}{
		{
			name: "unknown side",
			req:  AppendRequest{UserID: "user-1", Symbol: "THYAO", Side: "HOLD", Quantity: d("1"), Price: d("1")},
		},
		{
			name: "zero quantity",
			req:  AppendRequest{UserID: "user-1", Symbol: "THYAO", Side: "BUY", Quantity: d("0"), Price: d("1")},
		},
		{
			name: "negative price",
			req:  AppendRequest{UserID: "user-1", Symbol: "THYAO", Side: "BUY", Quantity: d("1"), Price: d("-1")},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.Append(&tc.req)
			assert.True(t, errors.Is(err, types.ErrInvalidArgument), "expected ErrInvalidArgument, got %v", err)
		})
	}
}

func TestDeleteReprojects(t *testing.T) {
	service, db := newTestService(t)

	first, err := service.Append(&AppendRequest{
		UserID:    "user-1",
		Symbol:    "THYAO",
		Side:      "BUY",
		Quantity:  d("100"),
		Price:     d("250.50"),
		Timestamp: baseTime,
	})
	require.NoError(t, err)

	_, err = service.Append(&AppendRequest{
		UserID:    "user-1",
		Symbol:    "THYAO",
		Side:      "BUY",
		Quantity:  d("50"),
		Price:     d("200.00"),
		Timestamp: baseTime.Add(time.Hour),
	})
	require.NoError(t, err)

	require.NoError(t, service.Delete(first.TransactionID, "user-1"))

	// Only the second buy remains in the derived holding.
	var holding types.Holding
	require.NoError(t, db.Where("user_id = ? AND symbol = ?", "user-1", "THYAO").First(&holding).Error)
	assert.True(t, holding.Quantity.Equal(d("50")))
	assert.True(t, holding.AverageCost.Equal(d("200.08")), "average cost: got %s", holding.AverageCost)
}

func TestDeleteMissingTransaction(t *testing.T) {
	service, _ := newTestService(t)

	err := service.Delete("TXN_does-not-exist", "user-1")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestListOrdersByTimestampThenInsertion(t *testing.T) {
	service, _ := newTestService(t)

	// Entered out of chronological order, plus a timestamp tie.
	_, err := service.Append(&AppendRequest{
		UserID: "user-1", Symbol: "THYAO", Side: "BUY",
		Quantity: d("10"), Price: d("10"), Timestamp: baseTime.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	_, err = service.Append(&AppendRequest{
		UserID: "user-1", Symbol: "THYAO", Side: "BUY",
		Quantity: d("20"), Price: d("10"), Timestamp: baseTime,
	})
	require.NoError(t, err)
	_, err = service.Append(&AppendRequest{
		UserID: "user-1", Symbol: "THYAO", Side: "BUY",
		Quantity: d("30"), Price: d("10"), Timestamp: baseTime,
	})
	require.NoError(t, err)

	transactions, err := service.List("user-1", "")
	require.NoError(t, err)
	require.Len(t, transactions, 3)

	assert.True(t, transactions[0].Quantity.Equal(d("20")))
	assert.True(t, transactions[1].Quantity.Equal(d("30")))
	assert.True(t, transactions[2].Quantity.Equal(d("10")))
}

func TestListFiltersBySymbol(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.Append(&AppendRequest{
		UserID: "user-1", Symbol: "THYAO", Side: "BUY",
		Quantity: d("10"), Price: d("10"), Timestamp: baseTime,
	})
	require.NoError(t, err)
	_, err = service.Append(&AppendRequest{
		UserID: "user-1", Symbol: "AKBNK", Side: "BUY",
		Quantity: d("20"), Price: d("10"), Timestamp: baseTime,
	})
	require.NoError(t, err)

	transactions, err := service.List("user-1", "AKBNK")
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	assert.Equal(t, "AKBNK", transactions[0].Symbol)
}

func TestAppendAfterFullExit(t *testing.T) {
	service, db := newTestService(t)

	_, err := service.Append(&AppendRequest{
		UserID: "user-1", Symbol: "THYAO", Side: "BUY",
		Quantity: d("100"), Price: d("250.50"), Timestamp: baseTime,
	})
	require.NoError(t, err)
	_, err = service.Append(&AppendRequest{
		UserID: "user-1", Symbol: "THYAO", Side: "SELL",
		Quantity: d("100"), Price: d("265.00"), Timestamp: baseTime.Add(time.Hour),
	})
	require.NoError(t, err)

	// Buying the symbol back after a full exit is an ordinary trade and
	// must leave exactly one live holding row.
	_, err = service.Append(&AppendRequest{
		UserID: "user-1", Symbol: "THYAO", Side: "BUY",
		Quantity: d("50"), Price: d("260.00"), Timestamp: baseTime.Add(2 * time.Hour),
	})
	require.NoError(t, err)

	var holding types.Holding
	require.NoError(t, db.Where("user_id = ? AND symbol = ?", "user-1", "THYAO").First(&holding).Error)
	assert.True(t, holding.Quantity.Equal(d("50")))
}
