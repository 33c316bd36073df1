package projection

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ksred/folio-api/internal/database"
	"github.com/ksred/folio-api/internal/locks"
	"github.com/ksred/folio-api/internal/money"
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

func d(s string) decimal.Decimal { return money.MustFromString(s) }

var baseTime = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func seedTransaction(t *testing.T, db *gorm.DB, userID, symbol, side, quantity, price, commission string, ts time.Time) {
	t.Helper()

	q := d(quantity)
	p := d(price)
	tx := &types.Transaction{
		TransactionID: "TXN_" + userID + "_" + symbol + "_" + side + "_" + ts.Format("150405"),
		UserID:        userID,
		Symbol:        symbol,
		Side:          side,
		Quantity:      q,
		Price:         p,
		GrossAmount:   q.Mul(p),
		Commission:    d(commission),
		Timestamp:     ts,
	}
	require.NoError(t, db.Create(tx).Error)
}

func seedAction(t *testing.T, db *gorm.DB, userID, symbol, kind, ratio, newSharePrice string, ts time.Time) {
	t.Helper()

	record := &types.CorporateActionRecord{
		ActionID:      "ACT_" + symbol + "_" + ts.Format("150405"),
		UserID:        userID,
		Symbol:        symbol,
		Kind:          kind,
		Ratio:         d(ratio),
		NewSharePrice: d(newSharePrice),
		Timestamp:     ts,
	}
	require.NoError(t, db.Create(record).Error)
}

func TestProjectEndToEnd(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db, locks.New())

	// Buy 100 THYAO at 250.50 with 4bp commission, buy 500 AKBNK at 45.75,
	// sell 50 THYAO at 265.00.
	seedTransaction(t, db, "user-1", "THYAO", types.SideBuy, "100", "250.50", "10.02", baseTime)
	seedTransaction(t, db, "user-1", "AKBNK", types.SideBuy, "500", "45.75", "0", baseTime.Add(time.Hour))
	seedTransaction(t, db, "user-1", "THYAO", types.SideSell, "50", "265.00", "5.30", baseTime.Add(2*time.Hour))

	holdings, anomalies, err := service.Project("user-1")
	require.NoError(t, err)
	assert.Empty(t, anomalies)
	require.Len(t, holdings, 2)

	thyao := holdings["THYAO"]
	assert.True(t, thyao.Quantity.Equal(d("50")), "quantity: got %s", thyao.Quantity)
	// Buy-side commission is amortized: (25050 + 10.02) / 100 = 250.6002,
	// and a partial sell leaves average cost unchanged.
	assert.True(t, thyao.AverageCost.Equal(d("250.6002")), "average cost: got %s", thyao.AverageCost)

	akbnk := holdings["AKBNK"]
	assert.True(t, akbnk.Quantity.Equal(d("500")), "quantity: got %s", akbnk.Quantity)
	assert.True(t, akbnk.AverageCost.Equal(d("45.75")), "average cost: got %s", akbnk.AverageCost)

	// The derived rows are persisted.
	var count int64
	require.NoError(t, db.Model(&types.Holding{}).Where("user_id = ?", "user-1").Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestProjectIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db, locks.New())

	seedTransaction(t, db, "user-1", "THYAO", types.SideBuy, "100", "250.50", "10.02", baseTime)
	seedTransaction(t, db, "user-1", "THYAO", types.SideSell, "30", "260.00", "0", baseTime.Add(time.Hour))

	first, _, err := service.Project("user-1")
	require.NoError(t, err)
	second, _, err := service.Project("user-1")
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for symbol, holding := range first {
		again := second[symbol]
		assert.True(t, holding.Quantity.Equal(again.Quantity), "%s quantity drifted", symbol)
		assert.True(t, holding.AverageCost.Equal(again.AverageCost), "%s average cost drifted", symbol)
	}

	var count int64
	require.NoError(t, db.Model(&types.Holding{}).Where("user_id = ?", "user-1").Count(&count).Error)
	assert.EqualValues(t, 1, count, "re-projection must not duplicate holding rows")
}

func TestProjectSkipsInconsistentSells(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db, locks.New())

	// A sell with no prior position and an oversized sell: both are
	// tolerated, skipped, and reported.
	seedTransaction(t, db, "user-1", "GARAN", types.SideSell, "10", "100", "0", baseTime)
	seedTransaction(t, db, "user-1", "THYAO", types.SideBuy, "100", "250.50", "0", baseTime.Add(time.Hour))
	seedTransaction(t, db, "user-1", "THYAO", types.SideSell, "150", "260.00", "0", baseTime.Add(2*time.Hour))

	holdings, anomalies, err := service.Project("user-1")
	require.NoError(t, err)

	require.Len(t, anomalies, 2)
	assert.Equal(t, "GARAN", anomalies[0].Symbol)
	assert.True(t, anomalies[0].Available.IsZero())
	assert.Equal(t, "THYAO", anomalies[1].Symbol)
	assert.True(t, anomalies[1].Requested.Equal(d("150")))
	assert.True(t, anomalies[1].Available.Equal(d("100")))

	// The skipped sells leave the position untouched.
	thyao := holdings["THYAO"]
	assert.True(t, thyao.Quantity.Equal(d("100")), "quantity: got %s", thyao.Quantity)
	_, exists := holdings["GARAN"]
	assert.False(t, exists)
}

func TestProjectAppliesSplit(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db, locks.New())

	seedTransaction(t, db, "user-1", "THYAO", types.SideBuy, "100", "10", "0", baseTime)
	seedAction(t, db, "user-1", "THYAO", types.ActionSplit, "2", "0", baseTime.Add(time.Hour))

	holdings, _, err := service.Project("user-1")
	require.NoError(t, err)

	thyao := holdings["THYAO"]
	assert.True(t, thyao.Quantity.Equal(d("200")), "quantity: got %s", thyao.Quantity)
	assert.True(t, thyao.AverageCost.Equal(d("5")), "average cost: got %s", thyao.AverageCost)

	// quantity * averageCost is invariant under a pure split.
	assert.True(t, thyao.Quantity.Mul(thyao.AverageCost).Equal(d("1000")))
}

func TestProjectAppliesRightsIssue(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db, locks.New())

	// 1000 shares at 10.00; a 0.25 rights ratio grants 4000 new shares at
	// 5.00, for 5000 shares at an average of 6.00.
	seedTransaction(t, db, "user-1", "THYAO", types.SideBuy, "1000", "10", "0", baseTime)
	seedAction(t, db, "user-1", "THYAO", types.ActionRightsIssue, "0.25", "5", baseTime.Add(time.Hour))

	holdings, _, err := service.Project("user-1")
	require.NoError(t, err)

	thyao := holdings["THYAO"]
	assert.True(t, thyao.Quantity.Equal(d("5000")), "quantity: got %s", thyao.Quantity)
	assert.True(t, thyao.AverageCost.Equal(d("6")), "average cost: got %s", thyao.AverageCost)
}

func TestProjectRemovesClosedPositions(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db, locks.New())

	seedTransaction(t, db, "user-1", "THYAO", types.SideBuy, "100", "250.50", "10.02", baseTime)

	holdings, _, err := service.Project("user-1")
	require.NoError(t, err)
	require.Len(t, holdings, 1)

	// Full exit closes the position: the holding row is removed, not kept
	// at zero.
	seedTransaction(t, db, "user-1", "THYAO", types.SideSell, "100", "260.00", "0", baseTime.Add(time.Hour))

	holdings, _, err = service.Project("user-1")
	require.NoError(t, err)
	assert.Empty(t, holdings)

	var count int64
	require.NoError(t, db.Model(&types.Holding{}).Where("user_id = ?", "user-1").Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestProjectReopensClosedPosition(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db, locks.New())

	// Buy, fully exit, then buy the same symbol again: an ordinary history
	// that must project cleanly every time.
	seedTransaction(t, db, "user-1", "THYAO", types.SideBuy, "100", "250.50", "10.02", baseTime)
	seedTransaction(t, db, "user-1", "THYAO", types.SideSell, "100", "265.00", "5.30", baseTime.Add(time.Hour))

	holdings, _, err := service.Project("user-1")
	require.NoError(t, err)
	assert.Empty(t, holdings)

	seedTransaction(t, db, "user-1", "THYAO", types.SideBuy, "50", "260.00", "5.20", baseTime.Add(2*time.Hour))

	holdings, anomalies, err := service.Project("user-1")
	require.NoError(t, err)
	assert.Empty(t, anomalies)
	require.Contains(t, holdings, "THYAO")
	assert.True(t, holdings["THYAO"].Quantity.Equal(d("50")))
	assert.True(t, holdings["THYAO"].AverageCost.Equal(d("260.104")),
		"average cost: got %s", holdings["THYAO"].AverageCost)

	// Exactly one row for the reopened symbol, with no leftover closed row
	// hiding behind the unique (user_id, symbol) index.
	var count int64
	require.NoError(t, db.Unscoped().Model(&types.Holding{}).
		Where("user_id = ? AND symbol = ?", "user-1", "THYAO").
		Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestProjectBackfillsZeroStoredPrice(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db, locks.New())

	seedTransaction(t, db, "user-1", "THYAO", types.SideBuy, "100", "250.50", "10.02", baseTime)
	require.NoError(t, db.Create(&types.Holding{
		UserID:      "user-1",
		Symbol:      "THYAO",
		Quantity:    d("100"),
		AverageCost: d("250.6002"),
	}).Error)

	// A surviving row with no price yet gets the same average-cost default
	// the response uses, so the stored row and the response agree.
	holdings, _, err := service.Project("user-1")
	require.NoError(t, err)
	assert.True(t, holdings["THYAO"].CurrentPrice.Equal(d("250.6002")))

	var stored types.Holding
	require.NoError(t, db.Where("user_id = ? AND symbol = ?", "user-1", "THYAO").First(&stored).Error)
	assert.True(t, stored.CurrentPrice.Equal(d("250.6002")),
		"stored price: got %s", stored.CurrentPrice)
}

func TestProjectPreservesCurrentPrice(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db, locks.New())

	seedTransaction(t, db, "user-1", "THYAO", types.SideBuy, "100", "250.50", "0", baseTime)

	holdings, _, err := service.Project("user-1")
	require.NoError(t, err)
	// A fresh symbol starts valued at its average cost.
	assert.True(t, holdings["THYAO"].CurrentPrice.Equal(d("250.50")))

	// The price refresher wrote a newer price; re-projection must keep it.
	require.NoError(t, db.Model(&types.Holding{}).
		Where("user_id = ? AND symbol = ?", "user-1", "THYAO").
		Update("current_price", d("265.40")).Error)

	seedTransaction(t, db, "user-1", "THYAO", types.SideBuy, "50", "255.00", "0", baseTime.Add(time.Hour))

	holdings, _, err = service.Project("user-1")
	require.NoError(t, err)

	var row types.Holding
	require.NoError(t, db.Where("user_id = ? AND symbol = ?", "user-1", "THYAO").First(&row).Error)
	assert.True(t, row.CurrentPrice.Equal(d("265.40")), "current price: got %s", row.CurrentPrice)
	assert.True(t, row.Quantity.Equal(d("150")))
}

func TestProjectBreaksTimestampTiesByInsertionOrder(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db, locks.New())

	// Buy and sell share a timestamp; the buy was inserted first so the
	// sell is valid.
	seedTransaction(t, db, "user-1", "THYAO", types.SideBuy, "100", "10", "0", baseTime)
	seedTransaction(t, db, "user-1", "THYAO", types.SideSell, "40", "12", "0", baseTime)

	holdings, anomalies, err := service.Project("user-1")
	require.NoError(t, err)
	assert.Empty(t, anomalies)
	assert.True(t, holdings["THYAO"].Quantity.Equal(d("60")))
}

func TestProjectIsolatesUsers(t *testing.T) {
	db := setupTestDB(t)
	service := NewService(db, locks.New())

	seedTransaction(t, db, "user-1", "THYAO", types.SideBuy, "100", "10", "0", baseTime)
	seedTransaction(t, db, "user-2", "THYAO", types.SideBuy, "7", "10", "0", baseTime)

	holdings, _, err := service.Project("user-1")
	require.NoError(t, err)
	assert.True(t, holdings["THYAO"].Quantity.Equal(d("100")))

	holdings, _, err = service.Project("user-2")
	require.NoError(t, err)
	assert.True(t, holdings["THYAO"].Quantity.Equal(d("7")))
}
