package dividend

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ksred/folio-api/internal/locks"
	"github.com/ksred/folio-api/internal/money"
	"github.com/ksred/folio-api/internal/types"
	"github.com/ksred/folio-api/pkg/response"
)

// Service records dividend receipts against a snapshot of the holding
// quantity at payment time. Dividends never touch quantity or cost basis.
type Service struct {
	db    *Database
	locks *locks.UserLocks
}

func NewService(gormDB *gorm.DB, userLocks *locks.UserLocks) *Service {
	return &Service{
		db:    NewDatabase(gormDB),
		locks: userLocks,
	}
}

// Record appends a dividend receipt. A dividend for a since-sold position is
// valid: the snapshot quantity and per-unit amount are simply zero.
func (s *Service) Record(userID, symbol string, totalAmount decimal.Decimal, paidAt time.Time) (*types.Dividend, error) {
	if !money.IsPositive(totalAmount) {
		return nil, types.InvalidArgumentf("dividend amount must be positive, got %s", totalAmount)
	}
	if paidAt.IsZero() {
		paidAt = time.Now()
	}

	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	quantity, err := s.db.GetHoldingQuantity(userID, symbol)
	if err != nil {
		return nil, &types.StorageError{Op: "load holding", Err: err}
	}

	perUnit := decimal.Zero
	if money.IsPositive(quantity) {
		perUnit = totalAmount.Div(quantity)
	}

	record := &types.Dividend{
		DividendID:        "DIV_" + uuid.New().String(),
		UserID:            userID,
		Symbol:            symbol,
		TotalAmount:       totalAmount,
		QuantityAtPayment: quantity,
		PerUnitAmount:     perUnit,
		PaidAt:            paidAt,
	}

	if err := s.db.CreateDividend(record); err != nil {
		return nil, &types.StorageError{Op: "record dividend", Err: err}
	}

	log.Info().
		Str("dividend_id", record.DividendID).
		Str("user_id", userID).
		Str("symbol", symbol).
		Str("total_amount", totalAmount.String()).
		Str("quantity_at_payment", quantity.String()).
		Str("service", "dividend").
		Msg("dividend recorded")

	return record, nil
}

// List returns the user's dividend history, newest first.
func (s *Service) List(userID, symbol string) ([]types.Dividend, error) {
	dividends, err := s.db.ListDividends(userID, symbol)
	if err != nil {
		return nil, &types.StorageError{Op: "list dividends", Err: err}
	}
	return dividends, nil
}

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateDividend(dividend *types.Dividend) error {
	return d.db.Create(dividend).Error
}

// GetHoldingQuantity returns the current projected quantity for a symbol,
// zero if the position is closed or was never opened.
func (d *Database) GetHoldingQuantity(userID, symbol string) (decimal.Decimal, error) {
	var holding types.Holding
	if err := d.db.Where("user_id = ? AND symbol = ?", userID, symbol).
		First(&holding).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return holding.Quantity, nil
}

func (d *Database) ListDividends(userID, symbol string) ([]types.Dividend, error) {
	query := d.db.Where("user_id = ?", userID)
	if symbol != "" {
		query = query.Where("symbol = ?", symbol)
	}

	var dividends []types.Dividend
	if err := query.Order("paid_at DESC").Find(&dividends).Error; err != nil {
		return nil, err
	}
	return dividends, nil
}

// GinHandlers contains HTTP handlers for dividend endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// RecordRequest is the request body for recording a dividend receipt.
type RecordRequest struct {
	Symbol      string          `json:"symbol" binding:"required"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	PaidAt      time.Time       `json:"paid_at,omitempty"`
}

// RecordDividendHandler handles POST requests to record a dividend.
func (h *GinHandlers) RecordDividendHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("clientID")
		if userID == "" {
			response.Unauthorized(c, "Missing client ID")
			return
		}

		var req RecordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		dividend, err := h.service.Record(userID, req.Symbol, req.TotalAmount, req.PaidAt)
		response.Handle(c, dividend, err)
	}
}

// ListDividendsHandler handles GET requests for the dividend history.
// Optional query parameter: symbol
func (h *GinHandlers) ListDividendsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("clientID")
		if userID == "" {
			response.Unauthorized(c, "Missing client ID")
			return
		}

		dividends, err := h.service.List(userID, c.Query("symbol"))
		response.Handle(c, dividends, err)
	}
}
