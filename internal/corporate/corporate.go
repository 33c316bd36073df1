package corporate

import (
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

// Service applies stock splits and rights issues. Each action is written
// twice on purpose: a ledger record so a full replay reconstructs the same
// position, and a direct holding overwrite for immediate consistency. Both
// writes commit atomically inside the user's lock.
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

// ApplySplit multiplies the holding quantity by ratio and divides the average
// cost by the same ratio, conserving quantity * averageCost.
func (s *Service) ApplySplit(userID, symbol string, ratio decimal.Decimal) (*types.Holding, error) {
	logger := log.With().
		Str("user_id", userID).
		Str("symbol", symbol).
		Str("service", "corporate").
		Logger()

	if !money.IsPositive(ratio) {
		return nil, types.InvalidArgumentf("split ratio must be positive, got %s", ratio)
	}

	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	holding, err := s.db.GetHolding(userID, symbol)
	if err != nil {
		return nil, &types.StorageError{Op: "load holding", Err: err}
	}
	if holding == nil {
		return nil, &types.HoldingNotFoundError{Symbol: symbol}
	}

	holding.Quantity = holding.Quantity.Mul(ratio)
	holding.AverageCost = holding.AverageCost.Div(ratio)

	record := &types.CorporateActionRecord{
		ActionID:             "ACT_" + uuid.New().String(),
		UserID:               userID,
		Symbol:               symbol,
		Kind:                 types.ActionSplit,
		Ratio:                ratio,
		Timestamp:            time.Now(),
		ResultingQuantity:    holding.Quantity,
		ResultingAverageCost: holding.AverageCost,
	}

	if err := s.db.ApplyAction(record, holding); err != nil {
		return nil, &types.StorageError{Op: "apply split", Err: err}
	}

	logger.Info().
		Str("action_id", record.ActionID).
		Str("ratio", ratio.String()).
		Str("new_quantity", holding.Quantity.String()).
		Str("new_average_cost", holding.AverageCost.String()).
		Msg("stock split applied")

	return holding, nil
}

// ApplyRightsIssue grants quantity/rightsRatio new shares at the subscription
// price and folds their cost into the average.
func (s *Service) ApplyRightsIssue(userID, symbol string, rightsRatio, newSharePrice decimal.Decimal) (*types.Holding, error) {
	logger := log.With().
		Str("user_id", userID).
		Str("symbol", symbol).
		Str("service", "corporate").
		Logger()

	if !money.IsPositive(rightsRatio) {
		return nil, types.InvalidArgumentf("rights ratio must be positive, got %s", rightsRatio)
	}
	if !money.IsPositive(newSharePrice) {
		return nil, types.InvalidArgumentf("new share price must be positive, got %s", newSharePrice)
	}

	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	holding, err := s.db.GetHolding(userID, symbol)
	if err != nil {
		return nil, &types.StorageError{Op: "load holding", Err: err}
	}
	if holding == nil {
		return nil, &types.HoldingNotFoundError{Symbol: symbol}
	}

	newShares := holding.Quantity.Div(rightsRatio)
	totalInvestment := holding.Quantity.Mul(holding.AverageCost).
		Add(newShares.Mul(newSharePrice))
	newQuantity := holding.Quantity.Add(newShares)

	holding.Quantity = newQuantity
	holding.AverageCost = totalInvestment.Div(newQuantity)

	record := &types.CorporateActionRecord{
		ActionID:             "ACT_" + uuid.New().String(),
		UserID:               userID,
		Symbol:               symbol,
		Kind:                 types.ActionRightsIssue,
		Ratio:                rightsRatio,
		NewSharePrice:        newSharePrice,
		Timestamp:            time.Now(),
		ResultingQuantity:    holding.Quantity,
		ResultingAverageCost: holding.AverageCost,
	}

	if err := s.db.ApplyAction(record, holding); err != nil {
		return nil, &types.StorageError{Op: "apply rights issue", Err: err}
	}

	logger.Info().
		Str("action_id", record.ActionID).
		Str("rights_ratio", rightsRatio.String()).
		Str("new_shares", newShares.String()).
		Str("new_quantity", holding.Quantity.String()).
		Str("new_average_cost", holding.AverageCost.String()).
		Msg("rights issue applied")

	return holding, nil
}

// ListActions returns the user's corporate action history.
func (s *Service) ListActions(userID, symbol string) ([]types.CorporateActionRecord, error) {
	actions, err := s.db.ListActions(userID, symbol)
	if err != nil {
		return nil, &types.StorageError{Op: "list corporate actions", Err: err}
	}
	return actions, nil
}

// GinHandlers contains HTTP handlers for corporate action endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// ApplySplitHandler handles POST requests to apply a stock split.
func (h *GinHandlers) ApplySplitHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("clientID")
		if userID == "" {
			response.Unauthorized(c, "Missing client ID")
			return
		}

		var req SplitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		holding, err := h.service.ApplySplit(userID, req.Symbol, req.Ratio)
		response.Handle(c, holding, err)
	}
}

// ApplyRightsIssueHandler handles POST requests to apply a rights issue.
func (h *GinHandlers) ApplyRightsIssueHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("clientID")
		if userID == "" {
			response.Unauthorized(c, "Missing client ID")
			return
		}

		var req RightsIssueRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		holding, err := h.service.ApplyRightsIssue(userID, req.Symbol, req.RightsRatio, req.NewSharePrice)
		response.Handle(c, holding, err)
	}
}

// ListActionsHandler handles GET requests for the corporate action history.
// Optional query parameter: symbol
func (h *GinHandlers) ListActionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("clientID")
		if userID == "" {
			response.Unauthorized(c, "Missing client ID")
			return
		}

		actions, err := h.service.ListActions(userID, c.Query("symbol"))
		response.Handle(c, actions, err)
	}
}
