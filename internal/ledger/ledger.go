package ledger

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ksred/folio-api/internal/config"
	"github.com/ksred/folio-api/internal/locks"
	"github.com/ksred/folio-api/internal/money"
	"github.com/ksred/folio-api/internal/projection"
	"github.com/ksred/folio-api/internal/settlement"
	"github.com/ksred/folio-api/internal/types"
	"github.com/ksred/folio-api/pkg/response"
)

// Service is the gatekeeper of the append-only transaction log. Sells are
// re-validated against a fresh projection at commit time, inside the user's
// lock, because the projection can change between a client-side preview and
// the commit.
type Service struct {
	db                    *Database
	projection            *projection.Service
	locks                 *locks.UserLocks
	defaultCommissionRate decimal.Decimal
}

func NewService(gormDB *gorm.DB, projectionService *projection.Service, userLocks *locks.UserLocks, cfg *config.Config) *Service {
	return &Service{
		db:                    NewDatabase(gormDB),
		projection:            projectionService,
		locks:                 userLocks,
		defaultCommissionRate: money.FromFloat(cfg.Trading.DefaultCommissionRate),
	}
}

// Append validates, persists and re-projects a trade. The returned
// transaction carries the store-assigned id and settled amounts.
func (s *Service) Append(req *AppendRequest) (*types.Transaction, error) {
	logger := log.With().
		Str("user_id", req.UserID).
		Str("symbol", req.Symbol).
		Str("side", req.Side).
		Str("service", "ledger").
		Logger()

	side := strings.ToUpper(req.Side)
	if side != types.SideBuy && side != types.SideSell {
		return nil, types.InvalidArgumentf("side must be BUY or SELL, got %q", req.Side)
	}

	commissionRate := s.defaultCommissionRate
	if req.CommissionRate != nil {
		commissionRate = *req.CommissionRate
	}

	// The buy settlement arithmetic doubles as the validation for both
	// sides: quantity, price and commission rate preconditions are the same.
	breakdown, err := settlement.ComputeBuy(req.Quantity, req.Price, commissionRate)
	if err != nil {
		return nil, err
	}

	timestamp := req.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	s.locks.Lock(req.UserID)
	defer s.locks.Unlock(req.UserID)

	if side == types.SideSell {
		holdings, _, err := s.projection.Project(req.UserID)
		if err != nil {
			return nil, err
		}
		holding, ok := holdings[req.Symbol]
		available := decimal.Zero
		if ok {
			available = holding.Quantity
		}
		if req.Quantity.GreaterThan(available) {
			logger.Warn().
				Str("requested", req.Quantity.String()).
				Str("available", available.String()).
				Msg("rejecting oversell at commit time")
			return nil, &types.InsufficientHoldingsError{
				Symbol:    req.Symbol,
				Requested: req.Quantity,
				Available: available,
			}
		}
	}

	transaction := &types.Transaction{
		TransactionID: "TXN_" + uuid.New().String(),
		UserID:        req.UserID,
		Symbol:        req.Symbol,
		Side:          side,
		Quantity:      req.Quantity,
		Price:         req.Price,
		GrossAmount:   breakdown.GrossAmount,
		Commission:    breakdown.Commission,
		Timestamp:     timestamp,
		Note:          req.Note,
	}

	if err := s.db.CreateTransaction(transaction); err != nil {
		return nil, &types.StorageError{Op: "append transaction", Err: err}
	}

	// Holdings stay in sync with the log: every append is followed by a
	// full recompute before the lock is released.
	if _, _, err := s.projection.Project(req.UserID); err != nil {
		return nil, err
	}

	logger.Info().
		Str("transaction_id", transaction.TransactionID).
		Str("quantity", transaction.Quantity.String()).
		Str("price", transaction.Price.String()).
		Msg("transaction appended")

	return transaction, nil
}

// List returns the user's trades in replay order, optionally for one symbol.
func (s *Service) List(userID, symbol string) ([]types.Transaction, error) {
	transactions, err := s.db.ListTransactions(userID, symbol)
	if err != nil {
		return nil, &types.StorageError{Op: "list transactions", Err: err}
	}
	return transactions, nil
}

// Delete removes a transaction and re-projects the user's holdings.
// Deletion alone is not consistency-preserving, so the recompute is
// mandatory and happens under the same lock.
func (s *Service) Delete(transactionID, userID string) error {
	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	if err := s.db.DeleteTransaction(transactionID, userID); err != nil {
		return err
	}

	if _, _, err := s.projection.Project(userID); err != nil {
		return err
	}

	log.Info().
		Str("transaction_id", transactionID).
		Str("user_id", userID).
		Str("service", "ledger").
		Msg("transaction deleted and holdings reprojected")

	return nil
}

// GinHandlers contains HTTP handlers for ledger endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// AppendTransactionHandler handles POST requests to record a buy or sell.
// The user id comes from the JWT claims, never from the request body.
func (h *GinHandlers) AppendTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("clientID")
		if userID == "" {
			response.Unauthorized(c, "Missing client ID")
			return
		}

		var req AppendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		req.UserID = userID

		transaction, err := h.service.Append(&req)
		response.Handle(c, transaction, err)
	}
}

// ListTransactionsHandler handles GET requests for the trade history.
// Optional query parameter: symbol
func (h *GinHandlers) ListTransactionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("clientID")
		if userID == "" {
			response.Unauthorized(c, "Missing client ID")
			return
		}

		transactions, err := h.service.List(userID, c.Query("symbol"))
		response.Handle(c, transactions, err)
	}
}

// DeleteTransactionHandler handles DELETE requests for a single transaction.
// URL parameter: transaction_id
func (h *GinHandlers) DeleteTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("clientID")
		if userID == "" {
			response.Unauthorized(c, "Missing client ID")
			return
		}

		transactionID := c.Param("transaction_id")
		if transactionID == "" {
			response.BadRequest(c, "Transaction ID is required")
			return
		}

		if err := h.service.Delete(transactionID, userID); err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, gin.H{"message": "transaction deleted"})
	}
}
