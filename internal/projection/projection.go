package projection

import (
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ksred/folio-api/internal/locks"
	"github.com/ksred/folio-api/internal/money"
	"github.com/ksred/folio-api/internal/types"
	"github.com/ksred/folio-api/pkg/response"
)

// Service derives holdings from the transaction and corporate action history.
// Project is a pure fold over the log: replaying the same history always
// yields the same holdings.
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

// position is the running state for one symbol during a replay.
type position struct {
	quantity  decimal.Decimal
	totalCost decimal.Decimal
}

func (p *position) averageCost() decimal.Decimal {
	if p.quantity.IsZero() {
		return decimal.Zero
	}
	return p.totalCost.Div(p.quantity)
}

// event is one entry of the merged trade and corporate action stream.
// Trades sort before actions at identical timestamps so an action recorded
// together with a trade applies to the post-trade position.
type event struct {
	timestamp time.Time
	kind      int // 0 trade, 1 corporate action
	seq       uint
	trade     *types.Transaction
	action    *types.CorporateActionRecord
}

// Project replays the user's full history and persists the derived holdings.
// Inconsistent historical sells are tolerated and skipped, returned as
// anomalies; only a failure to read or write the store is an error.
//
// Callers mutating the ledger must hold the user's lock across the write and
// this call. Project itself does not lock.
func (s *Service) Project(userID string) (map[string]types.Holding, []types.Anomaly, error) {
	transactions, err := s.db.ListTransactions(userID)
	if err != nil {
		return nil, nil, &types.StorageError{Op: "list transactions", Err: err}
	}
	actions, err := s.db.ListActions(userID)
	if err != nil {
		return nil, nil, &types.StorageError{Op: "list corporate actions", Err: err}
	}
	prior, err := s.db.GetHoldings(userID)
	if err != nil {
		return nil, nil, &types.StorageError{Op: "load holdings", Err: err}
	}

	events := mergeEvents(transactions, actions)

	positions := make(map[string]*position)
	var anomalies []types.Anomaly

	for _, ev := range events {
		if ev.kind == 0 {
			anomalies = applyTrade(positions, ev.trade, anomalies)
		} else {
			applyAction(positions, ev.action)
		}
	}

	priorPrices := make(map[string]decimal.Decimal, len(prior))
	for _, h := range prior {
		priorPrices[h.Symbol] = h.CurrentPrice
	}

	holdings := make(map[string]types.Holding)
	for symbol, pos := range positions {
		if !money.IsPositive(pos.quantity) {
			continue
		}
		averageCost := pos.averageCost()
		currentPrice, ok := priorPrices[symbol]
		if !ok || currentPrice.IsZero() {
			// No live price feed is required for ledger consistency:
			// a fresh symbol starts valued at its average cost.
			currentPrice = averageCost
		}
		holdings[symbol] = types.Holding{
			UserID:       userID,
			Symbol:       symbol,
			Quantity:     pos.quantity,
			AverageCost:  averageCost,
			CurrentPrice: currentPrice,
		}
	}

	if err := s.db.ReplaceHoldings(userID, holdings); err != nil {
		return nil, nil, &types.StorageError{Op: "replace holdings", Err: err}
	}

	if len(anomalies) > 0 {
		log.Warn().
			Str("user_id", userID).
			Int("anomaly_count", len(anomalies)).
			Msg("portfolio history contains inconsistent sells")
	}

	return holdings, anomalies, nil
}

// mergeEvents interleaves trades and corporate actions into a single stream
// ordered by (timestamp, kind, insertion order).
func mergeEvents(transactions []types.Transaction, actions []types.CorporateActionRecord) []event {
	events := make([]event, 0, len(transactions)+len(actions))
	for i := range transactions {
		t := &transactions[i]
		events = append(events, event{timestamp: t.Timestamp, kind: 0, seq: t.ID, trade: t})
	}
	for i := range actions {
		a := &actions[i]
		events = append(events, event{timestamp: a.Timestamp, kind: 1, seq: a.ID, action: a})
	}
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].timestamp.Equal(events[j].timestamp) {
			return events[i].timestamp.Before(events[j].timestamp)
		}
		if events[i].kind != events[j].kind {
			return events[i].kind < events[j].kind
		}
		return events[i].seq < events[j].seq
	})
	return events
}

// applyTrade folds one buy or sell into the running positions.
func applyTrade(positions map[string]*position, t *types.Transaction, anomalies []types.Anomaly) []types.Anomaly {
	pos, ok := positions[t.Symbol]
	if !ok {
		pos = &position{quantity: decimal.Zero, totalCost: decimal.Zero}
		positions[t.Symbol] = pos
	}

	switch t.Side {
	case types.SideBuy:
		// Buy-side commission amortizes into the cost basis.
		pos.totalCost = pos.totalCost.Add(t.Quantity.Mul(t.Price)).Add(t.Commission)
		pos.quantity = pos.quantity.Add(t.Quantity)

	case types.SideSell:
		if t.Quantity.GreaterThan(pos.quantity) {
			// Historical logs may predate the commit-time oversell guard or
			// have been edited out of order. Tolerate and skip.
			anomalies = append(anomalies, types.Anomaly{
				TransactionID: t.TransactionID,
				Symbol:        t.Symbol,
				Requested:     t.Quantity,
				Available:     pos.quantity,
				Timestamp:     t.Timestamp,
			})
			return anomalies
		}
		if t.Quantity.Equal(pos.quantity) {
			// Full exit: close the position exactly, leaving no division dust.
			pos.quantity = decimal.Zero
			pos.totalCost = decimal.Zero
			return anomalies
		}
		// A sell removes cost proportionally; average cost is unchanged.
		saleCostRemoved := t.Quantity.Mul(pos.averageCost())
		pos.totalCost = pos.totalCost.Sub(saleCostRemoved)
		pos.quantity = pos.quantity.Sub(t.Quantity)
	}

	return anomalies
}

// applyAction folds one corporate action into the running positions.
// Actions against a symbol with no accumulated quantity are skipped: the
// record must follow the position it adjusted.
func applyAction(positions map[string]*position, a *types.CorporateActionRecord) {
	pos, ok := positions[a.Symbol]
	if !ok || !money.IsPositive(pos.quantity) || !money.IsPositive(a.Ratio) {
		log.Debug().
			Str("symbol", a.Symbol).
			Str("action_id", a.ActionID).
			Msg("skipping corporate action with no open position")
		return
	}

	switch a.Kind {
	case types.ActionSplit:
		// quantity * averageCost is invariant under a pure split.
		pos.quantity = pos.quantity.Mul(a.Ratio)

	case types.ActionRightsIssue:
		newShares := pos.quantity.Div(a.Ratio)
		pos.totalCost = pos.totalCost.Add(newShares.Mul(a.NewSharePrice))
		pos.quantity = pos.quantity.Add(newShares)
	}
}

// Holdings projects under the user's lock and returns the reporting view,
// sorted by symbol.
func (s *Service) Holdings(userID string) (*types.HoldingsResponse, error) {
	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	holdings, anomalies, err := s.Project(userID)
	if err != nil {
		return nil, err
	}

	views := make([]types.HoldingView, 0, len(holdings))
	for _, h := range holdings {
		views = append(views, types.HoldingView{
			Symbol:       h.Symbol,
			Quantity:     h.Quantity,
			AverageCost:  h.AverageCost,
			CurrentPrice: h.CurrentPrice,
			MarketValue:  money.RoundMoney(h.Quantity.Mul(h.CurrentPrice)),
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Symbol < views[j].Symbol })

	return &types.HoldingsResponse{
		UserID:    userID,
		Holdings:  views,
		Anomalies: anomalies,
		Timestamp: time.Now(),
	}, nil
}

// GinHandlers contains HTTP handlers for holdings endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// HoldingsHandler handles GET requests for the user's projected holdings.
// The user id comes from the JWT claims set by the auth middleware.
func (h *GinHandlers) HoldingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("clientID")
		if userID == "" {
			response.Unauthorized(c, "Missing client ID")
			return
		}

		holdings, err := h.service.Holdings(userID)
		response.Handle(c, holdings, err)
	}
}
