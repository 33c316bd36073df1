package types

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Transaction side values
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Corporate action kinds
const (
	ActionSplit       = "SPLIT"
	ActionRightsIssue = "RIGHTS_ISSUE"
)

// Transaction is a single buy or sell event in the append-only ledger.
// Rows are never mutated once written; corrections are new transactions
// (or a delete followed by a full re-projection).
type Transaction struct {
	gorm.Model    `json:"-"`
	TransactionID string          `gorm:"uniqueIndex" json:"transaction_id"`
	UserID        string          `gorm:"index" json:"user_id"`
	Symbol        string          `gorm:"index" json:"symbol"`
	Side          string          `json:"side"` // BUY or SELL
	Quantity      decimal.Decimal `gorm:"type:decimal" json:"quantity"`
	Price         decimal.Decimal `gorm:"type:decimal" json:"price"` // per unit
	GrossAmount   decimal.Decimal `gorm:"type:decimal" json:"gross_amount"`
	Commission    decimal.Decimal `gorm:"type:decimal" json:"commission"`
	Timestamp     time.Time       `gorm:"index" json:"timestamp"`
	Note          string          `json:"note,omitempty"`
}

// Holding is the derived position for one user and symbol. It is owned by
// the projection engine: every row must be re-derivable from the transaction
// and corporate action history. CurrentPrice is the only field written from
// outside the projection (by the price refresher).
type Holding struct {
	gorm.Model   `json:"-"`
	UserID       string          `gorm:"index:idx_holdings_user_symbol,unique" json:"user_id"`
	Symbol       string          `gorm:"index:idx_holdings_user_symbol,unique" json:"symbol"`
	Quantity     decimal.Decimal `gorm:"type:decimal" json:"quantity"`
	AverageCost  decimal.Decimal `gorm:"type:decimal" json:"average_cost"` // per unit, commission amortized
	CurrentPrice decimal.Decimal `gorm:"type:decimal" json:"current_price"`
}

// Dividend records a cash dividend receipt against a snapshot of the holding
// quantity at payment time. It never affects quantity or cost basis.
type Dividend struct {
	gorm.Model        `json:"-"`
	DividendID        string          `gorm:"uniqueIndex" json:"dividend_id"`
	UserID            string          `gorm:"index" json:"user_id"`
	Symbol            string          `gorm:"index" json:"symbol"`
	TotalAmount       decimal.Decimal `gorm:"type:decimal" json:"total_amount"`
	QuantityAtPayment decimal.Decimal `gorm:"type:decimal" json:"quantity_at_payment"`
	PerUnitAmount     decimal.Decimal `gorm:"type:decimal" json:"per_unit_amount"`
	PaidAt            time.Time       `json:"paid_at"`
}

// CorporateActionRecord is the auditable ledger entry for a split or rights
// issue. It carries the resulting position so a full replay can reconstruct
// holdings without re-reading ad hoc mutation history.
type CorporateActionRecord struct {
	gorm.Model           `json:"-"`
	ActionID             string          `gorm:"uniqueIndex" json:"action_id"`
	UserID               string          `gorm:"index" json:"user_id"`
	Symbol               string          `gorm:"index" json:"symbol"`
	Kind                 string          `json:"kind"` // SPLIT or RIGHTS_ISSUE
	Ratio                decimal.Decimal `gorm:"type:decimal" json:"ratio"`
	NewSharePrice        decimal.Decimal `gorm:"type:decimal" json:"new_share_price,omitempty"` // rights issue only
	Timestamp            time.Time       `gorm:"index" json:"timestamp"`
	ResultingQuantity    decimal.Decimal `gorm:"type:decimal" json:"resulting_quantity"`
	ResultingAverageCost decimal.Decimal `gorm:"type:decimal" json:"resulting_average_cost"`
}
