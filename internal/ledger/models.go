package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// AppendRequest is the single, strongly-typed shape for recording a trade.
// CommissionRate is optional and falls back to the configured default;
// Timestamp defaults to now for trades entered as they happen.
type AppendRequest struct {
	UserID         string           `json:"-"`
	Symbol         string           `json:"symbol" binding:"required"`
	Side           string           `json:"side" binding:"required"`
	Quantity       decimal.Decimal  `json:"quantity"`
	Price          decimal.Decimal  `json:"price"`
	CommissionRate *decimal.Decimal `json:"commission_rate,omitempty"`
	Timestamp      time.Time        `json:"timestamp,omitempty"`
	Note           string           `json:"note,omitempty"`
}
