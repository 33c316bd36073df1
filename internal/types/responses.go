package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// HoldingView is the reporting shape of a projected holding, with the market
// value derived from the last known price.
type HoldingView struct {
	Symbol       string          `json:"symbol"`
	Quantity     decimal.Decimal `json:"quantity"`
	AverageCost  decimal.Decimal `json:"average_cost"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	MarketValue  decimal.Decimal `json:"market_value"`
}

// HoldingsResponse is returned by the holdings endpoint. Anomalies lists the
// historical sells the replay skipped; a non-empty list means the portfolio
// history contains inconsistencies but computation did not halt.
type HoldingsResponse struct {
	UserID    string        `json:"user_id"`
	Holdings  []HoldingView `json:"holdings"`
	Anomalies []Anomaly     `json:"anomalies,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Anomaly describes a sell transaction the projection tolerated and skipped
// because it exceeded the quantity accumulated at that point in the replay.
type Anomaly struct {
	TransactionID string          `json:"transaction_id"`
	Symbol        string          `json:"symbol"`
	Requested     decimal.Decimal `json:"requested"`
	Available     decimal.Decimal `json:"available"`
	Timestamp     time.Time       `json:"timestamp"`
}
