package corporate

import "github.com/shopspring/decimal"

// SplitRequest is the request body for applying a stock split.
type SplitRequest struct {
	Symbol string          `json:"symbol" binding:"required"`
	Ratio  decimal.Decimal `json:"ratio"`
}

// RightsIssueRequest is the request body for applying a rights issue.
// RightsRatio is the number of held shares entitling one new share;
// NewSharePrice is the subscription price per new share.
type RightsIssueRequest struct {
	Symbol        string          `json:"symbol" binding:"required"`
	RightsRatio   decimal.Decimal `json:"rights_ratio"`
	NewSharePrice decimal.Decimal `json:"new_share_price"`
}
