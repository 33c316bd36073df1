package settlement

import "github.com/shopspring/decimal"

// BuySettlement is the cost breakdown of a buy trade. The commission is
// amortized into the cost basis by the projection engine, so TotalCost is
// what the position's total cost increases by.
type BuySettlement struct {
	GrossAmount decimal.Decimal `json:"gross_amount"`
	Commission  decimal.Decimal `json:"commission"`
	TotalCost   decimal.Decimal `json:"total_cost"`
}

// SellSettlement is the proceeds breakdown of a sell trade. RealizedGain is
// the tax base: gross proceeds minus commission minus cost basis. Losses
// never produce negative tax in this model.
type SellSettlement struct {
	GrossAmount  decimal.Decimal `json:"gross_amount"`
	Commission   decimal.Decimal `json:"commission"`
	CostBasis    decimal.Decimal `json:"cost_basis"`
	RealizedGain decimal.Decimal `json:"realized_gain"`
	Tax          decimal.Decimal `json:"tax"`
	NetProceeds  decimal.Decimal `json:"net_proceeds"`
}

// PreviewRequest is the request body for the settlement preview endpoint.
// AverageCost, CommissionRate and TaxRate are optional; missing rates fall
// back to the configured defaults.
type PreviewRequest struct {
	Side           string           `json:"side" binding:"required"`
	Quantity       decimal.Decimal  `json:"quantity"`
	Price          decimal.Decimal  `json:"price"`
	CommissionRate *decimal.Decimal `json:"commission_rate,omitempty"`
	TaxRate        *decimal.Decimal `json:"tax_rate,omitempty"`
	AverageCost    *decimal.Decimal `json:"average_cost,omitempty"`
}
