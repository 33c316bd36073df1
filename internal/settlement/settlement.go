package settlement

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/ksred/folio-api/internal/config"
	"github.com/ksred/folio-api/internal/money"
	"github.com/ksred/folio-api/internal/types"
	"github.com/ksred/folio-api/pkg/response"
)

// ComputeBuy calculates the settlement breakdown for a buy trade.
// It is a pure function: no holding state is consulted.
func ComputeBuy(quantity, price, commissionRate decimal.Decimal) (*BuySettlement, error) {
	if !money.IsPositive(quantity) {
		return nil, types.InvalidArgumentf("buy quantity must be positive, got %s", quantity)
	}
	if !money.IsPositive(price) {
		return nil, types.InvalidArgumentf("buy price must be positive, got %s", price)
	}
	if !money.IsValidRate(commissionRate) {
		return nil, types.InvalidArgumentf("commission rate must be in [0, 1), got %s", commissionRate)
	}

	gross := quantity.Mul(price)
	commission := gross.Mul(commissionRate)

	return &BuySettlement{
		GrossAmount: gross,
		Commission:  commission,
		TotalCost:   gross.Add(commission),
	}, nil
}

// ComputeSell calculates the settlement breakdown for a sell trade against
// the caller-supplied average cost. The oversell check is not performed here;
// it is a precondition of the ledger's append, which has access to the
// projected holding.
func ComputeSell(quantity, price, averageCost, commissionRate, taxRate decimal.Decimal) (*SellSettlement, error) {
	if !money.IsPositive(quantity) {
		return nil, types.InvalidArgumentf("sell quantity must be positive, got %s", quantity)
	}
	if !money.IsPositive(price) {
		return nil, types.InvalidArgumentf("sell price must be positive, got %s", price)
	}
	if !money.IsNonNegative(averageCost) {
		return nil, types.InvalidArgumentf("average cost must not be negative, got %s", averageCost)
	}
	if !money.IsValidRate(commissionRate) {
		return nil, types.InvalidArgumentf("commission rate must be in [0, 1), got %s", commissionRate)
	}
	if !money.IsValidRate(taxRate) {
		return nil, types.InvalidArgumentf("tax rate must be in [0, 1), got %s", taxRate)
	}

	gross := quantity.Mul(price)
	commission := gross.Mul(commissionRate)
	costBasis := quantity.Mul(averageCost)
	gain := gross.Sub(commission).Sub(costBasis)

	// Losses never produce negative tax or offset other gains.
	tax := money.Zero
	if money.IsPositive(gain) {
		tax = gain.Mul(taxRate)
	}

	return &SellSettlement{
		GrossAmount:  gross,
		Commission:   commission,
		CostBasis:    costBasis,
		RealizedGain: gain,
		Tax:          tax,
		NetProceeds:  gross.Sub(commission).Sub(tax),
	}, nil
}

// Rounded returns a copy with all amounts rounded to two decimal places.
func (s *BuySettlement) Rounded() *BuySettlement {
	return &BuySettlement{
		GrossAmount: money.RoundMoney(s.GrossAmount),
		Commission:  money.RoundMoney(s.Commission),
		TotalCost:   money.RoundMoney(s.TotalCost),
	}
}

// Rounded returns a copy with all amounts rounded to two decimal places.
func (s *SellSettlement) Rounded() *SellSettlement {
	return &SellSettlement{
		GrossAmount:  money.RoundMoney(s.GrossAmount),
		Commission:   money.RoundMoney(s.Commission),
		CostBasis:    money.RoundMoney(s.CostBasis),
		RealizedGain: money.RoundMoney(s.RealizedGain),
		Tax:          money.RoundMoney(s.Tax),
		NetProceeds:  money.RoundMoney(s.NetProceeds),
	}
}

// Service exposes settlement previews with the configured default rates.
type Service struct {
	defaultCommissionRate decimal.Decimal
	defaultTaxRate        decimal.Decimal
}

// NewService creates a settlement service with defaults from configuration.
func NewService(cfg *config.Config) *Service {
	return &Service{
		defaultCommissionRate: money.FromFloat(cfg.Trading.DefaultCommissionRate),
		defaultTaxRate:        money.FromFloat(cfg.Trading.DefaultTaxRate),
	}
}

// Preview computes a settlement breakdown without touching any state.
func (s *Service) Preview(req *PreviewRequest) (interface{}, error) {
	commissionRate := s.defaultCommissionRate
	if req.CommissionRate != nil {
		commissionRate = *req.CommissionRate
	}

	switch strings.ToUpper(req.Side) {
	case types.SideBuy:
		breakdown, err := ComputeBuy(req.Quantity, req.Price, commissionRate)
		if err != nil {
			return nil, err
		}
		return breakdown.Rounded(), nil

	case types.SideSell:
		taxRate := s.defaultTaxRate
		if req.TaxRate != nil {
			taxRate = *req.TaxRate
		}
		averageCost := decimal.Zero
		if req.AverageCost != nil {
			averageCost = *req.AverageCost
		}
		breakdown, err := ComputeSell(req.Quantity, req.Price, averageCost, commissionRate, taxRate)
		if err != nil {
			return nil, err
		}
		return breakdown.Rounded(), nil

	default:
		return nil, types.InvalidArgumentf("side must be BUY or SELL, got %q", req.Side)
	}
}

// GinHandlers contains HTTP handlers for settlement endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// PreviewHandler handles POST requests for settlement previews.
// Pure computation, no persistence; used by clients before committing a trade.
func (h *GinHandlers) PreviewHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PreviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		breakdown, err := h.service.Preview(&req)
		response.Handle(c, breakdown, err)
	}
}
