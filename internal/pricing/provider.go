package pricing

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// Provider supplies the last traded price for a symbol. Implementations must
// be safe for concurrent use; the refresher fans quotes out per symbol.
type Provider interface {
	Quote(ctx context.Context, symbol string) (decimal.Decimal, error)
}

type quoteResponse struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

// RestProvider fetches quotes from a JSON quote endpoint:
// GET {base}/quote?symbol=XYZ -> {"symbol": "XYZ", "price": "123.45"}.
type RestProvider struct {
	client *resty.Client
}

func NewRestProvider(baseURL string) *RestProvider {
	return &RestProvider{
		client: resty.New().SetBaseURL(baseURL),
	}
}

func (p *RestProvider) Quote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var quote quoteResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("symbol", symbol).
		SetResult(&quote).
		Get("/quote")
	if err != nil {
		return decimal.Zero, fmt.Errorf("quote request for %s failed: %w", symbol, err)
	}
	if resp.IsError() {
		return decimal.Zero, fmt.Errorf("quote request for %s returned status %d", symbol, resp.StatusCode())
	}
	if quote.Price.IsZero() {
		return decimal.Zero, fmt.Errorf("quote for %s has no price", symbol)
	}
	return quote.Price, nil
}

// StaticProvider serves quotes from a fixed table. Used in tests and by the
// simulation when no quote endpoint is configured.
type StaticProvider struct {
	mu     sync.RWMutex
	quotes map[string]decimal.Decimal
}

func NewStaticProvider(quotes map[string]decimal.Decimal) *StaticProvider {
	if quotes == nil {
		quotes = make(map[string]decimal.Decimal)
	}
	return &StaticProvider{quotes: quotes}
}

func (p *StaticProvider) Quote(_ context.Context, symbol string) (decimal.Decimal, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	price, ok := p.quotes[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("no quote for %s", symbol)
	}
	return price, nil
}

// Set updates or adds a quote.
func (p *StaticProvider) Set(symbol string, price decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quotes[symbol] = price
}
