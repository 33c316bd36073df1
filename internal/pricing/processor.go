package pricing

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ksred/folio-api/internal/types"
)

// Processor periodically refreshes the last known price of every held symbol.
// It writes only the current_price column and never takes user locks, so a
// refresh can never block or be blocked by ledger writes.
type Processor struct {
	db       *Database
	provider Provider
	interval time.Duration
}

func NewProcessor(gormDB *gorm.DB, provider Provider, interval time.Duration) *Processor {
	return &Processor{
		db:       NewDatabase(gormDB),
		provider: provider,
		interval: interval,
	}
}

// Start begins the price refresh loop
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "price_refresher").Logger()
	logger.Info().Dur("interval", p.interval).Msg("starting price refresher")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down price refresher")
			return
		case <-ticker.C:
			if err := p.refreshAll(ctx); err != nil {
				logger.Error().Err(err).Msg("price refresh pass failed")
			}
		}
	}
}

func (p *Processor) refreshAll(ctx context.Context) error {
	logger := log.With().Str("component", "price_refresher").Logger()

	symbols, err := p.db.ListHeldSymbols()
	if err != nil {
		return err
	}

	logger.Debug().Int("symbol_count", len(symbols)).Msg("refreshing held symbols")

	for _, symbol := range symbols {
		price, err := p.provider.Quote(ctx, symbol)
		if err != nil {
			// A single stale symbol must not stall the pass.
			logger.Warn().Err(err).Str("symbol", symbol).Msg("quote fetch failed")
			continue
		}

		if err := p.db.UpdateCurrentPrice(symbol, price); err != nil {
			logger.Error().Err(err).Str("symbol", symbol).Msg("price update failed")
			continue
		}

		logger.Debug().
			Str("symbol", symbol).
			Str("price", price.String()).
			Msg("price refreshed")
	}

	return nil
}

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// ListHeldSymbols returns the distinct symbols across all users' holdings.
func (d *Database) ListHeldSymbols() ([]string, error) {
	var symbols []string
	if err := d.db.Model(&types.Holding{}).
		Distinct("symbol").
		Order("symbol ASC").
		Pluck("symbol", &symbols).Error; err != nil {
		return nil, err
	}
	return symbols, nil
}

// UpdateCurrentPrice sets the last known price for every holding of a symbol.
// Quantity and average cost are never touched from here.
func (d *Database) UpdateCurrentPrice(symbol string, price decimal.Decimal) error {
	return d.db.Model(&types.Holding{}).
		Where("symbol = ?", symbol).
		Update("current_price", price).Error
}
