package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradebook/internal/model"
)

// Chain asks each source in turn and returns the first price found. A source
// that fails for any reason other than an unknown instrument is logged and
// skipped, so a fallback table keeps serving while a live feed is down.
type Chain struct {
	sources []model.PriceSource
	log     *zap.Logger
}

// NewChain creates a chain over sources in priority order.
func NewChain(log *zap.Logger, sources ...model.PriceSource) *Chain {
	return &Chain{sources: sources, log: log}
}

// Price implements model.PriceSource.
func (c *Chain) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var lastErr error
	for _, s := range c.sources {
		p, err := s.Price(ctx, symbol)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, model.ErrUnknownInstrument) {
			c.log.Warn("price source failed, trying next", zap.String("symbol", symbol), zap.Error(err))
		}
		lastErr = err
	}
	if lastErr == nil {
		return decimal.Zero, fmt.Errorf("%s: %w", model.NormalizeSymbol(symbol), model.ErrUnknownInstrument)
	}
	if !errors.Is(lastErr, model.ErrUnknownInstrument) {
		return decimal.Zero, fmt.Errorf("%s: %w: %v", model.NormalizeSymbol(symbol), model.ErrUnknownInstrument, lastErr)
	}
	return decimal.Zero, lastErr
}
