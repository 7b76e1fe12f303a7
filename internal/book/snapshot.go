package book

import (
	"fmt"

	"tradebook/internal/ledger"
	"tradebook/internal/model"
	"tradebook/internal/portfolio"
)

// Snapshot is an immutable, consistent copy of the book.
type Snapshot struct {
	holdings map[string]model.Holding
	trades   []model.Trade
}

// Holdings returns the open holdings ordered by symbol.
func (s Snapshot) Holdings() []model.Holding {
	return portfolio.SortedHoldings(s.holdings)
}

// Holding returns the open holding for symbol or model.ErrNotFound.
func (s Snapshot) Holding(symbol string) (model.Holding, error) {
	h, ok := s.holdings[model.NormalizeSymbol(symbol)]
	if !ok {
		return model.Holding{}, fmt.Errorf("holding %s: %w", model.NormalizeSymbol(symbol), model.ErrNotFound)
	}
	return h, nil
}

// TradesFor returns the trades of symbol in ledger order.
func (s Snapshot) TradesFor(symbol string) []model.Trade {
	return ledger.Filter(s.trades, symbol, nil)
}

// Trades returns every trade in ledger order.
func (s Snapshot) Trades() []model.Trade {
	return s.trades
}
