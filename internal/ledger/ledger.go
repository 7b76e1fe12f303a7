// Package ledger holds the append-only record of executed trades.
package ledger

import "tradebook/internal/model"

// Ledger is an append-only, insertion-ordered sequence of trades.
// It does no locking of its own; the book serializes access.
type Ledger struct {
	trades []model.Trade
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{trades: make([]model.Trade, 0, 256)}
}

// Append records a trade at the end of the sequence.
func (l *Ledger) Append(t model.Trade) {
	l.trades = append(l.trades, t)
}

// All returns a copy of every trade in insertion order.
func (l *Ledger) All() []model.Trade {
	out := make([]model.Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// ByInstrument returns the trades for symbol in insertion order.
func (l *Ledger) ByInstrument(symbol string) []model.Trade {
	return Filter(l.trades, symbol, nil)
}

// ByInstrumentAndSide narrows ByInstrument to one side. A nil side matches both.
func (l *Ledger) ByInstrumentAndSide(symbol string, side *model.Side) []model.Trade {
	return Filter(l.trades, symbol, side)
}

// Len returns the number of recorded trades.
func (l *Ledger) Len() int {
	return len(l.trades)
}

// Filter selects trades by symbol and optional side, preserving order. The
// result never aliases trades.
func Filter(trades []model.Trade, symbol string, side *model.Side) []model.Trade {
	symbol = model.NormalizeSymbol(symbol)
	out := make([]model.Trade, 0)
	for _, t := range trades {
		if t.Symbol != symbol {
			continue
		}
		if side != nil && t.Side != *side {
			continue
		}
		out = append(out, t)
	}
	return out
}
