// Package portfolio tracks open holdings and their weighted-average cost.
//
// A Tracker is driven by executed trades: buys open or average into a
// holding, sells reduce it at an unchanged average cost, and a holding that
// reaches exactly zero quantity disappears.
package portfolio

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"tradebook/internal/model"
)

// Tracker maintains the instrument → holding map. It does no locking of its
// own; the book serializes access together with the ledger.
type Tracker struct {
	holdings map[string]model.Holding
	limits   RiskLimits
}

// NewTracker creates an empty tracker enforcing limits on buys.
func NewTracker(limits RiskLimits) *Tracker {
	return &Tracker{
		holdings: make(map[string]model.Holding),
		limits:   limits,
	}
}

// Check reports whether trade can be applied, without mutating anything.
func (t *Tracker) Check(trade model.Trade) error {
	if err := t.checkPosition(trade); err != nil {
		return err
	}
	if trade.Side == model.SideBuy {
		return t.limits.check(t.holdings, trade)
	}
	return nil
}

// Apply checks trade and folds it into the holdings.
func (t *Tracker) Apply(trade model.Trade) error {
	if err := t.Check(trade); err != nil {
		return err
	}
	t.mutate(trade)
	return nil
}

// Replay folds a previously accepted trade into the holdings. Risk limits are
// not re-evaluated since they may have changed since the trade executed.
func (t *Tracker) Replay(trade model.Trade) error {
	if err := t.checkPosition(trade); err != nil {
		return err
	}
	t.mutate(trade)
	return nil
}

func (t *Tracker) checkPosition(trade model.Trade) error {
	if trade.Side != model.SideSell {
		return nil
	}
	h, ok := t.holdings[trade.Symbol]
	if !ok {
		return fmt.Errorf("cannot sell %s: %w", trade.Symbol, model.ErrNoPosition)
	}
	if trade.Quantity.GreaterThan(h.Quantity) {
		return fmt.Errorf("cannot sell %s: available %s, requested %s: %w",
			trade.Symbol, h.Quantity, trade.Quantity, model.ErrInsufficientQuantity)
	}
	return nil
}

func (t *Tracker) mutate(trade model.Trade) {
	h, ok := t.holdings[trade.Symbol]

	if trade.Side == model.SideBuy {
		if !ok {
			t.holdings[trade.Symbol] = model.Holding{
				Symbol:      trade.Symbol,
				Quantity:    trade.Quantity,
				AverageCost: trade.Price,
			}
			return
		}
		// Weighted average cost
		totalCost := h.CostBasis().Add(trade.Notional())
		h.Quantity = h.Quantity.Add(trade.Quantity)
		h.AverageCost = totalCost.Div(h.Quantity)
		t.holdings[trade.Symbol] = h
		return
	}

	h.Quantity = h.Quantity.Sub(trade.Quantity)
	if h.Quantity.IsZero() {
		delete(t.holdings, trade.Symbol)
		return
	}
	t.holdings[trade.Symbol] = h
}

// Holdings returns a copy of every open holding keyed by symbol.
func (t *Tracker) Holdings() map[string]model.Holding {
	cp := make(map[string]model.Holding, len(t.holdings))
	for k, v := range t.holdings {
		cp[k] = v
	}
	return cp
}

// Holding returns the open holding for symbol, or model.ErrNotFound.
func (t *Tracker) Holding(symbol string) (model.Holding, error) {
	symbol = model.NormalizeSymbol(symbol)
	h, ok := t.holdings[symbol]
	if !ok {
		return model.Holding{}, fmt.Errorf("holding %s: %w", symbol, model.ErrNotFound)
	}
	return h, nil
}

// Len returns the number of open holdings.
func (t *Tracker) Len() int {
	return len(t.holdings)
}

// SortedHoldings flattens a holdings map into a slice ordered by symbol.
func SortedHoldings(m map[string]model.Holding) []model.Holding {
	out := make([]model.Holding, 0, len(m))
	for _, h := range m {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Exposure returns the total capital committed across holdings.
func Exposure(m map[string]model.Holding) decimal.Decimal {
	total := decimal.Zero
	for _, h := range m {
		total = total.Add(h.CostBasis())
	}
	return total
}
