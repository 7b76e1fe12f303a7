// Package pnl derives realized and unrealized profit/loss from holdings and
// trade history. Nothing here is stored; every result is recomputed.
package pnl

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"tradebook/internal/model"
)

// State is a consistent view of the book that PnL is computed from.
type State interface {
	// Holdings returns every open holding ordered by symbol.
	Holdings() []model.Holding
	// Holding returns the open holding for symbol or model.ErrNotFound.
	Holding(symbol string) (model.Holding, error)
	// TradesFor returns the trades of symbol in ledger order.
	TradesFor(symbol string) []model.Trade
}

// Calculator combines a State with current prices.
type Calculator struct {
	prices model.PriceSource
}

// New creates a Calculator pricing holdings with prices.
func New(prices model.PriceSource) *Calculator {
	return &Calculator{prices: prices}
}

// UnrealizedFor values qty units bought at avgCost at the given price.
func UnrealizedFor(symbol string, qty, avgCost, price decimal.Decimal) model.UnrealizedPnL {
	return model.UnrealizedPnL{
		Symbol:       symbol,
		Quantity:     qty,
		AverageCost:  avgCost,
		CurrentPrice: price,
		Amount:       price.Sub(avgCost).Mul(qty),
	}
}

// RealizedFor replays trades of symbol in chronological order and sums the
// profit locked in by each sell against the running average cost. Sells
// larger than the replayed quantity are clamped to it.
func RealizedFor(symbol string, trades []model.Trade) model.RealizedPnL {
	symbol = model.NormalizeSymbol(symbol)
	ordered := make([]model.Trade, 0, len(trades))
	for _, t := range trades {
		if t.Symbol == symbol {
			ordered = append(ordered, t)
		}
	}
	if len(ordered) == 0 {
		return model.RealizedPnL{Symbol: symbol, Amount: decimal.Zero, Note: model.NoTradesNote}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	qty := decimal.Zero
	cost := decimal.Zero
	realized := decimal.Zero

	for _, t := range ordered {
		if t.Side == model.SideBuy {
			qty = qty.Add(t.Quantity)
			cost = cost.Add(t.Notional())
			continue
		}
		if !qty.IsPositive() {
			continue
		}
		avg := cost.Div(qty)
		sellQty := decimal.Min(t.Quantity, qty)
		realized = realized.Add(t.Price.Sub(avg).Mul(sellQty))
		qty = qty.Sub(sellQty)
		if qty.IsPositive() {
			cost = avg.Mul(qty)
		} else {
			cost = decimal.Zero
		}
	}

	return model.RealizedPnL{Symbol: symbol, Amount: realized}
}

// Combine values one holding and joins it with its realized history.
func (c *Calculator) Combine(ctx context.Context, h model.Holding, trades []model.Trade) (model.CombinedPnL, error) {
	price, err := c.prices.Price(ctx, h.Symbol)
	if err != nil {
		return model.CombinedPnL{}, fmt.Errorf("price %s: %w", h.Symbol, err)
	}
	u := UnrealizedFor(h.Symbol, h.Quantity, h.AverageCost, price)
	r := RealizedFor(h.Symbol, trades)
	return model.CombinedPnL{
		Symbol:       h.Symbol,
		Quantity:     h.Quantity,
		AverageCost:  h.AverageCost,
		CurrentPrice: price,
		Unrealized:   u.Amount,
		Realized:     r.Amount,
	}, nil
}

// Summary computes a row for every open holding plus unrounded totals.
// Instruments that were fully closed are not included.
func (c *Calculator) Summary(ctx context.Context, st State) (model.PnLSummary, error) {
	holdings := st.Holdings()
	out := model.PnLSummary{
		Rows:            make([]model.CombinedPnL, 0, len(holdings)),
		TotalUnrealized: decimal.Zero,
		TotalRealized:   decimal.Zero,
	}
	for _, h := range holdings {
		row, err := c.Combine(ctx, h, st.TradesFor(h.Symbol))
		if err != nil {
			return model.PnLSummary{}, err
		}
		out.Rows = append(out.Rows, row)
		out.TotalUnrealized = out.TotalUnrealized.Add(row.Unrealized)
		out.TotalRealized = out.TotalRealized.Add(row.Realized)
	}
	sort.Slice(out.Rows, func(i, j int) bool { return out.Rows[i].Symbol < out.Rows[j].Symbol })
	return out, nil
}

// ForSymbol computes the combined result for one instrument. It fails with
// model.ErrNotFound when the instrument has no open holding.
func (c *Calculator) ForSymbol(ctx context.Context, st State, symbol string) (model.CombinedPnL, error) {
	h, err := st.Holding(symbol)
	if err != nil {
		return model.CombinedPnL{}, err
	}
	return c.Combine(ctx, h, st.TradesFor(h.Symbol))
}
