// Package pricing provides model.PriceSource implementations: a fixed table,
// a hot-reloaded YAML table, a TTL cache and a fallback chain.
package pricing

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"tradebook/internal/model"
)

// DefaultPrices is the built-in table used when nothing else is configured.
func DefaultPrices() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"BTC":  decimal.NewFromInt(10000),
		"ETH":  decimal.NewFromInt(2000),
		"XRP":  decimal.NewFromInt(1),
		"SOL":  decimal.NewFromInt(100),
		"DOGE": decimal.RequireFromString("0.1"),
		"SHIB": decimal.RequireFromString("0.0001"),
		"DOT":  decimal.NewFromInt(10),
	}
}

// Table is an in-memory price table. Its contents can be swapped atomically.
type Table struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

// NewTable creates a table from prices; symbols are normalized.
func NewTable(prices map[string]decimal.Decimal) *Table {
	t := &Table{}
	t.Replace(prices)
	return t
}

// Price implements model.PriceSource.
func (t *Table) Price(_ context.Context, symbol string) (decimal.Decimal, error) {
	symbol = model.NormalizeSymbol(symbol)
	t.mu.RLock()
	p, ok := t.prices[symbol]
	t.mu.RUnlock()
	if !ok {
		return decimal.Zero, fmt.Errorf("%s: %w", symbol, model.ErrUnknownInstrument)
	}
	return p, nil
}

// Replace swaps the whole table.
func (t *Table) Replace(prices map[string]decimal.Decimal) {
	next := make(map[string]decimal.Decimal, len(prices))
	for s, p := range prices {
		next[model.NormalizeSymbol(s)] = p
	}
	t.mu.Lock()
	t.prices = next
	t.mu.Unlock()
}

// Symbols lists the priced symbols in order.
func (t *Table) Symbols() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.prices))
	for s := range t.prices {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
