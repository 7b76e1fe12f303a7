package model

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// NoTradesNote is attached to a realized result for an instrument without trades.
const NoTradesNote = "No trades found for this symbol"

// UnrealizedPnL is the mark-to-market result for one holding.
type UnrealizedPnL struct {
	Symbol       string
	Quantity     decimal.Decimal
	AverageCost  decimal.Decimal
	CurrentPrice decimal.Decimal
	Amount       decimal.Decimal
}

// RealizedPnL is the profit locked in by past sells of one instrument.
type RealizedPnL struct {
	Symbol string
	Amount decimal.Decimal
	Note   string
}

// CombinedPnL joins the unrealized and realized results for one instrument.
type CombinedPnL struct {
	Symbol       string
	Quantity     decimal.Decimal
	AverageCost  decimal.Decimal
	CurrentPrice decimal.Decimal
	Unrealized   decimal.Decimal
	Realized     decimal.Decimal
}

func (c CombinedPnL) Total() decimal.Decimal {
	return c.Unrealized.Add(c.Realized)
}

func (c CombinedPnL) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Symbol        string  `json:"symbol"`
		Quantity      float64 `json:"quantity"`
		AveragePrice  float64 `json:"average_price"`
		CurrentPrice  float64 `json:"current_price"`
		UnrealizedPnL float64 `json:"unrealized_pnl"`
		RealizedPnL   float64 `json:"realized_pnl"`
		TotalPnL      float64 `json:"total_pnl"`
	}{
		Symbol:        c.Symbol,
		Quantity:      PresentNumber(c.Quantity),
		AveragePrice:  PresentNumber(c.AverageCost),
		CurrentPrice:  PresentNumber(c.CurrentPrice),
		UnrealizedPnL: PresentMoney(c.Unrealized),
		RealizedPnL:   PresentMoney(c.Realized),
		TotalPnL:      PresentMoney(c.Total()),
	})
}

// PnLSummary aggregates every open holding. Totals are summed at full
// precision before rounding.
type PnLSummary struct {
	Rows            []CombinedPnL
	TotalUnrealized decimal.Decimal
	TotalRealized   decimal.Decimal
}

func (s PnLSummary) Total() decimal.Decimal {
	return s.TotalUnrealized.Add(s.TotalRealized)
}

func (s PnLSummary) MarshalJSON() ([]byte, error) {
	rows := s.Rows
	if rows == nil {
		rows = []CombinedPnL{}
	}
	return json.Marshal(struct {
		PnL                []CombinedPnL `json:"pnl"`
		TotalUnrealizedPnL float64       `json:"total_unrealized_pnl"`
		TotalRealizedPnL   float64       `json:"total_realized_pnl"`
		TotalPnL           float64       `json:"total_pnl"`
		Count              int           `json:"count"`
	}{
		PnL:                rows,
		TotalUnrealizedPnL: PresentMoney(s.TotalUnrealized),
		TotalRealizedPnL:   PresentMoney(s.TotalRealized),
		TotalPnL:           PresentMoney(s.Total()),
		Count:              len(rows),
	})
}
