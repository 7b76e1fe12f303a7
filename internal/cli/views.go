package cli

import (
	"time"

	"github.com/shopspring/decimal"
)

type tradeView struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Side      string          `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	Timestamp time.Time       `json:"timestamp"`
}

type tradesView struct {
	Trades []tradeView `json:"trades"`
	Count  int         `json:"count"`
}

type submitView struct {
	Message string    `json:"message"`
	Trade   tradeView `json:"trade"`
}

type holdingView struct {
	Symbol       string          `json:"symbol"`
	Quantity     decimal.Decimal `json:"quantity"`
	AveragePrice decimal.Decimal `json:"average_price"`
}

type portfolioView struct {
	Portfolio []holdingView `json:"portfolio"`
	Count     int           `json:"count"`
}

type pnlRowView struct {
	Symbol        string          `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"`
	AveragePrice  decimal.Decimal `json:"average_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	TotalPnL      decimal.Decimal `json:"total_pnl"`
}

type pnlView struct {
	PnL             []pnlRowView    `json:"pnl"`
	TotalUnrealized decimal.Decimal `json:"total_unrealized_pnl"`
	TotalRealized   decimal.Decimal `json:"total_realized_pnl"`
	Total           decimal.Decimal `json:"total_pnl"`
	Count           int             `json:"count"`
}

type priceView struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}
