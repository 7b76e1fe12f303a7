package model

import "github.com/shopspring/decimal"

// MoneyPlaces is the number of decimal places PnL amounts are presented with.
// Arithmetic is never rounded; only presentation is.
const MoneyPlaces = 2

// PresentMoney rounds a money amount for output.
func PresentMoney(d decimal.Decimal) float64 {
	return d.Round(MoneyPlaces).InexactFloat64()
}

// PresentNumber converts prices and quantities for output without rounding.
func PresentNumber(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
