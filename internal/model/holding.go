package model

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Holding is an open position in one instrument. AverageCost * Quantity is
// the capital committed to it.
type Holding struct {
	Symbol      string
	Quantity    decimal.Decimal
	AverageCost decimal.Decimal
}

// CostBasis returns the capital committed to the holding.
func (h Holding) CostBasis() decimal.Decimal {
	return h.AverageCost.Mul(h.Quantity)
}

func (h Holding) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Symbol       string  `json:"symbol"`
		Quantity     float64 `json:"quantity"`
		AveragePrice float64 `json:"average_price"`
	}{h.Symbol, PresentNumber(h.Quantity), PresentNumber(h.AverageCost)})
}
