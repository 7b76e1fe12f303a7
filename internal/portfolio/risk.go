package portfolio

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tradebook/internal/model"
)

// RiskLimits defines optional thresholds applied to buys. Zero values mean
// the limit is disabled.
type RiskLimits struct {
	MaxOpenPositions int             `json:"max_open_positions"` // max number of concurrent holdings
	MaxPositionQty   decimal.Decimal `json:"max_position_qty"`   // max quantity per instrument
}

// DefaultRiskLimits returns limits that allow every trade.
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{}
}

func (l RiskLimits) check(holdings map[string]model.Holding, trade model.Trade) error {
	h, held := holdings[trade.Symbol]

	if l.MaxOpenPositions > 0 && !held && len(holdings) >= l.MaxOpenPositions {
		return fmt.Errorf("buy %s: max open positions (%d) reached: %w",
			trade.Symbol, l.MaxOpenPositions, model.ErrRiskLimit)
	}

	if l.MaxPositionQty.IsPositive() {
		next := h.Quantity.Add(trade.Quantity)
		if next.GreaterThan(l.MaxPositionQty) {
			return fmt.Errorf("buy %s: position %s exceeds limit %s: %w",
				trade.Symbol, next, l.MaxPositionQty, model.ErrRiskLimit)
		}
	}
	return nil
}
