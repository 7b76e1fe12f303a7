package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ParseSide accepts "buy" or "sell" in any case.
func ParseSide(s string) (Side, bool) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, true
	case SideSell:
		return SideSell, true
	}
	return "", false
}

// NormalizeSymbol uppercases and trims an instrument symbol.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Trade is a single executed buy or sell. Trades are never mutated after
// they enter the ledger.
type Trade struct {
	ID        string
	Symbol    string
	Side      Side
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	CreatedAt time.Time
}

// Notional returns price * quantity.
func (t Trade) Notional() decimal.Decimal {
	return t.Price.Mul(t.Quantity)
}

type tradeJSON struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Side      Side      `json:"side"`
	Price     float64   `json:"price"`
	Quantity  float64   `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
}

// MarshalJSON renders the trade the way the HTTP API and the event stream
// present it, with numbers instead of decimal strings.
func (t Trade) MarshalJSON() ([]byte, error) {
	return json.Marshal(tradeJSON{
		ID:        t.ID,
		Symbol:    t.Symbol,
		Side:      t.Side,
		Price:     PresentNumber(t.Price),
		Quantity:  PresentNumber(t.Quantity),
		Timestamp: t.CreatedAt,
	})
}

// NewTrade validates req and builds the trade it describes. On failure the
// error is a *ValidationError listing every offending field.
func NewTrade(req TradeRequest, id string, at time.Time) (Trade, error) {
	verr := &ValidationError{}

	symbol := NormalizeSymbol(req.Symbol)
	if symbol == "" {
		verr.Add("symbol", msgRequired)
	}

	var side Side
	if strings.TrimSpace(req.Side) == "" {
		verr.Add("side", msgRequired)
	} else if s, ok := ParseSide(req.Side); ok {
		side = s
	} else {
		verr.Add("side", "Must be one of: buy, sell.")
	}

	price := positiveField(verr, "price", req.Price)
	qty := positiveField(verr, "quantity", req.Quantity)

	if err := verr.Err(); err != nil {
		return Trade{}, err
	}
	return Trade{
		ID:        id,
		Symbol:    symbol,
		Side:      side,
		Price:     price,
		Quantity:  qty,
		CreatedAt: at,
	}, nil
}

func positiveField(verr *ValidationError, field, raw string) decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		verr.Add(field, msgRequired)
		return decimal.Zero
	}
	if len(raw) > maxNumberLen {
		verr.Add(field, msgNotNumber)
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		verr.Add(field, msgNotNumber)
		return decimal.Zero
	}
	if !d.IsPositive() {
		verr.Add(field, "Must be greater than 0.")
		return d
	}
	if msg := checkRange(d); msg != "" {
		verr.Add(field, msg)
	}
	return d
}

// Bounds on accepted prices and quantities.
const (
	MaxIntegerDigits = 15
	MaxDecimalPlaces = 18

	maxNumberLen = 64
)

// checkRange returns a validation message when d has more integer digits or
// decimal places than a trade number may carry. The exponent is checked
// before any rescaling so extreme inputs are rejected in constant time.
func checkRange(d decimal.Decimal) string {
	exp := d.Exponent()
	if int64(d.NumDigits())+int64(exp) > MaxIntegerDigits {
		return fmt.Sprintf("Must be less than 1e%d.", MaxIntegerDigits)
	}
	if exp < -4*MaxDecimalPlaces || (exp < -MaxDecimalPlaces && !d.Equal(d.Truncate(MaxDecimalPlaces))) {
		return fmt.Sprintf("Must have at most %d decimal places.", MaxDecimalPlaces)
	}
	return ""
}
