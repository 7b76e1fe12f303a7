package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// TradeRequest is an unvalidated trade submission as received from a client.
// Numeric fields keep their textual form so decimals are parsed exactly.
// An empty field means the field was absent.
type TradeRequest struct {
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

var tradeRequestFields = map[string]bool{
	"symbol":   true,
	"side":     true,
	"price":    true,
	"quantity": true,
}

// DecodeTradeRequest parses a JSON trade submission. Numbers may be given as
// JSON numbers or numeric strings. Malformed JSON yields ErrInvalidJSON; a
// field of the wrong JSON type, or a field not part of a trade, yields a
// *ValidationError. Field names are case-sensitive.
func DecodeTradeRequest(data []byte) (TradeRequest, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return TradeRequest{}, ErrInvalidJSON
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return TradeRequest{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	verr := &ValidationError{}
	for name := range raw {
		if !tradeRequestFields[name] {
			verr.Add(name, "Unknown field.")
		}
	}
	req := TradeRequest{
		Symbol:   stringField(verr, "symbol", raw["symbol"]),
		Side:     stringField(verr, "side", raw["side"]),
		Price:    numberField(verr, "price", raw["price"]),
		Quantity: numberField(verr, "quantity", raw["quantity"]),
	}
	if err := verr.Err(); err != nil {
		return TradeRequest{}, err
	}
	return req, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func stringField(verr *ValidationError, field string, raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		verr.Add(field, "Not a valid string.")
		return ""
	}
	return s
}

func numberField(verr *ValidationError, field string, raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			verr.Add(field, msgNotNumber)
			return ""
		}
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		verr.Add(field, msgNotNumber)
		return ""
	}
	return n.String()
}
