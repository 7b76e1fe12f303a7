package model

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ── Port Interfaces ──
// These interfaces decouple the book from concrete storage, pricing and
// delivery implementations.

// TradeJournal persists executed trades so the book can be rebuilt on start.
type TradeJournal interface {
	// Append durably records one trade. The trade only becomes visible in the
	// book if Append succeeds.
	Append(ctx context.Context, t Trade) error

	// Load returns every recorded trade in append order.
	Load(ctx context.Context) ([]Trade, error)

	// Close releases underlying resources.
	Close() error
}

// PriceSource supplies the current market price of an instrument.
type PriceSource interface {
	// Price fails with ErrUnknownInstrument for symbols it cannot price.
	Price(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// EventType distinguishes executed trades from rejected submissions.
type EventType string

const (
	EventExecuted EventType = "trade.executed"
	EventRejected EventType = "trade.rejected"
)

// TradeEvent is published by the book after every submission.
type TradeEvent struct {
	Type    EventType
	Trade   Trade        // set for EventExecuted
	Request TradeRequest // set for EventRejected
	Reason  string       // set for EventRejected
	Err     error        // set for EventRejected

	OpenPositions int
	LedgerSize    int
	At            time.Time
}

// TradeListener receives book events. Implementations must not block.
type TradeListener interface {
	OnTradeEvent(ctx context.Context, ev TradeEvent)
}

// EventMessage is the wire form of a TradeEvent, shared by every transport
// that forwards book events.
type EventMessage struct {
	Type    EventType     `json:"type"`
	Trade   *Trade        `json:"trade,omitempty"`
	Request *TradeRequest `json:"request,omitempty"`
	Reason  string        `json:"reason,omitempty"`
	Error   string        `json:"error,omitempty"`
	TS      time.Time     `json:"ts"`
}

// Message converts ev to its wire form.
func (ev TradeEvent) Message() EventMessage {
	out := EventMessage{Type: ev.Type, Reason: ev.Reason, TS: ev.At}
	if ev.Type == EventExecuted {
		t := ev.Trade
		out.Trade = &t
		return out
	}
	r := ev.Request
	out.Request = &r
	if ev.Err != nil {
		out.Error = ev.Err.Error()
	}
	return out
}
