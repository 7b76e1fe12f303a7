// Package book owns the trade ledger and the portfolio tracker and keeps
// them consistent. Every submission is validated against the tracker,
// journaled, and only then appended and applied, all under one lock.
package book

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tradebook/internal/ledger"
	"tradebook/internal/model"
	"tradebook/internal/portfolio"
)

// Book is safe for concurrent use.
type Book struct {
	mu      sync.RWMutex
	ledger  *ledger.Ledger
	tracker *portfolio.Tracker

	journal   model.TradeJournal
	listeners []model.TradeListener
	log       *zap.Logger
	now       func() time.Time
	newID     func() string

	// lastAt is the newest CreatedAt in the ledger. Timestamps never go
	// backwards in ledger order.
	lastAt time.Time
}

// Option configures a Book.
type Option func(*Book)

// WithJournal persists every accepted trade to j before it becomes visible.
func WithJournal(j model.TradeJournal) Option {
	return func(b *Book) { b.journal = j }
}

// WithListener registers l for trade events.
func WithListener(l model.TradeListener) Option {
	return func(b *Book) { b.listeners = append(b.listeners, l) }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Book) { b.log = l }
}

// WithClock overrides the trade timestamp source. It is called with the
// book's write lock held.
func WithClock(now func() time.Time) Option {
	return func(b *Book) { b.now = now }
}

// WithIDs overrides trade ID generation.
func WithIDs(newID func() string) Option {
	return func(b *Book) { b.newID = newID }
}

// New creates a Book around tracker.
func New(tracker *portfolio.Tracker, opts ...Option) *Book {
	b := &Book{
		ledger:  ledger.New(),
		tracker: tracker,
		log:     zap.NewNop(),
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Submit validates req, records the resulting trade and updates holdings.
// Nothing changes unless validation, the holdings check and the journal
// append all succeed. The trade is timestamped under the write lock, so
// ledger order and CreatedAt order agree.
func (b *Book) Submit(ctx context.Context, req model.TradeRequest) (model.Trade, error) {
	trade, err := model.NewTrade(req, b.newID(), time.Time{})
	if err != nil {
		b.reject(ctx, req, err)
		return model.Trade{}, err
	}

	b.mu.Lock()
	trade.CreatedAt = b.stamp()
	if err := b.tracker.Check(trade); err != nil {
		b.mu.Unlock()
		b.reject(ctx, req, err)
		return model.Trade{}, err
	}
	if b.journal != nil {
		if err := b.journal.Append(ctx, trade); err != nil {
			b.mu.Unlock()
			err = fmt.Errorf("journal append %s: %w", trade.ID, err)
			b.reject(ctx, req, err)
			return model.Trade{}, err
		}
	}
	if err := b.tracker.Apply(trade); err != nil {
		// Check passed under the same lock, so this cannot happen.
		b.mu.Unlock()
		return model.Trade{}, fmt.Errorf("apply %s: %w", trade.ID, err)
	}
	b.ledger.Append(trade)
	b.lastAt = trade.CreatedAt
	open, size := b.tracker.Len(), b.ledger.Len()
	b.mu.Unlock()

	b.log.Info("trade executed",
		zap.String("id", trade.ID),
		zap.String("symbol", trade.Symbol),
		zap.String("side", string(trade.Side)),
		zap.String("price", trade.Price.String()),
		zap.String("quantity", trade.Quantity.String()),
	)
	b.publish(ctx, model.TradeEvent{
		Type:          model.EventExecuted,
		Trade:         trade,
		OpenPositions: open,
		LedgerSize:    size,
		At:            trade.CreatedAt,
	})
	return trade, nil
}

// Restore rebuilds the ledger and holdings from the journal. It must run
// before the book serves traffic.
func (b *Book) Restore(ctx context.Context) (int, error) {
	if b.journal == nil {
		return 0, nil
	}
	trades, err := b.journal.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("journal load: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range trades {
		if err := b.tracker.Replay(t); err != nil {
			return b.ledger.Len(), fmt.Errorf("restore trade %s: %w", t.ID, err)
		}
		b.ledger.Append(t)
		if t.CreatedAt.After(b.lastAt) {
			b.lastAt = t.CreatedAt
		}
	}
	b.log.Info("book restored",
		zap.Int("trades", b.ledger.Len()),
		zap.Int("open_positions", b.tracker.Len()),
	)
	return len(trades), nil
}

// Trades returns every trade in submission order.
func (b *Book) Trades() []model.Trade {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ledger.All()
}

// TradesFor returns the trades of symbol, optionally narrowed to one side.
func (b *Book) TradesFor(symbol string, side *model.Side) []model.Trade {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ledger.ByInstrumentAndSide(symbol, side)
}

// Holdings returns every open holding ordered by symbol.
func (b *Book) Holdings() []model.Holding {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return portfolio.SortedHoldings(b.tracker.Holdings())
}

// Holding returns the open holding for symbol or model.ErrNotFound.
func (b *Book) Holding(symbol string) (model.Holding, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tracker.Holding(symbol)
}

// Stats returns the ledger size and the number of open holdings.
func (b *Book) Stats() (trades, open int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ledger.Len(), b.tracker.Len()
}

// Snapshot copies holdings and trades under one read lock so that PnL can
// be computed without holding it.
func (b *Book) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Snapshot{
		holdings: b.tracker.Holdings(),
		trades:   b.ledger.All(),
	}
}

// stamp returns the clock reading, clamped so it is never older than the
// last committed trade. Callers hold b.mu.
func (b *Book) stamp() time.Time {
	at := b.now()
	if at.Before(b.lastAt) {
		return b.lastAt
	}
	return at
}

func (b *Book) reject(ctx context.Context, req model.TradeRequest, err error) {
	b.log.Warn("trade rejected",
		zap.String("symbol", req.Symbol),
		zap.String("side", req.Side),
		zap.Error(err),
	)
	b.mu.Lock()
	open, size, at := b.tracker.Len(), b.ledger.Len(), b.stamp()
	b.mu.Unlock()
	b.publish(ctx, model.TradeEvent{
		Type:          model.EventRejected,
		Request:       req,
		Reason:        RejectReason(err),
		Err:           err,
		OpenPositions: open,
		LedgerSize:    size,
		At:            at,
	})
}

func (b *Book) publish(ctx context.Context, ev model.TradeEvent) {
	for _, l := range b.listeners {
		l.OnTradeEvent(ctx, ev)
	}
}

// RejectReason classifies a submission error into a short label.
func RejectReason(err error) string {
	if _, ok := model.AsValidation(err); ok {
		return "validation"
	}
	switch {
	case errors.Is(err, model.ErrNoPosition):
		return "no_position"
	case errors.Is(err, model.ErrInsufficientQuantity):
		return "insufficient_quantity"
	case errors.Is(err, model.ErrRiskLimit):
		return "risk_limit"
	case errors.Is(err, model.ErrInvalidJSON):
		return "invalid_json"
	}
	return "internal"
}
