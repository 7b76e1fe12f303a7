package notification

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tradebook/internal/model"
)

// TradeAlerts turns book events into alerts and delivers them from a
// background goroutine so slow channels never hold up a submission.
type TradeAlerts struct {
	n       Notifier
	queue   chan Alert
	log     *zap.Logger
	timeout time.Duration

	// Executed controls whether executed trades are announced; rejections
	// always are.
	Executed bool
}

// NewTradeAlerts creates a listener delivering through n.
func NewTradeAlerts(n Notifier, log *zap.Logger) *TradeAlerts {
	return &TradeAlerts{
		n:        n,
		queue:    make(chan Alert, 256),
		log:      log,
		timeout:  10 * time.Second,
		Executed: true,
	}
}

// OnTradeEvent implements model.TradeListener.
func (a *TradeAlerts) OnTradeEvent(_ context.Context, ev model.TradeEvent) {
	if ev.Type == model.EventExecuted && !a.Executed {
		return
	}
	select {
	case a.queue <- AlertFor(ev):
	default:
		a.log.Warn("alert queue full, dropping alert", zap.String("type", string(ev.Type)))
	}
}

// Run delivers queued alerts until ctx is cancelled.
func (a *TradeAlerts) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case alert := <-a.queue:
			sctx, cancel := context.WithTimeout(ctx, a.timeout)
			if err := a.n.Send(sctx, alert); err != nil {
				a.log.Warn("alert delivery failed", zap.String("title", alert.Title), zap.Error(err))
			}
			cancel()
		}
	}
}

// AlertFor describes a book event.
func AlertFor(ev model.TradeEvent) Alert {
	if ev.Type == model.EventExecuted {
		t := ev.Trade
		return Alert{
			Level:   AlertInfo,
			Title:   fmt.Sprintf("%s %s executed", t.Side, t.Symbol),
			Message: fmt.Sprintf("%s %s %s @ %s", t.Side, t.Quantity, t.Symbol, t.Price),
			Fields: map[string]string{
				"trade_id":       t.ID,
				"notional":       t.Notional().String(),
				"open_positions": fmt.Sprint(ev.OpenPositions),
			},
		}
	}

	level := AlertWarning
	if ev.Reason == "internal" {
		level = AlertCritical
	}
	msg := ev.Reason
	if ev.Err != nil {
		msg = ev.Err.Error()
	}
	r := ev.Request
	return Alert{
		Level:   level,
		Title:   fmt.Sprintf("%s %s rejected", r.Side, model.NormalizeSymbol(r.Symbol)),
		Message: msg,
		Fields: map[string]string{
			"reason":   ev.Reason,
			"price":    r.Price,
			"quantity": r.Quantity,
		},
	}
}
