package redis

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"tradebook/internal/model"
)

const (
	// TradeChannel is the Pub/Sub channel trade events are published on.
	TradeChannel = "pub:trades"
	// TradeStream keeps a trimmed history of trade events.
	TradeStream = "stream:trades"

	tradeStreamMaxLen = 10000
)

// Publisher forwards book events to Redis. Writes happen on a background
// goroutine so the book is never blocked by Redis.
type Publisher struct {
	client *goredis.Client
	ch     chan model.EventMessage
	log    *zap.Logger
}

// NewPublisher creates a publisher with a bounded queue.
func NewPublisher(client *goredis.Client, log *zap.Logger) *Publisher {
	return &Publisher{client: client, ch: make(chan model.EventMessage, 1024), log: log}
}

// OnTradeEvent implements model.TradeListener. Events are dropped when the
// queue is full.
func (p *Publisher) OnTradeEvent(_ context.Context, ev model.TradeEvent) {
	select {
	case p.ch <- ev.Message():
	default:
		p.log.Warn("redis publisher queue full, dropping event", zap.String("type", string(ev.Type)))
	}
}

// Run drains the queue until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.ch:
			p.write(ctx, ev)
		}
	}
}

func (p *Publisher) write(ctx context.Context, ev model.EventMessage) {
	data, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("marshal trade event", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	pipe := p.client.Pipeline()
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: TradeStream,
		MaxLen: tradeStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type": string(ev.Type),
			"data": string(data),
		},
	})
	pipe.Publish(ctx, TradeChannel, data)
	if _, err := pipe.Exec(ctx); err != nil {
		p.log.Warn("redis publish failed", zap.String("type", string(ev.Type)), zap.Error(err))
	}
}
