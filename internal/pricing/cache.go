package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/shopspring/decimal"

	"tradebook/internal/model"
)

// Cached memoizes successful lookups of next for ttl. Failures are never
// cached.
type Cached struct {
	next model.PriceSource
	c    *ristretto.Cache
	ttl  time.Duration
}

// NewCached wraps next with a TTL cache.
func NewCached(next model.PriceSource, ttl time.Duration) (*Cached, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1 << 12,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("price cache: %w", err)
	}
	return &Cached{next: next, c: c, ttl: ttl}, nil
}

// Price implements model.PriceSource.
func (p *Cached) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	key := model.NormalizeSymbol(symbol)
	if v, ok := p.c.Get(key); ok {
		return v.(decimal.Decimal), nil
	}
	price, err := p.next.Price(ctx, key)
	if err != nil {
		return decimal.Zero, err
	}
	p.c.SetWithTTL(key, price, 1, p.ttl)
	return price, nil
}

// Close stops the cache's background goroutines.
func (p *Cached) Close() {
	p.c.Close()
}
