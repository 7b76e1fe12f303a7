package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"

	"tradebook/internal/model"
)

const priceKeyPrefix = "price:"

// PriceKey returns the Redis key holding the price of symbol.
func PriceKey(symbol string) string {
	return priceKeyPrefix + model.NormalizeSymbol(symbol)
}

// PriceStore reads prices written by an external feed. Calls go through a
// circuit breaker so an unreachable Redis fails fast.
type PriceStore struct {
	client  *goredis.Client
	breaker *CircuitBreaker
	timeout time.Duration
}

// NewPriceStore wraps client. breaker may be nil.
func NewPriceStore(client *goredis.Client, breaker *CircuitBreaker) *PriceStore {
	if breaker == nil {
		breaker = NewCircuitBreaker(5, 10*time.Second)
	}
	return &PriceStore{client: client, breaker: breaker, timeout: 500 * time.Millisecond}
}

// Price implements model.PriceSource.
func (s *PriceStore) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var raw string
	err := s.breaker.Execute(func() error {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		v, err := s.client.Get(ctx, PriceKey(symbol)).Result()
		if err != nil {
			return err
		}
		raw = v
		return nil
	}, func(err error) bool { return !errors.Is(err, goredis.Nil) })

	if errors.Is(err, goredis.Nil) {
		return decimal.Zero, fmt.Errorf("%s: %w", model.NormalizeSymbol(symbol), model.ErrUnknownInstrument)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("redis price %s: %w", symbol, err)
	}
	return ParsePrice(symbol, raw)
}

// ParsePrice parses a stored price value; non-positive values are rejected.
func ParsePrice(symbol, raw string) (decimal.Decimal, error) {
	p, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("redis price %s: bad value %q: %w", symbol, raw, err)
	}
	if !p.IsPositive() {
		return decimal.Zero, fmt.Errorf("redis price %s: non-positive value %s", symbol, p)
	}
	return p, nil
}
