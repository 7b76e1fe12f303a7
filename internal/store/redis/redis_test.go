package redis

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tradebook/internal/model"
)

func TestPriceKey(t *testing.T) {
	assert.Equal(t, "price:BTC", PriceKey(" btc"))
}

func TestParsePrice(t *testing.T) {
	p, err := ParsePrice("BTC", "10000.5")
	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.RequireFromString("10000.5")))

	_, err = ParsePrice("BTC", "abc")
	assert.Error(t, err)
	_, err = ParsePrice("BTC", "-1")
	assert.Error(t, err)
}

func TestPublisherDropsWhenFull(t *testing.T) {
	p := &Publisher{ch: make(chan model.EventMessage, 1), log: zap.NewNop()}
	p.OnTradeEvent(context.Background(), model.TradeEvent{Type: model.EventExecuted})
	p.OnTradeEvent(context.Background(), model.TradeEvent{Type: model.EventExecuted})
	assert.Len(t, p.ch, 1)
}
