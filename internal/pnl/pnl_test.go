package pnl

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradebook/internal/ledger"
	"tradebook/internal/model"
	"tradebook/internal/portfolio"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakePrices map[string]string

func (f fakePrices) Price(_ context.Context, symbol string) (decimal.Decimal, error) {
	p, ok := f[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s: %w", symbol, model.ErrUnknownInstrument)
	}
	return d(p), nil
}

// state is a minimal State built by replaying trades through a tracker.
type state struct {
	tracker *portfolio.Tracker
	ledger  *ledger.Ledger
}

func (s state) Holdings() []model.Holding { return portfolio.SortedHoldings(s.tracker.Holdings()) }
func (s state) Holding(symbol string) (model.Holding, error) {
	return s.tracker.Holding(symbol)
}
func (s state) TradesFor(symbol string) []model.Trade { return s.ledger.ByInstrument(symbol) }

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func build(t *testing.T, specs ...[4]string) state {
	t.Helper()
	st := state{tracker: portfolio.NewTracker(portfolio.DefaultRiskLimits()), ledger: ledger.New()}
	for i, sp := range specs {
		tr := model.Trade{
			ID:        fmt.Sprint(i),
			Symbol:    sp[0],
			Side:      model.Side(sp[1]),
			Price:     d(sp[2]),
			Quantity:  d(sp[3]),
			CreatedAt: t0.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, st.tracker.Apply(tr))
		st.ledger.Append(tr)
	}
	return st
}

func money(v decimal.Decimal) string {
	return v.Round(model.MoneyPlaces).StringFixed(model.MoneyPlaces)
}

func TestUnrealizedFor(t *testing.T) {
	u := UnrealizedFor("BTC", d("0.1"), d("45000"), d("10000"))
	assert.Equal(t, "-3500.00", money(u.Amount))
	assert.True(t, u.CurrentPrice.Equal(d("10000")))
}

func TestRealizedNoTrades(t *testing.T) {
	r := RealizedFor("BTC", nil)
	assert.True(t, r.Amount.IsZero())
	assert.Equal(t, model.NoTradesNote, r.Note)
}

func TestRealizedSingleSell(t *testing.T) {
	st := build(t,
		[4]string{"BTC", "buy", "45000", "0.2"},
		[4]string{"BTC", "sell", "50000", "0.1"},
	)
	r := RealizedFor("BTC", st.TradesFor("BTC"))
	assert.Equal(t, "500.00", money(r.Amount))
	assert.Empty(t, r.Note)

	c := New(fakePrices{"BTC": "10000"})
	row, err := c.ForSymbol(context.Background(), st, "btc")
	require.NoError(t, err)
	assert.Equal(t, "-3500.00", money(row.Unrealized))
	assert.Equal(t, "500.00", money(row.Realized))
	assert.Equal(t, "-3000.00", money(row.Total()))
}

func TestRealizedReplaysChronologically(t *testing.T) {
	trades := []model.Trade{
		{Symbol: "BTC", Side: model.SideSell, Price: d("55000"), Quantity: d("0.2"), CreatedAt: t0.Add(3 * time.Second)},
		{Symbol: "BTC", Side: model.SideBuy, Price: d("40000"), Quantity: d("0.3"), CreatedAt: t0.Add(1 * time.Second)},
		{Symbol: "BTC", Side: model.SideBuy, Price: d("50000"), Quantity: d("0.2"), CreatedAt: t0.Add(2 * time.Second)},
	}
	r := RealizedFor("BTC", trades)
	assert.Equal(t, "2200.00", money(r.Amount))
}

func TestRealizedClampsOversizedSell(t *testing.T) {
	trades := []model.Trade{
		{Symbol: "SOL", Side: model.SideBuy, Price: d("100"), Quantity: d("1"), CreatedAt: t0},
		{Symbol: "SOL", Side: model.SideSell, Price: d("150"), Quantity: d("2"), CreatedAt: t0.Add(time.Second)},
		{Symbol: "SOL", Side: model.SideSell, Price: d("150"), Quantity: d("1"), CreatedAt: t0.Add(2 * time.Second)},
	}
	r := RealizedFor("SOL", trades)
	assert.Equal(t, "50.00", money(r.Amount))
}

func TestRealizedIsIdempotent(t *testing.T) {
	st := build(t,
		[4]string{"ETH", "buy", "2500", "2"},
		[4]string{"ETH", "buy", "3500", "1"},
		[4]string{"ETH", "sell", "3000", "0.5"},
	)
	first := RealizedFor("ETH", st.TradesFor("ETH"))
	second := RealizedFor("ETH", st.TradesFor("ETH"))
	assert.True(t, first.Amount.Equal(second.Amount))
}

func TestSummaryComplexScenario(t *testing.T) {
	st := build(t,
		[4]string{"BTC", "buy", "40000", "0.3"},
		[4]string{"BTC", "buy", "50000", "0.2"},
		[4]string{"BTC", "sell", "55000", "0.2"},
		[4]string{"ETH", "buy", "2500", "2"},
		[4]string{"ETH", "buy", "3500", "1"},
		[4]string{"ETH", "sell", "3000", "0.5"},
	)
	c := New(fakePrices{"BTC": "10000", "ETH": "2000"})
	sum, err := c.Summary(context.Background(), st)
	require.NoError(t, err)
	require.Len(t, sum.Rows, 2)

	btc, eth := sum.Rows[0], sum.Rows[1]
	assert.Equal(t, "BTC", btc.Symbol)
	assert.True(t, btc.Quantity.Equal(d("0.3")))
	assert.True(t, btc.AverageCost.Equal(d("44000")))
	assert.Equal(t, "2200.00", money(btc.Realized))
	assert.Equal(t, "-10200.00", money(btc.Unrealized))
	assert.Equal(t, "-8000.00", money(btc.Total()))

	assert.Equal(t, "ETH", eth.Symbol)
	assert.True(t, eth.Quantity.Equal(d("2.5")))
	assert.Equal(t, "2833.33", money(eth.AverageCost))
	assert.Equal(t, "83.33", money(eth.Realized))
	assert.Equal(t, "-2083.33", money(eth.Unrealized))

	assert.Equal(t, "-12283.33", money(sum.TotalUnrealized))
	assert.Equal(t, "2283.33", money(sum.TotalRealized))
	assert.Equal(t, "-10000.00", money(sum.Total()))
}

func TestSummaryMultiSymbol(t *testing.T) {
	st := build(t,
		[4]string{"BTC", "buy", "50000", "0.1"},
		[4]string{"ETH", "buy", "3000", "1"},
		[4]string{"BTC", "sell", "55000", "0.05"},
	)
	c := New(fakePrices{"BTC": "10000", "ETH": "2000"})
	sum, err := c.Summary(context.Background(), st)
	require.NoError(t, err)
	require.Len(t, sum.Rows, 2)
	assert.Equal(t, "250.00", money(sum.Rows[0].Realized))
	assert.Equal(t, "-2000.00", money(sum.Rows[0].Unrealized))
	assert.Equal(t, "-1000.00", money(sum.Rows[1].Unrealized))
	assert.Equal(t, "-3000.00", money(sum.TotalUnrealized))
	assert.Equal(t, "250.00", money(sum.TotalRealized))
	assert.Equal(t, "-2750.00", money(sum.Total()))
}

func TestSummaryOmitsClosedAndEmpty(t *testing.T) {
	c := New(fakePrices{"BTC": "10000"})

	empty, err := c.Summary(context.Background(), build(t))
	require.NoError(t, err)
	assert.Empty(t, empty.Rows)
	assert.True(t, empty.Total().IsZero())

	closed := build(t,
		[4]string{"BTC", "buy", "50000", "0.1"},
		[4]string{"BTC", "sell", "60000", "0.1"},
	)
	sum, err := c.Summary(context.Background(), closed)
	require.NoError(t, err)
	assert.Empty(t, sum.Rows)

	_, err = c.ForSymbol(context.Background(), closed, "BTC")
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestSummaryUnknownPrice(t *testing.T) {
	st := build(t, [4]string{"ABC", "buy", "1", "1"})
	_, err := New(fakePrices{}).Summary(context.Background(), st)
	assert.True(t, errors.Is(err, model.ErrUnknownInstrument))
}
