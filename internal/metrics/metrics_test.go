package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tradebook/internal/model"
)

func newTestMetrics() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewMetrics(reg), reg
}

func TestOnTradeEvent(t *testing.T) {
	m, _ := newTestMetrics()
	m.OnTradeEvent(context.Background(), model.TradeEvent{
		Type:          model.EventExecuted,
		Trade:         model.Trade{Side: model.SideBuy},
		OpenPositions: 2,
		LedgerSize:    5,
	})
	m.OnTradeEvent(context.Background(), model.TradeEvent{Type: model.EventRejected, Reason: "no_position", OpenPositions: 2, LedgerSize: 5})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TradesTotal.WithLabelValues("buy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RejectionsTotal.WithLabelValues("no_position")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OpenPositions))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.LedgerTrades))
}

type stubJournal struct{ err error }

func (s stubJournal) Append(context.Context, model.Trade) error   { return s.err }
func (s stubJournal) Load(context.Context) ([]model.Trade, error) { return nil, nil }
func (s stubJournal) Close() error                                { return nil }

func TestInstrumentJournal(t *testing.T) {
	m, _ := newTestMetrics()
	require.NoError(t, m.InstrumentJournal(stubJournal{}).Append(context.Background(), model.Trade{}))
	assert.Error(t, m.InstrumentJournal(stubJournal{err: errors.New("x")}).Append(context.Background(), model.Trade{}))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JournalErrors))
}

type stubPrices map[string]error

func (s stubPrices) Price(_ context.Context, symbol string) (decimal.Decimal, error) {
	return decimal.NewFromInt(1), s[symbol]
}

func TestInstrumentPrices(t *testing.T) {
	m, _ := newTestMetrics()
	p := m.InstrumentPrices(stubPrices{"X": model.ErrUnknownInstrument, "Y": errors.New("down")})
	ctx := context.Background()
	p.Price(ctx, "BTC")
	p.Price(ctx, "X")
	p.Price(ctx, "Y")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PriceLookups.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PriceLookups.WithLabelValues("unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PriceLookups.WithLabelValues("error")))
}

func TestBreakerStateChanged(t *testing.T) {
	m, _ := newTestMetrics()
	m.BreakerStateChanged(1, true)
	m.BreakerStateChanged(2, false)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PriceBreakerState))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PriceBreakerTrips))
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestHealthEndpoint(t *testing.T) {
	h := NewHealthStatus("sqlite")
	h.OnTradeEvent(context.Background(), model.TradeEvent{Type: model.EventExecuted, At: time.Now()})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, body["last_trade_time"])

	h.SetRedisEnabled(true)
	h.SetRedisConnected(false)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"degraded"`)

	h.CheckJournal(context.Background(), stubPinger{err: errors.New("locked")})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"unhealthy"`)
}

func TestServerExposesMetrics(t *testing.T) {
	m, reg := newTestMetrics()
	m.TradesTotal.WithLabelValues("sell").Inc()
	s := NewServer(":0", NewHealthStatus("memory"), reg, zap.NewNop())

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `tradebook_trades_total{side="sell"} 1`))
}
