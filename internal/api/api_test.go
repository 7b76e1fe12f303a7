package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradebook/internal/book"
	"tradebook/internal/metrics"
	"tradebook/internal/model"
	"tradebook/internal/pnl"
	"tradebook/internal/portfolio"
	"tradebook/internal/pricing"
)

func init() { gin.SetMode(gin.TestMode) }

type testEnv struct {
	srv  *Server
	book *book.Book
}

func newEnv(t *testing.T, opts Options, limits portfolio.RiskLimits) *testEnv {
	t.Helper()
	prices := pricing.NewTable(pricing.DefaultPrices())
	b := book.New(portfolio.NewTracker(limits))
	srv := NewServer(Deps{Book: b, PnL: pnl.New(prices), Prices: prices}, nil, opts)
	return &testEnv{srv: srv, book: b}
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers ...string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func (e *testEnv) post(t *testing.T, symbol, side string, price, qty float64) {
	t.Helper()
	body, _ := json.Marshal(map[string]any{"symbol": symbol, "side": side, "price": price, "quantity": qty})
	code, out := e.do(t, http.MethodPost, "/trades", string(body))
	require.Equal(t, http.StatusCreated, code, out)
}

func rowsBySymbol(t *testing.T, rows any) map[string]map[string]any {
	t.Helper()
	out := map[string]map[string]any{}
	for _, r := range rows.([]any) {
		m := r.(map[string]any)
		out[m["symbol"].(string)] = m
	}
	return out
}

func TestHealth(t *testing.T) {
	e := newEnv(t, Options{}, portfolio.DefaultRiskLimits())
	code, out := e.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, out["ok"])
}

func TestAddTrade(t *testing.T) {
	e := newEnv(t, Options{}, portfolio.DefaultRiskLimits())
	code, out := e.do(t, http.MethodPost, "/trades", `{"symbol":"btc","side":"BUY","price":50000.0,"quantity":0.1}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "Trade added successfully", out["message"])

	trade := out["trade"].(map[string]any)
	assert.Equal(t, "BTC", trade["symbol"])
	assert.Equal(t, "buy", trade["side"])
	assert.Equal(t, 50000.0, trade["price"])
	assert.Equal(t, 0.1, trade["quantity"])
	assert.NotEmpty(t, trade["id"])
	assert.NotEmpty(t, trade["timestamp"])
}

func TestAddTradeErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		field  string
	}{
		{"not json", `invalid data`, http.StatusBadRequest, ""},
		{"json array", `[1]`, http.StatusBadRequest, ""},
		{"missing fields", `{"symbol":"BTC","side":"buy"}`, http.StatusBadRequest, "price"},
		{"invalid side", `{"symbol":"BTC","side":"hold","price":1,"quantity":1}`, http.StatusBadRequest, "side"},
		{"negative price", `{"symbol":"BTC","side":"buy","price":-1000,"quantity":0.1}`, http.StatusBadRequest, "price"},
		{"negative quantity", `{"symbol":"BTC","side":"buy","price":50000,"quantity":-0.1}`, http.StatusBadRequest, "quantity"},
		{"wrong type", `{"symbol":7,"side":"buy","price":1,"quantity":1}`, http.StatusBadRequest, "symbol"},
		{"overflowing price", `{"symbol":"BTC","side":"buy","price":1e400,"quantity":1}`, http.StatusBadRequest, "price"},
		{"vanishing price", `{"symbol":"BTC","side":"buy","price":"1e-2000000","quantity":1}`, http.StatusBadRequest, "price"},
		{"unknown field", `{"symbol":"BTC","side":"buy","price":1,"quantity":1,"fee":2}`, http.StatusBadRequest, "fee"},
		{"sell without holding", `{"symbol":"BTC","side":"sell","price":1,"quantity":1}`, http.StatusUnprocessableEntity, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, Options{}, portfolio.DefaultRiskLimits())
			code, out := e.do(t, http.MethodPost, "/trades", tt.body)
			assert.Equal(t, tt.status, code)
			require.Contains(t, out, "error")
			if tt.field != "" {
				fields, ok := out["error"].(map[string]any)
				require.True(t, ok, "want field errors, got %v", out["error"])
				assert.Contains(t, fields, tt.field)
			}
			assert.Empty(t, e.book.Trades())
		})
	}
}

func TestInvalidJSONMessage(t *testing.T) {
	e := newEnv(t, Options{}, portfolio.DefaultRiskLimits())
	_, out := e.do(t, http.MethodPost, "/trades", `{"symbol":`)
	assert.Equal(t, "Invalid JSON data", out["error"])
}

func TestOversizedSellRejected(t *testing.T) {
	e := newEnv(t, Options{}, portfolio.DefaultRiskLimits())
	e.post(t, "BTC", "buy", 50000, 0.1)

	code, out := e.do(t, http.MethodPost, "/trades", `{"symbol":"BTC","side":"sell","price":1,"quantity":0.2}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, out["error"], "insufficient")
	assert.Len(t, e.book.Trades(), 1)
}

func TestRiskLimitRejected(t *testing.T) {
	e := newEnv(t, Options{}, portfolio.RiskLimits{MaxOpenPositions: 1})
	e.post(t, "BTC", "buy", 50000, 0.1)

	code, _ := e.do(t, http.MethodPost, "/trades", `{"symbol":"ETH","side":"buy","price":1,"quantity":1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestGetTrades(t *testing.T) {
	e := newEnv(t, Options{}, portfolio.DefaultRiskLimits())
	code, out := e.do(t, http.MethodGet, "/trades", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{}, out["trades"])
	assert.Equal(t, 0.0, out["count"])

	e.post(t, "BTC", "buy", 50000, 0.1)
	e.post(t, "ETH", "buy", 3000, 1)
	e.post(t, "BTC", "sell", 52000, 0.05)

	_, out = e.do(t, http.MethodGet, "/trades", "")
	trades := out["trades"].([]any)
	require.Len(t, trades, 3)
	assert.Equal(t, 3.0, out["count"])
	assert.Equal(t, "BTC", trades[0].(map[string]any)["symbol"])
	assert.Equal(t, "ETH", trades[1].(map[string]any)["symbol"])
	assert.Equal(t, "sell", trades[2].(map[string]any)["side"])
}

func TestGetSymbolTrades(t *testing.T) {
	e := newEnv(t, Options{}, portfolio.DefaultRiskLimits())
	e.post(t, "BTC", "buy", 50000, 0.1)
	e.post(t, "ETH", "buy", 3000, 1)
	e.post(t, "BTC", "sell", 52000, 0.05)

	_, out := e.do(t, http.MethodGet, "/trades/btc", "")
	assert.Equal(t, 2.0, out["count"])

	_, out = e.do(t, http.MethodGet, "/trades/BTC?side=sell", "")
	assert.Equal(t, 1.0, out["count"])

	code, out := e.do(t, http.MethodGet, "/trades/BTC?side=short", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, out["error"], "side")

	_, out = e.do(t, http.MethodGet, "/trades/DOGE", "")
	assert.Equal(t, []any{}, out["trades"])
}

func TestGetPortfolio(t *testing.T) {
	e := newEnv(t, Options{}, portfolio.DefaultRiskLimits())
	_, out := e.do(t, http.MethodGet, "/portfolio", "")
	assert.Equal(t, []any{}, out["portfolio"])
	assert.Equal(t, 0.0, out["count"])

	e.post(t, "BTC", "buy", 45000, 0.2)
	e.post(t, "BTC", "buy", 55000, 0.1)
	e.post(t, "ETH", "buy", 2800, 3)
	e.post(t, "BTC", "sell", 60000, 0.15)
	e.post(t, "ETH", "buy", 3200, 1)

	_, out = e.do(t, http.MethodGet, "/portfolio", "")
	assert.Equal(t, 2.0, out["count"])
	rows := rowsBySymbol(t, out["portfolio"])
	assert.Equal(t, 0.15, rows["BTC"]["quantity"])
	assert.InDelta(t, 48333.33, rows["BTC"]["average_price"], 0.01)
	assert.Equal(t, 4.0, rows["ETH"]["quantity"])
	assert.Equal(t, 2900.0, rows["ETH"]["average_price"])
}

func TestPortfolioSellAll(t *testing.T) {
	e := newEnv(t, Options{}, portfolio.DefaultRiskLimits())
	e.post(t, "BTC", "buy", 50000, 0.1)
	e.post(t, "BTC", "sell", 55000, 0.1)

	_, out := e.do(t, http.MethodGet, "/portfolio", "")
	assert.Equal(t, 0.0, out["count"])
}

func TestGetPnLEmpty(t *testing.T) {
	e := newEnv(t, Options{}, portfolio.DefaultRiskLimits())
	code, out := e.do(t, http.MethodGet, "/pnl", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{}, out["pnl"])
	assert.Equal(t, 0.0, out["total_unrealized_pnl"])
	assert.Equal(t, 0.0, out["total_realized_pnl"])
	assert.Equal(t, 0.0, out["total_pnl"])
	assert.Equal(t, 0.0, out["count"])
}

func TestGetPnLMultipleSymbols(t *testing.T) {
	e := newEnv(t, Options{}, portfolio.DefaultRiskLimits())
	e.post(t, "BTC", "buy", 50000, 0.1)
	e.post(t, "ETH", "buy", 3000, 1)
	e.post(t, "BTC", "sell", 55000, 0.05)

	_, out := e.do(t, http.MethodGet, "/pnl", "")
	assert.Equal(t, 2.0, out["count"])
	rows := rowsBySymbol(t, out["pnl"])

	btc := rows["BTC"]
	assert.Equal(t, 0.05, btc["quantity"])
	assert.Equal(t, 50000.0, btc["average_price"])
	assert.Equal(t, 10000.0, btc["current_price"])
	assert.Equal(t, -2000.0, btc["unrealized_pnl"])
	assert.Equal(t, 250.0, btc["realized_pnl"])
	assert.Equal(t, -1750.0, btc["total_pnl"])

	eth := rows["ETH"]
	assert.Equal(t, 2000.0, eth["current_price"])
	assert.Equal(t, -1000.0, eth["unrealized_pnl"])
	assert.Equal(t, 0.0, eth["realized_pnl"])

	assert.Equal(t, -3000.0, out["total_unrealized_pnl"])
	assert.Equal(t, 250.0, out["total_realized_pnl"])
	assert.Equal(t, -2750.0, out["total_pnl"])
}

func TestGetPnLComplexScenario(t *testing.T) {
	e := newEnv(t, Options{}, portfolio.DefaultRiskLimits())
	e.post(t, "BTC", "buy", 40000, 0.3)
	e.post(t, "BTC", "buy", 50000, 0.2)
	e.post(t, "ETH", "buy", 2500, 2)
	e.post(t, "ETH", "buy", 3500, 1)
	e.post(t, "BTC", "sell", 55000, 0.2)
	e.post(t, "ETH", "sell", 3000, 0.5)

	_, out := e.do(t, http.MethodGet, "/pnl", "")
	rows := rowsBySymbol(t, out["pnl"])

	btc := rows["BTC"]
	assert.Equal(t, 0.3, btc["quantity"])
	assert.Equal(t, 44000.0, btc["average_price"])
	assert.Equal(t, 2200.0, btc["realized_pnl"])
	assert.Equal(t, -10200.0, btc["unrealized_pnl"])
	assert.Equal(t, -8000.0, btc["total_pnl"])

	eth := rows["ETH"]
	assert.Equal(t, 2.5, eth["quantity"])
	assert.InDelta(t, 2833.33, eth["average_price"], 0.01)
	assert.Equal(t, 83.33, eth["realized_pnl"])
	assert.Equal(t, -2083.33, eth["unrealized_pnl"])
}

func TestGetSymbolPnL(t *testing.T) {
	e := newEnv(t, Options{}, portfolio.DefaultRiskLimits())
	e.post(t, "BTC", "buy", 45000, 0.2)
	e.post(t, "ETH", "buy", 3000, 1)
	e.post(t, "BTC", "sell", 50000, 0.1)

	code, out := e.do(t, http.MethodGet, "/pnl/btc", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "BTC", out["symbol"])
	assert.Equal(t, 0.1, out["quantity"])
	assert.Equal(t, 45000.0, out["average_price"])
	assert.Equal(t, -3500.0, out["unrealized_pnl"])
	assert.Equal(t, 500.0, out["realized_pnl"])
	assert.Equal(t, -3000.0, out["total_pnl"])

	code, out = e.do(t, http.MethodGet, "/pnl/NONEXISTENT", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, out, "error")
}

func TestPnLUnknownPrice(t *testing.T) {
	e := newEnv(t, Options{}, portfolio.DefaultRiskLimits())
	e.post(t, "ADA", "buy", 1, 10)

	code, _ := e.do(t, http.MethodGet, "/pnl", "")
	assert.Equal(t, http.StatusBadGateway, code)
	code, _ = e.do(t, http.MethodGet, "/pnl/ADA", "")
	assert.Equal(t, http.StatusBadGateway, code)
}

func TestGetPrice(t *testing.T) {
	e := newEnv(t, Options{}, portfolio.DefaultRiskLimits())
	code, out := e.do(t, http.MethodGet, "/prices/eth", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ETH", out["symbol"])
	assert.Equal(t, 2000.0, out["price"])

	code, _ = e.do(t, http.MethodGet, "/prices/NOPE", "")
	assert.Equal(t, http.StatusNotFound, code)
}

type brokenPrices struct{}

func (brokenPrices) Price(context.Context, string) (decimal.Decimal, error) {
	return decimal.Zero, errors.New("connection refused")
}

func TestPriceSourceFailure(t *testing.T) {
	srv := NewServer(Deps{
		Book:   book.New(portfolio.NewTracker(portfolio.DefaultRiskLimits())),
		PnL:    pnl.New(brokenPrices{}),
		Prices: brokenPrices{},
	}, nil, Options{})
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/prices/BTC", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestOTPRequiredForWrites(t *testing.T) {
	const secret = "JBSWY3DPEHPK3PXP"
	e := newEnv(t, Options{OTPSecret: secret}, portfolio.DefaultRiskLimits())
	body := `{"symbol":"BTC","side":"buy","price":1,"quantity":1}`

	code, _ := e.do(t, http.MethodPost, "/trades", body)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = e.do(t, http.MethodPost, "/trades", body, OTPHeader, "000000")
	assert.Equal(t, http.StatusUnauthorized, code)

	otp, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	code, _ = e.do(t, http.MethodPost, "/trades", body, OTPHeader, otp)
	assert.Equal(t, http.StatusCreated, code)

	code, _ = e.do(t, http.MethodGet, "/trades", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestTraceHeaderAndCORS(t *testing.T) {
	e := newEnv(t, Options{CORSOrigin: "https://app.example"}, portfolio.DefaultRiskLimits())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set(TraceHeader, "abc-123")
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(TraceHeader))
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/trades", nil)
	w = httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequestMetrics(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	prices := pricing.NewTable(pricing.DefaultPrices())
	srv := NewServer(Deps{
		Book:    book.New(portfolio.NewTracker(portfolio.DefaultRiskLimits())),
		PnL:     pnl.New(prices),
		Prices:  prices,
		Metrics: m,
	}, nil, Options{})

	srv.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/pnl", nil))
	srv.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/trades/BTC", nil))

	assert.Equal(t, 2, testutil.CollectAndCount(m.HTTPRequestDur))
	assert.Equal(t, 1, testutil.CollectAndCount(m.PnLComputeDur))
}

var _ model.PriceSource = brokenPrices{}
