// Package metrics exposes Prometheus metrics and a health endpoint for the
// trade book.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"tradebook/internal/model"
)

// Metrics holds all Prometheus metrics for the trade book.
type Metrics struct {
	TradesTotal     *prometheus.CounterVec // labels: side
	RejectionsTotal *prometheus.CounterVec // labels: reason
	OpenPositions   prometheus.Gauge
	LedgerTrades    prometheus.Gauge

	JournalAppendDur prometheus.Histogram
	JournalErrors    prometheus.Counter

	HTTPRequestDur *prometheus.HistogramVec // labels: method, route, status
	PnLComputeDur  prometheus.Histogram

	PriceLookups        *prometheus.CounterVec // labels: result
	PriceBreakerState   prometheus.Gauge       // 0=closed, 1=open, 2=half-open
	PriceBreakerTrips   prometheus.Counter
	PriceFileReloads    prometheus.Counter
	WSClients           prometheus.Gauge
	IngestMessagesTotal *prometheus.CounterVec // labels: result
}

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradebook_trades_total",
			Help: "Executed trades by side",
		}, []string{"side"}),
		RejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradebook_trade_rejections_total",
			Help: "Rejected trade submissions by reason",
		}, []string{"reason"}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradebook_open_positions",
			Help: "Instruments with a non-zero holding",
		}),
		LedgerTrades: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradebook_ledger_trades",
			Help: "Trades recorded in the ledger",
		}),

		JournalAppendDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradebook_journal_append_duration_seconds",
			Help:    "Trade journal append latency",
			Buckets: prometheus.DefBuckets,
		}),
		JournalErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradebook_journal_errors_total",
			Help: "Failed trade journal appends",
		}),

		HTTPRequestDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tradebook_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		PnLComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradebook_pnl_compute_duration_seconds",
			Help:    "Time to compute a PnL response including price lookups",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),

		PriceLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradebook_price_lookups_total",
			Help: "Price lookups by result (ok, unknown, error)",
		}, []string{"result"}),
		PriceBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradebook_price_circuit_breaker_state",
			Help: "Redis price circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		PriceBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradebook_price_circuit_breaker_trips_total",
			Help: "Times the Redis price circuit breaker tripped open",
		}),
		PriceFileReloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradebook_price_file_reloads_total",
			Help: "Successful price file reloads",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradebook_ws_clients",
			Help: "Connected websocket clients",
		}),
		IngestMessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradebook_ingest_messages_total",
			Help: "Kafka trade messages by result (accepted, rejected, invalid)",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.TradesTotal,
		m.RejectionsTotal,
		m.OpenPositions,
		m.LedgerTrades,
		m.JournalAppendDur,
		m.JournalErrors,
		m.HTTPRequestDur,
		m.PnLComputeDur,
		m.PriceLookups,
		m.PriceBreakerState,
		m.PriceBreakerTrips,
		m.PriceFileReloads,
		m.WSClients,
		m.IngestMessagesTotal,
	)
	return m
}

// OnTradeEvent implements model.TradeListener.
func (m *Metrics) OnTradeEvent(_ context.Context, ev model.TradeEvent) {
	switch ev.Type {
	case model.EventExecuted:
		m.TradesTotal.WithLabelValues(string(ev.Trade.Side)).Inc()
	case model.EventRejected:
		m.RejectionsTotal.WithLabelValues(ev.Reason).Inc()
	}
	m.OpenPositions.Set(float64(ev.OpenPositions))
	m.LedgerTrades.Set(float64(ev.LedgerSize))
}

// BreakerStateChanged records a circuit breaker transition. State values
// follow the breaker's numbering.
func (m *Metrics) BreakerStateChanged(to int, tripped bool) {
	m.PriceBreakerState.Set(float64(to))
	if tripped {
		m.PriceBreakerTrips.Inc()
	}
}

// Journal wraps a model.TradeJournal and times appends.
type Journal struct {
	model.TradeJournal
	m *Metrics
}

// InstrumentJournal returns j with append latency and errors recorded.
func (m *Metrics) InstrumentJournal(j model.TradeJournal) *Journal {
	return &Journal{TradeJournal: j, m: m}
}

func (j *Journal) Append(ctx context.Context, t model.Trade) error {
	start := time.Now()
	err := j.TradeJournal.Append(ctx, t)
	j.m.JournalAppendDur.Observe(time.Since(start).Seconds())
	if err != nil {
		j.m.JournalErrors.Inc()
	}
	return err
}

// Prices wraps a model.PriceSource and counts lookups by result.
type Prices struct {
	next model.PriceSource
	m    *Metrics
}

// InstrumentPrices returns src with lookups counted.
func (m *Metrics) InstrumentPrices(src model.PriceSource) *Prices {
	return &Prices{next: src, m: m}
}

func (p *Prices) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	price, err := p.next.Price(ctx, symbol)
	switch {
	case err == nil:
		p.m.PriceLookups.WithLabelValues("ok").Inc()
	case isUnknown(err):
		p.m.PriceLookups.WithLabelValues("unknown").Inc()
	default:
		p.m.PriceLookups.WithLabelValues("error").Inc()
	}
	return price, err
}

func isUnknown(err error) bool { return errors.Is(err, model.ErrUnknownInstrument) }
