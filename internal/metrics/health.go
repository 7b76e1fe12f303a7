package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"tradebook/internal/model"
)

// Pinger is implemented by journals backed by a database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthStatus represents the service health.
type HealthStatus struct {
	mu sync.RWMutex

	JournalBackend string    `json:"journal_backend"`
	JournalOK      bool      `json:"journal_ok"`
	RedisEnabled   bool      `json:"redis_enabled"`
	RedisConnected bool      `json:"redis_connected"`
	LastTradeTime  time.Time `json:"last_trade_time"`
	IngestEnabled  bool      `json:"ingest_enabled"`
	IngestRunning  bool      `json:"ingest_running"`

	// Liveness probe results
	RedisLatencyMs   float64   `json:"redis_latency_ms"`
	JournalLatencyMs float64   `json:"journal_latency_ms"`
	LastCheckAt      time.Time `json:"last_check_at"`
	StartedAt        time.Time `json:"started_at"`
}

// NewHealthStatus returns a health status for the given journal backend.
// A memory journal is always healthy.
func NewHealthStatus(journalBackend string) *HealthStatus {
	return &HealthStatus{
		JournalBackend: journalBackend,
		JournalOK:      true,
		StartedAt:      time.Now(),
	}
}

func (h *HealthStatus) SetRedisEnabled(v bool) {
	h.mu.Lock()
	h.RedisEnabled = v
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

// SetIngestEnabled marks Kafka ingest as configured and running.
func (h *HealthStatus) SetIngestEnabled(v bool) {
	h.mu.Lock()
	h.IngestEnabled = v
	h.IngestRunning = v
	h.mu.Unlock()
}

// SetIngestRunning records whether the Kafka consumer is still consuming.
func (h *HealthStatus) SetIngestRunning(v bool) {
	h.mu.Lock()
	h.IngestRunning = v
	h.mu.Unlock()
}

// OnTradeEvent implements model.TradeListener.
func (h *HealthStatus) OnTradeEvent(_ context.Context, ev model.TradeEvent) {
	if ev.Type != model.EventExecuted {
		return
	}
	h.mu.Lock()
	h.LastTradeTime = ev.At
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckJournal pings the journal database and records latency + health.
func (h *HealthStatus) CheckJournal(ctx context.Context, p Pinger) {
	start := time.Now()
	err := p.Ping(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.JournalOK = err == nil
	h.JournalLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks. Either dependency
// may be nil.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, journal Pinger, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if journal != nil {
					h.CheckJournal(probeCtx, journal)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	// The journal is required; Redis only degrades pricing and a stopped
	// consumer only degrades ingest.
	overallStatus := "healthy"
	httpCode := http.StatusOK
	if (h.RedisEnabled && !h.RedisConnected) || (h.IngestEnabled && !h.IngestRunning) {
		overallStatus = "degraded"
	}
	if !h.JournalOK {
		overallStatus = "unhealthy"
		httpCode = http.StatusServiceUnavailable
	}

	lastTrade := ""
	if !h.LastTradeTime.IsZero() {
		lastTrade = h.LastTradeTime.Format(time.RFC3339)
	}
	lastCheck := ""
	if !h.LastCheckAt.IsZero() {
		lastCheck = h.LastCheckAt.Format(time.RFC3339)
	}

	status := struct {
		Status           string  `json:"status"`
		Uptime           string  `json:"uptime"`
		JournalBackend   string  `json:"journal_backend"`
		JournalOK        bool    `json:"journal_ok"`
		JournalLatencyMs float64 `json:"journal_latency_ms"`
		RedisEnabled     bool    `json:"redis_enabled"`
		RedisConnected   bool    `json:"redis_connected"`
		RedisLatencyMs   float64 `json:"redis_latency_ms"`
		IngestEnabled    bool    `json:"ingest_enabled"`
		IngestRunning    bool    `json:"ingest_running"`
		LastTradeTime    string  `json:"last_trade_time"`
		LastCheckAt      string  `json:"last_check_at"`
	}{
		Status:           overallStatus,
		Uptime:           time.Since(h.StartedAt).Round(time.Second).String(),
		JournalBackend:   h.JournalBackend,
		JournalOK:        h.JournalOK,
		JournalLatencyMs: h.JournalLatencyMs,
		RedisEnabled:     h.RedisEnabled,
		RedisConnected:   h.RedisConnected,
		RedisLatencyMs:   h.RedisLatencyMs,
		IngestEnabled:    h.IngestEnabled,
		IngestRunning:    h.IngestRunning,
		LastTradeTime:    lastTrade,
		LastCheckAt:      lastCheck,
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}
