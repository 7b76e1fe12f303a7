// Command tradebook serves the trade ledger, portfolio and PnL over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/gin-gonic/gin"
	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"tradebook/config"
	"tradebook/internal/api"
	"tradebook/internal/book"
	"tradebook/internal/ingest"
	"tradebook/internal/logger"
	"tradebook/internal/metrics"
	"tradebook/internal/model"
	"tradebook/internal/notification"
	"tradebook/internal/pnl"
	"tradebook/internal/portfolio"
	"tradebook/internal/pricing"
	"tradebook/internal/store/postgres"
	redisstore "tradebook/internal/store/redis"
	"tradebook/internal/store/sqlite"
	"tradebook/internal/stream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.Init("tradebook", cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Fatal("tradebook stopped", zap.Error(err))
	}
	zl.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, zl *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// ---- Metrics & health ----
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := metrics.NewMetrics(reg)
	health := metrics.NewHealthStatus(cfg.JournalBackend)
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health, reg, zl)
	metricsSrv.Start()

	// ---- Trade journal ----
	journal, pinger, err := openJournal(ctx, cfg, zl)
	if err != nil {
		return err
	}
	if journal != nil {
		defer journal.Close()
	}

	// ---- Redis (optional) ----
	var rdb *goredis.Client
	if cfg.RedisAddr != "" {
		health.SetRedisEnabled(true)
		rdb, err = redisstore.Connect(ctx, redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, zl)
		if err != nil {
			zl.Warn("redis unavailable, continuing with static prices", zap.Error(err))
			health.SetRedisConnected(false)
			rdb = nil
		} else {
			defer rdb.Close()
			health.CheckRedis(ctx, rdb)
		}
	}
	health.StartLivenessChecker(ctx, rdb, pinger, 10*time.Second)

	// ---- Prices ----
	prices, closePrices, err := buildPrices(ctx, cfg, rdb, prom, zl)
	if err != nil {
		return err
	}
	defer closePrices()

	// ---- Listeners ----
	hub := stream.NewHub(cfg.WSReplaySize, zl)
	hub.OnClientsChanged = func(n int) { prom.WSClients.Set(float64(n)) }
	defer hub.Close()

	alerts := notification.NewTradeAlerts(buildNotifier(cfg, zl), zl)
	alerts.Executed = cfg.NotifyExecuted
	go alerts.Run(ctx)

	opts := []book.Option{
		book.WithLogger(zl),
		book.WithListener(prom),
		book.WithListener(health),
		book.WithListener(hub),
		book.WithListener(alerts),
	}
	if journal != nil {
		opts = append(opts, book.WithJournal(prom.InstrumentJournal(journal)))
	}
	if rdb != nil {
		pub := redisstore.NewPublisher(rdb, zl)
		go pub.Run(ctx)
		opts = append(opts, book.WithListener(pub))
	}

	// ---- Book ----
	b := book.New(portfolio.NewTracker(cfg.RiskLimits()), opts...)
	if _, err := b.Restore(ctx); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	trades, open := b.Stats()
	prom.LedgerTrades.Set(float64(trades))
	prom.OpenPositions.Set(float64(open))

	// ---- Kafka ingest (optional) ----
	if cfg.KafkaEnabled() {
		reader := ingest.NewReader(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID)
		consumer := ingest.NewConsumer(reader, b, zl, prom.IngestMessagesTotal)
		health.SetIngestEnabled(true)
		go runIngest(ctx, consumer, health, zl)
		zl.Info("kafka ingest enabled",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaTopic),
		)
	}

	// ---- HTTP ----
	gin.SetMode(gin.ReleaseMode)
	srv := api.NewServer(api.Deps{
		Book:    b,
		PnL:     pnl.New(prices),
		Prices:  prices,
		Stream:  hub.ServeWSHandler(),
		Metrics: prom,
	}, zl, api.Options{
		CORSOrigin: cfg.CORSOrigin,
		OTPSecret:  cfg.TradeOTPSecret,
	})
	server := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Handler()}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	notifySystemd(daemon.SdNotifyReady, zl)
	go watchdog(ctx, zl)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	// ---- Graceful shutdown ----
	notifySystemd(daemon.SdNotifyStopping, zl)
	zl.Info("shutting down")
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	if err := server.Shutdown(shutCtx); err != nil {
		zl.Warn("http shutdown", zap.Error(err))
	}
	if err := metricsSrv.Stop(shutCtx); err != nil {
		zl.Warn("metrics shutdown", zap.Error(err))
	}
	return runErr
}

// openJournal opens the configured journal. The memory backend has none.
func openJournal(ctx context.Context, cfg *config.Config, zl *zap.Logger) (model.TradeJournal, metrics.Pinger, error) {
	switch cfg.JournalBackend {
	case config.JournalSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("sqlite dir: %w", err)
			}
		}
		j, err := sqlite.Open(cfg.SQLitePath, zl)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite journal: %w", err)
		}
		return j, j, nil
	case config.JournalPostgres:
		j, err := postgres.Open(ctx, cfg.DatabaseURL, zl)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres journal: %w", err)
		}
		return j, j, nil
	}
	zl.Warn("memory journal: trades are lost on restart")
	return nil, nil, nil
}

// buildPrices chains Redis (when connected) in front of the static table,
// optionally reloaded from a YAML file, and caches the result.
func buildPrices(ctx context.Context, cfg *config.Config, rdb *goredis.Client, prom *metrics.Metrics, zl *zap.Logger) (model.PriceSource, func(), error) {
	table := pricing.NewTable(pricing.DefaultPrices())
	if cfg.PriceFile != "" {
		fw, err := pricing.NewFileWatcher(cfg.PriceFile, table, zl)
		if err != nil {
			return nil, nil, fmt.Errorf("price file: %w", err)
		}
		fw.OnReload = func(int) { prom.PriceFileReloads.Inc() }
		go fw.Run(ctx)
	}

	var sources []model.PriceSource
	if rdb != nil {
		breaker := redisstore.NewCircuitBreaker(5, 10*time.Second)
		breaker.OnStateChange = func(from, to redisstore.State) {
			prom.BreakerStateChanged(int(to), to == redisstore.StateOpen)
			zl.Warn("price breaker state changed",
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		}
		sources = append(sources, redisstore.NewPriceStore(rdb, breaker))
	}
	sources = append(sources, table)

	var src model.PriceSource = pricing.NewChain(zl, sources...)
	closer := func() {}
	if cfg.PriceCacheTTL > 0 {
		cached, err := pricing.NewCached(src, cfg.PriceCacheTTL)
		if err != nil {
			return nil, nil, fmt.Errorf("price cache: %w", err)
		}
		src, closer = cached, cached.Close
	}
	return prom.InstrumentPrices(src), closer, nil
}

func buildNotifier(cfg *config.Config, zl *zap.Logger) notification.Notifier {
	n := notification.Multi{notification.NewLogNotifier(zl)}
	if cfg.WebhookURL != "" {
		n = append(n, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	if cfg.TelegramBotToken != "" {
		n = append(n, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	return n
}

// runIngest runs the consumer until it returns. A failed consumer is logged
// and reported on /healthz while the API keeps serving.
func runIngest(ctx context.Context, c interface{ Run(context.Context) error }, health *metrics.HealthStatus, zl *zap.Logger) {
	if err := c.Run(ctx); err != nil {
		health.SetIngestRunning(false)
		zl.Error("kafka consumer stopped", zap.Error(err))
	}
}

func notifySystemd(state string, zl *zap.Logger) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		zl.Warn("sd_notify failed", zap.String("state", state), zap.Error(err))
		return
	}
	if sent {
		zl.Debug("sd_notify", zap.String("state", state))
	}
}

// watchdog pings systemd at half the configured WatchdogSec.
func watchdog(ctx context.Context, zl *zap.Logger) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			notifySystemd(daemon.SdNotifyWatchdog, zl)
		}
	}
}
