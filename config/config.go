// Package config loads the service configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/shopspring/decimal"

	"tradebook/internal/portfolio"
)

// Journal backends.
const (
	JournalMemory   = "memory"
	JournalSQLite   = "sqlite"
	JournalPostgres = "postgres"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// HTTP
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8000"`
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`
	CORSOrigin  string `env:"CORS_ORIGIN" envDefault:"*"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Trade journal
	JournalBackend string `env:"JOURNAL_BACKEND" envDefault:"sqlite"`
	SQLitePath     string `env:"SQLITE_PATH" envDefault:"data/trades.db"`
	DatabaseURL    string `env:"DATABASE_URL"`

	// Redis (empty address disables live prices and event publishing)
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Prices
	PriceFile     string        `env:"PRICE_FILE"`
	PriceCacheTTL time.Duration `env:"PRICE_CACHE_TTL" envDefault:"2s"`

	// Kafka trade ingest (optional)
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"trades"`
	KafkaGroupID string   `env:"KAFKA_GROUP_ID" envDefault:"tradebook"`

	// Alerts
	WebhookURL       string `env:"WEBHOOK_URL"`
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `env:"TELEGRAM_CHAT_ID"`
	NotifyExecuted   bool   `env:"NOTIFY_EXECUTED" envDefault:"true"`

	// Websocket stream
	WSReplaySize int `env:"WS_REPLAY_SIZE" envDefault:"100"`

	// Writes require a TOTP code in X-OTP when set
	TradeOTPSecret string `env:"TRADE_OTP_SECRET"`

	// Risk limits (0 = unlimited)
	MaxOpenPositions int             `env:"MAX_OPEN_POSITIONS" envDefault:"0"`
	MaxPositionQty   decimal.Decimal `env:"MAX_POSITION_QTY" envDefault:"0"`
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	var errs []error
	switch c.JournalBackend {
	case JournalMemory:
	case JournalSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite journal"))
		}
	case JournalPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres journal"))
		}
	default:
		errs = append(errs, fmt.Errorf("JOURNAL_BACKEND %q: want memory, sqlite or postgres", c.JournalBackend))
	}
	if (c.TelegramBotToken == "") != (c.TelegramChatID == "") {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together"))
	}
	if c.PriceCacheTTL < 0 {
		errs = append(errs, errors.New("PRICE_CACHE_TTL must not be negative"))
	}
	if c.MaxOpenPositions < 0 {
		errs = append(errs, errors.New("MAX_OPEN_POSITIONS must not be negative"))
	}
	if c.MaxPositionQty.IsNegative() {
		errs = append(errs, errors.New("MAX_POSITION_QTY must not be negative"))
	}
	if c.WSReplaySize < 0 {
		errs = append(errs, errors.New("WS_REPLAY_SIZE must not be negative"))
	}
	return errors.Join(errs...)
}

// RiskLimits returns the configured limits.
func (c *Config) RiskLimits() portfolio.RiskLimits {
	return portfolio.RiskLimits{
		MaxOpenPositions: c.MaxOpenPositions,
		MaxPositionQty:   c.MaxPositionQty,
	}
}

// KafkaEnabled reports whether trade ingest from Kafka is configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}
