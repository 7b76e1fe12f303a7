// Package postgres persists the trade journal in PostgreSQL. Prices and
// quantities use NUMERIC columns mapped to decimal.Decimal.
package postgres

import (
	"context"
	"fmt"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"tradebook/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	seq        BIGSERIAL PRIMARY KEY,
	trade_id   TEXT        NOT NULL UNIQUE,
	symbol     TEXT        NOT NULL,
	side       TEXT        NOT NULL CHECK (side IN ('buy', 'sell')),
	price      NUMERIC     NOT NULL CHECK (price > 0),
	quantity   NUMERIC     NOT NULL CHECK (quantity > 0),
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades (symbol);
`

// Journal implements model.TradeJournal on a pgx pool.
type Journal struct {
	pool *pgxpool.Pool
}

// Open connects to dbURL, verifies connectivity and applies the schema.
func Open(ctx context.Context, dbURL string, log *zap.Logger) (*Journal, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}

	log.Info("trade journal opened", zap.String("backend", "postgres"))
	return &Journal{pool: pool}, nil
}

// Append implements model.TradeJournal.
func (j *Journal) Append(ctx context.Context, t model.Trade) error {
	_, err := j.pool.Exec(ctx,
		`INSERT INTO trades (trade_id, symbol, side, price, quantity, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.Symbol, string(t.Side), t.Price, t.Quantity, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres insert trade: %w", err)
	}
	return nil
}

// Load implements model.TradeJournal.
func (j *Journal) Load(ctx context.Context) ([]model.Trade, error) {
	rows, err := j.pool.Query(ctx,
		`SELECT trade_id, symbol, side, price, quantity, created_at FROM trades ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("postgres query trades: %w", err)
	}
	defer rows.Close()

	trades := make([]model.Trade, 0)
	for rows.Next() {
		var (
			t    model.Trade
			side string
			at   time.Time
		)
		if err := rows.Scan(&t.ID, &t.Symbol, &side, &t.Price, &t.Quantity, &at); err != nil {
			return nil, fmt.Errorf("postgres scan trade: %w", err)
		}
		t.Side = model.Side(side)
		t.CreatedAt = at.UTC()
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Ping checks the database is reachable.
func (j *Journal) Ping(ctx context.Context) error {
	return j.pool.Ping(ctx)
}

// Close releases the pool.
func (j *Journal) Close() error {
	j.pool.Close()
	return nil
}
