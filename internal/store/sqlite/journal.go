// Package sqlite persists the trade journal in an embedded SQLite database.
// Prices and quantities are stored as decimal text so they load back exactly.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradebook/internal/model"
)

// Journal implements model.TradeJournal on SQLite.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (or creates) the journal database at path.
func Open(path string, log *zap.Logger) (*Journal, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Info("trade journal opened", zap.String("backend", "sqlite"), zap.String("path", path))
	return &Journal{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			trade_id   TEXT NOT NULL UNIQUE,
			symbol     TEXT NOT NULL,
			side       TEXT NOT NULL,
			price      TEXT NOT NULL,
			quantity   TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
	`)
	return err
}

// Append implements model.TradeJournal.
func (j *Journal) Append(ctx context.Context, t model.Trade) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO trades (trade_id, symbol, side, price, quantity, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.Symbol,
		string(t.Side),
		t.Price.String(),
		t.Quantity.String(),
		t.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlite insert trade: %w", err)
	}
	return nil
}

// Load implements model.TradeJournal.
func (j *Journal) Load(ctx context.Context) ([]model.Trade, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.QueryContext(ctx,
		`SELECT trade_id, symbol, side, price, quantity, created_at FROM trades ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query trades: %w", err)
	}
	defer rows.Close()

	trades := make([]model.Trade, 0)
	for rows.Next() {
		var (
			t                    model.Trade
			side, price, qty, ts string
		)
		if err := rows.Scan(&t.ID, &t.Symbol, &side, &price, &qty, &ts); err != nil {
			return nil, fmt.Errorf("sqlite scan trade: %w", err)
		}
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("trade %s price: %w", t.ID, err)
		}
		if t.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("trade %s quantity: %w", t.ID, err)
		}
		if t.CreatedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("trade %s timestamp: %w", t.ID, err)
		}
		t.Side = model.Side(side)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Ping checks the database is reachable.
func (j *Journal) Ping(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
