package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"trademaestro/internal/domain"
	"trademaestro/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// TradeStore implements ports.PerformanceSink on SQLite, persisting every
// closed trade for later performance analysis.
type TradeStore struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite trade store.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewTradeStore opens (or creates) the trade database and ensures the
// schema exists.
func NewTradeStore(cfg Config) (*TradeStore, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite trade store")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/trademaestro.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %q: %w", filepath.Dir(dbPath), err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: opening database at %q: %w", ports.ErrDBConnection, dbPath, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: pinging database at %q: %w", ports.ErrDBConnection, dbPath, err)
	}

	// The Go driver benefits from a single connection with SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	store := &TradeStore{db: db, logger: cfg.Logger}
	if err := store.initializeSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize trade store schema: %w", err)
	}
	cfg.Logger.Info(context.Background(), "Trade store ready", map[string]interface{}{"path": dbPath})
	return store, nil
}

func (s *TradeStore) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ticket INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		volume REAL NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL NOT NULL,
		profit REAL NOT NULL,
		open_time TIMESTAMP NOT NULL,
		close_time TIMESTAMP NOT NULL,
		reason TEXT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trades_symbol_close_time ON trades (symbol, close_time);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: creating trades table: %w", ports.ErrQueryFailed, err)
	}
	return nil
}

// RecordTrade persists one closed trade.
func (s *TradeStore) RecordTrade(ctx context.Context, trade *domain.TradeRecord) error {
	if trade == nil {
		return fmt.Errorf("%w: trade record is nil", ports.ErrInvalidRequest)
	}
	const query = `
	INSERT INTO trades (ticket, symbol, side, volume, entry_price, exit_price, profit, open_time, close_time, reason)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		trade.Ticket, trade.Symbol, string(trade.Side), trade.Volume,
		trade.EntryPrice, trade.ExitPrice, trade.Profit,
		trade.OpenTime, trade.CloseTime, trade.Reason,
	)
	if err != nil {
		return fmt.Errorf("%w: inserting trade for ticket %d: %w", ports.ErrQueryFailed, trade.Ticket, err)
	}
	s.logger.Debug(ctx, "Trade recorded", map[string]interface{}{"ticket": trade.Ticket, "profit": trade.Profit})
	return nil
}

// FindAll returns every recorded trade, oldest first.
func (s *TradeStore) FindAll(ctx context.Context) ([]*domain.TradeRecord, error) {
	const query = `
	SELECT ticket, symbol, side, volume, entry_price, exit_price, profit, open_time, close_time, reason
	FROM trades ORDER BY close_time ASC`
	return s.queryTrades(ctx, query)
}

// FindBySymbol returns the recorded trades for one symbol, oldest first.
func (s *TradeStore) FindBySymbol(ctx context.Context, symbol string) ([]*domain.TradeRecord, error) {
	const query = `
	SELECT ticket, symbol, side, volume, entry_price, exit_price, profit, open_time, close_time, reason
	FROM trades WHERE symbol = ? ORDER BY close_time ASC`
	return s.queryTrades(ctx, query, symbol)
}

func (s *TradeStore) queryTrades(ctx context.Context, query string, args ...interface{}) ([]*domain.TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying trades: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	var trades []*domain.TradeRecord
	for rows.Next() {
		var t domain.TradeRecord
		var side string
		if err := rows.Scan(&t.Ticket, &t.Symbol, &side, &t.Volume,
			&t.EntryPrice, &t.ExitPrice, &t.Profit,
			&t.OpenTime, &t.CloseTime, &t.Reason); err != nil {
			return nil, fmt.Errorf("%w: scanning trade row: %w", ports.ErrQueryFailed, err)
		}
		t.Side = domain.OrderSide(side)
		trades = append(trades, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating trade rows: %w", ports.ErrQueryFailed, err)
	}
	return trades, nil
}

// TotalProfit sums the realized profit across all recorded trades.
func (s *TradeStore) TotalProfit(ctx context.Context) (float64, error) {
	var total sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `SELECT SUM(profit) FROM trades`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("%w: summing profit: %w", ports.ErrQueryFailed, err)
	}
	return total.Float64, nil
}

// Close closes the underlying database.
func (s *TradeStore) Close() error {
	return s.db.Close()
}
