package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wonny/fvgsim/pkg/config"
)

// DB wraps the pgxpool.Pool
// ⭐ SSOT: DB 연결은 이 패키지에서만 생성
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new database connection pool and verifies it with a ping
func New(ctx context.Context, cfg *config.Config) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Ping checks if the database is accessible
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// EnsureSchema creates the market-data and backtest tables if they are missing.
// Statements are idempotent; running it on every start is fine.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}

// PoolStats represents connection pool statistics
type PoolStats struct {
	AcquiredConns int32 `json:"acquired_conns"`
	IdleConns     int32 `json:"idle_conns"`
	MaxConns      int32 `json:"max_conns"`
	TotalConns    int32 `json:"total_conns"`
}

// Stats returns the current pool statistics
func (db *DB) Stats() PoolStats {
	s := db.Pool.Stat()
	return PoolStats{
		AcquiredConns: s.AcquiredConns(),
		IdleConns:     s.IdleConns(),
		MaxConns:      s.MaxConns(),
		TotalConns:    s.TotalConns(),
	}
}

var schema = []string{
	`CREATE SCHEMA IF NOT EXISTS market`,
	`CREATE SCHEMA IF NOT EXISTS sim`,

	`CREATE TABLE IF NOT EXISTS market.instruments (
		ticker     TEXT PRIMARY KEY,
		name       TEXT NOT NULL DEFAULT '',
		sector     TEXT NOT NULL,
		cap_band   TEXT NOT NULL,
		benchmark  BOOLEAN NOT NULL DEFAULT FALSE
	)`,

	`CREATE TABLE IF NOT EXISTS market.daily_bars (
		ticker     TEXT NOT NULL REFERENCES market.instruments(ticker),
		trade_date DATE NOT NULL,
		open       DOUBLE PRECISION NOT NULL,
		high       DOUBLE PRECISION NOT NULL,
		low        DOUBLE PRECISION NOT NULL,
		close      DOUBLE PRECISION NOT NULL,
		volume     BIGINT NOT NULL,
		PRIMARY KEY (ticker, trade_date)
	)`,

	`CREATE TABLE IF NOT EXISTS market.fundamentals (
		ticker       TEXT NOT NULL REFERENCES market.instruments(ticker),
		period_end   DATE NOT NULL,
		published_at DATE NOT NULL,
		metric       TEXT NOT NULL,
		value        DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (ticker, period_end, metric, published_at)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_fundamentals_published ON market.fundamentals (published_at)`,

	`CREATE TABLE IF NOT EXISTS sim.runs (
		run_id      UUID PRIMARY KEY,
		strategy_id TEXT NOT NULL DEFAULT '',
		config_hash TEXT NOT NULL,
		start_date  DATE NOT NULL,
		end_date    DATE NOT NULL,
		capital     DOUBLE PRECISION NOT NULL,
		state       TEXT NOT NULL,
		truncated   BOOLEAN NOT NULL DEFAULT FALSE,
		metrics     JSONB NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS sim.equity_curve (
		run_id     UUID NOT NULL REFERENCES sim.runs(run_id) ON DELETE CASCADE,
		trade_date DATE NOT NULL,
		equity     DOUBLE PRECISION NOT NULL,
		cash       DOUBLE PRECISION NOT NULL,
		drawdown   DOUBLE PRECISION NOT NULL,
		run_state  TEXT NOT NULL,
		PRIMARY KEY (run_id, trade_date)
	)`,

	`CREATE TABLE IF NOT EXISTS sim.trades (
		run_id       UUID NOT NULL REFERENCES sim.runs(run_id) ON DELETE CASCADE,
		seq          INT NOT NULL,
		ticker       TEXT NOT NULL,
		sector       TEXT NOT NULL,
		signal_date  DATE NOT NULL,
		entry_date   DATE NOT NULL,
		exit_date    DATE NOT NULL,
		entry_price  DOUBLE PRECISION NOT NULL,
		exit_price   DOUBLE PRECISION NOT NULL,
		size         DOUBLE PRECISION NOT NULL,
		shares       DOUBLE PRECISION NOT NULL,
		pnl          DOUBLE PRECISION NOT NULL,
		holding_days INT NOT NULL,
		close_reason TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	)`,
}
