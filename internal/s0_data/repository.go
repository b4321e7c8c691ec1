package s0_data

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/fvgsim/internal/contracts"
)

// Repository reads and writes market inputs in PostgreSQL
// ⭐ SSOT: 시세/재무 저장소는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LoadInstruments returns every instrument, ascending by ticker
func (r *Repository) LoadInstruments(ctx context.Context) ([]contracts.Instrument, error) {
	query := `
		SELECT ticker, name, sector, cap_band, benchmark
		FROM market.instruments
		ORDER BY ticker
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query instruments: %w", err)
	}
	defer rows.Close()

	var out []contracts.Instrument
	for rows.Next() {
		var inst contracts.Instrument
		var sector, band string
		if err := rows.Scan(&inst.Ticker, &inst.Name, &sector, &band, &inst.Benchmark); err != nil {
			return nil, fmt.Errorf("scan instrument: %w", err)
		}
		inst.Sector = contracts.Sector(sector)
		inst.CapBand = contracts.CapBand(band)
		out = append(out, inst)
	}
	return out, rows.Err()
}

// LoadBars returns bars for ticker within [from, to], oldest first
func (r *Repository) LoadBars(ctx context.Context, ticker string, from, to time.Time) ([]contracts.PriceBar, error) {
	query := `
		SELECT ticker, trade_date, open, high, low, close, volume
		FROM market.daily_bars
		WHERE ticker = $1 AND trade_date BETWEEN $2 AND $3
		ORDER BY trade_date ASC
	`

	rows, err := r.pool.Query(ctx, query, ticker, from, to)
	if err != nil {
		return nil, fmt.Errorf("query bars %s: %w", ticker, err)
	}
	defer rows.Close()

	var out []contracts.PriceBar
	for rows.Next() {
		var b contracts.PriceBar
		if err := rows.Scan(&b.Ticker, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar %s: %w", ticker, err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// LoadFundamentals returns records for ticker published on/before cutoff.
// Records published later are never loaded, so no run can see them.
func (r *Repository) LoadFundamentals(ctx context.Context, ticker string, cutoff time.Time) ([]contracts.FundamentalRecord, error) {
	query := `
		SELECT ticker, period_end, published_at, metric, value
		FROM market.fundamentals
		WHERE ticker = $1 AND published_at <= $2
		ORDER BY published_at, period_end, metric
	`

	rows, err := r.pool.Query(ctx, query, ticker, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query fundamentals %s: %w", ticker, err)
	}
	defer rows.Close()

	var out []contracts.FundamentalRecord
	for rows.Next() {
		var rec contracts.FundamentalRecord
		var metric string
		if err := rows.Scan(&rec.Ticker, &rec.PeriodEnd, &rec.PublishedAt, &metric, &rec.Value); err != nil {
			return nil, fmt.Errorf("scan fundamental %s: %w", ticker, err)
		}
		rec.Metric = contracts.Metric(metric)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveDataset upserts a dataset in one transaction
func (r *Repository) SaveDataset(ctx context.Context, ds *Dataset) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	batch := &pgx.Batch{}
	for _, inst := range ds.Instruments {
		batch.Queue(`
			INSERT INTO market.instruments (ticker, name, sector, cap_band, benchmark)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (ticker) DO UPDATE SET
				name = EXCLUDED.name, sector = EXCLUDED.sector,
				cap_band = EXCLUDED.cap_band, benchmark = EXCLUDED.benchmark
		`, inst.Ticker, inst.Name, string(inst.Sector), string(inst.CapBand), inst.Benchmark)
	}
	for _, b := range ds.Bars {
		batch.Queue(`
			INSERT INTO market.daily_bars (ticker, trade_date, open, high, low, close, volume)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (ticker, trade_date) DO UPDATE SET
				open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
				close = EXCLUDED.close, volume = EXCLUDED.volume
		`, b.Ticker, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume)
	}
	for _, rec := range ds.Fundamentals {
		batch.Queue(`
			INSERT INTO market.fundamentals (ticker, period_end, published_at, metric, value)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (ticker, period_end, metric, published_at) DO UPDATE SET value = EXCLUDED.value
		`, rec.Ticker, rec.PeriodEnd, rec.PublishedAt, string(rec.Metric), rec.Value)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert dataset: %w", err)
	}
	return tx.Commit(ctx)
}
