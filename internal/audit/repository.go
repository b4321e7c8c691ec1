package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/fvgsim/internal/contracts"
)

// ErrRunNotFound is returned when no run has the requested ID
var ErrRunNotFound = errors.New("run not found")

// RunRecord is one persisted simulation run
type RunRecord struct {
	RunID      uuid.UUID               `json:"run_id"`
	StrategyID string                  `json:"strategy_id"`
	ConfigHash string                  `json:"config_hash"`
	From       time.Time               `json:"from"`
	To         time.Time               `json:"to"`
	Capital    float64                 `json:"capital"`
	State      contracts.RunState      `json:"state"`
	Truncated  bool                    `json:"truncated"`
	Report     *PerformanceReport      `json:"report"`
	Equity     []contracts.EquityPoint `json:"equity,omitempty"`
	Trades     []contracts.TradeRecord `json:"trades,omitempty"`
	CreatedAt  time.Time               `json:"created_at"`
}

// Repository handles run persistence
// ⭐ SSOT: 시뮬레이션 결과 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new audit repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveRun writes the run header, equity curve and trade log in one transaction
func (r *Repository) SaveRun(ctx context.Context, run *RunRecord) error {
	metricsJSON, err := json.Marshal(run.Report)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO sim.runs (
			run_id, strategy_id, config_hash, start_date, end_date,
			capital, state, truncated, metrics
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, run.RunID, run.StrategyID, run.ConfigHash, run.From, run.To,
		run.Capital, string(run.State), run.Truncated, metricsJSON)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	batch := &pgx.Batch{}
	for _, p := range run.Equity {
		batch.Queue(`
			INSERT INTO sim.equity_curve (run_id, trade_date, equity, cash, drawdown, run_state)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, run.RunID, p.Date, p.Equity, p.Cash, p.Drawdown, string(p.State))
	}
	for i, t := range run.Trades {
		batch.Queue(`
			INSERT INTO sim.trades (
				run_id, seq, ticker, sector, signal_date, entry_date, exit_date,
				entry_price, exit_price, size, shares, pnl, holding_days, close_reason
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`, run.RunID, i+1, t.Ticker, string(t.Sector), t.SignalDate, t.EntryDate, t.ExitDate,
			t.EntryPrice, t.ExitPrice, t.Size, t.Shares, t.PnL, t.HoldingDays, string(t.CloseReason))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save run details: %w", err)
	}

	return tx.Commit(ctx)
}

// ListRuns returns run headers, newest first
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT run_id, strategy_id, config_hash, start_date, end_date,
		       capital, state, truncated, metrics, created_at
		FROM sim.runs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRun returns one run with its equity curve and trades
func (r *Repository) GetRun(ctx context.Context, id uuid.UUID) (*RunRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT run_id, strategy_id, config_hash, start_date, end_date,
		       capital, state, truncated, metrics, created_at
		FROM sim.runs
		WHERE run_id = $1
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if run.Equity, err = r.getEquity(ctx, id); err != nil {
		return nil, err
	}
	if run.Trades, err = r.getTrades(ctx, id); err != nil {
		return nil, err
	}
	return run, nil
}

// PruneRuns deletes runs created before cutoff together with their curves and
// trades, and returns how many runs were removed
func (r *Repository) PruneRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sim.runs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanRun(row pgx.Row) (*RunRecord, error) {
	var run RunRecord
	var state string
	var metricsJSON []byte
	if err := row.Scan(&run.RunID, &run.StrategyID, &run.ConfigHash, &run.From, &run.To,
		&run.Capital, &state, &run.Truncated, &metricsJSON, &run.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.State = contracts.RunState(state)

	run.Report = &PerformanceReport{}
	if err := json.Unmarshal(metricsJSON, run.Report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
	}
	return &run, nil
}

func (r *Repository) getEquity(ctx context.Context, id uuid.UUID) ([]contracts.EquityPoint, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT trade_date, equity, cash, drawdown, run_state
		FROM sim.equity_curve
		WHERE run_id = $1
		ORDER BY trade_date
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query equity curve: %w", err)
	}
	defer rows.Close()

	var out []contracts.EquityPoint
	for rows.Next() {
		var p contracts.EquityPoint
		var state string
		if err := rows.Scan(&p.Date, &p.Equity, &p.Cash, &p.Drawdown, &state); err != nil {
			return nil, fmt.Errorf("failed to scan equity point: %w", err)
		}
		p.State = contracts.RunState(state)
		p.Holdings = p.Equity - p.Cash
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) getTrades(ctx context.Context, id uuid.UUID) ([]contracts.TradeRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ticker, sector, signal_date, entry_date, exit_date,
		       entry_price, exit_price, size, shares, pnl, holding_days, close_reason
		FROM sim.trades
		WHERE run_id = $1
		ORDER BY seq
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var out []contracts.TradeRecord
	for rows.Next() {
		var t contracts.TradeRecord
		var sector, reason string
		if err := rows.Scan(&t.Ticker, &sector, &t.SignalDate, &t.EntryDate, &t.ExitDate,
			&t.EntryPrice, &t.ExitPrice, &t.Size, &t.Shares, &t.PnL, &t.HoldingDays, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		t.Sector = contracts.Sector(sector)
		t.CloseReason = contracts.Reason(reason)
		if cost := t.EntryPrice * t.Shares; cost > 0 {
			t.Return = t.PnL / cost
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
