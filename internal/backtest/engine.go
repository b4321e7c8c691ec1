package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/fvgsim/internal/audit"
	"github.com/wonny/fvgsim/internal/contracts"
	"github.com/wonny/fvgsim/internal/risk"
	"github.com/wonny/fvgsim/internal/s0_data"
	"github.com/wonny/fvgsim/internal/s0_data/quality"
	"github.com/wonny/fvgsim/internal/s2_signals"
	"github.com/wonny/fvgsim/internal/scheduler"
	"github.com/wonny/fvgsim/internal/strategyconfig"
	"github.com/wonny/fvgsim/pkg/logger"
)

// ErrInvalidRequest is returned for a malformed RunRequest
var ErrInvalidRequest = errors.New("invalid run request")

// RunRequest describes one simulation
type RunRequest struct {
	From      time.Time
	To        time.Time
	Capital   float64
	Benchmark string // 성과 비교용 티커 (선택)
}

func (r RunRequest) validate() error {
	if r.From.IsZero() || r.To.IsZero() {
		return fmt.Errorf("%w: from and to are required", ErrInvalidRequest)
	}
	if r.To.Before(r.From) {
		return fmt.Errorf("%w: to %s is before from %s", ErrInvalidRequest,
			r.To.Format(contracts.DateLayout), r.From.Format(contracts.DateLayout))
	}
	if r.Capital <= 0 {
		return fmt.Errorf("%w: capital must be positive", ErrInvalidRequest)
	}
	return nil
}

// Engine runs backtesting simulations
// ⭐ SSOT: 백테스팅 실행은 여기서만
type Engine struct {
	cfg       strategyconfig.Config
	loader    s0_data.Loader
	validator *quality.Validator
	fairValue contracts.FairValueEngine
	scorer    contracts.MomentumScorer
	observer  Observer
	analyzer  *audit.Analyzer
	logger    *logger.Logger
}

// Option customizes an Engine
type Option func(*Engine)

// WithFairValueEngine replaces the sector valuation engine
func WithFairValueEngine(fv contracts.FairValueEngine) Option {
	return func(e *Engine) { e.fairValue = fv }
}

// WithScorer injects an external momentum scorer
func WithScorer(scorer contracts.MomentumScorer) Option {
	return func(e *Engine) { e.scorer = scorer }
}

// WithObserver receives run events (metrics, progress)
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithAnalyzer replaces the default performance analyzer
func WithAnalyzer(a *audit.Analyzer) Option {
	return func(e *Engine) { e.analyzer = a }
}

// NewEngine creates a new backtest engine. cfg must already be validated.
func NewEngine(cfg strategyconfig.Config, loader s0_data.Loader, log *logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		cfg:       cfg,
		loader:    loader,
		validator: quality.NewValidator(),
		observer:  nopObserver{},
		logger:    log,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.fairValue == nil {
		e.fairValue = s2_signals.NewFairValueEngine(cfg.Valuation, log)
	}
	if e.analyzer == nil {
		e.analyzer = audit.NewAnalyzer(risk.NewEngine(risk.DefaultLimits()), log)
	}
	return e
}

// Run simulates req.From..req.To. Cancellation is honored only between
// days: the partial Result is returned together with ctx.Err(). A fatal
// error returns the partial Result and a *RunAbort.
func (e *Engine) Run(ctx context.Context, req RunRequest) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	req.From, req.To = contracts.Day(req.From), contracts.Day(req.To)

	hash, err := strategyconfig.Hash(&e.cfg)
	if err != nil {
		return nil, fmt.Errorf("hash config: %w", err)
	}

	ds, err := e.loader.Load(ctx, s0_data.LoadRequest{
		From:       req.From,
		To:         req.To,
		WarmupDays: e.warmupDays(),
	})
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}

	store, report := s0_data.NewStore(ds, e.validator)
	if !report.Passed() {
		e.logger.WithFields(map[string]interface{}{
			"rejected_bars":         report.RejectedBars,
			"rejected_fundamentals": report.RejectedFundamentals,
		}).Warn("Input data failed quality checks; affected items are excluded")
	}

	days := store.TradingDays(req.From, req.To)
	calendar, err := scheduler.NewCalendar(e.cfg.Calendar, days)
	if err != nil {
		return nil, fmt.Errorf("build calendar: %w", err)
	}

	momentum := s2_signals.NewMomentumCalculator(e.cfg.Momentum, e.scorer, e.logger)
	sim := NewSimulator(e.cfg, store, calendar, e.fairValue, momentum, req.Capital, e.observer, e.logger)

	res := &Result{
		RunID:      uuid.New(),
		StrategyID: e.cfg.Meta.StrategyID,
		ConfigHash: hash,
		From:       req.From,
		To:         req.To,
		Capital:    req.Capital,
		Quality:    report,
	}

	e.logger.WithFields(map[string]interface{}{
		"run_id":  res.RunID.String(),
		"from":    req.From.Format(contracts.DateLayout),
		"to":      req.To.Format(contracts.DateLayout),
		"days":    len(days),
		"reviews": len(calendar.Reviews()),
		"capital": req.Capital,
	}).Info("Starting backtest")

	started := time.Now()
	for _, day := range days {
		if err := ctx.Err(); err != nil {
			res.Truncated = true
			e.finish(res, sim, store, req, started)
			e.logger.WithField("date", day.Format(contracts.DateLayout)).Warn("Backtest cancelled")
			return res, err
		}

		if err := sim.Step(ctx, day); err != nil {
			e.finish(res, sim, store, req, started)
			abort := &RunAbort{Date: day, Err: err, State: sim.Dump()}
			e.logger.WithError(err).WithField("date", day.Format(contracts.DateLayout)).Error("Backtest aborted")
			return res, abort
		}
	}

	sim.Terminate()
	e.finish(res, sim, store, req, started)

	e.logger.WithFields(map[string]interface{}{
		"run_id":       res.RunID.String(),
		"trades":       len(res.Trades),
		"open":         len(res.OpenPositions),
		"total_return": res.Report.TotalReturn,
		"elapsed":      res.Elapsed.String(),
	}).Info("Backtest completed")

	return res, nil
}

// finish copies the simulator's output into res and runs the analyzer
func (e *Engine) finish(res *Result, sim *Simulator, store *s0_data.Store, req RunRequest, started time.Time) {
	res.State = sim.RunState()
	res.EquityCurve = sim.curve
	res.Trades = sim.trades
	res.OpenPositions = sim.OpenPositions()
	res.Ledger = sim.ledger
	res.TotalCommission = sim.commission
	res.Report = e.analyzer.Analyze(res.EquityCurve, res.Trades, e.benchmarkBars(store, req))
	res.Elapsed = time.Since(started)
}

// benchmarkBars returns the benchmark's bars inside the simulated range.
// Nothing is returned before the clock has started.
func (e *Engine) benchmarkBars(store *s0_data.Store, req RunRequest) []contracts.PriceBar {
	if req.Benchmark == "" {
		return nil
	}
	cursor := store.Cursor()
	bars, err := store.Bars(req.Benchmark, cursor, 0)
	if err != nil {
		return nil
	}
	out := bars[:0]
	for _, b := range bars {
		if !b.Date.Before(req.From) {
			out = append(out, b)
		}
	}
	return out
}

// warmupDays converts the longest lookback into calendar days with slack
// for weekends and holidays
func (e *Engine) warmupDays() int {
	m, u, p := e.cfg.Momentum, e.cfg.Universe, e.cfg.Portfolio
	lookback := maxInt(m.MinLookbackDays, m.MALong, m.RSWindow+1, m.VolumeWindow+1,
		u.LiquidityWindow, p.VolatilityWindow+1)
	return lookback*7/5 + 14
}

func maxInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
