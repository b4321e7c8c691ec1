package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/fvgsim/internal/audit"
	"github.com/wonny/fvgsim/internal/backtest"
	"github.com/wonny/fvgsim/internal/contracts"
	"github.com/wonny/fvgsim/pkg/logger"
)

// Runner executes a simulation
type Runner interface {
	Run(ctx context.Context, req backtest.RunRequest) (*backtest.Result, error)
}

// RunSaver persists finished runs
type RunSaver interface {
	SaveRun(ctx context.Context, run *audit.RunRecord) error
}

// BacktestJobConfig describes the rolling window re-simulated on each firing
type BacktestJobConfig struct {
	Schedule  string // cron, seconds first
	Years     int    // 윈도우 길이 (년)
	Capital   float64
	Benchmark string
}

// BacktestJob re-runs the strategy over a trailing window ending yesterday
// and stores the result, so the run history tracks newly loaded data
// ⭐ SSOT: 정기 백테스트 스케줄은 이 Job에서만
type BacktestJob struct {
	cfg    BacktestJobConfig
	runner Runner
	store  RunSaver
	now    func() time.Time
	logger *logger.Logger
}

// NewBacktestJob creates a new rolling backtest job
func NewBacktestJob(cfg BacktestJobConfig, runner Runner, store RunSaver, log *logger.Logger) *BacktestJob {
	return &BacktestJob{
		cfg:    cfg,
		runner: runner,
		store:  store,
		now:    time.Now,
		logger: log,
	}
}

// Name returns the job name
func (j *BacktestJob) Name() string {
	return "rolling_backtest"
}

// Schedule returns the cron schedule
func (j *BacktestJob) Schedule() string {
	return j.cfg.Schedule
}

// Window returns the simulated range for a firing at now
func (j *BacktestJob) Window(now time.Time) (time.Time, time.Time) {
	to := contracts.Day(now).AddDate(0, 0, -1)
	return to.AddDate(-j.cfg.Years, 0, 0), to
}

// Run executes the backtest and saves it. Cancelled runs are not saved.
func (j *BacktestJob) Run(ctx context.Context) error {
	from, to := j.Window(j.now())
	j.logger.WithFields(map[string]interface{}{
		"from": from.Format(contracts.DateLayout),
		"to":   to.Format(contracts.DateLayout),
	}).Info("Starting scheduled backtest")

	res, err := j.runner.Run(ctx, backtest.RunRequest{
		From:      from,
		To:        to,
		Capital:   j.cfg.Capital,
		Benchmark: j.cfg.Benchmark,
	})
	if err != nil {
		return fmt.Errorf("run backtest: %w", err)
	}

	if err := j.store.SaveRun(ctx, res.RunRecord()); err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":       res.RunID.String(),
		"trades":       len(res.Trades),
		"total_return": res.Report.TotalReturn,
	}).Info("Scheduled backtest saved")

	return nil
}
