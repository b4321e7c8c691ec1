package backtest

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/fvgsim/internal/audit"
	"github.com/wonny/fvgsim/internal/contracts"
	"github.com/wonny/fvgsim/internal/s0_data/quality"
)

// Result holds backtest results
type Result struct {
	RunID      uuid.UUID          `json:"run_id"`
	StrategyID string             `json:"strategy_id"`
	ConfigHash string             `json:"config_hash"`
	From       time.Time          `json:"from"`
	To         time.Time          `json:"to"`
	Capital    float64            `json:"capital"`
	State      contracts.RunState `json:"state"`
	Truncated  bool               `json:"truncated"` // 취소로 중단된 경우

	EquityCurve   []contracts.EquityPoint `json:"equity_curve"`
	Trades        []contracts.TradeRecord `json:"trades"`
	OpenPositions []contracts.Position    `json:"open_positions"`
	Ledger        Ledger                  `json:"ledger"`

	TotalCommission float64                  `json:"total_commission"`
	Report          *audit.PerformanceReport `json:"report"`
	Quality         *quality.Report          `json:"quality"`

	Elapsed time.Duration `json:"-"`
}

// RunRecord converts the result into its persisted form
func (r *Result) RunRecord() *audit.RunRecord {
	return &audit.RunRecord{
		RunID:      r.RunID,
		StrategyID: r.StrategyID,
		ConfigHash: r.ConfigHash,
		From:       r.From,
		To:         r.To,
		Capital:    r.Capital,
		State:      r.State,
		Truncated:  r.Truncated,
		Report:     r.Report,
		Equity:     r.EquityCurve,
		Trades:     r.Trades,
	}
}

// StateDump is the portfolio at the moment a run was aborted
type StateDump struct {
	Date      time.Time            `json:"date"`
	Cash      float64              `json:"cash"`
	Equity    float64              `json:"equity"`
	Peak      float64              `json:"peak"`
	Drawdown  float64              `json:"drawdown"`
	RunState  contracts.RunState   `json:"run_state"`
	Positions []contracts.Position `json:"positions"`
	Pending   []contracts.Signal   `json:"pending"`
}

// RunAbort is returned when a fatal error (point-in-time or invariant
// violation) stops a run. The partial Result is returned alongside it.
type RunAbort struct {
	Date  time.Time
	Err   error
	State StateDump
}

func (e *RunAbort) Error() string {
	return fmt.Sprintf("run aborted on %s: %v", e.Date.Format(contracts.DateLayout), e.Err)
}

func (e *RunAbort) Unwrap() error { return e.Err }

func invariantf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{contracts.ErrInvariantViolation}, args...)...)
}
