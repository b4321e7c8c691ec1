package contracts

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// PositionStatus is OPEN or CLOSED (terminal)
type PositionStatus string

const (
	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"
)

// Position is owned and mutated only by the simulator
type Position struct {
	Ticker      string         `json:"ticker"`
	Sector      Sector         `json:"sector"`
	EntryDate   time.Time      `json:"entry_date"`
	EntryPrice  float64        `json:"entry_price"`
	Shares      float64        `json:"shares"`
	Size        float64        `json:"size"` // 진입 시점 자기자본 대비 비중
	StopPrice   float64        `json:"stop_price"`
	TargetGap   float64        `json:"target_gap"`
	Status      PositionStatus `json:"status"`
	CloseReason Reason         `json:"close_reason,omitempty"`
	ExitDate    time.Time      `json:"exit_date,omitempty"`
	ExitPrice   float64        `json:"exit_price,omitempty"`

	// mark-to-market
	LastClose   float64 `json:"last_close"`
	HoldingDays int     `json:"holding_days"` // 진입 이후 경과 거래일
}

// MarketValue at the last mark
func (p *Position) MarketValue() float64 {
	return p.Shares * p.LastClose
}

// Close moves the position to CLOSED. A second call, or an unset or non-exit
// reason, is an invariant violation.
func (p *Position) Close(date time.Time, price float64, reason Reason) error {
	if p.Status == PositionClosed {
		return fmt.Errorf("%w: %s already closed (%s)", ErrInvariantViolation, p.Ticker, p.CloseReason)
	}
	if !reason.IsExitReason() {
		return fmt.Errorf("%w: %s close reason %q", ErrInvariantViolation, p.Ticker, reason)
	}
	p.Status = PositionClosed
	p.CloseReason = reason
	p.ExitDate = date
	p.ExitPrice = price
	return nil
}

// RunState is the simulation-level state
type RunState string

const (
	RunRunning    RunState = "RUNNING"
	RunHalted     RunState = "HALTED"
	RunTerminated RunState = "TERMINATED"
)

// PortfolioState holds open positions only
type PortfolioState struct {
	Date      time.Time            `json:"date"`
	Cash      float64              `json:"cash"`
	Positions map[string]*Position `json:"positions"`
	Equity    float64              `json:"equity"`
	Peak      float64              `json:"peak"`
	Drawdown  float64              `json:"drawdown"`
}

// NewPortfolioState starts with all capital in cash
func NewPortfolioState(capital float64) *PortfolioState {
	return &PortfolioState{
		Cash:      capital,
		Positions: make(map[string]*Position),
		Equity:    capital,
		Peak:      capital,
	}
}

// Tickers returns open tickers in ascending order
func (s *PortfolioState) Tickers() []string {
	out := make([]string, 0, len(s.Positions))
	for t := range s.Positions {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// HoldingsValue sums the market value of open positions
func (s *PortfolioState) HoldingsValue() float64 {
	total := 0.0
	for _, t := range s.Tickers() {
		total += s.Positions[t].MarketValue()
	}
	return total
}

// SectorSize sums entry sizes of open positions in a sector
func (s *PortfolioState) SectorSize(sector Sector) float64 {
	total := 0.0
	for _, p := range s.Positions {
		if p.Sector == sector {
			total += p.Size
		}
	}
	return total
}

// Revalue recomputes equity, peak and drawdown from cash and marks
func (s *PortfolioState) Revalue() {
	s.Equity = s.Cash + s.HoldingsValue()
	if s.Equity > s.Peak {
		s.Peak = s.Equity
	}
	if s.Peak > 0 {
		s.Drawdown = (s.Peak - s.Equity) / s.Peak
	}
}

// CheckIdentity verifies equity = cash + holdings within eps
func (s *PortfolioState) CheckIdentity(eps float64) error {
	diff := math.Abs(s.Cash + s.HoldingsValue() - s.Equity)
	if diff > eps {
		return fmt.Errorf("%w: equity %.6f != cash %.6f + holdings %.6f on %s",
			ErrInvariantViolation, s.Equity, s.Cash, s.HoldingsValue(), s.Date.Format(DateLayout))
	}
	if s.Cash < -eps {
		return fmt.Errorf("%w: negative cash %.6f on %s", ErrInvariantViolation, s.Cash, s.Date.Format(DateLayout))
	}
	return nil
}

// EquityPoint is one row of the equity curve
type EquityPoint struct {
	Date     time.Time `json:"date"`
	Equity   float64   `json:"equity"`
	Cash     float64   `json:"cash"`
	Holdings float64   `json:"holdings"`
	Drawdown float64   `json:"drawdown"`
	State    RunState  `json:"state"`
}

// TradeRecord is one closed round trip
type TradeRecord struct {
	Ticker      string    `json:"ticker"`
	Sector      Sector    `json:"sector"`
	SignalDate  time.Time `json:"signal_date"` // 진입 시그널 발생일
	EntryDate   time.Time `json:"entry_date"`
	ExitDate    time.Time `json:"exit_date"`
	EntryPrice  float64   `json:"entry_price"`
	ExitPrice   float64   `json:"exit_price"`
	Size        float64   `json:"size"`
	Shares      float64   `json:"shares"`
	PnL         float64   `json:"pnl"` // 수수료 차감 후
	Return      float64   `json:"return"`
	HoldingDays int       `json:"holding_days"`
	CloseReason Reason    `json:"close_reason"`
}
