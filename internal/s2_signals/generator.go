package s2_signals

import (
	"github.com/wonny/fvgsim/internal/contracts"
	"github.com/wonny/fvgsim/internal/strategyconfig"
)

// Generator applies the fixed threshold rules. Rules are evaluated in
// precedence order and the first match wins, so at most one signal is
// produced per instrument per date.
// ⭐ SSOT: 진입/청산 규칙은 여기서만
type Generator struct {
	cfg strategyconfig.Signals
}

// NewGenerator creates a signal generator
func NewGenerator(cfg strategyconfig.Signals) *Generator {
	return &Generator{cfg: cfg}
}

// Generate returns the signal for in, or nil
func (g *Generator) Generate(in contracts.SignalInput) *contracts.Signal {
	if in.Position != nil && in.Position.Status == contracts.PositionOpen {
		return g.exit(in)
	}
	return g.enter(in)
}

func (g *Generator) exit(in contracts.SignalInput) *contracts.Signal {
	pos := in.Position

	if in.FairValue != nil && in.FairValue.GapAt(in.Close) < g.cfg.ExitGapThreshold {
		return g.signal(in, contracts.SignalExit, contracts.ReasonProfitTarget)
	}
	if in.Close <= pos.StopPrice {
		return g.signal(in, contracts.SignalExit, contracts.ReasonStopLoss)
	}
	if pos.HoldingDays >= g.cfg.MaxHoldDays {
		return g.signal(in, contracts.SignalExit, contracts.ReasonTimeExit)
	}
	if in.Momentum != nil && in.Momentum.Composite < g.cfg.MomentumDeteriorationThreshold {
		return g.signal(in, contracts.SignalExit, contracts.ReasonMomentumDeterioration)
	}
	// 리뷰일에 유니버스 이탈 또는 적정가치 산출 불가
	if in.Review && (!in.InUniverse || in.FairValue == nil) {
		return g.signal(in, contracts.SignalExit, contracts.ReasonRebalanceDrop)
	}
	return nil
}

func (g *Generator) enter(in contracts.SignalInput) *contracts.Signal {
	if in.FairValue == nil || in.Momentum == nil || !in.Liquid || !in.InUniverse {
		return nil
	}
	if in.FairValue.GapAt(in.Close) >= g.cfg.EntryGapThreshold &&
		in.Momentum.Composite >= g.cfg.EntryMomentumThreshold {
		return g.signal(in, contracts.SignalEnter, contracts.ReasonEntryThresholds)
	}
	return nil
}

func (g *Generator) signal(in contracts.SignalInput, kind contracts.SignalKind, reason contracts.Reason) *contracts.Signal {
	s := &contracts.Signal{
		Ticker: in.Ticker,
		Date:   contracts.Day(in.Date),
		Kind:   kind,
		Reason: reason,
		Close:  in.Close,
	}
	if in.FairValue != nil {
		s.Gap = in.FairValue.GapAt(in.Close)
		s.HasScores = true
	}
	if in.Momentum != nil {
		s.Momentum = in.Momentum.Composite
	} else {
		s.HasScores = false
	}
	return s
}
