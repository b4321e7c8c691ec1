package s2_signals

import (
	"math"

	"github.com/wonny/fvgsim/internal/strategyconfig"
)

// minGrowth floors the explicit-period growth rate
const minGrowth = -0.10

// ValuationInputs are the per-share building blocks both valuation legs use
type ValuationInputs struct {
	Revenue      float64 // TTM (or annualized)
	CashFlow     float64 // FCF TTM, OCF when FCF is not reported
	NetIncome    float64 // TTM
	HasNetIncome bool
	Shares       float64
	NetDebt      float64
	Growth       float64 // 연 매출 성장률 (클램프 전)
	Quarters     int     // 매출 보고 분기 수
	Annualized   bool    // 4분기 미만을 연환산함
}

// ValuationModel is the sector-specific valuation procedure.
// A leg that cannot produce a positive per-share value returns ok=false.
type ValuationModel interface {
	Name() string
	DCF(in ValuationInputs) (perShare float64, ok bool)
	Multiple(in ValuationInputs) (perShare float64, ok bool)
}

// SectorModel is a fading-growth DCF with an EV/Sales cross-check, optionally
// blended with a P/E multiple when earnings are positive
type SectorModel struct {
	name   string
	params strategyconfig.SectorModel
}

// NewSectorModel creates a model from its configured parameters
func NewSectorModel(name string, p strategyconfig.SectorModel) *SectorModel {
	return &SectorModel{name: name, params: p}
}

// Name returns the model identifier recorded on estimates
func (m *SectorModel) Name() string {
	return m.name
}

// DCF discounts cash flows whose growth fades linearly to the terminal rate
// over the explicit horizon, adds a Gordon terminal value and subtracts net debt
func (m *SectorModel) DCF(in ValuationInputs) (float64, bool) {
	if in.CashFlow <= 0 || in.Shares <= 0 {
		return 0, false
	}
	p := m.params
	g0 := clamp(in.Growth, minGrowth, p.MaxGrowth)

	ev := 0.0
	cf := in.CashFlow
	for t := 1; t <= p.Years; t++ {
		g := g0 + (p.TerminalGrowth-g0)*float64(t)/float64(p.Years)
		cf *= 1 + g
		ev += cf / math.Pow(1+p.DiscountRate, float64(t))
	}
	terminal := cf * (1 + p.TerminalGrowth) / (p.DiscountRate - p.TerminalGrowth)
	ev += terminal / math.Pow(1+p.DiscountRate, float64(p.Years))

	perShare := (ev - in.NetDebt) / in.Shares
	if perShare <= 0 || math.IsNaN(perShare) || math.IsInf(perShare, 0) {
		return 0, false
	}
	return perShare, true
}

// Multiple values the equity at EV/Sales. With a P/E configured and positive
// earnings, the P/E value is blended in at PEWeight.
func (m *SectorModel) Multiple(in ValuationInputs) (float64, bool) {
	if in.Revenue <= 0 || in.Shares <= 0 {
		return 0, false
	}
	p := m.params

	evSales := (p.EVSales*in.Revenue - in.NetDebt) / in.Shares
	value := evSales
	if p.PE > 0 && in.HasNetIncome && in.NetIncome > 0 {
		pe := p.PE * in.NetIncome / in.Shares
		value = (1-p.PEWeight)*evSales + p.PEWeight*pe
	}

	if value <= 0 {
		return 0, false
	}
	return value, true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// revenueGrowth estimates annual revenue growth from quarterly revenue,
// oldest first: TTM over prior TTM with two years of data, year-over-year
// quarter with five quarters, compounded QoQ otherwise
func revenueGrowth(rev []float64) float64 {
	n := len(rev)
	ratio := func(a, b float64) (float64, bool) {
		if b <= 0 {
			return 0, false
		}
		return a/b - 1, true
	}

	switch {
	case n >= 8:
		cur, prior := 0.0, 0.0
		for i := 0; i < 4; i++ {
			cur += rev[n-1-i]
			prior += rev[n-5-i]
		}
		if g, ok := ratio(cur, prior); ok {
			return g
		}
	case n >= 5:
		if g, ok := ratio(rev[n-1], rev[n-5]); ok {
			return g
		}
	case n >= 2:
		if g, ok := ratio(rev[n-1], rev[n-2]); ok {
			return math.Pow(1+g, 4) - 1
		}
	}
	return 0
}
