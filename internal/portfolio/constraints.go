package portfolio

import (
	"github.com/wonny/fvgsim/internal/contracts"
	"github.com/wonny/fvgsim/internal/strategyconfig"
)

// capEpsilon absorbs float noise when sector sizes add up exactly to the cap
const capEpsilon = 1e-9

// Constraints defines portfolio construction constraints
// ⭐ SSOT: 포트폴리오 제약조건은 여기서만
type Constraints struct {
	MaxWeight       float64 // 종목당 최대 비중 (0.0 ~ 1.0)
	MaxSectorWeight float64 // 섹터당 최대 비중 (0.0 ~ 1.0)
}

// NewConstraints reads the caps from the strategy config
func NewConstraints(cfg strategyconfig.Portfolio) Constraints {
	return Constraints{
		MaxWeight:       cfg.MaxPositionFraction,
		MaxSectorWeight: cfg.SectorCapFraction,
	}
}

// ClampWeight limits a single position to MaxWeight
func (c Constraints) ClampWeight(w float64) float64 {
	if w > c.MaxWeight {
		return c.MaxWeight
	}
	return w
}

// SectorRoom reports whether adding w to sector stays within the sector cap
func (c Constraints) SectorRoom(state *contracts.PortfolioState, sector contracts.Sector, w float64) bool {
	return state.SectorSize(sector)+w <= c.MaxSectorWeight+capEpsilon
}

// Check verifies every open position against the caps
func (c Constraints) Check(state *contracts.PortfolioState) error {
	sectors := make(map[contracts.Sector]float64)
	for _, t := range state.Tickers() {
		p := state.Positions[t]
		if p.Size > c.MaxWeight+capEpsilon {
			return invariantf("%s size %.6f above position cap %.6f", t, p.Size, c.MaxWeight)
		}
		sectors[p.Sector] += p.Size
	}
	for s, w := range sectors {
		if w > c.MaxSectorWeight+capEpsilon {
			return invariantf("sector %s size %.6f above cap %.6f", s, w, c.MaxSectorWeight)
		}
	}
	return nil
}
