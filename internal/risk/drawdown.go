package risk

import "github.com/wonny/fvgsim/internal/contracts"

// DrawdownGuard halts new entries once drawdown from peak reaches Max and
// resumes them once it falls back below Recovery.
// ⭐ SSOT: HALTED/RUNNING 전환 규칙은 여기서만
type DrawdownGuard struct {
	Max      float64
	Recovery float64
}

// NewDrawdownGuard creates a guard. Recovery <= 0 or above Max falls back to Max.
func NewDrawdownGuard(max, recovery float64) DrawdownGuard {
	if recovery <= 0 || recovery > max {
		recovery = max
	}
	return DrawdownGuard{Max: max, Recovery: recovery}
}

// Next returns the run state after observing drawdown dd. TERMINATED is
// absorbing.
func (g DrawdownGuard) Next(state contracts.RunState, dd float64) contracts.RunState {
	switch state {
	case contracts.RunRunning:
		if g.Max > 0 && dd >= g.Max {
			return contracts.RunHalted
		}
	case contracts.RunHalted:
		if dd < g.Recovery {
			return contracts.RunRunning
		}
	}
	return state
}
