package risk

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// CalculateVaR 과거 수익률 기반 VaR 계산 (Historical Simulation)
// returns: 일별 수익률 배열 (양수=이익, 음수=손실)
// 반환값: VaR는 손실을 양수로 표현 (예: 0.05 = 5% 손실 가능)
func CalculateVaR(returns []float64, confidence float64) VaRResult {
	if len(returns) == 0 {
		return VaRResult{Confidence: confidence}
	}

	// 오름차순: 손실이 앞에
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	idx := int(math.Floor((1 - confidence) * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}

	return VaRResult{
		Confidence: confidence,
		VaR:        lossOf(sorted[idx]),
		CVaR:       CalculateCVaR(sorted, idx),
	}
}

// CalculateCVaR is the mean of the tail sorted[0..varIdx], reported as a
// positive loss. sorted must be ascending.
func CalculateCVaR(sorted []float64, varIdx int) float64 {
	if len(sorted) == 0 || varIdx < 0 {
		return 0
	}
	if varIdx >= len(sorted) {
		varIdx = len(sorted) - 1
	}
	return lossOf(stat.Mean(sorted[:varIdx+1], nil))
}

// CalculateParametricVaR 정규분포 가정 VaR 계산
func CalculateParametricVaR(mean, stdDev, confidence float64) VaRResult {
	if stdDev <= 0 || confidence <= 0 || confidence >= 1 {
		return VaRResult{Confidence: confidence, VaR: lossOf(mean), CVaR: lossOf(mean)}
	}

	z := distuv.UnitNormal.Quantile(confidence)
	varValue := math.Max(0, z*stdDev-mean)

	// Expected shortfall of a normal tail: σ·φ(z)/(1-c) - μ
	cvar := math.Max(0, stdDev*distuv.UnitNormal.Prob(z)/(1-confidence)-mean)

	return VaRResult{Confidence: confidence, VaR: varValue, CVaR: cvar}
}

// Percentile 백분위수 계산 (선형 보간). sorted must be ascending.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	return stat.Quantile(p/100, stat.LinInterp, sorted, nil)
}

func lossOf(r float64) float64 {
	if r < 0 {
		return -r
	}
	return 0
}
