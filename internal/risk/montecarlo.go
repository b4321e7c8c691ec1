package risk

import (
	"fmt"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"
)

var bootstrapPercentiles = []int{1, 5, 10, 25, 50, 75, 90, 95, 99}

// Bootstrapper resamples daily returns with replacement into holding-period
// returns. It never reads the wall clock, so equal seeds give equal results.
type Bootstrapper struct {
	config BootstrapConfig
	rng    *rand.Rand
}

// NewBootstrapper 새 시뮬레이터 생성
func NewBootstrapper(config BootstrapConfig) *Bootstrapper {
	return &Bootstrapper{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Simulate draws NumSimulations holding-period returns from daily
func (b *Bootstrapper) Simulate(daily []float64) (*BootstrapResult, error) {
	if err := ValidateConfig(b.config); err != nil {
		return nil, err
	}
	// Fail-closed: 최소 샘플 수 체크
	if len(daily) < b.config.MinSamples {
		return nil, fmt.Errorf("%w: got %d returns, need %d", ErrInsufficientData, len(daily), b.config.MinSamples)
	}

	results := make([]float64, b.config.NumSimulations)
	for i := range results {
		cum := 1.0
		for d := 0; d < b.config.HoldingPeriod; d++ {
			cum *= 1 + daily[b.rng.Intn(len(daily))]
		}
		results[i] = cum - 1
	}
	sort.Float64s(results)

	tail := CalculateVaR(results, 0.95)
	out := &BootstrapResult{
		Config:           b.config,
		InputSampleCount: len(daily),
		MeanReturn:       stat.Mean(results, nil),
		StdDev:           stat.StdDev(results, nil),
		VaR95:            tail.VaR,
		CVaR95:           tail.CVaR,
		Percentiles:      make(map[int]float64, len(bootstrapPercentiles)),
	}
	for _, p := range bootstrapPercentiles {
		out.Percentiles[p] = Percentile(results, float64(p))
	}
	return out, nil
}
