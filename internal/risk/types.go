package risk

// =============================================================================
// VaR/CVaR Types
// =============================================================================

// VaRConvention VaR 부호 규약
// ⭐ SSOT: Loss를 양수로 표현 (VaR=0.05 → 5% 손실 가능)
const VaRConvention = "loss_positive"

// VaRResult VaR 계산 결과
// - VaR=0.05 → 95% 신뢰수준에서 최대 5% 손실 가능
// - CVaR=0.07 → 5% tail에서 평균 7% 손실 예상
type VaRResult struct {
	Confidence float64 `json:"confidence"` // 신뢰수준 (예: 0.95, 0.99)
	VaR        float64 `json:"var"`        // Value at Risk (손실, 양수)
	CVaR       float64 `json:"cvar"`       // Conditional VaR (Expected Shortfall, 양수)
}

// =============================================================================
// Bootstrap Types
// =============================================================================

// BootstrapConfig resamples the daily return series of a finished run.
// A fixed seed keeps the output reproducible across runs of the same input.
type BootstrapConfig struct {
	NumSimulations int   `json:"num_simulations"` // 시뮬레이션 횟수
	HoldingPeriod  int   `json:"holding_period"`  // 보유 기간 (거래일)
	Seed           int64 `json:"seed"`
	MinSamples     int   `json:"min_samples"` // 최소 샘플 수 (fail-closed)
}

// DefaultBootstrapConfig 기본 설정
func DefaultBootstrapConfig() BootstrapConfig {
	return BootstrapConfig{
		NumSimulations: 2000,
		HoldingPeriod:  20,
		Seed:           1,
		MinSamples:     20,
	}
}

// BootstrapResult summarizes the resampled holding-period returns
type BootstrapResult struct {
	Config           BootstrapConfig `json:"config"`
	InputSampleCount int             `json:"input_sample_count"`
	MeanReturn       float64         `json:"mean_return"`
	StdDev           float64         `json:"std_dev"`
	VaR95            float64         `json:"var_95"`  // 손실, 양수
	CVaR95           float64         `json:"cvar_95"` // 손실, 양수
	Percentiles      map[int]float64 `json:"percentiles"`
}

// =============================================================================
// Limits
// =============================================================================

// Limits are checked against a finished run's daily returns
type Limits struct {
	MaxVaR95  float64 `json:"max_var_95"`
	MaxCVaR95 float64 `json:"max_cvar_95"`
}

// DefaultLimits 기본 리스크 한도
func DefaultLimits() Limits {
	return Limits{
		MaxVaR95:  0.05,
		MaxCVaR95: 0.07,
	}
}

// CheckResult 리스크 체크 결과
type CheckResult struct {
	Passed     bool     `json:"passed"`
	VaR95      float64  `json:"var_95"`
	CVaR95     float64  `json:"cvar_95"`
	Violations []string `json:"violations"`
}
