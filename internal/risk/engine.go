package risk

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// =============================================================================
// Engine - 순수 계산기
// =============================================================================

var (
	ErrInsufficientData = errors.New("insufficient data for simulation")
	ErrInvalidConfig    = errors.New("invalid configuration")
)

// Engine 리스크 엔진 (순수 계산기)
// ⭐ SSOT: 수익률 시계열 조립은 상위 레이어(audit)에서, 여기서는 계산만
type Engine struct {
	limits Limits
}

// NewEngine 새 리스크 엔진 생성
func NewEngine(limits Limits) *Engine {
	return &Engine{limits: limits}
}

// VaR Historical VaR/CVaR
func (e *Engine) VaR(returns []float64, confidence float64) VaRResult {
	return CalculateVaR(returns, confidence)
}

// ParametricVaR 정규분포 가정 VaR 계산
func (e *Engine) ParametricVaR(returns []float64, confidence float64) VaRResult {
	if len(returns) < 2 {
		return VaRResult{Confidence: confidence}
	}
	mean, std := stat.MeanStdDev(returns, nil)
	return CalculateParametricVaR(mean, std, confidence)
}

// Bootstrap resamples returns into holding-period outcomes
func (e *Engine) Bootstrap(returns []float64, config BootstrapConfig) (*BootstrapResult, error) {
	return NewBootstrapper(config).Simulate(returns)
}

// CheckLimits 리스크 한도 체크
func (e *Engine) CheckLimits(returns []float64) *CheckResult {
	v := CalculateVaR(returns, 0.95)
	result := &CheckResult{
		Passed:     true,
		VaR95:      v.VaR,
		CVaR95:     v.CVaR,
		Violations: make([]string, 0),
	}

	if e.limits.MaxVaR95 > 0 && v.VaR > e.limits.MaxVaR95 {
		result.Passed = false
		result.Violations = append(result.Violations,
			fmt.Sprintf("VaR95 %.4f exceeds limit %.4f", v.VaR, e.limits.MaxVaR95))
	}
	if e.limits.MaxCVaR95 > 0 && v.CVaR > e.limits.MaxCVaR95 {
		result.Passed = false
		result.Violations = append(result.Violations,
			fmt.Sprintf("CVaR95 %.4f exceeds limit %.4f", v.CVaR, e.limits.MaxCVaR95))
	}
	return result
}

// ValidateConfig 설정 유효성 검사
func ValidateConfig(config BootstrapConfig) error {
	if config.NumSimulations <= 0 {
		return fmt.Errorf("%w: NumSimulations must be > 0", ErrInvalidConfig)
	}
	if config.HoldingPeriod <= 0 {
		return fmt.Errorf("%w: HoldingPeriod must be > 0", ErrInvalidConfig)
	}
	if config.MinSamples <= 0 {
		return fmt.Errorf("%w: MinSamples must be > 0", ErrInvalidConfig)
	}
	return nil
}
