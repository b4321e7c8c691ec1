package strategyconfig

import (
	"fmt"
	"math"
	"time"

	"github.com/robfig/cron/v3"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks all required constraints
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.StrategyID == "" {
		return ValidationError{"meta.strategy_id", "required"}
	}

	// === Universe ===
	if len(cfg.Universe.Sectors) == 0 {
		return ValidationError{"universe.sectors", "at least one sector required"}
	}
	for i, s := range cfg.Universe.Sectors {
		if _, ok := cfg.Valuation.SectorModel(s); !ok {
			return ValidationError{fmt.Sprintf("universe.sectors[%d]", i), fmt.Sprintf("no valuation model for %q", s)}
		}
	}
	for sector := range cfg.Universe.Benchmarks {
		if _, ok := cfg.Valuation.SectorModel(sector); !ok {
			return ValidationError{"universe.benchmarks", fmt.Sprintf("unknown sector %q", sector)}
		}
	}
	for i, b := range cfg.Universe.CapBands {
		if b != "small" && b != "mid" && b != "large" {
			return ValidationError{fmt.Sprintf("universe.cap_bands[%d]", i), "must be small, mid or large"}
		}
	}
	if cfg.Universe.MinDailyVolume < 0 {
		return ValidationError{"universe.min_daily_volume", "must be >= 0"}
	}
	if cfg.Universe.LiquidityWindow <= 0 {
		return ValidationError{"universe.liquidity_window", "must be > 0"}
	}

	// === Valuation ===
	if err := validateUnit("valuation.dcf_weight", cfg.Valuation.DCFWeight); err != nil {
		return err
	}
	if err := validateUnit("valuation.multiple_weight", cfg.Valuation.MultipleWeight); err != nil {
		return err
	}
	if err := validateUnit("valuation.consensus_weight", cfg.Valuation.ConsensusWeight); err != nil {
		return err
	}
	if err := validateWeightsSum([]float64{cfg.Valuation.DCFWeight, cfg.Valuation.MultipleWeight}, 1.0, 1e-6); err != nil {
		return ValidationError{"valuation", "dcf_weight + multiple_weight: " + err.Error()}
	}
	if err := validateSectorModel("valuation.technology", cfg.Valuation.Technology); err != nil {
		return err
	}
	if err := validateSectorModel("valuation.healthcare", cfg.Valuation.Healthcare); err != nil {
		return err
	}

	// === Momentum ===
	m := cfg.Momentum
	if err := validateWeightsSum([]float64{m.FundamentalWeight, m.PriceWeight}, 1.0, 1e-6); err != nil {
		return ValidationError{"momentum", "fundamental_weight + price_weight: " + err.Error()}
	}
	if err := validateWeightsSum([]float64{m.MAWeight, m.RSWeight, m.VolumeWeight}, 1.0, 1e-6); err != nil {
		return ValidationError{"momentum", "ma_weight + rs_weight + volume_weight: " + err.Error()}
	}
	if err := validateUnit("momentum.external_weight", m.ExternalWeight); err != nil {
		return err
	}
	if m.MAShort <= 0 || m.MALong <= m.MAShort {
		return ValidationError{"momentum.ma_long", "must be > ma_short > 0"}
	}
	if m.RSWindow <= 0 || m.VolumeWindow <= 0 {
		return ValidationError{"momentum", "rs_window and volume_window must be > 0"}
	}
	need := maxInt(m.MALong, m.VolumeWindow, m.RSWindow+1)
	if m.MinLookbackDays < need {
		return ValidationError{"momentum.min_lookback_days", fmt.Sprintf("must be >= %d to cover the longest window", need)}
	}
	if m.MinFundamentalPeriods < 3 {
		return ValidationError{"momentum.min_fundamental_periods", "must be >= 3 (acceleration needs two growth rates)"}
	}

	// === Signals ===
	s := cfg.Signals
	if s.EntryGapThreshold <= 0 {
		return ValidationError{"signals.entry_gap_threshold", "must be > 0"}
	}
	if s.ExitGapThreshold >= s.EntryGapThreshold {
		return ValidationError{"signals.exit_gap_threshold", "must be < entry_gap_threshold"}
	}
	if err := validateScore("signals.entry_momentum_threshold", s.EntryMomentumThreshold); err != nil {
		return err
	}
	if err := validateScore("signals.momentum_deterioration_threshold", s.MomentumDeteriorationThreshold); err != nil {
		return err
	}
	if s.MomentumDeteriorationThreshold >= s.EntryMomentumThreshold {
		return ValidationError{"signals.momentum_deterioration_threshold", "must be < entry_momentum_threshold"}
	}
	if s.StopLossFraction <= 0 || s.StopLossFraction >= 1 {
		return ValidationError{"signals.stop_loss_fraction", "must be in (0, 1)"}
	}
	if s.MaxHoldDays <= 0 {
		return ValidationError{"signals.max_hold_days", "must be > 0"}
	}

	// === Portfolio ===
	p := cfg.Portfolio
	if p.MaxPositionFraction <= 0 || p.MaxPositionFraction > 1 {
		return ValidationError{"portfolio.max_position_fraction", "must be in (0, 1]"}
	}
	if p.SectorCapFraction < p.MaxPositionFraction || p.SectorCapFraction > 1 {
		return ValidationError{"portfolio.sector_cap_fraction", "must be in [max_position_fraction, 1]"}
	}
	if len(p.ConvictionTiers) == 0 {
		return ValidationError{"portfolio.conviction_tiers", "at least one tier required"}
	}
	for i, t := range p.ConvictionTiers {
		field := fmt.Sprintf("portfolio.conviction_tiers[%d]", i)
		if t.Fraction <= 0 || t.Fraction > p.MaxPositionFraction {
			return ValidationError{field, "fraction must be in (0, max_position_fraction]"}
		}
		if i > 0 && t.Fraction > p.ConvictionTiers[i-1].Fraction {
			return ValidationError{field, "tiers must be ordered by descending fraction"}
		}
	}
	if p.VolatilityTarget < 0 {
		return ValidationError{"portfolio.volatility_target", "must be >= 0"}
	}
	if p.VolatilityTarget > 0 && p.VolatilityWindow < 2 {
		return ValidationError{"portfolio.volatility_window", "must be >= 2 when volatility_target is set"}
	}

	// === Risk ===
	if cfg.Risk.MaxPortfolioDrawdown <= 0 || cfg.Risk.MaxPortfolioDrawdown >= 1 {
		return ValidationError{"risk.max_portfolio_drawdown", "must be in (0, 1)"}
	}
	if cfg.Risk.DrawdownRecoveryThreshold < 0 || cfg.Risk.DrawdownRecoveryThreshold >= cfg.Risk.MaxPortfolioDrawdown {
		return ValidationError{"risk.drawdown_recovery_threshold", "must be in [0, max_portfolio_drawdown)"}
	}

	// === Calendar ===
	for _, spec := range []struct{ field, value string }{
		{"calendar.review_cron", cfg.Calendar.ReviewCron},
		{"calendar.momentum_cron", cfg.Calendar.MomentumCron},
	} {
		if spec.value == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec.value); err != nil {
			return ValidationError{spec.field, err.Error()}
		}
	}
	for i, d := range cfg.Calendar.ReviewDates {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return ValidationError{fmt.Sprintf("calendar.review_dates[%d]", i), "must be YYYY-MM-DD"}
		}
	}

	// === Costs ===
	if cfg.Costs.CommissionRate < 0 || cfg.Costs.CommissionRate > 0.05 {
		return ValidationError{"costs.commission_rate", "must be in [0, 0.05]"}
	}
	if cfg.Costs.SlippageRate < 0 || cfg.Costs.SlippageRate > 0.05 {
		return ValidationError{"costs.slippage_rate", "must be in [0, 0.05]"}
	}

	if cfg.Engine.Workers < 0 {
		return ValidationError{"engine.workers", "must be >= 0"}
	}

	return nil
}

func validateSectorModel(field string, m SectorModel) error {
	if m.DiscountRate <= 0 || m.DiscountRate >= 1 {
		return ValidationError{field + ".discount_rate", "must be in (0, 1)"}
	}
	if m.TerminalGrowth >= m.DiscountRate {
		return ValidationError{field + ".terminal_growth", "must be < discount_rate"}
	}
	if m.Years <= 0 {
		return ValidationError{field + ".years", "must be > 0"}
	}
	if m.MaxGrowth <= 0 {
		return ValidationError{field + ".max_growth", "must be > 0"}
	}
	if m.EVSales <= 0 {
		return ValidationError{field + ".ev_sales", "must be > 0"}
	}
	if m.PE < 0 {
		return ValidationError{field + ".pe", "must be >= 0"}
	}
	if err := validateUnit(field+".pe_weight", m.PEWeight); err != nil {
		return err
	}
	return nil
}

func validateUnit(field string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return ValidationError{field, "must be in [0, 1]"}
	}
	return nil
}

func validateScore(field string, v float64) error {
	if v < 0 || v > 100 {
		return ValidationError{field, "must be in [0, 100]"}
	}
	return nil
}

func validateWeightsSum(weights []float64, target, eps float64) error {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if math.Abs(sum-target) > eps {
		return fmt.Errorf("sum=%.6f, expected %.6f", sum, target)
	}
	return nil
}

func maxInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
