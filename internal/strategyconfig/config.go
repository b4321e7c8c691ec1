package strategyconfig

import "time"

// Config is the full, immutable strategy configuration.
// ⭐ SSOT: 모든 임계값은 이 구조체로만 전달 (전역 상태 없음)
type Config struct {
	Meta      Meta      `yaml:"meta" json:"meta"`
	Universe  Universe  `yaml:"universe" json:"universe"`
	Valuation Valuation `yaml:"valuation" json:"valuation"`
	Momentum  Momentum  `yaml:"momentum" json:"momentum"`
	Signals   Signals   `yaml:"signals" json:"signals"`
	Portfolio Portfolio `yaml:"portfolio" json:"portfolio"`
	Risk      Risk      `yaml:"risk" json:"risk"`
	Calendar  Calendar  `yaml:"calendar" json:"calendar"`
	Costs     Costs     `yaml:"costs" json:"costs"`
	Engine    Engine    `yaml:"engine" json:"engine"`
}

// Meta 메타 정보
type Meta struct {
	StrategyID string `yaml:"strategy_id" json:"strategy_id"`
	Version    string `yaml:"version" json:"version"`
}

// Universe S1: 투자 가능 풀
type Universe struct {
	Sectors         []string          `yaml:"sectors" json:"sectors"`
	CapBands        []string          `yaml:"cap_bands" json:"cap_bands"`
	Benchmarks      map[string]string `yaml:"benchmarks" json:"benchmarks"` // sector -> benchmark ticker
	MinDailyVolume  int64             `yaml:"min_daily_volume" json:"min_daily_volume"`
	LiquidityWindow int               `yaml:"liquidity_window" json:"liquidity_window"` // 평균 거래량 산출 기간 (거래일)
}

// Valuation FairValueEngine 설정
type Valuation struct {
	DCFWeight       float64     `yaml:"dcf_weight" json:"dcf_weight"`
	MultipleWeight  float64     `yaml:"multiple_weight" json:"multiple_weight"`
	ConsensusWeight float64     `yaml:"consensus_weight" json:"consensus_weight"`
	Technology      SectorModel `yaml:"technology" json:"technology"`
	Healthcare      SectorModel `yaml:"healthcare" json:"healthcare"`
}

// SectorModel holds DCF and multiple parameters for one sector
type SectorModel struct {
	DiscountRate   float64 `yaml:"discount_rate" json:"discount_rate"`
	TerminalGrowth float64 `yaml:"terminal_growth" json:"terminal_growth"`
	Years          int     `yaml:"years" json:"years"`
	MaxGrowth      float64 `yaml:"max_growth" json:"max_growth"`
	EVSales        float64 `yaml:"ev_sales" json:"ev_sales"`
	PE             float64 `yaml:"pe" json:"pe"`               // 0이면 미사용
	PEWeight       float64 `yaml:"pe_weight" json:"pe_weight"` // 멀티플 내 P/E 비중
}

// Momentum MomentumEngine 설정
type Momentum struct {
	FundamentalWeight     float64 `yaml:"fundamental_weight" json:"fundamental_weight"`
	PriceWeight           float64 `yaml:"price_weight" json:"price_weight"`
	ExternalWeight        float64 `yaml:"external_weight" json:"external_weight"`
	MAWeight              float64 `yaml:"ma_weight" json:"ma_weight"`
	RSWeight              float64 `yaml:"rs_weight" json:"rs_weight"`
	VolumeWeight          float64 `yaml:"volume_weight" json:"volume_weight"`
	MAShort               int     `yaml:"ma_short" json:"ma_short"`
	MALong                int     `yaml:"ma_long" json:"ma_long"`
	RSWindow              int     `yaml:"rs_window" json:"rs_window"`
	VolumeWindow          int     `yaml:"volume_window" json:"volume_window"`
	MinLookbackDays       int     `yaml:"min_lookback_days" json:"min_lookback_days"`
	MinFundamentalPeriods int     `yaml:"min_fundamental_periods" json:"min_fundamental_periods"`
}

// Signals SignalGenerator 임계값
type Signals struct {
	EntryGapThreshold              float64 `yaml:"entry_gap_threshold" json:"entry_gap_threshold"`
	EntryMomentumThreshold         float64 `yaml:"entry_momentum_threshold" json:"entry_momentum_threshold"`
	ExitGapThreshold               float64 `yaml:"exit_gap_threshold" json:"exit_gap_threshold"`
	StopLossFraction               float64 `yaml:"stop_loss_fraction" json:"stop_loss_fraction"`
	MaxHoldDays                    int     `yaml:"max_hold_days" json:"max_hold_days"`
	MomentumDeteriorationThreshold float64 `yaml:"momentum_deterioration_threshold" json:"momentum_deterioration_threshold"`
}

// Portfolio 포지션 사이징
type Portfolio struct {
	MaxPositionFraction float64          `yaml:"max_position_fraction" json:"max_position_fraction"`
	SectorCapFraction   float64          `yaml:"sector_cap_fraction" json:"sector_cap_fraction"`
	ConvictionTiers     []ConvictionTier `yaml:"conviction_tiers" json:"conviction_tiers"`
	VolatilityTarget    float64          `yaml:"volatility_target" json:"volatility_target"` // 0이면 비활성
	VolatilityWindow    int              `yaml:"volatility_window" json:"volatility_window"`
}

// ConvictionTier is matched top-down: first tier whose minimums are met wins
type ConvictionTier struct {
	MinGap      float64 `yaml:"min_gap" json:"min_gap"`
	MinMomentum float64 `yaml:"min_momentum" json:"min_momentum"`
	Fraction    float64 `yaml:"fraction" json:"fraction"`
}

// Risk 포트폴리오 레벨 드로다운 제어
type Risk struct {
	MaxPortfolioDrawdown      float64 `yaml:"max_portfolio_drawdown" json:"max_portfolio_drawdown"`
	DrawdownRecoveryThreshold float64 `yaml:"drawdown_recovery_threshold" json:"drawdown_recovery_threshold"`
}

// Calendar 리뷰/모멘텀 갱신 일정
type Calendar struct {
	ReviewCron   string   `yaml:"review_cron" json:"review_cron"`     // 정기 리뷰 (빈 값이면 미사용)
	ReviewDates  []string `yaml:"review_dates" json:"review_dates"`   // YYYY-MM-DD, cron과 합집합
	MomentumCron string   `yaml:"momentum_cron" json:"momentum_cron"` // 모멘텀 전용 갱신
}

// Costs 거래비용
type Costs struct {
	CommissionRate float64 `yaml:"commission_rate" json:"commission_rate"`
	SlippageRate   float64 `yaml:"slippage_rate" json:"slippage_rate"`
}

// Engine 실행 파라미터 (결과에 영향 없음)
type Engine struct {
	Workers int `yaml:"workers" json:"workers"`
}

// DecisionSnapshot 의사결정 스냅샷 (재현성용)
type DecisionSnapshot struct {
	ConfigHash string    `json:"config_hash"`
	ConfigYAML string    `json:"config_yaml"`
	StrategyID string    `json:"strategy_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Default returns the documented default configuration
func Default() Config {
	return Config{
		Meta: Meta{StrategyID: "fvg_midcap", Version: "1"},
		Universe: Universe{
			Sectors:         []string{"Technology", "Healthcare"},
			CapBands:        []string{"mid"},
			Benchmarks:      map[string]string{},
			MinDailyVolume:  100_000,
			LiquidityWindow: 20,
		},
		Valuation: Valuation{
			DCFWeight:       0.7,
			MultipleWeight:  0.3,
			ConsensusWeight: 0.3,
			Technology: SectorModel{
				DiscountRate:   0.10,
				TerminalGrowth: 0.03,
				Years:          5,
				MaxGrowth:      0.40,
				EVSales:        5.0,
			},
			Healthcare: SectorModel{
				DiscountRate:   0.09,
				TerminalGrowth: 0.025,
				Years:          5,
				MaxGrowth:      0.30,
				EVSales:        4.0,
				PE:             22,
				PEWeight:       0.5,
			},
		},
		Momentum: Momentum{
			FundamentalWeight:     0.5,
			PriceWeight:           0.5,
			ExternalWeight:        0,
			MAWeight:              0.4,
			RSWeight:              0.4,
			VolumeWeight:          0.2,
			MAShort:               20,
			MALong:                50,
			RSWindow:              60,
			VolumeWindow:          20,
			MinLookbackDays:       61,
			MinFundamentalPeriods: 3,
		},
		Signals: Signals{
			EntryGapThreshold:              0.15,
			EntryMomentumThreshold:         60,
			ExitGapThreshold:               0.05,
			StopLossFraction:               0.15,
			MaxHoldDays:                    252,
			MomentumDeteriorationThreshold: 40,
		},
		Portfolio: Portfolio{
			MaxPositionFraction: 0.06,
			SectorCapFraction:   0.60,
			ConvictionTiers: []ConvictionTier{
				{MinGap: 0.30, MinMomentum: 75, Fraction: 0.06},
				{MinGap: 0.20, MinMomentum: 65, Fraction: 0.045},
				{MinGap: 0.15, MinMomentum: 60, Fraction: 0.03},
			},
			VolatilityWindow: 20,
		},
		Risk: Risk{
			MaxPortfolioDrawdown:      0.20,
			DrawdownRecoveryThreshold: 0.10,
		},
		Calendar: Calendar{
			ReviewCron:   "0 0 1 * *",
			MomentumCron: "",
		},
		Costs: Costs{
			CommissionRate: 0.0005,
			SlippageRate:   0,
		},
		Engine: Engine{Workers: 4},
	}
}

// SectorModel returns the valuation parameters for a sector
func (v Valuation) SectorModel(sector string) (SectorModel, bool) {
	switch sector {
	case "Technology":
		return v.Technology, true
	case "Healthcare":
		return v.Healthcare, true
	}
	return SectorModel{}, false
}

// TierFor returns the first conviction tier met by gap and momentum.
// Signals that pass the entry gates but no tier fall back to the smallest tier.
func (p Portfolio) TierFor(gap, momentum float64) ConvictionTier {
	for _, t := range p.ConvictionTiers {
		if gap >= t.MinGap && momentum >= t.MinMomentum {
			return t
		}
	}
	if len(p.ConvictionTiers) == 0 {
		return ConvictionTier{Fraction: p.MaxPositionFraction}
	}
	return p.ConvictionTiers[len(p.ConvictionTiers)-1]
}
