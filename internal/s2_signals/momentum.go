package s2_signals

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/fvgsim/internal/contracts"
	"github.com/wonny/fvgsim/internal/strategyconfig"
	"github.com/wonny/fvgsim/pkg/logger"
)

const (
	accelerationScale = 0.05
	marginDeltaScale  = 0.02
	accelerationShare = 0.6 // 펀더멘털 모멘텀 내 성장 가속 비중 (나머지는 마진)
)

// marginNumerators are tried in order; the first one reported for both of the
// last two revenue periods defines the margin
var marginNumerators = []contracts.Metric{
	contracts.MetricOperatingIncome,
	contracts.MetricGrossProfit,
	contracts.MetricNetIncome,
}

// MomentumCalculator computes the composite momentum score
// ⭐ SSOT: 모멘텀 시그널 계산은 여기서만
type MomentumCalculator struct {
	cfg       strategyconfig.Momentum
	technical *TechnicalCalculator
	scorer    contracts.MomentumScorer // nil: 외부 스코어러 미사용
	logger    *logger.Logger
}

// NewMomentumCalculator creates a new momentum calculator. scorer may be nil.
func NewMomentumCalculator(cfg strategyconfig.Momentum, scorer contracts.MomentumScorer, log *logger.Logger) *MomentumCalculator {
	return &MomentumCalculator{
		cfg:       cfg,
		technical: NewTechnicalCalculator(cfg),
		scorer:    scorer,
		logger:    log,
	}
}

// Score computes fundamental and price momentum for inst as of asOf.
// bars and benchmark are oldest first and must end on or before asOf.
func (c *MomentumCalculator) Score(ctx context.Context, inst contracts.Instrument, asOf time.Time, bars, benchmark []contracts.PriceBar, records []contracts.FundamentalRecord) (contracts.MomentumScore, error) {
	asOf = contracts.Day(asOf)
	for _, series := range [][]contracts.PriceBar{bars, benchmark} {
		if n := len(series); n > 0 && contracts.Day(series[n-1].Date).After(asOf) {
			return contracts.MomentumScore{}, &contracts.PointInTimeViolationError{
				Ticker: inst.Ticker, AsOf: asOf, PublishedAt: series[n-1].Date, Detail: "bar dated after as-of",
			}
		}
	}

	f, err := NewFundamentals(inst.Ticker, asOf, records)
	if err != nil {
		return contracts.MomentumScore{}, err
	}

	fundamental, err := c.fundamentalScore(f)
	if err != nil {
		return contracts.MomentumScore{}, err
	}

	price, err := c.technical.Calculate(inst.Ticker, bars, benchmark)
	if err != nil {
		return contracts.MomentumScore{}, err
	}

	score := contracts.MomentumScore{
		Ticker:        inst.Ticker,
		AsOf:          asOf,
		Fundamental:   fundamental,
		Price:         price.Score,
		MAScore:       price.MAScore,
		RelStrength:   price.RelStrength,
		VolumeConfirm: price.VolumeConfirm,
	}
	score.Composite = c.cfg.FundamentalWeight*fundamental + c.cfg.PriceWeight*price.Score

	if c.scorer != nil && c.cfg.ExternalWeight > 0 {
		ext, err := c.scorer.Score(ctx, inst.Ticker, asOf, bars, records)
		if err != nil {
			// 외부 스코어러 실패 시 내부 점수만 사용
			c.logger.WithFields(map[string]interface{}{
				"ticker": inst.Ticker,
				"as_of":  asOf.Format(contracts.DateLayout),
			}).WithError(err).Warn("External momentum scorer failed, using internal composite")
		} else {
			ext = clamp(ext, 0, 100)
			score.External = &ext
			score.Composite = (1-c.cfg.ExternalWeight)*score.Composite + c.cfg.ExternalWeight*ext
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"ticker":      inst.Ticker,
		"as_of":       asOf.Format(contracts.DateLayout),
		"fundamental": score.Fundamental,
		"price":       score.Price,
		"composite":   score.Composite,
	}).Debug("Calculated momentum score")

	return score, nil
}

// fundamentalScore measures quarter-over-quarter revenue growth acceleration,
// blended with the change in margin when a margin can be formed
func (c *MomentumCalculator) fundamentalScore(f *Fundamentals) (float64, error) {
	rev := f.Values(contracts.MetricRevenue)
	n := len(rev)
	if n < c.cfg.MinFundamentalPeriods {
		return 0, fmt.Errorf("%w: %s has %d revenue periods, need %d",
			contracts.ErrInsufficientHistory, f.Ticker, n, c.cfg.MinFundamentalPeriods)
	}
	if rev[n-2] <= 0 || rev[n-3] <= 0 {
		return 0, fmt.Errorf("%w: %s non-positive revenue", contracts.ErrInsufficientData, f.Ticker)
	}

	gLast := rev[n-1]/rev[n-2] - 1
	gPrev := rev[n-2]/rev[n-3] - 1
	accScore := toScore(gLast-gPrev, accelerationScale)

	delta, ok := marginDelta(f)
	if !ok {
		return accScore, nil
	}
	return accelerationShare*accScore + (1-accelerationShare)*toScore(delta, marginDeltaScale), nil
}

// marginDelta is margin(last period) - margin(previous period)
func marginDelta(f *Fundamentals) (float64, bool) {
	periods := f.Periods(contracts.MetricRevenue)
	if len(periods) < 2 {
		return 0, false
	}
	last, prev := periods[len(periods)-1], periods[len(periods)-2]
	revLast, _ := f.ValueAt(contracts.MetricRevenue, last)
	revPrev, _ := f.ValueAt(contracts.MetricRevenue, prev)
	if revLast <= 0 || revPrev <= 0 {
		return 0, false
	}

	for _, m := range marginNumerators {
		a, okA := f.ValueAt(m, last)
		b, okB := f.ValueAt(m, prev)
		if okA && okB {
			return a/revLast - b/revPrev, true
		}
	}
	return 0, false
}
