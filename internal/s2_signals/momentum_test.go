package s2_signals

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fvgsim/internal/contracts"
	"github.com/wonny/fvgsim/internal/strategyconfig"
	"github.com/wonny/fvgsim/pkg/logger"
)

func smallMomentumConfig() strategyconfig.Momentum {
	m := strategyconfig.Default().Momentum
	m.MAShort, m.MALong = 3, 5
	m.RSWindow, m.VolumeWindow = 5, 5
	m.MinLookbackDays = 6
	return m
}

// series builds consecutive daily bars ending on end, oldest first
func series(ticker string, end time.Time, closes []float64, volume int64) []contracts.PriceBar {
	out := make([]contracts.PriceBar, len(closes))
	for i, c := range closes {
		out[i] = contracts.PriceBar{
			Ticker: ticker,
			Date:   end.AddDate(0, 0, i-len(closes)+1),
			Open:   c, High: c, Low: c, Close: c,
			Volume: volume,
		}
	}
	return out
}

func flat(n int, px float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = px
	}
	return out
}

func revenueRecords(revs ...float64) []contracts.FundamentalRecord {
	var out []contracts.FundamentalRecord
	for i, v := range revs {
		q := quarters[i]
		out = append(out, rec(q.period, q.pub, contracts.MetricRevenue, v))
	}
	return out
}

func TestMomentum_InsufficientHistory(t *testing.T) {
	c := NewMomentumCalculator(smallMomentumConfig(), nil, logger.NewNop())
	asOf := day("2024-03-01")

	tests := []struct {
		name    string
		bars    []contracts.PriceBar
		records []contracts.FundamentalRecord
	}{
		{"short price window", series("TST", asOf, flat(5, 10), 100), revenueRecords(100, 110, 121)},
		{"two revenue periods", series("TST", asOf, flat(10, 10), 100), revenueRecords(100, 110)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Score(context.Background(), techInst, asOf, tt.bars, nil, tt.records)
			assert.ErrorIs(t, err, contracts.ErrInsufficientHistory)
		})
	}
}

func TestMomentum_FlatInputsAreNeutral(t *testing.T) {
	c := NewMomentumCalculator(smallMomentumConfig(), nil, logger.NewNop())
	asOf := day("2024-03-01")

	// 일정한 10% 성장: 가속 없음
	ms, err := c.Score(context.Background(), techInst, asOf, series("TST", asOf, flat(10, 10), 100), nil, revenueRecords(100, 110, 121))
	require.NoError(t, err)

	assert.InDelta(t, 50, ms.Fundamental, 1e-9)
	assert.InDelta(t, 50, ms.MAScore, 1e-9)
	assert.InDelta(t, 50, ms.RelStrength, 1e-9)
	assert.InDelta(t, 0, ms.VolumeConfirm, 1e-9)
	assert.InDelta(t, 0.4*50+0.4*50+0.2*0, ms.Price, 1e-9)
	assert.InDelta(t, 0.5*ms.Fundamental+0.5*ms.Price, ms.Composite, 1e-9)
	assert.Nil(t, ms.External)
}

func TestMomentum_RisingSeriesScoresHigh(t *testing.T) {
	c := NewMomentumCalculator(smallMomentumConfig(), nil, logger.NewNop())
	asOf := day("2024-03-01")

	closes := []float64{10, 10.5, 11, 11.5, 12, 12.5, 13, 13.5}
	bench := series("IDX", asOf, flat(8, 100), 0)
	records := append(revenueRecords(100, 105, 115, 135),
		rec("2023-09-30", "2023-11-01", contracts.MetricOperatingIncome, 10),
		rec("2023-12-31", "2024-02-01", contracts.MetricOperatingIncome, 20),
	)

	ms, err := c.Score(context.Background(), techInst, asOf, series("TST", asOf, closes, 100), bench, records)
	require.NoError(t, err)

	assert.Greater(t, ms.MAScore, 50.0)
	assert.Greater(t, ms.RelStrength, 50.0)
	assert.InDelta(t, 100, ms.VolumeConfirm, 1e-9)
	assert.Greater(t, ms.Fundamental, 50.0)
	for _, v := range []float64{ms.Fundamental, ms.Price, ms.Composite} {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
}

func TestMomentum_ExternalScorer(t *testing.T) {
	cfg := smallMomentumConfig()
	cfg.ExternalWeight = 0.5
	asOf := day("2024-03-01")
	bars := series("TST", asOf, flat(10, 10), 100)
	records := revenueRecords(100, 110, 121)

	internal, err := NewMomentumCalculator(cfg, nil, logger.NewNop()).
		Score(context.Background(), techInst, asOf, bars, nil, records)
	require.NoError(t, err)

	tests := []struct {
		name   string
		scorer contracts.ScorerFunc
		want   float64
	}{
		{
			name:   "blended",
			scorer: func(context.Context, string, time.Time, []contracts.PriceBar, []contracts.FundamentalRecord) (float64, error) { return 90, nil },
			want:   0.5*internal.Composite + 0.5*90,
		},
		{
			name:   "clamped",
			scorer: func(context.Context, string, time.Time, []contracts.PriceBar, []contracts.FundamentalRecord) (float64, error) { return 250, nil },
			want:   0.5*internal.Composite + 0.5*100,
		},
		{
			name:   "error falls back to internal",
			scorer: func(context.Context, string, time.Time, []contracts.PriceBar, []contracts.FundamentalRecord) (float64, error) { return 0, errors.New("model offline") },
			want:   internal.Composite,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms, err := NewMomentumCalculator(cfg, tt.scorer, logger.NewNop()).
				Score(context.Background(), techInst, asOf, bars, nil, records)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, ms.Composite, 1e-9)
		})
	}
}

func TestMomentum_FutureBarsAreViolations(t *testing.T) {
	c := NewMomentumCalculator(smallMomentumConfig(), nil, logger.NewNop())
	asOf := day("2024-03-01")
	bars := series("TST", asOf.AddDate(0, 0, 1), flat(10, 10), 100)

	_, err := c.Score(context.Background(), techInst, asOf, bars, nil, revenueRecords(100, 110, 121))
	assert.ErrorIs(t, err, contracts.ErrPointInTimeViolation)
}

func TestMarginDelta(t *testing.T) {
	records := append(revenueRecords(100, 100, 200),
		rec("2023-06-30", "2023-08-01", contracts.MetricGrossProfit, 40),
		rec("2023-09-30", "2023-11-01", contracts.MetricGrossProfit, 100),
	)
	f, err := NewFundamentals("TST", day("2024-03-01"), records)
	require.NoError(t, err)

	d, ok := marginDelta(f)
	require.True(t, ok)
	assert.InDelta(t, 0.5-0.4, d, 1e-12)

	f, err = NewFundamentals("TST", day("2024-03-01"), revenueRecords(100, 100, 200))
	require.NoError(t, err)
	_, ok = marginDelta(f)
	assert.False(t, ok)
}
