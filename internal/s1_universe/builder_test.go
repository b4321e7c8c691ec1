package s1_universe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fvgsim/internal/contracts"
	"github.com/wonny/fvgsim/internal/strategyconfig"
)

type fakeFeed struct {
	bars     map[string][]contracts.PriceBar
	rejected map[string]bool
}

func (f *fakeFeed) BarOn(ticker string, date time.Time) (contracts.PriceBar, bool) {
	for _, b := range f.bars[ticker] {
		if b.Date.Equal(date) {
			return b, true
		}
	}
	return contracts.PriceBar{}, false
}

func (f *fakeFeed) Bars(ticker string, asOf time.Time, n int) ([]contracts.PriceBar, error) {
	var out []contracts.PriceBar
	for _, b := range f.bars[ticker] {
		if !b.Date.After(asOf) {
			out = append(out, b)
		}
	}
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}

func (f *fakeFeed) Rejection(ticker string, _ time.Time) (*contracts.DataIntegrityError, bool) {
	if f.rejected[ticker] {
		return &contracts.DataIntegrityError{Ticker: ticker, Field: "close"}, true
	}
	return nil, false
}

var today = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func TestBuilder_Build(t *testing.T) {
	feed := &fakeFeed{
		bars: map[string][]contracts.PriceBar{
			"AAA": {{Ticker: "AAA", Date: today, Close: 10, Volume: 500}},
			"BIG": {{Ticker: "BIG", Date: today, Close: 10, Volume: 500}},
			"ENG": {{Ticker: "ENG", Date: today, Close: 10, Volume: 500}},
			"HHH": {{Ticker: "HHH", Date: today, Close: 10, Volume: 500}},
		},
		rejected: map[string]bool{"BAD": true},
	}
	instruments := []contracts.Instrument{
		{Ticker: "AAA", Sector: contracts.SectorTechnology, CapBand: contracts.CapMid},
		{Ticker: "BAD", Sector: contracts.SectorTechnology, CapBand: contracts.CapMid},
		{Ticker: "BIG", Sector: contracts.SectorTechnology, CapBand: contracts.CapLarge},
		{Ticker: "ENG", Sector: "Energy", CapBand: contracts.CapMid},
		{Ticker: "GONE", Sector: contracts.SectorHealthcare, CapBand: contracts.CapMid},
		{Ticker: "HHH", Sector: contracts.SectorHealthcare, CapBand: contracts.CapMid},
		{Ticker: "IDX", Sector: contracts.SectorTechnology, Benchmark: true},
	}

	u := NewBuilder(strategyconfig.Default().Universe).Build(today, instruments, feed)

	assert.Equal(t, []string{"AAA", "HHH"}, u.Tickers)
	assert.Equal(t, map[string]string{
		"BAD":  ExcludeDataIntegrity,
		"BIG":  ExcludeCapBand,
		"ENG":  ExcludeSector,
		"GONE": ExcludeNoBar,
		"IDX":  ExcludeBenchmark,
	}, u.Excluded)
}

func TestBuilder_IsLiquid(t *testing.T) {
	cfg := strategyconfig.Default().Universe
	cfg.MinDailyVolume = 1000
	cfg.LiquidityWindow = 3

	mk := func(vols ...int64) []contracts.PriceBar {
		out := make([]contracts.PriceBar, len(vols))
		for i, v := range vols {
			out[i] = contracts.PriceBar{Date: today.AddDate(0, 0, i-len(vols)+1), Volume: v}
		}
		return out
	}
	feed := &fakeFeed{bars: map[string][]contracts.PriceBar{
		"LIQ":   mk(10, 900, 1000, 1100),  // last 3 average 1000
		"THIN":  mk(5000, 900, 950, 1000), // old spike is outside the window
		"EMPTY": nil,
	}}

	b := NewBuilder(cfg)
	assert.True(t, b.IsLiquid(feed, "LIQ", today))
	assert.False(t, b.IsLiquid(feed, "THIN", today))
	assert.False(t, b.IsLiquid(feed, "EMPTY", today))
}

func TestBuilder_BenchmarkFor(t *testing.T) {
	cfg := strategyconfig.Default().Universe
	cfg.Benchmarks = map[string]string{"Technology": "TECHIDX"}

	b := NewBuilder(cfg)
	got, ok := b.BenchmarkFor(contracts.SectorTechnology)
	require.True(t, ok)
	assert.Equal(t, "TECHIDX", got)

	_, ok = b.BenchmarkFor(contracts.SectorHealthcare)
	assert.False(t, ok)
}
