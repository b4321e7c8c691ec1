package s1_universe

import (
	"time"

	"github.com/wonny/fvgsim/internal/contracts"
	"github.com/wonny/fvgsim/internal/strategyconfig"
)

// Exclusion reasons recorded in Universe.Excluded
const (
	ExcludeBenchmark     = "benchmark"
	ExcludeSector        = "sector"
	ExcludeCapBand       = "cap_band"
	ExcludeNoBar         = "no_bar"
	ExcludeDataIntegrity = "data_integrity"
)

// BarSource is the slice of the price feed the universe needs
type BarSource interface {
	BarOn(ticker string, date time.Time) (contracts.PriceBar, bool)
	Bars(ticker string, asOf time.Time, n int) ([]contracts.PriceBar, error)
	Rejection(ticker string, date time.Time) (*contracts.DataIntegrityError, bool)
}

// Builder constructs the eligible universe for a date
type Builder struct {
	sectors map[contracts.Sector]bool
	bands   map[contracts.CapBand]bool
	config  strategyconfig.Universe
}

// NewBuilder creates a new Universe Builder
func NewBuilder(cfg strategyconfig.Universe) *Builder {
	b := &Builder{
		sectors: make(map[contracts.Sector]bool),
		bands:   make(map[contracts.CapBand]bool),
		config:  cfg,
	}
	for _, s := range cfg.Sectors {
		b.sectors[contracts.Sector(s)] = true
	}
	for _, c := range cfg.CapBands {
		b.bands[contracts.CapBand(c)] = true
	}
	return b
}

// Build returns instruments eligible on date. Instruments come in ascending
// ticker order, so Tickers is sorted.
// ⭐ SSOT: S1 → S2 유니버스 생성
func (b *Builder) Build(date time.Time, instruments []contracts.Instrument, feed BarSource) *contracts.Universe {
	u := &contracts.Universe{
		Date:     date,
		Tickers:  make([]string, 0, len(instruments)),
		Excluded: make(map[string]string),
	}

	for _, inst := range instruments {
		if reason := b.checkExclusion(inst, date, feed); reason != "" {
			u.Excluded[inst.Ticker] = reason
			continue
		}
		u.Tickers = append(u.Tickers, inst.Ticker)
	}
	return u
}

// checkExclusion returns the reason an instrument is not eligible, or ""
func (b *Builder) checkExclusion(inst contracts.Instrument, date time.Time, feed BarSource) string {
	if inst.Benchmark {
		return ExcludeBenchmark
	}
	if !b.sectors[inst.Sector] {
		return ExcludeSector
	}
	if !b.bands[inst.CapBand] {
		return ExcludeCapBand
	}
	if _, ok := feed.BarOn(inst.Ticker, date); !ok {
		if _, rejected := feed.Rejection(inst.Ticker, date); rejected {
			return ExcludeDataIntegrity
		}
		return ExcludeNoBar
	}
	return ""
}

// IsLiquid reports whether the average volume over the liquidity window,
// ending at asOf, meets the minimum. Short histories average what exists.
func (b *Builder) IsLiquid(feed BarSource, ticker string, asOf time.Time) bool {
	bars, err := feed.Bars(ticker, asOf, b.config.LiquidityWindow)
	if err != nil || len(bars) == 0 {
		return false
	}

	var total int64
	for _, bar := range bars {
		total += bar.Volume
	}
	return float64(total)/float64(len(bars)) >= float64(b.config.MinDailyVolume)
}

// BenchmarkFor returns the benchmark ticker configured for a sector
func (b *Builder) BenchmarkFor(sector contracts.Sector) (string, bool) {
	t, ok := b.config.Benchmarks[string(sector)]
	return t, ok && t != ""
}
