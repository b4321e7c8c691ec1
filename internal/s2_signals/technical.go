package s2_signals

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"github.com/wonny/fvgsim/internal/contracts"
	"github.com/wonny/fvgsim/internal/strategyconfig"
)

// Score scales for the tanh normalizations below
const (
	maSpreadScale = 0.10
	rsDiffScale   = 0.15
	neutralScore  = 50.0
)

// PriceComponents is the price leg of a momentum score, each on [0,100]
type PriceComponents struct {
	MAScore       float64
	RelStrength   float64
	VolumeConfirm float64
	Score         float64
}

// TechnicalCalculator computes the price momentum component
// ⭐ SSOT: 가격 모멘텀(MA/RS/거래량) 계산은 여기서만
type TechnicalCalculator struct {
	cfg strategyconfig.Momentum
}

// NewTechnicalCalculator creates a new technical calculator
func NewTechnicalCalculator(cfg strategyconfig.Momentum) *TechnicalCalculator {
	return &TechnicalCalculator{cfg: cfg}
}

// Calculate scores bars (oldest first) against an optional sector benchmark.
// Fewer than MinLookbackDays bars is InsufficientHistory.
func (c *TechnicalCalculator) Calculate(ticker string, bars, benchmark []contracts.PriceBar) (PriceComponents, error) {
	if len(bars) < c.cfg.MinLookbackDays {
		return PriceComponents{}, fmt.Errorf("%w: %s has %d bars, need %d",
			contracts.ErrInsufficientHistory, ticker, len(bars), c.cfg.MinLookbackDays)
	}

	closes := closesOf(bars)
	pc := PriceComponents{
		MAScore:       c.movingAverageScore(closes),
		RelStrength:   c.relativeStrength(closes, closesOf(benchmark)),
		VolumeConfirm: c.volumeConfirmation(bars),
	}
	pc.Score = c.cfg.MAWeight*pc.MAScore + c.cfg.RSWeight*pc.RelStrength + c.cfg.VolumeWeight*pc.VolumeConfirm
	return pc, nil
}

// movingAverageScore rewards price above the long average and the short
// average above the long one
func (c *TechnicalCalculator) movingAverageScore(closes []float64) float64 {
	short := lastSMA(closes, c.cfg.MAShort)
	long := lastSMA(closes, c.cfg.MALong)
	if long <= 0 || short <= 0 {
		return neutralScore
	}
	last := closes[len(closes)-1]
	spread := (last/long - 1) + (short/long - 1)
	return toScore(spread, maSpreadScale)
}

// relativeStrength compares the instrument's return over RSWindow with the
// benchmark's. A missing or short benchmark is neutral.
func (c *TechnicalCalculator) relativeStrength(closes, bench []float64) float64 {
	own, ok := windowReturn(closes, c.cfg.RSWindow)
	if !ok {
		return neutralScore
	}
	ref, ok := windowReturn(bench, c.cfg.RSWindow)
	if !ok {
		return neutralScore
	}
	return toScore(own-ref, rsDiffScale)
}

// volumeConfirmation is the share of volume traded on up days within the
// window, on [0,100]
func (c *TechnicalCalculator) volumeConfirmation(bars []contracts.PriceBar) float64 {
	start := len(bars) - c.cfg.VolumeWindow
	if start < 1 {
		start = 1
	}

	var up, total int64
	for i := start; i < len(bars); i++ {
		total += bars[i].Volume
		if bars[i].Close > bars[i-1].Close {
			up += bars[i].Volume
		}
	}
	if total == 0 {
		return neutralScore
	}
	return 100 * float64(up) / float64(total)
}

func closesOf(bars []contracts.PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// lastSMA returns the latest simple moving average, or 0 when closes is shorter than n
func lastSMA(closes []float64, n int) float64 {
	if n <= 0 || len(closes) < n {
		return 0
	}
	sma := talib.Sma(closes, n)
	v := sma[len(sma)-1]
	if math.IsNaN(v) {
		return 0
	}
	return v
}

func windowReturn(closes []float64, n int) (float64, bool) {
	if n <= 0 || len(closes) <= n {
		return 0, false
	}
	from := closes[len(closes)-1-n]
	if from <= 0 {
		return 0, false
	}
	return closes[len(closes)-1]/from - 1, true
}

// toScore maps x onto (0,100) around 50 with the given scale
func toScore(x, scale float64) float64 {
	return neutralScore + neutralScore*math.Tanh(x/scale)
}
