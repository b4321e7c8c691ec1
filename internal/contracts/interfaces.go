package contracts

import (
	"context"
	"time"
)

// PriceFeed supplies point-in-time daily bars
// ⭐ SSOT: 시뮬레이터/엔진은 이 인터페이스로만 가격을 읽음
type PriceFeed interface {
	// BarOn returns the valid bar for date. Rejected or missing bars return false.
	BarOn(ticker string, date time.Time) (PriceBar, bool)
	// Bars returns up to n valid bars dated on/before asOf, oldest first.
	Bars(ticker string, asOf time.Time, n int) ([]PriceBar, error)
}

// FundamentalRepository supplies records visible at an as-of date
type FundamentalRepository interface {
	Fundamentals(ticker string, asOf time.Time) ([]FundamentalRecord, error)
}

// FairValueEngine computes a fair-value estimate from visible records only
type FairValueEngine interface {
	Estimate(inst Instrument, asOf time.Time, close float64, records []FundamentalRecord) (FairValueEstimate, error)
}

// MomentumEngine computes fundamental and price momentum as of a date.
// ctx is only passed through to an injected MomentumScorer.
type MomentumEngine interface {
	Score(ctx context.Context, inst Instrument, asOf time.Time, bars, benchmark []PriceBar, records []FundamentalRecord) (MomentumScore, error)
}

// MomentumScorer is an externally trained scoring function. It must return a
// score on [0,100] from visible history only.
type MomentumScorer interface {
	Score(ctx context.Context, ticker string, asOf time.Time, bars []PriceBar, records []FundamentalRecord) (float64, error)
}

// ScorerFunc adapts a plain function to MomentumScorer
type ScorerFunc func(ctx context.Context, ticker string, asOf time.Time, bars []PriceBar, records []FundamentalRecord) (float64, error)

func (f ScorerFunc) Score(ctx context.Context, ticker string, asOf time.Time, bars []PriceBar, records []FundamentalRecord) (float64, error) {
	return f(ctx, ticker, asOf, bars, records)
}

// SignalInput is everything the signal rules may look at for one instrument
type SignalInput struct {
	Ticker     string
	Date       time.Time
	Close      float64
	FairValue  *FairValueEstimate // nil: 추정 불가 (제외)
	Momentum   *MomentumScore     // nil: 산출 불가
	Position   *Position          // nil: 미보유
	Liquid     bool
	InUniverse bool
	Review     bool // 정기 리뷰일
}

// SignalGenerator turns scores and position state into at most one signal
type SignalGenerator interface {
	Generate(in SignalInput) *Signal
}
