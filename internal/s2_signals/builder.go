package s2_signals

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/fvgsim/internal/contracts"
	"github.com/wonny/fvgsim/internal/strategyconfig"
	"github.com/wonny/fvgsim/pkg/logger"
)

// Source is the point-in-time view the builder reads through
type Source interface {
	contracts.PriceFeed
	contracts.FundamentalRepository
	Instrument(ticker string) (contracts.Instrument, bool)
}

// Request asks for one instrument's scores on a date
type Request struct {
	Ticker    string
	FairValue bool
	Momentum  bool
}

// Result carries the scores of one request. Recoverable failures are kept
// in the Err fields; the instrument is excluded for the date.
type Result struct {
	Ticker       string
	FairValue    *contracts.FairValueEstimate
	Momentum     *contracts.MomentumScore
	FairValueErr error
	MomentumErr  error
}

// Builder scores instruments in parallel and waits for all of them before
// returning, so the simulator never mutates the portfolio mid-scoring.
// ⭐ SSOT: 시그널 생성 오케스트레이션은 여기서만
type Builder struct {
	fairValue  contracts.FairValueEngine
	momentum   contracts.MomentumEngine
	source     Source
	benchmarks map[string]string
	lookback   int
	workers    int
	logger     *logger.Logger
}

// NewBuilder creates a new signal builder
func NewBuilder(
	fairValue contracts.FairValueEngine,
	momentum contracts.MomentumEngine,
	source Source,
	cfg strategyconfig.Config,
	log *logger.Logger,
) *Builder {
	workers := cfg.Engine.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	m := cfg.Momentum
	return &Builder{
		fairValue:  fairValue,
		momentum:   momentum,
		source:     source,
		benchmarks: cfg.Universe.Benchmarks,
		lookback:   maxOf(m.MinLookbackDays, m.MALong, m.RSWindow+1, m.VolumeWindow+1),
		workers:    workers,
		logger:     log,
	}
}

// Build scores every request as of date. Results come back in request order.
// A non-recoverable error (point-in-time or invariant violation) aborts the
// whole batch.
func (b *Builder) Build(ctx context.Context, date time.Time, reqs []Request) ([]Result, error) {
	date = contracts.Day(date)
	results := make([]Result, len(reqs))

	// 하루 단위 작업은 중간 취소하지 않음
	dayCtx := context.WithoutCancel(ctx)

	g := new(errgroup.Group)
	g.SetLimit(b.workers)
	for i, req := range reqs {
		g.Go(func() error {
			res, err := b.score(dayCtx, date, req)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	failed := 0
	for _, r := range results {
		if r.FairValueErr != nil || r.MomentumErr != nil {
			failed++
		}
	}
	b.logger.WithFields(map[string]interface{}{
		"date":     date.Format(contracts.DateLayout),
		"requests": len(reqs),
		"excluded": failed,
	}).Debug("Scoring completed")

	return results, nil
}

// score computes one request. Only non-recoverable errors are returned.
func (b *Builder) score(ctx context.Context, date time.Time, req Request) (Result, error) {
	res := Result{Ticker: req.Ticker}

	inst, ok := b.source.Instrument(req.Ticker)
	if !ok {
		return res, fmt.Errorf("%w: unknown instrument %s", contracts.ErrInvariantViolation, req.Ticker)
	}

	records, err := b.source.Fundamentals(req.Ticker, date)
	if err != nil {
		return res, err
	}
	bars, err := b.source.Bars(req.Ticker, date, b.lookback)
	if err != nil {
		return res, err
	}

	if req.FairValue {
		est, err := b.estimate(inst, date, bars, records)
		switch {
		case err == nil:
			res.FairValue = &est
		case contracts.IsRecoverable(err):
			res.FairValueErr = err
		default:
			return res, err
		}
	}

	if req.Momentum {
		var benchmark []contracts.PriceBar
		if t, ok := b.benchmarks[string(inst.Sector)]; ok && t != "" {
			if benchmark, err = b.source.Bars(t, date, b.lookback); err != nil {
				return res, err
			}
		}

		ms, err := b.momentum.Score(ctx, inst, date, bars, benchmark, records)
		switch {
		case err == nil:
			res.Momentum = &ms
		case contracts.IsRecoverable(err):
			res.MomentumErr = err
		default:
			return res, err
		}
	}

	return res, nil
}

// estimate values the instrument against its last valid close on/before date
func (b *Builder) estimate(inst contracts.Instrument, date time.Time, bars []contracts.PriceBar, records []contracts.FundamentalRecord) (contracts.FairValueEstimate, error) {
	if len(bars) == 0 {
		return contracts.FairValueEstimate{}, fmt.Errorf("%w: %s has no valid bar", contracts.ErrInsufficientHistory, inst.Ticker)
	}
	return b.fairValue.Estimate(inst, date, bars[len(bars)-1].Close, records)
}

func maxOf(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
