package s2_signals

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fvgsim/internal/contracts"
	"github.com/wonny/fvgsim/internal/s0_data"
	"github.com/wonny/fvgsim/internal/s0_data/quality"
	"github.com/wonny/fvgsim/internal/strategyconfig"
	"github.com/wonny/fvgsim/pkg/logger"
)

func builderFixture(t *testing.T, workers int) (*Builder, *s0_data.Store) {
	t.Helper()
	asOf := day("2024-03-01")

	ds := &s0_data.Dataset{
		Instruments: []contracts.Instrument{
			{Ticker: "TST", Sector: contracts.SectorTechnology, CapBand: contracts.CapMid},
			{Ticker: "REV", Sector: contracts.SectorHealthcare, CapBand: contracts.CapMid},
			{Ticker: "IDX", Sector: contracts.SectorTechnology, Benchmark: true},
		},
	}
	ds.Bars = append(ds.Bars, series("TST", asOf, []float64{10, 11, 12, 13, 12, 13, 14, 15, 14, 16}, 1000)...)
	ds.Bars = append(ds.Bars, series("REV", asOf, flat(10, 20), 1000)...)
	ds.Bars = append(ds.Bars, series("IDX", asOf, flat(10, 100), 0)...)
	ds.Fundamentals = fullRecords()
	for _, r := range revenueRecords(50, 60, 70, 90) {
		r.Ticker = "REV"
		ds.Fundamentals = append(ds.Fundamentals, r)
	}

	store, report := s0_data.NewStore(ds, quality.NewValidator())
	require.True(t, report.Passed())
	_, err := store.Advance(asOf)
	require.NoError(t, err)

	cfg := strategyconfig.Default()
	cfg.Momentum = smallMomentumConfig()
	cfg.Universe.Benchmarks = map[string]string{"Technology": "IDX"}
	cfg.Engine.Workers = workers

	log := logger.NewNop()
	b := NewBuilder(
		NewFairValueEngine(cfg.Valuation, log),
		NewMomentumCalculator(cfg.Momentum, nil, log),
		store, cfg, log,
	)
	return b, store
}

func TestBuilder_ScoresAndExcludes(t *testing.T) {
	b, _ := builderFixture(t, 4)

	results, err := b.Build(context.Background(), day("2024-03-01"), []Request{
		{Ticker: "TST", FairValue: true, Momentum: true},
		{Ticker: "REV", FairValue: true, Momentum: true},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	tst := results[0]
	assert.Equal(t, "TST", tst.Ticker)
	require.NotNil(t, tst.FairValue)
	require.NotNil(t, tst.Momentum)
	assert.Equal(t, 16.0, tst.FairValue.Close)
	assert.Greater(t, tst.Momentum.RelStrength, 50.0, "outperformed a flat benchmark")

	rev := results[1]
	assert.Nil(t, rev.FairValue)
	assert.ErrorIs(t, rev.FairValueErr, contracts.ErrInsufficientData)
	require.NotNil(t, rev.Momentum, "momentum needs revenue and bars only")
	assert.InDelta(t, 50, rev.Momentum.RelStrength, 1e-9, "no healthcare benchmark configured")
}

func TestBuilder_MomentumOnlyRequest(t *testing.T) {
	b, _ := builderFixture(t, 2)

	results, err := b.Build(context.Background(), day("2024-03-01"), []Request{{Ticker: "TST", Momentum: true}})
	require.NoError(t, err)
	assert.Nil(t, results[0].FairValue)
	assert.NoError(t, results[0].FairValueErr)
	assert.NotNil(t, results[0].Momentum)
}

func TestBuilder_FatalErrorsAbortTheBatch(t *testing.T) {
	b, _ := builderFixture(t, 4)

	_, err := b.Build(context.Background(), day("2024-03-01"), []Request{
		{Ticker: "TST", FairValue: true},
		{Ticker: "NOPE", FairValue: true},
	})
	assert.ErrorIs(t, err, contracts.ErrInvariantViolation)

	_, err = b.Build(context.Background(), day("2024-03-04"), []Request{{Ticker: "TST", FairValue: true}})
	assert.ErrorIs(t, err, contracts.ErrPointInTimeViolation, "date beyond the store clock")
}

func TestBuilder_WorkerCountDoesNotChangeResults(t *testing.T) {
	reqs := []Request{
		{Ticker: "REV", FairValue: true, Momentum: true},
		{Ticker: "TST", FairValue: true, Momentum: true},
	}

	serial, _ := builderFixture(t, 1)
	parallel, _ := builderFixture(t, 8)

	a, err := serial.Build(context.Background(), day("2024-03-01"), reqs)
	require.NoError(t, err)
	b, err := parallel.Build(context.Background(), day("2024-03-01"), reqs)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
