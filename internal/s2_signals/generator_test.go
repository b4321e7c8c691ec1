package s2_signals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fvgsim/internal/contracts"
	"github.com/wonny/fvgsim/internal/strategyconfig"
)

func fv(fair float64) *contracts.FairValueEstimate {
	return &contracts.FairValueEstimate{Ticker: "TST", FairValue: fair}
}

func mom(composite float64) *contracts.MomentumScore {
	return &contracts.MomentumScore{Ticker: "TST", Composite: composite}
}

func openPosition(entry float64, holding int) *contracts.Position {
	cfg := strategyconfig.Default().Signals
	return &contracts.Position{
		Ticker:      "TST",
		EntryPrice:  entry,
		StopPrice:   entry * (1 - cfg.StopLossFraction),
		Status:      contracts.PositionOpen,
		HoldingDays: holding,
	}
}

func TestGenerator_ExitPrecedence(t *testing.T) {
	g := NewGenerator(strategyconfig.Default().Signals)

	tests := []struct {
		name string
		in   contracts.SignalInput
		want contracts.Reason
	}{
		{
			name: "profit target beats stop loss",
			// close 80 under the 85 stop, fair 82 gives gap 2.5% < 5%
			in:   contracts.SignalInput{Close: 80, FairValue: fv(82), Momentum: mom(10), Position: openPosition(100, 300), InUniverse: true},
			want: contracts.ReasonProfitTarget,
		},
		{
			name: "stop loss beats time exit",
			in:   contracts.SignalInput{Close: 84, FairValue: fv(200), Momentum: mom(10), Position: openPosition(100, 300), InUniverse: true},
			want: contracts.ReasonStopLoss,
		},
		{
			name: "time exit beats momentum",
			in:   contracts.SignalInput{Close: 100, FairValue: fv(200), Momentum: mom(10), Position: openPosition(100, 252), InUniverse: true},
			want: contracts.ReasonTimeExit,
		},
		{
			name: "momentum deterioration",
			in:   contracts.SignalInput{Close: 100, FairValue: fv(200), Momentum: mom(39.9), Position: openPosition(100, 10), InUniverse: true},
			want: contracts.ReasonMomentumDeterioration,
		},
		{
			name: "rebalance drop on review when universe is lost",
			in:   contracts.SignalInput{Close: 100, FairValue: fv(200), Momentum: mom(70), Position: openPosition(100, 10), Review: true},
			want: contracts.ReasonRebalanceDrop,
		},
		{
			name: "rebalance drop on review without fair value",
			in:   contracts.SignalInput{Close: 100, Momentum: mom(70), Position: openPosition(100, 10), InUniverse: true, Review: true},
			want: contracts.ReasonRebalanceDrop,
		},
		{
			name: "stop loss without scores",
			in:   contracts.SignalInput{Close: 85, Position: openPosition(100, 1)},
			want: contracts.ReasonStopLoss,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.Ticker = "TST"
			s := g.Generate(tt.in)
			require.NotNil(t, s)
			assert.Equal(t, contracts.SignalExit, s.Kind)
			assert.Equal(t, tt.want, s.Reason)
		})
	}
}

func TestGenerator_HoldWhenNoExitRuleFires(t *testing.T) {
	g := NewGenerator(strategyconfig.Default().Signals)

	tests := []struct {
		name string
		in   contracts.SignalInput
	}{
		{"healthy position", contracts.SignalInput{Close: 100, FairValue: fv(130), Momentum: mom(70), Position: openPosition(100, 10), InUniverse: true}},
		{"off universe outside review", contracts.SignalInput{Close: 100, FairValue: fv(130), Momentum: mom(70), Position: openPosition(100, 10)}},
		{"strong entry setup while holding", contracts.SignalInput{Close: 100, FairValue: fv(200), Momentum: mom(99), Position: openPosition(100, 10), Liquid: true, InUniverse: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, g.Generate(tt.in))
		})
	}
}

func TestGenerator_StopLossBound(t *testing.T) {
	cfg := strategyconfig.Default().Signals
	g := NewGenerator(cfg)
	pos := openPosition(100, 0)
	stop := 100 * (1 - cfg.StopLossFraction)

	// first close at or under the stop fires, nothing above it does
	closes := []float64{99, 90, stop + 1e-9, stop, stop - 1}
	want := []bool{false, false, false, true, true}

	for i, c := range closes {
		s := g.Generate(contracts.SignalInput{Ticker: "TST", Close: c, FairValue: fv(200), Momentum: mom(70), Position: pos, InUniverse: true})
		if want[i] {
			require.NotNil(t, s, "close %v", c)
			assert.Equal(t, contracts.ReasonStopLoss, s.Reason)
		} else {
			assert.Nil(t, s, "close %v", c)
		}
	}
}

// ENTER iff gap >= entry gap AND momentum >= entry momentum AND liquid AND flat
func TestGenerator_EntryGating(t *testing.T) {
	cfg := strategyconfig.Default().Signals
	g := NewGenerator(cfg)

	gaps := []float64{0.149, 0.15, 0.40}
	moms := []float64{59.99, 60, 90}

	for _, gap := range gaps {
		for _, m := range moms {
			for _, liquid := range []bool{false, true} {
				for _, holding := range []bool{false, true} {
					in := contracts.SignalInput{
						Ticker:     "TST",
						Close:      100,
						FairValue:  &contracts.FairValueEstimate{FairValue: 100 * (1 + gap)},
						Momentum:   mom(m),
						Liquid:     liquid,
						InUniverse: true,
					}
					if holding {
						in.Position = openPosition(100, 1)
					}

					s := g.Generate(in)
					gapAt := in.FairValue.GapAt(in.Close)
					want := gapAt >= cfg.EntryGapThreshold && m >= cfg.EntryMomentumThreshold && liquid && !holding

					gotEnter := s != nil && s.Kind == contracts.SignalEnter
					assert.Equal(t, want, gotEnter, "gap=%v mom=%v liquid=%v holding=%v", gap, m, liquid, holding)
				}
			}
		}
	}
}

func TestGenerator_NoEntryWithoutScores(t *testing.T) {
	g := NewGenerator(strategyconfig.Default().Signals)

	assert.Nil(t, g.Generate(contracts.SignalInput{Ticker: "TST", Close: 100, Momentum: mom(90), Liquid: true, InUniverse: true}))
	assert.Nil(t, g.Generate(contracts.SignalInput{Ticker: "TST", Close: 100, FairValue: fv(200), Liquid: true, InUniverse: true}))
	assert.Nil(t, g.Generate(contracts.SignalInput{Ticker: "TST", Close: 100, FairValue: fv(200), Momentum: mom(90), Liquid: true}))

	s := g.Generate(contracts.SignalInput{Ticker: "TST", Close: 100, FairValue: fv(200), Momentum: mom(90), Liquid: true, InUniverse: true})
	require.NotNil(t, s)
	assert.Equal(t, contracts.ReasonEntryThresholds, s.Reason)
	assert.InDelta(t, 1.0, s.Gap, 1e-12)
	assert.Equal(t, 90.0, s.Momentum)
	assert.True(t, s.HasScores)
}

func TestGenerator_StampedEstimateIsReMarkedAtClose(t *testing.T) {
	g := NewGenerator(strategyconfig.Default().Signals)
	// 리뷰일 종가 100 기준으로 산출된 추정치 (gap 20%)
	stamped := &contracts.FairValueEstimate{Ticker: "TST", FairValue: 120, Close: 100, Gap: 0.2}

	tests := []struct {
		name  string
		in    contracts.SignalInput
		want  contracts.Reason
		empty bool
	}{
		{
			name:  "holding at review close",
			in:    contracts.SignalInput{Ticker: "TST", Close: 100, FairValue: stamped, Momentum: mom(70), Position: openPosition(100, 10), InUniverse: true},
			empty: true,
		},
		{
			name: "price rally closes the gap",
			// 118 기준 gap 1.7% < 5%
			in:   contracts.SignalInput{Ticker: "TST", Close: 118, FairValue: stamped, Momentum: mom(70), Position: openPosition(100, 10), InUniverse: true},
			want: contracts.ReasonProfitTarget,
		},
		{
			name:  "no entry once the gap has narrowed",
			in:    contracts.SignalInput{Ticker: "TST", Close: 110, FairValue: stamped, Momentum: mom(90), Liquid: true, InUniverse: true},
			empty: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := g.Generate(tt.in)
			if tt.empty {
				assert.Nil(t, s)
				return
			}
			require.NotNil(t, s)
			assert.Equal(t, tt.want, s.Reason)
		})
	}
	assert.Equal(t, 0.2, stamped.Gap)
}
