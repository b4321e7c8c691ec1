package contracts

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestFundamentalRecord_VisibleAt(t *testing.T) {
	rec := FundamentalRecord{Ticker: "ACME", PublishedAt: date("2024-02-15")}

	tests := []struct {
		asOf string
		want bool
	}{
		{"2024-02-14", false},
		{"2024-02-15", true},
		{"2024-03-01", true},
	}

	for _, tt := range tests {
		t.Run(tt.asOf, func(t *testing.T) {
			assert.Equal(t, tt.want, rec.VisibleAt(date(tt.asOf)))
		})
	}
}

func TestDay_StripsClockAndZone(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)
	got := Day(time.Date(2024, 5, 3, 23, 59, 0, 0, seoul))
	assert.Equal(t, date("2024-05-03"), got)
}

func TestErrors_UnwrapToSentinels(t *testing.T) {
	dataErr := fmt.Errorf("validate: %w", &DataIntegrityError{Ticker: "ACME", Date: date("2024-01-02"), Field: "close", Reason: "non-positive"})
	assert.True(t, errors.Is(dataErr, ErrDataIntegrity))
	assert.True(t, IsRecoverable(dataErr))
	assert.Equal(t, "data_integrity", ExclusionReason(dataErr))

	pit := &PointInTimeViolationError{Ticker: "ACME", AsOf: date("2024-01-02"), PublishedAt: date("2024-01-05")}
	assert.True(t, errors.Is(pit, ErrPointInTimeViolation))
	assert.False(t, IsRecoverable(pit))

	assert.Equal(t, "insufficient_history", ExclusionReason(fmt.Errorf("x: %w", ErrInsufficientHistory)))
}

func TestFairValueEstimate_GapAt(t *testing.T) {
	est := FairValueEstimate{FairValue: 120, Close: 100, Gap: 0.2}

	assert.InDelta(t, 0.2, est.GapAt(100), 1e-12)
	assert.InDelta(t, 0.0, est.GapAt(120), 1e-12)
	assert.Equal(t, 0.0, est.GapAt(0))
	// re-marking leaves the stamped estimate untouched
	assert.Equal(t, 0.2, est.Gap)
}

func TestPosition_CloseExactlyOnce(t *testing.T) {
	p := &Position{Ticker: "ACME", Status: PositionOpen}

	err := p.Close(date("2024-02-01"), 0, "")
	require.ErrorIs(t, err, ErrInvariantViolation)
	assert.Equal(t, PositionOpen, p.Status)

	require.NoError(t, p.Close(date("2024-02-01"), 110, ReasonProfitTarget))
	assert.Equal(t, PositionClosed, p.Status)
	assert.Equal(t, ReasonProfitTarget, p.CloseReason)

	err = p.Close(date("2024-02-02"), 90, ReasonStopLoss)
	require.ErrorIs(t, err, ErrInvariantViolation)
	assert.Equal(t, ReasonProfitTarget, p.CloseReason)
}

func TestPortfolioState_RevalueAndIdentity(t *testing.T) {
	s := NewPortfolioState(1000)
	s.Cash = 700
	s.Positions["B"] = &Position{Ticker: "B", Sector: SectorHealthcare, Shares: 1, LastClose: 100, Size: 0.1}
	s.Positions["A"] = &Position{Ticker: "A", Sector: SectorTechnology, Shares: 2, LastClose: 90, Size: 0.2}

	s.Revalue()
	assert.InDelta(t, 980, s.Equity, 1e-9)
	assert.InDelta(t, 1000, s.Peak, 1e-9)
	assert.InDelta(t, 0.02, s.Drawdown, 1e-9)
	assert.NoError(t, s.CheckIdentity(1e-6))
	assert.Equal(t, []string{"A", "B"}, s.Tickers())
	assert.InDelta(t, 0.2, s.SectorSize(SectorTechnology), 1e-12)

	s.Positions["A"].LastClose = 95 // marked without revalue
	assert.ErrorIs(t, s.CheckIdentity(1e-6), ErrInvariantViolation)
}

func TestUniverse_Contains(t *testing.T) {
	u := &Universe{Tickers: []string{"AAA", "BBB", "CCC"}}
	assert.True(t, u.Contains("BBB"))
	assert.False(t, u.Contains("BB"))
	assert.Equal(t, 3, u.Count())
}

func TestReason_IsExitReason(t *testing.T) {
	assert.True(t, ReasonRebalanceDrop.IsExitReason())
	assert.False(t, ReasonEntryThresholds.IsExitReason())
	assert.False(t, Reason("").IsExitReason())
}
