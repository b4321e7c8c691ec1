package quality

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wonny/fvgsim/internal/contracts"
)

var d0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func bar(ticker string, day int, o, h, l, c float64, vol int64) contracts.PriceBar {
	return contracts.PriceBar{Ticker: ticker, Date: d0.AddDate(0, 0, day), Open: o, High: h, Low: l, Close: c, Volume: vol}
}

func TestValidateBars(t *testing.T) {
	tests := []struct {
		name      string
		bar       contracts.PriceBar
		wantField string
	}{
		{"zero close", bar("A", 0, 10, 11, 9, 0, 100), "close"},
		{"negative open", bar("A", 0, -1, 11, 9, 10, 100), "open"},
		{"negative volume", bar("A", 0, 10, 11, 9, 10, -5), "volume"},
		{"high below low", bar("A", 0, 10, 9, 11, 10, 100), "high"},
		{"close outside range", bar("A", 0, 10, 11, 9, 12, 100), "close"},
		{"nan", bar("A", 0, math.NaN(), 11, 9, 10, 100), "open"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := &Report{}
			out := NewValidator().ValidateBars([]contracts.PriceBar{tt.bar}, report)

			assert.Empty(t, out)
			assert.Equal(t, 1, report.RejectedBars)
			require.Len(t, report.Issues, 1)
			assert.Equal(t, tt.wantField, report.Issues[0].Field)
			assert.True(t, errors.Is(report.Issues[0], contracts.ErrDataIntegrity))
		})
	}
}

func TestValidateBars_SortsAndRejectsDuplicates(t *testing.T) {
	in := []contracts.PriceBar{
		bar("B", 1, 10, 10, 10, 10, 1),
		bar("A", 1, 10, 10, 10, 10, 1),
		bar("A", 0, 10, 10, 10, 10, 1),
		bar("A", 1, 11, 11, 11, 11, 1),
	}

	report := &Report{}
	out := NewValidator().ValidateBars(in, report)

	require.Len(t, out, 2)
	assert.Equal(t, "A", out[0].Ticker)
	assert.Equal(t, d0, out[0].Date)
	assert.Equal(t, "B", out[1].Ticker)

	// 같은 날짜의 봉은 모두 거부
	assert.Equal(t, 2, report.RejectedBars)
	require.Len(t, report.Issues, 2)
	for _, issue := range report.Issues {
		assert.Equal(t, "A", issue.Ticker)
		assert.Equal(t, d0.AddDate(0, 0, 1), issue.Date)
		assert.Equal(t, "date", issue.Field)
	}
	assert.False(t, report.Passed())
}

func TestValidateFundamentals(t *testing.T) {
	q := d0.AddDate(0, -1, 0)
	rec := func(metric contracts.Metric, period, pub time.Time, v float64) contracts.FundamentalRecord {
		return contracts.FundamentalRecord{Ticker: "A", PeriodEnd: period, PublishedAt: pub, Metric: metric, Value: v}
	}

	tests := []struct {
		name   string
		rec    contracts.FundamentalRecord
		reject bool
	}{
		{"valid", rec(contracts.MetricRevenue, q, d0, 100), false},
		{"negative free cash flow allowed", rec(contracts.MetricFreeCashFlow, q, d0, -5), false},
		{"published before period end", rec(contracts.MetricRevenue, d0, q, 1), true},
		{"zero shares", rec(contracts.MetricSharesOutstanding, q, d0, 0), true},
		{"infinite value", rec(contracts.MetricRevenue, q, d0, math.Inf(1)), true},
		{"missing metric", rec("", q, d0, 1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := &Report{}
			out := NewValidator().ValidateFundamentals([]contracts.FundamentalRecord{tt.rec}, report)
			if tt.reject {
				assert.Empty(t, out)
				assert.Equal(t, 1, report.RejectedFundamentals)
			} else {
				assert.Len(t, out, 1)
				assert.True(t, report.Passed())
			}
		})
	}
}
