package quality

import (
	"math"
	"sort"

	"github.com/wonny/fvgsim/internal/contracts"
)

// Validator rejects bars and records that break the input contract.
// Rejected items are reported, never repaired. Ordering is normalized:
// unsorted input is sorted, not rejected.
// ⭐ SSOT: S0 입력 데이터 무결성 검증은 여기서만
type Validator struct{}

// NewValidator creates a Validator
func NewValidator() *Validator {
	return &Validator{}
}

// Report summarizes one validation pass
type Report struct {
	Bars                 int                             `json:"bars"`
	RejectedBars         int                             `json:"rejected_bars"`
	Fundamentals         int                             `json:"fundamentals"`
	RejectedFundamentals int                             `json:"rejected_fundamentals"`
	Issues               []*contracts.DataIntegrityError `json:"issues"`
}

// Passed reports whether nothing was rejected
func (r *Report) Passed() bool {
	return r.RejectedBars == 0 && r.RejectedFundamentals == 0
}

// ValidateBars returns accepted bars sorted by (ticker, date). Input order is
// not significant. When a (ticker, date) appears more than once every bar for
// it is rejected, so no copy decides the price used that day.
func (v *Validator) ValidateBars(bars []contracts.PriceBar, report *Report) []contracts.PriceBar {
	sorted := make([]contracts.PriceBar, len(bars))
	copy(sorted, bars)
	for i := range sorted {
		sorted[i].Date = contracts.Day(sorted[i].Date)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Ticker != sorted[j].Ticker {
			return sorted[i].Ticker < sorted[j].Ticker
		}
		return sorted[i].Date.Before(sorted[j].Date)
	})

	counts := make(map[string]int, len(sorted))
	for _, b := range sorted {
		counts[barKey(b)]++
	}

	accepted := make([]contracts.PriceBar, 0, len(sorted))
	for _, b := range sorted {
		report.Bars++

		if counts[barKey(b)] > 1 {
			report.rejectBar(b, "date", "duplicate bar")
			continue
		}
		if field, reason, ok := checkBar(b); !ok {
			report.rejectBar(b, field, reason)
			continue
		}
		accepted = append(accepted, b)
	}
	return accepted
}

func barKey(b contracts.PriceBar) string {
	return b.Ticker + "|" + b.Date.Format(contracts.DateLayout)
}

func checkBar(b contracts.PriceBar) (field, reason string, ok bool) {
	prices := []struct {
		name  string
		value float64
	}{
		{"open", b.Open}, {"high", b.High}, {"low", b.Low}, {"close", b.Close},
	}
	for _, p := range prices {
		if math.IsNaN(p.value) || math.IsInf(p.value, 0) {
			return p.name, "not finite", false
		}
		if p.value <= 0 {
			return p.name, "non-positive price", false
		}
	}
	if b.Volume < 0 {
		return "volume", "negative volume", false
	}
	if b.High < b.Low {
		return "high", "high below low", false
	}
	if b.Open > b.High || b.Open < b.Low || b.Close > b.High || b.Close < b.Low {
		return "close", "open/close outside high-low range", false
	}
	return "", "", true
}

// ValidateFundamentals returns accepted records with dates normalized
func (v *Validator) ValidateFundamentals(records []contracts.FundamentalRecord, report *Report) []contracts.FundamentalRecord {
	accepted := make([]contracts.FundamentalRecord, 0, len(records))
	for _, r := range records {
		report.Fundamentals++
		r.PeriodEnd = contracts.Day(r.PeriodEnd)
		r.PublishedAt = contracts.Day(r.PublishedAt)

		switch {
		case r.Ticker == "" || r.Metric == "":
			report.rejectRecord(r, "metric", "missing ticker or metric")
		case math.IsNaN(r.Value) || math.IsInf(r.Value, 0):
			report.rejectRecord(r, string(r.Metric), "not finite")
		case r.PublishedAt.Before(r.PeriodEnd):
			report.rejectRecord(r, "published_at", "published before period end")
		case r.Metric == contracts.MetricSharesOutstanding && r.Value <= 0:
			report.rejectRecord(r, string(r.Metric), "non-positive share count")
		case r.Metric == contracts.MetricRevenue && r.Value < 0:
			report.rejectRecord(r, string(r.Metric), "negative revenue")
		default:
			accepted = append(accepted, r)
		}
	}
	return accepted
}

func (r *Report) rejectBar(b contracts.PriceBar, field, reason string) {
	r.RejectedBars++
	r.Issues = append(r.Issues, &contracts.DataIntegrityError{Ticker: b.Ticker, Date: b.Date, Field: field, Reason: reason})
}

func (r *Report) rejectRecord(rec contracts.FundamentalRecord, field, reason string) {
	r.RejectedFundamentals++
	r.Issues = append(r.Issues, &contracts.DataIntegrityError{Ticker: rec.Ticker, Date: rec.PublishedAt, Field: field, Reason: reason})
}
