package s2_signals

import (
	"sort"
	"time"

	"github.com/wonny/fvgsim/internal/contracts"
)

// periodValue is the value of one metric for one reporting period
type periodValue struct {
	PeriodEnd   time.Time
	PublishedAt time.Time
	Value       float64
}

// Fundamentals is the as-of view of an instrument's records: for every
// (period, metric) the latest publication visible at AsOf wins.
type Fundamentals struct {
	Ticker string
	AsOf   time.Time
	series map[contracts.Metric][]periodValue // PeriodEnd 오름차순
}

// NewFundamentals builds the view. Any record not visible at asOf is a
// point-in-time violation: callers must pass only what the store returned.
func NewFundamentals(ticker string, asOf time.Time, records []contracts.FundamentalRecord) (*Fundamentals, error) {
	asOf = contracts.Day(asOf)
	f := &Fundamentals{
		Ticker: ticker,
		AsOf:   asOf,
		series: make(map[contracts.Metric][]periodValue),
	}

	type key struct {
		metric contracts.Metric
		period time.Time
	}
	latest := make(map[key]periodValue)
	for _, r := range records {
		if !r.VisibleAt(asOf) {
			return nil, &contracts.PointInTimeViolationError{
				Ticker:      ticker,
				AsOf:        asOf,
				PublishedAt: r.PublishedAt,
				Detail:      string(r.Metric) + " passed to a valuation before publication",
			}
		}
		k := key{r.Metric, contracts.Day(r.PeriodEnd)}
		if cur, ok := latest[k]; ok && cur.PublishedAt.After(r.PublishedAt) {
			continue
		}
		latest[k] = periodValue{PeriodEnd: k.period, PublishedAt: contracts.Day(r.PublishedAt), Value: r.Value}
	}

	for k, v := range latest {
		f.series[k.metric] = append(f.series[k.metric], v)
	}
	for m := range f.series {
		s := f.series[m]
		sort.Slice(s, func(i, j int) bool { return s[i].PeriodEnd.Before(s[j].PeriodEnd) })
	}
	return f, nil
}

// Quarters returns the number of reporting periods with a value for metric
func (f *Fundamentals) Quarters(m contracts.Metric) int {
	return len(f.series[m])
}

// Values returns the metric's values ordered by period, oldest first
func (f *Fundamentals) Values(m contracts.Metric) []float64 {
	s := f.series[m]
	out := make([]float64, len(s))
	for i, v := range s {
		out[i] = v.Value
	}
	return out
}

// Latest returns the value for the most recent period
func (f *Fundamentals) Latest(m contracts.Metric) (float64, bool) {
	s := f.series[m]
	if len(s) == 0 {
		return 0, false
	}
	return s[len(s)-1].Value, true
}

// LatestPublished returns the most recently published value regardless of
// period. Consensus targets are revised in place, so recency is what matters.
func (f *Fundamentals) LatestPublished(m contracts.Metric) (float64, bool) {
	s := f.series[m]
	if len(s) == 0 {
		return 0, false
	}
	best := s[0]
	for _, v := range s[1:] {
		if !v.PublishedAt.Before(best.PublishedAt) {
			best = v
		}
	}
	return best.Value, true
}

// ValueAt returns the metric's value for an exact period
func (f *Fundamentals) ValueAt(m contracts.Metric, period time.Time) (float64, bool) {
	for _, v := range f.series[m] {
		if v.PeriodEnd.Equal(period) {
			return v.Value, true
		}
	}
	return 0, false
}

// Periods returns the period ends of metric, oldest first
func (f *Fundamentals) Periods(m contracts.Metric) []time.Time {
	s := f.series[m]
	out := make([]time.Time, len(s))
	for i, v := range s {
		out[i] = v.PeriodEnd
	}
	return out
}

// TTM sums the last four quarters. With fewer quarters it annualizes the
// average and reports annualized=true.
func (f *Fundamentals) TTM(m contracts.Metric) (value float64, annualized bool, ok bool) {
	vals := f.Values(m)
	n := len(vals)
	if n == 0 {
		return 0, false, false
	}
	if n >= 4 {
		sum := 0.0
		for _, v := range vals[n-4:] {
			sum += v
		}
		return sum, false, true
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(n) * 4, true, true
}
