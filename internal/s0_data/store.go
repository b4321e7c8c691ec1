package s0_data

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/fvgsim/internal/contracts"
	"github.com/wonny/fvgsim/internal/s0_data/quality"
)

// Dataset is the full pre-loaded input of one run
type Dataset struct {
	Instruments  []contracts.Instrument        `json:"instruments"`
	Bars         []contracts.PriceBar          `json:"bars"`
	Fundamentals []contracts.FundamentalRecord `json:"fundamentals"`
}

// Store is the point-in-time view the simulator and engines read through.
// Its clock only moves forward via Advance; reads beyond the clock fail with
// a PointInTimeViolation instead of returning data.
// ⭐ SSOT: 시점 정합성(PIT) 게이트는 여기서만
type Store struct {
	mu sync.RWMutex

	instruments map[string]contracts.Instrument
	tickers     []string
	bars        map[string][]contracts.PriceBar          // 검증 통과분, 날짜 오름차순
	rejected    map[string]*contracts.DataIntegrityError // key: ticker|date
	records     map[string][]contracts.FundamentalRecord // 공시일 오름차순
	admitted    map[string]int                           // 현재 커서까지 공개된 레코드 수
	calendar    []time.Time

	cursor  time.Time
	started bool
}

// NewStore validates ds and builds the store. The returned report lists every
// rejected bar and record.
func NewStore(ds *Dataset, v *quality.Validator) (*Store, *quality.Report) {
	report := &quality.Report{}

	s := &Store{
		instruments: make(map[string]contracts.Instrument, len(ds.Instruments)),
		bars:        make(map[string][]contracts.PriceBar),
		rejected:    make(map[string]*contracts.DataIntegrityError),
		records:     make(map[string][]contracts.FundamentalRecord),
		admitted:    make(map[string]int),
	}

	for _, inst := range ds.Instruments {
		s.instruments[inst.Ticker] = inst
		s.tickers = append(s.tickers, inst.Ticker)
	}
	sort.Strings(s.tickers)

	days := make(map[time.Time]bool)
	for _, b := range ds.Bars {
		if inst, ok := s.instruments[b.Ticker]; ok && !inst.Benchmark {
			days[contracts.Day(b.Date)] = true
		}
	}
	for d := range days {
		s.calendar = append(s.calendar, d)
	}
	sort.Slice(s.calendar, func(i, j int) bool { return s.calendar[i].Before(s.calendar[j]) })

	for _, b := range v.ValidateBars(ds.Bars, report) {
		s.bars[b.Ticker] = append(s.bars[b.Ticker], b)
	}
	for _, issue := range report.Issues {
		s.rejected[rejectKey(issue.Ticker, issue.Date)] = issue
	}

	for _, r := range v.ValidateFundamentals(ds.Fundamentals, report) {
		s.records[r.Ticker] = append(s.records[r.Ticker], r)
	}
	for t := range s.records {
		recs := s.records[t]
		sort.SliceStable(recs, func(i, j int) bool {
			if !recs[i].PublishedAt.Equal(recs[j].PublishedAt) {
				return recs[i].PublishedAt.Before(recs[j].PublishedAt)
			}
			if !recs[i].PeriodEnd.Equal(recs[j].PeriodEnd) {
				return recs[i].PeriodEnd.Before(recs[j].PeriodEnd)
			}
			return recs[i].Metric < recs[j].Metric
		})
	}

	return s, report
}

func rejectKey(ticker string, date time.Time) string {
	return ticker + "|" + contracts.Day(date).Format(contracts.DateLayout)
}

// Instruments returns reference data in ascending ticker order
func (s *Store) Instruments() []contracts.Instrument {
	out := make([]contracts.Instrument, 0, len(s.tickers))
	for _, t := range s.tickers {
		out = append(out, s.instruments[t])
	}
	return out
}

// Instrument looks up one ticker
func (s *Store) Instrument(ticker string) (contracts.Instrument, bool) {
	inst, ok := s.instruments[ticker]
	return inst, ok
}

// TradingDays returns calendar days in [from, to] on which any tradable
// instrument has a bar (valid or rejected)
func (s *Store) TradingDays(from, to time.Time) []time.Time {
	from, to = contracts.Day(from), contracts.Day(to)
	var out []time.Time
	for _, d := range s.calendar {
		if d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Cursor returns the current clock
func (s *Store) Cursor() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor
}

// Advance moves the clock to date and admits every record published on/before
// it. It returns the tickers that gained newly visible records, ascending.
func (s *Store) Advance(date time.Time) ([]string, error) {
	date = contracts.Day(date)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started && date.Before(s.cursor) {
		return nil, fmt.Errorf("%w: clock moved backwards from %s to %s",
			contracts.ErrInvariantViolation, s.cursor.Format(contracts.DateLayout), date.Format(contracts.DateLayout))
	}
	s.cursor = date
	s.started = true

	var changed []string
	for _, t := range s.tickers {
		recs := s.records[t]
		n := s.admitted[t]
		for n < len(recs) && recs[n].VisibleAt(date) {
			n++
		}
		if n != s.admitted[t] {
			s.admitted[t] = n
			changed = append(changed, t)
		}
	}
	return changed, nil
}

func (s *Store) checkClock(ticker string, asOf time.Time) error {
	if !s.started || asOf.After(s.cursor) {
		return &contracts.PointInTimeViolationError{
			Ticker:      ticker,
			AsOf:        s.cursor,
			PublishedAt: asOf,
			Detail:      "read requested beyond the simulation clock",
		}
	}
	return nil
}

// Fundamentals returns a copy of the records visible at asOf
func (s *Store) Fundamentals(ticker string, asOf time.Time) ([]contracts.FundamentalRecord, error) {
	asOf = contracts.Day(asOf)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkClock(ticker, asOf); err != nil {
		return nil, err
	}

	recs := s.records[ticker][:s.admitted[ticker]]
	n := sort.Search(len(recs), func(i int) bool { return !recs[i].VisibleAt(asOf) })

	out := make([]contracts.FundamentalRecord, n)
	copy(out, recs[:n])
	return out, nil
}

// Bars returns up to n valid bars dated on/before asOf, oldest first.
// n <= 0 returns the full history.
func (s *Store) Bars(ticker string, asOf time.Time, n int) ([]contracts.PriceBar, error) {
	asOf = contracts.Day(asOf)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkClock(ticker, asOf); err != nil {
		return nil, err
	}

	all := s.bars[ticker]
	end := sort.Search(len(all), func(i int) bool { return all[i].Date.After(asOf) })
	start := 0
	if n > 0 && end-n > 0 {
		start = end - n
	}

	out := make([]contracts.PriceBar, end-start)
	copy(out, all[start:end])
	return out, nil
}

// BarOn returns the valid bar for date. Dates beyond the clock are never visible.
func (s *Store) BarOn(ticker string, date time.Time) (contracts.PriceBar, bool) {
	date = contracts.Day(date)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started || date.After(s.cursor) {
		return contracts.PriceBar{}, false
	}

	all := s.bars[ticker]
	i := sort.Search(len(all), func(i int) bool { return !all[i].Date.Before(date) })
	if i < len(all) && all[i].Date.Equal(date) {
		return all[i], true
	}
	return contracts.PriceBar{}, false
}

// Rejection returns the integrity error for a bar rejected on date, if any
func (s *Store) Rejection(ticker string, date time.Time) (*contracts.DataIntegrityError, bool) {
	e, ok := s.rejected[rejectKey(ticker, date)]
	return e, ok
}
