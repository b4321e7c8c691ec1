package scheduler

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wonny/fvgsim/internal/contracts"
	"github.com/wonny/fvgsim/internal/strategyconfig"
)

// Calendar marks the simulated trading days on which scores are recomputed.
// Cron firings and explicit review dates that land on a non-trading day roll
// forward to the next trading day. The first trading day is always a review.
// ⭐ SSOT: 리뷰/모멘텀 갱신 일정은 여기서만
type Calendar struct {
	days     []time.Time
	reviews  map[time.Time]bool
	momentum map[time.Time]bool
}

// NewCalendar expands the configured schedules over the given trading days.
// days must be ascending and normalized with contracts.Day.
func NewCalendar(cfg strategyconfig.Calendar, days []time.Time) (*Calendar, error) {
	c := &Calendar{
		days:     days,
		reviews:  make(map[time.Time]bool),
		momentum: make(map[time.Time]bool),
	}
	if len(days) == 0 {
		return c, nil
	}
	c.reviews[days[0]] = true

	fires, err := expandCron(cfg.ReviewCron, days[0], days[len(days)-1])
	if err != nil {
		return nil, fmt.Errorf("calendar.review_cron: %w", err)
	}
	for _, d := range cfg.ReviewDates {
		t, err := time.Parse(contracts.DateLayout, d)
		if err != nil {
			return nil, fmt.Errorf("calendar.review_dates: %w", err)
		}
		fires = append(fires, t)
	}
	for _, f := range fires {
		if d, ok := c.rollForward(f); ok {
			c.reviews[d] = true
		}
	}

	fires, err = expandCron(cfg.MomentumCron, days[0], days[len(days)-1])
	if err != nil {
		return nil, fmt.Errorf("calendar.momentum_cron: %w", err)
	}
	for _, f := range fires {
		if d, ok := c.rollForward(f); ok {
			c.momentum[d] = true
		}
	}

	return c, nil
}

// expandCron lists every firing of spec between the first and last day.
// Schedules without an explicit zone are evaluated in UTC.
func expandCron(spec string, first, last time.Time) ([]time.Time, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}
	if !strings.HasPrefix(spec, "TZ=") && !strings.HasPrefix(spec, "CRON_TZ=") {
		spec = "CRON_TZ=UTC " + spec
	}

	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, err
	}

	end := last.AddDate(0, 0, 1)
	var out []time.Time
	for t := sched.Next(first.Add(-time.Second)); !t.IsZero() && t.Before(end); t = sched.Next(t) {
		out = append(out, t)
	}
	return out, nil
}

// rollForward returns the first trading day on or after t
func (c *Calendar) rollForward(t time.Time) (time.Time, bool) {
	t = contracts.Day(t)
	i := sort.Search(len(c.days), func(i int) bool { return !c.days[i].Before(t) })
	if i == len(c.days) {
		return time.Time{}, false
	}
	return c.days[i], true
}

// Days returns the trading days the calendar covers
func (c *Calendar) Days() []time.Time {
	return c.days
}

// IsReview reports whether date is a full-recompute review date
func (c *Calendar) IsReview(date time.Time) bool {
	return c.reviews[contracts.Day(date)]
}

// IsMomentumUpdate reports whether date is a momentum-only update date.
// A date that is also a review is handled as a review.
func (c *Calendar) IsMomentumUpdate(date time.Time) bool {
	d := contracts.Day(date)
	return c.momentum[d] && !c.reviews[d]
}

// Reviews returns the review dates in ascending order
func (c *Calendar) Reviews() []time.Time {
	return sortedKeys(c.reviews)
}

// MomentumUpdates returns momentum-only update dates in ascending order
func (c *Calendar) MomentumUpdates() []time.Time {
	out := make([]time.Time, 0, len(c.momentum))
	for _, d := range sortedKeys(c.momentum) {
		if !c.reviews[d] {
			out = append(out, d)
		}
	}
	return out
}

func sortedKeys(m map[time.Time]bool) []time.Time {
	out := make([]time.Time, 0, len(m))
	for d := range m {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
