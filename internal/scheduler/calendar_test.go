package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fvgsim/internal/strategyconfig"
)

func d(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// weekdays returns Mon-Fri dates in [from, to]
func weekdays(from, to string) []time.Time {
	var out []time.Time
	for t := d(from); !t.After(d(to)); t = t.AddDate(0, 0, 1) {
		if t.Weekday() != time.Saturday && t.Weekday() != time.Sunday {
			out = append(out, t)
		}
	}
	return out
}

func TestCalendar_MonthlyReviewRollsForward(t *testing.T) {
	// 2024-06-01 is a Saturday
	days := weekdays("2024-05-15", "2024-07-10")
	cal, err := NewCalendar(strategyconfig.Calendar{ReviewCron: "0 0 1 * *"}, days)
	require.NoError(t, err)

	assert.Equal(t, []time.Time{d("2024-05-15"), d("2024-06-03"), d("2024-07-01")}, cal.Reviews())
	assert.True(t, cal.IsReview(d("2024-06-03")))
	assert.False(t, cal.IsReview(d("2024-06-01")))
	assert.Empty(t, cal.MomentumUpdates())
}

func TestCalendar_ExplicitDatesAndMomentumCollision(t *testing.T) {
	days := weekdays("2024-01-01", "2024-01-31")
	cal, err := NewCalendar(strategyconfig.Calendar{
		ReviewDates:  []string{"2024-01-15", "2024-01-20"}, // 01-20 is a Saturday
		MomentumCron: "0 0 * * 1",                          // every Monday
	}, days)
	require.NoError(t, err)

	assert.Equal(t, []time.Time{d("2024-01-01"), d("2024-01-15"), d("2024-01-22")}, cal.Reviews())

	// Mondays that are also reviews are not momentum-only dates
	assert.Equal(t, []time.Time{d("2024-01-08"), d("2024-01-29")}, cal.MomentumUpdates())
	assert.False(t, cal.IsMomentumUpdate(d("2024-01-15")))
	assert.True(t, cal.IsMomentumUpdate(d("2024-01-08")))
}

func TestCalendar_FiringAfterLastDayIsDropped(t *testing.T) {
	days := weekdays("2024-03-25", "2024-03-29")
	cal, err := NewCalendar(strategyconfig.Calendar{ReviewDates: []string{"2024-03-30"}}, days)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{d("2024-03-25")}, cal.Reviews())
}

func TestCalendar_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  strategyconfig.Calendar
	}{
		{"bad review cron", strategyconfig.Calendar{ReviewCron: "not a cron"}},
		{"bad momentum cron", strategyconfig.Calendar{MomentumCron: "61 * * * *"}},
		{"bad review date", strategyconfig.Calendar{ReviewDates: []string{"2024/01/02"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCalendar(tt.cfg, weekdays("2024-01-01", "2024-01-10"))
			assert.Error(t, err)
		})
	}
}

func TestCalendar_Empty(t *testing.T) {
	cal, err := NewCalendar(strategyconfig.Default().Calendar, nil)
	require.NoError(t, err)
	assert.Empty(t, cal.Reviews())
	assert.False(t, cal.IsReview(d("2024-01-01")))
}
