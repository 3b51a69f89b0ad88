package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamdan-dev/tazkir/internal/models"
)

func date(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func TestNextDaily(t *testing.T) {
	from := date(2024, time.March, 10, 9, 30)

	next, err := Next(models.PatternDaily, 2, from)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.March, 12, 9, 30), next)
}

func TestNextWeekly(t *testing.T) {
	from := date(2024, time.March, 10, 18, 0)

	next, err := Next(models.PatternWeekly, 1, from)
	require.NoError(t, err)
	assert.Equal(t, from.AddDate(0, 0, 7), next)
}

func TestNextMonthlyClampsToEndOfMonth(t *testing.T) {
	cases := []struct {
		name     string
		from     time.Time
		interval int
		want     time.Time
	}{
		{"jan 31 to feb 29 leap", date(2024, time.January, 31, 8, 0), 1, date(2024, time.February, 29, 8, 0)},
		{"jan 31 to feb 28", date(2025, time.January, 31, 8, 0), 1, date(2025, time.February, 28, 8, 0)},
		{"mar 31 to apr 30", date(2024, time.March, 31, 12, 15), 1, date(2024, time.April, 30, 12, 15)},
		{"plain mid-month", date(2024, time.April, 15, 7, 0), 1, date(2024, time.May, 15, 7, 0)},
		{"interval crosses year", date(2024, time.November, 30, 8, 0), 3, date(2025, time.February, 28, 8, 0)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Next(models.PatternMonthly, tc.interval, tc.from)
			require.NoError(t, err)
			assert.Equal(t, tc.want, next)
		})
	}
}

func TestNextYearlyFeb29(t *testing.T) {
	from := date(2024, time.February, 29, 10, 0)

	next, err := Next(models.PatternYearly, 1, from)
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.February, 28, 10, 0), next)

	next, err = Next(models.PatternYearly, 4, from)
	require.NoError(t, err)
	assert.Equal(t, date(2028, time.February, 29, 10, 0), next)
}

func TestNextRejectsBadInput(t *testing.T) {
	from := date(2024, time.March, 10, 9, 0)

	_, err := Next(models.PatternDaily, 0, from)
	assert.Error(t, err)

	_, err = Next("fortnightly", 1, from)
	assert.Error(t, err)
}

func TestNextPreservesLocation(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Riyadh")
	require.NoError(t, err)
	from := time.Date(2024, time.January, 31, 21, 0, 0, 0, loc)

	next, err := Next(models.PatternMonthly, 1, from)
	require.NoError(t, err)
	assert.Equal(t, loc, next.Location())
	assert.Equal(t, 21, next.Hour())
}

func TestNextRule(t *testing.T) {
	dtstart := date(2024, time.March, 1, 9, 0)

	next, err := NextRule("FREQ=WEEKLY;BYDAY=MO", dtstart, date(2024, time.March, 1, 10, 0))
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, time.Monday, next.Weekday())

	// COUNT-bounded rules run out.
	exhausted, err := NextRule("FREQ=DAILY;COUNT=2", dtstart, date(2024, time.March, 10, 0, 0))
	require.NoError(t, err)
	assert.Nil(t, exhausted)

	_, err = NextRule("FREQ=NONSENSE", dtstart, dtstart)
	assert.Error(t, err)
}

func TestValidRule(t *testing.T) {
	assert.True(t, ValidRule("RRULE:FREQ=DAILY;INTERVAL=2"))
	assert.True(t, ValidRule("FREQ=MONTHLY;BYMONTHDAY=15"))
	assert.False(t, ValidRule("FREQ="))
}

func TestDescribe(t *testing.T) {
	r := &models.Reminder{IsRecurring: true, Pattern: models.PatternDaily, Interval: 1}
	assert.Equal(t, "daily", Describe(r))

	r.Interval = 3
	assert.Equal(t, "every 3 day(s)", Describe(r))

	r.RecurrenceRule = "RRULE:FREQ=WEEKLY;BYDAY=FR"
	assert.Equal(t, "FREQ=WEEKLY;BYDAY=FR", Describe(r))

	assert.Empty(t, Describe(&models.Reminder{}))
}
