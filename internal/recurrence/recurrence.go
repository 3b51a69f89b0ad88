// Package recurrence computes the next occurrence of a recurring reminder.
//
// Two paths exist: the fixed pattern/interval engine used by the standard
// /remind flows, and an RFC 5545 RRULE path kept for free-form schedules.
package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/hamdan-dev/tazkir/internal/models"
)

// Next returns the occurrence that follows from, stepping by interval units
// of the pattern.
//
// Month and year arithmetic is calendar-aware and clamps to the end of the
// target month: Jan 31 + 1 month lands on Feb 28 (29 in leap years), never on
// an overflowed date. The clock time and location of from are preserved.
func Next(pattern models.RecurrencePattern, interval int, from time.Time) (time.Time, error) {
	if interval < 1 {
		return time.Time{}, fmt.Errorf("recurrence interval must be at least 1, got %d", interval)
	}

	switch pattern {
	case models.PatternDaily:
		return from.AddDate(0, 0, interval), nil
	case models.PatternWeekly:
		return from.AddDate(0, 0, 7*interval), nil
	case models.PatternMonthly:
		return addMonthsClamped(from, interval), nil
	case models.PatternYearly:
		return addMonthsClamped(from, 12*interval), nil
	default:
		return time.Time{}, fmt.Errorf("unknown recurrence pattern %q", pattern)
	}
}

// addMonthsClamped adds months keeping the day-of-month where possible and
// clamping to the last day of shorter months.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	m := int(month) - 1 + months
	year += m / 12
	m = m % 12
	if m < 0 {
		m += 12
		year--
	}
	target := time.Month(m + 1)

	if last := daysIn(year, target); day > last {
		day = last
	}
	return time.Date(year, target, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// NextRule returns the first RRULE occurrence strictly after the given time,
// or nil when the rule is exhausted.
func NextRule(ruleStr string, dtstart, after time.Time) (*time.Time, error) {
	rule, err := parseRule(ruleStr, dtstart)
	if err != nil {
		return nil, err
	}

	next := rule.After(after, false)
	if next.IsZero() {
		return nil, nil
	}
	return &next, nil
}

func parseRule(ruleStr string, dtstart time.Time) (*rrule.RRule, error) {
	ruleStr = strings.TrimPrefix(ruleStr, "RRULE:")

	opt, err := rrule.StrToROption(ruleStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RRULE: %w", err)
	}
	opt.Dtstart = dtstart
	return rrule.NewRRule(*opt)
}

// ValidRule reports whether the string parses as an RRULE.
func ValidRule(ruleStr string) bool {
	_, err := rrule.StrToROption(strings.TrimPrefix(ruleStr, "RRULE:"))
	return err == nil
}

// Describe renders a short human-readable form of a reminder's recurrence.
func Describe(r *models.Reminder) string {
	if !r.IsRecurring {
		return ""
	}
	if r.RecurrenceRule != "" {
		return strings.TrimPrefix(r.RecurrenceRule, "RRULE:")
	}
	unit := map[models.RecurrencePattern]string{
		models.PatternDaily:   "day(s)",
		models.PatternWeekly:  "week(s)",
		models.PatternMonthly: "month(s)",
		models.PatternYearly:  "year(s)",
	}[r.Pattern]
	if r.Interval <= 1 {
		return string(r.Pattern)
	}
	return fmt.Sprintf("every %d %s", r.Interval, unit)
}
