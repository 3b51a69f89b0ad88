package models

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validReminder() *Reminder {
	return &Reminder{
		UserID:        7,
		Title:         "Pay bills",
		ScheduledTime: time.Now(),
		TargetChatID:  7,
		TargetKind:    TargetPrivate,
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name      string
		mutate    func(*Reminder)
		wantField string
	}{
		{"valid", func(r *Reminder) {}, ""},
		{"empty title", func(r *Reminder) { r.Title = "" }, "title"},
		{"title too long", func(r *Reminder) { r.Title = strings.Repeat("x", 201) }, "title"},
		{"message too long", func(r *Reminder) { r.Message = strings.Repeat("x", 1001) }, "message"},
		{"missing target", func(r *Reminder) { r.TargetChatID = 0 }, "target_chat_id"},
		{"missing time", func(r *Reminder) { r.ScheduledTime = time.Time{} }, "scheduled_time"},
		{"bad priority", func(r *Reminder) { r.Priority = "extreme" }, "priority"},
		{"recurring without pattern", func(r *Reminder) { r.IsRecurring = true }, "pattern"},
		{"recurring zero interval", func(r *Reminder) {
			r.IsRecurring = true
			r.Pattern = PatternDaily
		}, "interval"},
		{"recurring with rrule only", func(r *Reminder) {
			r.IsRecurring = true
			r.RecurrenceRule = "FREQ=DAILY"
		}, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := validReminder()
			tc.mutate(r)
			err := r.Validate()
			if tc.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.wantField, verr.Field)
		})
	}
}

func TestDueAt(t *testing.T) {
	now := time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	r := validReminder()
	r.IsActive = true
	r.ScheduledTime = past
	assert.True(t, r.DueAt(now))

	r.ScheduledTime = future
	assert.False(t, r.DueAt(now))

	r.ScheduledTime = past
	r.IsSnoozed = true
	r.SnoozeUntil = &future
	assert.False(t, r.DueAt(now), "snoozed into the future")

	r.SnoozeUntil = &past
	assert.True(t, r.DueAt(now), "snooze elapsed")

	r.IsCompleted = true
	assert.False(t, r.DueAt(now))

	r.IsCompleted = false
	r.IsActive = false
	assert.False(t, r.DueAt(now), "soft-deleted reminders are never due")
}

func TestHasRecurrenceBudget(t *testing.T) {
	r := validReminder()
	assert.False(t, r.HasRecurrenceBudget(), "one-shot reminders have no successors")

	r.IsRecurring = true
	r.MaxRecurrences = 0
	assert.True(t, r.HasRecurrenceBudget(), "unbounded recurrence")

	r.MaxRecurrences = 3
	r.RecurrenceCount = 1
	assert.True(t, r.HasRecurrenceBudget())

	r.RecurrenceCount = 2
	assert.False(t, r.HasRecurrenceBudget(), "third instance is the last")
}

func TestSuccessor(t *testing.T) {
	orig := time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)
	next := orig.AddDate(0, 0, 7)

	r := validReminder()
	r.ID = uuid.New()
	r.IsRecurring = true
	r.Pattern = PatternWeekly
	r.Interval = 1
	r.OriginalScheduledTime = orig
	r.RecurrenceCount = 2
	r.Tags = []string{"bills"}
	r.IsSnoozed = true
	r.SnoozeCount = 4
	r.FailureCount = 5

	s := r.Successor(next)
	assert.NotEqual(t, r.ID, s.ID)
	assert.Equal(t, next, s.ScheduledTime)
	assert.Equal(t, orig, s.OriginalScheduledTime)
	assert.Equal(t, 3, s.RecurrenceCount)
	assert.True(t, s.IsActive)
	assert.False(t, s.IsSnoozed, "snooze state does not carry over")
	assert.Zero(t, s.SnoozeCount)
	assert.Zero(t, s.FailureCount, "a fresh occurrence starts with a full delivery budget")
	assert.Empty(t, s.ExecutionHistory)
	assert.Equal(t, r.Tags, s.Tags)
}
