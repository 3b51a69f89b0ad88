package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	MaxTitleLength   = 200
	MaxMessageLength = 1000

	// HistoryCap bounds the embedded execution history per reminder.
	HistoryCap = 10
)

// Priority affects dispatch ordering within a tick, not timing.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank returns the dispatch ordering weight. Higher dispatches first.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	case PriorityLow:
		return 0
	default:
		return 1
	}
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// RecurrencePattern is the fixed-step recurrence unit.
type RecurrencePattern string

const (
	PatternDaily   RecurrencePattern = "daily"
	PatternWeekly  RecurrencePattern = "weekly"
	PatternMonthly RecurrencePattern = "monthly"
	PatternYearly  RecurrencePattern = "yearly"
)

func (p RecurrencePattern) Valid() bool {
	switch p {
	case PatternDaily, PatternWeekly, PatternMonthly, PatternYearly:
		return true
	}
	return false
}

// TargetKind is the kind of chat a reminder is delivered to.
type TargetKind string

const (
	TargetPrivate TargetKind = "private"
	TargetGroup   TargetKind = "group"
	TargetChannel TargetKind = "channel"
)

// ExecutionOutcome classifies one entry of a reminder's execution history.
type ExecutionOutcome string

const (
	OutcomeSent    ExecutionOutcome = "sent"
	OutcomeFailed  ExecutionOutcome = "failed"
	OutcomeSnoozed ExecutionOutcome = "snoozed"
)

// ExecutionEntry is one record of the per-reminder history log. Purely
// diagnostic; failed attempts are tallied in Reminder.FailureCount because
// the history is capped.
type ExecutionEntry struct {
	Timestamp     time.Time        `json:"timestamp"`
	Outcome       ExecutionOutcome `json:"outcome"`
	Error         string           `json:"error,omitempty"`
	NextExecution *time.Time       `json:"next_execution,omitempty"`
}

type Reminder struct {
	ID     uuid.UUID `json:"reminder_id"`
	UserID int64     `json:"user_id"`

	Title   string `json:"title"`
	Message string `json:"message"`

	ScheduledTime         time.Time `json:"scheduled_time"`
	OriginalScheduledTime time.Time `json:"original_scheduled_time"`
	Timezone              string    `json:"timezone"` // display only, due-checks are UTC-instant based

	IsRecurring     bool              `json:"is_recurring"`
	Pattern         RecurrencePattern `json:"pattern,omitempty"`
	Interval        int               `json:"interval,omitempty"`
	RecurrenceRule  string            `json:"recurrence_rule,omitempty"` // optional RFC 5545 RRULE
	MaxRecurrences  int               `json:"max_recurrences,omitempty"` // 0 = unbounded
	RecurrenceCount int               `json:"recurrence_count"`

	IsActive    bool       `json:"is_active"`
	IsCompleted bool       `json:"is_completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	IsSnoozed   bool       `json:"is_snoozed"`
	SnoozeUntil *time.Time `json:"snooze_until,omitempty"`
	SnoozeCount int        `json:"snooze_count"`

	// FailureCount is the total failed delivery attempts, kept separately
	// from the capped execution history so the abandonment budget works
	// past HistoryCap failures.
	FailureCount int `json:"failure_count"`

	Priority Priority `json:"priority"`
	Category string   `json:"category,omitempty"`
	Tags     []string `json:"tags,omitempty"`

	TargetChatID int64      `json:"target_chat_id"`
	TargetKind   TargetKind `json:"target_kind"`

	ExecutionHistory []ExecutionEntry `json:"execution_history,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the invariants a reminder must satisfy before persistence.
func (r *Reminder) Validate() error {
	if r.Title == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if len([]rune(r.Title)) > MaxTitleLength {
		return &ValidationError{Field: "title", Reason: fmt.Sprintf("must be at most %d characters", MaxTitleLength)}
	}
	if len([]rune(r.Message)) > MaxMessageLength {
		return &ValidationError{Field: "message", Reason: fmt.Sprintf("must be at most %d characters", MaxMessageLength)}
	}
	if r.TargetChatID == 0 {
		return &ValidationError{Field: "target_chat_id", Reason: "must be set"}
	}
	if r.ScheduledTime.IsZero() {
		return &ValidationError{Field: "scheduled_time", Reason: "must be set"}
	}
	if r.Priority != "" && !r.Priority.Valid() {
		return &ValidationError{Field: "priority", Reason: "unknown priority"}
	}
	if r.IsRecurring && r.RecurrenceRule == "" {
		if !r.Pattern.Valid() {
			return &ValidationError{Field: "pattern", Reason: "unknown recurrence pattern"}
		}
		if r.Interval < 1 {
			return &ValidationError{Field: "interval", Reason: "must be at least 1"}
		}
	}
	return nil
}

// DueAt reports whether the reminder is due at the given instant.
func (r *Reminder) DueAt(now time.Time) bool {
	if !r.IsActive || r.IsCompleted {
		return false
	}
	if r.ScheduledTime.After(now) {
		return false
	}
	if r.IsSnoozed && r.SnoozeUntil != nil && r.SnoozeUntil.After(now) {
		return false
	}
	return true
}

// HasRecurrenceBudget reports whether one more occurrence may be spawned
// after this instance fires.
func (r *Reminder) HasRecurrenceBudget() bool {
	if !r.IsRecurring {
		return false
	}
	if r.MaxRecurrences == 0 {
		return true
	}
	return r.RecurrenceCount+1 < r.MaxRecurrences
}

// Successor builds the next occurrence of a recurring reminder that just
// fired. The fired row is never mutated forward; a fresh record preserves the
// original schedule audit and increments the occurrence counter.
func (r *Reminder) Successor(next time.Time) *Reminder {
	tags := make([]string, len(r.Tags))
	copy(tags, r.Tags)
	return &Reminder{
		ID:                    uuid.New(),
		UserID:                r.UserID,
		Title:                 r.Title,
		Message:               r.Message,
		ScheduledTime:         next,
		OriginalScheduledTime: r.OriginalScheduledTime,
		Timezone:              r.Timezone,
		IsRecurring:           true,
		Pattern:               r.Pattern,
		Interval:              r.Interval,
		RecurrenceRule:        r.RecurrenceRule,
		MaxRecurrences:        r.MaxRecurrences,
		RecurrenceCount:       r.RecurrenceCount + 1,
		IsActive:              true,
		Priority:              r.Priority,
		Category:              r.Category,
		Tags:                  tags,
		TargetChatID:          r.TargetChatID,
		TargetKind:            r.TargetKind,
	}
}
