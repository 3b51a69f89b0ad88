package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hamdan-dev/tazkir/internal/database"
	"github.com/hamdan-dev/tazkir/internal/models"
)

const reminderColumns = `reminder_id, user_id, title, message,
	scheduled_time, original_scheduled_time, timezone,
	is_recurring, pattern, recur_interval, recurrence_rule, max_recurrences, recurrence_count,
	is_active, is_completed, completed_at, is_snoozed, snooze_until, snooze_count, failure_count,
	priority, category, tags, target_chat_id, target_kind, execution_history, created_at`

// historyAppend appends one entry to the embedded history inside the same
// UPDATE, dropping the oldest entry once the cap is reached.
const historyAppend = `(CASE WHEN jsonb_array_length(execution_history) >= ` + historyCapSQL + `
	THEN execution_history - 0 ELSE execution_history END) || `

const historyCapSQL = "10"

type ReminderRepository struct {
	db *database.DB
}

func NewReminderRepository(db *database.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

// Insert validates and persists a new reminder. The id is assigned here when
// the caller left it zero.
func (r *ReminderRepository) Insert(ctx context.Context, reminder *models.Reminder) error {
	if err := reminder.Validate(); err != nil {
		return err
	}
	if reminder.ID == uuid.Nil {
		reminder.ID = uuid.New()
	}
	if reminder.Priority == "" {
		reminder.Priority = models.PriorityNormal
	}
	if reminder.OriginalScheduledTime.IsZero() {
		reminder.OriginalScheduledTime = reminder.ScheduledTime
	}
	if reminder.Tags == nil {
		reminder.Tags = []string{}
	}

	history, err := json.Marshal(reminder.ExecutionHistory)
	if err != nil {
		return fmt.Errorf("failed to marshal execution history: %w", err)
	}
	if reminder.ExecutionHistory == nil {
		history = []byte("[]")
	}

	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO reminders (reminder_id, user_id, title, message,
			scheduled_time, original_scheduled_time, timezone,
			is_recurring, pattern, recur_interval, recurrence_rule, max_recurrences, recurrence_count,
			is_active, priority, category, tags, target_chat_id, target_kind, execution_history)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		 RETURNING created_at`,
		reminder.ID, reminder.UserID, reminder.Title, reminder.Message,
		reminder.ScheduledTime, reminder.OriginalScheduledTime, reminder.Timezone,
		reminder.IsRecurring, string(reminder.Pattern), reminder.Interval, reminder.RecurrenceRule,
		reminder.MaxRecurrences, reminder.RecurrenceCount,
		true, string(reminder.Priority), reminder.Category, reminder.Tags,
		reminder.TargetChatID, string(reminder.TargetKind), history,
	).Scan(&reminder.CreatedAt)
}

// FindDue returns every active, incomplete reminder whose scheduled time (and
// snooze time, if snoozed) has passed, urgent first, oldest first within the
// same priority.
func (r *ReminderRepository) FindDue(ctx context.Context, now time.Time) ([]*models.Reminder, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+reminderColumns+`
		 FROM reminders
		 WHERE is_active = TRUE AND is_completed = FALSE
		   AND scheduled_time <= $1
		   AND (is_snoozed = FALSE OR snooze_until <= $1)
		 ORDER BY CASE priority
				WHEN 'urgent' THEN 3
				WHEN 'high' THEN 2
				WHEN 'normal' THEN 1
				ELSE 0 END DESC,
			scheduled_time ASC`,
		now,
	)
	if err != nil {
		return nil, err
	}
	return scanReminders(rows)
}

// FindUpcoming returns active reminders that fire within (now, until]; used
// to re-arm in-process timers after a restart.
func (r *ReminderRepository) FindUpcoming(ctx context.Context, now, until time.Time) ([]*models.Reminder, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+reminderColumns+`
		 FROM reminders
		 WHERE is_active = TRUE AND is_completed = FALSE
		   AND GREATEST(scheduled_time, COALESCE(snooze_until, scheduled_time)) > $1
		   AND GREATEST(scheduled_time, COALESCE(snooze_until, scheduled_time)) <= $2
		 ORDER BY scheduled_time ASC`,
		now, until,
	)
	if err != nil {
		return nil, err
	}
	return scanReminders(rows)
}

func (r *ReminderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Reminder, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE reminder_id = $1`, id)
	return scanReminder(row)
}

// ListByUser returns the user's active reminders, soonest first.
func (r *ReminderRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Reminder, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+reminderColumns+`
		 FROM reminders
		 WHERE user_id = $1 AND is_active = TRUE AND is_completed = FALSE
		 ORDER BY scheduled_time ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	return scanReminders(rows)
}

// MarkCompleted completes a reminder. Idempotent: the guard on is_completed
// means a second writer is a no-op, reported by the false return.
func (r *ReminderRepository) MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	entry, err := historyEntry(models.ExecutionEntry{Timestamp: at, Outcome: models.OutcomeSent})
	if err != nil {
		return false, err
	}

	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE reminders
		 SET is_completed = TRUE, completed_at = $2, is_active = FALSE,
		     execution_history = `+historyAppend+`$3::jsonb
		 WHERE reminder_id = $1 AND is_completed = FALSE`,
		id, at, entry,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkSnoozed reschedules delivery to the given instant and records the
// snooze in the history.
func (r *ReminderRepository) MarkSnoozed(ctx context.Context, id uuid.UUID, until, at time.Time) error {
	entry, err := historyEntry(models.ExecutionEntry{Timestamp: at, Outcome: models.OutcomeSnoozed, NextExecution: &until})
	if err != nil {
		return err
	}

	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE reminders
		 SET is_snoozed = TRUE, snooze_until = $2, snooze_count = snooze_count + 1,
		     execution_history = `+historyAppend+`$3::jsonb
		 WHERE reminder_id = $1 AND is_active = TRUE AND is_completed = FALSE`,
		id, until, entry,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// MarkFailed records a failed delivery attempt. The counter is the source of
// truth for the abandonment budget; the history entry is diagnostic and may
// be dropped by the cap. The reminder stays active so the next poll tick
// retries it; abandonment is the scheduler's decision.
func (r *ReminderRepository) MarkFailed(ctx context.Context, id uuid.UUID, detail string, at time.Time) error {
	entry, err := historyEntry(models.ExecutionEntry{Timestamp: at, Outcome: models.OutcomeFailed, Error: detail})
	if err != nil {
		return err
	}

	_, err = r.db.Pool.Exec(ctx,
		`UPDATE reminders
		 SET failure_count = failure_count + 1,
		     execution_history = `+historyAppend+`$2::jsonb
		 WHERE reminder_id = $1 AND is_completed = FALSE`,
		id, entry,
	)
	return err
}

// SoftDelete deactivates a reminder, excluding it from all future due
// queries. There is no un-delete path.
func (r *ReminderRepository) SoftDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE reminders SET is_active = FALSE WHERE reminder_id = $1 AND is_active = TRUE`,
		id,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// AppendHistory adds a diagnostic entry, keeping the newest entries up to the
// cap.
func (r *ReminderRepository) AppendHistory(ctx context.Context, id uuid.UUID, e models.ExecutionEntry) error {
	entry, err := historyEntry(e)
	if err != nil {
		return err
	}
	_, err = r.db.Pool.Exec(ctx,
		`UPDATE reminders SET execution_history = `+historyAppend+`$2::jsonb WHERE reminder_id = $1`,
		id, entry,
	)
	return err
}

func historyEntry(e models.ExecutionEntry) ([]byte, error) {
	b, err := json.Marshal([]models.ExecutionEntry{e})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal history entry: %w", err)
	}
	return b, nil
}

func scanReminders(rows pgx.Rows) ([]*models.Reminder, error) {
	defer rows.Close()

	var reminders []*models.Reminder
	for rows.Next() {
		reminder, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, reminder)
	}
	return reminders, rows.Err()
}

func scanReminder(row pgx.Row) (*models.Reminder, error) {
	reminder := &models.Reminder{}
	var history []byte
	err := row.Scan(
		&reminder.ID, &reminder.UserID, &reminder.Title, &reminder.Message,
		&reminder.ScheduledTime, &reminder.OriginalScheduledTime, &reminder.Timezone,
		&reminder.IsRecurring, &reminder.Pattern, &reminder.Interval, &reminder.RecurrenceRule,
		&reminder.MaxRecurrences, &reminder.RecurrenceCount,
		&reminder.IsActive, &reminder.IsCompleted, &reminder.CompletedAt,
		&reminder.IsSnoozed, &reminder.SnoozeUntil, &reminder.SnoozeCount, &reminder.FailureCount,
		&reminder.Priority, &reminder.Category, &reminder.Tags,
		&reminder.TargetChatID, &reminder.TargetKind, &history, &reminder.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &reminder.ExecutionHistory); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution history: %w", err)
		}
	}
	return reminder, nil
}
