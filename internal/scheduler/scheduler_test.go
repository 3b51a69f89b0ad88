package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmhodges/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamdan-dev/tazkir/internal/delivery"
	"github.com/hamdan-dev/tazkir/internal/models"
)

// memStore is an in-memory ReminderStore honoring the store semantics the
// scheduler relies on: idempotent completion, capped history, due-set
// ordering.
type memStore struct {
	mu        sync.Mutex
	reminders map[uuid.UUID]*models.Reminder
}

func newMemStore() *memStore {
	return &memStore{reminders: make(map[uuid.UUID]*models.Reminder)}
}

func (s *memStore) Insert(ctx context.Context, r *models.Reminder) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Priority == "" {
		r.Priority = models.PriorityNormal
	}
	if r.OriginalScheduledTime.IsZero() {
		r.OriginalScheduledTime = r.ScheduledTime
	}
	r.IsActive = true
	cp := *r
	s.reminders[r.ID] = &cp
	return nil
}

func (s *memStore) FindDue(ctx context.Context, now time.Time) ([]*models.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*models.Reminder
	for _, r := range s.reminders {
		if r.DueAt(now) {
			cp := *r
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].Priority.Rank() != due[j].Priority.Rank() {
			return due[i].Priority.Rank() > due[j].Priority.Rank()
		}
		return due[i].ScheduledTime.Before(due[j].ScheduledTime)
	})
	return due, nil
}

func (s *memStore) FindUpcoming(ctx context.Context, now, until time.Time) ([]*models.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Reminder
	for _, r := range s.reminders {
		if !r.IsActive || r.IsCompleted {
			continue
		}
		at := r.ScheduledTime
		if r.IsSnoozed && r.SnoozeUntil != nil && r.SnoozeUntil.After(at) {
			at = *r.SnoozeUntil
		}
		if at.After(now) && !at.After(until) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) appendHistory(r *models.Reminder, e models.ExecutionEntry) {
	r.ExecutionHistory = append(r.ExecutionHistory, e)
	if len(r.ExecutionHistory) > models.HistoryCap {
		r.ExecutionHistory = r.ExecutionHistory[len(r.ExecutionHistory)-models.HistoryCap:]
	}
}

func (s *memStore) MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok || r.IsCompleted {
		return false, nil
	}
	r.IsCompleted = true
	r.IsActive = false
	r.CompletedAt = &at
	s.appendHistory(r, models.ExecutionEntry{Timestamp: at, Outcome: models.OutcomeSent})
	return true, nil
}

func (s *memStore) MarkSnoozed(ctx context.Context, id uuid.UUID, until, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok || !r.IsActive || r.IsCompleted {
		return errors.New("not found")
	}
	r.IsSnoozed = true
	u := until
	r.SnoozeUntil = &u
	r.SnoozeCount++
	s.appendHistory(r, models.ExecutionEntry{Timestamp: at, Outcome: models.OutcomeSnoozed, NextExecution: &u})
	return nil
}

func (s *memStore) MarkFailed(ctx context.Context, id uuid.UUID, detail string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok {
		return errors.New("not found")
	}
	r.FailureCount++
	s.appendHistory(r, models.ExecutionEntry{Timestamp: at, Outcome: models.OutcomeFailed, Error: detail})
	return nil
}

func (s *memStore) SoftDelete(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok || !r.IsActive {
		return false, nil
	}
	r.IsActive = false
	return true, nil
}

func (s *memStore) all() []*models.Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Reminder
	for _, r := range s.reminders {
		cp := *r
		out = append(out, &cp)
	}
	return out
}

type memDirectory struct {
	users map[int64]*models.User
}

func (d *memDirectory) Get(ctx context.Context, userID int64) (*models.User, error) {
	u, ok := d.users[userID]
	if !ok {
		return nil, errors.New("unknown user")
	}
	return u, nil
}

type fakeGateway struct {
	mu       sync.Mutex
	calls    []uuid.UUID
	failWith error // returned until cleared
}

func (g *fakeGateway) Deliver(ctx context.Context, r *models.Reminder, u *models.User) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, r.ID)
	if g.failWith != nil {
		return 0, g.failWith
	}
	return len(g.calls), nil
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type fixture struct {
	core  *Core
	store *memStore
	gw    *fakeGateway
	clk   clock.FakeClock
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	store := newMemStore()
	dir := &memDirectory{users: map[int64]*models.User{
		7: {UserID: 7, Language: models.LangEnglish, IsActive: true},
		8: {UserID: 8, Language: models.LangArabic, IsActive: true, IsBanned: true},
	}}
	gw := &fakeGateway{}
	clk := clock.NewFake()
	clk.Set(time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC))
	return &fixture{
		core:  New(store, dir, gw, clk, opts),
		store: store,
		gw:    gw,
		clk:   clk,
	}
}

func (f *fixture) newReminder(at time.Time) *models.Reminder {
	return &models.Reminder{
		UserID:        7,
		Title:         "Pay bills",
		ScheduledTime: at,
		TargetChatID:  7,
		TargetKind:    models.TargetPrivate,
	}
}

func TestTickDeliversDueReminder(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	r := f.newReminder(f.clk.Now().Add(time.Second))
	require.NoError(t, f.core.Schedule(ctx, r))

	// Not due yet.
	f.core.check(ctx)
	assert.Zero(t, f.gw.callCount())

	f.clk.Add(2 * time.Second)
	f.core.check(ctx)

	assert.Equal(t, 1, f.gw.callCount())
	got, err := f.store.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, got.IsCompleted)
	assert.False(t, got.IsActive)

	// Completed reminders never dispatch again.
	f.core.check(ctx)
	assert.Equal(t, 1, f.gw.callCount())
}

func TestRecurringSpawnsSuccessor(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	r := f.newReminder(f.clk.Now())
	r.IsRecurring = true
	r.Pattern = models.PatternDaily
	r.Interval = 2
	require.NoError(t, f.core.Schedule(ctx, r))
	fireTime := r.ScheduledTime

	f.core.check(ctx)

	all := f.store.all()
	require.Len(t, all, 2)

	fired, err := f.store.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, fired.IsCompleted)

	var successor *models.Reminder
	for _, x := range all {
		if x.ID != r.ID {
			successor = x
		}
	}
	require.NotNil(t, successor)
	assert.Equal(t, fireTime.AddDate(0, 0, 2), successor.ScheduledTime)
	assert.Equal(t, 1, successor.RecurrenceCount)
	assert.Equal(t, fireTime, successor.OriginalScheduledTime)
	assert.True(t, successor.IsActive)
	assert.False(t, successor.IsCompleted)
}

func TestRecurrenceCountSequence(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	r := f.newReminder(f.clk.Now())
	r.IsRecurring = true
	r.Pattern = models.PatternWeekly
	r.Interval = 1
	require.NoError(t, f.core.Schedule(ctx, r))

	var counts []int
	for i := 0; i < 3; i++ {
		f.core.check(ctx)
		f.clk.Add(7 * 24 * time.Hour)
		for _, x := range f.store.all() {
			if x.IsActive && !x.IsCompleted {
				counts = append(counts, x.RecurrenceCount)
			}
		}
	}

	assert.Equal(t, []int{1, 2, 3}, counts)
	assert.Equal(t, 3, f.gw.callCount())
}

func TestMaxRecurrencesBoundary(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	r := f.newReminder(f.clk.Now())
	r.IsRecurring = true
	r.Pattern = models.PatternDaily
	r.Interval = 1
	r.MaxRecurrences = 3
	require.NoError(t, f.core.Schedule(ctx, r))

	for i := 0; i < 5; i++ {
		f.core.check(ctx)
		f.clk.Add(24 * time.Hour)
	}

	// Exactly 3 fired instances, no fourth.
	assert.Equal(t, 3, f.gw.callCount())
	completed := 0
	for _, x := range f.store.all() {
		if x.IsCompleted {
			completed++
		}
	}
	assert.Equal(t, 3, completed)
	assert.Len(t, f.store.all(), 3)
}

func TestSnoozeRoundTrip(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	r := f.newReminder(f.clk.Now())
	require.NoError(t, f.core.Schedule(ctx, r))

	until, err := f.core.Snooze(ctx, r.ID, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, f.clk.Now().Add(15*time.Minute), until)

	got, err := f.store.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, got.IsSnoozed)
	assert.Equal(t, 1, got.SnoozeCount)

	// Excluded from the due set until the snooze elapses.
	f.core.check(ctx)
	assert.Zero(t, f.gw.callCount())

	f.clk.Add(15 * time.Minute)
	f.core.check(ctx)
	assert.Equal(t, 1, f.gw.callCount())
}

func TestSnoozeRejectsNonPositiveDuration(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	r := f.newReminder(f.clk.Now().Add(time.Hour))
	require.NoError(t, f.core.Schedule(ctx, r))

	for _, d := range []time.Duration{0, -time.Minute} {
		_, err := f.core.Snooze(ctx, r.ID, d)
		assert.Error(t, err)
	}

	got, err := f.store.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, got.IsSnoozed, "rejected snooze must not touch the reminder")
	assert.Zero(t, got.SnoozeCount)
}

func TestBannedUserIsPermanentSkip(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	r := f.newReminder(f.clk.Now())
	r.UserID = 8 // banned
	require.NoError(t, f.core.Schedule(ctx, r))

	f.core.check(ctx)
	f.core.check(ctx)

	assert.Zero(t, f.gw.callCount(), "banned users receive nothing")
	got, err := f.store.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive, "skipped reminder leaves the due set for good")
	assert.False(t, got.IsCompleted)
}

func TestTransientFailureRetriesNextTick(t *testing.T) {
	f := newFixture(t, Options{MaxAttempts: 3})
	ctx := context.Background()

	r := f.newReminder(f.clk.Now())
	require.NoError(t, f.core.Schedule(ctx, r))

	f.gw.failWith = &delivery.Error{Transient: true, Err: errors.New("bad gateway")}
	f.core.check(ctx)

	got, err := f.store.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive, "transient failure keeps the reminder active")
	assert.Equal(t, 1, got.FailureCount)

	// Recovery on a later tick.
	f.gw.failWith = nil
	f.core.check(ctx)
	got, err = f.store.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, got.IsCompleted)
	assert.Equal(t, 2, f.gw.callCount())
}

func TestTransientFailureAbandonedAtMaxAttempts(t *testing.T) {
	f := newFixture(t, Options{MaxAttempts: 2})
	ctx := context.Background()

	r := f.newReminder(f.clk.Now())
	require.NoError(t, f.core.Schedule(ctx, r))

	f.gw.failWith = &delivery.Error{Transient: true, Err: errors.New("bad gateway")}
	f.core.check(ctx)
	f.core.check(ctx)
	f.core.check(ctx)

	assert.Equal(t, 2, f.gw.callCount(), "abandoned reminders stop dispatching")
	got, err := f.store.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.False(t, got.IsCompleted)
	assert.Equal(t, 2, got.FailureCount, "the counter keeps the failure trail for diagnosis")
}

func TestAbandonmentBudgetOutlivesHistoryCap(t *testing.T) {
	// A budget larger than the history cap must still be reachable: the
	// counter keeps growing after the history starts dropping old entries.
	maxAttempts := models.HistoryCap + 2
	f := newFixture(t, Options{MaxAttempts: maxAttempts})
	ctx := context.Background()

	r := f.newReminder(f.clk.Now())
	require.NoError(t, f.core.Schedule(ctx, r))

	f.gw.failWith = &delivery.Error{Transient: true, Err: errors.New("bad gateway")}
	for i := 0; i < maxAttempts+5; i++ {
		f.core.check(ctx)
	}

	assert.Equal(t, maxAttempts, f.gw.callCount(), "dispatch stops once the budget is spent")
	got, err := f.store.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, maxAttempts, got.FailureCount)
	assert.Len(t, got.ExecutionHistory, models.HistoryCap, "history stays capped while the counter runs on")
}

func TestPermanentFailureDropsReminder(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	r := f.newReminder(f.clk.Now())
	require.NoError(t, f.core.Schedule(ctx, r))

	f.gw.failWith = &delivery.Error{Transient: false, Err: errors.New("bot was blocked by the user")}
	f.core.check(ctx)
	f.core.check(ctx)

	assert.Equal(t, 1, f.gw.callCount(), "permanent failures are not retried")
	got, err := f.store.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, 1, got.FailureCount)
}

func TestCompleteIsIdempotent(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	r := f.newReminder(f.clk.Now().Add(time.Hour))
	require.NoError(t, f.core.Schedule(ctx, r))

	first, err := f.core.Complete(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := f.core.Complete(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, second)

	got, err := f.store.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, got.ExecutionHistory, 1, "double completion must not duplicate history")
}

func TestCancelDisarmsTimerAndDeletes(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	r := f.newReminder(f.clk.Now().Add(time.Hour))
	require.NoError(t, f.core.Schedule(ctx, r))
	assert.Equal(t, 1, f.core.Stats().ActiveTimerCount)

	ok, err := f.core.Cancel(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, f.core.Stats().ActiveTimerCount)

	f.clk.Add(2 * time.Hour)
	f.core.check(ctx)
	assert.Zero(t, f.gw.callCount())
}

func TestDispatchOrderRespectsPriority(t *testing.T) {
	f := newFixture(t, Options{Concurrency: 1})
	ctx := context.Background()

	older := f.newReminder(f.clk.Now().Add(-time.Hour))
	older.Priority = models.PriorityLow
	older.Title = "older low"
	require.NoError(t, f.core.Schedule(ctx, older))

	urgent := f.newReminder(f.clk.Now())
	urgent.Priority = models.PriorityUrgent
	urgent.Title = "fresh urgent"
	require.NoError(t, f.core.Schedule(ctx, urgent))

	f.core.check(ctx)

	require.Equal(t, 2, f.gw.callCount())
	assert.Equal(t, urgent.ID, f.gw.calls[0], "urgent dispatches before older low-priority")
	assert.Equal(t, older.ID, f.gw.calls[1])
}

func TestStats(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	ok := f.newReminder(f.clk.Now())
	require.NoError(t, f.core.Schedule(ctx, ok))
	f.core.check(ctx)

	failing := f.newReminder(f.clk.Now())
	require.NoError(t, f.core.Schedule(ctx, failing))
	f.gw.failWith = &delivery.Error{Transient: true, Err: errors.New("boom")}
	f.core.check(ctx)

	stats := f.core.Stats()
	assert.Equal(t, int64(2), stats.TotalExecuted)
	assert.Equal(t, int64(1), stats.SuccessCount)
	assert.Equal(t, int64(1), stats.FailureCount)
	assert.Equal(t, f.clk.Now(), stats.LastExecutionTime)
}
