// Package scheduler owns the reminder dispatch loop: polling the store for
// due reminders, delivering them through the gateway, and spawning the next
// occurrence of recurring reminders.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jmhodges/clock"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/hamdan-dev/tazkir/internal/delivery"
	"github.com/hamdan-dev/tazkir/internal/models"
	"github.com/hamdan-dev/tazkir/internal/recurrence"
)

// ReminderStore is the persistence the scheduler drives. All time
// comparisons happen against the instant the scheduler passes in.
type ReminderStore interface {
	Insert(ctx context.Context, r *models.Reminder) error
	FindDue(ctx context.Context, now time.Time) ([]*models.Reminder, error)
	FindUpcoming(ctx context.Context, now, until time.Time) ([]*models.Reminder, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Reminder, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkSnoozed(ctx context.Context, id uuid.UUID, until, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, detail string, at time.Time) error
	SoftDelete(ctx context.Context, id uuid.UUID) (bool, error)
}

// UserDirectory resolves the owning user of a reminder.
type UserDirectory interface {
	Get(ctx context.Context, userID int64) (*models.User, error)
}

// Gateway delivers one reminder to its owner, absorbing transient transport
// failures internally.
type Gateway interface {
	Deliver(ctx context.Context, r *models.Reminder, u *models.User) (int, error)
}

type Options struct {
	PollInterval time.Duration // due-set poll cadence
	Concurrency  int           // dispatches in flight per tick
	MaxAttempts  int           // total failed deliveries before a reminder is abandoned
	TimerHorizon time.Duration // how far ahead timers are re-armed at startup
}

func (o *Options) withDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = time.Minute
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 10
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 10
	}
	if o.TimerHorizon <= 0 {
		o.TimerHorizon = 24 * time.Hour
	}
}

// Stats is a snapshot of the scheduler's running counters.
type Stats struct {
	TotalExecuted     int64
	SuccessCount      int64
	FailureCount      int64
	ActiveTimerCount  int
	LastExecutionTime time.Time
}

// Core is the scheduling engine. Construct once at process start with
// injected dependencies; all state lives on the instance.
type Core struct {
	store   ReminderStore
	users   UserDirectory
	gateway Gateway
	clk     clock.Clock
	opts    Options

	timers   *timerRegistry
	notifyCh chan struct{}

	totalExecuted atomic.Int64
	successCount  atomic.Int64
	failureCount  atomic.Int64

	mu       sync.Mutex
	lastExec time.Time
}

func New(store ReminderStore, users UserDirectory, gateway Gateway, clk clock.Clock, opts Options) *Core {
	opts.withDefaults()
	return &Core{
		store:    store,
		users:    users,
		gateway:  gateway,
		clk:      clk,
		opts:     opts,
		timers:   newTimerRegistry(),
		notifyCh: make(chan struct{}, 1),
	}
}

// Notify triggers an immediate check. Non-blocking if one is already pending.
func (c *Core) Notify() {
	select {
	case c.notifyCh <- struct{}{}:
	default:
	}
}

// Start runs the poll loop until the context is cancelled. Timers for
// upcoming reminders are re-armed first; anything that came due while the
// process was down is caught by the first poll.
func (c *Core) Start(ctx context.Context) {
	logrus.Info("Scheduler started")
	c.rearmTimers(ctx)

	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()
	defer c.timers.StopAll()

	c.check(ctx)

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Scheduler stopped")
			return
		case <-ticker.C:
			c.check(ctx)
		case <-c.notifyCh:
			c.check(ctx)
		}
	}
}

// Schedule validates and persists a new reminder and arms a timer when it
// fires in the future.
func (c *Core) Schedule(ctx context.Context, r *models.Reminder) error {
	if err := c.store.Insert(ctx, r); err != nil {
		return err
	}
	c.armTimer(r.ID, r.ScheduledTime)

	logrus.WithFields(logrus.Fields{
		"reminder_id": r.ID,
		"user_id":     r.UserID,
		"at":          r.ScheduledTime,
	}).Info("Reminder scheduled")
	return nil
}

// Cancel soft-deletes a reminder and disarms its timer. An in-flight
// delivery already dispatched is not aborted; only future dispatches are
// prevented.
func (c *Core) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	c.timers.Cancel(id)
	return c.store.SoftDelete(ctx, id)
}

// Snooze pushes delivery back by d from now and re-arms the timer. The
// snooze-until instant never lies in the past, so d must be positive.
func (c *Core) Snooze(ctx context.Context, id uuid.UUID, d time.Duration) (time.Time, error) {
	if d <= 0 {
		return time.Time{}, fmt.Errorf("snooze duration must be positive, got %s", d)
	}
	now := c.clk.Now()
	until := now.Add(d)
	if err := c.store.MarkSnoozed(ctx, id, until, now); err != nil {
		return time.Time{}, err
	}
	c.armTimer(id, until)
	return until, nil
}

// Complete marks a reminder done on behalf of the user (card button press).
// Idempotent; reports whether this call completed it.
func (c *Core) Complete(ctx context.Context, id uuid.UUID) (bool, error) {
	c.timers.Cancel(id)
	return c.store.MarkCompleted(ctx, id, c.clk.Now())
}

func (c *Core) Stats() Stats {
	c.mu.Lock()
	last := c.lastExec
	c.mu.Unlock()
	return Stats{
		TotalExecuted:     c.totalExecuted.Load(),
		SuccessCount:      c.successCount.Load(),
		FailureCount:      c.failureCount.Load(),
		ActiveTimerCount:  c.timers.Count(),
		LastExecutionTime: last,
	}
}

func (c *Core) armTimer(id uuid.UUID, at time.Time) {
	lead := at.Sub(c.clk.Now())
	if lead <= 0 {
		c.Notify()
		return
	}
	c.timers.Arm(id, lead, c.Notify)
}

func (c *Core) rearmTimers(ctx context.Context) {
	now := c.clk.Now()
	upcoming, err := c.store.FindUpcoming(ctx, now, now.Add(c.opts.TimerHorizon))
	if err != nil {
		logrus.Errorf("Failed to load upcoming reminders for timer re-arm: %v", err)
		return
	}
	for _, r := range upcoming {
		at := r.ScheduledTime
		if r.IsSnoozed && r.SnoozeUntil != nil && r.SnoozeUntil.After(at) {
			at = *r.SnoozeUntil
		}
		c.armTimer(r.ID, at)
	}
	if len(upcoming) > 0 {
		logrus.Infof("Re-armed %d reminder timers", len(upcoming))
	}
}

// check runs one tick: pull the due set and dispatch it with bounded
// concurrency. One reminder's failure never aborts the batch.
func (c *Core) check(ctx context.Context) {
	now := c.clk.Now()
	due, err := c.store.FindDue(ctx, now)
	if err != nil {
		logrus.Errorf("Failed to query due reminders: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for _, r := range due {
		r := r
		g.Go(func() error {
			c.dispatch(gctx, r)
			return nil
		})
	}
	g.Wait()

	c.mu.Lock()
	c.lastExec = c.clk.Now()
	c.mu.Unlock()
}

func (c *Core) dispatch(ctx context.Context, r *models.Reminder) {
	log := logrus.WithFields(logrus.Fields{
		"reminder_id": r.ID,
		"user_id":     r.UserID,
	})
	c.totalExecuted.Add(1)

	user, err := c.users.Get(ctx, r.UserID)
	if err != nil {
		log.Errorf("Failed to resolve reminder owner: %v", err)
		c.failureCount.Add(1)
		return
	}
	if user.IsBanned || !user.IsActive {
		// Permanent skip, not a failure: the owner cannot receive anything.
		log.Warn("Skipping reminder for inactive or banned user")
		if _, err := c.store.SoftDelete(ctx, r.ID); err != nil {
			log.Errorf("Failed to soft-delete skipped reminder: %v", err)
		}
		return
	}

	_, err = c.gateway.Deliver(ctx, r, user)
	if err != nil {
		c.handleFailure(ctx, r, err, log)
		return
	}

	completed, err := c.store.MarkCompleted(ctx, r.ID, c.clk.Now())
	if err != nil {
		log.Errorf("Failed to mark reminder completed: %v", err)
		c.failureCount.Add(1)
		return
	}
	c.successCount.Add(1)
	if !completed {
		// A concurrent writer (timer vs. poll race) got here first; the
		// successor, if any, was already spawned.
		return
	}

	log.Info("Reminder delivered")
	c.spawnSuccessor(ctx, r, log)
}

func (c *Core) handleFailure(ctx context.Context, r *models.Reminder, derr error, log *logrus.Entry) {
	c.failureCount.Add(1)
	now := c.clk.Now()

	if err := c.store.MarkFailed(ctx, r.ID, derr.Error(), now); err != nil {
		log.Errorf("Failed to record delivery failure: %v", err)
	}

	if !delivery.IsTransient(derr) {
		log.Errorf("Permanent delivery failure, dropping reminder: %v", derr)
		if _, err := c.store.SoftDelete(ctx, r.ID); err != nil {
			log.Errorf("Failed to soft-delete undeliverable reminder: %v", err)
		}
		return
	}

	// Transient: the reminder stays active and the next tick retries it,
	// until the total failure budget runs out. The persisted counter, not
	// the capped history, carries the tally.
	failures := r.FailureCount + 1
	if failures >= c.opts.MaxAttempts {
		log.WithField("attempts", failures).Error("Reminder abandoned after exhausting delivery attempts")
		if _, err := c.store.SoftDelete(ctx, r.ID); err != nil {
			log.Errorf("Failed to soft-delete abandoned reminder: %v", err)
		}
		return
	}
	log.Warnf("Transient delivery failure (attempt %d/%d), will retry next tick: %v",
		failures, c.opts.MaxAttempts, derr)
}

// spawnSuccessor creates the next occurrence of a recurring reminder that
// just fired. The fired row is left terminally completed.
func (c *Core) spawnSuccessor(ctx context.Context, r *models.Reminder, log *logrus.Entry) {
	if !r.HasRecurrenceBudget() {
		return
	}

	var next time.Time
	if r.RecurrenceRule != "" {
		n, err := recurrence.NextRule(r.RecurrenceRule, r.OriginalScheduledTime, r.ScheduledTime)
		if err != nil {
			log.Errorf("Failed to compute RRULE successor: %v", err)
			return
		}
		if n == nil {
			return // rule exhausted
		}
		next = *n
	} else {
		n, err := recurrence.Next(r.Pattern, r.Interval, r.ScheduledTime)
		if err != nil {
			log.Errorf("Failed to compute successor occurrence: %v", err)
			return
		}
		next = n
	}

	successor := r.Successor(next)
	if err := c.store.Insert(ctx, successor); err != nil {
		log.Errorf("Failed to insert successor reminder: %v", err)
		return
	}
	c.armTimer(successor.ID, successor.ScheduledTime)
	log.WithFields(logrus.Fields{
		"successor_id": successor.ID,
		"next":         next,
	}).Info("Spawned recurring successor")
}
