// Package delivery wraps the chat transport with the resilience the scheduler
// relies on: retries with backoff, a circuit breaker, and edit-conflict
// avoidance for reminder cards.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"github.com/jmhodges/clock"
	"github.com/sirupsen/logrus"

	"github.com/hamdan-dev/tazkir/internal/models"
	"github.com/hamdan-dev/tazkir/internal/notifier"
)

// Error is a delivery failure after the gateway exhausted its own resilience.
type Error struct {
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("delivery: %s failure: %v", kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTransient reports whether the scheduler should retry on a later tick.
func IsTransient(err error) bool {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Transient
	}
	return true
}

type Options struct {
	Attempts    int           // attempts within one Deliver call
	BaseDelay   time.Duration // backoff base, doubled per attempt, ±25% jitter
	CallTimeout time.Duration // per network call
}

func (o *Options) withDefaults() {
	if o.Attempts <= 0 {
		o.Attempts = 3
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = time.Second
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 10 * time.Second
	}
}

type editKey struct {
	chatID    int64
	messageID int
}

// Gateway delivers reminder cards through a Notifier, absorbing transient
// transport failures.
type Gateway struct {
	n       notifier.Notifier
	breaker *Breaker
	clk     clock.Clock
	opts    Options

	mu       sync.Mutex
	lastSent map[editKey]uint64 // content hash of the last card per message
}

func NewGateway(n notifier.Notifier, breaker *Breaker, clk clock.Clock, opts Options) *Gateway {
	opts.withDefaults()
	return &Gateway{
		n:        n,
		breaker:  breaker,
		clk:      clk,
		opts:     opts,
		lastSent: make(map[editKey]uint64),
	}
}

// Deliver sends the notification card for one due reminder. It retries
// transient failures with exponential backoff and returns the sent message id
// on success.
func (g *Gateway) Deliver(ctx context.Context, r *models.Reminder, u *models.User) (int, error) {
	text, keyboard := Card(r, u)
	target := notifier.Target{ChatID: r.TargetChatID, Kind: string(r.TargetKind)}

	messageID, err := g.sendWithRetry(ctx, target, text, keyboard)
	if err != nil {
		return 0, err
	}
	g.remember(target.ChatID, messageID, text, keyboard)
	return messageID, nil
}

// UpdateCard edits an already-sent reminder card. Unchanged content is
// skipped without a network call, a "not modified" response counts as
// success, and any other edit failure falls back to sending a fresh message.
// The returned id is the message now showing the card.
func (g *Gateway) UpdateCard(ctx context.Context, target notifier.Target, messageID int, text string, keyboard notifier.Keyboard) (int, error) {
	if g.alreadyShowing(target.ChatID, messageID, text, keyboard) {
		return messageID, nil
	}

	if !g.breaker.Allow() {
		return 0, &Error{Transient: true, Err: ErrCircuitOpen}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.opts.CallTimeout)
	err := g.n.EditMessage(callCtx, target, messageID, text, keyboard)
	cancel()

	switch {
	case err == nil, notifier.IsNotModified(err):
		g.breaker.Success()
		g.remember(target.ChatID, messageID, text, keyboard)
		return messageID, nil
	default:
		g.breaker.Failure()
		logrus.WithFields(logrus.Fields{
			"chat_id":    target.ChatID,
			"message_id": messageID,
		}).Warnf("edit failed, sending a new message instead: %v", err)

		newID, sendErr := g.sendWithRetry(ctx, target, text, keyboard)
		if sendErr != nil {
			return 0, sendErr
		}
		g.remember(target.ChatID, newID, text, keyboard)
		return newID, nil
	}
}

func (g *Gateway) sendWithRetry(ctx context.Context, target notifier.Target, text string, keyboard notifier.Keyboard) (int, error) {
	var lastErr error
	for attempt := 0; attempt < g.opts.Attempts; attempt++ {
		if attempt > 0 {
			g.clk.Sleep(g.backoff(attempt, lastErr))
		}

		if !g.breaker.Allow() {
			return 0, &Error{Transient: true, Err: ErrCircuitOpen}
		}

		callCtx, cancel := context.WithTimeout(ctx, g.opts.CallTimeout)
		messageID, err := g.n.SendMessage(callCtx, target, text, keyboard)
		cancel()

		if err == nil {
			g.breaker.Success()
			return messageID, nil
		}
		g.breaker.Failure()

		if !notifier.IsTransient(err) {
			return 0, &Error{Transient: false, Err: err}
		}
		lastErr = err
	}
	return 0, &Error{Transient: true, Err: lastErr}
}

// backoff doubles the base delay per attempt with ±25% jitter, capped at 16x,
// and never undercuts a rate-limit retry-after.
func (g *Gateway) backoff(attempt int, lastErr error) time.Duration {
	d := g.opts.BaseDelay << (attempt - 1)
	if max := g.opts.BaseDelay * 16; d > max {
		d = max
	}

	jitter := time.Duration(rand.Int63n(int64(d/2) + 1))
	d = d - d/4 + jitter

	if ra := notifier.RetryAfter(lastErr); ra > d {
		d = ra
	}
	return d
}

func (g *Gateway) remember(chatID int64, messageID int, text string, keyboard notifier.Keyboard) {
	g.mu.Lock()
	defer g.mu.Unlock()
	// The cache only needs to cover recently touched cards.
	if len(g.lastSent) > 4096 {
		g.lastSent = make(map[editKey]uint64)
	}
	g.lastSent[editKey{chatID, messageID}] = contentHash(text, keyboard)
}

func (g *Gateway) alreadyShowing(chatID int64, messageID int, text string, keyboard notifier.Keyboard) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	h, ok := g.lastSent[editKey{chatID, messageID}]
	return ok && h == contentHash(text, keyboard)
}

func contentHash(text string, keyboard notifier.Keyboard) uint64 {
	h := fnv.New64a()
	h.Write([]byte(text))
	for _, row := range keyboard {
		for _, b := range row {
			h.Write([]byte{0})
			h.Write([]byte(b.Text))
			h.Write([]byte{0})
			h.Write([]byte(b.Data))
		}
	}
	return h.Sum64()
}
