package delivery

import (
	"errors"
	"sync"
	"time"

	"github.com/jmhodges/clock"
)

// ErrCircuitOpen is returned without touching the network while the breaker
// cools down. It counts as a transient delivery failure.
var ErrCircuitOpen = errors.New("delivery: circuit breaker open")

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// Breaker is a circuit breaker guarding one downstream dependency. It is
// shared by all concurrent dispatches.
type Breaker struct {
	mu        sync.Mutex
	clk       clock.Clock
	threshold int
	cooldown  time.Duration

	state    breakerState
	failures int
	openedAt time.Time
	trialing bool
}

func NewBreaker(clk clock.Clock, threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		clk:       clk,
		threshold: threshold,
		cooldown:  cooldown,
	}
}

// Allow reports whether a call may proceed. During cool-down every call is
// rejected; once the cool-down elapses exactly one trial call passes through.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true
	case stateOpen:
		if b.clk.Now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.state = stateHalfOpen
		b.trialing = true
		return true
	case stateHalfOpen:
		if b.trialing {
			return false
		}
		b.trialing = true
		return true
	}
	return false
}

// Success records a successful call and closes the breaker.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = stateClosed
	b.failures = 0
	b.trialing = false
}

// Failure records a failed call. Reaching the threshold of consecutive
// failures, or failing the half-open trial, opens the breaker and restarts
// the cool-down.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateHalfOpen:
		b.state = stateOpen
		b.openedAt = b.clk.Now()
		b.trialing = false
	default:
		b.failures++
		if b.failures >= b.threshold {
			b.state = stateOpen
			b.openedAt = b.clk.Now()
		}
	}
}
