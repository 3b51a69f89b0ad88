package scheduler

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// timerRegistry holds one cancellable in-process timer per reminder scheduled
// with positive lead time. Timers are a latency optimization only: they are
// not persisted, and after a restart the poll loop re-discovers anything that
// came due in the meantime.
type timerRegistry struct {
	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer
}

func newTimerRegistry() *timerRegistry {
	return &timerRegistry{timers: make(map[uuid.UUID]*time.Timer)}
}

// Arm schedules fire after d, replacing any timer already armed for the id.
// The timer removes itself from the registry before firing.
func (t *timerRegistry) Arm(id uuid.UUID, d time.Duration, fire func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.timers[id]; ok {
		old.Stop()
	}
	t.timers[id] = time.AfterFunc(d, func() {
		t.remove(id)
		fire()
	})
}

// Cancel stops and removes the timer for id, if one is armed. A timer that
// already fired may still race the poll path; the store's idempotent
// completion makes the second dispatch a no-op.
func (t *timerRegistry) Cancel(id uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	timer, ok := t.timers[id]
	if !ok {
		return false
	}
	timer.Stop()
	delete(t.timers, id)
	return true
}

func (t *timerRegistry) remove(id uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.timers, id)
}

func (t *timerRegistry) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}

// StopAll cancels every armed timer; used on shutdown.
func (t *timerRegistry) StopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}
