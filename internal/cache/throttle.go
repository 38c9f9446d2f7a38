package cache

import (
	"context"
	"sync"
	"time"
)

// Throttle enforces a minimum spacing between calls. It is safe for
// concurrent use; waiters are served one at a time.
type Throttle struct {
	mu       sync.Mutex
	last     time.Time
	interval time.Duration
	maxWait  time.Duration
}

// NewThrottle creates a throttle. maxWait caps a single sleep; zero means
// no cap.
func NewThrottle(interval, maxWait time.Duration) *Throttle {
	return &Throttle{interval: interval, maxWait: maxWait}
}

// Wait blocks until interval has passed since the previous call, then
// records the current time. It returns the time spent waiting, or the
// context error if ctx ends first.
func (t *Throttle) Wait(ctx context.Context) (time.Duration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var wait time.Duration
	if !t.last.IsZero() {
		wait = t.interval - time.Since(t.last)
		if t.maxWait > 0 && wait > t.maxWait {
			wait = t.maxWait
		}
	}
	if wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, ctx.Err()
		case <-timer.C:
		}
	} else {
		wait = 0
	}
	t.last = time.Now()
	return wait, nil
}
