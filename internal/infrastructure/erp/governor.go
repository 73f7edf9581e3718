package erp

import (
	"context"
	"sync"
	"time"
)

// Governor throttles outgoing calls with a sliding one-minute window. Once
// the configured threshold is reached, Acquire blocks until the oldest call
// falls out of the window. It spends no rate budget itself and never drops a
// caller: callers queue, they do not error.
type Governor struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	calls  []time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGovernor creates a governor allowing limit calls per window.
func NewGovernor(limit int, window time.Duration) *Governor {
	if limit <= 0 {
		limit = DefaultRequestsPerMinute
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Governor{
		limit:  limit,
		window: window,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// Acquire blocks until a call slot is free or ctx is done.
func (g *Governor) Acquire(ctx context.Context) error {
	for {
		wait := g.tryAcquire()
		if wait <= 0 {
			return nil
		}
		if err := g.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// tryAcquire records a call if the window has room, otherwise returns how
// long until the oldest recorded call expires.
func (g *Governor) tryAcquire() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	cutoff := now.Add(-g.window)

	live := g.calls[:0]
	for _, t := range g.calls {
		if t.After(cutoff) {
			live = append(live, t)
		}
	}
	g.calls = live

	if len(g.calls) < g.limit {
		g.calls = append(g.calls, now)
		return 0
	}
	return g.calls[0].Sub(cutoff)
}

// InFlight returns the number of calls currently counted in the window.
func (g *Governor) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := g.now().Add(-g.window)
	count := 0
	for _, t := range g.calls {
		if t.After(cutoff) {
			count++
		}
	}
	return count
}

// sleepContext sleeps for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
