// Package clock provides the interruptible sleep used by the polling loops and
// a simulated implementation for tests.
package clock

import (
	"context"
	"sync"
	"time"
)

// Sleeper suspends the caller for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Real sleeps on the wall clock.
type Real struct{}

// Sleep blocks for d. It returns ctx.Err() if ctx is cancelled first.
func (Real) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Fake records sleeps and advances a simulated elapsed time instead of
// blocking. OnSleep, when set, runs after every sleep with the running count.
type Fake struct {
	mu      sync.Mutex
	start   time.Time
	elapsed time.Duration
	sleeps  []time.Duration

	OnSleep func(count int)
}

// NewFake returns a Fake whose Now starts at start.
func NewFake(start time.Time) *Fake {
	return &Fake{start: start}
}

// Sleep records d and advances the simulated clock.
func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	f.elapsed += d
	f.sleeps = append(f.sleeps, d)
	count := len(f.sleeps)
	hook := f.OnSleep
	f.mu.Unlock()

	if hook != nil {
		hook(count)
	}
	return ctx.Err()
}

// Elapsed returns the total simulated time slept.
func (f *Fake) Elapsed() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.elapsed
}

// Sleeps returns a copy of every recorded sleep duration.
func (f *Fake) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.sleeps))
	copy(out, f.sleeps)
	return out
}

// Now returns start plus the simulated elapsed time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.start.Add(f.elapsed)
}
