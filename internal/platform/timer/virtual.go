package timer

import (
	"context"
	"sync"
	"time"
)

// Virtual is a Timer whose clock moves only when an external driver calls
// Advance. It models the single-threaded cooperative runtime where timers
// are fired from outside the program: every suspension parks on a channel
// that the driving side completes, and an abandoned operation is released
// through context cancellation rather than by running to completion.
type Virtual struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*waiter
}

type waiter struct {
	at time.Time
	ch chan time.Time
}

// NewVirtual returns a Virtual timer starting at the Unix epoch.
func NewVirtual() *Virtual {
	return &Virtual{now: time.Unix(0, 0).UTC()}
}

// Now returns the current virtual time.
func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

// After returns a channel that fires once the virtual clock has advanced by
// at least d. A non-positive d fires immediately.
func (v *Virtual) After(d time.Duration) <-chan time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- v.now
		return ch
	}
	v.waiters = append(v.waiters, &waiter{at: v.now.Add(d), ch: ch})
	return ch
}

// Sleep parks until the clock advances past d or the context is cancelled.
func (v *Virtual) Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-v.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Advance moves the virtual clock forward by d and fires every waiter whose
// deadline has been reached, in deadline order.
func (v *Virtual) Advance(d time.Duration) {
	v.mu.Lock()
	v.now = v.now.Add(d)
	now := v.now
	var due, rest []*waiter
	for _, w := range v.waiters {
		if w.at.After(now) {
			rest = append(rest, w)
			continue
		}
		due = append(due, w)
	}
	v.waiters = rest
	v.mu.Unlock()

	sortWaiters(due)
	for _, w := range due {
		w.ch <- now
	}
}

// Waiting reports how many suspensions are currently parked on the clock.
func (v *Virtual) Waiting() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.waiters)
}

func sortWaiters(ws []*waiter) {
	// Insertion sort; waiter counts are tiny.
	for i := 1; i < len(ws); i++ {
		for j := i; j > 0 && ws[j].at.Before(ws[j-1].at); j-- {
			ws[j], ws[j-1] = ws[j-1], ws[j]
		}
	}
}
