// Package timer provides the suspension primitives shared by the two
// scheduling models the feeder runs under: wall-clock time on the native
// multithreaded runtime, and virtual time driven by an external ticker on
// the single-threaded sandboxed runtime. Both implementations honor the
// same contract, so code built on Timer never branches on the runtime.
package timer

import (
	"context"
	"time"
)

// Timer abstracts the clock and timed suspension. Implementations must
// guarantee that Sleep returns only after the duration elapsed (or the
// context was cancelled) and that channels from After fire exactly once.
type Timer interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	// Sleep suspends the caller for d. It returns the context error if the
	// context is cancelled first, nil otherwise.
	Sleep(ctx context.Context, d time.Duration) error
}

type wallTimer struct{}

// Wall returns the Timer backed by the real clock.
func Wall() Timer { return wallTimer{} }

func (wallTimer) Now() time.Time { return time.Now() }

func (wallTimer) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (wallTimer) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
