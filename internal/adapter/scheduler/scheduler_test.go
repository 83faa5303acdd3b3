package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitForAtLeast(t *testing.T, counter *int64, expected int64, timeout time.Duration) {
	t.Helper()
	require.Eventually(t, func() bool {
		return atomic.LoadInt64(counter) >= expected
	}, timeout, 10*time.Millisecond, "counter did not reach expected value")
}

func ensureNoIncrement(t *testing.T, counter *int64, baseline int64, duration time.Duration) {
	t.Helper()
	assert.Never(t, func() bool {
		return atomic.LoadInt64(counter) > baseline
	}, duration, 10*time.Millisecond, "counter kept growing after stop")
}

func TestAddCronJob(t *testing.T) {
	s := New(context.Background(), quiet())
	defer func() { _ = s.Stop(context.Background()) }()

	var counter int64
	_, err := s.AddCronJob("@every 100ms", func(ctx context.Context) error {
		atomic.AddInt64(&counter, 1)
		return nil
	}, JobOptions{Name: "cron-test"})
	require.NoError(t, err)

	s.Start()
	waitForAtLeast(t, &counter, 1, 2*time.Second)
}

func TestAddCronJob_InvalidSchedule(t *testing.T) {
	s := New(context.Background(), quiet())
	defer func() { _ = s.Stop(context.Background()) }()

	_, err := s.AddCronJob("not a schedule", func(ctx context.Context) error {
		return nil
	}, JobOptions{Name: "bad"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad")
}

func TestAddTickerJob(t *testing.T) {
	s := New(context.Background(), quiet())
	defer func() { _ = s.Stop(context.Background()) }()

	var counter int64
	s.AddTickerJob(50*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt64(&counter, 1)
		return nil
	}, JobOptions{Name: "ticker-test"})
	s.Start()

	waitForAtLeast(t, &counter, 2, time.Second)
}

func TestJobKeepsRunningAfterError(t *testing.T) {
	s := New(context.Background(), quiet())
	defer func() { _ = s.Stop(context.Background()) }()

	var counter int64
	s.AddTickerJob(50*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt64(&counter, 1)
		return errors.New("boom")
	}, JobOptions{})
	s.Start()

	waitForAtLeast(t, &counter, 2, 2*time.Second)
}

func TestJobKeepsRunningAfterPanic(t *testing.T) {
	s := New(context.Background(), quiet())
	defer func() { _ = s.Stop(context.Background()) }()

	var counter int64
	s.AddTickerJob(50*time.Millisecond, func(ctx context.Context) error {
		if atomic.AddInt64(&counter, 1) == 1 {
			panic("first run explodes")
		}
		return nil
	}, JobOptions{})
	s.Start()

	waitForAtLeast(t, &counter, 2, 2*time.Second)
}

func TestStop(t *testing.T) {
	s := New(context.Background(), quiet())

	var counter int64
	s.AddTickerJob(30*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt64(&counter, 1)
		return nil
	}, JobOptions{})
	s.Start()

	waitForAtLeast(t, &counter, 1, time.Second)
	require.NoError(t, s.Stop(context.Background()))

	baseline := atomic.LoadInt64(&counter)
	ensureNoIncrement(t, &counter, baseline, 200*time.Millisecond)
}

func TestStop_Idempotent(t *testing.T) {
	s := New(context.Background(), quiet())
	s.Start()
	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
}

func TestStop_DeadlineExceeded(t *testing.T) {
	s := New(context.Background(), quiet())

	var started int64
	s.AddTickerJob(30*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt64(&started, 1)
		select {
		case <-time.After(200 * time.Millisecond):
			return nil
		case <-ctx.Done():
			// Slow cleanup keeps the run alive past the stop deadline.
			time.Sleep(100 * time.Millisecond)
			return ctx.Err()
		}
	}, JobOptions{})
	s.Start()

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&started) > 0
	}, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, s.Stop(ctx), context.DeadlineExceeded)
}

func TestParentContextCancelStopsJobs(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	s := New(parent, quiet())

	var counter int64
	s.AddTickerJob(50*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt64(&counter, 1)
		return nil
	}, JobOptions{})
	s.Start()

	waitForAtLeast(t, &counter, 1, time.Second)
	cancel()

	time.Sleep(100 * time.Millisecond)
	baseline := atomic.LoadInt64(&counter)
	ensureNoIncrement(t, &counter, baseline, 200*time.Millisecond)
}

func TestJobTimeout(t *testing.T) {
	s := New(context.Background(), quiet())
	defer func() { _ = s.Stop(context.Background()) }()

	var timedOut int64
	s.AddTickerJob(100*time.Millisecond, func(ctx context.Context) error {
		select {
		case <-time.After(200 * time.Millisecond):
			return nil
		case <-ctx.Done():
			atomic.AddInt64(&timedOut, 1)
			return ctx.Err()
		}
	}, JobOptions{Name: "slow", Timeout: 50 * time.Millisecond})
	s.Start()

	waitForAtLeast(t, &timedOut, 1, 2*time.Second)
}

func TestSkipIfRunning(t *testing.T) {
	s := New(context.Background(), quiet())
	defer func() { _ = s.Stop(context.Background()) }()

	var runs, concurrent int64
	s.AddTickerJob(50*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt64(&runs, 1)
		cur := atomic.AddInt64(&concurrent, 1)
		defer atomic.AddInt64(&concurrent, -1)
		assert.LessOrEqual(t, cur, int64(1), "overlapping runs must be skipped")
		time.Sleep(150 * time.Millisecond)
		return nil
	}, JobOptions{Name: "skip", OverlapPolicy: SkipIfRunning})
	s.Start()

	waitForAtLeast(t, &runs, 1, time.Second)
	time.Sleep(250 * time.Millisecond)

	// With a 50ms interval and 150ms runs, most ticks are dropped.
	require.LessOrEqual(t, atomic.LoadInt64(&runs), int64(4))
}
