// Package scheduler runs the periodic feed refresh. Jobs are scheduled
// either by cron expression or at a fixed interval; every run gets panic
// recovery, an optional timeout and an overlap policy.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// JobFunc is one scheduled unit of work.
type JobFunc func(ctx context.Context) error

// OverlapPolicy tells what happens when a run fires while the previous one
// is still going.
type OverlapPolicy int

const (
	// AllowOverlap runs jobs concurrently.
	AllowOverlap OverlapPolicy = iota
	// SkipIfRunning drops the new run.
	SkipIfRunning
	// DelayIfRunning waits for the previous run to finish.
	DelayIfRunning
)

// JobOptions tune one job.
type JobOptions struct {
	Name          string
	Timeout       time.Duration
	OverlapPolicy OverlapPolicy
}

type job struct {
	fn      JobFunc
	opts    JobOptions
	running sync.Mutex
}

// cronLogger adapts the cron logger interface onto slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Info(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}

// Scheduler owns the cron runner and any fixed-interval tickers.
type Scheduler struct {
	cron   *cron.Cron
	log    *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a Scheduler bound to the parent context; cancelling the
// parent stops the scheduler.
func New(parent context.Context, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cronLogger{log: log.With("component", "cron")}),
		),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddCronJob schedules a job by cron expression, e.g. "0 */1 * * * *" or
// "@every 30s".
func (s *Scheduler) AddCronJob(schedule string, fn JobFunc, opts JobOptions) (cron.EntryID, error) {
	j := &job{fn: fn, opts: opts}
	id, err := s.cron.AddFunc(schedule, func() { s.run(j) })
	if err != nil {
		return 0, fmt.Errorf("add cron job %q: %w", opts.Name, err)
	}
	s.log.Info("cron job added", "schedule", schedule, "name", opts.Name, "id", id)
	return id, nil
}

// AddTickerJob schedules a job at a fixed interval. The first run happens
// one interval after Start.
func (s *Scheduler) AddTickerJob(interval time.Duration, fn JobFunc, opts JobOptions) {
	j := &job{fn: fn, opts: opts}
	ticker := time.NewTicker(interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.run(j)
			case <-s.ctx.Done():
				return
			}
		}
	}()
	s.log.Info("ticker job added", "interval", interval, "name", opts.Name)
}

// Start begins running scheduled jobs. Safe to call once.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		s.log.Info("scheduler started")
		s.cron.Start()
		go func() {
			<-s.ctx.Done()
			s.stopOnce.Do(s.stop)
		}()
	})
}

// Stop cancels all jobs and waits for in-flight runs to finish, or for the
// given context to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.stopOnce.Do(s.stop)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.log.Warn("scheduler stop deadline exceeded")
		return ctx.Err()
	}
}

func (s *Scheduler) stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) run(j *job) {
	name := j.opts.Name
	if name == "" {
		name = "unnamed"
	}

	switch j.opts.OverlapPolicy {
	case SkipIfRunning:
		if !j.running.TryLock() {
			s.log.Debug("run skipped, previous still going", "name", name)
			return
		}
		defer j.running.Unlock()
	case DelayIfRunning:
		j.running.Lock()
		defer j.running.Unlock()
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("job panicked", "name", name, "panic", r)
		}
	}()

	ctx := s.ctx
	if j.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, j.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := j.fn(ctx)
	if err != nil {
		s.log.Error("job failed", "name", name, "error", err, "duration", time.Since(start))
		return
	}
	s.log.Debug("job done", "name", name, "duration", time.Since(start))
}
