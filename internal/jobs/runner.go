// Package jobs schedules background maintenance such as the link sweep.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/robfig/cron"
)

// Job is a named unit of background work.
type Job interface {
	Name() string
	Run(ctx context.Context)
}

// CronJob is a Job with a cron schedule such as "@every 5m".
type CronJob interface {
	Job
	Schedule() string
}

// Runner runs cron jobs and on-demand triggers. A job never overlaps with
// itself: a tick or trigger that arrives while it is running is dropped.
type Runner struct {
	cron    *cron.Cron
	jobs    map[string]Job
	logger  *slog.Logger
	mu      sync.Mutex
	running mapset.Set[string]
	wg      sync.WaitGroup
}

// NewRunner registers jobs with the scheduler. Jobs implementing CronJob
// are scheduled; all jobs can be started with Trigger.
func NewRunner(logger *slog.Logger, jobs ...Job) (*Runner, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Runner{
		cron:    cron.New(),
		jobs:    make(map[string]Job, len(jobs)),
		logger:  logger.With(slog.String("component", "jobs")),
		running: mapset.NewSet[string](),
	}
	for _, job := range jobs {
		if _, dup := r.jobs[job.Name()]; dup {
			return nil, fmt.Errorf("duplicate job %q", job.Name())
		}
		r.jobs[job.Name()] = job
	}
	return r, nil
}

// Run starts the schedule and blocks until ctx is cancelled. Jobs still in
// flight are waited for before Run returns.
func (r *Runner) Run(ctx context.Context) error {
	for _, job := range r.jobs {
		cj, ok := job.(CronJob)
		if !ok {
			continue
		}
		if err := r.cron.AddFunc(cj.Schedule(), func() { r.run(ctx, cj) }); err != nil {
			return fmt.Errorf("schedule %s: %w", cj.Name(), err)
		}
		r.logger.Info("job scheduled",
			slog.String("job", cj.Name()),
			slog.String("schedule", cj.Schedule()))
	}

	r.cron.Start()
	<-ctx.Done()
	r.cron.Stop()
	r.wg.Wait()
	r.logger.Info("jobs stopped")
	return nil
}

// Trigger runs the named job in the background. It reports false when the
// job is unknown or already running.
func (r *Runner) Trigger(ctx context.Context, name string) bool {
	job, ok := r.jobs[name]
	if !ok {
		return false
	}
	if !r.acquire(name) {
		return false
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.release(name)
		job.Run(ctx)
	}()
	return true
}

// Running reports whether the named job is in flight.
func (r *Runner) Running(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running.Contains(name)
}

func (r *Runner) run(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}
	if !r.acquire(job.Name()) {
		r.logger.Warn("job already running", slog.String("job", job.Name()))
		return
	}
	r.wg.Add(1)
	defer r.wg.Done()
	defer r.release(job.Name())
	job.Run(ctx)
}

func (r *Runner) acquire(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running.Contains(name) {
		return false
	}
	r.running.Add(name)
	return true
}

func (r *Runner) release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running.Remove(name)
}
