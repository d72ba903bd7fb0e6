// Package scheduler runs named periodic tasks on gocron.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	logpkg "github.com/haukened/tempmail-gate/internal/gate/common/log"
)

// Task is one scheduled unit of work. The context is canceled on Shutdown.
type Task func(ctx context.Context) error

// Periodic is the scheduling surface the services depend on.
type Periodic interface {
	Register(name string, every time.Duration, task Task) (bool, error)
	IsRegistered(name string) bool
	Clear(name string) error
	RunNow(name string) error
}

// Scheduler keys gocron jobs by name so registration is idempotent.
type Scheduler struct {
	cron   gocron.Scheduler
	logger logpkg.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	jobs map[string]gocron.Job
}

var newCron = gocron.NewScheduler

// New creates a stopped Scheduler.
func New(logger logpkg.Logger, opts ...gocron.SchedulerOption) (*Scheduler, error) {
	if logger == nil {
		logger = logpkg.NewNoopLogger()
	}
	cron, err := newCron(opts...)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]gocron.Job),
	}, nil
}

// Register schedules task every interval under name. The first run happens
// as soon as the scheduler is running, then once per interval. Registering a
// name that is already scheduled is a no-op and reports false.
func (s *Scheduler) Register(name string, every time.Duration, task Task) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; ok {
		return false, nil
	}
	job, err := s.cron.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(s.run, name, task),
		gocron.WithName(name),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return false, fmt.Errorf("register %s: %w", name, err)
	}
	s.jobs[name] = job
	s.logger.Debug(map[string]any{"job": name, "every": every.String()}, "job registered")
	return true, nil
}

// IsRegistered reports whether name is scheduled.
func (s *Scheduler) IsRegistered(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[name]
	return ok
}

// Clear removes name. Clearing an unknown name is a no-op.
func (s *Scheduler) Clear(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[name]
	if !ok {
		return nil
	}
	delete(s.jobs, name)
	if err := s.cron.RemoveJob(job.ID()); err != nil {
		return fmt.Errorf("clear %s: %w", name, err)
	}
	s.logger.Debug(map[string]any{"job": name}, "job cleared")
	return nil
}

// RunNow triggers name once without changing its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("run %s: job not registered", name)
	}
	return job.RunNow()
}

// Names lists the registered job names in sorted order.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.jobs))
	for n := range s.jobs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// NextRun returns the next scheduled run of name.
func (s *Scheduler) NextRun(name string) (time.Time, error) {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, fmt.Errorf("next run %s: job not registered", name)
	}
	return job.NextRun()
}

// Start begins executing jobs.
func (s *Scheduler) Start() { s.cron.Start() }

// Shutdown cancels running tasks and stops the scheduler.
func (s *Scheduler) Shutdown() error {
	s.cancel()
	return s.cron.Shutdown()
}

func (s *Scheduler) run(name string, task Task) {
	start := time.Now()
	if err := task(s.ctx); err != nil {
		s.logger.Warn(map[string]any{"job": name, "error": err, "elapsed": time.Since(start).String()}, "job failed")
		return
	}
	s.logger.Debug(map[string]any{"job": name, "elapsed": time.Since(start).String()}, "job finished")
}

var _ Periodic = (*Scheduler)(nil)
