// Package scheduler re-runs scan and render jobs on cron schedules.
package scheduler

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/anstrom/topodraw/internal/logging"
)

var (
	// ErrJobNotFound is returned for ids the scheduler does not know.
	ErrJobNotFound = stderrors.New("job not found")
	// ErrJobRunning is returned when a job is triggered while its previous run
	// has not finished.
	ErrJobRunning = stderrors.New("job is already running")
)

// Func is the work done by a job. It receives the scheduler's context, which
// is canceled on Stop.
type Func func(ctx context.Context) error

// Job is a snapshot of a scheduled job.
type Job struct {
	ID       uuid.UUID
	Name     string
	Schedule string
	LastRun  time.Time
	NextRun  time.Time
	LastErr  error
	Runs     int
	Running  bool
}

type entry struct {
	job      Job
	cronID   cron.EntryID
	schedule cron.Schedule
	fn       Func
}

// Scheduler manages cron-driven jobs.
type Scheduler struct {
	cron    *cron.Cron
	jobs    map[uuid.UUID]*entry
	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *logging.Logger
}

// New creates a stopped scheduler.
func New(logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:   cron.New(),
		jobs:   make(map[uuid.UUID]*entry),
		ctx:    ctx,
		cancel: cancel,
		logger: logger.WithComponent("scheduler"),
	}
}

// Start begins firing jobs on their schedules.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("Scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// Add schedules fn under a standard cron expression or descriptor such as
// "@hourly".
func (s *Scheduler) Add(name, expr string, fn Func) (uuid.UUID, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New()
	e := &entry{
		job: Job{
			ID:       id,
			Name:     name,
			Schedule: expr,
			NextRun:  schedule.Next(time.Now()),
		},
		schedule: schedule,
		fn:       fn,
	}
	e.cronID = s.cron.Schedule(schedule, cron.FuncJob(func() {
		if err := s.execute(id); err != nil && !stderrors.Is(err, ErrJobRunning) {
			s.logger.Error("Scheduled job failed", "job", name, "error", err)
		}
	}))
	s.jobs[id] = e

	s.logger.Info("Added job", "job", name, "schedule", expr)
	return id, nil
}

// Remove unschedules a job. A run in progress is not interrupted.
func (s *Scheduler) Remove(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	s.cron.Remove(e.cronID)
	delete(s.jobs, id)

	s.logger.Info("Removed job", "job", e.job.Name)
	return nil
}

// Jobs returns snapshots of all jobs ordered by name.
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]Job, 0, len(s.jobs))
	for _, e := range s.jobs {
		jobs = append(jobs, e.job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })
	return jobs
}

// Trigger runs a job now, outside its schedule, and returns its error.
func (s *Scheduler) Trigger(id uuid.UUID) error {
	return s.execute(id)
}

func (s *Scheduler) execute(id uuid.UUID) error {
	e, err := s.prepare(id)
	if err != nil {
		return err
	}

	s.logger.Info("Executing job", "job", e.job.Name)
	start := time.Now()
	runErr := e.fn(s.ctx)

	s.mu.Lock()
	e.job.Running = false
	e.job.LastRun = start
	e.job.LastErr = runErr
	e.job.Runs++
	e.job.NextRun = e.schedule.Next(time.Now())
	s.mu.Unlock()

	if runErr == nil {
		s.logger.Info("Job completed", "job", e.job.Name, "duration", time.Since(start))
	}
	return runErr
}

func (s *Scheduler) prepare(id uuid.UUID) (*entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	if e.job.Running {
		s.logger.Warn("Job is already running, skipping", "job", e.job.Name)
		return nil, ErrJobRunning
	}
	e.job.Running = true
	return e, nil
}
