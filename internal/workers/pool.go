// Package workers runs batches of independent jobs on a fixed number of
// goroutines, with optional retries and rate limiting.
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/anstrom/topodraw/internal/logging"
)

// Job represents a unit of work to be executed by a worker.
type Job interface {
	// Execute performs the job and returns an error if it fails.
	Execute(ctx context.Context) error
	// ID returns a unique identifier for the job.
	ID() string
	// Type returns the job type for logging.
	Type() string
}

// Result represents the result of executing a job.
type Result struct {
	JobID    string
	JobType  string
	Error    error
	Duration time.Duration
	Retries  int
}

// Config holds configuration for the worker pool.
type Config struct {
	// Size is the number of worker goroutines to create.
	Size int
	// MaxRetries is the maximum number of retries for failed jobs.
	MaxRetries int
	// RetryDelay is the delay between retries.
	RetryDelay time.Duration
	// RateLimit is the maximum number of job starts per second (0 = no limit).
	RateLimit int
}

// DefaultConfig returns a default worker pool configuration.
func DefaultConfig() Config {
	return Config{
		Size:       8,
		MaxRetries: 0,
		RetryDelay: 100 * time.Millisecond,
		RateLimit:  0,
	}
}

// Pool executes job batches. A Pool holds no per-batch state, so Run may be
// called concurrently.
type Pool struct {
	config Config
	logger *logging.Logger
}

// New creates a new worker pool with the given configuration.
func New(config Config, logger *logging.Logger) *Pool {
	if config.Size < 1 {
		config.Size = 1
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Pool{config: config, logger: logger.WithComponent("workers")}
}

// Size returns the number of workers per batch.
func (p *Pool) Size() int {
	return p.config.Size
}

type indexedJob struct {
	index int
	job   Job
}

// Run executes jobs and returns their results in job order. It returns once
// every job has finished; jobs not started before ctx is done get ctx.Err()
// as their error.
func (p *Pool) Run(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	var limiter *time.Ticker
	if p.config.RateLimit > 0 {
		limiter = time.NewTicker(time.Second / time.Duration(p.config.RateLimit))
		defer limiter.Stop()
	}

	queue := make(chan indexedJob)
	var wg sync.WaitGroup

	size := p.config.Size
	if size > len(jobs) {
		size = len(jobs)
	}
	for w := 0; w < size; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for ij := range queue {
				results[ij.index] = p.execute(ctx, id, ij.job, limiter)
			}
		}(w)
	}

	for i, job := range jobs {
		select {
		case queue <- indexedJob{index: i, job: job}:
		case <-ctx.Done():
			for j := i; j < len(jobs); j++ {
				results[j] = Result{JobID: jobs[j].ID(), JobType: jobs[j].Type(), Error: ctx.Err()}
			}
			close(queue)
			wg.Wait()
			return results
		}
	}
	close(queue)
	wg.Wait()
	return results
}

// execute runs a single job with retry logic.
func (p *Pool) execute(ctx context.Context, workerID int, job Job, limiter *time.Ticker) Result {
	result := Result{JobID: job.ID(), JobType: job.Type()}
	start := time.Now()

	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			result.Error = err
			break
		}
		if limiter != nil {
			select {
			case <-limiter.C:
			case <-ctx.Done():
				result.Error = ctx.Err()
				return result
			}
		}

		result.Error = job.Execute(ctx)
		result.Retries = attempt
		if result.Error == nil || ctx.Err() != nil {
			break
		}

		if attempt < p.config.MaxRetries {
			p.logger.Debug("Job failed, retrying",
				"job_id", job.ID(),
				"job_type", job.Type(),
				"attempt", attempt+1,
				"max_retries", p.config.MaxRetries,
				"error", result.Error)

			select {
			case <-time.After(p.config.RetryDelay):
			case <-ctx.Done():
				result.Error = ctx.Err()
				result.Duration = time.Since(start)
				return result
			}
		}
	}

	result.Duration = time.Since(start)
	if result.Error != nil {
		p.logger.Debug("Job failed",
			"job_id", job.ID(),
			"job_type", job.Type(),
			"retries", result.Retries,
			"error", result.Error,
			"worker_id", workerID)
	}
	return result
}

// Func adapts a function to the Job interface.
type Func struct {
	JobID   string
	JobType string
	Fn      func(ctx context.Context) error
}

// Execute implements the Job interface.
func (f Func) Execute(ctx context.Context) error {
	return f.Fn(ctx)
}

// ID implements the Job interface.
func (f Func) ID() string {
	return f.JobID
}

// Type implements the Job interface.
func (f Func) Type() string {
	return f.JobType
}
