package workers

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/topodraw/internal/logging"
)

// MockJob implements the Job interface for testing
type MockJob struct {
	id       string
	duration time.Duration
	failures int32
	executed int32
}

func (m *MockJob) Execute(ctx context.Context) error {
	n := atomic.AddInt32(&m.executed, 1)
	if m.duration > 0 {
		select {
		case <-time.After(m.duration):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if n <= m.failures {
		return fmt.Errorf("attempt %d failed", n)
	}
	return nil
}

func (m *MockJob) ID() string   { return m.id }
func (m *MockJob) Type() string { return "mock" }

func (m *MockJob) ExecutedCount() int32 {
	return atomic.LoadInt32(&m.executed)
}

func newPool(cfg Config) *Pool {
	return New(cfg, logging.NewDiscard())
}

func TestNewPoolNormalizesConfig(t *testing.T) {
	pool := newPool(Config{Size: 0, MaxRetries: -1})
	assert.Equal(t, 1, pool.Size())
	assert.Equal(t, 0, pool.config.MaxRetries)

	assert.Equal(t, 8, newPool(DefaultConfig()).Size())
}

func TestRunKeepsJobOrder(t *testing.T) {
	pool := newPool(Config{Size: 4})

	jobs := make([]Job, 20)
	for i := range jobs {
		// Later jobs finish first.
		jobs[i] = &MockJob{id: fmt.Sprintf("job-%d", i), duration: time.Duration(20-i) * time.Millisecond}
	}

	results := pool.Run(context.Background(), jobs)

	require.Len(t, results, len(jobs))
	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("job-%d", i), r.JobID)
		assert.Equal(t, "mock", r.JobType)
		assert.NoError(t, r.Error)
	}
}

func TestRunIsConcurrent(t *testing.T) {
	pool := newPool(Config{Size: 5})
	jobs := make([]Job, 5)
	for i := range jobs {
		jobs[i] = &MockJob{id: fmt.Sprintf("job-%d", i), duration: 100 * time.Millisecond}
	}

	start := time.Now()
	pool.Run(context.Background(), jobs)

	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestRunRetries(t *testing.T) {
	pool := newPool(Config{Size: 1, MaxRetries: 2, RetryDelay: time.Millisecond})

	flaky := &MockJob{id: "flaky", failures: 2}
	broken := &MockJob{id: "broken", failures: 10}
	results := pool.Run(context.Background(), []Job{flaky, broken})

	assert.NoError(t, results[0].Error)
	assert.Equal(t, 2, results[0].Retries)
	assert.Equal(t, int32(3), flaky.ExecutedCount())

	assert.Error(t, results[1].Error)
	assert.Equal(t, int32(3), broken.ExecutedCount())
}

func TestRunCanceled(t *testing.T) {
	pool := newPool(Config{Size: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jobs := []Job{&MockJob{id: "a", duration: time.Second}, &MockJob{id: "b"}, &MockJob{id: "c"}}
	results := pool.Run(ctx, jobs)

	require.Len(t, results, 3)
	for _, r := range results {
		assert.True(t, errors.Is(r.Error, context.Canceled), "job %s: %v", r.JobID, r.Error)
	}
}

func TestRunRateLimit(t *testing.T) {
	pool := newPool(Config{Size: 4, RateLimit: 50})
	jobs := make([]Job, 5)
	for i := range jobs {
		jobs[i] = &MockJob{id: fmt.Sprintf("job-%d", i)}
	}

	start := time.Now()
	pool.Run(context.Background(), jobs)

	// Five starts at 50/s take at least four intervals after the first tick.
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestRunEmpty(t *testing.T) {
	assert.Empty(t, newPool(DefaultConfig()).Run(context.Background(), nil))
}

func TestFunc(t *testing.T) {
	called := false
	job := Func{JobID: "f", JobType: "lookup", Fn: func(context.Context) error {
		called = true
		return nil
	}}

	results := newPool(DefaultConfig()).Run(context.Background(), []Job{job})

	assert.True(t, called)
	assert.Equal(t, "lookup", results[0].JobType)
}
