package scanning

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Ullaakut/nmap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/topodraw/internal/errors"
	"github.com/anstrom/topodraw/internal/logging"
	"github.com/anstrom/topodraw/internal/report"
)

const scanReport = `<?xml version="1.0"?>
<nmaprun scanner="nmap">
<host><status state="up"/>
<address addr="10.0.0.1" addrtype="ipv4"/>
<ports><port protocol="tcp" portid="22"><state state="open"/><service name="ssh" product="OpenSSH" version="9.6"/></port></ports>
</host>
</nmaprun>`

type fakeRecorder struct {
	statuses  []string
	durations int
}

func (f *fakeRecorder) IncrementScansTotal(status string) { f.statuses = append(f.statuses, status) }
func (f *fakeRecorder) RecordScanDuration(time.Duration)  { f.durations++ }

func newTestScanner(cfg Config, exec execFunc, opts ...Option) *Scanner {
	opts = append([]Option{WithLogger(logging.NewDiscard())}, opts...)
	s := NewScanner(cfg, opts...)
	s.exec = exec
	return s
}

func replying(data string, err error) execFunc {
	return func(context.Context, ...nmap.Option) ([]byte, []string, error) {
		if err != nil {
			return nil, nil, err
		}
		return []byte(data), []string{"some warning"}, nil
	}
}

func TestScanProducesParsableReport(t *testing.T) {
	rec := &fakeRecorder{}
	s := newTestScanner(Config{Targets: []string{"10.0.0.1"}}, replying(scanReport, nil), WithRecorder(rec))

	src, err := s.Source(context.Background())
	require.NoError(t, err)

	hosts, err := report.NewParser(report.WithLogger(logging.NewDiscard())).Parse(src)
	require.NoError(t, err)
	require.Len(t, hosts, 1)
	assert.Equal(t, "10.0.0.1", hosts[0].PrimaryAddress())

	assert.Equal(t, []string{"success"}, rec.statuses)
	assert.Equal(t, 1, rec.durations)
}

func TestScanOptions(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want int
	}{
		{"targets only", Config{Targets: []string{"a"}}, 1},
		{"with ports", Config{Targets: []string{"a"}, Ports: "22,80"}, 2},
		{"full", Config{Targets: []string{"a"}, Ports: "1-1000", ServiceDetection: true, OSDetection: true, TraceRoute: true}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got int
			exec := func(_ context.Context, opts ...nmap.Option) ([]byte, []string, error) {
				got = len(opts)
				return []byte(scanReport), nil, nil
			}
			_, err := newTestScanner(tt.cfg, exec).Scan(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScanWithoutTargets(t *testing.T) {
	called := false
	exec := func(context.Context, ...nmap.Option) ([]byte, []string, error) {
		called = true
		return nil, nil, nil
	}

	_, err := newTestScanner(Config{}, exec).Scan(context.Background())
	assert.True(t, errors.IsCode(err, errors.CodeValidation), "got %v", err)
	assert.False(t, called)
}

func TestScanFailure(t *testing.T) {
	rec := &fakeRecorder{}
	s := newTestScanner(Config{Targets: []string{"10.0.0.1"}},
		replying("", fmt.Errorf("nmap: exit status 1")), WithRecorder(rec))

	_, err := s.Scan(context.Background())
	assert.True(t, errors.IsCode(err, errors.CodeScanFailed), "got %v", err)
	assert.Contains(t, err.Error(), "10.0.0.1")
	assert.Equal(t, []string{"error"}, rec.statuses)
}

func TestScanTimeout(t *testing.T) {
	exec := func(ctx context.Context, _ ...nmap.Option) ([]byte, []string, error) {
		<-ctx.Done()
		return nil, nil, ctx.Err()
	}
	s := newTestScanner(Config{Targets: []string{"10.0.0.1"}, Timeout: 10 * time.Millisecond}, exec)

	_, err := s.Scan(context.Background())
	assert.True(t, errors.IsCode(err, errors.CodeTimeout), "got %v", err)
}

func TestScanCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	exec := func(ctx context.Context, _ ...nmap.Option) ([]byte, []string, error) {
		cancel()
		return nil, nil, fmt.Errorf("signal: killed")
	}

	_, err := newTestScanner(Config{Targets: []string{"10.0.0.1"}}, exec).Scan(ctx)
	assert.True(t, errors.IsCode(err, errors.CodeCanceled), "got %v", err)
}

func TestScanHoldsLimiterSlot(t *testing.T) {
	limiter := NewLimiter(1)
	var during int
	exec := func(context.Context, ...nmap.Option) ([]byte, []string, error) {
		during = limiter.Active()
		return []byte(scanReport), nil, nil
	}

	_, err := newTestScanner(Config{Targets: []string{"a"}}, exec, WithLimiter(limiter)).Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, during)
	assert.Equal(t, 0, limiter.Active())
}

func TestScanWaitsForBusyLimiter(t *testing.T) {
	limiter := NewLimiter(1)
	require.True(t, limiter.TryAcquire("other"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newTestScanner(Config{Targets: []string{"a"}}, replying(scanReport, nil), WithLimiter(limiter)).Scan(ctx)
	assert.True(t, errors.IsCode(err, errors.CodeTimeout), "got %v", err)
}
