// Package scanning runs nmap against live targets and hands the XML report
// to the topology pipeline.
package scanning

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"strings"
	"time"

	"github.com/Ullaakut/nmap/v3"
	"github.com/google/uuid"

	"github.com/anstrom/topodraw/internal/errors"
	"github.com/anstrom/topodraw/internal/logging"
	"github.com/anstrom/topodraw/internal/report"
)

// Config selects what nmap probes. Service detection and traceroute feed the
// service tables and the hop-distance clusters respectively.
type Config struct {
	Targets          []string
	Ports            string
	ServiceDetection bool
	OSDetection      bool
	TraceRoute       bool
	Timeout          time.Duration
}

// Recorder receives the outcome of each scan.
type Recorder interface {
	IncrementScansTotal(status string)
	RecordScanDuration(d time.Duration)
}

type execFunc func(ctx context.Context, opts ...nmap.Option) ([]byte, []string, error)

// Scanner runs nmap with a fixed configuration.
type Scanner struct {
	config   Config
	logger   *logging.Logger
	recorder Recorder
	limiter  *Limiter
	exec     execFunc
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets the scanner's logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// WithRecorder reports scan counts and durations to r.
func WithRecorder(r Recorder) Option {
	return func(s *Scanner) { s.recorder = r }
}

// WithLimiter makes every scan hold a slot of l while nmap runs.
func WithLimiter(l *Limiter) Option {
	return func(s *Scanner) { s.limiter = l }
}

// NewScanner creates a scanner for cfg.
func NewScanner(cfg Config, opts ...Option) *Scanner {
	s := &Scanner{
		config: cfg,
		logger: logging.Default().WithComponent("scanner"),
		exec:   runNmap,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// runNmap executes nmap and returns its raw XML report and warnings.
func runNmap(ctx context.Context, opts ...nmap.Option) ([]byte, []string, error) {
	scanner, err := nmap.NewScanner(ctx, opts...)
	if err != nil {
		return nil, nil, err
	}

	result, warnings, err := scanner.Run()
	var warns []string
	if warnings != nil {
		warns = *warnings
	}
	if err != nil {
		return nil, warns, err
	}

	data, err := io.ReadAll(result.ToReader())
	return data, warns, err
}

// options builds the nmap arguments for the configured scan.
func (s *Scanner) options() []nmap.Option {
	options := []nmap.Option{nmap.WithTargets(s.config.Targets...)}

	if s.config.Ports != "" {
		options = append(options, nmap.WithPorts(s.config.Ports))
	}
	if s.config.ServiceDetection {
		options = append(options, nmap.WithServiceInfo())
	}
	if s.config.OSDetection {
		options = append(options, nmap.WithOSDetection())
	}
	if s.config.TraceRoute {
		options = append(options, nmap.WithTraceRoute())
	}
	return options
}

// Scan runs nmap once and returns the XML report.
func (s *Scanner) Scan(ctx context.Context) ([]byte, error) {
	targets := s.config.Targets
	if len(targets) == 0 {
		return nil, errors.WrapScanError(errors.CodeValidation, "no scan targets configured", nil, nil)
	}

	runID := uuid.New().String()
	if s.limiter != nil {
		if err := s.limiter.Acquire(ctx, runID); err != nil {
			return nil, s.classify(ctx, err, targets)
		}
		defer s.limiter.Release(runID)
	}

	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	s.logger.InfoScan("Starting scan", targets, "run_id", runID, "ports", s.config.Ports)

	start := time.Now()
	data, warnings, err := s.exec(ctx, s.options()...)
	duration := time.Since(start)

	for _, w := range warnings {
		s.logger.Warn("nmap warning", "run_id", runID, "warning", w)
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	if s.recorder != nil {
		s.recorder.IncrementScansTotal(status)
		s.recorder.RecordScanDuration(duration)
	}

	if err != nil {
		scanErr := s.classify(ctx, err, targets)
		s.logger.ErrorScan("Scan failed", targets, scanErr, "run_id", runID)
		return nil, scanErr
	}

	s.logger.InfoScan("Scan completed", targets,
		"run_id", runID, "duration", duration, "bytes", len(data))
	return data, nil
}

// Source runs a scan and exposes the report as a parser event source.
func (s *Scanner) Source(ctx context.Context) (*report.XMLSource, error) {
	data, err := s.Scan(ctx)
	if err != nil {
		return nil, err
	}
	return report.NewXMLSource(bytes.NewReader(data)), nil
}

func (s *Scanner) classify(ctx context.Context, err error, targets []string) error {
	switch {
	case stderrors.Is(ctx.Err(), context.DeadlineExceeded) || strings.Contains(err.Error(), "timed out"):
		return errors.WrapScanError(errors.CodeTimeout, "scan timed out", targets, err)
	case stderrors.Is(ctx.Err(), context.Canceled):
		return errors.WrapScanError(errors.CodeCanceled, "scan canceled", targets, err)
	default:
		return errors.WrapScanError(errors.CodeScanFailed, "nmap execution failed", targets, err)
	}
}
