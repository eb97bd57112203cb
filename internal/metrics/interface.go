// Package metrics provides interfaces for metrics collection and monitoring.
package metrics

import "time"

//go:generate mockgen -source=interface.go -destination=mocks/mock_recorder.go -package=mocks

// Recorder receives pipeline measurements. Implementations must be safe for
// concurrent use.
type Recorder interface {
	// IncRuns counts a finished pipeline run by status ("success" or "error").
	IncRuns(status string)

	// ObserveStage records how long a pipeline stage took.
	ObserveStage(stage string, d time.Duration)

	// AddHostsParsed adds to the number of hosts read from reports.
	AddHostsParsed(n int)

	// IncUnexpectedEvents counts an event the parser ignored in state.
	IncUnexpectedEvents(state string)

	// SetServiceTables records the number of distinct service tables of the
	// last run.
	SetServiceTables(n int)

	// AddCellsEmitted adds to the number of diagram cells written.
	AddCellsEmitted(n int)

	// IncErrors counts a failed run by error code.
	IncErrors(code string)
}

// Nop discards all measurements.
type Nop struct{}

func (Nop) IncRuns(string)                     {}
func (Nop) ObserveStage(string, time.Duration) {}
func (Nop) AddHostsParsed(int)                 {}
func (Nop) IncUnexpectedEvents(string)         {}
func (Nop) SetServiceTables(int)               {}
func (Nop) AddCellsEmitted(int)                {}
func (Nop) IncErrors(string)                   {}

var (
	_ Recorder = Nop{}
	_ Recorder = (*PrometheusMetrics)(nil)
)
