package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultWarning  ResultLabel = "warning"
	ResultFatal    ResultLabel = "fatal"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder defines observability hooks for build and stage metrics.
type Recorder interface {
	ObserveStageDuration(pipeline, stage string, d time.Duration)
	ObserveBuildDuration(pipeline string, d time.Duration)
	IncStageResult(pipeline, stage string, result ResultLabel)
	IncBuildOutcome(pipeline, outcome string) // outcome: success|warning|failed|canceled
	ObserveCheckoutDuration(repo string, d time.Duration, success bool)
	ObserveCommandDuration(command string, d time.Duration, success bool)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, string, time.Duration)  {}
func (NoopRecorder) ObserveBuildDuration(string, time.Duration)          {}
func (NoopRecorder) IncStageResult(string, string, ResultLabel)          {}
func (NoopRecorder) IncBuildOutcome(string, string)                      {}
func (NoopRecorder) ObserveCheckoutDuration(string, time.Duration, bool) {}
func (NoopRecorder) ObserveCommandDuration(string, time.Duration, bool)  {}
