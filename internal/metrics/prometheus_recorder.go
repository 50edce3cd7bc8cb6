package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	registry        *prom.Registry
	stageDuration   *prom.HistogramVec
	buildDuration   *prom.HistogramVec
	stageResults    *prom.CounterVec
	buildOutcome    *prom.CounterVec
	checkoutSeconds *prom.HistogramVec
	commandSeconds  *prom.HistogramVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics on reg
// (a fresh registry when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{registry: reg}
	pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: "docpipeline",
		Name:      "stage_duration_seconds",
		Help:      "Duration of individual pipeline stages",
		Buckets:   prom.ExponentialBuckets(0.05, 2, 14),
	}, []string{"pipeline", "stage"})
	pr.buildDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: "docpipeline",
		Name:      "run_duration_seconds",
		Help:      "Total pipeline run duration",
		Buckets:   prom.ExponentialBuckets(1, 2, 12),
	}, []string{"pipeline"})
	pr.stageResults = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "docpipeline",
		Name:      "stage_results_total",
		Help:      "Stage result counts by outcome",
	}, []string{"pipeline", "stage", "result"})
	pr.buildOutcome = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "docpipeline",
		Name:      "run_outcomes_total",
		Help:      "Pipeline outcomes by final status",
	}, []string{"pipeline", "outcome"})
	pr.checkoutSeconds = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: "docpipeline",
		Name:      "checkout_duration_seconds",
		Help:      "Duration of repository checkouts",
		Buckets:   prom.DefBuckets,
	}, []string{"repository", "result"})
	pr.commandSeconds = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: "docpipeline",
		Name:      "command_duration_seconds",
		Help:      "Duration of external commands (pip, make, sphinx-build)",
		Buckets:   prom.ExponentialBuckets(0.1, 2, 14),
	}, []string{"command", "result"})
	reg.MustRegister(pr.stageDuration, pr.buildDuration, pr.stageResults, pr.buildOutcome, pr.checkoutSeconds, pr.commandSeconds)
	return pr
}

// Registry exposes the underlying registry (tests, HTTP handlers).
func (p *PrometheusRecorder) Registry() *prom.Registry { return p.registry }

func (p *PrometheusRecorder) ObserveStageDuration(pipeline, stage string, d time.Duration) {
	p.stageDuration.WithLabelValues(pipeline, stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(pipeline string, d time.Duration) {
	p.buildDuration.WithLabelValues(pipeline).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(pipeline, stage string, result ResultLabel) {
	p.stageResults.WithLabelValues(pipeline, stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncBuildOutcome(pipeline, outcome string) {
	p.buildOutcome.WithLabelValues(pipeline, outcome).Inc()
}

func (p *PrometheusRecorder) ObserveCheckoutDuration(repo string, d time.Duration, success bool) {
	p.checkoutSeconds.WithLabelValues(repo, resultLabel(success)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveCommandDuration(command string, d time.Duration, success bool) {
	p.commandSeconds.WithLabelValues(command, resultLabel(success)).Observe(d.Seconds())
}

// WriteTextfile writes the registry in text exposition format, atomically.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prom.WriteToTextfile(path, p.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}
