package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/substra/docpipeline/internal/version"
)

// Outcome is the final state of a run.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeWarning  Outcome = "warning"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
)

// IssueSeverity represents normalized severity levels.
type IssueSeverity string

const (
	SeverityError   IssueSeverity = "error"
	SeverityWarning IssueSeverity = "warning"
)

// Issue is one problem encountered during a run.
type Issue struct {
	Stage    StageName     `yaml:"stage"`
	Severity IssueSeverity `yaml:"severity"`
	Message  string        `yaml:"message"`
}

// StageRecord is the outcome of one executed stage.
type StageRecord struct {
	Name     StageName     `yaml:"name"`
	Result   StageResult   `yaml:"result"`
	Duration time.Duration `yaml:"duration"`
}

// Checkout records the commit a repository was built from.
type Checkout struct {
	Name   string `yaml:"name"`
	Path   string `yaml:"path"`
	Commit string `yaml:"commit"`
	Branch string `yaml:"branch,omitempty"`
}

// Report captures what a run did. It is written as YAML when a report path
// is configured.
type Report struct {
	SchemaVersion int           `yaml:"schema_version"`
	BuildID       string        `yaml:"build_id"`
	Kind          Kind          `yaml:"kind"`
	Version       string        `yaml:"version"`
	Start         time.Time     `yaml:"start"`
	End           time.Time     `yaml:"end"`
	Stages        []StageRecord `yaml:"stages"`
	Issues        []Issue       `yaml:"issues,omitempty"`
	Outcome       Outcome       `yaml:"outcome"`
	Checkouts     []Checkout    `yaml:"checkouts,omitempty"`
	// SourceDigest hashes the documentation source tree after the reference
	// copies; unchanged inputs yield the same digest.
	SourceDigest string   `yaml:"source_digest,omitempty"`
	BrokenLinks  int      `yaml:"broken_links,omitempty"`
	Removed      []string `yaml:"removed,omitempty"`
}

// NewReport starts a report for a run of kind.
func NewReport(kind Kind) *Report {
	return &Report{
		SchemaVersion: 1,
		BuildID:       uuid.NewString(),
		Kind:          kind,
		Version:       version.Version,
		Start:         time.Now(),
	}
}

// AddIssue appends a structured issue.
func (r *Report) AddIssue(stage StageName, severity IssueSeverity, msg string) {
	r.Issues = append(r.Issues, Issue{Stage: stage, Severity: severity, Message: msg})
}

// RecordStage appends the outcome of a stage.
func (r *Report) RecordStage(name StageName, res StageResult, d time.Duration) {
	r.Stages = append(r.Stages, StageRecord{Name: name, Result: res, Duration: d})
}

// StageResult returns the recorded result of name, if the stage ran.
func (r *Report) StageResult(name StageName) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s.Result, true
		}
	}
	return "", false
}

// DeriveOutcome sets Outcome from the recorded stage results.
func (r *Report) DeriveOutcome() {
	r.Outcome = OutcomeSuccess
	for _, s := range r.Stages {
		switch s.Result {
		case StageResultCanceled:
			r.Outcome = OutcomeCanceled
			return
		case StageResultFatal:
			r.Outcome = OutcomeFailed
			return
		case StageResultWarning:
			r.Outcome = OutcomeWarning
		}
	}
}

// Finish sets the end time of the report.
func (r *Report) Finish() { r.End = time.Now() }

// Duration returns the wall time of the run.
func (r *Report) Duration() time.Duration {
	if r.End.IsZero() {
		return time.Since(r.Start)
	}
	return r.End.Sub(r.Start)
}

// Summary renders a one-line human-readable description.
func (r *Report) Summary() string {
	parts := make([]string, 0, len(r.Stages))
	for _, s := range r.Stages {
		parts = append(parts, fmt.Sprintf("%s=%s", s.Name, s.Result))
	}
	return fmt.Sprintf("%s %s in %s [%s]", r.Kind, r.Outcome, r.Duration().Round(time.Millisecond), strings.Join(parts, " "))
}

// Save writes the report as YAML to path.
func (r *Report) Save(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadReport reads a report written by Save.
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return &r, nil
}
