package pipeline

import (
	"context"
	"fmt"
)

// Stage is a discrete unit of work in a pipeline run.
type Stage func(ctx context.Context, st *State) error

// StageName is a strongly-typed identifier for a stage.
type StageName string

// Build pipeline stages, in execution order.
const (
	StageCheckoutSelf        StageName = "checkout_self"
	StageCheckoutRepos       StageName = "checkout_repos"
	StageInstallPackages     StageName = "install_packages"
	StageCopyReferences      StageName = "copy_references"
	StageInstallRequirements StageName = "install_requirements"
	StageSphinxClean         StageName = "sphinx_clean"
	StageSphinxHTML          StageName = "sphinx_html"
	StageVerifyLinks         StageName = "verify_links"
)

// Packaging pipeline stages, in execution order.
const (
	StageBuildHTML             StageName = "build_html"
	StageUninstallRequirements StageName = "uninstall_requirements"
	StageRelocateNotebooks     StageName = "relocate_notebooks"
	StageMoveAssets            StageName = "move_assets"
	StageRemoveDotfiles        StageName = "remove_dotfiles"
	StagePruneRoot             StageName = "prune_root"
	StagePruneDocs             StageName = "prune_docs"
)

// StageErrorKind classifies the outcome of a stage.
type StageErrorKind string

const (
	StageErrorFatal    StageErrorKind = "fatal"    // Run must abort.
	StageErrorWarning  StageErrorKind = "warning"  // Non-fatal; record and continue.
	StageErrorCanceled StageErrorKind = "canceled" // Context cancellation.
)

// StageError carries the failing stage and its classification.
type StageError struct {
	Kind  StageErrorKind
	Stage StageName
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// StageResult captures the high-level outcome of a stage.
type StageResult string

const (
	StageResultSuccess  StageResult = "success"
	StageResultWarning  StageResult = "warning"
	StageResultFatal    StageResult = "fatal"
	StageResultCanceled StageResult = "canceled"
)

// NewFatalStageError creates a new fatal stage error.
func NewFatalStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorFatal, Stage: stage, Err: err}
}

func NewWarnStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorWarning, Stage: stage, Err: err}
}

func NewCanceledStageError(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorCanceled, Stage: stage, Err: err}
}

// StageDef pairs a stage name with its executing function.
type StageDef struct {
	Name StageName
	Fn   Stage
}

// Pipeline is a fluent builder for ordered stage definitions.
type Pipeline struct{ Defs []StageDef }

// New creates an empty pipeline.
func New() *Pipeline { return &Pipeline{Defs: make([]StageDef, 0, 8)} }

// Add appends a stage unconditionally.
func (p *Pipeline) Add(name StageName, fn Stage) *Pipeline {
	p.Defs = append(p.Defs, StageDef{Name: name, Fn: fn})
	return p
}

// AddIf appends a stage only if cond is true.
func (p *Pipeline) AddIf(cond bool, name StageName, fn Stage) *Pipeline {
	if cond {
		p.Add(name, fn)
	}
	return p
}

// Build returns a copy of the stage definitions.
func (p *Pipeline) Build() []StageDef {
	out := make([]StageDef, len(p.Defs))
	copy(out, p.Defs)
	return out
}

// Names lists the stage names of defs in order.
func Names(defs []StageDef) []StageName {
	names := make([]StageName, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	return names
}
