package python

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/substra/docpipeline/internal/command"
	derrors "github.com/substra/docpipeline/internal/errors"
	"github.com/substra/docpipeline/internal/logfields"
)

// Package is one entry of `pip list`.
type Package struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Installer runs `<python> -m pip` from a fixed working directory.
type Installer struct {
	python string
	dir    string
	runner command.Runner
}

// NewInstaller returns an Installer invoking python in dir.
func NewInstaller(python, dir string, runner command.Runner) *Installer {
	if python == "" {
		python = "python3"
	}
	return &Installer{python: python, dir: dir, runner: runner}
}

func (i *Installer) pip(args ...string) command.Cmd {
	return command.Cmd{Name: i.python, Args: append([]string{"-m", "pip"}, args...), Dir: i.dir}
}

// InstallPath installs the project at path (relative to the installer's
// directory), in editable mode when editable is set, with the given extras.
func (i *Installer) InstallPath(ctx context.Context, path string, extras []string, editable bool) error {
	target := projectSpec(path, extras)
	args := []string{"install"}
	if editable {
		args = append(args, "-e")
	}
	args = append(args, target)
	if err := i.runner.Run(ctx, i.pip(args...)); err != nil {
		return derrors.PipFailed("install", err).WithContext("target", target)
	}
	return nil
}

// InstallEditable is InstallPath in editable mode.
func (i *Installer) InstallEditable(ctx context.Context, path string, extras []string) error {
	return i.InstallPath(ctx, path, extras, true)
}

// InstallRequirements runs `pip install -r manifest`.
func (i *Installer) InstallRequirements(ctx context.Context, manifest string) error {
	if err := i.runner.Run(ctx, i.pip("install", "-r", manifest)); err != nil {
		return derrors.PipFailed("install", err).WithContext("requirements", manifest)
	}
	return nil
}

// UninstallRequirements runs `pip uninstall -y -r manifest`.
func (i *Installer) UninstallRequirements(ctx context.Context, manifest string) error {
	if err := i.runner.Run(ctx, i.pip("uninstall", "-y", "-r", manifest)); err != nil {
		return derrors.PipFailed("uninstall", err).WithContext("requirements", manifest)
	}
	return nil
}

// Installed returns the environment's packages keyed by normalized name.
func (i *Installer) Installed(ctx context.Context) (map[string]Package, error) {
	out, err := i.runner.Output(ctx, i.pip("list", "--format=json", "--disable-pip-version-check"))
	if err != nil {
		return nil, derrors.PipFailed("list", err)
	}
	var pkgs []Package
	if err := json.Unmarshal(out, &pkgs); err != nil {
		return nil, derrors.PipFailed("list", fmt.Errorf("decode pip list output: %w", err))
	}
	installed := make(map[string]Package, len(pkgs))
	for _, p := range pkgs {
		installed[Normalize(p.Name)] = p
	}
	return installed, nil
}

// VerifyAbsent fails when any of names is still installed. Names are
// compared in normalized form.
func (i *Installer) VerifyAbsent(ctx context.Context, names []string) error {
	installed, err := i.Installed(ctx)
	if err != nil {
		return err
	}
	var remaining []string
	for _, n := range names {
		if p, ok := installed[Normalize(n)]; ok {
			remaining = append(remaining, p.Name+"=="+p.Version)
		}
	}
	if len(remaining) == 0 {
		slog.Debug("Uninstall verified", logfields.Name(strings.Join(names, ",")))
		return nil
	}
	sort.Strings(remaining)
	return derrors.New(derrors.CategoryPython, derrors.SeverityFatal, "packages still installed after uninstall").
		WithContext("packages", strings.Join(remaining, ", "))
}

// projectSpec renders a local project path for pip, which needs a path
// prefix to tell it apart from an index name.
func projectSpec(path string, extras []string) string {
	p := filepath.ToSlash(path)
	if !filepath.IsAbs(path) && !strings.HasPrefix(p, "./") && !strings.HasPrefix(p, "../") {
		p = "./" + p
	}
	if len(extras) > 0 {
		p += "[" + strings.Join(extras, ",") + "]"
	}
	return p
}
