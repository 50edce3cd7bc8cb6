package config

import (
	"path/filepath"
	"strings"
)

// Default returns the configuration reproducing the documented pipeline:
// the three sibling repositories, the two reference copies, the pinned
// documentation tooling manifest and the Binder packaging layout.
func Default() *Config {
	cfg := &Config{
		Repositories: []Repository{
			{Name: "substra", URL: "https://github.com/Substra/substra.git"},
			{Name: "substrafl", URL: "https://github.com/Substra/substrafl.git", Extras: []string{"dev"}},
			{Name: "substra-tools", URL: "https://github.com/Substra/substra-tools.git"},
		},
		References: []CopySpec{
			{From: "substra/references", To: "docs/source/documentation/references"},
			{From: "substrafl/docs/api", To: "docs/source/substrafl_doc/"},
		},
		Packaging: PackagingConfig{
			Assets: []CopySpec{
				{From: "examples/substra_core/titanic_example/assets", To: "notebooks/substra_core/titanic_example/assets"},
				{From: "examples/substra_core/diabetes_example/assets", To: "notebooks/substra_core/diabetes_example/assets"},
				{From: "examples/substrafl/get_started/torch_fedavg_assets", To: "notebooks/substrafl/get_started/torch_fedavg_assets"},
			},
		},
	}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills zero values. Lists are only defaulted when absent from
// the file (nil); an explicit empty list is kept.
func applyDefaults(cfg *Config) {
	if cfg.Root == "" {
		cfg.Root = "."
	}
	if abs, err := filepath.Abs(cfg.Root); err == nil {
		cfg.Root = abs
	}
	if cfg.Python == "" {
		cfg.Python = "python3"
	}
	if cfg.Requirements == "" {
		cfg.Requirements = "docs/requirements.txt"
	}

	for i := range cfg.Repositories {
		r := &cfg.Repositories[i]
		r.Name = strings.TrimSpace(r.Name)
		if r.Branch == "" && r.Ref == "" {
			r.Branch = "main"
		}
		if r.Path == "" {
			r.Path = r.Name
		}
		if r.Auth != nil && r.Auth.Type == "" {
			r.Auth.Type = AuthNone
		}
	}

	s := &cfg.Sphinx
	if s.DocsDir == "" {
		s.DocsDir = "docs"
	}
	if s.Mode == "" {
		s.Mode = SphinxModeMake
	}
	if s.MakeCommand == "" {
		s.MakeCommand = "make"
	}
	if s.SphinxBuild == "" {
		s.SphinxBuild = "sphinx-build"
	}
	if s.SourceDir == "" {
		s.SourceDir = "source"
	}
	if s.BuildDir == "" {
		s.BuildDir = "build"
	}
	if s.Targets == nil {
		s.Targets = []string{"clean", "html"}
	}

	p := &cfg.Packaging
	if p.NotebooksDir == "" {
		p.NotebooksDir = filepath.ToSlash(filepath.Join(s.DocsDir, "notebooks"))
	}
	if p.NotebooksDest == "" {
		p.NotebooksDest = "notebooks"
	}
	if p.DocsKeep == nil {
		p.DocsKeep = []string{"src"}
	}
	if p.UninstallRequirements == "" {
		p.UninstallRequirements = cfg.Requirements
	}

	b := &cfg.Build
	if b.RetryBackoff == "" {
		b.RetryBackoff = RetryBackoffLinear
	} else if m := NormalizeRetryBackoff(string(b.RetryBackoff)); m != "" {
		b.RetryBackoff = m
	}
	if b.RetryInitialDelay == "" {
		b.RetryInitialDelay = "1s"
	}
	if b.RetryMaxDelay == "" {
		b.RetryMaxDelay = "30s"
	}

	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
}

var retryBackoffModes = map[RetryBackoffMode]bool{
	RetryBackoffFixed:       true,
	RetryBackoffLinear:      true,
	RetryBackoffExponential: true,
}

// NormalizeRetryBackoff lowercases raw; unknown modes yield "".
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	m := RetryBackoffMode(strings.ToLower(strings.TrimSpace(raw)))
	if !retryBackoffModes[m] {
		return ""
	}
	return m
}
