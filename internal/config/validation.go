package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	derrors "github.com/substra/docpipeline/internal/errors"
)

// ValidateConfig validates the complete configuration structure.
func ValidateConfig(cfg *Config) error {
	v := &configurationValidator{config: cfg}
	return v.validate()
}

type configurationValidator struct {
	config *Config
}

func (cv *configurationValidator) validate() error {
	for _, check := range []func() error{
		cv.validateRoot,
		cv.validateRepositories,
		cv.validateReferences,
		cv.validateSphinx,
		cv.validatePackaging,
		cv.validateCheckoutPaths,
		cv.validateBuild,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (cv *configurationValidator) validateRoot() error {
	if strings.TrimSpace(cv.config.Root) == "" {
		return derrors.ValidationFailed("root", "must not be empty")
	}
	if strings.TrimSpace(cv.config.Python) == "" {
		return derrors.ValidationFailed("python", "must not be empty")
	}
	if err := relativePath("requirements", cv.config.Requirements); err != nil {
		return err
	}
	return nil
}

func (cv *configurationValidator) validateRepositories() error {
	names := make(map[string]bool)
	paths := make(map[string]string)
	for i, repo := range cv.config.Repositories {
		field := fmt.Sprintf("repositories[%d]", i)
		if repo.Name == "" {
			return derrors.ValidationFailed(field+".name", "must not be empty")
		}
		if names[repo.Name] {
			return derrors.ValidationFailed(field+".name", "duplicate repository name: "+repo.Name)
		}
		names[repo.Name] = true
		if strings.TrimSpace(repo.URL) == "" {
			return derrors.ValidationFailed(field+".url", "must not be empty")
		}
		if err := relativePath(field+".path", repo.Path); err != nil {
			return err
		}
		clean := filepath.Clean(repo.Path)
		if other, ok := paths[clean]; ok {
			return derrors.ValidationFailed(field+".path", "checkout path already used by "+other)
		}
		paths[clean] = repo.Name
		if err := validateAuth(field+".auth", repo.Auth); err != nil {
			return err
		}
	}
	return nil
}

func validateAuth(field string, auth *AuthConfig) error {
	if auth == nil {
		return nil
	}
	switch auth.Type {
	case AuthNone, AuthSSH:
		return nil
	case AuthToken:
		if auth.Token == "" {
			return derrors.ValidationFailed(field+".token", "token authentication requires a token")
		}
	case AuthBasic:
		if auth.Username == "" || auth.Password == "" {
			return derrors.ValidationFailed(field, "basic authentication requires username and password")
		}
	default:
		return derrors.ValidationFailed(field+".type", "unsupported authentication type: "+string(auth.Type))
	}
	return nil
}

func (cv *configurationValidator) validateReferences() error {
	for i, ref := range cv.config.References {
		field := fmt.Sprintf("references[%d]", i)
		if err := relativePath(field+".from", ref.From); err != nil {
			return err
		}
		if err := relativePath(field+".to", ref.To); err != nil {
			return err
		}
	}
	return nil
}

func (cv *configurationValidator) validateSphinx() error {
	s := cv.config.Sphinx
	switch s.Mode {
	case SphinxModeMake, SphinxModeSphinxBuild:
	default:
		return derrors.ValidationFailed("sphinx.mode", "unsupported mode: "+string(s.Mode))
	}
	if len(s.Targets) == 0 {
		return derrors.ValidationFailed("sphinx.targets", "at least one target is required")
	}
	for _, t := range s.Targets {
		if strings.TrimSpace(t) == "" {
			return derrors.ValidationFailed("sphinx.targets", "targets must not be empty")
		}
	}
	if err := topLevelName("sphinx.docs_dir", s.DocsDir); err != nil {
		return err
	}
	return nil
}

func (cv *configurationValidator) validatePackaging() error {
	p := cv.config.Packaging
	if err := relativePath("packaging.notebooks_dir", p.NotebooksDir); err != nil {
		return err
	}
	if err := topLevelName("packaging.notebooks_dest", p.NotebooksDest); err != nil {
		return err
	}
	if p.NotebooksDest == cv.config.Sphinx.DocsDir {
		return derrors.ValidationFailed("packaging.notebooks_dest", "must differ from sphinx.docs_dir")
	}
	for i, a := range p.Assets {
		field := fmt.Sprintf("packaging.assets[%d]", i)
		if err := relativePath(field+".from", a.From); err != nil {
			return err
		}
		if err := relativePath(field+".to", a.To); err != nil {
			return err
		}
	}
	for _, k := range p.DocsKeep {
		if err := topLevelName("packaging.docs_keep", k); err != nil {
			return err
		}
	}
	return relativePath("packaging.uninstall_requirements", p.UninstallRequirements)
}

// validateCheckoutPaths rejects checkouts overlapping the docs tree, the
// bundle layout or output files. A fresh clone removes its target first.
func (cv *configurationValidator) validateCheckoutPaths() error {
	c := cv.config
	protected := []struct{ field, path string }{
		{"sphinx.docs_dir", c.Sphinx.DocsDir},
		{"packaging.notebooks_dir", c.Packaging.NotebooksDir},
		{"packaging.notebooks_dest", c.Packaging.NotebooksDest},
		{"report.path", c.Report.Path},
		{"metrics.textfile", c.Metrics.Textfile},
	}
	for i, repo := range c.Repositories {
		checkout := c.Abs(repo.Path)
		for _, p := range protected {
			if p.path == "" {
				continue
			}
			if overlaps(checkout, c.Abs(p.path)) {
				return derrors.ValidationFailed(fmt.Sprintf("repositories[%d].path", i),
					"checkout "+repo.Path+" overlaps "+p.field+" "+p.path)
			}
		}
	}
	return nil
}

// overlaps reports whether a and b are the same path or one contains the other.
func overlaps(a, b string) bool {
	if a == b {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(a, b+sep) || strings.HasPrefix(b, a+sep)
}

func (cv *configurationValidator) validateBuild() error {
	b := cv.config.Build
	if b.MaxRetries < 0 {
		return derrors.ValidationFailed("build.max_retries", "cannot be negative")
	}
	if b.ShallowDepth < 0 {
		return derrors.ValidationFailed("build.shallow_depth", "cannot be negative")
	}
	if NormalizeRetryBackoff(string(b.RetryBackoff)) == "" {
		return derrors.ValidationFailed("build.retry_backoff", "unsupported mode: "+string(b.RetryBackoff))
	}
	for field, raw := range map[string]string{
		"build.retry_initial_delay": b.RetryInitialDelay,
		"build.retry_max_delay":     b.RetryMaxDelay,
	} {
		if d, err := time.ParseDuration(raw); err != nil || d <= 0 {
			return derrors.ValidationFailed(field, "must be a positive duration")
		}
	}
	return nil
}

// relativePath rejects empty, absolute and root-escaping paths.
func relativePath(field, p string) error {
	if strings.TrimSpace(p) == "" {
		return derrors.ValidationFailed(field, "must not be empty")
	}
	if filepath.IsAbs(p) {
		return derrors.ValidationFailed(field, "must be relative to root")
	}
	clean := filepath.Clean(filepath.FromSlash(p))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return derrors.ValidationFailed(field, "must not escape root")
	}
	if clean == "." {
		return derrors.ValidationFailed(field, "must not be the root itself")
	}
	return nil
}

// topLevelName requires a single path segment, since pruning keeps entries by name.
func topLevelName(field, name string) error {
	if err := relativePath(field, name); err != nil {
		return err
	}
	if strings.ContainsAny(filepath.Clean(name), `/\`) {
		return derrors.ValidationFailed(field, "must be a single directory name")
	}
	return nil
}
