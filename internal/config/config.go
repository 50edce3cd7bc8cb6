package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	derrors "github.com/substra/docpipeline/internal/errors"
)

// DefaultPath is the configuration file looked up when --config is not given.
const DefaultPath = "docpipeline.yaml"

// Config represents the application configuration
type Config struct {
	Root         string          `yaml:"root"`
	Python       string          `yaml:"python"`
	Repositories []Repository    `yaml:"repositories"`
	References   []CopySpec      `yaml:"references"`
	Requirements string          `yaml:"requirements"`
	Sphinx       SphinxConfig    `yaml:"sphinx"`
	Packaging    PackagingConfig `yaml:"packaging"`
	Build        BuildConfig     `yaml:"build"`
	Logging      LoggingConfig   `yaml:"logging"`
	Metrics      MetricsConfig   `yaml:"metrics"`
	Report       ReportConfig    `yaml:"report"`
}

// Repository is an external repository checked out next to the docs tree and
// installed into the documentation environment.
type Repository struct {
	Name     string      `yaml:"name"`
	URL      string      `yaml:"url"`
	Branch   string      `yaml:"branch,omitempty"`
	Ref      string      `yaml:"ref,omitempty"`  // tag or commit pinned instead of the branch tip
	Path     string      `yaml:"path,omitempty"` // checkout dir relative to root, defaults to Name
	Editable *bool       `yaml:"editable,omitempty"`
	Extras   []string    `yaml:"extras,omitempty"`
	Auth     *AuthConfig `yaml:"auth,omitempty"`
}

// IsEditable reports whether the repository is installed with `pip install -e`.
func (r Repository) IsEditable() bool { return r.Editable == nil || *r.Editable }

// AuthConfig represents authentication configuration
type AuthConfig struct {
	Type     AuthType `yaml:"type"`
	Username string   `yaml:"username,omitempty"`
	Password string   `yaml:"password,omitempty"`
	Token    string   `yaml:"token,omitempty"`
	KeyPath  string   `yaml:"key_path,omitempty"`
}

// AuthType enumerates supported git authentication mechanisms.
type AuthType string

const (
	AuthNone  AuthType = "none"
	AuthToken AuthType = "token"
	AuthBasic AuthType = "basic"
	AuthSSH   AuthType = "ssh"
)

// CopySpec describes one copy or move. A To ending in "/" names the parent
// directory the source is placed into; otherwise To is the exact destination.
type CopySpec struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// SphinxConfig controls how the documentation generator is invoked.
type SphinxConfig struct {
	DocsDir           string     `yaml:"docs_dir"`
	Mode              SphinxMode `yaml:"mode"`
	MakeCommand       string     `yaml:"make_command"`
	SphinxBuild       string     `yaml:"sphinx_build"`
	SourceDir         string     `yaml:"source_dir"`
	BuildDir          string     `yaml:"build_dir"`
	Targets           []string   `yaml:"targets"`
	VerifyLinks       bool       `yaml:"verify_links"`
	FailOnBrokenLinks bool       `yaml:"fail_on_broken_links"`
}

// SphinxMode selects the generator front-end.
type SphinxMode string

const (
	SphinxModeMake        SphinxMode = "make"
	SphinxModeSphinxBuild SphinxMode = "sphinx-build"
)

// PackagingConfig drives the post-build notebook bundle.
type PackagingConfig struct {
	NotebooksDir          string     `yaml:"notebooks_dir"`
	NotebooksDest         string     `yaml:"notebooks_dest"`
	// Assets are moved, not merged: a destination must not exist yet. End
	// To with "/" to move the source into an existing directory.
	Assets                []CopySpec `yaml:"assets"`
	DocsKeep              []string   `yaml:"docs_keep"`
	UninstallRequirements string     `yaml:"uninstall_requirements"`
	VerifyUninstall       *bool      `yaml:"verify_uninstall,omitempty"`
}

// ShouldVerifyUninstall reports whether the package listing is checked after uninstall.
func (p PackagingConfig) ShouldVerifyUninstall() bool {
	return p.VerifyUninstall == nil || *p.VerifyUninstall
}

// BuildConfig holds checkout strategy flags.
type BuildConfig struct {
	Incremental       bool             `yaml:"incremental"`
	ShallowDepth      int              `yaml:"shallow_depth"`
	MaxRetries        int              `yaml:"max_retries"`
	RetryBackoff      RetryBackoffMode `yaml:"retry_backoff"`
	RetryInitialDelay string           `yaml:"retry_initial_delay"`
	RetryMaxDelay     string           `yaml:"retry_max_delay"`
}

// RetryBackoffMode selects how the delay grows between checkout retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

// MetricsConfig configures optional Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// ReportConfig configures optional build report persistence.
type ReportConfig struct {
	Path string `yaml:"path,omitempty"`
}

// Load loads configuration from the specified file, applies defaults and validates it.
func Load(configPath string) (*Config, error) {
	_ = loadEnvFile() // .env files are optional

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, derrors.ConfigNotFound(configPath)
		}
		return nil, derrors.ConfigInvalid(configPath, err)
	}
	return Parse(data, configPath)
}

// Parse decodes YAML (after ${ENV} expansion) into a Config with defaults applied.
func Parse(data []byte, source string) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, derrors.ConfigInvalid(source, fmt.Errorf("failed to unmarshal config: %w", err))
	}
	applyDefaults(&cfg)
	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configPath when it exists and otherwise returns the
// built-in configuration reproducing the documented pipeline.
func LoadOrDefault(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := Default()
		return cfg, ValidateConfig(cfg)
	}
	return Load(configPath)
}

// Abs resolves a root-relative path. Absolute paths are returned cleaned.
func (c *Config) Abs(rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Join(c.Root, filepath.FromSlash(rel))
}

// CheckoutPath returns the absolute checkout directory of a repository.
func (c *Config) CheckoutPath(r Repository) string {
	return c.Abs(r.Path)
}

// Resolve returns the absolute source and destination of a copy or move.
func (c *Config) Resolve(spec CopySpec) (src, dst string) {
	src = c.Abs(spec.From)
	dst = c.Abs(spec.To)
	if strings.HasSuffix(spec.To, "/") {
		dst = filepath.Join(dst, filepath.Base(src))
	}
	return src, dst
}

// DocsDir returns the absolute documentation directory.
func (c *Config) DocsDir() string { return c.Abs(c.Sphinx.DocsDir) }

// SourceDir returns the absolute documentation source directory.
func (c *Config) SourceDir() string {
	return filepath.Join(c.DocsDir(), c.Sphinx.SourceDir)
}

// HTMLDir returns where the generator writes the HTML site.
func (c *Config) HTMLDir() string {
	return filepath.Join(c.DocsDir(), c.Sphinx.BuildDir, "html")
}

// Init writes the default configuration to configPath.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return derrors.New(derrors.CategoryConfig, derrors.SeverityFatal,
			"configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath)
	}

	cfg := Default()
	cfg.Root = "."

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return derrors.InternalError("failed to marshal config", err)
	}
	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return derrors.FileSystemError("mkdir", dir, err)
		}
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return derrors.FileSystemError("write", configPath, err)
	}
	return nil
}
