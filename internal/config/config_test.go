package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "github.com/substra/docpipeline/internal/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docpipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultReproducesPipeline(t *testing.T) {
	cfg := Default()
	require.NoError(t, ValidateConfig(cfg))

	names := []string{}
	for _, r := range cfg.Repositories {
		names = append(names, r.Name)
		assert.Equal(t, "main", r.Branch)
		assert.Equal(t, r.Name, r.Path)
		assert.True(t, r.IsEditable())
	}
	assert.Equal(t, []string{"substra", "substrafl", "substra-tools"}, names)
	assert.Equal(t, []string{"dev"}, cfg.Repositories[1].Extras)

	require.Len(t, cfg.References, 2)
	assert.Equal(t, CopySpec{From: "substra/references", To: "docs/source/documentation/references"}, cfg.References[0])
	assert.Equal(t, CopySpec{From: "substrafl/docs/api", To: "docs/source/substrafl_doc/"}, cfg.References[1])

	assert.Equal(t, "docs/requirements.txt", cfg.Requirements)
	assert.Equal(t, []string{"clean", "html"}, cfg.Sphinx.Targets)
	assert.Equal(t, SphinxModeMake, cfg.Sphinx.Mode)
	assert.Equal(t, "docs/notebooks", cfg.Packaging.NotebooksDir)
	assert.Equal(t, "notebooks", cfg.Packaging.NotebooksDest)
	assert.Equal(t, []string{"src"}, cfg.Packaging.DocsKeep)
	assert.Len(t, cfg.Packaging.Assets, 3)
	assert.True(t, cfg.Packaging.ShouldVerifyUninstall())
	assert.Equal(t, 0, cfg.Build.MaxRetries)
}

func TestLoadExpandsEnvAndAppliesDefaults(t *testing.T) {
	t.Setenv("DOCS_TOKEN", "s3cret")
	root := t.TempDir()
	path := writeConfig(t, `
root: `+root+`
repositories:
  - name: substra
    url: https://github.com/Substra/substra.git
    auth:
      type: token
      token: ${DOCS_TOKEN}
  - name: tools
    url: https://github.com/Substra/substra-tools.git
    path: vendor/tools
    ref: v0.20.0
    editable: false
references: []
sphinx:
  mode: sphinx-build
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, root, cfg.Root)
	assert.Equal(t, "s3cret", cfg.Repositories[0].Auth.Token)
	assert.Equal(t, "", cfg.Repositories[1].Branch, "pinned ref should not get a default branch")
	assert.False(t, cfg.Repositories[1].IsEditable())
	assert.Equal(t, filepath.Join(root, "vendor", "tools"), cfg.CheckoutPath(cfg.Repositories[1]))
	assert.Empty(t, cfg.References, "explicit empty list must be kept")
	assert.Equal(t, SphinxModeSphinxBuild, cfg.Sphinx.Mode)
	assert.Equal(t, filepath.Join(root, "docs", "build", "html"), cfg.HTMLDir())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, derrors.IsCategory(err, derrors.CategoryConfig))
}

func TestLoadOrDefaultWithoutFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Len(t, cfg.Repositories, 3)
}

func TestValidationFailures(t *testing.T) {
	cases := map[string]string{
		"duplicate names": `
repositories:
  - {name: a, url: u1}
  - {name: a, url: u2}
`,
		"missing url": `
repositories:
  - {name: a}
`,
		"escaping reference": `
references:
  - {from: ../outside, to: docs/x}
`,
		"absolute asset": `
packaging:
  assets:
    - {from: /etc, to: notebooks/etc}
`,
		"nested notebooks dest": `
packaging:
  notebooks_dest: a/b
`,
		"unknown mode": `
sphinx:
  mode: latexpdf
`,
		"bad backoff": `
build:
  retry_backoff: random
`,
		"negative retries": `
build:
  max_retries: -1
`,
		"token without token": `
repositories:
  - name: a
    url: u
    auth: {type: token}
`,
		"checkout over docs dir": `
repositories:
  - {name: a, url: u, path: docs}
`,
		"checkout inside docs dir": `
repositories:
  - {name: a, url: u, path: docs/vendor/a}
`,
		"checkout over notebooks dest": `
repositories:
  - {name: a, url: u, path: notebooks}
`,
		"report inside checkout": `
repositories:
  - {name: a, url: u}
report:
  path: a/report.yaml
`,
		"shared checkout path": `
repositories:
  - {name: a, url: u1, path: same}
  - {name: b, url: u2, path: same}
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
			assert.True(t, derrors.IsCategory(err, derrors.CategoryValidation), "got %v", err)
		})
	}
}

func TestCheckoutPathMustNotOverlapDocs(t *testing.T) {
	cfg := Default()
	require.NoError(t, ValidateConfig(cfg))

	cfg.Repositories[0].Path = "docs"
	err := ValidateConfig(cfg)
	require.Error(t, err)
	pe, ok := derrors.As(err)
	require.True(t, ok)
	assert.Equal(t, derrors.CategoryValidation, pe.Category)
	assert.Equal(t, "repositories[0].path", pe.Context["field"])

	cfg.Repositories[0].Path = "substra-docs"
	assert.NoError(t, ValidateConfig(cfg), "a sibling sharing a name prefix does not overlap")
}

func TestNormalizeRetryBackoff(t *testing.T) {
	assert.Equal(t, RetryBackoffExponential, NormalizeRetryBackoff(" Exponential "))
	assert.Equal(t, RetryBackoffFixed, NormalizeRetryBackoff("fixed"))
	assert.Equal(t, RetryBackoffMode(""), NormalizeRetryBackoff("random"))
}

func TestInitWritesLoadableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "docpipeline.yaml")
	require.NoError(t, Init(path, false))

	err := Init(path, false)
	require.Error(t, err, "second init without force must fail")
	require.NoError(t, Init(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Repositories, 3)
}

func TestResolveCopySpec(t *testing.T) {
	cfg := &Config{Root: "/work"}

	src, dst := cfg.Resolve(CopySpec{From: "substrafl/docs/api", To: "docs/source/substrafl_doc/"})
	assert.Equal(t, filepath.FromSlash("/work/substrafl/docs/api"), src)
	assert.Equal(t, filepath.FromSlash("/work/docs/source/substrafl_doc/api"), dst)

	_, dst = cfg.Resolve(CopySpec{From: "substra/references", To: "docs/source/documentation/references"})
	assert.Equal(t, filepath.FromSlash("/work/docs/source/documentation/references"), dst)

	_, dst = cfg.Resolve(CopySpec{From: "examples/titanic/assets", To: "notebooks/titanic/"})
	assert.Equal(t, filepath.FromSlash("/work/notebooks/titanic/assets"), dst)
}
