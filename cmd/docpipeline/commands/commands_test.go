package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "github.com/substra/docpipeline/internal/errors"
)

func newCLI(t *testing.T) (*CLI, *Global, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	return &CLI{Config: filepath.Join(t.TempDir(), "docpipeline.yaml")}, &Global{Out: &out}, &out
}

func TestInitWritesDefaultsOnce(t *testing.T) {
	cli, g, out := newCLI(t)

	require.NoError(t, (&InitCmd{}).Run(g, cli))
	assert.Contains(t, out.String(), cli.Config)
	data, err := os.ReadFile(cli.Config)
	require.NoError(t, err)
	assert.Contains(t, string(data), "substrafl")

	err = (&InitCmd{}).Run(g, cli)
	require.Error(t, err)
	assert.True(t, derrors.IsCategory(err, derrors.CategoryConfig))

	require.NoError(t, (&InitCmd{Force: true}).Run(g, cli))
}

func TestPlanBuildText(t *testing.T) {
	cli, g, out := newCLI(t)
	require.NoError(t, (&PlanCmd{Kind: "build", Format: "text"}).Run(g, cli))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, " 1. checkout_self", lines[0])
	assert.Equal(t, " 6. sphinx_clean", lines[5])
	assert.Equal(t, " 7. sphinx_html", lines[6])
}

func TestPlanPackageJSON(t *testing.T) {
	cli, g, out := newCLI(t)
	require.NoError(t, (&PlanCmd{Kind: "package", Format: "json"}).Run(g, cli))

	var steps []planStep
	require.NoError(t, json.Unmarshal(out.Bytes(), &steps))
	names := make([]string, 0, len(steps))
	for _, s := range steps {
		names = append(names, s.Stage)
	}
	assert.Equal(t, []string{
		"build_html", "uninstall_requirements", "relocate_notebooks", "move_assets",
		"remove_dotfiles", "prune_root", "prune_docs",
	}, names)
	assert.Equal(t, 1, steps[0].Index)
}

func TestPlanSkipFlags(t *testing.T) {
	cli, g, out := newCLI(t)
	require.NoError(t, (&PlanCmd{Kind: "build", Format: "text", SkipInstall: true}).Run(g, cli))
	assert.NotContains(t, out.String(), "install_packages")
	assert.NotContains(t, out.String(), "install_requirements")

	out.Reset()
	require.NoError(t, (&PlanCmd{Kind: "package", Format: "text", SkipBuild: true}).Run(g, cli))
	assert.NotContains(t, out.String(), "build_html")
}

func TestVerifyReportsBrokenLinks(t *testing.T) {
	cli, g, out := newCLI(t)
	root := t.TempDir()
	site := filepath.Join(root, "site")
	require.NoError(t, os.MkdirAll(site, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(site, "index.html"),
		[]byte(`<html><body><a href="api.html">api</a><a href="missing.html">x</a></body></html>`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(site, "api.html"), []byte(`<html></html>`), 0o600))

	err := (&VerifyCmd{Root: root, Dir: "site"}).Run(g, cli)
	require.Error(t, err)
	assert.True(t, derrors.IsCategory(err, derrors.CategoryBuild))
	assert.Contains(t, out.String(), "missing.html")
	assert.NotContains(t, out.String(), "api.html")

	require.NoError(t, os.WriteFile(filepath.Join(site, "missing.html"), []byte(`<html></html>`), 0o600))
	out.Reset()
	require.NoError(t, (&VerifyCmd{Root: root, Dir: "site"}).Run(g, cli))
	assert.Empty(t, out.String())
}

func TestLoadConfigRootOverride(t *testing.T) {
	cli, _, _ := newCLI(t)
	root := t.TempDir()

	cfg, err := loadConfig(cli, root)
	require.NoError(t, err)
	assert.Equal(t, root, cfg.Root)
	assert.Equal(t, filepath.Join(root, "docs", "build", "html"), cfg.HTMLDir())
}

func TestLoadConfigInvalidFile(t *testing.T) {
	cli, _, _ := newCLI(t)
	require.NoError(t, os.WriteFile(cli.Config, []byte("repositories: [{name: a}]\n"), 0o600))

	_, err := loadConfig(cli, "")
	require.Error(t, err)
	assert.True(t, derrors.IsCategory(err, derrors.CategoryValidation))
}
