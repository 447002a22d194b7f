package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberfabric/cyber-pilot-sub001/internal/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func marker(name, tomlBody string) string {
	return "`@cpt:" + name + "`\n```toml\n" + tomlBody + "\n```\n`@/cpt:" + name + "`\n"
}

const projectFile = `
systems:
  - slug: app
    artifacts:
      - {path: architecture/PRD.md, kind: PRD}
    codebase:
      - {path: src, extensions: [.go]}
history:
  enabled: false
`

const prdDoc = `# PRD

## Requirements

- **ID**: ` + "`cpt-app-fr-login`" + `
`

// newProject lays out a small project with one PRD blueprint, one PRD and
// one Go file that marks the PRD's requirement.
func newProject(t *testing.T) (string, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "blueprints", "prd.md"),
		marker("blueprint", "artifact = \"PRD\"\nkit = \"sdlc\"\nversion = \"1.0.0\"")+
			marker("heading", "id = \"reqs\"\nlevel = 2\npattern = \"Requirements\"")+
			marker("id", "kind = \"fr\"\nto_code = true\nheadings = [\"reqs\"]"))
	writeFile(t, filepath.Join(dir, config.FileName), projectFile)
	writeFile(t, filepath.Join(dir, "architecture", "PRD.md"), prdDoc)
	writeFile(t, filepath.Join(dir, "src", "login.go"),
		"package src\n\n// @cpt-flow:cpt-app-fr-login:p1\nfunc Login() {}\n")

	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	return dir, cfg
}

func generated(t *testing.T) (string, *config.Config) {
	t.Helper()
	dir, cfg := newProject(t)
	_, err := generateProject(cfg, generateOptions{})
	require.NoError(t, err)
	return dir, cfg
}

func TestGenerateProject(t *testing.T) {
	dir, cfg := newProject(t)

	sum, err := generateProject(cfg, generateOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Blueprints)
	assert.Empty(t, sum.ParseErrors)
	assert.Equal(t, 1, sum.Kinds)
	require.Len(t, sum.Kits, 1)
	assert.Equal(t, "sdlc", sum.Kits[0].Slug)
	assert.Contains(t, sum.Kits[0].Files, "artifacts/PRD/template.md")

	assert.FileExists(t, filepath.Join(dir, ".gen", "kits", "sdlc", "artifacts", "PRD", "template.md"))
	data, err := os.ReadFile(filepath.Join(dir, ".gen", "constraints.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "PRD")
}

func TestGenerateProject_DryRunWritesNothing(t *testing.T) {
	dir, cfg := newProject(t)

	sum, err := generateProject(cfg, generateOptions{DryRun: true})
	require.NoError(t, err)
	require.Len(t, sum.Kits, 1)
	assert.NoDirExists(t, filepath.Join(dir, ".gen"))
}

func TestGenerateProject_UnknownKit(t *testing.T) {
	_, cfg := newProject(t)
	_, err := generateProject(cfg, generateOptions{Kit: "other"})
	assert.Error(t, err)
}

func TestGenerateProject_ParseErrorsStopTheRun(t *testing.T) {
	dir, cfg := newProject(t)
	writeFile(t, filepath.Join(dir, "blueprints", "broken.md"), "`@cpt:heading`\n")

	sum, err := generateProject(cfg, generateOptions{})
	require.Error(t, err)
	require.NotNil(t, sum)
	require.NotEmpty(t, sum.ParseErrors)
	assert.True(t, strings.HasPrefix(sum.ParseErrors[0], filepath.Join(dir, "blueprints", "broken.md")))
	assert.NoDirExists(t, filepath.Join(dir, ".gen"))
}

func TestOpenProject_RequiresConstraints(t *testing.T) {
	_, cfg := newProject(t)
	_, err := openProject(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cpt generate")
}

func TestValidateProject_Clean(t *testing.T) {
	_, cfg := generated(t)
	p, err := openProject(cfg)
	require.NoError(t, err)

	result, err := validateProject(context.Background(), p, validateOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
}

func TestValidateProject_MissingMarker(t *testing.T) {
	dir, cfg := generated(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "src", "login.go")))

	p, err := openProject(cfg)
	require.NoError(t, err)
	result, err := validateProject(context.Background(), p, validateOptions{})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"marker-missing": 1}, result.CountByCode())

	result, err = validateProject(context.Background(), p, validateOptions{SkipCode: true})
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
}

func TestValidateProject_OrphanReference(t *testing.T) {
	dir, cfg := generated(t)
	writeFile(t, filepath.Join(dir, "src", "logout.go"),
		"package src\n\n// @cpt-flow:cpt-app-fr-logout:p1\nfunc Logout() {}\n")

	p, err := openProject(cfg)
	require.NoError(t, err)
	result, err := validateProject(context.Background(), p, validateOptions{})
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "ref-orphan", result.Errors[0].Code)
	assert.Equal(t, filepath.Join(dir, "src", "logout.go"), result.Errors[0].Path)
}

func TestValidateProject_DocsOnly(t *testing.T) {
	_, cfg := generated(t)
	cfg.Systems[0].Traceability = "DOCS-ONLY"

	p, err := openProject(cfg)
	require.NoError(t, err)
	result, err := validateProject(context.Background(), p, validateOptions{})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"marker-prohibited": 1}, result.CountByCode())
}

func TestValidateProject_MisplacedDefinition(t *testing.T) {
	dir, cfg := generated(t)
	writeFile(t, filepath.Join(dir, "architecture", "PRD.md"),
		"# PRD\n\n- **ID**: `cpt-app-fr-login`\n\n## Requirements\n")

	p, err := openProject(cfg)
	require.NoError(t, err)
	result, err := validateProject(context.Background(), p, validateOptions{SkipCode: true})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"def-heading-misplaced": 1}, result.CountByCode())
}

func TestValidateProject_MissingRootIsWarning(t *testing.T) {
	dir, cfg := generated(t)
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "src")))

	p, err := openProject(cfg)
	require.NoError(t, err)
	result, err := validateProject(context.Background(), p, validateOptions{})
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "codebase-root-missing", result.Warnings[0].Code)
}

func TestCoverageProject(t *testing.T) {
	dir, cfg := newProject(t)
	writeFile(t, filepath.Join(dir, "src", "util.go"), "package src\n\nfunc Util() {}\n")

	rep, result, err := coverageProject(context.Background(), cfg, "")
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)
	require.Len(t, rep.Files, 2)
	assert.Equal(t, 4, rep.EffectiveLines)
	assert.Equal(t, 2, rep.CoveredLines)
	assert.InDelta(t, 50.0, rep.CoveragePct, 1e-9)

	_, _, err = coverageProject(context.Background(), cfg, "billing")
	assert.Error(t, err)
}

func TestValidateTOCFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "README.md")
	writeFile(t, path, "# Title\n\n## One\n\n## Two\n")

	result, err := validateTOCFiles([]string{path}, tocOptions())
	require.NoError(t, err)
	assert.True(t, result.HasErrors(), "a document without a TOC fails")

	_, err = validateTOCFiles([]string{filepath.Join(dir, "missing.md")}, tocOptions())
	assert.Error(t, err)
}
