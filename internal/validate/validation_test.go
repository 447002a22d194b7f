package validate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberfabric/cyber-pilot-sub001/internal/constraints"
	"github.com/cyberfabric/cyber-pilot-sub001/internal/docscan"
	"github.com/cyberfabric/cyber-pilot-sub001/internal/report"
)

// mockValidator is a simple test validator.
type mockValidator struct {
	name     string
	priority int
	errors   []report.Issue
	warnings []report.Issue
}

func (m *mockValidator) Name() string  { return m.name }
func (m *mockValidator) Priority() int { return m.priority }
func (m *mockValidator) Validate(ctx context.Context, in *Input) report.Result {
	r := report.NewResult()
	r.Errors = append(r.Errors, m.errors...)
	r.Warnings = append(r.Warnings, m.warnings...)
	return r
}

func TestRegistry_Register(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&mockValidator{name: "third", priority: 100})
	registry.Register(&mockValidator{name: "first", priority: 1})
	registry.Register(&mockValidator{name: "second", priority: 10})

	assert.Equal(t, []string{"first", "second", "third"}, registry.Names())
}

func TestRegistry_ValidateAll(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&mockValidator{name: "v1", priority: 1, errors: []report.Issue{{Code: "E1", Path: "b.md"}}})
	registry.Register(&mockValidator{name: "v2", priority: 2, warnings: []report.Issue{{Code: "W1"}}})
	registry.Register(&mockValidator{name: "v3", priority: 3, errors: []report.Issue{{Code: "E2", Path: "a.md"}}})

	result := registry.ValidateAll(context.Background(), NewInput(constraints.NewCatalog(nil, nil), nil))

	require.Len(t, result.Errors, 2)
	assert.Equal(t, "E2", result.Errors[0].Code, "errors are sorted by path")
	assert.Equal(t, "E1", result.Errors[1].Code)
	assert.Len(t, result.Warnings, 1)
	assert.False(t, result.IsValid())
}

func TestDefaultRegistry_Order(t *testing.T) {
	assert.Equal(t,
		[]string{"identifier_kinds", "identity", "definitions", "headings", "references"},
		DefaultRegistry().Names())
}

// testCatalog declares PRD with numbered level-2 headings and a required,
// fully constrained fr kind that DESIGN must cover, and DESIGN with a
// component kind.
func testCatalog(frRefs map[string]constraints.ReferenceRule) *constraints.Catalog {
	b := constraints.Bool
	if frRefs == nil {
		frRefs = map[string]constraints.ReferenceRule{"DESIGN": {Coverage: b(true)}}
	}
	doc := &constraints.Document{Artifacts: map[string]constraints.ArtifactConstraints{
		"PRD": {
			Headings: []constraints.HeadingSpec{
				{ID: "overview", Level: 2, Pattern: "Overview", Numbered: b(true), Multiple: b(false)},
				{ID: "reqs", Level: 2, Pattern: "Requirements", Numbered: b(true)},
			},
			Identifiers: map[string]constraints.IdentifierSpec{
				"fr": {
					Required:   b(true),
					Task:       b(true),
					Priority:   b(true),
					Headings:   []string{"reqs"},
					References: frRefs,
				},
			},
		},
		"DESIGN": {
			Headings: []constraints.HeadingSpec{
				{ID: "components", Level: 2, Pattern: "Components", Required: b(false)},
			},
			Identifiers: map[string]constraints.IdentifierSpec{
				"component": {},
			},
		},
	}}
	return constraints.NewCatalog(doc, []string{"app"})
}

func scan(path, kind, content string) *docscan.Document {
	doc := docscan.Scan(content)
	doc.Path = path
	doc.Kind = kind
	return doc
}

const validPRD = "# PRD\n\n## 1. Overview\n\nText.\n\n## 2. Requirements\n\n- [ ] `p1` - **ID**: `cpt-app-fr-x`\n"

func run(catalog *constraints.Catalog, docs ...*docscan.Document) report.Result {
	return Documents(context.Background(), catalog, docs)
}

func TestMissingRequiredReference(t *testing.T) {
	result := run(testCatalog(nil),
		scan("PRD.md", "PRD", validPRD),
		scan("DESIGN.md", "DESIGN", "# Design\n\n**ID**: `cpt-app-component-db`\n"),
	)

	require.Len(t, result.Errors, 1, "%v", result.Errors)
	issue := result.Errors[0]
	assert.Equal(t, "ref-missing", issue.Code)
	assert.Equal(t, "cpt-app-fr-x", issue.ID)
	assert.Equal(t, "DESIGN", issue.Expected)
	assert.Equal(t, "PRD.md", issue.Path)
	assert.Equal(t, 9, issue.Line)
	assert.Contains(t, issue.Message, "missing required reference")
	assert.Contains(t, issue.Message, "DESIGN")
	assert.Contains(t, issue.Message, "cpt-app-fr-x")
	assert.Empty(t, result.Warnings)
}

func TestReferenceSatisfiesCoverage(t *testing.T) {
	result := run(testCatalog(nil),
		scan("PRD.md", "PRD", validPRD),
		scan("DESIGN.md", "DESIGN", "# Design\n\n**ID**: `cpt-app-component-db`\n\nImplements `cpt-app-fr-x`.\n"),
	)
	assert.True(t, result.IsValid(), "%v", result.Errors)
}

func TestReferenceRuleConstraints(t *testing.T) {
	b := constraints.Bool
	catalog := testCatalog(map[string]constraints.ReferenceRule{
		"DESIGN": {Coverage: b(true), Task: b(true), Headings: []string{"components"}},
	})
	result := run(catalog,
		scan("PRD.md", "PRD", validPRD),
		scan("DESIGN.md", "DESIGN", "# Design\n\n## Notes\n\nSee `cpt-app-fr-x`.\n"),
	)

	counts := result.CountByCode()
	assert.Equal(t, 1, counts["ref-task-missing"])
	assert.Equal(t, 1, counts["ref-heading-misplaced"])
	assert.Zero(t, counts["ref-missing"], "a reference exists even though it is misplaced")

	for _, issue := range result.Errors {
		assert.Equal(t, "DESIGN.md", issue.Path)
		assert.Equal(t, 5, issue.Line)
	}
}

func TestProhibitedReference(t *testing.T) {
	catalog := testCatalog(map[string]constraints.ReferenceRule{
		"DESIGN": {Coverage: constraints.Bool(false)},
	})
	result := run(catalog,
		scan("PRD.md", "PRD", validPRD),
		scan("DESIGN.md", "DESIGN", "# Design\n\nSee `cpt-app-fr-x`.\n"),
	)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "ref-prohibited", result.Errors[0].Code)
	assert.Equal(t, "DESIGN", result.Errors[0].ArtifactKind)
}

func TestDefinitionContract(t *testing.T) {
	prd := "# PRD\n\n## 1. Overview\n\n**ID**: `cpt-app-fr-x`\n\n## 2. Requirements\n\n- [x] `p2` - **ID**: `cpt-app-fr-y`\n"
	design := "# Design\n\nCovers `cpt-app-fr-x` and `cpt-app-fr-y`.\n"
	result := run(testCatalog(nil), scan("PRD.md", "PRD", prd), scan("DESIGN.md", "DESIGN", design))

	counts := result.CountByCode()
	assert.Equal(t, 1, counts["def-task-missing"])
	assert.Equal(t, 1, counts["def-priority-missing"])
	assert.Equal(t, 1, counts["def-heading-misplaced"])
	assert.Len(t, result.Errors, 3)

	for _, issue := range result.Errors {
		assert.Equal(t, "cpt-app-fr-x", issue.ID)
		assert.Equal(t, 5, issue.Line)
	}
	for _, issue := range result.Errors {
		if issue.Code == "def-heading-misplaced" {
			assert.Equal(t, "Requirements", issue.Expected)
			assert.Equal(t, "1. Overview", issue.Found)
		}
	}
}

func TestForbiddenCheckboxAndPriority(t *testing.T) {
	b := constraints.Bool
	doc := &constraints.Document{Artifacts: map[string]constraints.ArtifactConstraints{
		"ADR": {Identifiers: map[string]constraints.IdentifierSpec{
			"adr": {Task: b(false), Priority: b(false)},
		}},
	}}
	result := run(constraints.NewCatalog(doc, []string{"app"}),
		scan("ADR.md", "ADR", "# ADR\n\n- [ ] `p1` - **ID**: `cpt-app-adr-db`\n"))

	counts := result.CountByCode()
	assert.Equal(t, 1, counts["def-task-forbidden"])
	assert.Equal(t, 1, counts["def-priority-forbidden"])
}

func TestKindLegality(t *testing.T) {
	prd := validPRD + "\n**ID**: `cpt-app-component-cache`\n\nSee `cpt-app-widget-x`.\n"
	design := "# Design\n\nCovers `cpt-app-fr-x`.\n"
	result := run(testCatalog(nil), scan("PRD.md", "PRD", prd), scan("DESIGN.md", "DESIGN", design))

	require.Len(t, result.Errors, 1, "%v", result.Errors)
	assert.Equal(t, "id-kind-not-allowed", result.Errors[0].Code)
	assert.Equal(t, "component", result.Errors[0].Found)
	assert.Equal(t, "fr", result.Errors[0].Expected)

	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "id-kind-unknown", result.Warnings[0].Code)
	assert.Equal(t, "widget", result.Warnings[0].Found)
}

func TestRequiredKindMissing(t *testing.T) {
	prd := "# PRD\n\n## 1. Overview\n\n## 2. Requirements\n\nNothing yet.\n"
	result := run(testCatalog(nil), scan("PRD.md", "PRD", prd))

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "id-kind-required", result.Errors[0].Code)
	assert.Equal(t, "fr", result.Errors[0].IDKind)
}

func TestIdentity(t *testing.T) {
	prd := validPRD + "- [ ] `p1` - **ID**: `cpt-app-fr-x`\n"
	design := "# Design\n\nCovers `cpt-app-fr-x` and `cpt-app-fr-gone`.\n"
	result := run(testCatalog(nil), scan("PRD.md", "PRD", prd), scan("DESIGN.md", "DESIGN", design))

	counts := result.CountByCode()
	assert.Equal(t, 1, counts["id-duplicate"])
	assert.Equal(t, 1, counts["ref-undefined"])
	assert.Len(t, result.Errors, 2)
}

func TestHeadings(t *testing.T) {
	prd := "# PRD\n\n## 1. Overview\n\n## 3. Requirements\n\n- [ ] `p1` - **ID**: `cpt-app-fr-x`\n\n## 4. Overview\n"
	design := "# Design\n\nCovers `cpt-app-fr-x`.\n"
	result := run(testCatalog(nil), scan("PRD.md", "PRD", prd), scan("DESIGN.md", "DESIGN", design))

	counts := result.CountByCode()
	assert.Equal(t, 1, counts["heading-numbering"], "resyncs after the gap")
	assert.Equal(t, 1, counts["heading-multiple"])
	assert.Len(t, result.Errors, 2)

	for _, issue := range result.Errors {
		switch issue.Code {
		case "heading-numbering":
			assert.Equal(t, 5, issue.Line)
			assert.Equal(t, "2", issue.Expected)
			assert.Equal(t, "3", issue.Found)
		case "heading-multiple":
			assert.Equal(t, 9, issue.Line)
		}
	}
}

func TestHeadingMissing(t *testing.T) {
	prd := "# PRD\n\n## 1. Requirements\n\n- [ ] `p1` - **ID**: `cpt-app-fr-x`\n"
	design := "# Design\n\nCovers `cpt-app-fr-x`.\n"
	result := run(testCatalog(nil), scan("PRD.md", "PRD", prd), scan("DESIGN.md", "DESIGN", design))

	require.Len(t, result.Errors, 1, "%v", result.Errors)
	assert.Equal(t, "heading-missing", result.Errors[0].Code)
	assert.Equal(t, "Overview", result.Errors[0].Expected)
}

func TestCheckNumbering_ParentScheme(t *testing.T) {
	doc := docscan.Scan("## 2. Design\n\n### 2.1 Cache\n\n### 2.2 Store\n\n### 2.4 Queue\n")
	issues := checkNumbering(doc, doc.Headings, 3)
	require.Len(t, issues, 1)
	assert.Equal(t, "2.3", issues[0].Expected)
	assert.Equal(t, "2.4", issues[0].Found)
}

func TestTOCHeadingIgnored(t *testing.T) {
	prd := "# PRD\n\n## Table of Contents\n\n## 1. Overview\n\n## 2. Requirements\n\n- [ ] `p1` - **ID**: `cpt-app-fr-x`\n"
	design := "# Design\n\nCovers `cpt-app-fr-x`.\n"
	result := run(testCatalog(nil), scan("PRD.md", "PRD", prd), scan("DESIGN.md", "DESIGN", design))
	assert.True(t, result.IsValid(), "%v", result.Errors)
}

func TestHeadingTemplateAndLiteralPatterns(t *testing.T) {
	doc := &constraints.Document{Artifacts: map[string]constraints.ArtifactConstraints{
		"PRD": {
			Headings: []constraints.HeadingSpec{
				{ID: "title", Level: 1, Template: "PRD: {name}"},
				{ID: "sec", Level: 2, Pattern: "Security (SEC)"},
			},
		},
	}}
	catalog := constraints.NewCatalog(doc, []string{"app"})

	result := run(catalog, scan("PRD.md", "PRD", "# PRD: Acme\n\n## Security (SEC)\n\nText.\n"))
	assert.True(t, result.IsValid(), "%v", result.Errors)

	result = run(catalog, scan("PRD.md", "PRD", "# Acme\n\n## Security SEC\n"))
	counts := result.CountByCode()
	assert.Equal(t, 2, counts["heading-missing"], "%v", result.Errors)
}
