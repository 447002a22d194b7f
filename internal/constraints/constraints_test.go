package constraints

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument() *Document {
	return &Document{Artifacts: map[string]ArtifactConstraints{
		"PRD": {
			TOC: Bool(false),
			Headings: []HeadingSpec{
				{ID: "overview", Level: 2, Pattern: "Overview"},
				{ID: "frs", Level: 2, Pattern: "Functional Requirements", Numbered: Bool(true), Examples: []string{"2. Functional Requirements"}},
			},
			Identifiers: map[string]IdentifierSpec{
				"fr": {
					Required: Bool(true),
					Task:     Bool(true),
					Priority: Bool(false),
					Template: "cpt-{system}-fr-{slug}",
					Headings: []string{"frs"},
					References: map[string]ReferenceRule{
						"DESIGN": {Coverage: Bool(true), Headings: []string{"reqs"}},
					},
				},
			},
		},
		"DESIGN": {
			Headings: []HeadingSpec{{ID: "reqs", Level: 2, Pattern: "Requirements"}},
			Identifiers: map[string]IdentifierSpec{
				"component": {ToCode: Bool(true)},
			},
		},
	}}
}

func TestMarshalParse_RoundTrip(t *testing.T) {
	doc := sampleDocument()

	data, err := Marshal(doc)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "null")
	assert.Contains(t, string(data), "toc = false")

	back, err := Parse(data)
	require.NoError(t, err)

	prd := back.Artifacts["PRD"]
	require.NotNil(t, prd.TOC)
	assert.False(t, *prd.TOC)
	assert.Equal(t, doc.Artifacts["PRD"].Headings, prd.Headings)

	fr := prd.Identifiers["fr"]
	assert.Equal(t, "fr", fr.Kind)
	assert.True(t, fr.IsRequired())
	require.NotNil(t, fr.Task)
	assert.True(t, *fr.Task)
	require.NotNil(t, fr.Priority)
	assert.False(t, *fr.Priority)
	assert.Nil(t, fr.ToCode)
	assert.Equal(t, []string{"frs"}, fr.Headings)
	assert.Equal(t, "cpt-{system}-fr-{slug}", fr.Template)
	assert.True(t, *fr.References["DESIGN"].Coverage)
	assert.Equal(t, []string{"reqs"}, fr.References["DESIGN"].Headings)

	design := back.Artifacts["DESIGN"]
	assert.Nil(t, design.TOC)
	assert.True(t, design.WantsTOC())
	assert.True(t, design.Identifiers["component"].IsToCode())
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "constraints.toml")
	require.NoError(t, Save(path, sampleDocument()))

	doc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"DESIGN", "PRD"}, doc.Kinds())
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("[artifacts\n"))
	assert.Error(t, err)
}

func TestDocumentCheck(t *testing.T) {
	doc := sampleDocument()
	assert.Empty(t, doc.Check())

	fr := doc.Artifacts["PRD"].Identifiers["fr"]
	fr.Headings = []string{"nope"}
	fr.References["QA"] = ReferenceRule{Coverage: Bool(true)}
	doc.Artifacts["PRD"].Identifiers["fr"] = fr

	problems := doc.Check()
	require.Len(t, problems, 2)
	assert.Contains(t, problems[0], `unknown artifact kind "QA"`)
	assert.Contains(t, problems[1], `heading "nope"`)
}

func TestHeadingSpec_Matches(t *testing.T) {
	literal := HeadingSpec{Level: 2, Pattern: "Functional Requirements"}
	assert.True(t, literal.Matches(2, "Functional Requirements"))
	assert.True(t, literal.Matches(2, "2. functional requirements"))
	assert.False(t, literal.Matches(3, "Functional Requirements"))
	assert.False(t, literal.Matches(2, "Requirements"))

	regex := HeadingSpec{Level: 3, Pattern: `Flow: .+`}
	assert.False(t, regex.PatternIsLiteral())
	assert.True(t, regex.Matches(3, "Flow: Login"))
	assert.True(t, regex.Matches(3, "1.2 Flow: Login"))
	assert.False(t, regex.Matches(3, "Login"))

	anyText := HeadingSpec{Level: 2}
	assert.True(t, anyText.Matches(2, "whatever"))
}

func TestHeadingSpec_MatchesTable(t *testing.T) {
	tests := []struct {
		name  string
		spec  HeadingSpec
		level int
		text  string
		want  bool
	}{
		{"parenthesized literal", HeadingSpec{Level: 2, Pattern: "Security (SEC)"}, 2, "Security (SEC)", true},
		{"parenthesized literal numbered", HeadingSpec{Level: 2, Pattern: "Security (SEC)"}, 2, "3. security (sec)", true},
		{"parenthesized literal is not a group", HeadingSpec{Level: 2, Pattern: "Security (SEC)"}, 2, "Security SEC", false},
		{"question mark literal", HeadingSpec{Level: 2, Pattern: "Why now?"}, 2, "Why now?", true},
		{"regex matches itself literally", HeadingSpec{Level: 2, Pattern: "Functional Requirements.*"}, 2, "Functional Requirements.*", true},
		{"regex still applies", HeadingSpec{Level: 2, Pattern: "Functional Requirements.*"}, 2, "Functional Requirements (v2)", true},
		{"template placeholder", HeadingSpec{Level: 1, Template: "PRD: {name}"}, 1, "PRD: Acme", true},
		{"template placeholder case", HeadingSpec{Level: 1, Template: "PRD: {name}"}, 1, "prd: Acme Cloud", true},
		{"template placeholder needs text", HeadingSpec{Level: 1, Template: "PRD: {name}"}, 1, "PRD: ", false},
		{"template literal parts", HeadingSpec{Level: 1, Template: "PRD: {name}"}, 1, "Design: Acme", false},
		{"template metacharacters quoted", HeadingSpec{Level: 2, Template: "Flow (v{n}.x)"}, 2, "Flow (v2.x)", true},
		{"template metacharacters not regex", HeadingSpec{Level: 2, Template: "Flow (v{n}.x)"}, 2, "Flow v2ax", false},
		{"template without placeholders", HeadingSpec{Level: 2, Template: "Scope"}, 2, "1. Scope", true},
		{"template wrong level", HeadingSpec{Level: 1, Template: "PRD: {name}"}, 2, "PRD: Acme", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.spec.Matches(tt.level, tt.text))
		})
	}
}

func TestHeadingSpec_PatternIsLiteral(t *testing.T) {
	assert.True(t, HeadingSpec{Pattern: "Security (SEC)"}.PatternIsLiteral())
	assert.True(t, HeadingSpec{Pattern: "Release 1.0"}.PatternIsLiteral())
	assert.True(t, HeadingSpec{Pattern: "Why now?"}.PatternIsLiteral())
	assert.False(t, HeadingSpec{Pattern: "Functional Requirements.*"}.PatternIsLiteral())
	assert.False(t, HeadingSpec{Pattern: `\d+ Steps`}.PatternIsLiteral())
	assert.False(t, HeadingSpec{Pattern: "(?i)scope"}.PatternIsLiteral())
	assert.False(t, HeadingSpec{Pattern: "Goals|Objectives"}.PatternIsLiteral())
}

func TestHeadingSpec_Defaults(t *testing.T) {
	h := HeadingSpec{}
	assert.True(t, h.IsRequired())
	assert.True(t, h.AllowsMultiple())
	assert.False(t, h.IsNumbered())

	h.Required = Bool(false)
	h.Multiple = Bool(false)
	assert.False(t, h.IsRequired())
	assert.False(t, h.AllowsMultiple())
}

func TestStripNumbering(t *testing.T) {
	assert.Equal(t, "Scope", StripNumbering("1. Scope"))
	assert.Equal(t, "Scope", StripNumbering("2.3 Scope"))
	assert.Equal(t, "Scope", StripNumbering("Scope"))
	assert.Equal(t, "2024 roadmap", StripNumbering("2024 roadmap"), "needs a separator after digits")
}

func TestCatalog_ParseID(t *testing.T) {
	cat := NewCatalog(sampleDocument(), []string{"app", "app-v2"})

	tests := []struct {
		name   string
		raw    string
		system string
		kind   string
		chain  []Segment
		unrec  bool
		err    bool
	}{
		{"simple", "cpt-app-fr-login", "app", "fr", []Segment{{"fr", "login"}}, false, false},
		{"longest system wins", "cpt-app-v2-fr-login", "app-v2", "fr", []Segment{{"fr", "login"}}, false, false},
		{"multi-token slug", "cpt-app-fr-user-login-flow", "app", "fr", nil, false, false},
		{"composite", "cpt-app-fr-auth-component-db", "app", "component", []Segment{{"fr", "auth"}, {"component", "db"}}, false, false},
		{"unknown kind", "cpt-app-widget-x", "app", "", nil, true, false},
		{"unknown system", "cpt-zzz-fr-x", "", "", nil, false, true},
		{"no prefix", "app-fr-x", "", "", nil, false, true},
		{"no slug", "cpt-app-fr", "", "", nil, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := cat.ParseID(tt.raw)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.unrec, id.Unrecognized)
			if tt.unrec {
				return
			}
			assert.Equal(t, tt.system, id.System)
			assert.Equal(t, tt.kind, id.Kind())
			if tt.name == "multi-token slug" {
				assert.Equal(t, "user-login-flow", id.Chain[0].Slug)
				return
			}
			assert.Equal(t, tt.chain, id.Chain)
		})
	}
}

func TestCatalog_NoSystems(t *testing.T) {
	cat := NewCatalog(sampleDocument(), nil)
	id, err := cat.ParseID("cpt-shop-fr-checkout")
	require.NoError(t, err)
	assert.Equal(t, "shop", id.System)
	assert.Equal(t, "fr", id.Kind())
}

func TestCatalog_KnownKinds(t *testing.T) {
	cat := NewCatalog(sampleDocument(), []string{"app"})
	assert.True(t, cat.KnownKind("fr"))
	assert.True(t, cat.KnownKind("component"))
	assert.False(t, cat.KnownKind("widget"))
	assert.Equal(t, []string{"PRD"}, cat.KindOwners("fr"))
	assert.Equal(t, []string{"app-v2", "app"}, NewCatalog(nil, []string{"app", "app-v2", "app"}).Systems())
}
