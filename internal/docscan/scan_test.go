package docscan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const featureDoc = `# Feature: Login

## 1. Flows

### Login flow

- [x] ` + "`p1`" + ` - **ID**: ` + "`cpt-app-flow-login`" + `

Implements ` + "`cpt-app-fr-auth`" + `.

#### Steps

1. [x] - ` + "`p1`" + ` - Read credentials - ` + "`inst-read`" + `
2. [ ] - ` + "`p1`" + ` - Check password - ` + "`inst-check`" + `

### Logout flow

**ID**: ` + "`cpt-app-flow-logout`" + `

` + "```md" + `
**ID**: ` + "`cpt-app-flow-ignored`" + `
` + "```" + `

<!-- ` + "`cpt-app-fr-commented`" + ` -->
- [ ] ` + "`p2`" + ` - ` + "`cpt-app-fr-auth`" + ` and ` + "`cpt-app-nfr-speed`" + `
`

func TestScan_DefinitionsAndReferences(t *testing.T) {
	doc := Scan(featureDoc)

	defs := doc.Definitions()
	require.Len(t, defs, 2)

	login := defs[0]
	assert.Equal(t, "cpt-app-flow-login", login.ID)
	assert.Equal(t, 7, login.Line)
	assert.True(t, login.HasTask)
	assert.True(t, login.Checked)
	assert.Equal(t, "p1", login.Priority)
	h, ok := login.Heading()
	require.True(t, ok)
	assert.Equal(t, "Login flow", h.Text)
	require.Len(t, login.Headings, 3)
	assert.Equal(t, "1. Flows", login.Headings[1].Text)

	logout := defs[1]
	assert.Equal(t, "cpt-app-flow-logout", logout.ID)
	assert.False(t, logout.HasTask)
	assert.Empty(t, logout.Priority)

	refs := doc.References()
	require.Len(t, refs, 3)
	assert.Equal(t, "cpt-app-fr-auth", refs[0].ID)
	assert.Equal(t, 9, refs[0].Line)
	assert.False(t, refs[0].HasTask)

	assert.Equal(t, "cpt-app-fr-auth", refs[1].ID)
	assert.True(t, refs[1].HasTask)
	assert.False(t, refs[1].Checked)
	assert.Equal(t, "p2", refs[1].Priority)
	assert.Equal(t, "cpt-app-nfr-speed", refs[2].ID)
	assert.Equal(t, refs[1].Line, refs[2].Line)
}

func TestScan_Instructions(t *testing.T) {
	doc := Scan(featureDoc)

	insts := doc.Instructions["cpt-app-flow-login"]
	require.Len(t, insts, 2)
	assert.Equal(t, Instruction{Slug: "read", Line: 13, Checked: true}, insts[0])
	assert.Equal(t, "check", insts[1].Slug)
	assert.False(t, insts[1].Checked)

	assert.Empty(t, doc.Instructions["cpt-app-flow-logout"])
}

func TestScan_HeadingStack(t *testing.T) {
	doc := Scan(featureDoc)
	require.Len(t, doc.Headings, 5)
	assert.Equal(t, Heading{Level: 3, Text: "Logout flow", Line: 16}, doc.Headings[4])
}

func TestScan_DefinitionLineWithExtraReference(t *testing.T) {
	doc := Scan("**ID**: `cpt-app-fr-a` (see `cpt-app-fr-b`)\n")
	require.Len(t, doc.Definitions(), 1)
	refs := doc.References()
	require.Len(t, refs, 1)
	assert.Equal(t, "cpt-app-fr-b", refs[0].ID)
}

func TestScanFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "PRD.md")
	require.NoError(t, os.WriteFile(path, []byte(featureDoc), 0644))

	doc, err := ScanFile(path, "FEATURE")
	require.NoError(t, err)
	assert.Equal(t, "FEATURE", doc.Kind)
	assert.Equal(t, path, doc.Path)
	assert.Len(t, doc.Hits, 5)

	_, err = ScanFile(filepath.Join(t.TempDir(), "nope.md"), "PRD")
	assert.Error(t, err)
}
