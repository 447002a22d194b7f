package coverage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberfabric/cyber-pilot-sub001/internal/codebase"
)

func code(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("x%d := %d", i, i)
	}
	return out
}

func file(path string, parts ...[]string) *codebase.CodeFile {
	var all []string
	for _, p := range parts {
		all = append(all, p...)
	}
	return codebase.NewCodeFile(path, strings.Join(all, "\n")+"\n")
}

func begin(inst string) []string {
	return []string{"// @cpt-begin:cpt-app-flow-x:p1:inst-" + inst}
}

func end(inst string) []string {
	return []string{"// @cpt-end:cpt-app-flow-x:p1:inst-" + inst}
}

func TestScopeOnlyFile(t *testing.T) {
	f := file("x.go",
		[]string{"package x", "", "// @cpt-flow:cpt-app-flow-x:p1", "/* block", "comment */"},
		code(9),
	)
	fc := FileFromCode(f)

	assert.Equal(t, 10, fc.EffectiveLines)
	assert.Equal(t, fc.EffectiveLines, fc.CoveredLines)
	assert.True(t, fc.HasScopeOnly)
	assert.Equal(t, 0.0, fc.Granularity)
	assert.Equal(t, 100.0, fc.CoveragePct)
	assert.Equal(t, 1, fc.ScopeMarkers)
	assert.Equal(t, []LineRange{{Start: 1, End: 14}}, fc.CoveredRanges)
	assert.Empty(t, fc.UncoveredRanges)
}

func TestBlockCoverage(t *testing.T) {
	f := file("x.go",
		[]string{"package x"},
		begin("a"), code(4), end("a"),
		code(5),
	)
	fc := FileFromCode(f)

	assert.Equal(t, 10, fc.EffectiveLines)
	assert.Equal(t, 4, fc.CoveredLines)
	assert.InDelta(t, 40.0, fc.CoveragePct, 1e-9)
	assert.False(t, fc.HasScopeOnly)
	assert.Equal(t, 1, fc.BlockMarkers)
	assert.InDelta(t, Granularity(1, 4), fc.Granularity, 1e-9)
	assert.Equal(t, 12, fc.TotalLines)
	assert.Equal(t, []LineRange{{Start: 3, End: 6}}, fc.CoveredRanges)
	assert.Equal(t, []LineRange{{Start: 1, End: 1}, {Start: 8, End: 12}}, fc.UncoveredRanges)
}

func TestUnclosedBlockCoversNothing(t *testing.T) {
	f := file("x.go", begin("a"), code(4))
	fc := FileFromCode(f)
	assert.Equal(t, 0, fc.CoveredLines)
	assert.Equal(t, 0.0, fc.Granularity)
}

func TestGranularityMonotonic(t *testing.T) {
	one := FileFromCode(file("one.go", begin("a"), code(10), end("a")))
	two := FileFromCode(file("two.go", begin("a"), code(5), end("a"), begin("b"), code(5), end("b")))

	require.Equal(t, one.CoveredLines, two.CoveredLines)
	assert.Greater(t, two.Granularity, one.Granularity)

	for n := 1; n < 20; n++ {
		assert.Greater(t, Granularity(n+1, 40), Granularity(n, 40))
	}
}

func TestUnknownExtension(t *testing.T) {
	f := codebase.NewCodeFile("notes.txt", "// not a comment here\n\n# nor this\n")
	assert.Equal(t, 2, FileFromCode(f).EffectiveLines)
}

func TestPythonDocstring(t *testing.T) {
	f := codebase.NewCodeFile("x.py", strings.Join([]string{
		`"""Module docs.`,
		`more docs`,
		`"""`,
		`# comment`,
		`x = 1`,
		`"""one-liner"""`,
		`y = 2`,
	}, "\n"))
	assert.Equal(t, 2, FileFromCode(f).EffectiveLines)
}

func TestAggregate(t *testing.T) {
	files := []FileCoverage{
		{Path: "b.go", EffectiveLines: 100, CoveredLines: 50, Granularity: 0.8},
		{Path: "a.go", EffectiveLines: 100, CoveredLines: 50, Granularity: 0.0, HasScopeOnly: true},
		{Path: "c.go", EffectiveLines: 200},
	}
	r := Aggregate(files)

	assert.Equal(t, 400, r.EffectiveLines)
	assert.Equal(t, 100, r.CoveredLines)
	assert.InDelta(t, 25.0, r.CoveragePct, 1e-9, "weighted by size, not averaged")
	assert.InDelta(t, 0.4, r.GranularityScore, 1e-9)
	assert.Equal(t, []string{"a.go"}, r.FlaggedFiles)
}

func TestAggregate_NothingCovered(t *testing.T) {
	r := Aggregate([]FileCoverage{{Path: "a.go", EffectiveLines: 10, Granularity: 0.9}})
	assert.Equal(t, 0.0, r.CoveragePct)
	assert.Equal(t, 0.0, r.GranularityScore)
	assert.Empty(t, r.FlaggedFiles)

	empty := Aggregate(nil)
	assert.Equal(t, 0.0, empty.CoveragePct)
	assert.NotNil(t, empty.FlaggedFiles)
}

func TestCheck(t *testing.T) {
	r := &Report{CoveragePct: 40, GranularityScore: 0.2, FlaggedFiles: []string{"a.go"}}

	result := r.Check(50, 0.5)
	counts := result.CountByCode()
	assert.Equal(t, 1, counts["coverage-below-threshold"])
	assert.Equal(t, 1, counts["granularity-below-threshold"])
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "a.go", result.Warnings[0].Path)

	assert.True(t, r.Check(0, 0).IsValid())
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i, body := range []string{
		"// @cpt-flow:cpt-app-flow-x:p1\nx := 1\ny := 2\n",
		"x := 1\ny := 2\n",
	} {
		p := filepath.Join(dir, fmt.Sprintf("f%d.go", i))
		require.NoError(t, os.WriteFile(p, []byte(body), 0644))
		paths = append(paths, p)
	}

	r, err := Scan(context.Background(), codebase.NewCache(), []string{paths[1], paths[0]}, 2)
	require.NoError(t, err)
	require.Len(t, r.Files, 2)
	assert.Equal(t, paths[0], r.Files[0].Path)
	assert.Equal(t, 4, r.EffectiveLines)
	assert.Equal(t, 2, r.CoveredLines)
	assert.InDelta(t, 50.0, r.CoveragePct, 1e-9)
	assert.Equal(t, []string{paths[0]}, r.FlaggedFiles)

	fc, err := ScanFile(paths[0])
	require.NoError(t, err)
	assert.True(t, fc.HasScopeOnly)

	_, err = ScanFile(filepath.Join(dir, "nope.go"))
	assert.Error(t, err)
}
