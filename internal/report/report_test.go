package report

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult_MergeAndStatus(t *testing.T) {
	r := NewResult()
	assert.True(t, r.IsValid())
	assert.False(t, r.HasWarnings())

	other := NewResult()
	other.AddWarning(Issue{Code: "toc-stale", Message: "stale"})
	r.Merge(other)
	assert.True(t, r.IsValid())
	assert.True(t, r.HasWarnings())

	r.AddError(Issue{Code: "ref-missing", Message: "missing"})
	assert.True(t, r.HasErrors())
	assert.False(t, r.IsValid())
	assert.Equal(t, map[string]int{"ref-missing": 1}, r.CountByCode())
}

func TestResult_Sort(t *testing.T) {
	r := NewResult()
	r.AddError(Issue{Code: "b", Path: "b.md", Line: 1})
	r.AddError(Issue{Code: "z", Path: "a.md", Line: 9})
	r.AddError(Issue{Code: "a", Path: "a.md", Line: 9})
	r.AddError(Issue{Code: "c", Path: "a.md", Line: 2})
	r.Sort()

	var got []string
	for _, i := range r.Errors {
		got = append(got, i.Code)
	}
	assert.Equal(t, []string{"c", "a", "z", "b"}, got)
}

func TestIssue_String(t *testing.T) {
	assert.Equal(t, "a.md:3: [x] msg", Issue{Code: "x", Message: "msg", Path: "a.md", Line: 3}.String())
	assert.Equal(t, "a.md: [x] msg", Issue{Code: "x", Message: "msg", Path: "a.md"}.String())
	assert.Equal(t, "[x] msg", Issue{Code: "x", Message: "msg"}.String())
}

func TestResult_JSONEmptyArrays(t *testing.T) {
	data, err := json.Marshal(NewResult())
	require.NoError(t, err)
	assert.JSONEq(t, `{"errors":[],"warnings":[]}`, string(data))
}
