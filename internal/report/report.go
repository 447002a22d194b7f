// Package report holds the issue and result types shared by every cpt
// validator. Validators never stop at the first problem: they append to a
// Result and the caller decides the exit status from HasErrors.
package report

import (
	"fmt"
	"sort"
)

// Issue is one structured finding. Code is machine-readable (e.g.
// "ref-missing"); the remaining fields carry enough context to act on the
// finding without re-reading the source.
type Issue struct {
	Code    string `json:"code"`
	Message string `json:"message"`

	// Path and Line locate the finding; Line is 1-based, 0 when unknown.
	Path string `json:"path,omitempty"`
	Line int    `json:"line,omitempty"`

	ArtifactKind string `json:"artifact_kind,omitempty"`
	IDKind       string `json:"id_kind,omitempty"`
	ID           string `json:"id,omitempty"`

	Expected string `json:"expected,omitempty"`
	Found    string `json:"found,omitempty"`

	Details map[string]interface{} `json:"details,omitempty"`
}

// Location renders "path:line" (or just the path).
func (i Issue) Location() string {
	switch {
	case i.Path == "":
		return ""
	case i.Line > 0:
		return fmt.Sprintf("%s:%d", i.Path, i.Line)
	default:
		return i.Path
	}
}

func (i Issue) String() string {
	if loc := i.Location(); loc != "" {
		return fmt.Sprintf("%s: [%s] %s", loc, i.Code, i.Message)
	}
	return fmt.Sprintf("[%s] %s", i.Code, i.Message)
}

// Result collects errors and warnings.
type Result struct {
	// Errors are hard failures; any error makes the run fail.
	Errors []Issue `json:"errors"`

	// Warnings are reported but do not fail the run.
	Warnings []Issue `json:"warnings"`
}

// NewResult returns an empty result with non-nil slices, so it encodes as
// empty JSON arrays.
func NewResult() Result {
	return Result{
		Errors:   make([]Issue, 0),
		Warnings: make([]Issue, 0),
	}
}

// AddError appends an error.
func (r *Result) AddError(i Issue) {
	r.Errors = append(r.Errors, i)
}

// AddWarning appends a warning.
func (r *Result) AddWarning(i Issue) {
	r.Warnings = append(r.Warnings, i)
}

// Merge appends all findings from other.
func (r *Result) Merge(other Result) {
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// HasErrors returns true if the result contains any errors.
func (r Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if the result contains any warnings.
func (r Result) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// IsValid returns true if there are no errors (warnings are acceptable).
func (r Result) IsValid() bool {
	return !r.HasErrors()
}

// Sort orders errors and warnings by path, line, code and message so
// output is stable across runs.
func (r *Result) Sort() {
	sortIssues(r.Errors)
	sortIssues(r.Warnings)
}

func sortIssues(issues []Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.Message < b.Message
	})
}

// CountByCode tallies errors by code.
func (r Result) CountByCode() map[string]int {
	counts := make(map[string]int)
	for _, i := range r.Errors {
		counts[i.Code]++
	}
	return counts
}
