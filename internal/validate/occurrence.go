package validate

import (
	"fmt"
	"strings"

	"github.com/cyberfabric/cyber-pilot-sub001/internal/constraints"
	"github.com/cyberfabric/cyber-pilot-sub001/internal/report"
)

// occurrenceRule is the task/priority/headings contract shared by
// identifier specs (checked on definitions) and reference rules (checked on
// references).
type occurrenceRule struct {
	task     *bool
	priority *bool
	headings []string
}

// check applies the rule to one occurrence. prefix is "def" or "ref" and
// namespaces the issue codes. ac supplies the heading specs of the artifact
// kind the occurrence sits in.
func (r occurrenceRule) check(occ Occurrence, ac constraints.ArtifactConstraints, prefix, what string) []report.Issue {
	var issues []report.Issue

	if r.task != nil {
		switch {
		case *r.task && !occ.Hit.HasTask:
			issue := occ.Issue(prefix+"-task-missing", fmt.Sprintf("%s of %s must carry a task checkbox", what, occ.Hit.ID))
			issue.Expected, issue.Found = "[ ]", "none"
			issues = append(issues, issue)
		case !*r.task && occ.Hit.HasTask:
			issue := occ.Issue(prefix+"-task-forbidden", fmt.Sprintf("%s of %s must not carry a task checkbox", what, occ.Hit.ID))
			issue.Expected, issue.Found = "none", checkbox(occ.Hit.Checked)
			issues = append(issues, issue)
		}
	}

	if r.priority != nil {
		switch {
		case *r.priority && occ.Hit.Priority == "":
			issue := occ.Issue(prefix+"-priority-missing", fmt.Sprintf("%s of %s must carry a priority marker", what, occ.Hit.ID))
			issue.Expected, issue.Found = "pN", "none"
			issues = append(issues, issue)
		case !*r.priority && occ.Hit.Priority != "":
			issue := occ.Issue(prefix+"-priority-forbidden", fmt.Sprintf("%s of %s must not carry a priority marker", what, occ.Hit.ID))
			issue.Expected, issue.Found = "none", occ.Hit.Priority
			issues = append(issues, issue)
		}
	}

	if specs := resolveHeadings(ac, r.headings); len(specs) > 0 && !underAny(occ, specs) {
		found := "(no heading)"
		if h, ok := occ.Hit.Heading(); ok {
			found = h.Text
		}
		expected := make([]string, len(specs))
		for i, s := range specs {
			expected[i] = s.Describe()
		}
		issue := occ.Issue(prefix+"-heading-misplaced",
			fmt.Sprintf("%s of %s must appear under %s, found under %q", what, occ.Hit.ID, strings.Join(quoteAll(expected), " or "), found))
		issue.Expected = strings.Join(expected, " | ")
		issue.Found = found
		issues = append(issues, issue)
	}

	return issues
}

// resolveHeadings maps heading ids to their specs. Ids the artifact kind
// does not declare are skipped.
func resolveHeadings(ac constraints.ArtifactConstraints, ids []string) []constraints.HeadingSpec {
	var specs []constraints.HeadingSpec
	for _, id := range ids {
		if spec, ok := ac.Heading(id); ok {
			specs = append(specs, spec)
		}
	}
	return specs
}

// underAny reports whether any heading above the occurrence matches one of
// the specs.
func underAny(occ Occurrence, specs []constraints.HeadingSpec) bool {
	for _, h := range occ.Hit.Headings {
		for _, s := range specs {
			if s.Matches(h.Level, h.Text) {
				return true
			}
		}
	}
	return false
}

func checkbox(checked bool) string {
	if checked {
		return "[x]"
	}
	return "[ ]"
}

func quoteAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}
