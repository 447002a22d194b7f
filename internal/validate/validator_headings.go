package validate

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cyberfabric/cyber-pilot-sub001/internal/docscan"
	"github.com/cyberfabric/cyber-pilot-sub001/internal/report"
	"github.com/cyberfabric/cyber-pilot-sub001/internal/toc"
)

// HeadingValidator checks document structure against the artifact kind's
// heading specs: required headings present, single headings not repeated,
// numbered levels numbered consecutively.
type HeadingValidator struct{}

// Name returns the validator identifier.
func (v *HeadingValidator) Name() string {
	return "headings"
}

// Priority returns 20 (per-artifact rule).
func (v *HeadingValidator) Priority() int {
	return 20
}

// Validate checks the headings of every constrained document.
func (v *HeadingValidator) Validate(ctx context.Context, in *Input) report.Result {
	result := report.NewResult()
	for _, doc := range in.Documents {
		ac, ok := in.Catalog.Artifact(doc.Kind)
		if !ok {
			continue
		}
		headings := contentHeadings(doc)

		levels := make(map[int]bool)
		for _, spec := range ac.Headings {
			var matches []docscan.Heading
			for _, h := range headings {
				if spec.Matches(h.Level, h.Text) {
					matches = append(matches, h)
				}
			}
			if spec.IsRequired() && len(matches) == 0 {
				result.AddError(report.Issue{
					Code:         "heading-missing",
					Message:      fmt.Sprintf("required heading %s %q is missing", strings.Repeat("#", max(spec.Level, 1)), spec.Describe()),
					Path:         doc.Path,
					ArtifactKind: doc.Kind,
					Expected:     spec.Describe(),
					Details:      map[string]interface{}{"heading_id": spec.ID},
				})
			}
			if !spec.AllowsMultiple() && len(matches) > 1 {
				for _, h := range matches[1:] {
					result.AddError(report.Issue{
						Code:         "heading-multiple",
						Message:      fmt.Sprintf("heading %q may appear only once (first at line %d)", spec.Describe(), matches[0].Line),
						Path:         doc.Path,
						Line:         h.Line,
						ArtifactKind: doc.Kind,
						Expected:     spec.Describe(),
						Found:        h.Text,
						Details:      map[string]interface{}{"heading_id": spec.ID},
					})
				}
			}
			if spec.IsNumbered() && spec.Level > 0 {
				levels[spec.Level] = true
			}
		}

		sorted := make([]int, 0, len(levels))
		for l := range levels {
			sorted = append(sorted, l)
		}
		sort.Ints(sorted)
		for _, level := range sorted {
			for _, issue := range checkNumbering(doc, headings, level) {
				result.AddError(issue)
			}
		}
	}
	return result
}

// contentHeadings drops the table of contents heading, which is never part
// of the declared structure.
func contentHeadings(doc *docscan.Document) []docscan.Heading {
	out := make([]docscan.Heading, 0, len(doc.Headings))
	for _, h := range doc.Headings {
		if !toc.IsTOCHeading(h.Text) {
			out = append(out, h)
		}
	}
	return out
}

var numberPrefixRe = regexp.MustCompile(`^(\d+(?:\.\d+)*)\.?\s+`)

func numberPrefix(text string) string {
	if m := numberPrefixRe.FindStringSubmatch(strings.TrimSpace(text)); m != nil {
		return m[1]
	}
	return ""
}

// checkNumbering walks the headings at one level. Each run of siblings
// (reset by any shallower heading) must be numbered 1, 2, 3... either
// plainly or continuing the parent's prefix ("2.1", "2.2" under "2.").
// After a mismatch the count resyncs to the number found, so one gap is
// reported once.
func checkNumbering(doc *docscan.Document, headings []docscan.Heading, level int) []report.Issue {
	var issues []report.Issue
	parent := ""
	n := 0
	for _, h := range headings {
		if h.Level < level {
			parent = numberPrefix(h.Text)
			n = 0
			continue
		}
		if h.Level != level {
			continue
		}
		n++
		want := strconv.Itoa(n)
		found := numberPrefix(h.Text)
		if found == want || (parent != "" && found == parent+"."+want) {
			continue
		}

		expected := want
		if parent != "" && strings.Contains(found, ".") {
			expected = parent + "." + want
		}
		shown := found
		if shown == "" {
			shown = "(none)"
		}
		issues = append(issues, report.Issue{
			Code:         "heading-numbering",
			Message:      fmt.Sprintf("heading %q: expected number %s, found %s", h.Text, expected, shown),
			Path:         doc.Path,
			Line:         h.Line,
			ArtifactKind: doc.Kind,
			Expected:     expected,
			Found:        found,
		})

		if found != "" {
			parts := strings.Split(found, ".")
			if k, err := strconv.Atoi(parts[len(parts)-1]); err == nil {
				n = k
			}
		}
	}
	return issues
}

