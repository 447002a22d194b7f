package toc

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cyberfabric/cyber-pilot-sub001/internal/markers"
	"github.com/cyberfabric/cyber-pilot-sub001/internal/report"
)

// Issue codes.
const (
	CodeMissing         = "toc-missing"
	CodeAnchorBroken    = "toc-anchor-broken"
	CodeHeadingNotInTOC = "toc-heading-not-in-toc"
	CodeStale           = "toc-stale"
)

var anchorRefRe = regexp.MustCompile(`\]\(#([^)\s]+)\)`)

// Validate checks the TOC of one document. A missing TOC, a link to a
// non-existent anchor, and a listed-heading gap are errors. When none of
// those occur, a TOC that differs from a fresh rendering is a stale warning.
func Validate(path, content string, opts Options) report.Result {
	res := report.NewResult()
	lines := markers.SplitLines(content)
	all := scanHeadings(lines)
	qualifying := filterHeadings(all, opts)

	r, ok := findMarkerRegion(lines)
	if !ok {
		r, ok = findHeadingRegion(lines)
	}
	if !ok {
		if len(qualifying) > 0 {
			res.AddError(report.Issue{
				Code:    CodeMissing,
				Message: "document has headings but no table of contents",
				Path:    path,
			})
		}
		return res
	}

	valid := make(map[string]bool, len(all))
	for _, h := range all {
		valid[h.Anchor] = true
	}

	listed := make(map[string]bool)
	for i := r.bodyStart; i < r.bodyEnd; i++ {
		for _, m := range anchorRefRe.FindAllStringSubmatch(lines[i], -1) {
			anchor := m[1]
			listed[anchor] = true
			if !valid[anchor] {
				res.AddError(report.Issue{
					Code:    CodeAnchorBroken,
					Message: fmt.Sprintf("table of contents links to #%s, which matches no heading", anchor),
					Path:    path,
					Line:    i + 1,
					Found:   "#" + anchor,
				})
			}
		}
	}

	for _, h := range qualifying {
		if listed[h.Anchor] {
			continue
		}
		res.AddError(report.Issue{
			Code:     CodeHeadingNotInTOC,
			Message:  fmt.Sprintf("heading %q is not listed in the table of contents", h.Text),
			Path:     path,
			Line:     h.Line,
			Expected: "#" + h.Anchor,
			Found:    h.Text,
		})
	}
	if res.HasErrors() {
		return res
	}

	want := normalizeBody(markers.SplitLines(Render(qualifying, opts)))
	got := normalizeBody(lines[r.bodyStart:r.bodyEnd])
	if want != got {
		res.AddWarning(report.Issue{
			Code:    CodeStale,
			Message: "table of contents is out of date; regenerate it",
			Path:    path,
			Line:    r.start + 1,
		})
	}
	return res
}

// normalizeBody drops blank lines and HTML comments so only the entries are
// compared.
func normalizeBody(lines []string) string {
	var out []string
	inComment := false
	for _, l := range lines {
		t := strings.TrimSpace(l)
		if inComment {
			if strings.Contains(l, "-->") {
				inComment = false
			}
			continue
		}
		if t == "" {
			continue
		}
		if strings.HasPrefix(t, "<!--") {
			inComment = !strings.Contains(t, "-->")
			continue
		}
		out = append(out, strings.TrimRight(l, " \t"))
	}
	return strings.Join(out, "\n")
}
