// Package docscan reads artifact Markdown and reports every cpt identifier
// occurrence with the context validators need: the heading it sits under,
// its task checkbox and its priority marker.
//
// A definition is a line carrying `**ID**:` followed by a backticked cpt id,
// optionally preceded by a checkbox and a backticked priority:
//
//	- [x] `p1` - **ID**: `cpt-app-fr-login`
//
// Any other backticked cpt id is a reference. Backticked `inst-{slug}`
// tokens are instructions of the most recent definition. Fenced code and
// HTML comments are ignored.
package docscan

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/cyberfabric/cyber-pilot-sub001/internal/markers"
	"github.com/cyberfabric/cyber-pilot-sub001/internal/toc"
)

// HitType tells definitions from references.
type HitType int

const (
	Definition HitType = iota
	Reference
)

func (t HitType) String() string {
	if t == Definition {
		return "definition"
	}
	return "reference"
}

// Heading is a heading in the scanned document.
type Heading struct {
	Level int
	Text  string
	Line  int
}

// Hit is one identifier occurrence.
type Hit struct {
	ID       string
	Type     HitType
	Line     int
	HasTask  bool // the line carries a [ ] / [x] checkbox
	Checked  bool
	Priority string // "p1".."pN", empty when absent
	// Headings is the heading path above the hit, outermost first.
	Headings []Heading
}

// Heading returns the innermost heading above the hit.
func (h Hit) Heading() (Heading, bool) {
	if len(h.Headings) == 0 {
		return Heading{}, false
	}
	return h.Headings[len(h.Headings)-1], true
}

// Instruction is one CDSL step slug attached to a definition.
type Instruction struct {
	Slug    string // without the "inst-" prefix
	Line    int
	Checked bool
}

// Document is the scan result for one artifact file.
type Document struct {
	Path     string
	Kind     string // artifact kind from the registry
	Headings []Heading
	Hits     []Hit
	// Instructions maps a definition id to its instructions in line order.
	Instructions map[string][]Instruction
}

var (
	definitionRe = regexp.MustCompile("^\\s*(?:[-*+]\\s+|\\d+[.)]\\s+)?(?:\\[([ xX])\\]\\s*)?(?:`(p\\d+)`\\s*-?\\s*)?\\*\\*ID\\*\\*:\\s*`(cpt-[a-z0-9]+(?:-[a-z0-9]+)*)`")
	idRe         = regexp.MustCompile("`(cpt-[a-z0-9]+(?:-[a-z0-9]+)*)`")
	checkboxRe   = regexp.MustCompile(`^\s*(?:[-*+]\s+|\d+[.)]\s+)?\[([ xX])\]`)
	priorityRe   = regexp.MustCompile("`(p\\d+)`")
	instRe       = regexp.MustCompile("`inst-([a-z0-9]+(?:-[a-z0-9]+)*)`")
)

// ScanFile reads and scans one artifact file.
func ScanFile(path, kind string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading artifact: %w", err)
	}
	doc := Scan(string(data))
	doc.Path = path
	doc.Kind = kind
	return doc, nil
}

// Scan scans Markdown content.
func Scan(content string) *Document {
	doc := &Document{Instructions: make(map[string][]Instruction)}

	var (
		fences    markers.FenceTracker
		inComment bool
		stack     []Heading
		current   string // most recent definition id
		defLevel  int    // level of the heading holding current
	)

	for i, line := range markers.SplitLines(content) {
		lineNo := i + 1
		if ev := fences.Feed(line, lineNo); ev != markers.FenceNone || fences.InFence() {
			continue
		}
		if inComment {
			if strings.Contains(line, "-->") {
				inComment = false
			}
			continue
		}
		line = stripComments(line, &inComment)

		if level, text, ok := toc.ParseHeading(line); ok {
			h := Heading{Level: level, Text: text, Line: lineNo}
			for len(stack) > 0 && stack[len(stack)-1].Level >= level {
				stack = stack[:len(stack)-1]
			}
			stack = append(stack, h)
			doc.Headings = append(doc.Headings, h)
			// Sub-headings stay inside the definition; a sibling or parent
			// heading ends its instruction list.
			if level <= defLevel {
				current = ""
			}
		}

		defID := ""
		if m := definitionRe.FindStringSubmatch(line); m != nil {
			defID = m[3]
			doc.Hits = append(doc.Hits, Hit{
				ID:       defID,
				Type:     Definition,
				Line:     lineNo,
				HasTask:  m[1] != "",
				Checked:  m[1] == "x" || m[1] == "X",
				Priority: m[2],
				Headings: copyStack(stack),
			})
			current = defID
			defLevel = 0
			if len(stack) > 0 {
				defLevel = stack[len(stack)-1].Level
			}
		}

		refs := idRe.FindAllStringSubmatch(line, -1)
		if len(refs) > 0 {
			box := checkboxRe.FindStringSubmatch(line)
			prio := ""
			if p := priorityRe.FindStringSubmatch(line); p != nil {
				prio = p[1]
			}
			skippedDef := false
			for _, r := range refs {
				if r[1] == defID && !skippedDef {
					skippedDef = true
					continue
				}
				hit := Hit{ID: r[1], Type: Reference, Line: lineNo, Priority: prio, Headings: copyStack(stack)}
				if box != nil {
					hit.HasTask = true
					hit.Checked = box[1] == "x" || box[1] == "X"
				}
				doc.Hits = append(doc.Hits, hit)
			}
		}

		if current != "" && defID == "" {
			box := checkboxRe.FindStringSubmatch(line)
			for _, m := range instRe.FindAllStringSubmatch(line, -1) {
				doc.Instructions[current] = append(doc.Instructions[current], Instruction{
					Slug:    m[1],
					Line:    lineNo,
					Checked: box != nil && (box[1] == "x" || box[1] == "X"),
				})
			}
		}
	}
	return doc
}

// stripComments removes inline HTML comments and reports (via inComment)
// whether an unterminated one started on this line.
func stripComments(line string, inComment *bool) string {
	for {
		start := strings.Index(line, "<!--")
		if start < 0 {
			return line
		}
		end := strings.Index(line[start:], "-->")
		if end < 0 {
			*inComment = true
			return line[:start]
		}
		line = line[:start] + line[start+end+3:]
	}
}

func copyStack(stack []Heading) []Heading {
	if len(stack) == 0 {
		return nil
	}
	out := make([]Heading, len(stack))
	copy(out, stack)
	return out
}

// Definitions returns the definition hits.
func (d *Document) Definitions() []Hit {
	return d.filter(Definition)
}

// References returns the reference hits.
func (d *Document) References() []Hit {
	return d.filter(Reference)
}

func (d *Document) filter(t HitType) []Hit {
	var out []Hit
	for _, h := range d.Hits {
		if h.Type == t {
			out = append(out, h)
		}
	}
	return out
}
