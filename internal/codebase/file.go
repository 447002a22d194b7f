// Package codebase parses cpt traceability markers out of source files and
// cross-validates them against the identifiers declared in artifacts.
//
// Two marker forms are recognized, each on its own line behind any comment
// syntax:
//
//	// @cpt-flow:cpt-app-flow-login:p1
//	// @cpt-begin:cpt-app-flow-login:p1:inst-read
//	...
//	// @cpt-end:cpt-app-flow-login:p1:inst-read
//
// A scope marker tags the whole file; a begin/end pair tags the lines
// strictly between them as implementing one instruction.
package codebase

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/cyberfabric/cyber-pilot-sub001/internal/markers"
	"github.com/cyberfabric/cyber-pilot-sub001/internal/report"
)

// ScopeMarker is a `@cpt-{kind}:{id}:p{N}` line.
type ScopeMarker struct {
	Kind  string
	ID    string
	Phase int
	Line  int
	Raw   string // trimmed source line
}

// BlockMarker is a matched begin/end pair.
type BlockMarker struct {
	ID        string
	Phase     int
	Inst      string
	StartLine int // line of the begin marker
	EndLine   int // line of the end marker
	Content   []string
}

// Lines returns the number of lines strictly between the markers, the
// length of Content.
func (b BlockMarker) Lines() int {
	return b.EndLine - b.StartLine - 1
}

// Reference is one use of an identifier in code.
type Reference struct {
	ID         string
	Line       int
	MarkerType string // "scope" or "block"
	Phase      int
	Inst       string
}

type blockKey struct {
	id    string
	phase int
	inst  string
}

type scopeKey struct {
	kind  string
	id    string
	phase int
}

type parsed struct {
	lines  []string
	scopes []ScopeMarker
	blocks []BlockMarker
	refs   []Reference
	result report.Result
}

// CodeFile is one source file. Parsing happens on first use and is cached;
// every accessor is safe for concurrent use.
type CodeFile struct {
	Path    string
	content string

	once sync.Once
	p    *parsed
}

// NewCodeFile wraps in-memory content.
func NewCodeFile(path, content string) *CodeFile {
	return &CodeFile{Path: path, content: content}
}

// LoadCodeFile reads a source file.
func LoadCodeFile(path string) (*CodeFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading code file: %w", err)
	}
	return NewCodeFile(path, string(data)), nil
}

func (f *CodeFile) parse() *parsed {
	f.once.Do(func() {
		f.p = parseMarkers(f.Path, f.content)
	})
	return f.p
}

// Lines returns the file's lines.
func (f *CodeFile) Lines() []string { return f.parse().lines }

// Scopes returns the scope markers in line order.
func (f *CodeFile) Scopes() []ScopeMarker { return f.parse().scopes }

// Blocks returns the matched block markers ordered by end line.
func (f *CodeFile) Blocks() []BlockMarker { return f.parse().blocks }

// References returns every identifier use: one per scope marker and one per
// matched block.
func (f *CodeFile) References() []Reference { return f.parse().refs }

// HasMarkers reports whether the file carries any well-formed marker.
func (f *CodeFile) HasMarkers() bool {
	p := f.parse()
	return len(p.scopes) > 0 || len(p.blocks) > 0
}

// Validate returns the file's structural marker errors. The result is
// computed once; each call returns a fresh copy.
func (f *CodeFile) Validate() report.Result {
	p := f.parse()
	out := report.NewResult()
	out.Merge(p.result)
	return out
}

// parseMarkers runs the pairing state machine. A begin whose key is
// already open is reported and dropped, so the first begin stays open and a
// later end still closes it.
func parseMarkers(path, content string) *parsed {
	p := &parsed{lines: markers.SplitLines(content), result: report.NewResult()}

	open := make(map[blockKey]int)
	var openOrder []blockKey
	scopeSeen := make(map[scopeKey]int)

	issue := func(code string, tok markers.CodeToken, msg string) report.Issue {
		return report.Issue{Code: code, Message: msg, Path: path, Line: tok.Line, ID: tok.ID}
	}

	for _, tok := range markers.TokenizeCode(content) {
		key := blockKey{id: tok.ID, phase: tok.Phase, inst: tok.Inst}
		switch tok.Type {
		case markers.CodeMalformed:
			p.result.AddError(issue("marker-malformed", tok, fmt.Sprintf("malformed cpt marker: %s", tok.Raw)))

		case markers.CodeScope:
			sk := scopeKey{kind: tok.Kind, id: tok.ID, phase: tok.Phase}
			if first, dup := scopeSeen[sk]; dup {
				p.result.AddError(issue("scope-duplicate", tok,
					fmt.Sprintf("duplicate scope marker @cpt-%s:%s:p%d (first at line %d)", tok.Kind, tok.ID, tok.Phase, first)))
				continue
			}
			scopeSeen[sk] = tok.Line
			p.scopes = append(p.scopes, ScopeMarker{Kind: tok.Kind, ID: tok.ID, Phase: tok.Phase, Line: tok.Line, Raw: tok.Raw})
			p.refs = append(p.refs, Reference{ID: tok.ID, Line: tok.Line, MarkerType: "scope", Phase: tok.Phase})

		case markers.CodeBegin:
			if start, dup := open[key]; dup {
				p.result.AddError(issue("block-duplicate-begin", tok,
					fmt.Sprintf("duplicate begin for %s inst-%s, previous begin at line %d not closed", tok.ID, tok.Inst, start)))
				continue
			}
			open[key] = tok.Line
			openOrder = append(openOrder, key)

		case markers.CodeEnd:
			start, ok := open[key]
			if !ok {
				p.result.AddError(issue("block-end-without-begin", tok,
					fmt.Sprintf("end without matching begin for %s inst-%s", tok.ID, tok.Inst)))
				continue
			}
			delete(open, key)
			block := BlockMarker{
				ID:        tok.ID,
				Phase:     tok.Phase,
				Inst:      tok.Inst,
				StartLine: start,
				EndLine:   tok.Line,
				Content:   append([]string(nil), p.lines[start:tok.Line-1]...),
			}
			if blank(p.lines, start, tok.Line) {
				e := issue("block-empty", tok, fmt.Sprintf("empty block for %s inst-%s", tok.ID, tok.Inst))
				e.Line = start
				e.Details = map[string]interface{}{"inst": tok.Inst}
				p.result.AddError(e)
			}
			p.blocks = append(p.blocks, block)
			p.refs = append(p.refs, Reference{ID: tok.ID, Line: start, MarkerType: "block", Phase: tok.Phase, Inst: tok.Inst})
		}
	}

	for _, key := range openOrder {
		start, stillOpen := open[key]
		if !stillOpen {
			continue
		}
		p.result.AddError(report.Issue{
			Code:    "block-unclosed",
			Message: fmt.Sprintf("begin without matching end for %s inst-%s", key.id, key.inst),
			Path:    path,
			Line:    start,
			ID:      key.id,
		})
		// A reopened key appears in openOrder twice; report it once.
		delete(open, key)
	}
	return p
}

// blank reports whether every line strictly between two 1-based line
// numbers is whitespace.
func blank(lines []string, start, end int) bool {
	for n := start + 1; n < end; n++ {
		if strings.TrimSpace(lines[n-1]) != "" {
			return false
		}
	}
	return true
}

// ValidateAll merges the structural results of several files.
func ValidateAll(files []*CodeFile) report.Result {
	result := report.NewResult()
	for _, f := range files {
		if f != nil {
			result.Merge(f.Validate())
		}
	}
	result.Sort()
	return result
}
