package markers

import (
	"regexp"
	"strconv"
	"strings"
)

// CodeTokenType classifies a code marker line.
type CodeTokenType int

const (
	// CodeScope is `@cpt-{kind}:{id}:p{N}`.
	CodeScope CodeTokenType = iota
	// CodeBegin is `@cpt-begin:{id}:p{N}:inst-{slug}`.
	CodeBegin
	// CodeEnd is `@cpt-end:{id}:p{N}:inst-{slug}`.
	CodeEnd
	// CodeMalformed is a line that looks like a marker but does not parse.
	CodeMalformed
)

func (t CodeTokenType) String() string {
	switch t {
	case CodeScope:
		return "scope"
	case CodeBegin:
		return "begin"
	case CodeEnd:
		return "end"
	default:
		return "malformed"
	}
}

// CodeToken is one marker found in a source file.
type CodeToken struct {
	Type  CodeTokenType
	Line  int
	Kind  string // scope kind; empty for block markers
	ID    string
	Phase int
	Inst  string // instruction slug without the "inst-" prefix
	Raw   string // trimmed source line
}

const (
	idPattern   = `cpt-[a-z0-9]+(?:-[a-z0-9]+)*`
	slugPattern = `[a-z0-9]+(?:-[a-z0-9]+)*`
	// A marker must not run into further id characters.
	markerTail = `(?:[^a-z0-9:_-]|$)`
)

var (
	blockMarkerRe = regexp.MustCompile(`@cpt-(begin|end):(` + idPattern + `):p(\d+):inst-(` + slugPattern + `)` + markerTail)
	scopeMarkerRe = regexp.MustCompile(`@cpt-([a-z][a-z0-9]*(?:-[a-z0-9]+)*):(` + idPattern + `):p(\d+)` + markerTail)
	// Looks like a marker: @cpt-begin / @cpt-end anywhere, or @cpt-kind:cpt-...
	markerLikeRe = regexp.MustCompile(`@cpt-(?:begin|end)\b|@cpt-[a-z][a-z0-9-]*:cpt-`)
)

// ScanCodeLine classifies a single source line. The marker may be preceded
// by any comment syntax. ok is false when the line carries no marker.
func ScanCodeLine(line string, lineNo int) (tok CodeToken, ok bool) {
	if !strings.Contains(line, "@cpt-") {
		return CodeToken{}, false
	}
	raw := strings.TrimSpace(line)

	if m := blockMarkerRe.FindStringSubmatch(line); m != nil {
		phase, _ := strconv.Atoi(m[3])
		typ := CodeBegin
		if m[1] == "end" {
			typ = CodeEnd
		}
		return CodeToken{Type: typ, Line: lineNo, ID: m[2], Phase: phase, Inst: m[4], Raw: raw}, true
	}

	if m := scopeMarkerRe.FindStringSubmatch(line); m != nil && m[1] != "begin" && m[1] != "end" {
		phase, _ := strconv.Atoi(m[3])
		return CodeToken{Type: CodeScope, Line: lineNo, Kind: m[1], ID: m[2], Phase: phase, Raw: raw}, true
	}

	if markerLikeRe.MatchString(line) {
		return CodeToken{Type: CodeMalformed, Line: lineNo, Raw: raw}, true
	}
	return CodeToken{}, false
}

// TokenizeCode returns every code marker in content, in line order.
func TokenizeCode(content string) []CodeToken {
	var tokens []CodeToken
	for i, line := range SplitLines(content) {
		if tok, ok := ScanCodeLine(line, i+1); ok {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}
