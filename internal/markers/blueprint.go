package markers

import (
	"regexp"
	"strings"
)

// TokenType classifies a blueprint line.
type TokenType int

const (
	// TokenText is any line that is not structurally significant.
	TokenText TokenType = iota
	// TokenOpen is an opening marker line: `@cpt:{name}`.
	TokenOpen
	// TokenClose is a closing marker line: `@/cpt:{name}`.
	TokenClose
	// TokenFenceOpen opens an outermost fenced block.
	TokenFenceOpen
	// TokenFenceClose closes the outermost fenced block.
	TokenFenceClose
)

func (t TokenType) String() string {
	switch t {
	case TokenOpen:
		return "open"
	case TokenClose:
		return "close"
	case TokenFenceOpen:
		return "fence-open"
	case TokenFenceClose:
		return "fence-close"
	default:
		return "text"
	}
}

// Token is one classified blueprint line.
type Token struct {
	Type TokenType
	Line int    // 1-based
	Name string // marker name for open/close, fence language for fence-open
	Text string // raw line
}

var (
	openMarkerRe  = regexp.MustCompile("^`@cpt:([a-z][a-z0-9_-]*)`$")
	closeMarkerRe = regexp.MustCompile("^`@/cpt:([a-z][a-z0-9_-]*)`$")
)

// TokenizeBlueprint classifies every line of a blueprint document. Marker
// lines inside fenced blocks are plain text. If the document ends inside a
// fence, the unclosed fence is returned as the second value.
func TokenizeBlueprint(content string) ([]Token, *Fence) {
	lines := SplitLines(content)
	tokens := make([]Token, 0, len(lines))
	tracker := FenceTracker{Nested: true}

	for i, line := range lines {
		lineNo := i + 1
		tok := Token{Type: TokenText, Line: lineNo, Text: line}

		wasInFence := tracker.InFence()
		switch tracker.Feed(line, lineNo) {
		case FenceOpened:
			f, _ := tracker.Open()
			tok.Type = TokenFenceOpen
			tok.Name = f.Language()
		case FenceClosed:
			tok.Type = TokenFenceClose
		case FenceNone:
			if !wasInFence {
				trimmed := strings.TrimSpace(line)
				if m := openMarkerRe.FindStringSubmatch(trimmed); m != nil {
					tok.Type = TokenOpen
					tok.Name = m[1]
				} else if m := closeMarkerRe.FindStringSubmatch(trimmed); m != nil {
					tok.Type = TokenClose
					tok.Name = m[1]
				}
			}
		}
		tokens = append(tokens, tok)
	}

	if f, open := tracker.Open(); open {
		return tokens, &f
	}
	return tokens, nil
}
