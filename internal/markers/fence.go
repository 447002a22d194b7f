package markers

import "strings"

// Fence describes an opening fenced code block line.
type Fence struct {
	Char byte   // '`' or '~'
	Len  int    // number of fence characters (>= 3)
	Info string // info string after the fence, e.g. "toml"
	Line int    // 1-based line where the fence opened
}

// ParseFence reports whether line opens (or closes) a fenced code block.
// Up to three leading spaces are allowed, as in CommonMark.
func ParseFence(line string) (Fence, bool) {
	trimmed := strings.TrimRight(line, " \t\r")
	indent := len(trimmed) - len(strings.TrimLeft(trimmed, " "))
	if indent > 3 {
		return Fence{}, false
	}
	trimmed = trimmed[indent:]
	if len(trimmed) < 3 {
		return Fence{}, false
	}
	ch := trimmed[0]
	if ch != '`' && ch != '~' {
		return Fence{}, false
	}
	n := 0
	for n < len(trimmed) && trimmed[n] == ch {
		n++
	}
	if n < 3 {
		return Fence{}, false
	}
	info := strings.TrimSpace(trimmed[n:])
	// Backtick fences may not carry backticks in their info string.
	if ch == '`' && strings.Contains(info, "`") {
		return Fence{}, false
	}
	return Fence{Char: ch, Len: n, Info: info}, true
}

// Closes reports whether line closes f: same fence character, at least as
// long, and no info string.
func (f Fence) Closes(line string) bool {
	c, ok := ParseFence(line)
	return ok && c.Char == f.Char && c.Len >= f.Len && c.Info == ""
}

// Language returns the first word of the info string, lowercased.
func (f Fence) Language() string {
	fields := strings.Fields(f.Info)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

// FenceTracker follows fenced-code state line by line.
//
// In CommonMark mode a fence only closes on a matching bare fence. In nested
// mode an inner fence that carries an info string opens a nested level, and
// a bare fence closes the innermost level; this lets blueprint authors put
// ```go examples inside a ```markdown payload without lengthening the outer
// fence.
type FenceTracker struct {
	Nested bool
	stack  []Fence
}

// FenceEvent is what a line did to the fence state.
type FenceEvent int

const (
	// FenceNone means the line did not change fence state.
	FenceNone FenceEvent = iota
	// FenceOpened means the line opened an outermost fence.
	FenceOpened
	// FenceClosed means the line closed the outermost fence.
	FenceClosed
	// FenceInner means the line opened or closed a nested fence.
	FenceInner
)

// Feed advances the tracker by one line and reports the resulting event.
func (t *FenceTracker) Feed(line string, lineNo int) FenceEvent {
	if len(t.stack) == 0 {
		f, ok := ParseFence(line)
		if !ok {
			return FenceNone
		}
		f.Line = lineNo
		t.stack = append(t.stack, f)
		return FenceOpened
	}

	top := t.stack[len(t.stack)-1]
	if top.Closes(line) {
		t.stack = t.stack[:len(t.stack)-1]
		if len(t.stack) == 0 {
			return FenceClosed
		}
		return FenceInner
	}
	if t.Nested {
		if f, ok := ParseFence(line); ok && f.Info != "" {
			f.Line = lineNo
			t.stack = append(t.stack, f)
			return FenceInner
		}
	}
	return FenceNone
}

// InFence reports whether the tracker is inside any fence.
func (t *FenceTracker) InFence() bool {
	return len(t.stack) > 0
}

// Open returns the outermost open fence, if any.
func (t *FenceTracker) Open() (Fence, bool) {
	if len(t.stack) == 0 {
		return Fence{}, false
	}
	return t.stack[0], true
}

// SplitLines splits content into lines without their terminators. A trailing
// newline does not produce an extra empty line.
func SplitLines(content string) []string {
	if content == "" {
		return nil
	}
	content = strings.TrimSuffix(content, "\n")
	lines := strings.Split(content, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
