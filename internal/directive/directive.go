// Package directive parses glot comment directives and tracks per-file
// suppression state.
//
// Recognized directives, in both line and block comment syntaxes:
//
//	glot-disable-next-line [category ...]
//	glot-disable [category ...]
//	glot-enable
//	glot-message-keys "key" "key" ...
//
// A directive with no categories applies to every category.
package directive

import (
	"strings"

	"glot/internal/finding"
)

// Comment is one comment token encountered during the tree walk, in source
// order.
type Comment struct {
	Line int
	Text string
}

// Op identifies a directive operation.
type Op int

const (
	OpDisableNextLine Op = iota
	OpDisable
	OpEnable
	OpMessageKeys
)

// Directive is one parsed glot comment.
type Directive struct {
	Op         Op
	Categories []finding.Kind // empty means all categories
	Keys       []string       // message-keys payload
}

// Parse recognizes a glot directive in raw comment text. Comment delimiters
// ("//", "/* */" and the JSX "{/* */}" wrapper) are stripped first.
// Unrecognized comments return ok=false.
func Parse(raw string) (Directive, bool) {
	text := CleanComment(raw)

	// Longest prefix first: glot-disable is a prefix of glot-disable-next-line.
	if rest, ok := strings.CutPrefix(text, "glot-disable-next-line"); ok {
		return Directive{Op: OpDisableNextLine, Categories: parseCategories(rest)}, true
	}
	if rest, ok := strings.CutPrefix(text, "glot-disable"); ok {
		return Directive{Op: OpDisable, Categories: parseCategories(rest)}, true
	}
	if _, ok := strings.CutPrefix(text, "glot-enable"); ok {
		return Directive{Op: OpEnable}, true
	}
	if rest, ok := strings.CutPrefix(text, "glot-message-keys"); ok {
		return Directive{Op: OpMessageKeys, Keys: parseQuoted(rest)}, true
	}
	return Directive{}, false
}

// CleanComment strips comment delimiters and surrounding whitespace.
func CleanComment(raw string) string {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "{")
	text = strings.TrimSuffix(text, "}")
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "//")
	text = strings.TrimPrefix(text, "/*")
	text = strings.TrimSuffix(text, "*/")
	return strings.TrimSpace(text)
}

func parseCategories(rest string) []finding.Kind {
	var cats []finding.Kind
	for _, word := range strings.Fields(rest) {
		if kind, ok := finding.ParseKind(word); ok {
			cats = append(cats, kind)
		}
	}
	// Unknown-only category lists fall back to all categories, matching
	// the no-argument form.
	return cats
}

func parseQuoted(rest string) []string {
	var keys []string
	for {
		start := strings.IndexByte(rest, '"')
		if start < 0 {
			return keys
		}
		rest = rest[start+1:]
		end := strings.IndexByte(rest, '"')
		if end < 0 {
			return keys
		}
		keys = append(keys, rest[:end])
		rest = rest[end+1:]
	}
}

type categorySet struct {
	all   bool
	kinds map[finding.Kind]bool
}

func newCategorySet(cats []finding.Kind) categorySet {
	if len(cats) == 0 {
		return categorySet{all: true}
	}
	set := categorySet{kinds: make(map[finding.Kind]bool, len(cats))}
	for _, c := range cats {
		set.kinds[c] = true
	}
	return set
}

func (s categorySet) has(kind finding.Kind) bool {
	return s.all || s.kinds[kind]
}

type block struct {
	start int
	end   int // 0 while open, extended to end of file on close-out
	cats  categorySet
}

// Annotation is one glot-message-keys block awaiting a dynamic translation
// call at or after its line.
type Annotation struct {
	Line     int
	Keys     []string
	consumed bool
}

// Tracker answers per-line suppression queries for a single file and hands
// out key annotation blocks. Trackers are never shared between files.
type Tracker struct {
	nextLine    map[int][]categorySet
	blocks      []block
	annotations []*Annotation
}

// NewTracker consumes comment tokens in source order and replays the
// directive state machine. A glot-enable with no open block is a no-op.
func NewTracker(comments []Comment) *Tracker {
	t := &Tracker{nextLine: make(map[int][]categorySet)}
	var open []int // indexes into t.blocks, innermost last

	for _, c := range comments {
		d, ok := Parse(c.Text)
		if !ok {
			continue
		}
		switch d.Op {
		case OpDisableNextLine:
			t.nextLine[c.Line+1] = append(t.nextLine[c.Line+1], newCategorySet(d.Categories))
		case OpDisable:
			t.blocks = append(t.blocks, block{start: c.Line, cats: newCategorySet(d.Categories)})
			open = append(open, len(t.blocks)-1)
		case OpEnable:
			if len(open) == 0 {
				continue
			}
			idx := open[len(open)-1]
			open = open[:len(open)-1]
			t.blocks[idx].end = c.Line
		case OpMessageKeys:
			t.annotations = append(t.annotations, &Annotation{Line: c.Line, Keys: d.Keys})
		}
	}

	// Unclosed blocks run to the end of the file.
	const eof = int(^uint(0) >> 1)
	for _, idx := range open {
		t.blocks[idx].end = eof
	}
	return t
}

// IsSuppressed reports whether the given category is suppressed on line.
// Next-line and block directives are additive: either one suffices.
func (t *Tracker) IsSuppressed(line int, kind finding.Kind) bool {
	for _, set := range t.nextLine[line] {
		if set.has(kind) {
			return true
		}
	}
	for _, b := range t.blocks {
		if line >= b.start && line <= b.end && b.cats.has(kind) {
			return true
		}
	}
	return false
}

// TakeAnnotation returns the keys of the nearest preceding unconsumed
// annotation block at or before line, consuming it. Returns nil, false when
// no block applies.
func (t *Tracker) TakeAnnotation(line int) ([]string, bool) {
	var best *Annotation
	for _, a := range t.annotations {
		if a.consumed || a.Line > line {
			continue
		}
		if best == nil || a.Line > best.Line {
			best = a
		}
	}
	if best == nil {
		return nil, false
	}
	best.consumed = true
	return best.Keys, true
}

// HasAnnotations reports whether any message-keys blocks were seen.
func (t *Tracker) HasAnnotations() bool {
	return len(t.annotations) > 0
}
