// Package editor applies source and locale table edits while preserving the
// untouched parts of each document byte for byte.
package editor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"glot/internal/directive"
	"glot/internal/finding"
)

// ConflictError reports that a target line no longer matches the text the
// check pass recorded, so the edit would land on stale coordinates.
type ConflictError struct {
	File string
	Line int
	Want string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s:%d: line changed since check, expected %q", e.File, e.Line, e.Want)
}

// InsertSuppressions inserts a disable-next-line comment above every finding's
// line. Findings sharing a line are folded into one directive listing all
// their categories. Lines already covered by a matching directive are left
// alone, so applying the same batch twice is a no-op.
func InsertSuppressions(src string, findings []finding.Finding) (string, error) {
	type target struct {
		line       int
		sourceLine string
		inJSX      bool
		file       string
		kinds      []finding.Kind
	}

	byLine := make(map[int]*target)
	for _, f := range findings {
		line := f.Span.Start.Line
		t, ok := byLine[line]
		if !ok {
			t = &target{line: line, sourceLine: f.SourceLine, inJSX: f.InJSX, file: f.File}
			byLine[line] = t
		}
		if !containsKind(t.kinds, f.Kind) {
			t.kinds = append(t.kinds, f.Kind)
		}
		if f.InJSX {
			t.inJSX = true
		}
	}

	targets := make([]*target, 0, len(byLine))
	for _, t := range byLine {
		targets = append(targets, t)
	}
	// Bottom-up so earlier insertions do not shift later line numbers.
	sort.Slice(targets, func(i, j int) bool { return targets[i].line > targets[j].line })

	lines := strings.Split(src, "\n")
	for _, t := range targets {
		if t.line < 1 || t.line > len(lines) {
			return "", &ConflictError{File: t.file, Line: t.line, Want: t.sourceLine}
		}
		current := lines[t.line-1]
		// A previous apply shifts the target down one line: the target line
		// now holds the directive and the next line the original text.
		if coversAll(current, t.kinds) && (t.sourceLine == "" ||
			(t.line < len(lines) && lines[t.line] == t.sourceLine)) {
			continue
		}
		if t.sourceLine != "" && current != t.sourceLine {
			return "", &ConflictError{File: t.file, Line: t.line, Want: t.sourceLine}
		}
		if t.line > 1 && coversAll(lines[t.line-2], t.kinds) {
			continue
		}

		sort.Slice(t.kinds, func(i, j int) bool { return t.kinds[i] < t.kinds[j] })
		comment := indentOf(current) + suppressionComment(t.kinds, t.inJSX)
		lines = append(lines[:t.line-1], append([]string{comment}, lines[t.line-1:]...)...)
	}
	return strings.Join(lines, "\n"), nil
}

// AnnotationTarget asks for a message-keys block above a dynamic translation
// call. Keys may be empty; a placeholder block is inserted for the author to
// fill in.
type AnnotationTarget struct {
	File       string
	Line       int
	SourceLine string
	InJSX      bool
	Keys       []string
}

// InsertAnnotations inserts a message-keys comment above each target line.
// Targets whose preceding line already carries a message-keys block are
// skipped.
func InsertAnnotations(src string, targets []AnnotationTarget) (string, error) {
	sorted := make([]AnnotationTarget, len(targets))
	copy(sorted, targets)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Line > sorted[j].Line })

	lines := strings.Split(src, "\n")
	for _, t := range sorted {
		if t.Line < 1 || t.Line > len(lines) {
			return "", &ConflictError{File: t.File, Line: t.Line, Want: t.SourceLine}
		}
		current := lines[t.Line-1]
		if isAnnotation(current) && (t.SourceLine == "" ||
			(t.Line < len(lines) && lines[t.Line] == t.SourceLine)) {
			continue
		}
		if t.SourceLine != "" && current != t.SourceLine {
			return "", &ConflictError{File: t.File, Line: t.Line, Want: t.SourceLine}
		}
		if t.Line > 1 && isAnnotation(lines[t.Line-2]) {
			continue
		}

		comment := indentOf(current) + annotationComment(t.Keys, t.InJSX)
		lines = append(lines[:t.Line-1], append([]string{comment}, lines[t.Line-1:]...)...)
	}
	return strings.Join(lines, "\n"), nil
}

func isAnnotation(line string) bool {
	d, ok := directive.Parse(line)
	return ok && d.Op == directive.OpMessageKeys
}

// coversAll reports whether the line is a disable-next-line directive covering
// every kind in kinds.
func coversAll(line string, kinds []finding.Kind) bool {
	d, ok := directive.Parse(line)
	if !ok || d.Op != directive.OpDisableNextLine {
		return false
	}
	if len(d.Categories) == 0 {
		return true
	}
	for _, k := range kinds {
		if !containsKind(d.Categories, k) {
			return false
		}
	}
	return true
}

func containsKind(kinds []finding.Kind, k finding.Kind) bool {
	for _, have := range kinds {
		if have == k {
			return true
		}
	}
	return false
}

func suppressionComment(kinds []finding.Kind, inJSX bool) string {
	var b strings.Builder
	b.WriteString("glot-disable-next-line")
	for _, k := range kinds {
		b.WriteByte(' ')
		b.WriteString(string(k))
	}
	return wrapComment(b.String(), inJSX)
}

func annotationComment(keys []string, inJSX bool) string {
	var b strings.Builder
	b.WriteString("glot-message-keys")
	if len(keys) == 0 {
		b.WriteString(` ""`)
	}
	for _, k := range keys {
		fmt.Fprintf(&b, " %q", k)
	}
	return wrapComment(b.String(), inJSX)
}

func wrapComment(body string, inJSX bool) string {
	if inJSX {
		return "{/* " + body + " */}"
	}
	return "// " + body
}

func indentOf(line string) string {
	for i, r := range line {
		if r != ' ' && r != '\t' {
			return line[:i]
		}
	}
	return line
}

// DeleteKeys removes the given key paths from a locale document and prunes
// any parent objects the deletions leave empty. Formatting of the remaining
// entries is untouched. Missing keys are ignored.
func DeleteKeys(doc string, keys []string) (string, error) {
	for _, key := range keys {
		path := escapePath(key)
		next, err := sjson.Delete(doc, path)
		if err != nil {
			return "", fmt.Errorf("delete key %q: %w", key, err)
		}
		doc = next

		// Walk back up the path pruning objects emptied by the delete.
		segments := strings.Split(key, ".")
		for len(segments) > 1 {
			segments = segments[:len(segments)-1]
			parent := escapePath(strings.Join(segments, "."))
			res := gjson.Get(doc, parent)
			if !res.Exists() || !res.IsObject() || len(res.Map()) > 0 {
				break
			}
			doc, err = sjson.Delete(doc, parent)
			if err != nil {
				return "", fmt.Errorf("prune %q: %w", strings.Join(segments, "."), err)
			}
		}
	}
	return doc, nil
}

// AddKey sets a string value at the given key path, creating intermediate
// objects as needed. Existing values at the path are overwritten.
func AddKey(doc string, key, value string) (string, error) {
	out, err := sjson.Set(doc, escapePath(key), value)
	if err != nil {
		return "", fmt.Errorf("add key %q: %w", key, err)
	}
	return out, nil
}

// escapePath protects path metacharacters in key segments. Dots stay live
// since flattened key paths use them as separators.
func escapePath(key string) string {
	if !strings.ContainsAny(key, `*?\|#@`) {
		return key
	}
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '*', '?', '\\', '|', '#', '@':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
