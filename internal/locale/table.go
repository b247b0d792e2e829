// Package locale loads message tables from locale JSON documents.
//
// A table keeps both the flattened key view used by the checker's set algebra
// and the original document text, which the editor needs for
// format-preserving rewrites.
package locale

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"glot/internal/finding"
)

// ValueType tags the JSON type of a table entry.
type ValueType string

const (
	TypeString  ValueType = "string"
	TypeNumber  ValueType = "number"
	TypeBoolean ValueType = "boolean"
	TypeArray   ValueType = "array"
	TypeNull    ValueType = "null"
)

// Entry is one flattened leaf of a locale document.
type Entry struct {
	Value string // decoded string for string values, raw JSON otherwise
	Type  ValueType
	Line  int // 1-based line of the value in the document
}

// Table is one locale's message table.
type Table struct {
	Locale  string
	Path    string
	Text    string
	Entries map[string]Entry
	// Keys preserves document order of the flattened key paths.
	Keys []string
}

// LoadError reports a malformed locale document with its position.
type LoadError struct {
	Path string
	Span finding.Span
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %v", e.Path, e.Span.Start.Line, e.Span.Start.Col, e.Err)
}

// Load parses a locale JSON document into a flattened table.
func Load(localeID, path string, text []byte) (*Table, error) {
	if !gjson.ValidBytes(text) {
		return nil, &LoadError{Path: path, Span: syntaxErrorSpan(text), Err: errors.New("invalid JSON")}
	}
	doc := gjson.ParseBytes(text)
	if !doc.IsObject() {
		return nil, &LoadError{
			Path: path,
			Span: finding.Span{Start: finding.Position{Line: 1, Col: 1}, End: finding.Position{Line: 1, Col: 1}},
			Err:  errors.New("locale document root must be an object"),
		}
	}

	t := &Table{
		Locale:  localeID,
		Path:    path,
		Text:    string(text),
		Entries: make(map[string]Entry),
	}
	flatten(doc, "", text, t)
	return t, nil
}

// Key reports whether the table contains the given key path.
func (t *Table) Has(key string) bool {
	_, ok := t.Entries[key]
	return ok
}

// Span returns a span pointing at the entry's value line.
func (t *Table) Span(key string) finding.Span {
	line := 1
	if e, ok := t.Entries[key]; ok {
		line = e.Line
	}
	pos := finding.Position{Line: line, Col: 1}
	return finding.Span{Start: pos, End: pos}
}

func flatten(value gjson.Result, prefix string, text []byte, t *Table) {
	value.ForEach(func(key, child gjson.Result) bool {
		path := key.String()
		if prefix != "" {
			path = prefix + "." + path
		}
		if child.IsObject() {
			flatten(child, path, text, t)
			return true
		}
		t.Keys = append(t.Keys, path)
		t.Entries[path] = Entry{
			Value: entryValue(child),
			Type:  entryType(child),
			Line:  lineAt(text, child.Index),
		}
		return true
	})
}

func entryValue(r gjson.Result) string {
	if r.Type == gjson.String {
		return r.String()
	}
	return r.Raw
}

func entryType(r gjson.Result) ValueType {
	switch {
	case r.Type == gjson.String:
		return TypeString
	case r.Type == gjson.Number:
		return TypeNumber
	case r.Type == gjson.True || r.Type == gjson.False:
		return TypeBoolean
	case r.IsArray():
		return TypeArray
	default:
		return TypeNull
	}
}

func lineAt(text []byte, offset int) int {
	if offset <= 0 {
		return 1
	}
	if offset > len(text) {
		offset = len(text)
	}
	return 1 + bytes.Count(text[:offset], []byte{'\n'})
}

// syntaxErrorSpan locates the first malformed byte with the standard decoder,
// which reports offsets where gjson only reports validity.
func syntaxErrorSpan(text []byte) finding.Span {
	var v any
	err := json.Unmarshal(text, &v)
	var syn *json.SyntaxError
	offset := 0
	if errors.As(err, &syn) {
		offset = int(syn.Offset)
	}
	line := lineAt(text, offset)
	col := 1
	if offset > 0 {
		last := bytes.LastIndexByte(text[:offset], '\n')
		col = offset - last
	}
	pos := finding.Position{Line: line, Col: col}
	return finding.Span{Start: pos, End: pos}
}
