// Package finding defines the immutable issue records produced by a check run.
package finding

import (
	"fmt"
	"sort"
)

// Kind identifies one of the issue categories a check run can report.
type Kind string

const (
	Hardcoded     Kind = "hardcoded"
	MissingKey    Kind = "missing-key"
	UnresolvedKey Kind = "unresolved-key"
	ParseError    Kind = "parse-error"
	UnusedKey     Kind = "unused-key"
	OrphanKey     Kind = "orphan-key"
	ReplicaLag    Kind = "replica-lag"
	TypeMismatch  Kind = "type-mismatch"
	Untranslated  Kind = "untranslated"
)

// Kinds lists every kind in report order.
var Kinds = []Kind{
	Hardcoded, MissingKey, UnresolvedKey, ParseError,
	UnusedKey, OrphanKey, ReplicaLag, TypeMismatch, Untranslated,
}

// ParseKind returns the kind matching s, if any.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Severity of a finding.
type Severity int

const (
	Warning Severity = iota
	Error
)

func (s Severity) String() string {
	if s == Error {
		return "error"
	}
	return "warning"
}

// DefaultSeverity returns the severity a kind is reported with.
func DefaultSeverity(k Kind) Severity {
	switch k {
	case Hardcoded, MissingKey, ParseError, ReplicaLag, TypeMismatch:
		return Error
	default:
		return Warning
	}
}

// Position is a 1-based line/column location.
type Position struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

// Span is a half-open range from Start (inclusive) to End (exclusive).
type Span struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Finding is one reported issue. Findings are never mutated after the check
// pass completes; Suppressed marks directive-covered findings instead of
// dropping them so baseline generation can still see them.
type Finding struct {
	Kind     Kind     `json:"kind"`
	Severity Severity `json:"severity"`
	File     string   `json:"file"`
	Span     Span     `json:"span"`
	Message  string   `json:"message"`

	// Key is the full key path for key-related findings.
	Key string `json:"key,omitempty"`
	// Text is the offending literal for hardcoded findings.
	Text string `json:"text,omitempty"`
	// Locale is the replica locale for table-side findings.
	Locale string `json:"locale,omitempty"`
	// SourceLine is the text of the line the finding points at, used for
	// report context and for detecting stale edit targets.
	SourceLine string `json:"sourceLine,omitempty"`
	// InJSX reports whether the span sits in JSX children context, which
	// selects the comment style for inserted suppressions.
	InJSX bool `json:"inJsx,omitempty"`

	Suppressed bool `json:"suppressed"`
}

// New builds a finding with the default severity for its kind.
func New(kind Kind, file string, span Span, message string) Finding {
	return Finding{
		Kind:     kind,
		Severity: DefaultSeverity(kind),
		File:     file,
		Span:     span,
		Message:  message,
	}
}

func (f Finding) String() string {
	return fmt.Sprintf("%s:%d:%d: %s: %s [%s]",
		f.File, f.Span.Start.Line, f.Span.Start.Col, f.Severity, f.Message, f.Kind)
}

// Sort orders findings by file, line, column, kind and key for deterministic
// output across runs.
func Sort(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Span.Start.Line != b.Span.Start.Line {
			return a.Span.Start.Line < b.Span.Start.Line
		}
		if a.Span.Start.Col != b.Span.Start.Col {
			return a.Span.Start.Col < b.Span.Start.Col
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Key < b.Key
	})
}

// CountByKind tallies findings per kind, skipping suppressed ones.
func CountByKind(findings []Finding) map[Kind]int {
	counts := make(map[Kind]int)
	for _, f := range findings {
		if f.Suppressed {
			continue
		}
		counts[f.Kind]++
	}
	return counts
}

// CountBySeverity tallies unsuppressed findings per severity.
func CountBySeverity(findings []Finding) map[Severity]int {
	counts := make(map[Severity]int)
	for _, f := range findings {
		if f.Suppressed {
			continue
		}
		counts[f.Severity]++
	}
	return counts
}
