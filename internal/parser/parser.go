// Package parser turns TSX/JSX source text into a traversable syntax tree.
package parser

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"

	"glot/internal/finding"
)

// ParseFailure describes a file that could not be parsed. It is per-file and
// non-fatal: the checker reports it as a finding and skips the file.
type ParseFailure struct {
	Span    finding.Span
	Message string
}

func (e *ParseFailure) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Span.Start.Line, e.Span.Start.Col, e.Message)
}

// SourceUnit is a parsed source file. Immutable once produced. Exactly one of
// Tree and Failure is set.
type SourceUnit struct {
	Path    string
	Text    []byte
	Tree    *sitter.Tree
	Failure *ParseFailure
}

// Parse parses TSX source text. Tree-sitter always yields a tree; a tree
// containing error or missing nodes is reported as a ParseFailure at the
// first such node.
func Parse(ctx context.Context, path string, text []byte) (*SourceUnit, error) {
	p := sitter.NewParser()
	p.SetLanguage(tsx.GetLanguage())

	tree, err := p.ParseCtx(ctx, nil, text)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	unit := &SourceUnit{Path: path, Text: text}
	root := tree.RootNode()
	if root.HasError() {
		if bad := firstErrorNode(root); bad != nil {
			unit.Failure = &ParseFailure{
				Span:    NodeSpan(bad),
				Message: "syntax error",
			}
			return unit, nil
		}
	}
	unit.Tree = tree
	return unit, nil
}

// Line returns the 1-based line content at the given line number, or "".
func (u *SourceUnit) Line(line int) string {
	cur := 1
	start := 0
	for i := 0; i <= len(u.Text); i++ {
		if i == len(u.Text) || u.Text[i] == '\n' {
			if cur == line {
				return string(u.Text[start:i])
			}
			cur++
			start = i + 1
		}
	}
	return ""
}

func firstErrorNode(node *sitter.Node) *sitter.Node {
	if node.IsError() || node.IsMissing() {
		return node
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if !child.HasError() && !child.IsMissing() {
			continue
		}
		if found := firstErrorNode(child); found != nil {
			return found
		}
	}
	if node.HasError() {
		return node
	}
	return nil
}

// PointPosition converts a tree-sitter point to a 1-based position.
func PointPosition(p sitter.Point) finding.Position {
	return finding.Position{Line: int(p.Row) + 1, Col: int(p.Column) + 1}
}

// NodeSpan returns the half-open span covered by a node.
func NodeSpan(node *sitter.Node) finding.Span {
	return finding.Span{
		Start: PointPosition(node.StartPoint()),
		End:   PointPosition(node.EndPoint()),
	}
}
