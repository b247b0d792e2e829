// Package resolver walks a parsed source tree to classify translation calls,
// resolve key paths and detect hardcoded text.
package resolver

import (
	"fmt"
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"

	"glot/internal/directive"
	"glot/internal/finding"
	"glot/internal/parser"
)

// Translation hook names that establish a namespace-bound translator.
var hookNames = map[string]bool{
	"useTranslations": true,
	"getTranslations": true,
}

// Method names on a translator binding that still count as translation calls.
var translatorMethods = map[string]bool{
	"raw":    true,
	"rich":   true,
	"markup": true,
}

// KeyExprKind classifies the key argument of a translation call.
type KeyExprKind int

const (
	Static KeyExprKind = iota
	DynamicTemplate
	DynamicOpaque
)

// TranslationCall is one translation-function invocation found in a file.
type TranslationCall struct {
	Span      finding.Span
	Namespace string
	Kind      KeyExprKind
	Key       string // local key for static calls
	Pattern   string // fragment/wildcard pattern for dynamic templates
	Method    string // "raw", "rich", "markup" or "" for direct calls
}

// KeyUsage records one fully-resolved key reference. The per-line directive
// state relevant to the later cross-file pass is captured here because the
// tracker does not outlive the per-file pass.
type KeyUsage struct {
	Key        string
	File       string
	Span       finding.Span
	SourceLine string
	InJSX      bool

	MissingSuppressed      bool
	UntranslatedSuppressed bool
}

// Options configures a walk.
type Options struct {
	CheckedAttributes map[string]bool
	IgnoreTexts       map[string]bool
}

// Result of resolving a single file.
type Result struct {
	Calls    []TranslationCall
	UsedKeys []KeyUsage
	Findings []finding.Finding
	Tracker  *directive.Tracker
}

// CollectComments gathers every comment token in source order.
func CollectComments(unit *parser.SourceUnit) []directive.Comment {
	var comments []directive.Comment
	var visit func(node *sitter.Node)
	visit = func(node *sitter.Node) {
		if node.Type() == "comment" {
			comments = append(comments, directive.Comment{
				Line: int(node.StartPoint().Row) + 1,
				Text: node.Content(unit.Text),
			})
			return
		}
		for i := 0; i < int(node.ChildCount()); i++ {
			visit(node.Child(i))
		}
	}
	visit(unit.Tree.RootNode())
	return comments
}

// Walk resolves a parsed file. Findings carry their suppressed flag already
// cross-referenced against the file's directive state.
func Walk(unit *parser.SourceUnit, opts Options) *Result {
	tracker := directive.NewTracker(CollectComments(unit))
	w := &walker{
		unit:    unit,
		opts:    opts,
		tracker: tracker,
		result:  &Result{Tracker: tracker},
	}
	w.pushScope()
	w.walk(unit.Tree.RootNode())
	w.popScope()
	return w.result
}

type walker struct {
	unit    *parser.SourceUnit
	opts    Options
	tracker *directive.Tracker
	scopes  []map[string]string // translator name -> namespace ("" allowed)
	result  *Result
}

func (w *walker) pushScope() {
	w.scopes = append(w.scopes, map[string]string{})
}

func (w *walker) popScope() {
	w.scopes = w.scopes[:len(w.scopes)-1]
}

func (w *walker) bind(name, namespace string) {
	w.scopes[len(w.scopes)-1][name] = namespace
}

func (w *walker) lookup(name string) (string, bool) {
	for i := len(w.scopes) - 1; i >= 0; i-- {
		if ns, ok := w.scopes[i][name]; ok {
			return ns, true
		}
	}
	return "", false
}

func (w *walker) walk(node *sitter.Node) {
	switch node.Type() {
	case "statement_block":
		w.pushScope()
		w.walkChildren(node)
		w.popScope()
		return
	case "variable_declarator":
		w.recordBinding(node)
	case "call_expression":
		w.handleCall(node)
	case "jsx_element", "jsx_fragment":
		w.walkJSXChildren(node)
		return
	case "jsx_attribute":
		w.handleAttribute(node)
	}
	w.walkChildren(node)
}

func (w *walker) walkChildren(node *sitter.Node) {
	for i := 0; i < int(node.ChildCount()); i++ {
		w.walk(node.Child(i))
	}
}

// walkJSXChildren visits an element's children: text nodes and expression
// containers are hardcoded-text candidates there, unlike inside attributes.
func (w *walker) walkJSXChildren(node *sitter.Node) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "jsx_text":
			w.maybeHardcoded(child.Content(w.unit.Text), child, true)
		case "jsx_expression":
			if expr := firstNamedNonComment(child); expr != nil {
				w.checkTextExpr(expr, true)
			}
			w.walkChildren(child)
		default:
			w.walk(child)
		}
	}
}

// recordBinding pushes a namespace binding for declarations of the form
// `const t = useTranslations("ns")` (optionally awaited).
func (w *walker) recordBinding(node *sitter.Node) {
	nameNode := node.ChildByFieldName("name")
	value := node.ChildByFieldName("value")
	if nameNode == nil || value == nil || nameNode.Type() != "identifier" {
		return
	}
	if value.Type() == "await_expression" && value.NamedChildCount() > 0 {
		value = value.NamedChild(0)
	}
	if value.Type() != "call_expression" {
		return
	}
	fn := value.ChildByFieldName("function")
	if fn == nil || fn.Type() != "identifier" || !hookNames[fn.Content(w.unit.Text)] {
		return
	}
	namespace := ""
	if arg := firstArgument(value); arg != nil && arg.Type() == "string" {
		namespace = stringContent(arg, w.unit.Text)
	}
	w.bind(nameNode.Content(w.unit.Text), namespace)
}

// handleCall classifies the key expression of a translation call and resolves
// it into the file's used key set, consuming a pending key annotation for
// dynamic calls.
func (w *walker) handleCall(node *sitter.Node) {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return
	}

	var namespace, method string
	switch fn.Type() {
	case "identifier":
		ns, ok := w.lookup(fn.Content(w.unit.Text))
		if !ok {
			return
		}
		namespace = ns
	case "member_expression":
		object := fn.ChildByFieldName("object")
		property := fn.ChildByFieldName("property")
		if object == nil || property == nil || object.Type() != "identifier" {
			return
		}
		if !translatorMethods[property.Content(w.unit.Text)] {
			return
		}
		ns, ok := w.lookup(object.Content(w.unit.Text))
		if !ok {
			return
		}
		namespace = ns
		method = property.Content(w.unit.Text)
	default:
		return
	}

	arg := firstArgument(node)
	if arg == nil {
		return
	}

	span := parser.NodeSpan(node)
	line := span.Start.Line
	call := TranslationCall{Span: span, Namespace: namespace, Method: method}

	switch {
	case arg.Type() == "string":
		call.Kind = Static
		call.Key = stringContent(arg, w.unit.Text)
	case arg.Type() == "template_string" && !hasSubstitution(arg):
		call.Kind = Static
		call.Key = templatePattern(arg, w.unit.Text)
	case arg.Type() == "template_string":
		call.Kind = DynamicTemplate
		call.Pattern = templatePattern(arg, w.unit.Text)
	default:
		call.Kind = DynamicOpaque
	}
	w.result.Calls = append(w.result.Calls, call)

	if call.Kind == Static {
		w.addUsage(joinKey(namespace, call.Key), node, line)
		return
	}

	if keys, ok := w.tracker.TakeAnnotation(line); ok {
		// Annotation keys are full paths, used verbatim.
		for _, key := range keys {
			if key != "" {
				w.addUsage(key, node, line)
			}
		}
		return
	}

	// Method calls never warn about unresolvable keys.
	if method != "" {
		return
	}

	f := finding.New(finding.UnresolvedKey, w.unit.Path, span,
		"translation key cannot be statically resolved")
	f.Text = joinKey(namespace, call.Pattern)
	f.SourceLine = w.unit.Line(line)
	f.InJSX = inJSXChildren(node)
	f.Suppressed = w.tracker.IsSuppressed(line, finding.UnresolvedKey)
	w.result.Findings = append(w.result.Findings, f)
}

func (w *walker) addUsage(key string, node *sitter.Node, line int) {
	w.result.UsedKeys = append(w.result.UsedKeys, KeyUsage{
		Key:                    key,
		File:                   w.unit.Path,
		Span:                   parser.NodeSpan(node),
		SourceLine:             w.unit.Line(line),
		InJSX:                  inJSXChildren(node),
		MissingSuppressed:      w.tracker.IsSuppressed(line, finding.MissingKey),
		UntranslatedSuppressed: w.tracker.IsSuppressed(line, finding.Untranslated),
	})
}

// handleAttribute treats string values of checked attributes as
// hardcoded-text candidates.
func (w *walker) handleAttribute(node *sitter.Node) {
	name := node.NamedChild(0)
	if name == nil || !w.opts.CheckedAttributes[name.Content(w.unit.Text)] {
		return
	}
	for i := 1; i < int(node.NamedChildCount()); i++ {
		value := node.NamedChild(i)
		switch value.Type() {
		case "string":
			w.checkTextExpr(value, false)
		case "jsx_expression":
			if expr := firstNamedNonComment(value); expr != nil {
				w.checkTextExpr(expr, false)
			}
		}
	}
}

// checkTextExpr descends the expression shapes that can carry literal text:
// strings, template literal static segments, conditional branches and
// logical fallbacks. Anything else (calls, identifiers) is left alone.
func (w *walker) checkTextExpr(expr *sitter.Node, inJSX bool) {
	switch expr.Type() {
	case "string":
		w.maybeHardcoded(stringContent(expr, w.unit.Text), expr, inJSX)
	case "template_string":
		for i := 0; i < int(expr.NamedChildCount()); i++ {
			child := expr.NamedChild(i)
			if child.Type() == "string_fragment" {
				w.maybeHardcoded(child.Content(w.unit.Text), child, inJSX)
			}
		}
	case "ternary_expression":
		if c := expr.ChildByFieldName("consequence"); c != nil {
			w.checkTextExpr(c, inJSX)
		}
		if a := expr.ChildByFieldName("alternative"); a != nil {
			w.checkTextExpr(a, inJSX)
		}
	case "binary_expression":
		op := expr.ChildByFieldName("operator")
		if op == nil {
			return
		}
		switch op.Type() {
		case "||", "??":
			if l := expr.ChildByFieldName("left"); l != nil {
				w.checkTextExpr(l, inJSX)
			}
			if r := expr.ChildByFieldName("right"); r != nil {
				w.checkTextExpr(r, inJSX)
			}
		case "&&":
			// Guard patterns render only the right branch.
			if r := expr.ChildByFieldName("right"); r != nil {
				w.checkTextExpr(r, inJSX)
			}
		}
	case "parenthesized_expression":
		if inner := firstNamedNonComment(expr); inner != nil {
			w.checkTextExpr(inner, inJSX)
		}
	}
}

func (w *walker) maybeHardcoded(text string, node *sitter.Node, inJSX bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || !ContainsAlphabetic(trimmed) {
		return
	}
	if w.opts.IgnoreTexts[trimmed] {
		return
	}
	line := int(node.StartPoint().Row) + 1
	f := finding.New(finding.Hardcoded, w.unit.Path, parser.NodeSpan(node),
		fmt.Sprintf("hardcoded text %q", trimmed))
	f.Text = trimmed
	f.SourceLine = w.unit.Line(line)
	f.InJSX = inJSX
	f.Suppressed = w.tracker.IsSuppressed(line, finding.Hardcoded)
	w.result.Findings = append(w.result.Findings, f)
}

// ContainsAlphabetic reports whether s has at least one letter in any
// script. Pure digits and punctuation never qualify as hardcoded text.
func ContainsAlphabetic(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func joinKey(namespace, key string) string {
	if namespace == "" {
		return key
	}
	return namespace + "." + key
}

func firstArgument(call *sitter.Node) *sitter.Node {
	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return nil
	}
	return args.NamedChild(0)
}

func firstNamedNonComment(node *sitter.Node) *sitter.Node {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if child := node.NamedChild(i); child.Type() != "comment" {
			return child
		}
	}
	return nil
}

func stringContent(str *sitter.Node, text []byte) string {
	var sb strings.Builder
	for i := 0; i < int(str.NamedChildCount()); i++ {
		child := str.NamedChild(i)
		if child.Type() == "string_fragment" || child.Type() == "escape_sequence" {
			sb.WriteString(child.Content(text))
		}
	}
	return sb.String()
}

func hasSubstitution(template *sitter.Node) bool {
	for i := 0; i < int(template.NamedChildCount()); i++ {
		if template.NamedChild(i).Type() == "template_substitution" {
			return true
		}
	}
	return false
}

// templatePattern renders a template key as its static fragments with "*"
// standing in for each interpolation, e.g. `roles.${role}.name` -> "roles.*.name".
func templatePattern(template *sitter.Node, text []byte) string {
	var sb strings.Builder
	for i := 0; i < int(template.NamedChildCount()); i++ {
		child := template.NamedChild(i)
		switch child.Type() {
		case "string_fragment", "escape_sequence":
			sb.WriteString(child.Content(text))
		case "template_substitution":
			sb.WriteString("*")
		}
	}
	return sb.String()
}

// inJSXChildren reports whether a node sits in JSX children context, which
// decides between "//" and "{/* */}" for inserted suppression comments.
func inJSXChildren(node *sitter.Node) bool {
	for p := node.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case "jsx_element", "jsx_fragment":
			return true
		case "jsx_opening_element", "jsx_self_closing_element",
			"statement_block", "program", "arrow_function", "function_declaration":
			return false
		}
	}
	return false
}
