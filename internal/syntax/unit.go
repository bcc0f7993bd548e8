// Package syntax wraps the tree-sitter C grammar. It owns the parsed tree of one
// translation unit, the attachment directive lines found in it, and the span
// arithmetic the rest of the weaver reports diagnostics with.
package syntax

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/getlawrence/cattach/internal/diagnostics"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
)

// Directive keywords recognized on preprocessor lines.
const (
	KeywordBefore = "before"
	KeywordAfter  = "after"
)

// Unit is one parsed translation unit.
type Unit struct {
	Path       string
	Source     []byte
	Root       *sitter.Node
	Directives []RawDirective

	tree       *sitter.Tree
	lineStarts []uint32
}

// RawDirective is an unparsed `#before`/`#after` line.
type RawDirective struct {
	Keyword string `json:"keyword"`
	Text    string `json:"text"`
	Span    diagnostics.Span
	// Bytes dropped from the output: the directive's indentation and text,
	// but not its newline, so line numbers survive weaving.
	RemoveStart uint32 `json:"remove_start"`
	RemoveEnd   uint32 `json:"remove_end"`
}

// Parse parses one translation unit. A new parser is created per call so
// units can be parsed from concurrent workers.
func Parse(ctx context.Context, path string, src []byte) (*Unit, error) {
	u, err := parse(ctx, path, src)
	if err != nil {
		return nil, err
	}
	if n := firstError(u.Root); n != nil {
		defer u.Close()
		msg := fmt.Sprintf("syntax error near %q", clip(u.Text(n), 40))
		if n.IsMissing() {
			msg = fmt.Sprintf("missing %q", n.Type())
		}
		return nil, &diagnostics.ParseError{Span: u.Span(n), Message: msg}
	}
	return u, nil
}

// ParseDirectiveHeader reads a standalone file of directives shared by several
// units. Only its directive lines are used; the rest may be any C.
func ParseDirectiveHeader(ctx context.Context, path string, src []byte) ([]RawDirective, error) {
	u, err := parse(ctx, path, src)
	if err != nil {
		return nil, err
	}
	defer u.Close()
	return u.Directives, nil
}

func parse(ctx context.Context, path string, src []byte) (*Unit, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(c.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	u := &Unit{
		Path:       path,
		Source:     src,
		Root:       tree.RootNode(),
		tree:       tree,
		lineStarts: lineStarts(src),
	}
	u.collectDirectives(u.Root)
	return u, nil
}

// Close releases the tree.
func (u *Unit) Close() {
	if u.tree != nil {
		u.tree.Close()
		u.tree = nil
	}
}

func (u *Unit) collectDirectives(n *sitter.Node) {
	if n.Type() == "preproc_call" {
		if d, ok := u.directive(n); ok {
			u.Directives = append(u.Directives, d)
		}
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		u.collectDirectives(n.NamedChild(i))
	}
}

func (u *Unit) directive(n *sitter.Node) (RawDirective, bool) {
	dir := n.ChildByFieldName("directive")
	if dir == nil {
		return RawDirective{}, false
	}
	keyword := strings.TrimSpace(strings.TrimPrefix(u.Text(dir), "#"))
	if keyword != KeywordBefore && keyword != KeywordAfter {
		return RawDirective{}, false
	}

	start, end := n.StartByte(), n.EndByte()
	for end > start && (u.Source[end-1] == '\n' || u.Source[end-1] == '\r') {
		end--
	}
	removeStart := start
	for removeStart > 0 && (u.Source[removeStart-1] == ' ' || u.Source[removeStart-1] == '\t') {
		removeStart--
	}

	return RawDirective{
		Keyword:     keyword,
		Text:        string(u.Source[start:end]),
		Span:        u.SpanAt(start, end),
		RemoveStart: removeStart,
		RemoveEnd:   end,
	}, true
}

// firstError returns the first ERROR or MISSING node in document order.
func firstError(n *sitter.Node) *sitter.Node {
	if n.IsMissing() || n.Type() == "ERROR" {
		return n
	}
	if !n.HasError() {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if e := firstError(n.Child(i)); e != nil {
			return e
		}
	}
	return nil
}

// Text returns the source text of a node.
func (u *Unit) Text(n *sitter.Node) string {
	return n.Content(u.Source)
}

// Span locates a node.
func (u *Unit) Span(n *sitter.Node) diagnostics.Span {
	return u.SpanAt(n.StartByte(), n.EndByte())
}

// SpanAt locates an arbitrary byte range.
func (u *Unit) SpanAt(start, end uint32) diagnostics.Span {
	line := sort.Search(len(u.lineStarts), func(i int) bool { return u.lineStarts[i] > start }) - 1
	if line < 0 {
		line = 0
	}
	return diagnostics.Span{
		File:      u.Path,
		StartByte: start,
		EndByte:   end,
		Line:      line + 1,
		Column:    int(start-u.lineStarts[line]) + 1,
	}
}

// LineIndent returns the whitespace that opens the line containing offset.
func (u *Unit) LineIndent(offset uint32) string {
	line := sort.Search(len(u.lineStarts), func(i int) bool { return u.lineStarts[i] > offset }) - 1
	if line < 0 {
		return ""
	}
	start := u.lineStarts[line]
	end := start
	for end < uint32(len(u.Source)) && (u.Source[end] == ' ' || u.Source[end] == '\t') {
		end++
	}
	return string(u.Source[start:end])
}

// IndentUnit guesses one level of indentation from the first indented line.
func (u *Unit) IndentUnit() string {
	for _, start := range u.lineStarts {
		if int(start) >= len(u.Source) {
			break
		}
		switch u.Source[start] {
		case '\t':
			return "\t"
		case ' ':
			n := 0
			for int(start)+n < len(u.Source) && u.Source[int(start)+n] == ' ' {
				n++
			}
			if int(start)+n < len(u.Source) && u.Source[int(start)+n] != '\n' {
				return strings.Repeat(" ", n)
			}
		}
	}
	return "    "
}

func lineStarts(src []byte) []uint32 {
	starts := []uint32{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, uint32(i+1))
		}
	}
	return starts
}

func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
