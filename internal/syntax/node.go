package syntax

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
)

// Key identifies a node independently of the *sitter.Node wrapper that
// carries it. A node and its only child can share a range, so the type is part
// of the key.
type Key struct {
	Start uint32
	End   uint32
	Type  string
}

// KeyOf returns the identity of n.
func KeyOf(n *sitter.Node) Key {
	return Key{Start: n.StartByte(), End: n.EndByte(), Type: n.Type()}
}

// Contains reports whether k's range encloses other's.
func (k Key) Contains(other Key) bool {
	return k.Start <= other.Start && other.End <= k.End
}

// StripParens unwraps parenthesized expressions.
func StripParens(n *sitter.Node) *sitter.Node {
	for n != nil && n.Type() == "parenthesized_expression" && n.NamedChildCount() == 1 {
		n = n.NamedChild(0)
	}
	return n
}

// NamedChildren returns the named children of n.
func NamedChildren(n *sitter.Node) []*sitter.Node {
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		out = append(out, n.NamedChild(i))
	}
	return out
}

// Operator returns the operator token of an operator node ("+", "->", "++").
func Operator(n *sitter.Node) string {
	if op := n.ChildByFieldName("operator"); op != nil {
		return op.Type()
	}
	return ""
}

// IsPrefix reports whether an update expression writes its operator first.
func IsPrefix(n *sitter.Node) bool {
	return n.ChildCount() > 0 && !n.Child(0).IsNamed()
}

// SameNode reports whether a and b are the same node.
func SameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	return KeyOf(a) == KeyOf(b)
}

// SnippetError locates a syntax error inside a parsed snippet.
type SnippetError struct {
	Offset  int
	Message string
}

func (e *SnippetError) Error() string {
	return fmt.Sprintf("offset %d: %s", e.Offset, e.Message)
}

const snippetPrefix = "void __snippet(void) {\n"

// ParseStatement checks that body is a single well-formed C statement and
// returns every identifier spelled in it.
func ParseStatement(ctx context.Context, body string) ([]string, error) {
	src := []byte(snippetPrefix + body + "\n}\n")

	parser := sitter.NewParser()
	parser.SetLanguage(c.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if n := firstError(root); n != nil {
		return nil, &SnippetError{
			Offset:  int(n.StartByte()) - len(snippetPrefix),
			Message: fmt.Sprintf("not a valid statement near %q", clip(n.Content(src), 30)),
		}
	}

	fn := root.NamedChild(0)
	if fn == nil || fn.Type() != "function_definition" {
		return nil, &SnippetError{Message: "not a statement"}
	}
	block := fn.ChildByFieldName("body")
	if block == nil || block.NamedChildCount() != 1 {
		return nil, &SnippetError{Message: "expected exactly one statement; wrap several in { }"}
	}

	var idents []string
	collectIdentifiers(block, src, &idents)
	return idents, nil
}

func collectIdentifiers(n *sitter.Node, src []byte, out *[]string) {
	switch n.Type() {
	case "identifier", "type_identifier", "field_identifier", "statement_identifier":
		*out = append(*out, n.Content(src))
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		collectIdentifiers(n.NamedChild(i), src, out)
	}
}

// Identifiers returns every identifier spelled in the unit.
func (u *Unit) Identifiers() []string {
	var idents []string
	collectIdentifiers(u.Root, u.Source, &idents)
	return idents
}
