// Package scanner walks a parsed unit and records every operation site a
// directive could attach to.
package scanner

import (
	"github.com/getlawrence/cattach/internal/diagnostics"
	"github.com/getlawrence/cattach/internal/directive"
	"github.com/getlawrence/cattach/internal/symbols"
	"github.com/getlawrence/cattach/internal/syntax"
	sitter "github.com/smacker/go-tree-sitter"
)

// Context is where a site is evaluated relative to its statement.
type Context int

const (
	// Straight sites are evaluated exactly once each time the statement runs.
	Straight Context = iota
	// Conditional sites may not be evaluated: right of && and ||, arms of ?:,
	// right of a comma.
	Conditional
	// LoopHeader sites are re-evaluated by the loop: conditions, for updates
	// and for-init declarations.
	LoopHeader
	// FileScope sites sit outside any function body, or in the initializer
	// of a block-scope object with static or thread storage.
	FileScope
)

func (c Context) String() string {
	switch c {
	case Conditional:
		return "conditional operand"
	case LoopHeader:
		return "loop header"
	case FileScope:
		return "file scope"
	}
	return "statement"
}

// Site is one occurrence of an operation.
type Site struct {
	ID   int
	Kind directive.Kind
	// Op is the operation node. An initializer's op is its init_declarator.
	Op *sitter.Node
	// Instance is the operand a directive target is matched against.
	Instance *sitter.Node
	Operands []*sitter.Node
	// Dest is where an RvalueUse stores the value it reads.
	Dest *sitter.Node
	// Name is the instance's identifier, empty when it is not a bare name.
	Name    string
	Stmt    *sitter.Node
	Context Context
	Type    string
	TypeErr error
	Span    diagnostics.Span
}

type state struct {
	ctx  Context
	stmt *sitter.Node
	fn   bool
}

type scanner struct {
	unit  *syntax.Unit
	table *symbols.Table
	sites []Site
}

// Scan returns every site of the unit in source order. An operation's sites
// come before the sites of its operands.
func Scan(u *syntax.Unit, table *symbols.Table) []Site {
	s := &scanner{unit: u, table: table}
	s.visit(u.Root, state{ctx: FileScope})
	return s.sites
}

func (s *scanner) children(n *sitter.Node, st state) {
	for _, c := range syntax.NamedChildren(n) {
		s.visit(c, st)
	}
}

func (s *scanner) visit(n *sitter.Node, st state) {
	if n == nil {
		return
	}

	switch n.Type() {
	case "function_definition":
		s.visit(n.ChildByFieldName("body"), state{ctx: Straight, fn: true})

	case "declaration":
		s.declaration(n, st)

	case "compound_statement":
		st.stmt = nil
		s.children(n, st)

	case "expression_statement", "return_statement":
		st.stmt = n
		s.children(n, st)

	case "if_statement", "switch_statement":
		st.stmt = n
		cond := n.ChildByFieldName("condition")
		s.visit(cond, st)
		for _, c := range syntax.NamedChildren(n) {
			if !syntax.SameNode(c, cond) {
				s.visit(c, st)
			}
		}

	case "while_statement", "do_statement", "for_statement":
		body := n.ChildByFieldName("body")
		header := state{ctx: LoopHeader, stmt: n, fn: st.fn}
		for _, c := range syntax.NamedChildren(n) {
			if syntax.SameNode(c, body) {
				s.visit(c, st)
			} else {
				s.visit(c, header)
			}
		}

	case "case_statement":
		value := n.ChildByFieldName("value")
		for _, c := range syntax.NamedChildren(n) {
			if !syntax.SameNode(c, value) {
				s.visit(c, st)
			}
		}

	case "sizeof_expression", "alignof_expression", "offsetof_expression", "type_descriptor",
		"macro_type_specifier", "struct_specifier", "union_specifier", "enum_specifier",
		"preproc_call", "preproc_def", "preproc_function_def", "preproc_include", "comment",
		"gnu_asm_expression", "type_definition", "field_declaration_list", "parameter_list":
		return

	case "assignment_expression":
		s.assignment(n, st)

	case "update_expression":
		kind := directive.PostIncrement
		switch {
		case syntax.Operator(n) == "++" && syntax.IsPrefix(n):
			kind = directive.PreIncrement
		case syntax.Operator(n) == "--" && syntax.IsPrefix(n):
			kind = directive.PreDecrement
		case syntax.Operator(n) == "--":
			kind = directive.PostDecrement
		}
		arg := n.ChildByFieldName("argument")
		s.add(kind, n, arg, nil, nil, st)
		s.visit(arg, st)

	case "binary_expression":
		s.binary(n, st)

	case "unary_expression":
		arg := n.ChildByFieldName("argument")
		switch syntax.Operator(n) {
		case "!":
			s.add(directive.Not, n, arg, nil, nil, st)
		case "~":
			s.add(directive.Flip, n, arg, nil, nil, st)
		}
		s.visit(arg, st)

	case "pointer_expression":
		arg := n.ChildByFieldName("argument")
		if syntax.Operator(n) == "*" {
			s.add(directive.Dereference, n, arg, nil, nil, st)
		}
		s.visit(arg, st)

	case "field_expression":
		arg := n.ChildByFieldName("argument")
		if FieldOperator(n) == "->" {
			s.add(directive.Indirection, n, arg, nil, nil, st)
		} else {
			s.add(directive.Member, n, arg, nil, nil, st)
		}
		s.visit(arg, st)

	case "subscript_expression":
		arg, index := n.ChildByFieldName("argument"), n.ChildByFieldName("index")
		s.add(directive.Subscript, n, arg, []*sitter.Node{index}, nil, st)
		s.visit(arg, st)
		s.visit(index, st)

	case "call_expression":
		fn, args := n.ChildByFieldName("function"), n.ChildByFieldName("arguments")
		var operands []*sitter.Node
		if args != nil {
			for _, a := range syntax.NamedChildren(args) {
				if a.Type() != "comment" {
					operands = append(operands, a)
				}
			}
		}
		s.add(directive.Call, n, fn, operands, nil, st)
		s.visit(fn, st)
		for _, a := range operands {
			s.visit(a, st)
		}

	case "conditional_expression":
		s.visit(n.ChildByFieldName("condition"), st)
		s.visit(n.ChildByFieldName("consequence"), st.conditional())
		s.visit(n.ChildByFieldName("alternative"), st.conditional())

	case "comma_expression":
		s.visit(n.ChildByFieldName("left"), st)
		s.visit(n.ChildByFieldName("right"), st.conditional())

	case "cast_expression":
		s.visit(n.ChildByFieldName("value"), st)

	case "compound_literal_expression":
		s.visit(n.ChildByFieldName("value"), st)

	case "init_declarator", "array_declarator", "pointer_declarator", "function_declarator":
		// Only reached through declarations, which handle initializers.
		return

	default:
		s.children(n, st)
	}
}

func (st state) conditional() state {
	if st.ctx == Straight {
		st.ctx = Conditional
	}
	return st
}

var staticStorage = map[string]bool{
	"static":        true,
	"_Thread_local": true,
	"thread_local":  true,
	"__thread":      true,
}

func (s *scanner) declaration(n *sitter.Node, st state) {
	if st.stmt == nil {
		st.stmt = n
	}
	// Such initializers run once, before the enclosing function is entered.
	if s.staticStorage(n) {
		st.ctx = FileScope
	}
	for _, d := range syntax.NamedChildren(n) {
		if d.Type() != "init_declarator" {
			continue
		}
		value := d.ChildByFieldName("value")
		if value == nil {
			continue
		}
		if value.Type() != "initializer_list" && s.designatesObject(value) {
			if dest := DeclaredName(d); dest != nil {
				s.add(directive.RvalueUse, d, value, []*sitter.Node{dest}, dest, st)
			}
		}
		s.visit(value, st)
	}
}

func (s *scanner) staticStorage(n *sitter.Node) bool {
	for _, c := range syntax.NamedChildren(n) {
		if c.Type() == "storage_class_specifier" && staticStorage[s.unit.Text(c)] {
			return true
		}
	}
	return false
}

func (s *scanner) assignment(n *sitter.Node, st state) {
	left, right := n.ChildByFieldName("left"), n.ChildByFieldName("right")
	readsObject := s.designatesObject(right)

	if syntax.Operator(n) == "=" {
		s.add(directive.LvalueUse, n, left, []*sitter.Node{right}, nil, st)
		if readsObject {
			s.add(directive.RvalueUse, n, right, []*sitter.Node{left}, left, st)
		}
	} else {
		s.add(directive.RvalueUse, n, left, []*sitter.Node{right}, left, st)
		if readsObject {
			s.add(directive.RvalueUse, n, right, []*sitter.Node{left}, left, st)
		}
		s.add(directive.LvalueUse, n, left, []*sitter.Node{right}, nil, st)
	}

	s.visit(left, st)
	s.visit(right, st)
}

func (s *scanner) binary(n *sitter.Node, st state) {
	op := syntax.Operator(n)
	left, right := n.ChildByFieldName("left"), n.ChildByFieldName("right")

	if directive.IsComparisonOp(op) {
		s.add(directive.LCompare, n, left, []*sitter.Node{right}, nil, st)
		s.add(directive.RCompare, n, right, []*sitter.Node{left}, nil, st)
	} else if kind, ok := directive.BinaryKind(op); ok {
		s.add(kind, n, left, []*sitter.Node{right}, nil, st)
		s.add(kind, n, right, []*sitter.Node{left}, nil, st)
	}

	s.visit(left, st)
	if op == "&&" || op == "||" {
		s.visit(right, st.conditional())
	} else {
		s.visit(right, st)
	}
}

func (s *scanner) add(kind directive.Kind, op, instance *sitter.Node, operands []*sitter.Node, dest *sitter.Node, st state) {
	if instance == nil {
		return
	}
	site := Site{
		ID:       len(s.sites),
		Kind:     kind,
		Op:       op,
		Instance: instance,
		Operands: operands,
		Dest:     dest,
		Stmt:     st.stmt,
		Context:  st.ctx,
		Span:     s.unit.Span(instance),
	}
	if !st.fn {
		site.Context = FileScope
	}
	if id := syntax.StripParens(instance); id.Type() == "identifier" {
		site.Name = s.unit.Text(id)
	}
	site.Type, site.TypeErr = s.table.TypeOf(instance)
	s.sites = append(s.sites, site)
}

// designatesObject reports whether n names existing storage rather than
// computing a fresh value.
func (s *scanner) designatesObject(n *sitter.Node) bool {
	n = syntax.StripParens(n)
	if n == nil {
		return false
	}
	switch n.Type() {
	case "identifier":
		if sym, ok := s.table.Lookup(s.unit.Text(n), n.StartByte()); ok {
			return sym.Kind == symbols.Variable || sym.Kind == symbols.Parameter
		}
		return true
	case "field_expression", "subscript_expression":
		return true
	case "pointer_expression":
		return syntax.Operator(n) == "*"
	}
	return false
}

// FieldOperator returns "->" or "." for a field expression.
func FieldOperator(n *sitter.Node) string {
	if op := syntax.Operator(n); op != "" {
		return op
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if t := n.Child(i).Type(); t == "->" || t == "." {
			return t
		}
	}
	return ""
}

// DeclaredName returns the identifier a declarator declares.
func DeclaredName(d *sitter.Node) *sitter.Node {
	for d != nil {
		switch d.Type() {
		case "identifier":
			return d
		case "parenthesized_declarator":
			d = d.NamedChild(0)
		default:
			d = d.ChildByFieldName("declarator")
		}
	}
	return nil
}
