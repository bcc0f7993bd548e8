// Package symbols builds the symbol and type table of one translation unit and
// answers "what static type does this expression have".
package symbols

import (
	"errors"
	"fmt"
	"strings"

	"github.com/getlawrence/cattach/internal/diagnostics"
	"github.com/getlawrence/cattach/internal/syntax"
	sitter "github.com/smacker/go-tree-sitter"
)

// ErrUnresolved is wrapped by every TypeOf failure.
var ErrUnresolved = errors.New("unresolved type")

// Kind classifies a symbol.
type Kind int

const (
	Variable Kind = iota
	Parameter
	Function
	Enumerator
)

func (k Kind) String() string {
	switch k {
	case Parameter:
		return "parameter"
	case Function:
		return "function"
	case Enumerator:
		return "enumerator"
	}
	return "variable"
}

// Symbol is one declared name.
type Symbol struct {
	Name string
	Type string
	// Qualified is Type spelled with the qualifiers of the declaration.
	Qualified string
	Kind      Kind
	// Pos is the offset from which the symbol is visible.
	Pos  uint32
	Span diagnostics.Span
}

// Scope is a lexical region: the unit, a function, a block or a for header.
type Scope struct {
	Start    uint32
	End      uint32
	Parent   *Scope
	Children []*Scope
	Symbols  []Symbol
}

func (s *Scope) open(n *sitter.Node) *Scope {
	child := &Scope{Start: n.StartByte(), End: n.EndByte(), Parent: s}
	s.Children = append(s.Children, child)
	return child
}

func (s *Scope) declare(sym Symbol) {
	s.Symbols = append(s.Symbols, sym)
}

// Table maps identifiers to declared types within lexical scope.
type Table struct {
	unit     *syntax.Unit
	global   *Scope
	typedefs map[string]string
	fields   map[string]map[string]string
	// qtypedefs and qfields keep qualifiers, for spelling temporaries.
	qtypedefs map[string]string
	qfields   map[string]map[string]string
	extra     map[string]bool
	idents    map[string]bool
}

// Build walks the unit once and records every declaration. extraTypes are
// additional type names the unit uses without declaring them.
func Build(u *syntax.Unit, extraTypes ...string) *Table {
	t := &Table{
		unit:     u,
		global:   &Scope{Start: u.Root.StartByte(), End: u.Root.EndByte()},
		typedefs:  make(map[string]string),
		fields:    make(map[string]map[string]string),
		qtypedefs: make(map[string]string),
		qfields:   make(map[string]map[string]string),
		extra:     make(map[string]bool),
		idents:    make(map[string]bool),
	}
	for _, name := range extraTypes {
		t.extra[name] = true
	}
	for _, id := range u.Identifiers() {
		t.idents[id] = true
	}
	t.walk(u.Root, t.global)
	return t
}

func (t *Table) walk(n *sitter.Node, scope *Scope) {
	switch n.Type() {
	case "function_definition":
		t.function(n, scope)
		return
	case "compound_statement", "for_statement":
		inner := scope.open(n)
		for _, child := range syntax.NamedChildren(n) {
			t.walk(child, inner)
		}
		return
	case "declaration":
		t.declaration(n, scope)
		return
	case "type_definition":
		t.typedef(n)
		return
	case "struct_specifier", "union_specifier":
		t.aggregate(n)
		return
	case "enum_specifier":
		t.enum(n, scope)
		return
	case "preproc_call":
		return
	}
	for _, child := range syntax.NamedChildren(n) {
		t.walk(child, scope)
	}
}

func (t *Table) function(n *sitter.Node, scope *Scope) {
	base := t.baseType(n.ChildByFieldName("type"))
	declarator := n.ChildByFieldName("declarator")
	if declarator == nil {
		return
	}
	name, typ := t.derive(base, declarator, false)
	_, qtyp := t.derive(t.qualified(n, base), declarator, true)
	scope.declare(Symbol{
		Name:      name,
		Type:      typ,
		Qualified: qtyp,
		Kind:      Function,
		Pos:       declarator.StartByte(),
		Span:      t.unit.Span(declarator),
	})

	fnScope := scope.open(n)
	if fd := functionDeclarator(declarator); fd != nil {
		if params := fd.ChildByFieldName("parameters"); params != nil {
			for _, p := range syntax.NamedChildren(params) {
				if p.Type() != "parameter_declaration" {
					continue
				}
				pd := p.ChildByFieldName("declarator")
				if pd == nil {
					continue
				}
				pbase := t.baseType(p.ChildByFieldName("type"))
				pname, ptyp := t.derive(pbase, pd, false)
				if pname == "" {
					continue
				}
				_, pq := t.derive(t.qualified(p, pbase), pd, true)
				fnScope.declare(Symbol{Name: pname, Type: ptyp, Qualified: pq, Kind: Parameter, Pos: p.EndByte(), Span: t.unit.Span(p)})
			}
		}
	}
	if body := n.ChildByFieldName("body"); body != nil {
		t.walk(body, fnScope)
	}
}

// functionDeclarator finds the function_declarator that names a function
// definition, looking through pointer declarators on the return type.
func functionDeclarator(n *sitter.Node) *sitter.Node {
	for n != nil {
		switch n.Type() {
		case "function_declarator":
			return n
		case "pointer_declarator", "parenthesized_declarator", "attributed_declarator":
			if d := n.ChildByFieldName("declarator"); d != nil {
				n = d
			} else {
				n = n.NamedChild(0)
			}
		default:
			return nil
		}
	}
	return nil
}

var declaratorTypes = map[string]bool{
	"identifier":               true,
	"field_identifier":         true,
	"type_identifier":          true,
	"init_declarator":          true,
	"pointer_declarator":       true,
	"array_declarator":         true,
	"function_declarator":      true,
	"parenthesized_declarator": true,
	"attributed_declarator":    true,
}

// Declarators returns the declarator children of a declaration-like node.
func Declarators(n *sitter.Node) []*sitter.Node {
	typ := n.ChildByFieldName("type")
	var out []*sitter.Node
	for _, child := range syntax.NamedChildren(n) {
		if typ != nil && syntax.SameNode(child, typ) {
			continue
		}
		if declaratorTypes[child.Type()] {
			out = append(out, child)
		}
	}
	return out
}

func (t *Table) declaration(n *sitter.Node, scope *Scope) {
	typeNode := n.ChildByFieldName("type")
	base := t.baseType(typeNode)
	qbase := t.qualified(n, base)
	for _, d := range Declarators(n) {
		name, typ := t.derive(base, d, false)
		if name == "" {
			continue
		}
		_, qtyp := t.derive(qbase, d, true)
		kind := Variable
		pos := d.EndByte()
		if fd := functionDeclarator(d); fd != nil && strings.HasSuffix(typ, ")") {
			kind = Function
			pos = d.StartByte()
		}
		if d.Type() == "init_declarator" {
			if inner := d.ChildByFieldName("declarator"); inner != nil {
				pos = inner.EndByte()
			}
		}
		scope.declare(Symbol{Name: name, Type: typ, Qualified: qtyp, Kind: kind, Pos: pos, Span: t.unit.Span(d)})
	}
}

func (t *Table) typedef(n *sitter.Node) {
	base := t.baseType(n.ChildByFieldName("type"))
	qbase := t.qualified(n, base)
	for _, d := range Declarators(n) {
		name, typ := t.derive(base, d, false)
		if name == "" {
			continue
		}
		t.typedefs[name] = typ
		_, t.qtypedefs[name] = t.derive(qbase, d, true)
		if fields, ok := t.fields[typ]; ok && strings.Contains(typ, "<anon") {
			t.fields[name] = fields
			t.qfields[name] = t.qfields[typ]
		}
	}
}

func (t *Table) aggregate(n *sitter.Node) {
	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}
	key := t.aggregateName(n)
	fields := make(map[string]string)
	qfields := make(map[string]string)
	for _, fd := range syntax.NamedChildren(body) {
		if fd.Type() != "field_declaration" {
			continue
		}
		base := t.baseType(fd.ChildByFieldName("type"))
		qbase := t.qualified(fd, base)
		for _, d := range Declarators(fd) {
			if name, typ := t.derive(base, d, false); name != "" {
				fields[name] = typ
				_, qfields[name] = t.derive(qbase, d, true)
			}
		}
	}
	t.fields[key] = fields
	t.qfields[key] = qfields
}

func (t *Table) enum(n *sitter.Node, scope *Scope) {
	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}
	for _, e := range syntax.NamedChildren(body) {
		if e.Type() != "enumerator" {
			continue
		}
		if name := e.ChildByFieldName("name"); name != nil {
			scope.declare(Symbol{Name: t.unit.Text(name), Type: "int", Qualified: "int", Kind: Enumerator, Pos: e.EndByte(), Span: t.unit.Span(e)})
		}
	}
}

func (t *Table) aggregateName(n *sitter.Node) string {
	kw := strings.TrimSuffix(n.Type(), "_specifier")
	if name := n.ChildByFieldName("name"); name != nil {
		return kw + " " + t.unit.Text(name)
	}
	return fmt.Sprintf("%s <anon@%d>", kw, n.StartByte())
}

// baseType spells the type specifier of a declaration, registering any
// aggregate or enum it defines along the way.
func (t *Table) baseType(n *sitter.Node) string {
	if n == nil {
		return "int"
	}
	switch n.Type() {
	case "struct_specifier", "union_specifier":
		t.aggregate(n)
		return t.aggregateName(n)
	case "enum_specifier":
		if n.ChildByFieldName("body") != nil {
			t.enum(n, t.global)
		}
		if name := n.ChildByFieldName("name"); name != nil {
			return "enum " + t.unit.Text(name)
		}
		return "int"
	}
	return Normalize(t.unit.Text(n))
}

// derive applies a declarator to a base type and returns the declared name and
// its full type. With keep, pointer qualifiers are spelled after their '*'.
func (t *Table) derive(typ string, d *sitter.Node, keep bool) (string, string) {
	if d == nil {
		return "", typ
	}
	switch d.Type() {
	case "identifier", "field_identifier", "type_identifier":
		return t.unit.Text(d), typ
	case "init_declarator", "attributed_declarator":
		return t.derive(typ, d.ChildByFieldName("declarator"), keep)
	case "pointer_declarator", "abstract_pointer_declarator":
		typ += "*"
		if keep {
			typ += strings.Join(t.typeQualifiers(d), " ")
		}
		return t.derive(typ, d.ChildByFieldName("declarator"), keep)
	case "array_declarator", "abstract_array_declarator":
		return t.derive(typ+"[]", d.ChildByFieldName("declarator"), keep)
	case "function_declarator", "abstract_function_declarator":
		return t.derive(typ+"("+t.params(d.ChildByFieldName("parameters"))+")", d.ChildByFieldName("declarator"), keep)
	case "parenthesized_declarator", "abstract_parenthesized_declarator":
		if d.NamedChildCount() > 0 {
			return t.derive(typ, d.NamedChild(0), keep)
		}
	}
	return "", typ
}

// typeQualifiers returns the qualifiers written directly under n.
func (t *Table) typeQualifiers(n *sitter.Node) []string {
	var out []string
	for _, c := range syntax.NamedChildren(n) {
		if c.Type() == "type_qualifier" {
			out = append(out, t.unit.Text(c))
		}
	}
	return out
}

// qualified prefixes base with the qualifiers among the specifiers of the
// declaration-like node n.
func (t *Table) qualified(n *sitter.Node, base string) string {
	return withQualifiers(base, t.typeQualifiers(n))
}

func (t *Table) params(list *sitter.Node) string {
	if list == nil {
		return ""
	}
	var parts []string
	for _, p := range syntax.NamedChildren(list) {
		switch p.Type() {
		case "parameter_declaration":
			_, typ := t.derive(t.baseType(p.ChildByFieldName("type")), p.ChildByFieldName("declarator"), false)
			parts = append(parts, typ)
		case "variadic_parameter":
			parts = append(parts, "...")
		}
	}
	return strings.Join(parts, ",")
}

// TypeDescriptor spells a type_descriptor node (casts, sizeof, compound literals).
func (t *Table) TypeDescriptor(n *sitter.Node) string {
	_, typ := t.derive(t.baseType(n.ChildByFieldName("type")), n.ChildByFieldName("declarator"), false)
	return typ
}

// Lookup resolves name as seen from offset at.
func (t *Table) Lookup(name string, at uint32) (Symbol, bool) {
	scope := t.innermost(t.global, at)
	for s := scope; s != nil; s = s.Parent {
		for i := len(s.Symbols) - 1; i >= 0; i-- {
			sym := s.Symbols[i]
			if sym.Name != name {
				continue
			}
			if sym.Pos <= at || (s == t.global && sym.Kind == Function) {
				return sym, true
			}
		}
	}
	return Symbol{}, false
}

func (t *Table) innermost(s *Scope, at uint32) *Scope {
	for _, child := range s.Children {
		if child.Start <= at && at < child.End {
			return t.innermost(child, at)
		}
	}
	return s
}

// IsTypeName reports whether name denotes a type in this unit.
func (t *Table) IsTypeName(name string) bool {
	if builtinTypes[name] || t.extra[name] {
		return true
	}
	_, ok := t.typedefs[name]
	return ok
}

// HasIdentifier reports whether name is spelled anywhere in the unit.
func (t *Table) HasIdentifier(name string) bool {
	return t.idents[name]
}

// Identifiers returns the set of identifiers spelled in the unit.
func (t *Table) Identifiers() map[string]bool {
	return t.idents
}

// Canonical expands typedef names in the base of t.
func (t *Table) Canonical(typ string) string {
	for i := 0; i < 16; i++ {
		base, suffix := splitBase(typ)
		under, ok := t.typedefs[base]
		if !ok {
			return typ
		}
		typ = under + suffix
	}
	return typ
}

// Deref returns the type of *x for x of type typ.
func (t *Table) Deref(typ string) (string, bool) {
	for _, cand := range []string{typ, t.Canonical(typ)} {
		switch {
		case strings.HasSuffix(cand, "*"):
			return strings.TrimSuffix(cand, "*"), true
		case strings.HasSuffix(cand, "[]"):
			return strings.TrimSuffix(cand, "[]"), true
		case strings.HasSuffix(cand, ")"):
			return cand, true
		}
	}
	return "", false
}

// IsPointer reports whether typ is a pointer or array type.
func (t *Table) IsPointer(typ string) bool {
	c := t.Canonical(typ)
	return strings.HasSuffix(c, "*") || strings.HasSuffix(c, "[]")
}

// Field returns the type of member name in aggregate typ.
func (t *Table) Field(typ, name string) (string, bool) {
	for _, cand := range []string{typ, t.Canonical(typ)} {
		if fields, ok := t.fields[cand]; ok {
			f, ok := fields[name]
			return f, ok
		}
	}
	return "", false
}

// ReturnType returns the result type of calling something of type typ.
func (t *Table) ReturnType(typ string) (string, bool) {
	for _, cand := range []string{typ, t.Canonical(typ)} {
		cand = strings.TrimSuffix(cand, "*")
		if i := funcOpen(cand); i > 0 {
			return cand[:i], true
		}
	}
	return "", false
}
