package symbols

import (
	"fmt"
	"strings"

	"github.com/getlawrence/cattach/internal/syntax"
	sitter "github.com/smacker/go-tree-sitter"
)

var comparisonOps = map[string]bool{
	"==": true, "!=": true, "<": true, ">": true, "<=": true, ">=": true,
	"&&": true, "||": true,
}

// TypeOf returns the static type of an expression. Failures wrap ErrUnresolved.
func (t *Table) TypeOf(n *sitter.Node) (string, error) {
	n = syntax.StripParens(n)
	if n == nil {
		return "", fmt.Errorf("%w: empty expression", ErrUnresolved)
	}

	switch n.Type() {
	case "identifier":
		name := t.unit.Text(n)
		sym, ok := t.Lookup(name, n.StartByte())
		if !ok {
			return "", fmt.Errorf("%w: %q is not declared", ErrUnresolved, name)
		}
		return sym.Type, nil

	case "number_literal":
		return numberType(t.unit.Text(n)), nil
	case "char_literal":
		return "int", nil
	case "string_literal", "concatenated_string":
		return "char*", nil
	case "true", "false":
		return "bool", nil
	case "null":
		return "void*", nil
	case "sizeof_expression", "alignof_expression":
		return "size_t", nil

	case "pointer_expression":
		at, err := t.TypeOf(n.ChildByFieldName("argument"))
		if err != nil {
			return "", err
		}
		if syntax.Operator(n) == "&" {
			return Pointer(at), nil
		}
		if d, ok := t.Deref(at); ok {
			return d, nil
		}
		return "", fmt.Errorf("%w: dereference of non-pointer type %q", ErrUnresolved, at)

	case "field_expression":
		bt, err := t.TypeOf(n.ChildByFieldName("argument"))
		if err != nil {
			return "", err
		}
		if syntax.Operator(n) == "->" {
			d, ok := t.Deref(bt)
			if !ok {
				return "", fmt.Errorf("%w: -> on non-pointer type %q", ErrUnresolved, bt)
			}
			bt = d
		}
		field := t.unit.Text(n.ChildByFieldName("field"))
		ft, ok := t.Field(bt, field)
		if !ok {
			return "", fmt.Errorf("%w: %q has no member %q", ErrUnresolved, bt, field)
		}
		return ft, nil

	case "subscript_expression":
		bt, err := t.TypeOf(n.ChildByFieldName("argument"))
		if err != nil {
			return "", err
		}
		if d, ok := t.Deref(bt); ok {
			return d, nil
		}
		return "", fmt.Errorf("%w: subscript of non-pointer type %q", ErrUnresolved, bt)

	case "call_expression":
		ft, err := t.TypeOf(n.ChildByFieldName("function"))
		if err != nil {
			return "", err
		}
		if rt, ok := t.ReturnType(ft); ok {
			return rt, nil
		}
		return "", fmt.Errorf("%w: call of non-function type %q", ErrUnresolved, ft)

	case "assignment_expression":
		return t.TypeOf(n.ChildByFieldName("left"))
	case "update_expression":
		return t.TypeOf(n.ChildByFieldName("argument"))
	case "cast_expression", "compound_literal_expression":
		return t.TypeDescriptor(n.ChildByFieldName("type")), nil
	case "conditional_expression":
		return t.TypeOf(n.ChildByFieldName("consequence"))
	case "comma_expression":
		return t.TypeOf(n.ChildByFieldName("right"))

	case "unary_expression":
		if syntax.Operator(n) == "!" {
			return "int", nil
		}
		at, err := t.TypeOf(n.ChildByFieldName("argument"))
		if err != nil {
			return "", err
		}
		return promote(at, "int"), nil

	case "binary_expression":
		return t.binaryType(n)
	}

	return "", fmt.Errorf("%w: unsupported expression %s", ErrUnresolved, n.Type())
}

func (t *Table) binaryType(n *sitter.Node) (string, error) {
	op := syntax.Operator(n)
	if comparisonOps[op] {
		return "int", nil
	}
	lt, err := t.TypeOf(n.ChildByFieldName("left"))
	if err != nil {
		return "", err
	}
	rt, err := t.TypeOf(n.ChildByFieldName("right"))
	if err != nil {
		return "", err
	}

	switch op {
	case "+", "-":
		lp, rp := t.IsPointer(lt), t.IsPointer(rt)
		switch {
		case lp && rp:
			return "long", nil
		case lp:
			return lt, nil
		case rp:
			return rt, nil
		}
	case "<<", ">>":
		return promote(lt, "int"), nil
	}
	return promote(lt, rt), nil
}

func numberType(lit string) string {
	l := strings.ToLower(lit)
	hex := strings.HasPrefix(l, "0x")
	if !hex && strings.ContainsAny(l, ".e") {
		if strings.HasSuffix(l, "f") {
			return "float"
		}
		return "double"
	}
	unsigned := strings.Contains(l, "u")
	long := strings.Contains(strings.TrimLeft(l, "0123456789abcdefx."), "l")
	switch {
	case unsigned && long:
		return "unsigned long"
	case long:
		return "long"
	case unsigned:
		return "unsigned int"
	}
	return "int"
}
