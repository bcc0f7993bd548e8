package symbols

import (
	"strings"

	"github.com/getlawrence/cattach/internal/syntax"
	sitter "github.com/smacker/go-tree-sitter"
)

// Qualified spellings follow the plain ones, with qualifiers that apply to
// the base written before it and qualifiers that apply to a pointer written
// after its '*': `const char *const p` is "const char*const".

var cvQualifiers = map[string]bool{
	"const":      true,
	"volatile":   true,
	"restrict":   true,
	"_Atomic":    true,
	"__restrict": true,
}

func withQualifiers(base string, quals []string) string {
	if len(quals) == 0 {
		return base
	}
	return strings.Join(quals, " ") + " " + base
}

// splitTop separates the qualifiers that apply to the outermost level of q.
func splitTop(q string) (string, []string) {
	i := strings.LastIndexAny(q, "*])")
	if i < 0 {
		var quals, rest []string
		for _, w := range strings.Fields(q) {
			if cvQualifiers[w] {
				quals = append(quals, w)
			} else {
				rest = append(rest, w)
			}
		}
		return strings.Join(rest, " "), quals
	}
	tail := strings.Fields(q[i+1:])
	for _, w := range tail {
		if !cvQualifiers[w] {
			return q, nil
		}
	}
	return q[:i+1], tail
}

// addTop applies quals to the outermost level of q.
func addTop(q string, quals []string) string {
	inner, have := splitTop(q)
	seen := make(map[string]bool, len(have))
	for _, w := range have {
		seen[w] = true
	}
	for _, w := range quals {
		if !seen[w] {
			have = append(have, w)
			seen[w] = true
		}
	}
	if len(have) == 0 {
		return inner
	}
	if _, suffix := splitBase(inner); suffix != "" {
		return inner + strings.Join(have, " ")
	}
	return withQualifiers(inner, have)
}

// expandQualified replaces a typedef name in the base of q by its qualified
// definition.
func (t *Table) expandQualified(q string) (string, bool) {
	base, suffix := splitBase(q)
	name, quals := splitTop(base)
	under, ok := t.qtypedefs[name]
	if !ok {
		return "", false
	}
	return addTop(under, quals) + suffix, true
}

func (t *Table) qualifiedDeref(q string) (string, bool) {
	for i := 0; i < 16; i++ {
		inner, _ := splitTop(q)
		switch {
		case strings.HasSuffix(inner, "*"):
			return strings.TrimSuffix(inner, "*"), true
		case strings.HasSuffix(inner, "[]"):
			return strings.TrimSuffix(inner, "[]"), true
		}
		next, ok := t.expandQualified(q)
		if !ok {
			return "", false
		}
		q = next
	}
	return "", false
}

func (t *Table) qualifiedField(q, name string) (string, bool) {
	base, quals := splitTop(q)
	for _, cand := range []string{base, t.Canonical(base)} {
		if fields, ok := t.qfields[cand]; ok {
			f, ok := fields[name]
			if !ok {
				return "", false
			}
			// Members of a qualified object share its qualifiers.
			return addTop(f, quals), true
		}
	}
	return "", false
}

func (t *Table) qualifiedReturn(q string) (string, bool) {
	for i := 0; i < 16; i++ {
		inner, _ := splitTop(q)
		inner = strings.TrimSuffix(inner, "*")
		if open := funcOpen(inner); open > 0 {
			return inner[:open], true
		}
		next, ok := t.expandQualified(q)
		if !ok {
			return "", false
		}
		q = next
	}
	return "", false
}

// QualifiedTypeOf is TypeOf spelled with the qualifiers of the object the
// expression designates, for declaring temporaries that hold its value or
// its address. It falls back to the plain type where qualifiers cannot be
// traced.
func (t *Table) QualifiedTypeOf(n *sitter.Node) (string, error) {
	plain, err := t.TypeOf(n)
	if err != nil {
		return "", err
	}
	if q, ok := t.qualifiedOf(n); ok && Normalize(q) == plain {
		return q, nil
	}
	return plain, nil
}

func (t *Table) qualifiedOf(n *sitter.Node) (string, bool) {
	n = syntax.StripParens(n)
	if n == nil {
		return "", false
	}

	switch n.Type() {
	case "identifier":
		sym, ok := t.Lookup(t.unit.Text(n), n.StartByte())
		if !ok || sym.Qualified == "" {
			return "", false
		}
		return sym.Qualified, true

	case "pointer_expression":
		q, ok := t.qualifiedOf(n.ChildByFieldName("argument"))
		if !ok {
			return "", false
		}
		if syntax.Operator(n) == "&" {
			return q + "*", true
		}
		return t.qualifiedDeref(q)

	case "subscript_expression":
		q, ok := t.qualifiedOf(n.ChildByFieldName("argument"))
		if !ok {
			return "", false
		}
		return t.qualifiedDeref(q)

	case "field_expression":
		q, ok := t.qualifiedOf(n.ChildByFieldName("argument"))
		if !ok {
			return "", false
		}
		if syntax.Operator(n) == "->" {
			if q, ok = t.qualifiedDeref(q); !ok {
				return "", false
			}
		}
		return t.qualifiedField(q, t.unit.Text(n.ChildByFieldName("field")))

	case "call_expression":
		q, ok := t.qualifiedOf(n.ChildByFieldName("function"))
		if !ok {
			return "", false
		}
		return t.qualifiedReturn(q)

	case "cast_expression":
		td := n.ChildByFieldName("type")
		_, q := t.derive(t.qualified(td, t.baseType(td.ChildByFieldName("type"))), td.ChildByFieldName("declarator"), true)
		return q, true
	}
	return "", false
}
