package splice

import (
	"fmt"
	"sort"
	"strings"

	"github.com/getlawrence/cattach/internal/diagnostics"
	"github.com/getlawrence/cattach/internal/directive"
	"github.com/getlawrence/cattach/internal/scanner"
	"github.com/getlawrence/cattach/internal/syntax"
	sitter "github.com/smacker/go-tree-sitter"
)

// hoist is an operation moved out of its statement into a temporary.
type hoist struct {
	node *sitter.Node
	key  syntax.Key
	// byAddr hoists keep an lvalue usable: the temporary holds its address.
	byAddr bool
	name   string
}

func (h *hoist) ref() string {
	if h.byAddr {
		return "(*" + h.name + ")"
	}
	return h.name
}

type hoistSet map[syntax.Key]*hoist

// ordered returns the hoists inner first, then left to right.
func (hs hoistSet) ordered() []*hoist {
	out := make([]*hoist, 0, len(hs))
	for _, h := range hs {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].key, out[j].key
		if a.End != b.End {
			return a.End < b.End
		}
		return a.Start > b.Start
	})
	return out
}

// within returns the outermost hoists strictly inside n, left to right.
func (hs hoistSet) within(n *sitter.Node) []*hoist {
	return hs.inside(syntax.KeyOf(n))
}

func (hs hoistSet) inside(outer syntax.Key) []*hoist {
	var inside []*hoist
	for k, h := range hs {
		if k != outer && outer.Contains(k) {
			inside = append(inside, h)
		}
	}
	var maximal []*hoist
	for _, h := range inside {
		covered := false
		for _, o := range inside {
			if o != h && o.key.Contains(h.key) && o.key != h.key {
				covered = true
				break
			}
		}
		if !covered {
			maximal = append(maximal, h)
		}
	}
	sort.Slice(maximal, func(i, j int) bool { return maximal[i].key.Start < maximal[j].key.Start })
	return maximal
}

// host returns the innermost hoist whose evaluation includes n.
func (hs hoistSet) host(n *sitter.Node) *hoist {
	k := syntax.KeyOf(n)
	var best *hoist
	for hk, h := range hs {
		if !hk.Contains(k) {
			continue
		}
		if best == nil || best.key.Contains(hk) {
			best = h
		}
	}
	return best
}

// renderInner is the text of n with the hoists inside it replaced.
func (e *Engine) renderInner(n *sitter.Node, hs hoistSet) string {
	return e.renderSpan(syntax.KeyOf(n), hs)
}

func (e *Engine) renderSpan(k syntax.Key, hs hoistSet) string {
	src := e.unit.Source
	var b strings.Builder
	pos := k.Start
	for _, h := range hs.inside(k) {
		b.Write(src[pos:h.key.Start])
		b.WriteString(h.ref())
		pos = h.key.End
	}
	b.Write(src[pos:k.End])
	return b.String()
}

// render is the text that now evaluates to n's value.
func (e *Engine) render(n *sitter.Node, hs hoistSet) string {
	if h, ok := hs[syntax.KeyOf(n)]; ok {
		return h.ref()
	}
	return e.renderInner(n, hs)
}

var primaryTypes = map[string]bool{
	"identifier":               true,
	"number_literal":           true,
	"string_literal":           true,
	"char_literal":             true,
	"true":                     true,
	"false":                    true,
	"null":                     true,
	"field_expression":         true,
	"subscript_expression":     true,
	"call_expression":          true,
	"parenthesized_expression": true,
}

// captureText renders n for substitution into a body, parenthesized unless it
// is a primary or postfix expression.
func (e *Engine) captureText(n *sitter.Node, hs hoistSet) string {
	text := e.render(n, hs)
	if _, ok := hs[syntax.KeyOf(n)]; ok || primaryTypes[n.Type()] {
		return text
	}
	return "(" + text + ")"
}

// sideEffects reports whether evaluating n again would repeat a side effect.
// Hoisted operations are already evaluated into temporaries.
func sideEffects(n *sitter.Node, hs hoistSet) bool {
	if n == nil {
		return false
	}
	if _, ok := hs[syntax.KeyOf(n)]; ok {
		return false
	}
	switch n.Type() {
	case "call_expression", "assignment_expression", "update_expression":
		return true
	case "sizeof_expression", "alignof_expression":
		return false
	}
	for _, c := range syntax.NamedChildren(n) {
		if sideEffects(c, hs) {
			return true
		}
	}
	return false
}

// isLvalueOp reports whether op designates an object that must stay
// addressable when hoisted.
func isLvalueOp(op *sitter.Node) bool {
	switch op.Type() {
	case "subscript_expression":
		return true
	case "pointer_expression":
		return syntax.Operator(op) == "*"
	case "field_expression":
		if scanner.FieldOperator(op) == "->" {
			return true
		}
		base := syntax.StripParens(op.ChildByFieldName("argument"))
		return base != nil && base.Type() != "call_expression"
	}
	return false
}

// instanceNode is the node a directive's instance capture refers to. After
// an RvalueUse the value lives in its destination.
func instanceNode(w *work, d *directive.Directive) *sitter.Node {
	if d.Position == directive.After && w.site.Kind == directive.RvalueUse && w.site.Dest != nil {
		return w.site.Dest
	}
	return w.site.Instance
}

func captureName(d *directive.Directive, c directive.Capture) string {
	return fmt.Sprintf("@%s.%s", d.Position, c)
}

// validate reports the first capture in w that cannot be bound without
// changing what the program evaluates.
func (e *Engine) validate(w *work, hs hoistSet) error {
	site := w.site
	fail := func(d *directive.Directive, c directive.Capture, msg string) error {
		return &diagnostics.CaptureError{Span: site.Span, Capture: captureName(d, c), Message: msg}
	}

	for _, d := range w.directives() {
		if d.Body.Refs(directive.CaptureInstance) && sideEffects(instanceNode(w, d), hs) {
			return fail(d, directive.CaptureInstance, fmt.Sprintf("%q has side effects and would be evaluated twice", e.unit.Text(instanceNode(w, d))))
		}
		if d.Body.Refs(directive.CaptureOperand) {
			if site.Kind.Arity() == directive.Unary {
				return fail(d, directive.CaptureOperand, fmt.Sprintf("%s has no operand besides its instance", site.Kind))
			}
			for _, op := range site.Operands {
				if sideEffects(op, hs) {
					return fail(d, directive.CaptureOperand, fmt.Sprintf("%q has side effects and would be evaluated twice", e.unit.Text(op)))
				}
			}
		}
		if d.Position == directive.After && d.Body.Refs(directive.CaptureResult) && e.resultIsVoid(w) {
			return fail(d, directive.CaptureResult, fmt.Sprintf("%s on %q produces no value", site.Kind, e.unit.Text(site.Instance)))
		}
	}

	if len(w.afters) > 0 && !w.root {
		if t, err := e.table.TypeOf(site.Op); err == nil && t == "void" {
			return &diagnostics.CaptureError{
				Span:    site.Span,
				Capture: "@after",
				Message: fmt.Sprintf("cannot move the void operation %q into a temporary", e.unit.Text(site.Op)),
			}
		}
	}
	return nil
}

func (e *Engine) resultIsVoid(w *work) bool {
	if w.root && e.namedResult(w) != "" {
		return false
	}
	n := w.site.Op
	if w.root && n.Type() == "init_declarator" {
		return false
	}
	t, err := e.table.TypeOf(n)
	return err == nil && t == "void"
}

// namedResult returns the variable that already holds a root operation's
// result, or "" when a temporary is needed.
func (e *Engine) namedResult(w *work) string {
	op := w.site.Op
	switch op.Type() {
	case "init_declarator":
		if id := scanner.DeclaredName(op); id != nil {
			return e.unit.Text(id)
		}
	case "assignment_expression":
		if left := syntax.StripParens(op.ChildByFieldName("left")); left != nil && left.Type() == "identifier" {
			return e.unit.Text(left)
		}
	}
	return ""
}

// bind builds the capture context of one directive at one site.
func (e *Engine) bind(w *work, d *directive.Directive, hs hoistSet, result string) map[directive.Capture]string {
	operands := make([]string, 0, len(w.site.Operands))
	for _, op := range w.site.Operands {
		operands = append(operands, e.captureText(op, hs))
	}
	bind := map[directive.Capture]string{
		directive.CaptureInstance: e.captureText(instanceNode(w, d), hs),
		directive.CaptureOperand:  strings.Join(operands, ", "),
	}
	if d.Position == directive.After {
		bind[directive.CaptureResult] = result
	}
	return bind
}
