// Package splice turns matched sites into source edits: directive bodies
// placed around each operation, with operations moved into temporaries where
// a body needs to run between the operation and the rest of its statement.
package splice

import (
	"fmt"
	"sort"
	"strings"

	"github.com/getlawrence/cattach/internal/diagnostics"
	"github.com/getlawrence/cattach/internal/directive"
	"github.com/getlawrence/cattach/internal/emitter"
	"github.com/getlawrence/cattach/internal/matcher"
	"github.com/getlawrence/cattach/internal/scanner"
	"github.com/getlawrence/cattach/internal/symbols"
	"github.com/getlawrence/cattach/internal/syntax"
	sitter "github.com/smacker/go-tree-sitter"
)

// DefaultTypeof spells the type of an expression whose type has no name.
const DefaultTypeof = "__typeof__"

// Options tune the generated code.
type Options struct {
	TempPrefix    string
	TypeofKeyword string
	// Indent is one indentation level; empty means detect it from the unit.
	Indent string
}

// Engine splices the matches of one unit.
type Engine struct {
	unit   *syntax.Unit
	table  *symbols.Table
	namer  *Namer
	typeof string
	indent string
}

// NewEngine prepares an engine for u. Directive bodies count as part of the
// unit when choosing temporary names.
func NewEngine(u *syntax.Unit, table *symbols.Table, catalog *directive.Catalog, opts Options) *Engine {
	taken := make(map[string]bool, len(table.Identifiers()))
	for id := range table.Identifiers() {
		taken[id] = true
	}
	for _, d := range catalog.All() {
		for _, id := range d.Body.Identifiers {
			taken[id] = true
		}
	}

	e := &Engine{
		unit:   u,
		table:  table,
		namer:  NewNamer(opts.TempPrefix, taken),
		typeof: opts.TypeofKeyword,
		indent: opts.Indent,
	}
	if e.typeof == "" {
		e.typeof = DefaultTypeof
	}
	if e.indent == "" {
		e.indent = u.IndentUnit()
	}
	return e
}

// work is one matched site being spliced.
type work struct {
	site    *scanner.Site
	befores []*directive.Directive
	// afters are in reverse declaration order: the latest declared runs
	// closest to the operation.
	afters []*directive.Directive
	root   bool
	failed bool
}

func (w *work) directives() []*directive.Directive {
	return append(append([]*directive.Directive{}, w.befores...), w.afters...)
}

type group struct {
	stmt  *sitter.Node
	works []*work
}

// Apply computes the rewrite for the unit. Sites that cannot be spliced are
// skipped and reported as warnings; the error is fatal for the unit.
func (e *Engine) Apply(matches []matcher.Match) (emitter.Rewrite, []diagnostics.Diagnostic, error) {
	rw := emitter.Rewrite{Path: e.unit.Path}
	var diags []diagnostics.Diagnostic

	for _, d := range e.unit.Directives {
		rw.Replace(d.RemoveStart, d.RemoveEnd, "", "directive")
	}

	groups := make(map[syntax.Key]*group)
	var order []*group
	for _, m := range matches {
		site := m.Site
		if site.Context != scanner.Straight || site.Stmt == nil {
			diags = append(diags, diagnostics.Warning(&diagnostics.ContextError{
				Span:    site.Span,
				Context: site.Context.String(),
				Message: fmt.Sprintf("%s on %q may not run exactly once there", site.Kind, e.unit.Text(site.Instance)),
			}))
			continue
		}

		w := &work{site: site}
		for _, d := range m.Directives {
			if d.Position == directive.Before {
				w.befores = append(w.befores, d)
			} else {
				w.afters = append([]*directive.Directive{d}, w.afters...)
			}
		}

		k := syntax.KeyOf(site.Stmt)
		g, ok := groups[k]
		if !ok {
			g = &group{stmt: site.Stmt}
			groups[k] = g
			order = append(order, g)
		}
		g.works = append(g.works, w)
	}

	// Inner statements first so closing braces nest when statements share an
	// end offset.
	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i].stmt, order[j].stmt
		if a.EndByte() != b.EndByte() {
			return a.EndByte() < b.EndByte()
		}
		return a.StartByte() > b.StartByte()
	})

	for _, g := range order {
		errs, err := e.statement(&rw, g)
		if err != nil {
			return rw, diags, err
		}
		for _, err := range errs {
			diags = append(diags, diagnostics.Warning(err))
		}
	}
	diagnostics.Sort(diags)
	return rw, diags, nil
}

func (e *Engine) statement(rw *emitter.Rewrite, g *group) ([]error, error) {
	stmt := g.stmt
	wrap := needsBraces(stmt)

	var errs []error
	if wrap && stmt.Type() == "declaration" {
		for _, w := range g.works {
			errs = append(errs, &diagnostics.ContextError{
				Span:    w.site.Span,
				Context: "declaration",
				Message: "cannot inject around a declaration that is not in a block",
			})
		}
		return errs, nil
	}

	for _, w := range g.works {
		w.root = isRoot(stmt, w.site.Op)
	}

	// Dropping a site can drop a hoist, which changes what the remaining
	// captures evaluate; repeat until every remaining site validates.
	var hs hoistSet
	for {
		hs = hoistSet{}
		for _, w := range g.works {
			if !w.failed && len(w.afters) > 0 && !w.root {
				k := syntax.KeyOf(w.site.Op)
				hs[k] = &hoist{node: w.site.Op, key: k, byAddr: isLvalueOp(w.site.Op)}
			}
		}
		changed := false
		for _, w := range g.works {
			if w.failed {
				continue
			}
			if err := e.validate(w, hs); err != nil {
				w.failed = true
				errs = append(errs, err)
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	var active []*work
	for _, w := range g.works {
		if !w.failed {
			active = append(active, w)
		}
	}
	if len(active) == 0 {
		return errs, nil
	}

	hoists := hs.ordered()
	for _, h := range hoists {
		name, err := e.namer.Next()
		if err != nil {
			return errs, err
		}
		h.name = name
	}

	// A root expression statement whose value a body needs becomes a
	// declaration of a temporary.
	var converted string
	for _, w := range active {
		if !w.root || stmt.Type() != "expression_statement" || e.namedResult(w) != "" {
			continue
		}
		for _, d := range w.afters {
			if d.Body.Refs(directive.CaptureResult) {
				name, err := e.namer.Next()
				if err != nil {
					return errs, err
				}
				converted = name
				break
			}
		}
		if converted != "" {
			break
		}
	}

	resultOf := func(w *work) string {
		if !w.root {
			return hs[syntax.KeyOf(w.site.Op)].ref()
		}
		if name := e.namedResult(w); name != "" {
			return name
		}
		return converted
	}

	// part collects the lines injected around one declarator, or around the
	// whole statement when it has no declarators to split at.
	type part struct {
		span      syntax.Key
		pre, post []string
		injected  int
	}
	collect := func(span syntax.Key) (*part, error) {
		p := &part{span: span}
		emit := func(out *[]string, w *work, ds []*directive.Directive) error {
			for _, d := range ds {
				body, err := d.Body.Render(e.bind(w, d, hs, resultOf(w)))
				if err != nil {
					return fmt.Errorf("%s: %w", w.site.Span, err)
				}
				*out = append(*out, body)
				p.injected++
			}
			return nil
		}
		owned := func(w *work) bool { return span.Contains(syntax.KeyOf(w.site.Op)) }

		for _, h := range hoists {
			if !span.Contains(h.key) {
				continue
			}
			for _, w := range active {
				if host := hs.host(w.site.Op); host == h {
					if err := emit(&p.pre, w, w.befores); err != nil {
						return nil, err
					}
				}
			}
			p.pre = append(p.pre, e.declare(h, hs))
			for _, w := range active {
				if syntax.KeyOf(w.site.Op) == h.key {
					if err := emit(&p.pre, w, w.afters); err != nil {
						return nil, err
					}
				}
			}
		}
		for _, w := range active {
			if owned(w) && hs.host(w.site.Op) == nil {
				if err := emit(&p.pre, w, w.befores); err != nil {
					return nil, err
				}
			}
		}
		for _, w := range active {
			if owned(w) && w.root {
				if err := emit(&p.post, w, w.afters); err != nil {
					return nil, err
				}
			}
		}
		return p, nil
	}

	spans := []syntax.Key{syntax.KeyOf(stmt)}
	if stmt.Type() == "declaration" {
		if decls := symbols.Declarators(stmt); len(decls) > 1 {
			spans = spans[:0]
			for _, d := range decls {
				spans = append(spans, syntax.KeyOf(d))
			}
		}
	}
	var parts []*part
	for _, span := range spans {
		p, err := collect(span)
		if err != nil {
			return errs, err
		}
		parts = append(parts, p)
	}

	// A declarator whose initializer needs code before it, or whose
	// declared object is used by a body before the next one, starts or ends
	// a separate declaration.
	segments := [][]*part{{parts[0]}}
	for i := 1; i < len(parts); i++ {
		if len(parts[i].pre) > 0 || len(parts[i-1].post) > 0 {
			segments = append(segments, nil)
		}
		segments[len(segments)-1] = append(segments[len(segments)-1], parts[i])
	}

	if len(segments) > 1 {
		if typ := stmt.ChildByFieldName("type"); typ != nil && typ.ChildByFieldName("body") != nil {
			for _, w := range active {
				errs = append(errs, &diagnostics.ContextError{
					Span:    w.site.Span,
					Context: "declaration",
					Message: "cannot split a declaration that defines its own type",
				})
			}
			return errs, nil
		}
	}

	var pre, post []string
	for _, p := range parts {
		pre = append(pre, p.pre...)
		post = append(post, p.post...)
		rw.Injected += p.injected
	}
	if len(pre) == 0 && len(post) == 0 && converted == "" {
		return errs, nil
	}

	indent := e.unit.LineIndent(stmt.StartByte())
	lead := indent
	if wrap {
		lead = indent + e.indent
	}

	if len(segments) > 1 {
		decls := make([]segment, 0, len(segments))
		for _, seg := range segments {
			d := segment{span: syntax.Key{Start: seg[0].span.Start, End: seg[len(seg)-1].span.End, Type: "declarators"}}
			for _, p := range seg {
				d.pre = append(d.pre, p.pre...)
				d.post = append(d.post, p.post...)
			}
			decls = append(decls, d)
		}
		rw.Replace(stmt.StartByte(), stmt.EndByte(), e.split(stmt, decls, hs, lead), "split")
		return errs, nil
	}

	var head strings.Builder
	if wrap {
		head.WriteString("{\n" + lead)
	}
	for _, line := range pre {
		head.WriteString(line + "\n" + lead)
	}
	rw.Insert(stmt.StartByte(), head.String(), "before")

	if converted != "" {
		expr := stmt.NamedChild(0)
		rw.Replace(stmt.StartByte(), stmt.EndByte(), e.declareValue(expr, converted, hs)+";", "result")
	} else {
		for _, h := range hs.within(stmt) {
			rw.Replace(h.key.Start, h.key.End, h.ref(), "hoist")
		}
	}

	var tail strings.Builder
	for _, line := range post {
		tail.WriteString("\n" + lead + line)
	}
	if wrap {
		tail.WriteString("\n" + indent + "}")
	}
	rw.Insert(stmt.EndByte(), tail.String(), "after")

	return errs, nil
}

// segment is a run of declarators that stays one declaration, with the lines
// injected before and after it.
type segment struct {
	span      syntax.Key
	pre, post []string
}

// split respells decl as one declaration per segment, each repeating the
// declaration's specifiers.
func (e *Engine) split(decl *sitter.Node, segs []segment, hs hoistSet, lead string) string {
	specifiers := string(e.unit.Source[decl.StartByte():segs[0].span.Start])
	var b strings.Builder
	for i, s := range segs {
		if i > 0 {
			b.WriteString("\n" + lead)
		}
		for _, line := range s.pre {
			b.WriteString(line + "\n" + lead)
		}
		if i == 0 {
			b.WriteString(specifiers)
		} else {
			b.WriteString(strings.TrimRight(specifiers, " \t") + " ")
		}
		b.WriteString(e.renderSpan(s.span, hs) + ";")
		for _, line := range s.post {
			b.WriteString("\n" + lead + line)
		}
	}
	return b.String()
}

// declare spells the temporary declaration of a hoist.
func (e *Engine) declare(h *hoist, hs hoistSet) string {
	if !h.byAddr {
		return e.declareValue(h.node, h.name, hs) + ";"
	}
	inner := e.renderInner(h.node, hs)
	if t, err := e.table.QualifiedTypeOf(h.node); err == nil && symbols.IsDeclarable(t) {
		return fmt.Sprintf("%s* %s = &(%s);", t, h.name, inner)
	}
	return fmt.Sprintf("%s(&(%s)) %s = &(%s);", e.typeof, inner, h.name, inner)
}

func (e *Engine) declareValue(n *sitter.Node, name string, hs hoistSet) string {
	inner := e.renderInner(n, hs)
	if t, err := e.table.QualifiedTypeOf(n); err == nil && symbols.IsDeclarable(t) {
		return fmt.Sprintf("%s %s = %s", t, name, inner)
	}
	return fmt.Sprintf("%s(%s) %s = %s", e.typeof, inner, name, inner)
}

// isRoot reports whether op is the whole of stmt, so bodies can follow the
// statement without moving anything.
func isRoot(stmt, op *sitter.Node) bool {
	switch stmt.Type() {
	case "expression_statement":
		return stmt.NamedChildCount() > 0 && syntax.SameNode(syntax.StripParens(stmt.NamedChild(0)), op)
	case "declaration":
		return op.Type() == "init_declarator"
	}
	return false
}

func needsBraces(stmt *sitter.Node) bool {
	parent := stmt.Parent()
	if parent == nil {
		return false
	}
	switch parent.Type() {
	case "compound_statement", "translation_unit", "preproc_if", "preproc_ifdef", "preproc_else", "preproc_elif":
		return false
	}
	return true
}
