// Package matcher pairs operation sites with the directives that attach to
// them, by instance name and by static type.
package matcher

import (
	"errors"
	"sort"
	"strings"

	"github.com/getlawrence/cattach/internal/diagnostics"
	"github.com/getlawrence/cattach/internal/directive"
	"github.com/getlawrence/cattach/internal/scanner"
	"github.com/getlawrence/cattach/internal/symbols"
	"github.com/getlawrence/cattach/internal/syntax"
)

// Match is a site and the directives that fire on it, in declaration order.
type Match struct {
	Site       *scanner.Site
	Directives []*directive.Directive
}

// Matcher resolves sites against a sealed catalog. It remembers which
// operations already fired a directive, so one Matcher serves one scan.
type Matcher struct {
	unit    *syntax.Unit
	catalog *directive.Catalog
	table   *symbols.Table
	fired   map[syntax.Key]map[int]bool
}

// NewMatcher creates a matcher for one unit.
func NewMatcher(u *syntax.Unit, catalog *directive.Catalog, table *symbols.Table) *Matcher {
	return &Matcher{
		unit:    u,
		catalog: catalog,
		table:   table,
		fired:   make(map[syntax.Key]map[int]bool),
	}
}

// kindsFor lists the directive kinds consulted for a site kind.
func kindsFor(k directive.Kind) []directive.Kind {
	switch k {
	case directive.LCompare, directive.RCompare:
		return []directive.Kind{k, directive.Compare}
	}
	return []directive.Kind{k}
}

// fireOnce reports whether directives of kind fire once per operation rather
// than once per matching operand.
func fireOnce(k directive.Kind) bool {
	return k == directive.Compare || k.IsArithmetic()
}

// Match returns the directives that fire on site. Sites must be presented in
// scan order so operand-symmetric directives fire on the left operand first.
func (m *Matcher) Match(site *scanner.Site) ([]*directive.Directive, error) {
	var out []*directive.Directive
	for _, kind := range kindsFor(site.Kind) {
		if m.catalog.HasTypeTargets(kind) && site.TypeErr != nil {
			return nil, &diagnostics.UnresolvedTypeError{
				Span:       site.Span,
				Expression: m.unit.Text(site.Instance),
				Reason:     reason(site.TypeErr),
			}
		}
		if site.Name != "" {
			out = append(out, m.catalog.Lookup(kind, site.Name, false)...)
		}
		if site.TypeErr == nil {
			for _, d := range m.catalog.ForKind(kind) {
				if d.Target.Kind == directive.TypeRef && m.typeMatches(d.Target.Name, site.Type) {
					out = append(out, d)
				}
			}
		}
	}

	key := syntax.KeyOf(site.Op)
	kept := out[:0]
	for _, d := range out {
		if fireOnce(d.Op) {
			if m.fired[key] == nil {
				m.fired[key] = make(map[int]bool)
			}
			if m.fired[key][d.Index] {
				continue
			}
			m.fired[key][d.Index] = true
		}
		kept = append(kept, d)
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Index < kept[j].Index })
	return kept, nil
}

// MatchAll matches every site in order. Sites with no directives are left out;
// per-site failures are returned alongside.
func (m *Matcher) MatchAll(sites []scanner.Site) ([]Match, []error) {
	var matches []Match
	var errs []error
	for i := range sites {
		ds, err := m.Match(&sites[i])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(ds) > 0 {
			matches = append(matches, Match{Site: &sites[i], Directives: ds})
		}
	}
	return matches, errs
}

func (m *Matcher) typeMatches(target, typ string) bool {
	if target == typ {
		return true
	}
	return m.table.Canonical(target) == m.table.Canonical(typ)
}

func reason(err error) string {
	msg := err.Error()
	if errors.Is(err, symbols.ErrUnresolved) {
		msg = strings.TrimPrefix(msg, symbols.ErrUnresolved.Error()+": ")
	}
	return msg
}
