// Package weaver runs the whole attachment pass over one translation unit and
// over batches of units in parallel.
package weaver

import (
	"context"
	"fmt"
	"runtime"

	"github.com/getlawrence/cattach/internal/diagnostics"
	"github.com/getlawrence/cattach/internal/directive"
	"github.com/getlawrence/cattach/internal/emitter"
	"github.com/getlawrence/cattach/internal/logger"
	"github.com/getlawrence/cattach/internal/matcher"
	"github.com/getlawrence/cattach/internal/scanner"
	"github.com/getlawrence/cattach/internal/splice"
	"github.com/getlawrence/cattach/internal/symbols"
	"github.com/getlawrence/cattach/internal/syntax"
	"golang.org/x/sync/errgroup"
)

// Source is one input file.
type Source struct {
	Path   string
	Source []byte
}

// Options configure a pass.
type Options struct {
	Splice splice.Options
	// ExtraTypes are type names used without a visible declaration.
	ExtraTypes []string
	// Headers are directive files registered into every unit's catalog ahead
	// of the unit's own directives.
	Headers []Source
	// Workers bounds TransformAll; zero means one per CPU.
	Workers int
	Logger  logger.Logger
}

// SiteReport describes one operation site and what matched it.
type SiteReport struct {
	Kind       string           `json:"kind" yaml:"kind"`
	Instance   string           `json:"instance" yaml:"instance"`
	Type       string           `json:"type,omitempty" yaml:"type,omitempty"`
	Context    string           `json:"context" yaml:"context"`
	Span       diagnostics.Span `json:"span" yaml:"span"`
	Directives []string         `json:"directives,omitempty" yaml:"directives,omitempty"`
}

// Result is the outcome of weaving one unit.
type Result struct {
	Path        string                   `json:"path" yaml:"path"`
	Output      []byte                   `json:"-" yaml:"-"`
	Diagnostics []diagnostics.Diagnostic `json:"diagnostics" yaml:"diagnostics"`
	Sites       []SiteReport             `json:"sites,omitempty" yaml:"sites,omitempty"`
	Injected    int                      `json:"injected" yaml:"injected"`
	// Err is the fatal error of the unit, if any. Output is nil when set.
	Err error `json:"-" yaml:"-"`
}

// Failed reports whether the unit hit a fatal error.
func (r *Result) Failed() bool {
	return r.Err != nil
}

func (r *Result) fail(err error) (*Result, error) {
	r.Err = err
	r.Output = nil
	r.Diagnostics = append(r.Diagnostics, diagnostics.FromError(err))
	diagnostics.Sort(r.Diagnostics)
	return r, err
}

// Transform weaves one unit. The returned Result is never nil; on a fatal
// error it carries the error's diagnostic and no output.
func Transform(ctx context.Context, path string, src []byte, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Nop{}
	}
	res := &Result{Path: path}

	u, err := syntax.Parse(ctx, path, src)
	if err != nil {
		return res.fail(err)
	}
	defer u.Close()

	table := symbols.Build(u, opts.ExtraTypes...)

	catalog, err := buildCatalog(ctx, u, table, opts.Headers)
	if err != nil {
		return res.fail(err)
	}

	sites := scanner.Scan(u, table)
	matches, errs := matcher.NewMatcher(u, catalog, table).MatchAll(sites)
	for _, err := range errs {
		res.Diagnostics = append(res.Diagnostics, diagnostics.Warning(err))
	}
	res.Sites = reportSites(u, sites, matches)

	rw, diags, err := splice.NewEngine(u, table, catalog, opts.Splice).Apply(matches)
	res.Diagnostics = append(res.Diagnostics, diags...)
	if err != nil {
		return res.fail(err)
	}

	out, err := emitter.Emit(u.Source, rw)
	if err != nil {
		return res.fail(fmt.Errorf("%s: %w", path, err))
	}
	res.Output = out
	res.Injected = rw.Injected
	diagnostics.Sort(res.Diagnostics)

	log.Logf("wove %s: %d directives, %d sites, %d bodies injected\n", path, catalog.Len(), len(sites), rw.Injected)
	return res, nil
}

func buildCatalog(ctx context.Context, u *syntax.Unit, table *symbols.Table, headers []Source) (*directive.Catalog, error) {
	catalog := directive.NewCatalog()
	register := func(raws []syntax.RawDirective) error {
		for _, raw := range raws {
			d, err := directive.ParseDirective(ctx, raw, table)
			if err != nil {
				return err
			}
			if err := catalog.Register(d); err != nil {
				return err
			}
		}
		return nil
	}

	for _, h := range headers {
		raws, err := syntax.ParseDirectiveHeader(ctx, h.Path, h.Source)
		if err != nil {
			return nil, err
		}
		if err := register(raws); err != nil {
			return nil, err
		}
	}
	if err := register(u.Directives); err != nil {
		return nil, err
	}
	catalog.Seal()
	return catalog, nil
}

func reportSites(u *syntax.Unit, sites []scanner.Site, matches []matcher.Match) []SiteReport {
	matched := make(map[int][]*directive.Directive, len(matches))
	for _, m := range matches {
		matched[m.Site.ID] = m.Directives
	}
	reports := make([]SiteReport, 0, len(sites))
	for _, s := range sites {
		r := SiteReport{
			Kind:     s.Kind.String(),
			Instance: u.Text(s.Instance),
			Type:     s.Type,
			Context:  s.Context.String(),
			Span:     s.Span,
		}
		for _, d := range matched[s.ID] {
			r.Directives = append(r.Directives, d.String())
		}
		reports = append(reports, r)
	}
	return reports
}

// TransformAll weaves units in parallel. A fatal error in one unit is recorded
// in its Result and does not stop the others; the returned error is only set
// when ctx is cancelled.
func TransformAll(ctx context.Context, units []Source, opts Options) ([]*Result, error) {
	results := make([]*Result, len(units))

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, unit := range units {
		i, unit := i, unit
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = &Result{Path: unit.Path, Err: err}
				return err
			}
			res, _ := Transform(gctx, unit.Path, unit.Source, opts)
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
