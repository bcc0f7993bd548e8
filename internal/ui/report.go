package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/getlawrence/cattach/internal/diagnostics"
	"github.com/getlawrence/cattach/internal/weaver"
)

type palette struct {
	title   lipgloss.Style
	err     lipgloss.Style
	warn    lipgloss.Style
	ok      lipgloss.Style
	dim     lipgloss.Style
	kind    lipgloss.Style
	enabled bool
}

func newPalette(color bool) palette {
	if !color {
		return palette{}
	}
	return palette{
		title:   lipgloss.NewStyle().Bold(true),
		err:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		warn:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		ok:      lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		kind:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		enabled: true,
	}
}

func (p palette) render(s lipgloss.Style, text string) string {
	if !p.enabled {
		return text
	}
	return s.Render(text)
}

// RenderDiagnostics formats every diagnostic of results compiler-style, one
// per line, followed by a summary line.
func RenderDiagnostics(results []*weaver.Result, color bool) string {
	p := newPalette(color)
	var b strings.Builder

	var errs, warns, injected, failed int
	for _, r := range results {
		injected += r.Injected
		if r.Failed() {
			failed++
		}
		for _, d := range r.Diagnostics {
			b.WriteString(p.diagnostic(r.Path, d))
			b.WriteString("\n")
			if d.Severity == diagnostics.SeverityError {
				errs++
			} else {
				warns++
			}
		}
	}

	summary := fmt.Sprintf("%d units, %d bodies injected, %d errors, %d warnings", len(results), injected, errs, warns)
	switch {
	case failed > 0:
		b.WriteString(p.render(p.err, "✗ "+summary))
	case warns > 0:
		b.WriteString(p.render(p.warn, "✓ "+summary))
	default:
		b.WriteString(p.render(p.ok, "✓ "+summary))
	}
	b.WriteString("\n")
	return b.String()
}

func (p palette) diagnostic(path string, d diagnostics.Diagnostic) string {
	span := d.Span
	if span.File == "" {
		span.File = path
	}
	where := span.String()
	if span.Line == 0 {
		where = span.File
	}

	sev := p.warn
	if d.Severity == diagnostics.SeverityError {
		sev = p.err
	}
	out := fmt.Sprintf("%s: %s: %s", p.render(p.dim, where), p.render(sev, fmt.Sprintf("%s[%s]", d.Severity, d.Code)), d.Message)
	if d.Hint != "" {
		out += "\n  " + p.render(p.dim, "hint: "+d.Hint)
	}
	return out
}

// RenderSites lists every operation site per unit with the directives that
// matched it.
func RenderSites(results []*weaver.Result, color bool) string {
	p := newPalette(color)
	var b strings.Builder

	for i, r := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s\n", p.render(p.title, r.Path))
		b.WriteString(strings.Repeat("=", len(r.Path)))
		b.WriteString("\n")

		if r.Failed() {
			fmt.Fprintf(&b, "  %s\n", p.render(p.err, r.Err.Error()))
			continue
		}
		if len(r.Sites) == 0 {
			b.WriteString("  no operation sites\n")
			continue
		}
		for _, s := range r.Sites {
			typ := s.Type
			if typ == "" {
				typ = "?"
			}
			fmt.Fprintf(&b, "  %d:%d  %-13s %s  %s", s.Span.Line, s.Span.Column, p.render(p.kind, s.Kind), s.Instance, p.render(p.dim, typ))
			if s.Context != "statement" {
				fmt.Fprintf(&b, "  %s", p.render(p.warn, "("+s.Context+")"))
			}
			b.WriteString("\n")
			for _, d := range s.Directives {
				fmt.Fprintf(&b, "      %s %s\n", p.render(p.ok, "↳"), d)
			}
		}
	}
	return b.String()
}
