// Package directive parses `#before`/`#after` attachment directives and holds
// them in a per-unit catalog.
package directive

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/getlawrence/cattach/internal/diagnostics"
	"github.com/getlawrence/cattach/internal/symbols"
	"github.com/getlawrence/cattach/internal/syntax"
)

// Position says whether a body runs before or after the operation.
type Position int

const (
	Before Position = iota
	After
)

func (p Position) String() string {
	if p == After {
		return "after"
	}
	return "before"
}

func (p Position) namespace() string {
	return p.String()
}

// TargetKind tells instance targets from type targets.
type TargetKind int

const (
	InstanceRef TargetKind = iota
	TypeRef
)

func (k TargetKind) String() string {
	if k == TypeRef {
		return "type"
	}
	return "instance"
}

// Target is the variable or type a directive attaches to.
type Target struct {
	Kind TargetKind
	Name string
}

func (t Target) String() string {
	return fmt.Sprintf("%s %s", t.Kind, t.Name)
}

// Directive is one parsed attachment.
type Directive struct {
	Position Position
	Target   Target
	Op       Kind
	Body     *Template
	// Index is the declaration order within the catalog, set by Register.
	Index int
	Span  diagnostics.Span
	Text  string
}

func (d *Directive) String() string {
	return fmt.Sprintf("#%s (%s, %s) %s", d.Position, d.Target.Name, d.Op.Token(), d.Body.Text)
}

// TypeResolver decides whether a bare identifier names a type.
type TypeResolver interface {
	IsTypeName(name string) bool
}

// ParseDirective parses one raw directive line.
func ParseDirective(ctx context.Context, raw syntax.RawDirective, resolver TypeResolver) (*Directive, error) {
	fail := func(format string, args ...interface{}) error {
		return &diagnostics.ParseError{Span: raw.Span, Message: fmt.Sprintf(format, args...)}
	}

	text := strings.ReplaceAll(raw.Text, "\\\n", "\n")
	text = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "#"))

	var pos Position
	switch {
	case strings.HasPrefix(text, syntax.KeywordBefore):
		pos = Before
		text = text[len(syntax.KeywordBefore):]
	case strings.HasPrefix(text, syntax.KeywordAfter):
		pos = After
		text = text[len(syntax.KeywordAfter):]
	default:
		return nil, fail("not an attachment directive")
	}

	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "(") {
		return nil, fail("expected ( after #%s", pos)
	}
	end, comma := -1, -1
	depth := 0
	for i := 0; i < len(text) && end < 0; i++ {
		switch text[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
			if depth == 0 {
				end = i
			}
		case ',':
			if depth == 1 {
				comma = i
			}
		}
	}
	if end < 0 {
		return nil, fail("unterminated directive header")
	}
	if comma < 0 {
		return nil, fail("expected (<target>, <operation>)")
	}

	targetText := strings.TrimSpace(text[1:comma])
	opText := strings.TrimSpace(text[comma+1 : end])
	body := strings.TrimSpace(text[end+1:])

	target, err := resolveTarget(targetText, resolver)
	if err != nil {
		return nil, fail("%v", err)
	}
	op, err := ParseKind(opText)
	if err != nil {
		return nil, fail("%v", err)
	}
	if body == "" {
		return nil, fail("empty directive body")
	}

	tmpl, bad := newTemplate(body, pos)
	if bad != nil {
		if bad.parse {
			return nil, fail("%s", bad.reason)
		}
		return nil, &diagnostics.CaptureError{Span: raw.Span, Capture: bad.ref, Message: bad.reason}
	}

	idents, err := syntax.ParseStatement(ctx, tmpl.placeholderText())
	if err != nil {
		var se *syntax.SnippetError
		if errors.As(err, &se) {
			return nil, fail("directive body: %s", se.Message)
		}
		return nil, fail("directive body: %v", err)
	}
	for _, id := range idents {
		if !strings.HasPrefix(id, placeholderPrefix) {
			tmpl.Identifiers = append(tmpl.Identifiers, id)
		}
	}

	return &Directive{
		Position: pos,
		Target:   target,
		Op:       op,
		Body:     tmpl,
		Index:    -1,
		Span:     raw.Span,
		Text:     raw.Text,
	}, nil
}

var aggregateKeywords = map[string]bool{"struct": true, "union": true, "enum": true}

func resolveTarget(spelling string, resolver TypeResolver) (Target, error) {
	name := symbols.Normalize(spelling)
	if name == "" {
		return Target{}, errors.New("empty target")
	}
	if strings.ContainsAny(name, "*[(") {
		// `R(*)(P)` is spelled the way declarators derive it: `R(P)*`.
		if i := strings.Index(name, "(*)"); i > 0 && strings.HasSuffix(name, ")") {
			name = name[:i] + name[i+3:] + "*"
		}
		return Target{Kind: TypeRef, Name: name}, nil
	}

	words := strings.Fields(name)
	if aggregateKeywords[words[0]] {
		if len(words) != 2 || !isIdentifier(words[1]) {
			return Target{}, fmt.Errorf("malformed type target %q", spelling)
		}
		return Target{Kind: TypeRef, Name: name}, nil
	}
	if len(words) > 1 {
		for _, w := range words {
			if !symbols.IsBuiltin(w) {
				return Target{}, fmt.Errorf("malformed target %q", spelling)
			}
		}
		return Target{Kind: TypeRef, Name: name}, nil
	}

	if !isIdentifier(name) {
		return Target{}, fmt.Errorf("malformed target %q", spelling)
	}
	if symbols.IsBuiltin(name) || (resolver != nil && resolver.IsTypeName(name)) {
		return Target{Kind: TypeRef, Name: name}, nil
	}
	return Target{Kind: InstanceRef, Name: name}, nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (i > 0 && r >= '0' && r <= '9') {
			continue
		}
		return false
	}
	return true
}
