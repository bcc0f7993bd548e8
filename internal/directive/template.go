package directive

import (
	"fmt"
	"regexp"
	"strings"
)

// Capture names a value a directive body can reference.
type Capture string

const (
	CaptureInstance Capture = "instance"
	CaptureOperand  Capture = "operand"
	CaptureResult   Capture = "result"
)

var captureRef = regexp.MustCompile(`@([A-Za-z_]\w*)\.([A-Za-z_]\w*)`)

// placeholderPrefix stands in for captures while the body is checked by the C
// parser.
const placeholderPrefix = "__cattach_capture_"

type segment struct {
	text    string
	capture Capture
}

// Template is a directive body with its capture references split out.
type Template struct {
	Text string

	segments []segment
	refs     map[Capture]bool
	// Identifiers spelled in the body, captures excluded.
	Identifiers []string
}

// badRef describes a capture reference rejected while splitting a body.
type badRef struct {
	ref    string
	reason string
	parse  bool
}

func newTemplate(body string, pos Position) (*Template, *badRef) {
	t := &Template{Text: body, refs: make(map[Capture]bool)}
	last := 0
	for _, m := range captureRef.FindAllStringSubmatchIndex(body, -1) {
		ns, name := body[m[2]:m[3]], body[m[4]:m[5]]
		ref := body[m[0]:m[1]]
		if ns != "before" && ns != "after" {
			return nil, &badRef{ref: ref, reason: fmt.Sprintf("unknown capture namespace @%s", ns), parse: true}
		}
		if ns != pos.namespace() {
			return nil, &badRef{ref: ref, reason: fmt.Sprintf("@%s captures are not available in a %s directive", ns, pos)}
		}
		c := Capture(name)
		switch c {
		case CaptureInstance, CaptureOperand, CaptureResult:
		default:
			return nil, &badRef{ref: ref, reason: fmt.Sprintf("unknown capture %q (want instance, operand or result)", name)}
		}
		t.segments = append(t.segments, segment{text: body[last:m[0]]}, segment{capture: c})
		t.refs[c] = true
		last = m[1]
	}
	t.segments = append(t.segments, segment{text: body[last:]})
	return t, nil
}

// placeholderText is the body with every capture replaced by an identifier.
func (t *Template) placeholderText() string {
	var b strings.Builder
	for _, s := range t.segments {
		if s.capture != "" {
			b.WriteString(placeholderPrefix + string(s.capture))
			continue
		}
		b.WriteString(s.text)
	}
	return b.String()
}

// Refs reports whether the body references capture c.
func (t *Template) Refs(c Capture) bool {
	return t.refs[c]
}

// Render substitutes bound expressions for capture references.
func (t *Template) Render(bind map[Capture]string) (string, error) {
	var b strings.Builder
	for _, s := range t.segments {
		if s.capture == "" {
			b.WriteString(s.text)
			continue
		}
		v, ok := bind[s.capture]
		if !ok {
			return "", fmt.Errorf("capture %q is not bound", s.capture)
		}
		b.WriteString(v)
	}
	return strings.TrimSpace(b.String()), nil
}
