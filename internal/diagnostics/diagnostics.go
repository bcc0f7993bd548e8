// Package diagnostics defines the error taxonomy of the weaver and the located
// diagnostics reported after a pass.
package diagnostics

import (
	"fmt"
	"sort"
	"strings"
)

// Diagnostic code constants.
const (
	EParse          = "E_PARSE"
	EConflict       = "E_CONFLICT"
	ECapture        = "E_CAPTURE"
	EUnresolvedType = "E_UNRESOLVED_TYPE"
	EContext        = "E_CONTEXT"
	EHygiene        = "E_HYGIENE"
)

// Severity tells fatal errors apart from per-site warnings.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Span locates a diagnostic in a source file. Lines and columns are 1-based,
// bytes are a half-open [Start, End) interval.
type Span struct {
	File      string `json:"file" yaml:"file"`
	StartByte uint32 `json:"start_byte" yaml:"start_byte"`
	EndByte   uint32 `json:"end_byte" yaml:"end_byte"`
	Line      int    `json:"line" yaml:"line"`
	Column    int    `json:"column" yaml:"column"`
}

func (s Span) String() string {
	if s.File == "" {
		return fmt.Sprintf("%d:%d", s.Line, s.Column)
	}
	return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Column)
}

// Diagnostic is the reported form of any error or skipped site.
type Diagnostic struct {
	Code     string   `json:"code" yaml:"code"`
	Severity Severity `json:"severity" yaml:"severity"`
	Message  string   `json:"message" yaml:"message"`
	Span     Span     `json:"span" yaml:"span"`
	Hint     string   `json:"hint,omitempty" yaml:"hint,omitempty"`
}

// Format renders a diagnostic the way compilers do: "file:line:col: severity[CODE]: msg".
func (d Diagnostic) Format() string {
	out := fmt.Sprintf("%s: %s[%s]: %s", d.Span, d.Severity, d.Code, d.Message)
	if d.Hint != "" {
		out += "\n  hint: " + d.Hint
	}
	return out
}

// Sort orders diagnostics by file and position.
func Sort(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i].Span, diags[j].Span
		if a.File != b.File {
			return a.File < b.File
		}
		return a.StartByte < b.StartByte
	})
}

// FormatAll formats a slice of diagnostics, one per line.
func FormatAll(diags []Diagnostic) string {
	lines := make([]string, 0, len(diags))
	for _, d := range diags {
		lines = append(lines, d.Format())
	}
	return strings.Join(lines, "\n")
}

// ParseError reports malformed directive syntax or a source file the parser
// could not read. Fatal for the file.
type ParseError struct {
	Span    Span
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: parse error: %s", e.Span, e.Message)
}

// ConflictError reports a directive that cannot be registered next to the
// directives already in the catalog. Fatal at registration.
type ConflictError struct {
	Span    Span
	Message string
	Err     error
}

func (e *ConflictError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: directive conflict: %s: %v", e.Span, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: directive conflict: %s", e.Span, e.Message)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// CaptureError reports a capture reference that is not available where it is
// used. At registration it is fatal; at a site it only skips that site.
type CaptureError struct {
	Span    Span
	Capture string
	Message string
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("%s: capture %q: %s", e.Span, e.Capture, e.Message)
}

// UnresolvedTypeError reports a site whose instance operand has no static
// type. The site is skipped.
type UnresolvedTypeError struct {
	Span       Span
	Expression string
	Reason     string
}

func (e *UnresolvedTypeError) Error() string {
	return fmt.Sprintf("%s: cannot resolve type of %q: %s", e.Span, e.Expression, e.Reason)
}

// ContextError reports a matched site in a position where code cannot be
// injected without changing evaluation (loop headers, short-circuit operands,
// file scope). The site is skipped.
type ContextError struct {
	Span    Span
	Context string
	Message string
}

func (e *ContextError) Error() string {
	return fmt.Sprintf("%s: cannot inject in %s: %s", e.Span, e.Context, e.Message)
}

// HygieneViolation means a generated name collided with a user identifier.
// It signals a bug in the naming scheme and is always fatal.
type HygieneViolation struct {
	Name string
}

func (e *HygieneViolation) Error() string {
	return fmt.Sprintf("hygiene violation: generated name %q collides with a user identifier", e.Name)
}

// FromError converts any taxonomy error into its reported form.
func FromError(err error) Diagnostic {
	switch e := err.(type) {
	case *ParseError:
		return Diagnostic{Code: EParse, Severity: SeverityError, Message: e.Message, Span: e.Span}
	case *ConflictError:
		msg := e.Message
		if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
		return Diagnostic{Code: EConflict, Severity: SeverityError, Message: msg, Span: e.Span}
	case *CaptureError:
		return Diagnostic{Code: ECapture, Severity: SeverityError, Message: fmt.Sprintf("capture %q: %s", e.Capture, e.Message), Span: e.Span}
	case *UnresolvedTypeError:
		return Diagnostic{
			Code:     EUnresolvedType,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("site skipped: cannot resolve type of %q: %s", e.Expression, e.Reason),
			Span:     e.Span,
			Hint:     "declare the operand or target it by instance name",
		}
	case *ContextError:
		return Diagnostic{Code: EContext, Severity: SeverityWarning, Message: fmt.Sprintf("site skipped in %s: %s", e.Context, e.Message), Span: e.Span}
	case *HygieneViolation:
		return Diagnostic{Code: EHygiene, Severity: SeverityError, Message: e.Error()}
	}
	return Diagnostic{Code: "E_INTERNAL", Severity: SeverityError, Message: err.Error()}
}

// Warning turns a per-site error into a warning diagnostic.
func Warning(err error) Diagnostic {
	d := FromError(err)
	d.Severity = SeverityWarning
	return d
}
