package diagnostics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromError(t *testing.T) {
	span := Span{File: "a.c", Line: 3, Column: 7}
	tests := []struct {
		name     string
		err      error
		code     string
		severity Severity
	}{
		{name: "parse", err: &ParseError{Span: span, Message: "bad"}, code: EParse, severity: SeverityError},
		{name: "conflict", err: &ConflictError{Span: span, Message: "dup"}, code: EConflict, severity: SeverityError},
		{name: "capture", err: &CaptureError{Span: span, Capture: "@after.result"}, code: ECapture, severity: SeverityError},
		{name: "unresolved", err: &UnresolvedTypeError{Span: span, Expression: "q"}, code: EUnresolvedType, severity: SeverityWarning},
		{name: "context", err: &ContextError{Span: span, Context: "loop header"}, code: EContext, severity: SeverityWarning},
		{name: "hygiene", err: &HygieneViolation{Name: "__attach_0"}, code: EHygiene, severity: SeverityError},
		{name: "other", err: errors.New("boom"), code: "E_INTERNAL", severity: SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := FromError(tt.err)
			assert.Equal(t, tt.code, d.Code)
			assert.Equal(t, tt.severity, d.Severity)
			assert.Equal(t, SeverityWarning, Warning(tt.err).Severity)
		})
	}
}

func TestConflictUnwrap(t *testing.T) {
	inner := &CaptureError{Capture: "@before.result", Message: "no result before the operation"}
	err := fmt.Errorf("register: %w", &ConflictError{Message: "directive rejected", Err: inner})

	var ce *CaptureError
	assert.True(t, errors.As(err, &ce))
	assert.Equal(t, "@before.result", ce.Capture)
}

func TestFormatAndSort(t *testing.T) {
	diags := []Diagnostic{
		{Code: EContext, Severity: SeverityWarning, Message: "late", Span: Span{File: "b.c", Line: 1, Column: 1, StartByte: 0}},
		{Code: ECapture, Severity: SeverityWarning, Message: "second", Span: Span{File: "a.c", Line: 4, Column: 2, StartByte: 40}},
		{Code: EUnresolvedType, Severity: SeverityWarning, Message: "first", Span: Span{File: "a.c", Line: 2, Column: 5, StartByte: 12}, Hint: "declare it"},
	}
	Sort(diags)

	assert.Equal(t, "a.c:2:5: warning[E_UNRESOLVED_TYPE]: first\n  hint: declare it\n"+
		"a.c:4:2: warning[E_CAPTURE]: second\n"+
		"b.c:1:1: warning[E_CONTEXT]: late", FormatAll(diags))
}

func TestSpanString(t *testing.T) {
	assert.Equal(t, "3:4", Span{Line: 3, Column: 4}.String())
	assert.Equal(t, "x.c:3:4", Span{File: "x.c", Line: 3, Column: 4}.String())
}
