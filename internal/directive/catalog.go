package directive

import (
	"errors"

	"github.com/getlawrence/cattach/internal/diagnostics"
)

// ErrSealed is returned by Register once the catalog has been sealed.
var ErrSealed = errors.New("directive catalog is sealed")

// Catalog is the ordered set of directives visible in one translation unit.
// It is written by a single goroutine, sealed, then only read.
type Catalog struct {
	directives []*Directive
	byKind     map[Kind][]*Directive
	sealed     bool
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byKind: make(map[Kind][]*Directive)}
}

// Register appends d and assigns its declaration index. An exact duplicate of
// a registered directive shares its index and is not appended.
func (c *Catalog) Register(d *Directive) error {
	if c.sealed {
		return ErrSealed
	}
	if d.Position == Before && d.Body.Refs(CaptureResult) {
		return &diagnostics.ConflictError{
			Span:    d.Span,
			Message: "a before directive runs ahead of the operation and has no result",
			Err: &diagnostics.CaptureError{
				Span:    d.Span,
				Capture: "@before.result",
				Message: "result is only available to after directives",
			},
		}
	}
	// A repeat of an identical directive, typically a header included twice
	// or restated in the unit, attaches nothing new.
	for _, prev := range c.byKind[d.Op] {
		if prev.Position == d.Position && prev.Target == d.Target && prev.Body.Text == d.Body.Text {
			d.Index = prev.Index
			return nil
		}
	}

	d.Index = len(c.directives)
	c.directives = append(c.directives, d)
	c.byKind[d.Op] = append(c.byKind[d.Op], d)
	return nil
}

// Seal ends the write phase.
func (c *Catalog) Seal() {
	c.sealed = true
}

// Sealed reports whether Seal was called.
func (c *Catalog) Sealed() bool {
	return c.sealed
}

// Lookup returns the directives for kind whose target is exactly name, instance
// targets when isType is false and type targets otherwise, in declaration
// order.
func (c *Catalog) Lookup(kind Kind, name string, isType bool) []*Directive {
	want := InstanceRef
	if isType {
		want = TypeRef
	}
	var out []*Directive
	for _, d := range c.byKind[kind] {
		if d.Target.Kind == want && d.Target.Name == name {
			out = append(out, d)
		}
	}
	return out
}

// ForKind returns every directive on kind in declaration order.
func (c *Catalog) ForKind(kind Kind) []*Directive {
	return c.byKind[kind]
}

// HasTypeTargets reports whether any type-targeted directive exists for kind.
func (c *Catalog) HasTypeTargets(kind Kind) bool {
	for _, d := range c.byKind[kind] {
		if d.Target.Kind == TypeRef {
			return true
		}
	}
	return false
}

// All returns every directive in declaration order.
func (c *Catalog) All() []*Directive {
	return c.directives
}

// Len returns the number of registered directives.
func (c *Catalog) Len() int {
	return len(c.directives)
}
