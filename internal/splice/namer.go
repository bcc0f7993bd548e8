package splice

import (
	"strconv"
	"strings"

	"github.com/getlawrence/cattach/internal/diagnostics"
)

// DefaultPrefix starts every generated temporary name.
const DefaultPrefix = "__attach_"

// Namer hands out temporary names that cannot collide with identifiers the
// unit or its directive bodies spell.
type Namer struct {
	prefix string
	next   int
	taken  map[string]bool
}

// NewNamer extends base until no identifier in taken starts with it.
func NewNamer(base string, taken map[string]bool) *Namer {
	if base == "" {
		base = DefaultPrefix
	}
	prefix := base
	for clashes(prefix, taken) {
		prefix += "_"
	}
	return &Namer{prefix: prefix, taken: taken}
}

func clashes(prefix string, taken map[string]bool) bool {
	for id := range taken {
		if strings.HasPrefix(id, prefix) {
			return true
		}
	}
	return false
}

// Prefix returns the prefix in use.
func (n *Namer) Prefix() string {
	return n.prefix
}

// Next returns a fresh name. Names are never reused within a unit.
func (n *Namer) Next() (string, error) {
	name := n.prefix + strconv.Itoa(n.next)
	n.next++
	if n.taken[name] {
		return "", &diagnostics.HygieneViolation{Name: name}
	}
	return name, nil
}
