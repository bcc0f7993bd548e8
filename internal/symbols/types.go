package symbols

import (
	"strings"
	"unicode"
)

// Types are spelled as normalized strings: the base type followed by
// declarator suffixes applied innermost last, so `object *a[4]` is
// "object*[]" and `int (*fp)(char*)` is "int(char*)*".

var qualifiers = map[string]bool{
	"const":      true,
	"volatile":   true,
	"restrict":   true,
	"_Atomic":    true,
	"static":     true,
	"extern":     true,
	"register":   true,
	"inline":     true,
	"auto":       true,
	"__restrict": true,
}

var builtinTypes = map[string]bool{
	"void": true, "char": true, "short": true, "int": true, "long": true,
	"float": true, "double": true, "signed": true, "unsigned": true,
	"_Bool": true, "bool": true, "size_t": true, "ssize_t": true,
	"ptrdiff_t": true, "intptr_t": true, "uintptr_t": true,
	"int8_t": true, "int16_t": true, "int32_t": true, "int64_t": true,
	"uint8_t": true, "uint16_t": true, "uint32_t": true, "uint64_t": true,
	// language extension primitives
	"int8": true, "int16": true, "int32": true, "int64": true,
	"uint8": true, "uint16": true, "uint32": true, "uint64": true,
	"float32": true, "float64": true, "mptr": true,
}

// IsBuiltin reports whether name is a builtin or extension primitive type.
func IsBuiltin(name string) bool {
	return builtinTypes[name]
}

// Normalize canonicalizes the spelling of a type written by a user:
// qualifiers dropped, whitespace collapsed, no spaces around punctuation.
func Normalize(spelling string) string {
	var words []string
	for _, w := range strings.Fields(spacePunct(spelling)) {
		if !qualifiers[w] {
			words = append(words, w)
		}
	}
	var b strings.Builder
	for i, w := range words {
		if i > 0 && isWord(words[i-1]) && isWord(w) {
			b.WriteByte(' ')
		}
		b.WriteString(w)
	}
	return b.String()
}

func spacePunct(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune("*[](),", r) {
			b.WriteByte(' ')
			b.WriteRune(r)
			b.WriteByte(' ')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isWord(w string) bool {
	r := rune(w[len(w)-1])
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// Pointer returns the type of &x for x of type t.
func Pointer(t string) string {
	return t + "*"
}

// splitBase separates the base type from its declarator suffixes.
func splitBase(t string) (base, suffix string) {
	if i := strings.IndexAny(t, "*[("); i >= 0 {
		return t[:i], t[i:]
	}
	return t, ""
}

// funcOpen returns the index of the '(' matching a trailing ')'.
func funcOpen(t string) int {
	if !strings.HasSuffix(t, ")") {
		return -1
	}
	depth := 0
	for i := len(t) - 1; i >= 0; i-- {
		switch t[i] {
		case ')':
			depth++
		case '(':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// IsDeclarable reports whether `t name` is a valid declaration spelling.
// Arrays and function types need declarator syntax around the name, and
// anonymous aggregates have no name to spell.
func IsDeclarable(t string) bool {
	return t != "" && t != "void" && !strings.ContainsAny(t, "[(<")
}

var arithmeticRank = map[string]int{
	"char":          1,
	"short":         2,
	"int":           3,
	"unsigned int":  4,
	"long":          5,
	"unsigned long": 6,
	"float":         7,
	"double":        8,
}

func promote(a, b string) string {
	ra, okA := arithmeticRank[a]
	rb, okB := arithmeticRank[b]
	if !okA || !okB {
		return a
	}
	if rb > ra {
		return b
	}
	if ra < arithmeticRank["int"] {
		return "int"
	}
	return a
}
