package directive

import (
	"fmt"
	"sort"
	"strings"
)

// Kind is the operation a directive attaches to.
type Kind int

const (
	PreIncrement Kind = iota
	PostIncrement
	PreDecrement
	PostDecrement
	Compare
	LCompare
	RCompare
	LvalueUse
	RvalueUse
	Multiply
	Add
	Divide
	Subtract
	Modulo
	Indirection
	Member
	Dereference
	And
	Or
	Xor
	Flip
	Not
	LShift
	RShift
	Call
	Subscript
)

// Arity describes the operand shape of a kind.
type Arity int

const (
	Unary Arity = iota
	Binary
	Variadic
)

type kindInfo struct {
	name  string
	token string
	arity Arity
}

var kinds = map[Kind]kindInfo{
	PreIncrement:  {"PreIncrement", "++:", Unary},
	PostIncrement: {"PostIncrement", ":++", Unary},
	PreDecrement:  {"PreDecrement", "--:", Unary},
	PostDecrement: {"PostDecrement", ":--", Unary},
	Compare:       {"Compare", "==", Binary},
	LCompare:      {"LCompare", ":==", Binary},
	RCompare:      {"RCompare", "==:", Binary},
	LvalueUse:     {"LvalueUse", ":=", Binary},
	RvalueUse:     {"RvalueUse", "=:", Binary},
	Multiply:      {"Multiply", "*", Binary},
	Add:           {"Add", "+", Binary},
	Divide:        {"Divide", "/", Binary},
	Subtract:      {"Subtract", "-", Binary},
	Modulo:        {"Modulo", "%", Binary},
	Indirection:   {"Indirection", "->", Unary},
	Member:        {"Member", ".", Unary},
	Dereference:   {"Dereference", "*:", Unary},
	And:           {"And", "&", Binary},
	Or:            {"Or", "|", Binary},
	Xor:           {"Xor", "^", Binary},
	Flip:          {"Flip", "~", Unary},
	Not:           {"Not", "!", Unary},
	LShift:        {"LShift", "<<", Binary},
	RShift:        {"RShift", ">>", Binary},
	Call:          {"Call", "()", Variadic},
	Subscript:     {"Subscript", "[]", Binary},
}

var byToken = func() map[string]Kind {
	m := make(map[string]Kind, len(kinds))
	for k, info := range kinds {
		m[info.token] = k
	}
	return m
}()

func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Token returns the directive spelling of k.
func (k Kind) Token() string {
	return kinds[k].token
}

// Arity returns the operand shape of k.
func (k Kind) Arity() Arity {
	return kinds[k].arity
}

// IsArithmetic reports whether k is a binary arithmetic or bitwise operator.
// Either operand of such an operation can be the instance.
func (k Kind) IsArithmetic() bool {
	switch k {
	case Multiply, Add, Divide, Subtract, Modulo, And, Or, Xor, LShift, RShift:
		return true
	}
	return false
}

// IsComparison reports whether k is one of the comparison kinds.
func (k Kind) IsComparison() bool {
	return k == Compare || k == LCompare || k == RCompare
}

// ParseKind maps a directive operation token to its kind.
func ParseKind(token string) (Kind, error) {
	token = strings.Join(strings.Fields(token), "")
	if k, ok := byToken[token]; ok {
		return k, nil
	}
	switch token {
	case "++", "--":
		return 0, fmt.Errorf("ambiguous operation %q: write %s: for prefix or :%s for postfix", token, token, token)
	case "=":
		return 0, fmt.Errorf("ambiguous operation %q: write := for the assigned side or =: for the assigned value", token)
	}
	return 0, fmt.Errorf("unknown operation %q (known: %s)", token, strings.Join(Tokens(), " "))
}

// Tokens lists every operation token.
func Tokens() []string {
	out := make([]string, 0, len(byToken))
	for tok := range byToken {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}

var binaryKinds = map[string]Kind{
	"*":  Multiply,
	"+":  Add,
	"/":  Divide,
	"-":  Subtract,
	"%":  Modulo,
	"&":  And,
	"|":  Or,
	"^":  Xor,
	"<<": LShift,
	">>": RShift,
}

var comparisonOps = map[string]bool{
	"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
}

// BinaryKind maps a C binary operator to its arithmetic kind.
func BinaryKind(op string) (Kind, bool) {
	k, ok := binaryKinds[op]
	return k, ok
}

// IsComparisonOp reports whether op is a C comparison operator.
func IsComparisonOp(op string) bool {
	return comparisonOps[op]
}
