package symbols

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/getlawrence/cattach/internal/syntax"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, src string) (*syntax.Unit, *Table) {
	t.Helper()
	u, err := syntax.Parse(context.Background(), "t.c", []byte(src))
	require.NoError(t, err)
	t.Cleanup(u.Close)
	return u, Build(u)
}

// statements returns the expressions of every expression statement, in order.
func statements(u *syntax.Unit) []*sitter.Node {
	var out []*sitter.Node
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "expression_statement" && n.NamedChildCount() > 0 {
			out = append(out, n.NamedChild(0))
			return
		}
		for _, c := range syntax.NamedChildren(n) {
			walk(c)
		}
	}
	walk(u.Root)
	return out
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"struct node *":        "struct node*",
		"const   unsigned int":  "unsigned int",
		"int ( * ) ( char * )": "int(*)(char*)",
		"object*":              "object*",
		" object  * * ":        "object**",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "Normalize(%q)", in)
	}
}

func TestDeclaratorTypes(t *testing.T) {
	t.Parallel()

	src := `typedef struct object object;
object *a[4];
int (*fp)(char*);
object* make(void);
unsigned long count;
`
	u, tab := build(t, src)
	end := uint32(len(u.Source))

	cases := map[string]string{
		"a":     "object*[]",
		"fp":    "int(char*)*",
		"make":  "object*(void)",
		"count": "unsigned long",
	}
	for name, want := range cases {
		sym, ok := tab.Lookup(name, end)
		require.True(t, ok, name)
		assert.Equal(t, want, sym.Type, name)
	}

	sym, _ := tab.Lookup("make", end)
	assert.Equal(t, Function, sym.Kind)
	assert.True(t, tab.IsTypeName("object"))
	assert.False(t, tab.IsTypeName("make"))
}

func TestLookupRespectsScopes(t *testing.T) {
	t.Parallel()

	src := `int x;
void f(object* p) {
    x = 1;
    {
        char* x;
        x = 0;
    }
    x = 2;
}
`
	u, tab := build(t, src)
	text := string(u.Source)

	first := uint32(strings.Index(text, "x = 1"))
	inner := uint32(strings.Index(text, "x = 0"))
	after := uint32(strings.Index(text, "x = 2"))

	for at, want := range map[uint32]string{first: "int", inner: "char*", after: "int"} {
		sym, ok := tab.Lookup("x", at)
		require.True(t, ok)
		assert.Equal(t, want, sym.Type, "at offset %d", at)
	}

	p, ok := tab.Lookup("p", first)
	require.True(t, ok)
	assert.Equal(t, Parameter, p.Kind)
	assert.Equal(t, "object*", p.Type)

	_, ok = tab.Lookup("p", 0)
	assert.False(t, ok, "parameter is not visible outside its function")
}

func TestLookupBeforeDeclaration(t *testing.T) {
	t.Parallel()

	src := `void f(void) {
    y = 1;
    int y;
}
`
	u, tab := build(t, src)
	_, ok := tab.Lookup("y", uint32(strings.Index(string(u.Source), "y = 1")))
	assert.False(t, ok)
}

func TestTypedefsAndFields(t *testing.T) {
	t.Parallel()

	src := `typedef struct obj { int rc; struct obj* next; } obj_t;
typedef obj_t* objref;
`
	_, tab := build(t, src)

	assert.True(t, tab.IsTypeName("objref"))
	assert.Equal(t, "struct obj*", tab.Canonical("objref"))
	assert.Equal(t, "struct obj**", tab.Canonical("objref*"))

	rc, ok := tab.Field("obj_t", "rc")
	require.True(t, ok)
	assert.Equal(t, "int", rc)

	d, ok := tab.Deref("objref")
	require.True(t, ok)
	assert.Equal(t, "struct obj", d)

	assert.True(t, tab.IsPointer("objref"))
	assert.False(t, tab.IsPointer("obj_t"))
}

func TestTypeOf(t *testing.T) {
	t.Parallel()

	src := `typedef struct node { int v; struct node* next; } node;
node* make(void);
int (*fp)(char*);
int main(void) {
    node* p = make();
    int i = 0;
    p->next->v;
    make()->v;
    p[i];
    *p;
    &i;
    i + 1.0;
    i < 2;
    (node*)0;
    fp("x");
    p + 1;
    i = 3;
    "s";
    return 0;
}
`
	u, tab := build(t, src)
	want := []string{
		"int",
		"int",
		"node",
		"node",
		"int*",
		"double",
		"int",
		"node*",
		"int",
		"node*",
		"int",
		"char*",
	}

	exprs := statements(u)
	require.Len(t, exprs, len(want))
	for i, e := range exprs {
		got, err := tab.TypeOf(e)
		require.NoError(t, err, u.Text(e))
		assert.Equal(t, want[i], got, u.Text(e))
	}
}

func TestQualifiedTypeOf(t *testing.T) {
	t.Parallel()

	src := `typedef const char* cstr;
struct buf { const char* data; int len; };
const char* name(int i);
int main(const struct buf* b, char* const q, cstr s, volatile int n) {
    b->data;
    b->len;
    *q;
    q;
    s[0];
    name(n);
    n + 1;
    (const int*)q;
    return 0;
}
`
	u, tab := build(t, src)
	want := []struct{ plain, qualified string }{
		{"char*", "const char*const"},
		{"int", "const int"},
		{"char", "char"},
		{"char*", "char*const"},
		{"char", "const char"},
		{"char*", "const char*"},
		{"int", "int"},
		{"int*", "const int*"},
	}

	exprs := statements(u)
	require.Len(t, exprs, len(want))
	for i, e := range exprs {
		plain, err := tab.TypeOf(e)
		require.NoError(t, err, u.Text(e))
		assert.Equal(t, want[i].plain, plain, u.Text(e))

		q, err := tab.QualifiedTypeOf(e)
		require.NoError(t, err, u.Text(e))
		assert.Equal(t, want[i].qualified, q, u.Text(e))
		assert.Equal(t, plain, Normalize(q), u.Text(e))
	}
}

func TestTypeOfUnresolved(t *testing.T) {
	t.Parallel()

	src := `struct s { int a; };
void f(struct s v, int n) {
    q->v;
    v.missing;
    *n;
}
`
	u, tab := build(t, src)
	for _, e := range statements(u) {
		_, err := tab.TypeOf(e)
		require.Error(t, err, u.Text(e))
		assert.True(t, errors.Is(err, ErrUnresolved), u.Text(e))
	}
}

func TestNumberLiteralTypes(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"1":    "int",
		"1u":   "unsigned int",
		"1L":   "long",
		"10ul": "unsigned long",
		"0x1f": "int",
		"1.5":  "double",
		"1.5f": "float",
		"2e10": "double",
	}
	for lit, want := range cases {
		assert.Equal(t, want, numberType(lit), lit)
	}
}
