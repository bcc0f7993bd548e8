package weaver

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/getlawrence/cattach/internal/diagnostics"
	"github.com/getlawrence/cattach/internal/splice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weave(t *testing.T, src string) *Result {
	t.Helper()
	res, err := Transform(context.Background(), "unit.c", []byte(src), Options{})
	require.NoError(t, err)
	return res
}

func codes(diags []diagnostics.Diagnostic) []string {
	var out []string
	for _, d := range diags {
		out = append(out, d.Code)
	}
	return out
}

func TestRefcountScenario(t *testing.T) {
	t.Parallel()

	src := `typedef struct object object;
object* make(void);
void refcount_up(object* o);
void refcount_down(object* o);
#after (object*, =:) refcount_up(@after.instance);
#before (object*, :=) refcount_down(@before.instance);

void run(void) {
    object* a = make();
    object* b = a;
    a = NULL;
}
`
	want := `typedef struct object object;
object* make(void);
void refcount_up(object* o);
void refcount_down(object* o);



void run(void) {
    object* a = make();
    object* b = a;
    refcount_up(b);
    refcount_down(a);
    a = NULL;
}
`
	res := weave(t, src)
	assert.Equal(t, want, string(res.Output))
	assert.Equal(t, 1, strings.Count(string(res.Output), "refcount_up(b)"))
	assert.Equal(t, 1, strings.Count(string(res.Output), "refcount_down(a)"))
	assert.Equal(t, 2, res.Injected)
}

func TestSingleEvaluation(t *testing.T) {
	t.Parallel()

	src := `int next(int* p);
void log_value(int v);
#after (next, ()) log_value(@after.result);
int run(int* p) {
    int x = next(p) + 1;
    return x;
}
`
	want := `int next(int* p);
void log_value(int v);

int run(int* p) {
    int __attach_0 = next(p);
    log_value(__attach_0);
    int x = __attach_0 + 1;
    return x;
}
`
	res := weave(t, src)
	assert.Equal(t, want, string(res.Output))
	assert.Equal(t, 1, strings.Count(string(res.Output), "next(p)"))
}

func TestRootStatementResultBecomesTemporary(t *testing.T) {
	t.Parallel()

	src := `int next(int* p);
void log_value(int v);
#after (next, ()) log_value(@after.result);
void run(int* p) {
    next(p);
}
`
	res := weave(t, src)
	assert.Contains(t, string(res.Output), "    int __attach_0 = next(p);\n    log_value(__attach_0);\n}")
	assert.Equal(t, 1, strings.Count(string(res.Output), "next(p)"))
}

func TestNestedHoistsInnerFirst(t *testing.T) {
	t.Parallel()

	src := `int inc(int v);
void seen(int v);
#after (inc, ()) seen(@after.result);
void run(int x) {
    x = inc(inc(x));
}
`
	want := `int inc(int v);
void seen(int v);

void run(int x) {
    int __attach_0 = inc(x);
    seen(__attach_0);
    int __attach_1 = inc(__attach_0);
    seen(__attach_1);
    x = __attach_1;
}
`
	res := weave(t, src)
	assert.Equal(t, want, string(res.Output))
}

func TestDirectiveOrdering(t *testing.T) {
	t.Parallel()

	src := `#after (x, :=) first();
#after (x, :=) second();
#before (x, :=) pre_one();
#before (x, :=) pre_two();
void run(int x) {
    x = 1;
}
`
	res := weave(t, src)
	assert.Contains(t, string(res.Output), `    pre_one();
    pre_two();
    x = 1;
    second();
    first();
`)
}

func TestInstanceAndTypeDirectivesStack(t *testing.T) {
	t.Parallel()

	src := `typedef struct object object;
#before (object*, :=) by_type(@before.instance);
#before (a, :=) by_name(@before.instance);
void run(object* a, object* c, int n) {
    a = c;
    c = a;
    n = 0;
}
`
	res := weave(t, src)
	assert.Contains(t, string(res.Output), `    by_type(a);
    by_name(a);
    a = c;
    by_type(c);
    c = a;
    n = 0;
`)
	assert.Empty(t, res.Diagnostics)
}

func TestLvalueRvalueSplit(t *testing.T) {
	t.Parallel()

	src := `#before (a, :=) lv(@before.operand);
#before (a, =:) rv(@before.operand);
void run(int a, int b) {
    a = b;
    a += b;
}
`
	res := weave(t, src)
	assert.Contains(t, string(res.Output), `    lv(b);
    a = b;
    rv(b);
    lv(b);
    a += b;
`)
}

func TestLvalueHoistedByAddressInBracedStatement(t *testing.T) {
	t.Parallel()

	src := `struct node { int v; struct node* next; };
void touch(struct node* n);
#after (struct node*, ->) touch(@after.instance);
void run(struct node* p, int c) {
    if (c)
        c = p->v + 1;
}
`
	want := `struct node { int v; struct node* next; };
void touch(struct node* n);

void run(struct node* p, int c) {
    if (c)
        {
            int* __attach_0 = &(p->v);
            touch(p);
            c = (*__attach_0) + 1;
        }
}
`
	res := weave(t, src)
	assert.Equal(t, want, string(res.Output))
}

func TestDeclarationSplitAtDeclarator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "hoist in later initializer",
			src: `int f(void);
int g(int v);
void seen(int v);
#after (g, ()) seen(@after.result);
void run(void) {
    int a = f(), b = g(a) + 1;
}
`,
			want: `int f(void);
int g(int v);
void seen(int v);

void run(void) {
    int a = f();
    int __attach_0 = g(a);
    seen(__attach_0);
    int b = __attach_0 + 1;
}
`,
		},
		{
			name: "before bodies stay with their declarator",
			src: `#before (int, =:) note(@before.instance);
void run(int z) {
    int a = z, b = a;
}
`,
			want: `
void run(int z) {
    note(z);
    int a = z;
    note(a);
    int b = a;
}
`,
		},
		{
			name: "after body runs before later initializers",
			src: `typedef struct object object;
object* use(object* o);
void refcount_up(object* o);
#after (object*, =:) refcount_up(@after.instance);
void run(object* a) {
    object* b = a, *c = use(b);
}
`,
			want: `typedef struct object object;
object* use(object* o);
void refcount_up(object* o);

void run(object* a) {
    object* b = a;
    refcount_up(b);
    object *c = use(b);
}
`,
		},
		{
			name: "untouched declarators stay together",
			src: `int g(int v);
void seen(int v);
#after (g, ()) seen(@after.result);
void run(void) {
    int a = g(1), b = 2, c = a;
}
`,
			want: `int g(int v);
void seen(int v);

void run(void) {
    int __attach_0 = g(1);
    seen(__attach_0);
    int a = __attach_0, b = 2, c = a;
}
`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := weave(t, tt.src)
			assert.Equal(t, tt.want, string(res.Output))
			assert.Empty(t, res.Diagnostics)
		})
	}
}

func TestDeclarationDefiningTypeIsNotSplit(t *testing.T) {
	t.Parallel()

	src := `#before (int, =:) note(@before.instance);
void run(int z) {
    enum { A, B } x = z, y = x;
}
`
	res := weave(t, src)
	assert.Equal(t, []string{diagnostics.EContext, diagnostics.EContext}, codes(res.Diagnostics))
	assert.NotContains(t, string(res.Output), "note(")
	assert.Zero(t, res.Injected)
}

func TestStaticLocalInitializerIsNotSpliced(t *testing.T) {
	t.Parallel()

	src := `int g(int v);
void seen(int v);
#after (g, ()) seen(@after.result);
void run(void) {
    static int once = g(1) + 1;
    int each = g(2) + 1;
}
`
	res := weave(t, src)
	require.Len(t, res.Diagnostics, 1)
	d := res.Diagnostics[0]
	assert.Equal(t, diagnostics.EContext, d.Code)
	assert.Equal(t, diagnostics.SeverityWarning, d.Severity)
	assert.Equal(t, 5, d.Span.Line)
	assert.Contains(t, string(res.Output), "    static int once = g(1) + 1;\n")
	assert.Contains(t, string(res.Output), "    int __attach_0 = g(2);\n    seen(__attach_0);\n    int each = __attach_0 + 1;\n")
	assert.Equal(t, 1, res.Injected)
}

func TestTemporariesKeepQualifiers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "address of const element",
			src: `void touch(const char* s);
#after (const char*, []) touch(@after.instance);
int run(const char* s, int i) {
    int c = s[i] + 1;
    return c;
}
`,
			want: `    const char* __attach_0 = &(s[i]);
    touch(s);
    int c = (*__attach_0) + 1;
`,
		},
		{
			name: "value pointing to const",
			src: `const char* name(int i);
void seen(const char* s);
#after (name, ()) seen(@after.result);
void run(int i) {
    const char* p = name(i) + 1;
}
`,
			want: `    const char* __attach_0 = name(i);
    seen(__attach_0);
    const char* p = __attach_0 + 1;
`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := weave(t, tt.src)
			assert.Contains(t, string(res.Output), tt.want)
			assert.Empty(t, res.Diagnostics)
		})
	}
}

func TestIdempotentReemission(t *testing.T) {
	t.Parallel()

	plain := `#include <stdio.h>

/* no directives here */
int main(int argc, char** argv) {
	int total = 0;
	for (int i = 0; i < argc; i++)
		total += argv[i][0];
	printf("%d\n", total);
	return 0;
}
`
	res := weave(t, plain)
	assert.Equal(t, plain, string(res.Output))

	woven := weave(t, `#before (total, :=) note();
int main(void) {
	int total = 0;
	total = 1;
	return total;
}
`)
	again := weave(t, string(woven.Output))
	assert.Equal(t, string(woven.Output), string(again.Output))
}

func TestSiteFailuresAreWarnings(t *testing.T) {
	t.Parallel()

	src := `struct node { int v; };
int next(int* p);
void note(int v);
#before (struct node*, ->) note(0);
#before (int, +) note(@before.instance);
void run(struct node* p, int* q, int n) {
    while (p->v)
        n++;
    n = next(q) + 1;
}
`
	res := weave(t, src)
	assert.Equal(t, []string{diagnostics.EContext, diagnostics.ECapture}, codes(res.Diagnostics))
	assert.NotContains(t, string(res.Output), "note(")
	for _, d := range res.Diagnostics {
		assert.Equal(t, diagnostics.SeverityWarning, d.Severity)
	}
}

func TestUnresolvedTypeSkipsSite(t *testing.T) {
	t.Parallel()

	src := `#before (int*, :=) note();
void run(void) {
    q = 0;
}
`
	res := weave(t, src)
	assert.Equal(t, []string{diagnostics.EUnresolvedType}, codes(res.Diagnostics))
	assert.NotContains(t, string(res.Output), "note(")
}

func TestHygienePrefixAvoidsUserNames(t *testing.T) {
	t.Parallel()

	src := `int next(int* p);
void log_value(int v);
int __attach_0;
#after (next, ()) log_value(@after.result);
void run(int* p) {
    __attach_0 = next(p) * 2;
}
`
	res := weave(t, src)
	assert.Contains(t, string(res.Output), "int __attach__0 = next(p);")
	assert.Contains(t, string(res.Output), "__attach_0 = __attach__0 * 2;")
}

func TestFatalErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		code string
		as   interface{}
	}{
		{
			name: "c syntax error",
			src:  "void run(void) { int x = ; }\n",
			code: diagnostics.EParse,
			as:   new(*diagnostics.ParseError),
		},
		{
			name: "malformed directive",
			src:  "#before (x) f();\nvoid run(void) {}\n",
			code: diagnostics.EParse,
			as:   new(*diagnostics.ParseError),
		},
		{
			name: "before directive reading the result",
			src:  "#before (x, :=) f(@before.result);\nvoid run(void) {}\n",
			code: diagnostics.EConflict,
			as:   new(*diagnostics.ConflictError),
		},
		{
			name: "capture namespace",
			src:  "#before (x, :=) f(@after.instance);\nvoid run(void) {}\n",
			code: diagnostics.ECapture,
			as:   new(*diagnostics.CaptureError),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := Transform(context.Background(), "unit.c", []byte(tt.src), Options{})
			require.Error(t, err)
			assert.True(t, errors.As(err, tt.as))
			require.NotNil(t, res)
			assert.True(t, res.Failed())
			assert.Nil(t, res.Output)
			assert.Equal(t, []string{tt.code}, codes(res.Diagnostics))
		})
	}
}

func TestTransformAllSharesHeaders(t *testing.T) {
	t.Parallel()

	header := Source{
		Path:   "refcount.h",
		Source: []byte("#after (object*, =:) refcount_up(@after.instance);\n"),
	}
	units := []Source{
		{Path: "a.c", Source: []byte("typedef struct object object;\nvoid f(object* x) {\n    object* y = x;\n}\n")},
		{Path: "b.c", Source: []byte("void g(void) { int = ; }\n")},
		{Path: "c.c", Source: []byte("typedef struct object object;\nvoid h(object* x) {\n    object* z = x;\n}\n")},
	}

	results, err := TransformAll(context.Background(), units, Options{
		Headers: []Source{header},
		Workers: 2,
		Splice:  splice.Options{Indent: "    "},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "a.c", results[0].Path)
	assert.Contains(t, string(results[0].Output), "refcount_up(y);")
	assert.True(t, results[1].Failed())
	assert.Contains(t, string(results[2].Output), "refcount_up(z);")
}

func TestRepeatedDirectiveInjectsOnce(t *testing.T) {
	t.Parallel()

	header := Source{
		Path:   "refcount.h",
		Source: []byte("#after (object*, =:) refcount_up(@after.instance);\n"),
	}
	src := `typedef struct object object;
#after (object*, =:) refcount_up(@after.instance);
#after (object*, =:) refcount_up(@after.instance);
void f(object* x) {
    object* y = x;
}
`
	res, err := Transform(context.Background(), "unit.c", []byte(src), Options{Headers: []Source{header}})
	require.NoError(t, err)
	assert.Empty(t, res.Diagnostics)
	assert.Equal(t, 1, strings.Count(string(res.Output), "refcount_up(y);"))
	assert.NotContains(t, string(res.Output), "#after")
	assert.Equal(t, 1, res.Injected)
}

func TestTransformAllCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := TransformAll(ctx, []Source{{Path: "a.c", Source: []byte("int x;\n")}}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSiteReports(t *testing.T) {
	t.Parallel()

	res := weave(t, `#before (a, :=) note();
void run(int a) {
    a = 1;
}
`)
	require.Len(t, res.Sites, 1)
	s := res.Sites[0]
	assert.Equal(t, "LvalueUse", s.Kind)
	assert.Equal(t, "a", s.Instance)
	assert.Equal(t, "int", s.Type)
	assert.Equal(t, 3, s.Span.Line)
	assert.Equal(t, []string{"#before (a, :=) note();"}, s.Directives)
}
