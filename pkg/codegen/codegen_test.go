package codegen

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nalgeon/be"
	"github.com/xplshn/kaskell/pkg/ast"
	. "github.com/xplshn/kaskell/pkg/ast/asttest"
	"github.com/xplshn/kaskell/pkg/config"
	"github.com/xplshn/kaskell/pkg/ir"
	"github.com/xplshn/kaskell/pkg/resolver"
	"github.com/xplshn/kaskell/pkg/token"
	"github.com/xplshn/kaskell/pkg/typeChecker"
	"github.com/xplshn/kaskell/pkg/types"
)

// compile runs every phase over prog and returns the bare instructions
func compile(t *testing.T, prog *ast.Program, flags ...string) []string {
	t.Helper()
	cfg := config.NewConfig()
	cfg.ProcessFlags(flags)
	if ok, diags := resolver.Resolve(prog, cfg); !ok {
		t.Fatalf("resolve: %v", diags.Err())
	}
	if ok, diags := typeChecker.Check(prog, cfg); !ok {
		t.Fatalf("check: %v", diags.Err())
	}
	out, err := Generate(prog, cfg)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	lines, err := out.Instructions()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	return lines
}

func listing(s string) []string {
	return strings.Split(strings.TrimSpace(s), "\n")
}

func diff(t *testing.T, got []string, want string) {
	t.Helper()
	if d := cmp.Diff(listing(want), got); d != "" {
		t.Errorf("instruction stream mismatch (-want +got):\n%s", d)
	}
}

func point() *ast.Node {
	return Struct("P", Field("x", types.Integer), Field("y", types.Integer))
}

func TestGenerateRequiresCheckedProgram(t *testing.T) {
	prog := Program(nil, nil, Block(Var("x", types.Integer, Int(1))))
	_, err := Generate(prog, nil)
	be.Err(t, err, ErrNotChecked)

	ok, _ := resolver.Resolve(prog, nil)
	be.True(t, ok)
	_, err = Generate(prog, nil)
	be.Err(t, err, ErrNotChecked)
}

func TestCallListing(t *testing.T) {
	add := Func("add", types.Integer, Params(Param("a", types.Integer), Param("b", types.Integer)),
		Return(Binary(token.Plus, Ident("a"), Ident("b"))),
	)
	prog := Program(nil, Decls(add), Block(Var("r", types.Integer, Call("add", Int(3), Int(4)))))

	got := compile(t, prog)
	diff(t, got, `
ssp 6
sep 8
ujp 14
ssp 7
sep 3
lda 0 0
lda 0 5
ind
lda 0 6
ind
add
sto
retf
retf
lda 0 5
mst 1
ldc 3
ldc 4
cup 2 3
sto
stp
`)
	be.Equal(t, prog.Phase(), ast.PhaseGenerated)
}

func TestCompositeParameterIsPassedByReference(t *testing.T) {
	f := Func("f", types.Integer, Params(Param("p", types.Struct("P"))),
		Return(Member(Ident("p"), "x")),
	)
	prog := Program(Decls(point()), Decls(f), Block(
		Var("q", types.Struct("P"), nil),
		Var("r", types.Integer, Call("f", Ident("q"))),
	))

	got := compile(t, prog)
	diff(t, got, `
ssp 8
sep 7
ujp 12
ssp 6
sep 2
lda 0 0
lod 0 5
inc 0
ind
sto
retf
retf
lda 0 7
mst 1
lda 0 5
cup 1 3
sto
stp
`)
}

func TestArgumentForm(t *testing.T) {
	tests := []struct {
		name  string
		param *types.Type
		want  []string
	}{
		{"scalar by value", types.Integer, []string{"lda 0 5", "ind"}},
		{"struct by reference", types.Struct("P"), []string{"lda 0 5"}},
		{"array by reference", types.Array(types.Integer, 2), []string{"lda 0 5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := Ident("v")
			id.Typ = types.Integer
			id.Addr = ast.Address{Level: 0, Offset: 5}

			ctx := NewContext(nil)
			ctx.out = ir.NewStream()
			be.Err(t, ctx.codegenArg(id, tt.param), nil)

			got, err := ctx.out.Instructions()
			be.Err(t, err, nil)
			be.Equal(t, got, tt.want)
		})
	}
}

func TestStaticLinkDelta(t *testing.T) {
	g := Func("g", types.Integer, nil, Return(Int(1)))
	f := Func("f", types.Integer, nil,
		Var("a", types.Integer, Call("g")),
		Return(Ident("a")),
	)
	prog := Program(nil, Decls(f, g), Block(Var("r", types.Integer, Call("f"))))

	got := compile(t, prog)
	var marks []string
	for _, in := range got {
		if strings.HasPrefix(in, "mst") {
			marks = append(marks, in)
		}
	}
	be.Equal(t, marks, []string{"mst 2", "mst 1"})
}

func TestControlFlow(t *testing.T) {
	x := func() *ast.Node { return Ident("x") }
	prog := Program(nil, nil, Block(
		Var("x", types.Integer, Int(0)),
		While(Binary(token.Lt, x(), Int(3)), Block(
			Assign(x(), Binary(token.Plus, x(), Int(1))),
		)),
		If(Binary(token.Eq, x(), Int(3)),
			Block(Assign(x(), Int(0))),
			Block(Assign(x(), Int(1))),
		),
	))

	got := compile(t, prog)
	diff(t, got, `
ssp 6
sep 3
ujp 3
lda 0 5
ldc 0
sto
lda 0 5
ind
ldc 3
les
fjp 18
lda 0 5
lda 0 5
ind
ldc 1
add
sto
ujp 6
lda 0 5
ind
ldc 3
equ
fjp 27
lda 0 5
ldc 0
sto
ujp 30
lda 0 5
ldc 1
sto
stp
`)
}

func TestIfWithoutElse(t *testing.T) {
	prog := Program(nil, nil, Block(
		Var("b", types.Boolean, Bool(true)),
		If(Unary(token.Not, Ident("b")), Block(Assign(Ident("b"), Bool(false))), nil),
	))
	got := compile(t, prog)
	diff(t, got, `
ssp 6
sep 2
ujp 3
lda 0 5
ldc true
sto
lda 0 5
ind
not
fjp 13
lda 0 5
ldc false
sto
stp
`)
}

func arrayProgram() *ast.Program {
	return Program(nil, nil, Block(
		Var("a", types.Array(types.Integer, 4), nil),
		Var("i", types.Integer, Int(2)),
		Assign(Index(Ident("a"), Ident("i")), Int(7)),
	))
}

func TestSubscript(t *testing.T) {
	got := compile(t, arrayProgram())
	diff(t, got, `
ssp 10
sep 2
ujp 3
lda 0 9
ldc 2
sto
lda 0 5
lda 0 9
ind
chk 0 3
ixa 1
ldc 7
sto
stp
`)

	got = compile(t, arrayProgram(), "-Fno-bounds-check")
	for _, in := range got {
		be.True(t, !strings.HasPrefix(in, "chk"))
	}
	be.Equal(t, len(got), 13)
}

func TestCompositeCopy(t *testing.T) {
	prog := Program(Decls(point()), nil, Block(
		Var("p", types.Struct("P"), nil),
		Var("grid", types.Array(types.Struct("P"), 2), nil),
		Assign(Index(Ident("grid"), Int(1)), Ident("p")),
	))
	got := compile(t, prog)
	diff(t, got, `
ssp 11
sep 2
ujp 3
lda 0 7
ldc 1
chk 0 1
ixa 2
lda 0 5
movs 2
stp
`)
}

func TestLiterals(t *testing.T) {
	prog := Program(nil, nil, Block(
		Var("r", types.Real, Real(2)),
		Var("s", types.Real, Real(0.25)),
		Var("c", types.Char, Char('k')),
		Var("n", types.Integer, Unary(token.Minus, Int(5))),
	))
	got := compile(t, prog, "-Wno-unused-var")
	be.Equal(t, got[4], "ldc 2.0")
	be.Equal(t, got[7], "ldc 0.25")
	be.Equal(t, got[10], "ldc 'k'")
	be.Equal(t, got[13], "ldc 5")
	be.Equal(t, got[14], "neg")
}

func TestWriteFile(t *testing.T) {
	cfg := config.NewConfig()
	prog := Program(nil, nil, Block(Var("x", types.Integer, Int(1))))
	resolver.Resolve(prog, cfg)
	typeChecker.Check(prog, cfg)
	out, err := Generate(prog, cfg)
	be.Err(t, err, nil)

	path := filepath.Join(t.TempDir(), "out.p")
	be.Err(t, WriteFile(path, out, cfg), nil)

	var want bytes.Buffer
	be.Err(t, out.Render(&want, cfg), nil)
	got, err := os.ReadFile(path)
	be.Err(t, err, nil)
	be.Equal(t, string(got), want.String())
	be.True(t, strings.HasPrefix(string(got), "{ program }\nssp 6;\n"))
}

func TestWriteFileRemovesPartialOutput(t *testing.T) {
	s := ir.NewStream()
	s.Emit(ir.OpLdc, ir.Int(1))
	s.Emit(ir.OpUjp, s.NewLabel("nowhere"))

	path := filepath.Join(t.TempDir(), "out.p")
	err := WriteFile(path, s, config.NewConfig())
	be.Err(t, err, ir.ErrUnresolved)

	_, statErr := os.Stat(path)
	be.True(t, errors.Is(statErr, os.ErrNotExist))
}
