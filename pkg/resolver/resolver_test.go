package resolver

import (
	"errors"
	"testing"

	"github.com/nalgeon/be"
	"github.com/xplshn/kaskell/pkg/ast"
	. "github.com/xplshn/kaskell/pkg/ast/asttest"
	"github.com/xplshn/kaskell/pkg/config"
	"github.com/xplshn/kaskell/pkg/token"
	"github.com/xplshn/kaskell/pkg/types"
	"github.com/xplshn/kaskell/pkg/util"
)

func addProgram() (*ast.Program, *ast.Node) {
	call := Call("add", Int(3), Int(4))
	add := Func("add", types.Integer, Params(Param("a", types.Integer), Param("b", types.Integer)),
		Return(Binary(token.Plus, Ident("a"), Ident("b"))),
	)
	prog := Program(nil, Decls(add), Block(Var("r", types.Integer, call)))
	return prog, call
}

func TestResolveCachesCallMetadata(t *testing.T) {
	prog, call := addProgram()
	ok, diags := Resolve(prog, nil)
	be.True(t, ok)
	be.Equal(t, len(diags.Errors()), 0)
	be.Equal(t, prog.Phase(), ast.PhaseResolved)

	d := call.Data.(ast.FuncCallNode)
	be.Equal(t, len(d.Params), 2)
	be.True(t, types.Equal(d.Return, types.Integer))
	be.True(t, d.Tail == prog.Functions[0].Data.(ast.FuncDeclNode).Tail)
	be.Equal(t, call.Delta, 1)
	be.True(t, types.Equal(call.Typ, types.Integer))

	fn := prog.Functions[0]
	be.Equal(t, fn.FrameSize, 7)
	be.Equal(t, prog.Blocks[0].FrameSize, 6)
}

func TestResolveIsIdempotent(t *testing.T) {
	prog, call := addProgram()
	ok, _ := Resolve(prog, nil)
	be.True(t, ok)

	ret := prog.Functions[0].Data.(ast.FuncDeclNode).Body.Data.(ast.BlockNode).Stmts[0]
	a := ret.Data.(ast.ReturnNode).Expr.Data.(ast.BinaryOpNode).Left
	firstAddr, firstDelta := a.Addr, a.Delta

	ok, diags := Resolve(prog, nil)
	be.True(t, ok)
	be.Equal(t, len(diags.Errors()), 0)
	be.Equal(t, a.Addr, firstAddr)
	be.Equal(t, a.Delta, firstDelta)
	be.Equal(t, call.Delta, 1)
	be.Equal(t, a.Addr, ast.Address{Level: 0, Offset: 5})
}

func TestUndefinedIdentifiersAreAllReported(t *testing.T) {
	y := IdentAt(1, 18, "y")
	z := IdentAt(2, 18, "z")
	prog := Program(nil, nil, Block(
		Var("x", types.Integer, y),
		Var("w", types.Integer, z),
		Var("v", types.Integer, Call("nope")),
	))
	ok, diags := Resolve(prog, nil)
	be.True(t, !ok)
	errs := diags.Errors()
	be.Equal(t, len(errs), 3)
	for _, d := range errs {
		be.Err(t, d, util.ErrUndefinedIdentifier)
	}
	be.Equal(t, errs[0].Tok.Line, 1)
	be.Equal(t, errs[0].Tok.Column, 18)
	be.Equal(t, prog.Phase(), ast.PhaseParsed)

	// No metadata is written on a failed node
	be.True(t, y.Typ == nil)
}

func TestShadowingIsRestoredAfterBlock(t *testing.T) {
	innerUse := Ident("x")
	outerUse := Ident("x")
	prog := Program(nil, nil, Block(
		Var("x", types.Integer, Int(1)),
		Block(
			Var("x", types.Boolean, Bool(true)),
			Var("y", types.Boolean, innerUse),
		),
		Var("z", types.Integer, outerUse),
	))

	cfg := config.NewConfig()
	cfg.SetWarning(config.WarnShadow, true)
	cfg.SetWarning(config.WarnUnusedVar, false)
	ok, diags := Resolve(prog, cfg)
	be.True(t, ok)
	be.True(t, types.Equal(innerUse.Typ, types.Boolean))
	be.True(t, types.Equal(outerUse.Typ, types.Integer))
	be.Equal(t, innerUse.Addr.Offset, 6)
	be.Equal(t, outerUse.Addr.Offset, 5)

	be.Equal(t, len(diags), 1)
	be.Equal(t, diags[0].Severity, util.SevWarning)
	be.Equal(t, diags[0].Flag, "shadow")
}

func TestDepthDelta(t *testing.T) {
	inBody := Call("g")
	inNested := Call("g")
	g := Func("g", types.Integer, nil, Return(Int(1)))
	f := Func("f", types.Integer, nil,
		Var("a", types.Integer, inBody),
		If(Bool(true), Block(Assign(Ident("a"), inNested)), nil),
		Return(Ident("a")),
	)
	prog := Program(nil, Decls(f, g), Block(Var("r", types.Integer, Call("f"))))

	ok, diags := Resolve(prog, nil)
	be.True(t, ok)
	be.Equal(t, len(diags.Errors()), 0)
	be.Equal(t, inBody.Delta, 2)
	be.Equal(t, inNested.Delta, 3)
}

func TestMutualRecursion(t *testing.T) {
	even := Func("even", types.Boolean, Params(Param("n", types.Integer)),
		Return(Call("odd", Ident("n"))),
	)
	odd := Func("odd", types.Boolean, Params(Param("n", types.Integer)),
		Return(Call("even", Ident("n"))),
	)
	prog := Program(nil, Decls(even, odd), Block(Var("b", types.Boolean, Call("even", Int(4)))))
	ok, _ := Resolve(prog, nil)
	be.True(t, ok)
}

func TestStructuralErrors(t *testing.T) {
	tests := []struct {
		name string
		prog *ast.Program
		want error
	}{
		{
			name: "forward struct reference",
			prog: Program(Decls(
				Struct("A", Field("b", types.Struct("B"))),
				Struct("B", Field("x", types.Integer)),
			), nil, Block()),
			want: util.ErrStructural,
		},
		{
			name: "self reference",
			prog: Program(Decls(Struct("A", Field("a", types.Struct("A")))), nil, Block()),
			want: util.ErrStructural,
		},
		{
			name: "unknown struct",
			prog: Program(nil, nil, Block(Var("p", types.Struct("Nope"), nil))),
			want: util.ErrUndefinedIdentifier,
		},
		{
			name: "redeclaration",
			prog: Program(nil, nil, Block(Var("x", types.Integer, nil), Var("x", types.Integer, nil))),
			want: util.ErrStructural,
		},
		{
			name: "duplicate function",
			prog: Program(nil, Decls(
				Func("f", types.Integer, nil, Return(Int(1))),
				Func("f", types.Integer, nil, Return(Int(2))),
			), Block()),
			want: util.ErrStructural,
		},
		{
			name: "variable called as function",
			prog: Program(nil, nil, Block(Var("x", types.Integer, nil), Var("y", types.Integer, Call("x")))),
			want: util.ErrStructural,
		},
		{
			name: "no top-level block",
			prog: Program(nil, Decls(Func("f", types.Integer, nil, Return(Int(1))))),
			want: util.ErrStructural,
		},
		{
			name: "zero length array",
			prog: Program(nil, nil, Block(Var("a", types.Array(types.Integer, 0), nil))),
			want: util.ErrStructural,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, diags := Resolve(tt.prog, nil)
			be.True(t, !ok)
			be.True(t, len(diags.Errors()) > 0)
			be.True(t, errors.Is(diags.Err(), tt.want))
		})
	}
}

func TestOversizedDeclarations(t *testing.T) {
	const half = 1 << 30
	tests := []struct {
		name string
		prog *ast.Program
		msg  string
	}{
		{
			name: "nested array",
			prog: Program(nil, nil, Block(
				Var("a", types.Array(types.Array(types.Array(types.Integer, types.MaxCells), types.MaxCells), types.MaxCells), nil),
				Var("x", types.Integer, Int(1)),
			)),
			msg: "type Array[2147483647](Array[2147483647](Integer)) exceeds 2147483647 cells",
		},
		{
			name: "frame",
			prog: Program(nil, nil, Block(
				Var("a", types.Array(types.Integer, half), nil),
				Var("b", types.Array(types.Integer, half), nil),
				Var("c", types.Integer, nil),
			)),
			msg: "declaring 'b' grows the frame past 2147483647 cells",
		},
		{
			name: "struct",
			prog: Program(Decls(
				Struct("Big", Field("a", types.Array(types.Integer, half)), Field("b", types.Array(types.Integer, half))),
			), nil, Block()),
			msg: "struct 'Big' exceeds 2147483647 cells",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, diags := Resolve(tt.prog, nil)
			be.True(t, !ok)
			errs := diags.Errors()
			be.Equal(t, len(errs), 1)
			be.Equal(t, errs[0].Msg, tt.msg)
			be.True(t, errors.Is(errs[0], util.ErrStructural))
			be.True(t, tt.prog.Phase() != ast.PhaseResolved)
		})
	}
}

func TestStructFieldTypesAreCanonical(t *testing.T) {
	use := Ident("p")
	prog := Program(Decls(
		Struct("Point", Field("x", types.Integer), Field("y", types.Integer)),
		Struct("Line", Field("a", types.Struct("Point")), Field("b", types.Struct("Point"))),
	), nil, Block(Var("l", types.Struct("Line"), nil), Var("p", types.Struct("Point"), nil), Assign(use, use)))

	ok, _ := Resolve(prog, nil)
	be.True(t, ok)
	be.Equal(t, use.Typ.Size(), 2)
	be.Equal(t, use.Addr.Offset, 9)
	be.Equal(t, prog.Blocks[0].FrameSize, 11)
}

func TestUnusedVariableWarning(t *testing.T) {
	prog := Program(nil, nil, Block(Var("unused", types.Integer, Int(1))))
	ok, diags := Resolve(prog, nil)
	be.True(t, ok)
	be.Equal(t, len(diags), 1)
	be.Equal(t, diags[0].Flag, "unused-var")

	cfg := config.NewConfig()
	cfg.ProcessFlags([]string{"-Wno-unused-var"})
	_, diags = Resolve(Program(nil, nil, Block(Var("unused", types.Integer, Int(1)))), cfg)
	be.Equal(t, len(diags), 0)
}
