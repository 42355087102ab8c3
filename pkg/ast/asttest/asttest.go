// Package asttest builds small ASTs for tests. Every node gets the zero
// position unless built with an At variant.
package asttest

import (
	"github.com/xplshn/kaskell/pkg/ast"
	"github.com/xplshn/kaskell/pkg/token"
	"github.com/xplshn/kaskell/pkg/types"
)

var nowhere token.Token

func Int(v int64) *ast.Node       { return ast.NewNumber(nowhere, v) }
func Real(v float64) *ast.Node    { return ast.NewRealNumber(nowhere, v) }
func Bool(v bool) *ast.Node       { return ast.NewBool(nowhere, v) }
func Char(v rune) *ast.Node       { return ast.NewChar(nowhere, v) }
func Ident(name string) *ast.Node { return ast.NewIdent(nowhere, name) }

func IdentAt(line, col int, name string) *ast.Node {
	return ast.NewIdent(token.At(line, col), name)
}

func Member(base *ast.Node, field string) *ast.Node {
	return ast.NewMemberAccess(nowhere, base, field)
}

func Index(array, index *ast.Node) *ast.Node { return ast.NewSubscript(nowhere, array, index) }

func Unary(op token.Type, e *ast.Node) *ast.Node { return ast.NewUnaryOp(nowhere, op, e) }

func Binary(op token.Type, l, r *ast.Node) *ast.Node { return ast.NewBinaryOp(nowhere, op, l, r) }

func Call(name string, args ...*ast.Node) *ast.Node { return ast.NewFuncCall(nowhere, name, args) }

func CallAt(line, col int, name string, args ...*ast.Node) *ast.Node {
	return ast.NewFuncCall(token.At(line, col), name, args)
}

func Var(name string, t *types.Type, init *ast.Node) *ast.Node {
	return ast.NewVarDecl(nowhere, name, t, init)
}

// Field and Param are declarations without initializer
func Field(name string, t *types.Type) *ast.Node { return ast.NewVarDecl(nowhere, name, t, nil) }
func Param(name string, t *types.Type) *ast.Node { return ast.NewVarDecl(nowhere, name, t, nil) }

func Assign(lhs, rhs *ast.Node) *ast.Node { return ast.NewAssign(nowhere, lhs, rhs) }

func If(cond, then, els *ast.Node) *ast.Node { return ast.NewIf(nowhere, cond, then, els) }

func While(cond, body *ast.Node) *ast.Node { return ast.NewWhile(nowhere, cond, body) }

func Return(e *ast.Node) *ast.Node { return ast.NewReturn(nowhere, e) }

func Block(stmts ...*ast.Node) *ast.Node { return ast.NewBlock(nowhere, stmts) }

func Struct(name string, fields ...*ast.Node) *ast.Node {
	return ast.NewStructDecl(nowhere, name, fields)
}

func Func(name string, ret *types.Type, params []*ast.Node, body ...*ast.Node) *ast.Node {
	return ast.NewFuncDecl(nowhere, name, params, ret, Block(body...))
}

func Params(ps ...*ast.Node) []*ast.Node { return ps }

// Program assembles a program; use Decls to group structs or functions
func Program(structs, funcs []*ast.Node, blocks ...*ast.Node) *ast.Program {
	return ast.NewProgram(structs, funcs, blocks)
}

func Decls(ns ...*ast.Node) []*ast.Node { return ns }
