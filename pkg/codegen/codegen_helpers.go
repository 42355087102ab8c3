package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xplshn/kaskell/pkg/ast"
	"github.com/xplshn/kaskell/pkg/config"
	"github.com/xplshn/kaskell/pkg/ir"
	"github.com/xplshn/kaskell/pkg/token"
	"github.com/xplshn/kaskell/pkg/types"
)

// codegenValue leaves the value of an expression on the stack
func (ctx *Context) codegenValue(node *ast.Node) error {
	switch d := node.Data.(type) {
	case ast.NumberNode:
		ctx.out.Emit(ir.OpLdc, ir.Int(d.Value))
	case ast.RealNumberNode:
		ctx.out.Emit(ir.OpLdc, ir.Lit(formatReal(d.Value)))
	case ast.BoolNode:
		ctx.out.Emit(ir.OpLdc, ir.Lit(strconv.FormatBool(d.Value)))
	case ast.CharNode:
		ctx.out.Emit(ir.OpLdc, ir.Lit(strconv.QuoteRune(d.Value)))
	case ast.IdentNode, ast.MemberAccessNode, ast.SubscriptNode:
		if node.Typ.IsComposite() {
			return fmt.Errorf("%s: %s value has no scalar form", node.Tok, node.Typ)
		}
		if err := ctx.codegenAddr(node); err != nil {
			return err
		}
		ctx.out.Emit(ir.OpInd)
	case ast.UnaryOpNode:
		if err := ctx.codegenValue(d.Expr); err != nil {
			return err
		}
		op, ok := unaryOps[d.Op]
		if !ok {
			return fmt.Errorf("%s: no instruction for unary '%s'", node.Tok, d.Op)
		}
		ctx.out.Emit(op)
	case ast.BinaryOpNode:
		if err := ctx.codegenValue(d.Left); err != nil {
			return err
		}
		if err := ctx.codegenValue(d.Right); err != nil {
			return err
		}
		op, ok := binaryOps[d.Op]
		if !ok {
			return fmt.Errorf("%s: no instruction for binary '%s'", node.Tok, d.Op)
		}
		ctx.out.Emit(op)
	case ast.FuncCallNode:
		return ctx.codegenFuncCall(node, d)
	default:
		return fmt.Errorf("%s: %s is not an expression", node.Tok, node.Type)
	}
	return nil
}

// codegenAddr leaves the address of a storage location on the stack. It is
// the value form without the final ind.
func (ctx *Context) codegenAddr(node *ast.Node) error {
	switch d := node.Data.(type) {
	case ast.IdentNode:
		a := node.Addr
		if a.ByRef {
			ctx.out.Emit(ir.OpLod, ir.Int(a.Level), ir.Int(a.Offset))
		} else {
			ctx.out.Emit(ir.OpLda, ir.Int(a.Level), ir.Int(a.Offset))
		}
	case ast.MemberAccessNode:
		if err := ctx.codegenAddr(d.Expr); err != nil {
			return err
		}
		ctx.out.Emit(ir.OpInc, ir.Int(d.Offset))
	case ast.SubscriptNode:
		return ctx.codegenSubscriptAddr(node, d)
	default:
		return fmt.Errorf("%s: %s has no address", node.Tok, node.Type)
	}
	return nil
}

func (ctx *Context) codegenSubscriptAddr(node *ast.Node, d ast.SubscriptNode) error {
	arr := d.Array.Typ
	if arr == nil || arr.Kind != types.ARRAY {
		return fmt.Errorf("%s: subscript of non-array %s", node.Tok, arr)
	}
	if err := ctx.codegenAddr(d.Array); err != nil {
		return err
	}
	if err := ctx.codegenValue(d.Index); err != nil {
		return err
	}
	if ctx.cfg.IsFeatureEnabled(config.FeatBoundsCheck) {
		ctx.out.Emit(ir.OpChk, ir.Int(0), ir.Int(arr.Len-1))
	}
	ctx.out.Emit(ir.OpIxa, ir.Int(arr.Elem.Size()))
	return nil
}

// codegenArg picks the argument form from the declared parameter type:
// composite parameters receive the address, scalars the value
func (ctx *Context) codegenArg(arg *ast.Node, param *types.Type) error {
	if param.IsComposite() {
		return ctx.codegenAddr(arg)
	}
	return ctx.codegenValue(arg)
}

func (ctx *Context) codegenFuncCall(node *ast.Node, d ast.FuncCallNode) error {
	if len(d.Params) != len(d.Args) || d.Tail == nil {
		return fmt.Errorf("%s: call to '%s' was not resolved", node.Tok, d.Name)
	}
	ctx.out.Comment("call %s", d.Name)
	ctx.out.Emit(ir.OpMst, ir.Int(node.Delta))
	for i, arg := range d.Args {
		if err := ctx.codegenArg(arg, d.Params[i]); err != nil {
			return err
		}
	}
	ctx.out.Emit(ir.OpCup, ir.Int(len(d.Args)), ir.FuncAddr{Name: d.Name, Tail: d.Tail})
	ctx.out.Comment("end call %s", d.Name)
	return nil
}

func formatReal(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

var unaryOps = map[token.Type]ir.Op{
	token.Minus: ir.OpNeg,
	token.Not:   ir.OpNot,
}

var binaryOps = map[token.Type]ir.Op{
	token.Plus:  ir.OpAdd,
	token.Minus: ir.OpSub,
	token.Star:  ir.OpMul,
	token.Slash: ir.OpDiv,
	token.Rem:   ir.OpMod,
	token.And:   ir.OpAnd,
	token.Or:    ir.OpOr,
	token.Eq:    ir.OpEqu,
	token.Neq:   ir.OpNeq,
	token.Lt:    ir.OpLes,
	token.Lte:   ir.OpLeq,
	token.Gt:    ir.OpGrt,
	token.Gte:   ir.OpGeq,
}
