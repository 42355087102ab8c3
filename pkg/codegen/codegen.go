// Package codegen lowers a checked program to P-machine instructions
package codegen

import (
	"errors"
	"fmt"

	"github.com/xplshn/kaskell/pkg/ast"
	"github.com/xplshn/kaskell/pkg/config"
	"github.com/xplshn/kaskell/pkg/ir"
	"github.com/xplshn/kaskell/pkg/types"
)

var ErrNotChecked = errors.New("program has not been type checked")

type Context struct {
	cfg         *config.Config
	out         *ir.Stream
	currentFunc *ast.Node
}

func NewContext(cfg *config.Config) *Context {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &Context{cfg: cfg}
}

// Generate lowers prog into a fresh instruction stream. Only a program that
// passed type checking is accepted.
func Generate(prog *ast.Program, cfg *config.Config) (*ir.Stream, error) {
	return NewContext(cfg).Generate(prog)
}

func (ctx *Context) Generate(prog *ast.Program) (*ir.Stream, error) {
	if !prog.Reached(ast.PhaseChecked) {
		return nil, fmt.Errorf("code generation: %w (program is %s)", ErrNotChecked, prog.Phase())
	}
	ctx.out = ir.NewStream()
	out := ctx.out

	mainSize := 0
	for _, b := range prog.Blocks {
		mainSize = max(mainSize, b.FrameSize)
	}

	extent, closeMain := out.OpenFrame()
	out.Comment("program")
	out.Emit(ir.OpSsp, ir.Int(mainSize))
	if ctx.cfg.IsFeatureEnabled(config.FeatStackExtent) {
		out.Emit(ir.OpSep, extent)
	}
	mainL := out.NewLabel("main")
	out.Emit(ir.OpUjp, mainL)

	for _, fn := range prog.Functions {
		if err := ctx.codegenFuncDecl(fn); err != nil {
			return nil, err
		}
	}

	out.Bind(mainL)
	for i, b := range prog.Blocks {
		out.Comment("block %d", i+1)
		if err := ctx.codegenStmt(b); err != nil {
			return nil, err
		}
	}
	out.Emit(ir.OpStp)
	closeMain()

	prog.SetPhase(ast.PhaseGenerated)
	return out, nil
}

func (ctx *Context) codegenFuncDecl(node *ast.Node) error {
	d := node.Data.(ast.FuncDeclNode)
	ctx.currentFunc = node
	defer func() { ctx.currentFunc = nil }()

	extent, closeFrame := ctx.out.OpenFrame()
	defer closeFrame()

	ctx.out.Comment("function %s", d.Name)
	d.Tail.SetAddress(ctx.out.Here())
	ctx.out.Emit(ir.OpSsp, ir.Int(node.FrameSize))
	if ctx.cfg.IsFeatureEnabled(config.FeatStackExtent) {
		ctx.out.Emit(ir.OpSep, extent)
	}
	if err := ctx.codegenStmt(d.Body); err != nil {
		return err
	}
	ctx.out.Emit(ir.OpRetf)
	ctx.out.Comment("end function %s", d.Name)
	return nil
}

func (ctx *Context) codegenStmt(node *ast.Node) error {
	if node == nil {
		return nil
	}
	switch d := node.Data.(type) {
	case ast.BlockNode:
		for _, s := range d.Stmts {
			if err := ctx.codegenStmt(s); err != nil {
				return err
			}
		}
		return nil
	case ast.VarDeclNode:
		if d.Init == nil {
			return nil
		}
		return ctx.codegenStore(func() error {
			ctx.out.Emit(ir.OpLda, ir.Int(node.Addr.Level), ir.Int(node.Addr.Offset))
			return nil
		}, node.Typ, d.Init)
	case ast.AssignNode:
		return ctx.codegenStore(func() error { return ctx.codegenAddr(d.Lhs) }, d.Lhs.Typ, d.Rhs)
	case ast.IfNode:
		return ctx.codegenIf(d)
	case ast.WhileNode:
		return ctx.codegenWhile(d)
	case ast.ReturnNode:
		return ctx.codegenReturn(node, d)
	default:
		return fmt.Errorf("%s: cannot generate %s as a statement", node.Tok, node.Type)
	}
}

// codegenStore emits the target address, then the value, then the store.
// Composite values are block-copied from the source address.
func (ctx *Context) codegenStore(target func() error, typ *types.Type, value *ast.Node) error {
	if err := target(); err != nil {
		return err
	}
	if typ.IsComposite() {
		if err := ctx.codegenAddr(value); err != nil {
			return err
		}
		ctx.out.Emit(ir.OpMovs, ir.Int(typ.Size()))
		return nil
	}
	if err := ctx.codegenValue(value); err != nil {
		return err
	}
	ctx.out.Emit(ir.OpSto)
	return nil
}

func (ctx *Context) codegenIf(d ast.IfNode) error {
	elseL := ctx.out.NewLabel("else")
	if err := ctx.codegenValue(d.Cond); err != nil {
		return err
	}
	ctx.out.Emit(ir.OpFjp, elseL)
	if err := ctx.codegenStmt(d.ThenBody); err != nil {
		return err
	}
	if d.ElseBody == nil {
		ctx.out.Bind(elseL)
		return nil
	}
	endL := ctx.out.NewLabel("endif")
	ctx.out.Emit(ir.OpUjp, endL)
	ctx.out.Bind(elseL)
	if err := ctx.codegenStmt(d.ElseBody); err != nil {
		return err
	}
	ctx.out.Bind(endL)
	return nil
}

func (ctx *Context) codegenWhile(d ast.WhileNode) error {
	loopL, endL := ctx.out.NewLabel("loop"), ctx.out.NewLabel("endloop")
	ctx.out.Bind(loopL)
	if err := ctx.codegenValue(d.Cond); err != nil {
		return err
	}
	ctx.out.Emit(ir.OpFjp, endL)
	if err := ctx.codegenStmt(d.Body); err != nil {
		return err
	}
	ctx.out.Emit(ir.OpUjp, loopL)
	ctx.out.Bind(endL)
	return nil
}

// codegenReturn stores the value into the function-value cell at the base of
// the frame and leaves the function
func (ctx *Context) codegenReturn(node *ast.Node, d ast.ReturnNode) error {
	if ctx.currentFunc == nil || d.Expr == nil {
		return fmt.Errorf("%s: return outside of a function body", node.Tok)
	}
	ctx.out.Emit(ir.OpLda, ir.Int(0), ir.Int(0))
	if err := ctx.codegenValue(d.Expr); err != nil {
		return err
	}
	ctx.out.Emit(ir.OpSto)
	ctx.out.Emit(ir.OpRetf)
	return nil
}
