package typeChecker

import (
	"github.com/xplshn/kaskell/pkg/ast"
	"github.com/xplshn/kaskell/pkg/config"
	"github.com/xplshn/kaskell/pkg/token"
	"github.com/xplshn/kaskell/pkg/types"
	"github.com/xplshn/kaskell/pkg/util"
)

type TypeChecker struct {
	cfg         *config.Config
	diags       util.Diagnostics
	currentFunc *ast.Node
}

func NewTypeChecker(cfg *config.Config) *TypeChecker {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &TypeChecker{cfg: cfg}
}

// Check verifies a resolved program. It refuses to look at a program whose
// resolution failed or never ran.
func Check(prog *ast.Program, cfg *config.Config) (bool, util.Diagnostics) {
	tc := NewTypeChecker(cfg)
	ok := tc.Check(prog)
	return ok, tc.diags
}

func (tc *TypeChecker) Check(prog *ast.Program) bool {
	tc.diags = nil
	if !prog.Reached(ast.PhaseResolved) {
		tc.diags.Errorf(util.CatStructural, token.Token{FileIndex: -1}, "type checking requires a resolved program (program is %s)", prog.Phase())
		return false
	}

	ok := true
	for _, fn := range prog.Functions {
		ok = tc.checkFunc(fn) && ok
	}
	for _, b := range prog.Blocks {
		tc.currentFunc = nil
		ok = tc.checkStmt(b) && ok
	}

	if ok {
		prog.SetPhase(ast.PhaseChecked)
	} else {
		prog.SetPhase(ast.PhaseResolved)
	}
	return ok
}

func (tc *TypeChecker) checkFunc(node *ast.Node) bool {
	d := node.Data.(ast.FuncDeclNode)
	tc.currentFunc = node
	defer func() { tc.currentFunc = nil }()

	ok := true
	if d.Sig.Return.IsComposite() {
		tc.diags.Errorf(util.CatStructural, node.Tok, "function '%s' cannot return composite type %s", d.Name, d.Sig.Return)
		ok = false
	}
	ok = tc.checkStmt(d.Body) && ok

	returns := false
	ast.Walk(d.Body, func(n *ast.Node) {
		if n.Type == ast.Return {
			returns = true
		}
	})
	if !returns {
		tc.diags.Warnf(tc.cfg, config.WarnExtra, node.Tok, "function '%s' has no return statement", d.Name)
	}
	return ok
}

func (tc *TypeChecker) checkStmt(node *ast.Node) bool {
	if node == nil {
		return true
	}
	switch d := node.Data.(type) {
	case ast.BlockNode:
		ok := true
		for _, s := range d.Stmts {
			ok = tc.checkStmt(s) && ok
		}
		return ok
	case ast.VarDeclNode:
		if d.Init == nil {
			return true
		}
		return tc.checkStore(node, node.Typ, d.Init, "initializer of '"+d.Name+"'")
	case ast.AssignNode:
		lt, ok := tc.checkExpr(d.Lhs)
		if ok && !ast.IsAddressable(d.Lhs) {
			tc.diags.Errorf(util.CatStructural, d.Lhs.Tok, "cannot assign to %s", d.Lhs.Type)
			ok = false
		}
		if !ok {
			tc.checkExpr(d.Rhs)
			return false
		}
		return tc.checkStore(node, lt, d.Rhs, "assignment")
	case ast.IfNode:
		ok := tc.checkCond(d.Cond, "if")
		ok = tc.checkStmt(d.ThenBody) && ok
		return tc.checkStmt(d.ElseBody) && ok
	case ast.WhileNode:
		ok := tc.checkCond(d.Cond, "while")
		return tc.checkStmt(d.Body) && ok
	case ast.ReturnNode:
		return tc.checkReturn(node, d)
	default:
		tc.diags.Errorf(util.CatStructural, node.Tok, "%s is not a statement", node.Type)
		return false
	}
}

// checkStore verifies that value may be stored into a location of type want
func (tc *TypeChecker) checkStore(at *ast.Node, want *types.Type, value *ast.Node, what string) bool {
	vt, ok := tc.checkExpr(value)
	if !ok {
		return false
	}
	if !types.Equal(want, vt) {
		tc.diags.Errorf(util.CatTypeMismatch, at.Tok, "%s: cannot use %s as %s", what, vt, want)
		return false
	}
	if want.IsComposite() && !ast.IsAddressable(value) {
		tc.diags.Errorf(util.CatStructural, value.Tok, "%s: composite value must be a variable, field or element", what)
		return false
	}
	return true
}

func (tc *TypeChecker) checkCond(cond *ast.Node, stmt string) bool {
	t, ok := tc.checkExpr(cond)
	if ok && !types.Equal(t, types.Boolean) {
		tc.diags.Errorf(util.CatTypeMismatch, cond.Tok, "%s condition must be Boolean, got %s", stmt, t)
		return false
	}
	return ok
}

func (tc *TypeChecker) checkReturn(node *ast.Node, d ast.ReturnNode) bool {
	if tc.currentFunc == nil || !node.InsideFunc() {
		tc.diags.Errorf(util.CatStructural, node.Tok, "return outside of a function")
		if d.Expr != nil {
			tc.checkExpr(d.Expr)
		}
		return false
	}
	fd := tc.currentFunc.Data.(ast.FuncDeclNode)
	if d.Expr == nil {
		tc.diags.Errorf(util.CatStructural, node.Tok, "function '%s' must return a %s value", fd.Name, fd.Sig.Return)
		return false
	}
	t, ok := tc.checkExpr(d.Expr)
	if ok && !types.Equal(t, fd.Sig.Return) {
		tc.diags.Errorf(util.CatTypeMismatch, d.Expr.Tok, "cannot return %s from function '%s' returning %s", t, fd.Name, fd.Sig.Return)
		return false
	}
	return ok
}

// checkExpr returns the type of an expression. Every sub-expression is
// checked even after a failure.
func (tc *TypeChecker) checkExpr(node *ast.Node) (*types.Type, bool) {
	switch d := node.Data.(type) {
	case ast.NumberNode, ast.RealNumberNode, ast.BoolNode, ast.CharNode, ast.IdentNode:
		return node.Typ, node.Typ != nil
	case ast.MemberAccessNode:
		return tc.checkMemberAccess(node, d)
	case ast.SubscriptNode:
		at, aok := tc.checkExpr(d.Array)
		it, iok := tc.checkExpr(d.Index)
		if aok && at.Kind != types.ARRAY {
			tc.diags.Errorf(util.CatTypeMismatch, node.Tok, "cannot index non-array type %s", at)
			aok = false
		}
		if iok && !types.Equal(it, types.Integer) {
			tc.diags.Errorf(util.CatTypeMismatch, d.Index.Tok, "array index must be Integer, got %s", it)
			iok = false
		}
		if !aok || !iok {
			return nil, false
		}
		node.Typ = at.Elem
		return node.Typ, true
	case ast.UnaryOpNode:
		sig := ast.UnaryOperators[d.Op]
		t, ok := tc.checkExpr(d.Expr)
		if ok && !types.Equal(t, sig.Operand) {
			tc.diags.Errorf(util.CatTypeMismatch, node.Tok, "operator '%s' expects %s, got %s", d.Op, sig.Operand, t)
			ok = false
		}
		return sig.Result, ok
	case ast.BinaryOpNode:
		sig := ast.BinaryOperators[d.Op]
		lt, lok := tc.checkExpr(d.Left)
		rt, rok := tc.checkExpr(d.Right)
		ok := lok && rok
		if lok && !types.Equal(lt, sig.Operand) {
			tc.diags.Errorf(util.CatTypeMismatch, d.Left.Tok, "left operand of '%s' must be %s, got %s", d.Op, sig.Operand, lt)
			ok = false
		}
		if rok && !types.Equal(rt, sig.Operand) {
			tc.diags.Errorf(util.CatTypeMismatch, d.Right.Tok, "right operand of '%s' must be %s, got %s", d.Op, sig.Operand, rt)
			ok = false
		}
		return sig.Result, ok
	case ast.FuncCallNode:
		return d.Return, tc.checkCall(node, d)
	default:
		tc.diags.Errorf(util.CatStructural, node.Tok, "%s is not an expression", node.Type)
		return nil, false
	}
}

func (tc *TypeChecker) checkMemberAccess(node *ast.Node, d ast.MemberAccessNode) (*types.Type, bool) {
	bt, ok := tc.checkExpr(d.Expr)
	if !ok {
		return nil, false
	}
	if bt.Kind != types.STRUCT {
		tc.diags.Errorf(util.CatTypeMismatch, node.Tok, "field access '.%s' on non-struct type %s", d.Field, bt)
		return nil, false
	}
	f, offset, found := bt.Lookup(d.Field)
	if !found {
		tc.diags.Errorf(util.CatUndefinedIdentifier, node.Tok, "no field '%s' in %s", d.Field, types.Describe(bt))
		return nil, false
	}
	d.Offset = offset
	node.Data = d
	node.Typ = f.Type
	return f.Type, true
}

// checkCall verifies a call against the signature cached on it: arity first,
// then every argument position
func (tc *TypeChecker) checkCall(node *ast.Node, d ast.FuncCallNode) bool {
	ok := true
	argTypes := make([]*types.Type, len(d.Args))
	argOK := make([]bool, len(d.Args))
	for i, arg := range d.Args {
		argTypes[i], argOK[i] = tc.checkExpr(arg)
		ok = argOK[i] && ok
	}

	if len(d.Args) != len(d.Params) {
		tc.diags.Errorf(util.CatArityMismatch, node.Tok, "function '%s' expects %d arguments, got %d", d.Name, len(d.Params), len(d.Args))
		return false
	}

	for i, param := range d.Params {
		if !argOK[i] {
			continue
		}
		if !types.Equal(argTypes[i], param) {
			tc.diags.Errorf(util.CatTypeMismatch, node.Tok, "argument %d of '%s': cannot use %s as %s", i+1, d.Name, argTypes[i], param)
			ok = false
			continue
		}
		if param.IsComposite() && !ast.IsAddressable(d.Args[i]) {
			tc.diags.Errorf(util.CatStructural, d.Args[i].Tok, "argument %d of '%s' is passed by reference and must be a variable, field or element", i+1, d.Name)
			ok = false
		}
	}
	return ok
}
