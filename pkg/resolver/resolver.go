// Package resolver binds every identifier of a program to its declaration,
// caching types, lexical depth-deltas and frame addresses on the AST
package resolver

import (
	"github.com/xplshn/kaskell/pkg/ast"
	"github.com/xplshn/kaskell/pkg/config"
	"github.com/xplshn/kaskell/pkg/symtab"
	"github.com/xplshn/kaskell/pkg/token"
	"github.com/xplshn/kaskell/pkg/types"
	"github.com/xplshn/kaskell/pkg/util"
)

type Resolver struct {
	tab         *symtab.Table
	cfg         *config.Config
	diags       util.Diagnostics
	structOrder map[string]int
}

func NewResolver(cfg *config.Config) *Resolver {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &Resolver{cfg: cfg}
}

// Resolve runs identifier resolution over the whole program. It reports every
// independent error in one pass.
func Resolve(prog *ast.Program, cfg *config.Config) (bool, util.Diagnostics) {
	r := NewResolver(cfg)
	ok := r.Program(prog)
	return ok, r.diags
}

func (r *Resolver) Program(prog *ast.Program) bool {
	r.tab = symtab.New()
	r.diags = nil
	r.structOrder = make(map[string]int)
	prog.SetPhase(ast.PhaseParsed)
	for i, s := range prog.Structs {
		name := s.Data.(ast.StructDeclNode).Name
		if _, seen := r.structOrder[name]; !seen {
			r.structOrder[name] = i
		}
	}

	ok := true

	// Structs: order matters, no forward references
	r.tab.StartBlock()
	for i, s := range prog.Structs {
		ok = r.resolveStruct(s, i) && ok
	}

	// Functions: every signature first, so bodies may call any of them
	r.tab.StartBlock()
	for _, fn := range prog.Functions {
		ok = r.declareFunc(fn) && ok
	}
	for _, fn := range prog.Functions {
		ok = r.resolveFuncBody(fn) && ok
	}

	if len(prog.Blocks) == 0 {
		r.diags.Errorf(util.CatStructural, token.Token{FileIndex: -1}, "program has no top-level block")
		ok = false
	}
	for _, b := range prog.Blocks {
		r.tab.StartFrame()
		ok = r.resolveStmts(b) && ok
		b.FrameSize = r.tab.FrameSize()
		r.closeScope()
	}

	r.closeScope()
	r.closeScope()

	if ok {
		prog.SetPhase(ast.PhaseResolved)
	}
	return ok
}

// closeScope pops the innermost scope, reporting bindings nobody used
func (r *Resolver) closeScope() {
	for _, e := range r.tab.CloseBlock() {
		if e.Uses > 0 || e.Node == nil {
			continue
		}
		switch e.Kind {
		case symtab.EntVar:
			if e.Node.Parent != nil && e.Node.Parent.Type == ast.FuncDecl {
				continue
			}
			r.diags.Warnf(r.cfg, config.WarnUnusedVar, e.Node.Tok, "variable '%s' declared but not used", e.Name)
		case symtab.EntFunc:
			r.diags.Warnf(r.cfg, config.WarnUnusedFunc, e.Node.Tok, "function '%s' is never called", e.Name)
		}
	}
}

// resolveType maps a declared type onto the canonical descriptors in scope.
// inStruct is the index of the struct being declared, or -1.
func (r *Resolver) resolveType(t *types.Type, tok token.Token, inStruct int, owner string) (*types.Type, bool) {
	if t == nil {
		r.diags.Errorf(util.CatStructural, tok, "missing type")
		return nil, false
	}
	switch t.Kind {
	case types.ARRAY:
		if t.Len <= 0 {
			r.diags.Errorf(util.CatStructural, tok, "array length must be positive, got %d", t.Len)
			return nil, false
		}
		elem, ok := r.resolveType(t.Elem, tok, inStruct, owner)
		if !ok {
			return nil, false
		}
		if elem != t.Elem {
			t = types.Array(elem, t.Len)
		}
		if !t.FitsIn(types.MaxCells) {
			r.diags.Errorf(util.CatStructural, tok, "type %s exceeds %d cells", t, types.MaxCells)
			return nil, false
		}
		return t, true
	case types.STRUCT:
		e, found := r.tab.Lookup(t.Name)
		if found && e.Kind == symtab.EntStruct {
			return e.Type, true
		}
		if found {
			r.diags.Errorf(util.CatStructural, tok, "'%s' is a %s, not a struct type", t.Name, e.Kind)
			return nil, false
		}
		if inStruct >= 0 {
			if t.Name == owner {
				r.diags.Errorf(util.CatStructural, tok, "struct '%s' cannot contain itself", owner)
				return nil, false
			}
			if idx, declared := r.structOrder[t.Name]; declared && idx > inStruct {
				r.diags.Errorf(util.CatStructural, tok, "struct '%s' is used by '%s' before its declaration", t.Name, owner)
				return nil, false
			}
		}
		r.diags.Errorf(util.CatUndefinedIdentifier, tok, "undefined struct '%s'", t.Name)
		return nil, false
	default:
		return t, true
	}
}

func (r *Resolver) resolveStruct(node *ast.Node, index int) bool {
	d := node.Data.(ast.StructDeclNode)
	ok := true
	seen := make(map[string]bool)
	fields := make([]types.Field, 0, len(d.Fields))
	for _, f := range d.Fields {
		fd := f.Data.(ast.VarDeclNode)
		if seen[fd.Name] {
			r.diags.Errorf(util.CatStructural, f.Tok, "duplicate field '%s' in struct '%s'", fd.Name, d.Name)
			ok = false
		}
		seen[fd.Name] = true
		if fd.Init != nil {
			r.diags.Errorf(util.CatStructural, f.Tok, "field '%s' of struct '%s' cannot have an initializer", fd.Name, d.Name)
			ok = false
		}
		ft, fok := r.resolveType(fd.Type, f.Tok, index, d.Name)
		ok = fok && ok
		if fok {
			f.Typ = ft
			fields = append(fields, types.Field{Name: fd.Name, Type: ft})
		}
	}
	if len(d.Fields) == 0 {
		r.diags.Errorf(util.CatStructural, node.Tok, "struct '%s' has no fields", d.Name)
		ok = false
	}
	if !ok {
		return false
	}

	desc := types.Struct(d.Name, fields...)
	if !desc.FitsIn(types.MaxCells) {
		r.diags.Errorf(util.CatStructural, node.Tok, "struct '%s' exceeds %d cells", d.Name, types.MaxCells)
		return false
	}
	if !r.tab.InsertIdentifier(d.Name, &symtab.Entity{Kind: symtab.EntStruct, Type: desc, Node: node}) {
		r.diags.Errorf(util.CatStructural, node.Tok, "redefinition of struct '%s'", d.Name)
		return false
	}
	node.Typ = desc
	return true
}

func (r *Resolver) declareFunc(node *ast.Node) bool {
	d := node.Data.(ast.FuncDeclNode)
	ok := true
	params := make([]*types.Type, len(d.Params))
	for i, p := range d.Params {
		pt, pok := r.resolveType(p.Data.(ast.VarDeclNode).Type, p.Tok, -1, "")
		ok = pok && ok
		if pok {
			p.Typ = pt
			params[i] = pt
		}
	}
	ret, rok := r.resolveType(d.ReturnType, node.Tok, -1, "")
	ok = rok && ok

	d.Sig = &ast.Signature{Name: d.Name, Params: params, Return: ret}
	node.Data = d
	node.Typ = ret

	e := &symtab.Entity{Kind: symtab.EntFunc, Type: ret, Sig: d.Sig, Tail: d.Tail, Node: node}
	if !r.tab.InsertIdentifier(d.Name, e) {
		r.diags.Errorf(util.CatStructural, node.Tok, "redefinition of '%s'", d.Name)
		ok = false
	}
	return ok
}

func (r *Resolver) resolveFuncBody(node *ast.Node) bool {
	d := node.Data.(ast.FuncDeclNode)
	ok := true

	r.tab.StartFrame()
	for _, p := range d.Params {
		pd := p.Data.(ast.VarDeclNode)
		if p.Typ == nil {
			ok = false
			continue
		}
		byRef := p.Typ.IsComposite()
		before := r.tab.FrameSize()
		e, inserted := r.tab.InsertVariable(pd.Name, p.Typ, byRef, p)
		if !inserted {
			r.diags.Errorf(util.CatStructural, p.Tok, "duplicate parameter '%s' in function '%s'", pd.Name, d.Name)
			ok = false
			continue
		}
		p.Addr = ast.Address{Offset: e.Offset, ByRef: byRef}
		ok = r.checkFrame(p, pd.Name, before) && ok
	}

	if d.Body == nil {
		r.diags.Errorf(util.CatStructural, node.Tok, "function '%s' has no body", d.Name)
		ok = false
	} else {
		r.tab.StartBlock()
		ok = r.resolveStmts(d.Body) && ok
		r.closeScope()
	}
	node.FrameSize = r.tab.FrameSize()
	r.closeScope()
	return ok
}

// resolveStmts resolves the statements of a block in the current scope
func (r *Resolver) resolveStmts(block *ast.Node) bool {
	if block.Type != ast.Block {
		return r.resolveStmt(block)
	}
	ok := true
	for _, stmt := range block.Data.(ast.BlockNode).Stmts {
		ok = r.resolveStmt(stmt) && ok
	}
	return ok
}

func (r *Resolver) resolveStmt(node *ast.Node) bool {
	if node == nil {
		return true
	}
	switch d := node.Data.(type) {
	case ast.BlockNode:
		r.tab.StartBlock()
		ok := r.resolveStmts(node)
		r.closeScope()
		return ok
	case ast.VarDeclNode:
		return r.resolveVarDecl(node, d)
	case ast.AssignNode:
		ok := r.resolveExpr(d.Lhs)
		return r.resolveExpr(d.Rhs) && ok
	case ast.IfNode:
		ok := r.resolveExpr(d.Cond)
		ok = r.resolveStmt(d.ThenBody) && ok
		return r.resolveStmt(d.ElseBody) && ok
	case ast.WhileNode:
		ok := r.resolveExpr(d.Cond)
		return r.resolveStmt(d.Body) && ok
	case ast.ReturnNode:
		if d.Expr == nil {
			return true
		}
		return r.resolveExpr(d.Expr)
	default:
		r.diags.Errorf(util.CatStructural, node.Tok, "%s is not a statement", node.Type)
		return false
	}
}

func (r *Resolver) resolveVarDecl(node *ast.Node, d ast.VarDeclNode) bool {
	ok := true
	// The initializer sees the bindings in force before the declaration
	if d.Init != nil {
		ok = r.resolveExpr(d.Init) && ok
	}
	t, tok := r.resolveType(d.Type, node.Tok, -1, "")
	if !tok {
		return false
	}
	if outer, found := r.tab.Lookup(d.Name); found && outer.Depth < r.tab.CurrentDepth() {
		r.diags.Warnf(r.cfg, config.WarnShadow, node.Tok, "declaration of '%s' shadows an outer %s", d.Name, outer.Kind)
	}
	before := r.tab.FrameSize()
	e, inserted := r.tab.InsertVariable(d.Name, t, false, node)
	if !inserted {
		r.diags.Errorf(util.CatStructural, node.Tok, "redeclaration of '%s' in the same scope", d.Name)
		return false
	}
	node.Typ = t
	node.Addr = ast.Address{Offset: e.Offset}
	return r.checkFrame(node, d.Name, before) && ok
}

// checkFrame rejects the declaration that pushes its frame past MaxCells.
// Declarations after it are not reported again.
func (r *Resolver) checkFrame(node *ast.Node, name string, before int) bool {
	if r.tab.FrameSize() <= types.MaxCells {
		return true
	}
	if before > types.MaxCells {
		return false
	}
	r.diags.Errorf(util.CatStructural, node.Tok, "declaring '%s' grows the frame past %d cells", name, types.MaxCells)
	return false
}

func (r *Resolver) resolveExpr(node *ast.Node) bool {
	if node == nil {
		return true
	}
	switch d := node.Data.(type) {
	case ast.NumberNode:
		node.Typ = types.Integer
		return true
	case ast.RealNumberNode:
		node.Typ = types.Real
		return true
	case ast.BoolNode:
		node.Typ = types.Boolean
		return true
	case ast.CharNode:
		node.Typ = types.Char
		return true
	case ast.IdentNode:
		return r.resolveIdent(node, d)
	case ast.MemberAccessNode:
		return r.resolveExpr(d.Expr)
	case ast.SubscriptNode:
		ok := r.resolveExpr(d.Array)
		return r.resolveExpr(d.Index) && ok
	case ast.UnaryOpNode:
		ok := r.resolveExpr(d.Expr)
		sig, known := ast.UnaryOperators[d.Op]
		if !known {
			r.diags.Errorf(util.CatStructural, node.Tok, "unknown unary operator '%s'", d.Op)
			return false
		}
		if ok {
			node.Typ = sig.Result
		}
		return ok
	case ast.BinaryOpNode:
		ok := r.resolveExpr(d.Left)
		ok = r.resolveExpr(d.Right) && ok
		sig, known := ast.BinaryOperators[d.Op]
		if !known {
			r.diags.Errorf(util.CatStructural, node.Tok, "unknown binary operator '%s'", d.Op)
			return false
		}
		if ok {
			node.Typ = sig.Result
		}
		return ok
	case ast.FuncCallNode:
		return r.resolveCall(node, d)
	default:
		r.diags.Errorf(util.CatStructural, node.Tok, "%s is not an expression", node.Type)
		return false
	}
}

func (r *Resolver) resolveIdent(node *ast.Node, d ast.IdentNode) bool {
	e, found := r.tab.Lookup(d.Name)
	if !found {
		r.diags.Errorf(util.CatUndefinedIdentifier, node.Tok, "undefined identifier '%s'", d.Name)
		return false
	}
	if e.Kind != symtab.EntVar {
		r.diags.Errorf(util.CatStructural, node.Tok, "'%s' is a %s, not a variable", d.Name, e.Kind)
		return false
	}
	e.Uses++
	node.Typ = e.Type
	node.Delta = r.tab.CurrentDepth() - e.Depth
	node.Addr = ast.Address{Level: r.tab.FrameLevel() - e.Frame, Offset: e.Offset, ByRef: e.ByRef}
	return true
}

func (r *Resolver) resolveCall(node *ast.Node, d ast.FuncCallNode) bool {
	ok := true
	e, found := r.tab.Lookup(d.Name)
	switch {
	case !found:
		r.diags.Errorf(util.CatUndefinedIdentifier, node.Tok, "undefined function '%s'", d.Name)
		ok = false
	case e.Kind != symtab.EntFunc:
		r.diags.Errorf(util.CatStructural, node.Tok, "'%s' is a %s, not a function", d.Name, e.Kind)
		ok = false
	}
	for _, arg := range d.Args {
		ok = r.resolveExpr(arg) && ok
	}
	if !ok {
		return false
	}

	e.Uses++
	d.Params, d.Return, d.Tail = e.Sig.Params, e.Sig.Return, e.Tail
	node.Data = d
	node.Typ = e.Sig.Return
	node.Delta = r.tab.CurrentDepth() - e.Depth
	return true
}
