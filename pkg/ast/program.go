package ast

import (
	"github.com/xplshn/kaskell/pkg/token"
	"github.com/xplshn/kaskell/pkg/types"
)

// Phase tracks how far a Program has travelled through the pipeline.
// Each phase requires the previous one to have succeeded.
type Phase int

const (
	PhaseParsed Phase = iota
	PhaseResolved
	PhaseChecked
	PhaseGenerated
)

func (p Phase) String() string {
	switch p {
	case PhaseParsed:
		return "parsed"
	case PhaseResolved:
		return "resolved"
	case PhaseChecked:
		return "checked"
	case PhaseGenerated:
		return "generated"
	default:
		return "unknown"
	}
}

// Program is the root of a compilation unit
type Program struct {
	Structs   []*Node // StructDecl
	Functions []*Node // FuncDecl
	Blocks    []*Node // top-level Block, at least one
	phase     Phase
}

// NewProgram builds a program and tags every node inside a function body
// with its enclosing function
func NewProgram(structs, functions, blocks []*Node) *Program {
	p := &Program{Structs: structs, Functions: functions, Blocks: blocks}
	for _, fn := range functions {
		SetEnclosingFunc(fn.Data.(FuncDeclNode).Body, fn)
	}
	for _, b := range blocks {
		SetEnclosingFunc(b, nil)
	}
	return p
}

func (p *Program) Phase() Phase { return p.phase }

// Reached reports whether the program has completed phase ph
func (p *Program) Reached(ph Phase) bool { return p.phase >= ph }

// SetPhase records the outcome of a phase. A failed or re-run phase moves
// the program back so that later phases refuse to run.
func (p *Program) SetPhase(ph Phase) { p.phase = ph }

// SetEnclosingFunc tags node and every node below it with fn. A nil fn marks
// the subtree as top-level code.
func SetEnclosingFunc(node *Node, fn *Node) {
	Walk(node, func(n *Node) { n.Func = fn })
}

// Children returns the direct sub-nodes of node in source order
func Children(node *Node) []*Node {
	if node == nil {
		return nil
	}
	var out []*Node
	add := func(ns ...*Node) {
		for _, n := range ns {
			if n != nil {
				out = append(out, n)
			}
		}
	}
	switch d := node.Data.(type) {
	case MemberAccessNode:
		add(d.Expr)
	case SubscriptNode:
		add(d.Array, d.Index)
	case UnaryOpNode:
		add(d.Expr)
	case BinaryOpNode:
		add(d.Left, d.Right)
	case FuncCallNode:
		add(d.Args...)
	case VarDeclNode:
		add(d.Init)
	case AssignNode:
		add(d.Lhs, d.Rhs)
	case IfNode:
		add(d.Cond, d.ThenBody, d.ElseBody)
	case WhileNode:
		add(d.Cond, d.Body)
	case ReturnNode:
		add(d.Expr)
	case BlockNode:
		add(d.Stmts...)
	case StructDeclNode:
		add(d.Fields...)
	case FuncDeclNode:
		add(d.Params...)
		add(d.Body)
	}
	return out
}

// Walk visits node and its descendants in pre-order
func Walk(node *Node, visitor func(n *Node)) {
	if node == nil {
		return
	}
	visitor(node)
	for _, c := range Children(node) {
		Walk(c, visitor)
	}
}

// OpSig is the declared operand and result type of an operator
type OpSig struct {
	Operand *types.Type
	Result  *types.Type
}

// UnaryOperators lists the prefix operators and their declared types
var UnaryOperators = map[token.Type]OpSig{
	token.Minus: {types.Integer, types.Integer},
	token.Not:   {types.Boolean, types.Boolean},
}

// BinaryOperators lists the infix operators and their declared types
var BinaryOperators = map[token.Type]OpSig{
	token.Plus:  {types.Integer, types.Integer},
	token.Minus: {types.Integer, types.Integer},
	token.Star:  {types.Integer, types.Integer},
	token.Slash: {types.Integer, types.Integer},
	token.Rem:   {types.Integer, types.Integer},
	token.And:   {types.Boolean, types.Boolean},
	token.Or:    {types.Boolean, types.Boolean},
	token.Eq:    {types.Integer, types.Boolean},
	token.Neq:   {types.Integer, types.Boolean},
	token.Lt:    {types.Integer, types.Boolean},
	token.Lte:   {types.Integer, types.Boolean},
	token.Gt:    {types.Integer, types.Boolean},
	token.Gte:   {types.Integer, types.Boolean},
}

// IsAddressable reports whether node denotes a storage location
func IsAddressable(node *Node) bool {
	if node == nil {
		return false
	}
	switch node.Type {
	case Ident:
		return true
	case MemberAccess:
		return IsAddressable(node.Data.(MemberAccessNode).Expr)
	case Subscript:
		return IsAddressable(node.Data.(SubscriptNode).Array)
	}
	return false
}
