// Package ast defines the types used to represent the Abstract Syntax Tree (AST)
// handed over by the parser, plus the annotations the compiler phases write onto it
package ast

import (
	"github.com/xplshn/kaskell/pkg/token"
	"github.com/xplshn/kaskell/pkg/types"
)

// NodeType defines the kind of a node in the AST
type NodeType int

// Node types enum
const (
	// Expressions
	Number NodeType = iota
	RealNumber
	Bool
	Char
	Ident
	MemberAccess
	Subscript
	UnaryOp
	BinaryOp
	FuncCall

	// Statements
	VarDecl
	Assign
	If
	While
	Return
	Block

	// Declarations
	StructDecl
	FuncDecl
)

var nodeTypeNames = [...]string{
	Number: "Number", RealNumber: "RealNumber", Bool: "Bool", Char: "Char", Ident: "Ident",
	MemberAccess: "MemberAccess", Subscript: "Subscript", UnaryOp: "UnaryOp", BinaryOp: "BinaryOp",
	FuncCall: "FuncCall", VarDecl: "VarDecl", Assign: "Assign", If: "If", While: "While",
	Return: "Return", Block: "Block", StructDecl: "StructDecl", FuncDecl: "FuncDecl",
}

func (t NodeType) String() string {
	if int(t) >= 0 && int(t) < len(nodeTypeNames) {
		return nodeTypeNames[t]
	}
	return "Unknown"
}

// Address locates a variable inside an activation record. Level is the number
// of frames between the use site and the declaring frame.
type Address struct {
	Level  int
	Offset int
	ByRef  bool
}

// Node represents a node in the Abstract Syntax Tree
type Node struct {
	Type   NodeType
	Tok    token.Token
	Parent *Node
	Data   interface{}

	// Set by the resolver (Typ is completed by the type checker for
	// member access and subscripts)
	Typ       *types.Type
	Delta     int
	Addr      Address
	FrameSize int

	// Set by SetEnclosingFunc: the FuncDecl whose body contains this node
	Func *Node
}

// Pos returns the 0-indexed line and column of the node
func (n *Node) Pos() (line, column int) { return n.Tok.Line, n.Tok.Column }

// InsideFunc reports whether the node lies lexically inside a function body
func (n *Node) InsideFunc() bool { return n.Func != nil }

// Signature is the head of a function: what callers need to know
type Signature struct {
	Name   string
	Params []*types.Type
	Return *types.Type
}

// FuncTail is the body of a function together with its entry address in the
// instruction stream. The address is assigned once, by the code generator.
type FuncTail struct {
	Body    *Node
	address int
	placed  bool
}

// SetAddress records the entry address. Placing the same function at a
// different address is a compiler bug.
func (t *FuncTail) SetAddress(addr int) {
	if t.placed && t.address != addr {
		panic("ast: function entry address assigned twice")
	}
	t.address, t.placed = addr, true
}

// Address returns the entry address and whether it has been assigned yet
func (t *FuncTail) Address() (int, bool) { return t.address, t.placed }

// --- Node Data Structs ---
type NumberNode struct{ Value int64 }
type RealNumberNode struct{ Value float64 }
type BoolNode struct{ Value bool }
type CharNode struct{ Value rune }
type IdentNode struct{ Name string }
type MemberAccessNode struct {
	Expr   *Node
	Field  string
	Offset int // set by the type checker
}
type SubscriptNode struct{ Array, Index *Node }
type UnaryOpNode struct {
	Op   token.Type
	Expr *Node
}
type BinaryOpNode struct {
	Op          token.Type
	Left, Right *Node
}
type FuncCallNode struct {
	Name string
	Args []*Node

	// Cached by the resolver; later phases never query the symbol table
	Params []*types.Type
	Return *types.Type
	Tail   *FuncTail
}
type VarDeclNode struct {
	Name string
	Type *types.Type
	Init *Node
}
type AssignNode struct{ Lhs, Rhs *Node }
type IfNode struct{ Cond, ThenBody, ElseBody *Node }
type WhileNode struct{ Cond, Body *Node }
type ReturnNode struct{ Expr *Node }
type BlockNode struct{ Stmts []*Node }
type StructDeclNode struct {
	Name   string
	Fields []*Node // VarDecl nodes without initializers
}
type FuncDeclNode struct {
	Name       string
	Params     []*Node // VarDecl nodes without initializers
	ReturnType *types.Type
	Body       *Node

	Sig  *Signature // built by the resolver
	Tail *FuncTail
}

// --- Node Constructors ---

func newNode(tok token.Token, nodeType NodeType, data interface{}, children ...*Node) *Node {
	node := &Node{Type: nodeType, Tok: tok, Data: data}
	for _, child := range children {
		if child != nil {
			child.Parent = node
		}
	}
	return node
}

func NewNumber(tok token.Token, value int64) *Node {
	return newNode(tok, Number, NumberNode{Value: value})
}
func NewRealNumber(tok token.Token, value float64) *Node {
	return newNode(tok, RealNumber, RealNumberNode{Value: value})
}
func NewBool(tok token.Token, value bool) *Node {
	return newNode(tok, Bool, BoolNode{Value: value})
}
func NewChar(tok token.Token, value rune) *Node {
	return newNode(tok, Char, CharNode{Value: value})
}
func NewIdent(tok token.Token, name string) *Node {
	return newNode(tok, Ident, IdentNode{Name: name})
}
func NewMemberAccess(tok token.Token, expr *Node, field string) *Node {
	return newNode(tok, MemberAccess, MemberAccessNode{Expr: expr, Field: field}, expr)
}
func NewSubscript(tok token.Token, array, index *Node) *Node {
	return newNode(tok, Subscript, SubscriptNode{Array: array, Index: index}, array, index)
}
func NewUnaryOp(tok token.Token, op token.Type, expr *Node) *Node {
	return newNode(tok, UnaryOp, UnaryOpNode{Op: op, Expr: expr}, expr)
}
func NewBinaryOp(tok token.Token, op token.Type, left, right *Node) *Node {
	return newNode(tok, BinaryOp, BinaryOpNode{Op: op, Left: left, Right: right}, left, right)
}
func NewFuncCall(tok token.Token, name string, args []*Node) *Node {
	return newNode(tok, FuncCall, FuncCallNode{Name: name, Args: args}, args...)
}
func NewVarDecl(tok token.Token, name string, typ *types.Type, init *Node) *Node {
	return newNode(tok, VarDecl, VarDeclNode{Name: name, Type: typ, Init: init}, init)
}
func NewAssign(tok token.Token, lhs, rhs *Node) *Node {
	return newNode(tok, Assign, AssignNode{Lhs: lhs, Rhs: rhs}, lhs, rhs)
}
func NewIf(tok token.Token, cond, thenBody, elseBody *Node) *Node {
	return newNode(tok, If, IfNode{Cond: cond, ThenBody: thenBody, ElseBody: elseBody}, cond, thenBody, elseBody)
}
func NewWhile(tok token.Token, cond, body *Node) *Node {
	return newNode(tok, While, WhileNode{Cond: cond, Body: body}, cond, body)
}
func NewReturn(tok token.Token, expr *Node) *Node {
	return newNode(tok, Return, ReturnNode{Expr: expr}, expr)
}
func NewBlock(tok token.Token, stmts []*Node) *Node {
	return newNode(tok, Block, BlockNode{Stmts: stmts}, stmts...)
}
func NewStructDecl(tok token.Token, name string, fields []*Node) *Node {
	return newNode(tok, StructDecl, StructDeclNode{Name: name, Fields: fields}, fields...)
}
func NewFuncDecl(tok token.Token, name string, params []*Node, returnType *types.Type, body *Node) *Node {
	node := newNode(tok, FuncDecl, FuncDeclNode{
		Name: name, Params: params, ReturnType: returnType, Body: body,
		Tail: &FuncTail{Body: body},
	}, body)
	for _, p := range params {
		p.Parent = node
	}
	return node
}
