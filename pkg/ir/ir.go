// Package ir models the P-machine instruction set and the append-only
// instruction stream the code generator writes into
package ir

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/xplshn/kaskell/pkg/ast"
)

type Op int

const (
	OpLdc Op = iota
	OpLda
	OpLod
	OpInd
	OpSto
	OpMovs
	OpInc
	OpIxa
	OpChk
	OpNeg
	OpNot
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd
	OpOr
	OpEqu
	OpNeq
	OpLes
	OpLeq
	OpGrt
	OpGeq
	OpUjp
	OpFjp
	OpMst
	OpCup
	OpSsp
	OpSep
	OpRetf
	OpStp
)

type opInfo struct {
	mnemonic string
	arity    int // number of operands
	effect   int // net change of the expression stack, cup is computed
}

var opTable = [...]opInfo{
	OpLdc:  {"ldc", 1, +1},
	OpLda:  {"lda", 2, +1},
	OpLod:  {"lod", 2, +1},
	OpInd:  {"ind", 0, 0},
	OpSto:  {"sto", 0, -2},
	OpMovs: {"movs", 1, -2},
	OpInc:  {"inc", 1, 0},
	OpIxa:  {"ixa", 1, -1},
	OpChk:  {"chk", 2, 0},
	OpNeg:  {"neg", 0, 0},
	OpNot:  {"not", 0, 0},
	OpAdd:  {"add", 0, -1},
	OpSub:  {"sub", 0, -1},
	OpMul:  {"mul", 0, -1},
	OpDiv:  {"div", 0, -1},
	OpMod:  {"mod", 0, -1},
	OpAnd:  {"and", 0, -1},
	OpOr:   {"or", 0, -1},
	OpEqu:  {"equ", 0, -1},
	OpNeq:  {"neq", 0, -1},
	OpLes:  {"les", 0, -1},
	OpLeq:  {"leq", 0, -1},
	OpGrt:  {"grt", 0, -1},
	OpGeq:  {"geq", 0, -1},
	OpUjp:  {"ujp", 1, 0},
	OpFjp:  {"fjp", 1, -1},
	OpMst:  {"mst", 1, +MarkSize},
	OpCup:  {"cup", 2, 0},
	OpSsp:  {"ssp", 1, 0},
	OpSep:  {"sep", 1, 0},
	OpRetf: {"retf", 0, 0},
	OpStp:  {"stp", 0, 0},
}

// MarkSize is the number of cells mst reserves for the callee's
// organizational part
const MarkSize = 5

func (op Op) String() string {
	if int(op) >= 0 && int(op) < len(opTable) {
		return opTable[op].mnemonic
	}
	return fmt.Sprintf("op(%d)", int(op))
}

var ErrUnresolved = errors.New("unresolved operand")

// Operand is an instruction argument. Some operands are only known once the
// whole stream exists (labels, function entries, stack extents), so they are
// rendered lazily.
type Operand interface {
	Render() (string, error)
}

// Int is an integer constant operand
type Int int64

func (i Int) Render() (string, error) { return strconv.FormatInt(int64(i), 10), nil }

// Lit is a literal rendered verbatim: true, false, 3.5, 'a'
type Lit string

func (l Lit) Render() (string, error) { return string(l), nil }

// Label is a code address bound with Stream.Bind
type Label struct {
	Name  string
	addr  int
	bound bool
}

func (l *Label) Render() (string, error) {
	if !l.bound {
		return "", fmt.Errorf("label %s: %w", l.Name, ErrUnresolved)
	}
	return strconv.Itoa(l.addr), nil
}

// FuncAddr is the entry address of a function body
type FuncAddr struct {
	Name string
	Tail *ast.FuncTail
}

func (f FuncAddr) Render() (string, error) {
	if f.Tail == nil {
		return "", fmt.Errorf("function %s has no body: %w", f.Name, ErrUnresolved)
	}
	addr, ok := f.Tail.Address()
	if !ok {
		return "", fmt.Errorf("function %s was never placed: %w", f.Name, ErrUnresolved)
	}
	return strconv.Itoa(addr), nil
}

// Extent is the maximum expression stack depth reached inside one frame
type Extent struct {
	max    int
	closed bool
}

func (e *Extent) Max() int { return e.max }

func (e *Extent) Render() (string, error) {
	if !e.closed {
		return "", fmt.Errorf("stack extent of an open frame: %w", ErrUnresolved)
	}
	return strconv.Itoa(e.max), nil
}

type Instruction struct {
	Op   Op
	Args []Operand
	Addr int
}

// Text renders the instruction without terminator or address
func (in *Instruction) Text() (string, error) {
	s := in.Op.String()
	for _, a := range in.Args {
		v, err := a.Render()
		if err != nil {
			return "", fmt.Errorf("%s at %d: %w", in.Op, in.Addr, err)
		}
		s += " " + v
	}
	return s, nil
}

// Effect is the net change the instruction makes to the expression stack
func (in *Instruction) Effect() int {
	if in.Op == OpCup {
		argc := 0
		if n, ok := in.Args[0].(Int); ok {
			argc = int(n)
		}
		return 1 - MarkSize - argc
	}
	return opTable[in.Op].effect
}
