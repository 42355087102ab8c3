// Package symtab implements the nested-scope symbol table used during
// identifier resolution
package symtab

import (
	"github.com/xplshn/kaskell/pkg/ast"
	"github.com/xplshn/kaskell/pkg/types"
)

// FrameHeader is the number of organizational cells at the start of every
// activation record: return value, static link, dynamic link, extreme stack
// pointer and return address. Parameters start right after it.
const FrameHeader = 5

type EntityKind int

const (
	EntVar EntityKind = iota
	EntFunc
	EntStruct
)

func (k EntityKind) String() string {
	switch k {
	case EntVar:
		return "variable"
	case EntFunc:
		return "function"
	case EntStruct:
		return "struct"
	}
	return "entity"
}

// Entity is what a name is bound to. A single lookup hands out everything a
// use site may need: variable address, function signature and body, or struct
// descriptor.
type Entity struct {
	Kind EntityKind
	Name string
	Node *ast.Node   // declaring node
	Type *types.Type // variable type, struct descriptor or function return type

	// Variables
	Frame  int // frame level of the declaring activation record
	Offset int
	ByRef  bool

	// Functions
	Sig  *ast.Signature
	Tail *ast.FuncTail

	Depth int // scope depth the entity was inserted at
	Uses  int
}

type frame struct {
	level int
	next  int
	size  int
}

type scope struct {
	names  map[string]*Entity
	order  []*Entity
	frame  *frame
	opened bool // this scope opened frame
}

// Table is an ordered stack of scopes. The zero value is not usable; call New.
type Table struct {
	scopes []*scope
	frames int
}

func New() *Table { return &Table{} }

func (t *Table) push(f *frame, opened bool) {
	t.scopes = append(t.scopes, &scope{names: make(map[string]*Entity), frame: f, opened: opened})
}

func (t *Table) current() *scope {
	if len(t.scopes) == 0 {
		panic("symtab: no open scope")
	}
	return t.scopes[len(t.scopes)-1]
}

// StartBlock opens a scope that shares the enclosing activation record
func (t *Table) StartBlock() {
	var f *frame
	if len(t.scopes) > 0 {
		f = t.current().frame
	}
	t.push(f, false)
}

// StartFrame opens a scope that also starts a new activation record
func (t *Table) StartFrame() {
	t.frames++
	t.push(&frame{level: t.frames, next: FrameHeader, size: FrameHeader}, true)
}

// CloseBlock discards the innermost scope and all of its bindings. It returns
// the discarded entities in insertion order.
func (t *Table) CloseBlock() []*Entity {
	s := t.current()
	t.scopes = t.scopes[:len(t.scopes)-1]
	if s.opened {
		t.frames--
	}
	return s.order
}

// CurrentDepth is the number of open scopes
func (t *Table) CurrentDepth() int { return len(t.scopes) }

// FrameLevel is the nesting level of the current activation record, 0 when
// no frame is open
func (t *Table) FrameLevel() int {
	if len(t.scopes) == 0 || t.current().frame == nil {
		return 0
	}
	return t.current().frame.level
}

// FrameSize is the number of cells the current activation record needs so far
func (t *Table) FrameSize() int {
	if len(t.scopes) == 0 || t.current().frame == nil {
		return 0
	}
	return t.current().frame.size
}

// InsertIdentifier binds name in the current scope. It fails only if name is
// already bound in that same scope.
func (t *Table) InsertIdentifier(name string, e *Entity) bool {
	s := t.current()
	if _, exists := s.names[name]; exists {
		return false
	}
	e.Name, e.Depth = name, len(t.scopes)
	s.names[name] = e
	s.order = append(s.order, e)
	return true
}

// InsertVariable binds a variable and allocates its cells in the current
// activation record. By-reference variables take a single cell.
func (t *Table) InsertVariable(name string, typ *types.Type, byRef bool, node *ast.Node) (*Entity, bool) {
	s := t.current()
	if s.frame == nil {
		panic("symtab: variable declared outside of an activation record")
	}
	e := &Entity{Kind: EntVar, Type: typ, ByRef: byRef, Node: node}
	if !t.InsertIdentifier(name, e) {
		return s.names[name], false
	}
	size := 1
	if !byRef {
		size = typ.Size()
	}
	e.Frame, e.Offset = s.frame.level, s.frame.next
	s.frame.next += size
	if s.frame.next > s.frame.size {
		s.frame.size = s.frame.next
	}
	return e, true
}

// Lookup searches the scopes innermost to outermost
func (t *Table) Lookup(name string) (*Entity, bool) {
	for i := len(t.scopes) - 1; i >= 0; i-- {
		if e, ok := t.scopes[i].names[name]; ok {
			return e, true
		}
	}
	return nil, false
}

// LookupCurrent searches the innermost scope only
func (t *Table) LookupCurrent(name string) (*Entity, bool) {
	if len(t.scopes) == 0 {
		return nil, false
	}
	e, ok := t.current().names[name]
	return e, ok
}
