// Package types defines the structural type descriptors of the kaskell language
package types

import (
	"fmt"
	"math"
	"strings"
)

// MaxCells bounds the size of a single value and of an activation record
const MaxCells = math.MaxInt32

// Kind is the tag of a Type
type Kind int

const (
	INTEGER Kind = iota
	BOOLEAN
	REAL
	CHAR
	STRUCT
	ARRAY
)

var kindNames = [...]string{
	INTEGER: "Integer",
	BOOLEAN: "Boolean",
	REAL:    "Real",
	CHAR:    "Char",
	STRUCT:  "Struct",
	ARRAY:   "Array",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Type is an immutable type descriptor. Name and Fields are used by STRUCT,
// Elem and Len by ARRAY.
type Type struct {
	Kind   Kind
	Name   string
	Fields []Field
	Elem   *Type
	Len    int
}

// Field is a member of a struct descriptor
type Field struct {
	Name string
	Type *Type
}

// Pre-defined scalar types
var (
	Integer = &Type{Kind: INTEGER}
	Boolean = &Type{Kind: BOOLEAN}
	Real    = &Type{Kind: REAL}
	Char    = &Type{Kind: CHAR}
)

// Struct builds a struct descriptor. A descriptor with no fields is a bare
// reference by name, as produced by the parser for a use site.
func Struct(name string, fields ...Field) *Type {
	return &Type{Kind: STRUCT, Name: name, Fields: fields}
}

// Array builds an array of n elements of elem
func Array(elem *Type, n int) *Type {
	return &Type{Kind: ARRAY, Elem: elem, Len: n}
}

// Equal reports whether a and b are structurally equal: same tag and, for
// composite tags, equal payloads. Struct payload is the name.
func Equal(a, b *Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case STRUCT:
		return a.Name == b.Name
	case ARRAY:
		return a.Len == b.Len && Equal(a.Elem, b.Elem)
	default:
		return true
	}
}

// IsComposite reports whether values of t are passed and copied by address
func (t *Type) IsComposite() bool {
	return t != nil && (t.Kind == STRUCT || t.Kind == ARRAY)
}

// Size is the number of machine cells a value of t occupies. Callers keep
// descriptors within MaxCells, see FitsIn.
func (t *Type) Size() int {
	if t == nil {
		return 0
	}
	switch t.Kind {
	case STRUCT:
		size := 0
		for _, f := range t.Fields {
			size += f.Type.Size()
		}
		return size
	case ARRAY:
		return t.Len * t.Elem.Size()
	default:
		return 1
	}
}

// FitsIn reports whether a value of t occupies at most limit cells. It never
// computes a product that could overflow.
func (t *Type) FitsIn(limit int) bool {
	if t == nil {
		return true
	}
	switch t.Kind {
	case STRUCT:
		for _, f := range t.Fields {
			if !f.Type.FitsIn(limit) {
				return false
			}
			limit -= f.Type.Size()
		}
		return limit >= 0
	case ARRAY:
		if t.Len < 0 || !t.Elem.FitsIn(limit) {
			return false
		}
		elem := t.Elem.Size()
		return elem == 0 || t.Len <= limit/elem
	default:
		return limit >= 1
	}
}

// Lookup returns the named field and its cell offset inside the struct
func (t *Type) Lookup(name string) (Field, int, bool) {
	if t == nil || t.Kind != STRUCT {
		return Field{}, 0, false
	}
	offset := 0
	for _, f := range t.Fields {
		if f.Name == name {
			return f, offset, true
		}
		offset += f.Type.Size()
	}
	return Field{}, 0, false
}

func (t *Type) String() string {
	if t == nil {
		return "<unresolved>"
	}
	switch t.Kind {
	case STRUCT:
		return "Struct(" + t.Name + ")"
	case ARRAY:
		return fmt.Sprintf("Array[%d](%s)", t.Len, t.Elem)
	default:
		return t.Kind.String()
	}
}

// Describe renders a struct descriptor with its fields
func Describe(t *Type) string {
	if t == nil || t.Kind != STRUCT {
		return t.String()
	}
	var sb strings.Builder
	sb.WriteString("struct ")
	sb.WriteString(t.Name)
	sb.WriteString(" {")
	for i, f := range t.Fields {
		if i > 0 {
			sb.WriteString(";")
		}
		fmt.Fprintf(&sb, " %s: %s", f.Name, f.Type)
	}
	sb.WriteString(" }")
	return sb.String()
}
