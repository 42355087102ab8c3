package token

import "fmt"

// Type is the kind of an operator token carried by unary and binary nodes
type Type int

const (
	Invalid Type = iota
	Plus
	Minus
	Star
	Slash
	Rem
	And
	Or
	Not
	Eq
	Neq
	Lt
	Lte
	Gt
	Gte
)

// OperatorMap maps the source spelling of every operator to its Type
var OperatorMap = map[string]Type{
	"+":   Plus,
	"-":   Minus,
	"*":   Star,
	"/":   Slash,
	"%":   Rem,
	"and": And,
	"or":  Or,
	"not": Not,
	"=":   Eq,
	"<>":  Neq,
	"<":   Lt,
	"<=":  Lte,
	">":   Gt,
	">=":  Gte,
}

// Reverse mapping from Type to the operator spelling
var TypeStrings = make(map[Type]string)

func init() {
	for str, typ := range OperatorMap {
		TypeStrings[typ] = str
	}
}

func (t Type) String() string {
	if s, ok := TypeStrings[t]; ok {
		return s
	}
	return fmt.Sprintf("op(%d)", int(t))
}

// Token is the source location attached to every node by the parser.
// Line and Column are 0-indexed; Display converts them for humans.
type Token struct {
	FileIndex int
	Line      int
	Column    int
	Len       int
}

// At builds a token for the first file
func At(line, column int) Token { return Token{Line: line, Column: column, Len: 1} }

// Display returns the 1-indexed line and column
func (t Token) Display() (line, column int) { return t.Line + 1, t.Column + 1 }

func (t Token) String() string {
	line, col := t.Display()
	return fmt.Sprintf("%d:%d", line, col)
}
