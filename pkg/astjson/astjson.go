// Package astjson decodes the JSON rendition of a parsed program, as
// produced by the external parser, into an ast.Program
package astjson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"fortio.org/safecast"
	"github.com/xplshn/kaskell/pkg/ast"
	"github.com/xplshn/kaskell/pkg/token"
	"github.com/xplshn/kaskell/pkg/types"
)

var ErrMalformed = errors.New("malformed program")

type document struct {
	Structs   []*node `json:"structs"`
	Functions []*node `json:"functions"`
	Blocks    []*node `json:"blocks"`
}

type node struct {
	Kind  string          `json:"kind"`
	Pos   []int64         `json:"pos"`
	Len   int64           `json:"len"`
	Value json.RawMessage `json:"value"`
	Name  string          `json:"name"`
	Field string          `json:"field"`
	Op    string          `json:"op"`
	Type  *typeRef        `json:"type"`

	Expr  *node `json:"expr"`
	Left  *node `json:"left"`
	Right *node `json:"right"`
	Array *node `json:"array"`
	Index *node `json:"index"`
	Init  *node `json:"init"`
	Lhs   *node `json:"lhs"`
	Rhs   *node `json:"rhs"`
	Cond  *node `json:"cond"`
	Then  *node `json:"then"`
	Else  *node `json:"else"`
	Body  *node `json:"body"`

	Args    []*node  `json:"args"`
	Stmts   []*node  `json:"stmts"`
	Fields  []*node  `json:"fields"`
	Params  []*node  `json:"params"`
	Returns *typeRef `json:"returns"`
}

type typeRef struct {
	Kind string   `json:"kind"`
	Name string   `json:"name"`
	Len  int64    `json:"len"`
	Elem *typeRef `json:"elem"`
}

// Decoder turns JSON documents into programs. FileIndex is stamped on every
// token so diagnostics can point back at the source file.
type Decoder struct {
	FileIndex int
}

func Decode(data []byte, fileIndex int) (*ast.Program, error) {
	return (&Decoder{FileIndex: fileIndex}).Decode(bytes.NewReader(data))
}

func DecodeFile(path string, fileIndex int) (*ast.Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	prog, err := (&Decoder{FileIndex: fileIndex}).Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return prog, nil
}

func (d *Decoder) Decode(r io.Reader) (*ast.Program, error) {
	var doc document
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	structs := make([]*ast.Node, 0, len(doc.Structs))
	for i, s := range doc.Structs {
		n, err := d.structDecl(s)
		if err != nil {
			return nil, fmt.Errorf("struct %d: %w", i, err)
		}
		structs = append(structs, n)
	}
	funcs := make([]*ast.Node, 0, len(doc.Functions))
	for i, f := range doc.Functions {
		n, err := d.funcDecl(f)
		if err != nil {
			return nil, fmt.Errorf("function %d: %w", i, err)
		}
		funcs = append(funcs, n)
	}
	blocks := make([]*ast.Node, 0, len(doc.Blocks))
	for i, b := range doc.Blocks {
		n, err := d.stmt(b)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		if n.Type != ast.Block {
			return nil, fmt.Errorf("block %d: %w: top-level entry is a %s", i, ErrMalformed, n.Type)
		}
		blocks = append(blocks, n)
	}
	return ast.NewProgram(structs, funcs, blocks), nil
}

func (d *Decoder) tok(n *node) (token.Token, error) {
	tok := token.Token{FileIndex: d.FileIndex}
	if len(n.Pos) == 0 {
		return tok, nil
	}
	if len(n.Pos) != 2 {
		return tok, fmt.Errorf("%w: %s: pos must be [line, column]", ErrMalformed, n.Kind)
	}
	line, err := safecast.Conv[uint32](n.Pos[0])
	if err != nil {
		return tok, fmt.Errorf("%w: %s: line %d: %w", ErrMalformed, n.Kind, n.Pos[0], err)
	}
	col, err := safecast.Conv[uint32](n.Pos[1])
	if err != nil {
		return tok, fmt.Errorf("%w: %s: column %d: %w", ErrMalformed, n.Kind, n.Pos[1], err)
	}
	length, err := safecast.Conv[uint16](n.Len)
	if err != nil {
		return tok, fmt.Errorf("%w: %s: length %d: %w", ErrMalformed, n.Kind, n.Len, err)
	}
	tok.Line, tok.Column, tok.Len = int(line), int(col), int(length)
	return tok, nil
}

func (d *Decoder) typ(t *typeRef) (*types.Type, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	switch t.Kind {
	case "Integer":
		return types.Integer, nil
	case "Boolean":
		return types.Boolean, nil
	case "Real":
		return types.Real, nil
	case "Char":
		return types.Char, nil
	case "Struct":
		if t.Name == "" {
			return nil, fmt.Errorf("%w: struct type without a name", ErrMalformed)
		}
		return types.Struct(t.Name), nil
	case "Array":
		n, err := safecast.Conv[int32](t.Len)
		if err != nil {
			return nil, fmt.Errorf("%w: array length %d: %w", ErrMalformed, t.Len, err)
		}
		elem, err := d.typ(t.Elem)
		if err != nil {
			return nil, err
		}
		return types.Array(elem, int(n)), nil
	default:
		return nil, fmt.Errorf("%w: unknown type kind '%s'", ErrMalformed, t.Kind)
	}
}

func (d *Decoder) varDecl(n *node, withInit bool) (*ast.Node, error) {
	tok, err := d.tok(n)
	if err != nil {
		return nil, err
	}
	if n.Name == "" {
		return nil, fmt.Errorf("%w: declaration at %s without a name", ErrMalformed, tok)
	}
	t, err := d.typ(n.Type)
	if err != nil {
		return nil, fmt.Errorf("'%s': %w", n.Name, err)
	}
	var init *ast.Node
	if n.Init != nil {
		if !withInit {
			return nil, fmt.Errorf("%w: '%s' at %s cannot have an initializer", ErrMalformed, n.Name, tok)
		}
		if init, err = d.expr(n.Init); err != nil {
			return nil, err
		}
	}
	return ast.NewVarDecl(tok, n.Name, t, init), nil
}

func (d *Decoder) structDecl(n *node) (*ast.Node, error) {
	if n.Kind != "struct" {
		return nil, fmt.Errorf("%w: expected struct, got '%s'", ErrMalformed, n.Kind)
	}
	tok, err := d.tok(n)
	if err != nil {
		return nil, err
	}
	fields := make([]*ast.Node, 0, len(n.Fields))
	for _, f := range n.Fields {
		fn, err := d.varDecl(f, false)
		if err != nil {
			return nil, err
		}
		fields = append(fields, fn)
	}
	return ast.NewStructDecl(tok, n.Name, fields), nil
}

func (d *Decoder) funcDecl(n *node) (*ast.Node, error) {
	if n.Kind != "func" {
		return nil, fmt.Errorf("%w: expected func, got '%s'", ErrMalformed, n.Kind)
	}
	tok, err := d.tok(n)
	if err != nil {
		return nil, err
	}
	params := make([]*ast.Node, 0, len(n.Params))
	for _, p := range n.Params {
		pn, err := d.varDecl(p, false)
		if err != nil {
			return nil, err
		}
		params = append(params, pn)
	}
	ret, err := d.typ(n.Returns)
	if err != nil {
		return nil, fmt.Errorf("return type of '%s': %w", n.Name, err)
	}
	if n.Body == nil {
		return nil, fmt.Errorf("%w: function '%s' has no body", ErrMalformed, n.Name)
	}
	body, err := d.stmt(n.Body)
	if err != nil {
		return nil, err
	}
	if body.Type != ast.Block {
		return nil, fmt.Errorf("%w: body of '%s' is a %s", ErrMalformed, n.Name, body.Type)
	}
	return ast.NewFuncDecl(tok, n.Name, params, ret, body), nil
}

func (d *Decoder) optStmt(n *node) (*ast.Node, error) {
	if n == nil {
		return nil, nil
	}
	return d.stmt(n)
}

func (d *Decoder) stmt(n *node) (*ast.Node, error) {
	if n == nil {
		return nil, fmt.Errorf("%w: missing statement", ErrMalformed)
	}
	tok, err := d.tok(n)
	if err != nil {
		return nil, err
	}
	switch n.Kind {
	case "block":
		stmts := make([]*ast.Node, 0, len(n.Stmts))
		for _, s := range n.Stmts {
			sn, err := d.stmt(s)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, sn)
		}
		return ast.NewBlock(tok, stmts), nil
	case "var":
		return d.varDecl(n, true)
	case "assign":
		lhs, err := d.expr(n.Lhs)
		if err != nil {
			return nil, err
		}
		rhs, err := d.expr(n.Rhs)
		if err != nil {
			return nil, err
		}
		return ast.NewAssign(tok, lhs, rhs), nil
	case "if":
		cond, err := d.expr(n.Cond)
		if err != nil {
			return nil, err
		}
		then, err := d.stmt(n.Then)
		if err != nil {
			return nil, err
		}
		els, err := d.optStmt(n.Else)
		if err != nil {
			return nil, err
		}
		return ast.NewIf(tok, cond, then, els), nil
	case "while":
		cond, err := d.expr(n.Cond)
		if err != nil {
			return nil, err
		}
		body, err := d.stmt(n.Body)
		if err != nil {
			return nil, err
		}
		return ast.NewWhile(tok, cond, body), nil
	case "return":
		var e *ast.Node
		if n.Expr != nil {
			if e, err = d.expr(n.Expr); err != nil {
				return nil, err
			}
		}
		return ast.NewReturn(tok, e), nil
	default:
		return nil, fmt.Errorf("%w: unknown statement kind '%s' at %s", ErrMalformed, n.Kind, tok)
	}
}

func (d *Decoder) expr(n *node) (*ast.Node, error) {
	if n == nil {
		return nil, fmt.Errorf("%w: missing expression", ErrMalformed)
	}
	tok, err := d.tok(n)
	if err != nil {
		return nil, err
	}
	switch n.Kind {
	case "int":
		var v int64
		if err := json.Unmarshal(n.Value, &v); err != nil {
			return nil, fmt.Errorf("%w: integer literal at %s: %w", ErrMalformed, tok, err)
		}
		w, err := safecast.Conv[int32](v)
		if err != nil {
			return nil, fmt.Errorf("%w: integer literal %d at %s: %w", ErrMalformed, v, tok, err)
		}
		return ast.NewNumber(tok, int64(w)), nil
	case "real":
		var v float64
		if err := json.Unmarshal(n.Value, &v); err != nil {
			return nil, fmt.Errorf("%w: real literal at %s: %w", ErrMalformed, tok, err)
		}
		return ast.NewRealNumber(tok, v), nil
	case "bool":
		var v bool
		if err := json.Unmarshal(n.Value, &v); err != nil {
			return nil, fmt.Errorf("%w: boolean literal at %s: %w", ErrMalformed, tok, err)
		}
		return ast.NewBool(tok, v), nil
	case "char":
		var v string
		if err := json.Unmarshal(n.Value, &v); err != nil {
			return nil, fmt.Errorf("%w: char literal at %s: %w", ErrMalformed, tok, err)
		}
		if utf8.RuneCountInString(v) != 1 {
			return nil, fmt.Errorf("%w: char literal at %s must hold exactly one character, got %q", ErrMalformed, tok, v)
		}
		r, _ := utf8.DecodeRuneInString(v)
		return ast.NewChar(tok, r), nil
	case "ident":
		return ast.NewIdent(tok, n.Name), nil
	case "field":
		base, err := d.expr(n.Expr)
		if err != nil {
			return nil, err
		}
		return ast.NewMemberAccess(tok, base, n.Field), nil
	case "index":
		arr, err := d.expr(n.Array)
		if err != nil {
			return nil, err
		}
		idx, err := d.expr(n.Index)
		if err != nil {
			return nil, err
		}
		return ast.NewSubscript(tok, arr, idx), nil
	case "unary":
		op, err := d.operator(n, tok)
		if err != nil {
			return nil, err
		}
		e, err := d.expr(n.Expr)
		if err != nil {
			return nil, err
		}
		return ast.NewUnaryOp(tok, op, e), nil
	case "binary":
		op, err := d.operator(n, tok)
		if err != nil {
			return nil, err
		}
		l, err := d.expr(n.Left)
		if err != nil {
			return nil, err
		}
		r, err := d.expr(n.Right)
		if err != nil {
			return nil, err
		}
		return ast.NewBinaryOp(tok, op, l, r), nil
	case "call":
		args := make([]*ast.Node, 0, len(n.Args))
		for _, a := range n.Args {
			an, err := d.expr(a)
			if err != nil {
				return nil, err
			}
			args = append(args, an)
		}
		return ast.NewFuncCall(tok, n.Name, args), nil
	default:
		return nil, fmt.Errorf("%w: unknown expression kind '%s' at %s", ErrMalformed, n.Kind, tok)
	}
}

func (d *Decoder) operator(n *node, tok token.Token) (token.Type, error) {
	op, ok := token.OperatorMap[n.Op]
	if !ok {
		return token.Invalid, fmt.Errorf("%w: unknown operator '%s' at %s", ErrMalformed, n.Op, tok)
	}
	return op, nil
}
