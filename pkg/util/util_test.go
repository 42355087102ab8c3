package util

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/nalgeon/be"
	"github.com/xplshn/kaskell/pkg/config"
	"github.com/xplshn/kaskell/pkg/token"
)

func TestDiagnosticError(t *testing.T) {
	var ds Diagnostics
	ds.Errorf(CatArityMismatch, token.At(2, 6), "function '%s' expects %d arguments, got %d", "add", 2, 1)
	be.Equal(t, ds[0].Error(), "line 3 column 7: ArityMismatchError: function 'add' expects 2 arguments, got 1")
	be.Err(t, ds[0], ErrArityMismatch)
	be.True(t, !errors.Is(ds[0], ErrTypeMismatch))
}

func TestWarnings(t *testing.T) {
	cfg := config.NewConfig()
	var ds Diagnostics
	ds.Warnf(cfg, config.WarnShadow, token.At(0, 0), "hidden")
	be.Equal(t, len(ds), 0)

	ds.Warnf(cfg, config.WarnUnusedVar, token.At(0, 4), "variable '%s' declared but not used", "x")
	be.Equal(t, len(ds), 1)
	be.Equal(t, ds[0].Error(), "line 1 column 5: warning: variable 'x' declared but not used [-Wunused-var]")
	be.True(t, ds[0].Unwrap() == nil)
	be.True(t, !ds.HasErrors())
	be.True(t, ds.Err() == nil)

	ds.Warnf(nil, config.WarnUnusedVar, token.At(0, 0), "ignored")
	be.Equal(t, len(ds), 1)
}

func TestErrJoinsEveryError(t *testing.T) {
	var ds Diagnostics
	ds.Errorf(CatUndefinedIdentifier, token.At(0, 0), "a")
	ds.Warnf(config.NewConfig(), config.WarnExtra, token.At(0, 0), "b")
	ds.Errorf(CatStructural, token.At(1, 0), "c")

	be.True(t, ds.HasErrors())
	be.Equal(t, len(ds.Errors()), 2)
	err := ds.Err()
	be.Err(t, err, ErrUndefinedIdentifier)
	be.Err(t, err, ErrStructural)
	be.True(t, !errors.Is(err, ErrTypeMismatch))
}

func TestRenderer(t *testing.T) {
	r := &Renderer{Files: []SourceFileRecord{
		{Name: "prog.k", Content: []rune("block {\n  var x: Integer := y;\n}\n")},
	}}
	var ds Diagnostics
	tok := token.Token{FileIndex: 0, Line: 1, Column: 20, Len: 1}
	ds.Errorf(CatUndefinedIdentifier, tok, "undefined identifier '%s'", "y")
	ds.Warnf(config.NewConfig(), config.WarnUnusedVar, token.Token{FileIndex: 0, Line: 1, Column: 6, Len: 1}, "variable 'x' declared but not used")
	ds.Errorf(CatStructural, token.Token{FileIndex: -1}, "program has no top-level block")

	var buf bytes.Buffer
	be.Equal(t, r.RenderAll(&buf, ds), 2)
	lines := strings.Split(buf.String(), "\n")
	be.Equal(t, lines[0], "prog.k:2:21: error: undefined identifier 'y' [UndefinedIdentifierError]")
	be.Equal(t, lines[1], "    var x: Integer := y;")
	be.Equal(t, lines[2], "  "+strings.Repeat(" ", 20)+"^")
	be.Equal(t, lines[3], "prog.k:2:7: warning: variable 'x' declared but not used [-Wunused-var]")
	be.Equal(t, lines[6], "unknown:1:1: error: program has no top-level block [StructuralError]")
}

func TestCategoryString(t *testing.T) {
	be.Equal(t, CatTypeMismatch.String(), "TypeMismatchError")
	be.Equal(t, CatStructural.Sentinel(), ErrStructural)
}
