package util

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xplshn/kaskell/pkg/config"
	"github.com/xplshn/kaskell/pkg/token"
	"golang.org/x/term"
)

// Category classifies a compile-time error
type Category int

const (
	CatUndefinedIdentifier Category = iota
	CatArityMismatch
	CatTypeMismatch
	CatStructural
)

var (
	ErrUndefinedIdentifier = errors.New("UndefinedIdentifierError")
	ErrArityMismatch       = errors.New("ArityMismatchError")
	ErrTypeMismatch        = errors.New("TypeMismatchError")
	ErrStructural          = errors.New("StructuralError")
)

func (c Category) Sentinel() error {
	switch c {
	case CatUndefinedIdentifier:
		return ErrUndefinedIdentifier
	case CatArityMismatch:
		return ErrArityMismatch
	case CatTypeMismatch:
		return ErrTypeMismatch
	default:
		return ErrStructural
	}
}

func (c Category) String() string { return c.Sentinel().Error() }

type Severity int

const (
	SevError Severity = iota
	SevWarning
)

// Diagnostic is one finding of a compiler phase, positioned at the node
// where it was detected
type Diagnostic struct {
	Severity Severity
	Category Category
	Flag     string // warning name, for SevWarning
	Tok      token.Token
	Msg      string
}

func (d *Diagnostic) Error() string {
	line, col := d.Tok.Display()
	if d.Severity == SevWarning {
		return fmt.Sprintf("line %d column %d: warning: %s [-W%s]", line, col, d.Msg, d.Flag)
	}
	return fmt.Sprintf("line %d column %d: %s: %s", line, col, d.Category, d.Msg)
}

func (d *Diagnostic) Unwrap() error {
	if d.Severity == SevWarning {
		return nil
	}
	return d.Category.Sentinel()
}

// Diagnostics collects the findings of one or more phases in detection order
type Diagnostics []*Diagnostic

// Errorf records an error of the given category
func (ds *Diagnostics) Errorf(cat Category, tok token.Token, format string, args ...interface{}) {
	*ds = append(*ds, &Diagnostic{Severity: SevError, Category: cat, Tok: tok, Msg: fmt.Sprintf(format, args...)})
}

// Warnf records a warning if the corresponding warning is enabled
func (ds *Diagnostics) Warnf(cfg *config.Config, wt config.Warning, tok token.Token, format string, args ...interface{}) {
	if cfg == nil || !cfg.IsWarningEnabled(wt) {
		return
	}
	*ds = append(*ds, &Diagnostic{Severity: SevWarning, Flag: cfg.Warnings[wt].Name, Tok: tok, Msg: fmt.Sprintf(format, args...)})
}

func (ds Diagnostics) HasErrors() bool {
	for _, d := range ds {
		if d.Severity == SevError {
			return true
		}
	}
	return false
}

// Errors returns only the error diagnostics
func (ds Diagnostics) Errors() Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Severity == SevError {
			out = append(out, d)
		}
	}
	return out
}

// Err joins every error diagnostic, or returns nil when there are none
func (ds Diagnostics) Err() error {
	var errs []error
	for _, d := range ds.Errors() {
		errs = append(errs, d)
	}
	return errors.Join(errs...)
}

// SourceFileRecord tracks the name and content of a single source file
type SourceFileRecord struct {
	Name    string
	Content []rune
}

// Renderer prints diagnostics for humans: file:line:col, the offending line
// and a caret under the reported column
type Renderer struct {
	Files []SourceFileRecord
	Color bool
}

// NewRenderer enables colour only when stderr is a terminal
func NewRenderer(files []SourceFileRecord) *Renderer {
	return &Renderer{Files: files, Color: term.IsTerminal(int(os.Stderr.Fd()))}
}

func (r *Renderer) paint(code, s string) string {
	if !r.Color {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

func (r *Renderer) fileName(tok token.Token) string {
	if tok.FileIndex < 0 || tok.FileIndex >= len(r.Files) {
		return "unknown"
	}
	return r.Files[tok.FileIndex].Name
}

// Render writes one diagnostic
func (r *Renderer) Render(w io.Writer, d *Diagnostic) {
	line, col := d.Tok.Display()
	fmt.Fprintf(w, "%s:%d:%d: ", r.fileName(d.Tok), line, col)
	if d.Severity == SevWarning {
		fmt.Fprintf(w, "%s %s [-W%s]\n", r.paint("33", "warning:"), d.Msg, d.Flag)
	} else {
		fmt.Fprintf(w, "%s %s [%s]\n", r.paint("31", "error:"), d.Msg, d.Category)
	}
	r.printErrorLine(w, d.Tok)
}

// RenderAll writes every diagnostic and returns the number of errors
func (r *Renderer) RenderAll(w io.Writer, ds Diagnostics) int {
	errs := 0
	for _, d := range ds {
		r.Render(w, d)
		if d.Severity == SevError {
			errs++
		}
	}
	return errs
}

// printErrorLine prints the source line and a caret indicating the position
func (r *Renderer) printErrorLine(w io.Writer, tok token.Token) {
	if tok.FileIndex < 0 || tok.FileIndex >= len(r.Files) {
		return
	}

	content := r.Files[tok.FileIndex].Content
	lineNum := tok.Line
	lineStart := 0
	for i, c := range content {
		if lineNum == 0 {
			break
		}
		if c == '\n' {
			lineNum--
			lineStart = i + 1
		}
	}
	if lineNum != 0 {
		return
	}

	lineEnd := len(content)
	for i := lineStart; i < len(content); i++ {
		if content[i] == '\n' {
			lineEnd = i
			break
		}
	}

	fmt.Fprintf(w, "  %s\n", string(content[lineStart:lineEnd]))
	caret := "^"
	if tok.Len > 1 {
		caret += strings.Repeat("~", tok.Len-1)
	}
	fmt.Fprintf(w, "  %s%s\n", strings.Repeat(" ", tok.Column), r.paint("32", caret))
}
