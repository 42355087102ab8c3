// Package compiler drives a parsed program through resolution, type checking
// and code generation, stopping at the first phase that reports errors
package compiler

import (
	"errors"
	"fmt"

	"github.com/xplshn/kaskell/pkg/ast"
	"github.com/xplshn/kaskell/pkg/codegen"
	"github.com/xplshn/kaskell/pkg/config"
	"github.com/xplshn/kaskell/pkg/ir"
	"github.com/xplshn/kaskell/pkg/resolver"
	"github.com/xplshn/kaskell/pkg/typeChecker"
	"github.com/xplshn/kaskell/pkg/util"
)

var ErrFailed = errors.New("compilation failed")

type Pipeline struct {
	Cfg *config.Config
	// Logf, when set, receives one line per phase
	Logf func(format string, args ...interface{})
}

func New(cfg *config.Config) *Pipeline {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &Pipeline{Cfg: cfg}
}

func (p *Pipeline) logf(format string, args ...interface{}) {
	if p.Logf != nil {
		p.Logf(format, args...)
	}
}

// Compile runs every phase in order. The returned diagnostics include the
// warnings of every phase that ran; err wraps ErrFailed when a phase reported
// errors.
func (p *Pipeline) Compile(prog *ast.Program) (*ir.Stream, util.Diagnostics, error) {
	var all util.Diagnostics

	p.logf("Resolving identifiers...")
	ok, diags := resolver.Resolve(prog, p.Cfg)
	all = append(all, diags...)
	if !ok {
		return nil, all, fmt.Errorf("resolution: %w: %w", ErrFailed, diags.Err())
	}

	p.logf("Checking types...")
	ok, diags = typeChecker.Check(prog, p.Cfg)
	all = append(all, diags...)
	if !ok {
		return nil, all, fmt.Errorf("type checking: %w: %w", ErrFailed, diags.Err())
	}

	p.logf("Generating code...")
	stream, err := codegen.Generate(prog, p.Cfg)
	if err != nil {
		return nil, all, fmt.Errorf("code generation: %w", err)
	}
	p.logf("Generated %d instructions", stream.Len())
	return stream, all, nil
}
