package ir

import (
	"fmt"
	"io"
	"strings"

	"github.com/xplshn/kaskell/pkg/config"
)

// Item is either an instruction or a comment line
type Item struct {
	Instr   *Instruction
	Comment string
}

// Stream is an append-only sequence of instructions and comments. Code
// addresses count instructions only.
type Stream struct {
	items  []Item
	count  int
	depth  int
	extent *Extent
	labels int
}

func NewStream() *Stream { return &Stream{} }

// Emit appends an instruction and accounts for its stack effect
func (s *Stream) Emit(op Op, args ...Operand) *Instruction {
	if want := opTable[op].arity; len(args) != want {
		panic(fmt.Sprintf("ir: %s takes %d operands, got %d", op, want, len(args)))
	}
	in := &Instruction{Op: op, Args: args, Addr: s.count}
	s.items = append(s.items, Item{Instr: in})
	s.count++
	s.depth += in.Effect()
	if s.extent != nil && s.depth > s.extent.max {
		s.extent.max = s.depth
	}
	return in
}

// Comment appends a '{ ... }' annotation. It has no address and no effect.
func (s *Stream) Comment(format string, args ...interface{}) {
	s.items = append(s.items, Item{Comment: fmt.Sprintf(format, args...)})
}

// NewLabel makes a fresh, unbound label
func (s *Stream) NewLabel(prefix string) *Label {
	s.labels++
	return &Label{Name: fmt.Sprintf("%s%d", prefix, s.labels)}
}

// Bind places l at the address of the next instruction
func (s *Stream) Bind(l *Label) {
	if l.bound {
		panic("ir: label " + l.Name + " bound twice")
	}
	l.addr, l.bound = s.count, true
}

// Here is the address the next instruction will get
func (s *Stream) Here() int { return s.count }

// Depth is the current expression stack depth relative to the open frame
func (s *Stream) Depth() int { return s.depth }

// OpenFrame starts tracking the stack extent of a new activation record. The
// returned function closes it and restores the enclosing frame's tracking.
func (s *Stream) OpenFrame() (*Extent, func()) {
	outer, outerDepth := s.extent, s.depth
	e := &Extent{}
	s.extent, s.depth = e, 0
	return e, func() {
		e.closed = true
		s.extent, s.depth = outer, outerDepth
	}
}

func (s *Stream) Items() []Item { return s.items }

// Len is the number of instructions, comments excluded
func (s *Stream) Len() int { return s.count }

// Instructions renders every instruction as bare text, in order
func (s *Stream) Instructions() ([]string, error) {
	out := make([]string, 0, s.count)
	for _, it := range s.items {
		if it.Instr == nil {
			continue
		}
		text, err := it.Instr.Text()
		if err != nil {
			return nil, err
		}
		out = append(out, text)
	}
	return out, nil
}

// Render writes the stream one line per item, formatted according to the
// dialect features in cfg
func (s *Stream) Render(w io.Writer, cfg *config.Config) error {
	comments := cfg.IsFeatureEnabled(config.FeatComments)
	semicolons := cfg.IsFeatureEnabled(config.FeatSemicolons)
	addresses := cfg.IsFeatureEnabled(config.FeatAddresses)

	var sb strings.Builder
	for _, it := range s.items {
		sb.Reset()
		if it.Instr == nil {
			if !comments {
				continue
			}
			sb.WriteString("{ ")
			sb.WriteString(it.Comment)
			sb.WriteString(" }")
		} else {
			text, err := it.Instr.Text()
			if err != nil {
				return err
			}
			if addresses {
				fmt.Fprintf(&sb, "%d: ", it.Instr.Addr)
			}
			sb.WriteString(text)
			if semicolons {
				sb.WriteByte(';')
			}
		}
		sb.WriteByte('\n')
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return fmt.Errorf("writing instruction stream: %w", err)
		}
	}
	return nil
}
