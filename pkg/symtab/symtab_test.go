package symtab

import (
	"testing"

	"github.com/nalgeon/be"
	"github.com/xplshn/kaskell/pkg/types"
)

func TestShadowing(t *testing.T) {
	tab := New()
	tab.StartFrame()
	outer, ok := tab.InsertVariable("x", types.Integer, false, nil)
	be.True(t, ok)

	tab.StartBlock()
	inner, ok := tab.InsertVariable("x", types.Boolean, false, nil)
	be.True(t, ok)

	got, found := tab.Lookup("x")
	be.True(t, found)
	be.True(t, got == inner)
	be.Equal(t, got.Depth, 2)

	discarded := tab.CloseBlock()
	be.Equal(t, len(discarded), 1)

	got, found = tab.Lookup("x")
	be.True(t, found)
	be.True(t, got == outer)
	be.Equal(t, tab.CurrentDepth(), 1)
}

func TestInsertIdentifierSameScope(t *testing.T) {
	tab := New()
	tab.StartBlock()
	be.True(t, tab.InsertIdentifier("f", &Entity{Kind: EntFunc}))
	be.True(t, !tab.InsertIdentifier("f", &Entity{Kind: EntFunc}))

	tab.StartBlock()
	be.True(t, tab.InsertIdentifier("f", &Entity{Kind: EntVar}))
	_, ok := tab.LookupCurrent("f")
	be.True(t, ok)
	tab.CloseBlock()
	tab.CloseBlock()

	_, ok = tab.Lookup("f")
	be.True(t, !ok)
}

func TestFrameAllocation(t *testing.T) {
	point := types.Struct("P", types.Field{Name: "x", Type: types.Integer}, types.Field{Name: "y", Type: types.Integer})

	tab := New()
	tab.StartBlock() // structs
	tab.StartBlock() // functions
	be.Equal(t, tab.FrameLevel(), 0)

	tab.StartFrame()
	be.Equal(t, tab.FrameLevel(), 1)
	be.Equal(t, tab.FrameSize(), FrameHeader)

	p, _ := tab.InsertVariable("p", point, true, nil)
	n, _ := tab.InsertVariable("n", types.Integer, false, nil)
	be.Equal(t, p.Offset, FrameHeader)
	be.Equal(t, n.Offset, FrameHeader+1)

	tab.StartBlock()
	be.Equal(t, tab.FrameLevel(), 1)
	q, _ := tab.InsertVariable("q", point, false, nil)
	arr, _ := tab.InsertVariable("a", types.Array(types.Integer, 3), false, nil)
	be.Equal(t, q.Offset, FrameHeader+2)
	be.Equal(t, arr.Offset, FrameHeader+4)
	be.Equal(t, tab.FrameSize(), FrameHeader+7)
	be.Equal(t, q.Frame, 1)
	tab.CloseBlock()

	be.Equal(t, tab.FrameSize(), FrameHeader+7)
	tab.CloseBlock()
	be.Equal(t, tab.FrameLevel(), 0)
}
