package object_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lcc-go/lcc/object"
)

// TestFindSymbolCreatesUndefinedThenDefines covers the common ordering
// spec.md §4.7 describes: a call site references a symbol (via
// FindSymbol) before that symbol's definition is reached, and the
// resulting index refers to the same Symbol once it is defined.
func TestFindSymbolCreatesUndefinedThenDefines(t *testing.T) {
	o := object.New()

	idx := o.FindSymbol("callee", object.GlobalBinding)
	require.False(t, o.Symbol(idx).Defined)
	require.Equal(t, -1, o.Symbol(idx).Section)

	again := o.FindSymbol("callee", object.GlobalBinding)
	require.Equal(t, idx, again, "FindSymbol must not duplicate an existing symbol")

	text := o.AddSection(".text", object.Text, 16)
	o.DefineSymbol(idx, text, 0, 8)

	require.True(t, o.Symbol(idx).Defined)
	require.Equal(t, text, o.Symbol(idx).Section)
	require.EqualValues(t, 8, o.Symbol(idx).Size)
}

// TestSectionAppendTracksSizeAndOffset covers the Section.Append
// accounting relocations are computed against.
func TestSectionAppendTracksSizeAndOffset(t *testing.T) {
	o := object.New()
	text := o.Section(o.AddSection(".text", object.Text, 16))

	off1 := text.Append([]byte{0x90, 0x90})
	off2 := text.Append([]byte{0xC3})

	require.EqualValues(t, 0, off1)
	require.EqualValues(t, 2, off2)
	require.EqualValues(t, 3, text.Size)
	require.Len(t, text.Data, 3)
}

// TestAddRelocationRecordsAgainstSymbol covers spec.md §6's relocation
// model: a PC32 fixup recorded at a section offset against a symbol
// index, ready for an emit writer to translate into its own relocation
// type (R_X86_64_PC32 / IMAGE_REL_AMD64_REL32).
func TestAddRelocationRecordsAgainstSymbol(t *testing.T) {
	o := object.New()
	text := o.AddSection(".text", object.Text, 16)
	callee := o.FindSymbol("callee", object.GlobalBinding)

	o.AddRelocation(text, 4, callee, object.PC32, -4)

	require.Len(t, o.Relocations, 1)
	rel := o.Relocations[0]
	require.Equal(t, text, rel.Section)
	require.EqualValues(t, 4, rel.Offset)
	require.Equal(t, callee, rel.Symbol)
	require.Equal(t, object.PC32, rel.Kind)
	require.EqualValues(t, -4, rel.Addend)
}
