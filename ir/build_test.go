package ir_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lcc-go/lcc/cc"
	"github.com/lcc-go/lcc/ir"
	"github.com/lcc-go/lcc/target"
	"github.com/lcc-go/lcc/types"
)

func newModule(t *testing.T) (*cc.Context, *ir.Module) {
	t.Helper()
	tgt := target.Default()
	cctx := cc.NewContext(tgt)
	return cctx, ir.NewModule(cctx)
}

// buildAdd builds `func add(a, b i64) i64 { return a + b }`, one block, no
// control flow -- the smallest function that exercises operand use-lists.
func buildAdd(cctx *cc.Context, m *ir.Module) *ir.Function {
	i64 := cctx.Types.Integer(64)
	fnType := cctx.Types.Function(i64, []*types.Type{i64, i64}, false, target.ConvC)
	f := m.NewFunction("add", fnType, ir.External)

	entry := f.NewBlock("entry")
	sum := entry.NewAdd(f.Params()[0], f.Params()[1], cc.Loc{})
	entry.NewReturn(sum, cc.Loc{})

	return f
}

func TestBuildAddVerifies(t *testing.T) {
	cctx, m := newModule(t)
	f := buildAdd(cctx, m)

	require.NoError(t, ir.Verify(f))
	require.Len(t, f.Blocks(), 1)
	require.Len(t, f.Params(), 2)

	sum := f.Entry().Instructions()[0]
	require.Equal(t, ir.Add, sum.Kind())
	require.ElementsMatch(t, []*ir.Instruction{f.Params()[0], f.Params()[1]}, sum.Operands())

	// Invariant 1 (spec.md §3.3, §8): every operand's use-list contains
	// the instruction that uses it.
	require.Contains(t, f.Params()[0].Uses(), sum)
	require.Contains(t, f.Params()[1].Uses(), sum)
}

func TestEraseRemovesFromUseLists(t *testing.T) {
	cctx, m := newModule(t)
	f := buildAdd(cctx, m)
	insts := f.Entry().Instructions()
	sum, ret := insts[0], insts[1]
	a := f.Params()[0]

	// ret must go first: Erase requires an empty use-list, and ret is the
	// only user of sum.
	ret.Erase()
	sum.Erase()

	require.NotContains(t, a.Uses(), sum)
}
