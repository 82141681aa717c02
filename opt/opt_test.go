package opt_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lcc-go/lcc/cc"
	"github.com/lcc-go/lcc/ir"
	"github.com/lcc-go/lcc/opt"
	"github.com/lcc-go/lcc/target"
)

func newModule() (*cc.Context, *ir.Module) {
	tgt := target.Default()
	cctx := cc.NewContext(tgt)
	return cctx, ir.NewModule(cctx)
}

// TestInstCombineFoldsConstants covers spec.md §8 invariant 5: constant
// folding of `2 + 3` collapses to a single IntegerConstant instruction
// holding 5.
func TestInstCombineFoldsConstants(t *testing.T) {
	cctx, m := newModule()
	i64 := cctx.Types.Integer(64)
	fnType := cctx.Types.Function(i64, nil, false, target.ConvC)
	f := m.NewFunction("k", fnType, ir.External)

	entry := f.NewBlock("entry")
	a := entry.NewIntegerConstant(i64, 2, cc.Loc{})
	b := entry.NewIntegerConstant(i64, 3, cc.Loc{})
	sum := entry.NewAdd(a, b, cc.Loc{})
	entry.NewReturn(sum, cc.Loc{})

	changed := opt.InstCombine(f)

	require.True(t, changed)
	require.Equal(t, ir.IntegerConstant, sum.Kind())
	require.EqualValues(t, 5, sum.Imm())
}

// TestDCERemovesDeadConstant covers spec.md §4.2.2: an instruction with an
// empty use-list and no side effects is deleted.
func TestDCERemovesDeadConstant(t *testing.T) {
	cctx, m := newModule()
	i64 := cctx.Types.Integer(64)
	fnType := cctx.Types.Function(i64, nil, false, target.ConvC)
	f := m.NewFunction("k", fnType, ir.External)

	entry := f.NewBlock("entry")
	dead := entry.NewIntegerConstant(i64, 7, cc.Loc{})
	live := entry.NewIntegerConstant(i64, 9, cc.Loc{})
	entry.NewReturn(live, cc.Loc{})
	_ = dead

	changed := opt.DCE(f)

	require.True(t, changed)
	require.Len(t, entry.Instructions(), 2) // live const + return
	require.NoError(t, ir.Verify(f))
}

// TestMem2RegPromotesAlloca covers spec.md §8 invariant 4: a store then a
// load of the same Alloca, with no intervening aliasing store, becomes a
// direct use of the stored value once Mem2Reg runs.
func TestMem2RegPromotesAlloca(t *testing.T) {
	cctx, m := newModule()
	i64 := cctx.Types.Integer(64)
	fnType := cctx.Types.Function(i64, nil, false, target.ConvC)
	f := m.NewFunction("k", fnType, ir.External)

	entry := f.NewBlock("entry")
	slot := entry.NewAlloca(i64, cc.Loc{})
	val := entry.NewIntegerConstant(i64, 42, cc.Loc{})
	entry.NewStore(val, slot, cc.Loc{})
	loaded := entry.NewLoad(i64, slot, cc.Loc{})
	entry.NewReturn(loaded, cc.Loc{})

	changed := opt.Mem2Reg(f)

	require.True(t, changed)
	require.NoError(t, ir.Verify(f))

	ret := f.Entry().Terminator()
	require.Len(t, ret.Operands(), 1)
	require.Equal(t, ir.IntegerConstant, ret.Operands()[0].Kind())
	require.EqualValues(t, 42, ret.Operands()[0].Imm())
}

// TestReachabilityDropsUnreferencedFunction covers the reachability sweep
// Run's final stage performs (spec.md §4.1): a function never called from
// the entry point and never otherwise referenced is deleted from the
// module.
func TestReachabilityDropsUnreferencedFunction(t *testing.T) {
	cctx, m := newModule()
	i64 := cctx.Types.Integer(64)
	fnType := cctx.Types.Function(i64, nil, false, target.ConvC)

	main := m.NewFunction("main", fnType, ir.External)
	b := main.NewBlock("entry")
	zero := b.NewIntegerConstant(i64, 0, cc.Loc{})
	b.NewReturn(zero, cc.Loc{})

	unused := m.NewFunction("unused", fnType, ir.External)
	ub := unused.NewBlock("entry")
	uzero := ub.NewIntegerConstant(i64, 0, cc.Loc{})
	ub.NewReturn(uzero, cc.Loc{})

	opt.Run(context.Background(), cctx, m, "main")

	require.NotNil(t, m.FunctionByName("main"))
	require.Nil(t, m.FunctionByName("unused"))
}
