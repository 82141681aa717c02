package mir_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lcc-go/lcc/cc"
	"github.com/lcc-go/lcc/ir"
	"github.com/lcc-go/lcc/mir"
	"github.com/lcc-go/lcc/target"
	"github.com/lcc-go/lcc/types"
)

// buildAdd mirrors the smallest function used across the ir/opt tests:
// func add(a, b i64) i64 { return a + b }.
func buildAdd(t *testing.T) (*cc.Context, *ir.Module) {
	t.Helper()
	tgt := target.Default()
	cctx := cc.NewContext(tgt)
	m := ir.NewModule(cctx)

	i64 := cctx.Types.Integer(64)
	fnType := cctx.Types.Function(i64, []*types.Type{i64, i64}, false, target.ConvC)
	f := m.NewFunction("add", fnType, ir.External)

	entry := f.NewBlock("entry")
	sum := entry.NewAdd(f.Params()[0], f.Params()[1], cc.Loc{})
	entry.NewReturn(sum, cc.Loc{})

	return cctx, m
}

func TestBuildLowersAddToOneFunction(t *testing.T) {
	cctx, m := buildAdd(t)

	fns := mir.Build(cctx, m, cctx.Target)

	require.Len(t, fns, 1)
	mf := fns[0]
	require.Equal(t, "add", mf.Name)
	require.Len(t, mf.Blocks, 1)
	require.Len(t, mf.ParamRegs, 2)
	require.Equal(t, 64, mf.ReturnBits)

	insts := mf.Blocks[0].Insts
	require.Len(t, insts, 2) // Add, Return
	require.Equal(t, mir.OpAdd, insts[0].Op)
	require.Equal(t, mir.OpReturn, insts[1].Op)
}
