package abi_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lcc-go/lcc/abi"
	"github.com/lcc-go/lcc/cc"
	"github.com/lcc-go/lcc/ir"
	"github.com/lcc-go/lcc/target"
	"github.com/lcc-go/lcc/types"
)

// TestLowerOversizedReturnPrependsHiddenParam covers spec.md §4.3: a
// function returning a struct larger than the target's in-register return
// limit gains a hidden pointer parameter, and its Return becomes a
// MemCopy into that parameter followed by a bare (void) Return.
func TestLowerOversizedReturnPrependsHiddenParam(t *testing.T) {
	tgt := target.Default()
	cctx := cc.NewContext(tgt)
	m := ir.NewModule(cctx)

	i64 := cctx.Types.Integer(64)
	big := cctx.Types.Struct([]*types.Type{i64, i64, i64, i64}, false) // 32 bytes
	require.Greater(t, int(big.Size(tgt)), tgt.MaxReturnBytes())

	fnType := cctx.Types.Function(big, nil, false, target.ConvC)
	f := m.NewFunction("make_big", fnType, ir.External)

	entry := f.NewBlock("entry")
	slot := entry.NewAlloca(big, cc.Loc{})
	entry.NewReturn(slot, cc.Loc{})

	paramsBefore := len(f.Params())

	abi.Lower(cctx, m, tgt)

	require.Len(t, f.Params(), paramsBefore+1, "a hidden pointer parameter must be prepended")
	require.True(t, f.Params()[0].Type().IsPointer())

	ret := f.Entry().Terminator()
	require.Equal(t, ir.Return, ret.Kind())
	require.Empty(t, ret.Operands(), "return becomes void once the value is copied out via the hidden param")

	require.NoError(t, cctx.CheckStage("abi"))
}
