package x86_64_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lcc-go/lcc/cc"
	"github.com/lcc-go/lcc/codegen/x86_64"
	"github.com/lcc-go/lcc/ir"
	"github.com/lcc-go/lcc/mir"
	"github.com/lcc-go/lcc/target"
	"github.com/lcc-go/lcc/types"
)

func buildAddFunction(t *testing.T) []*mir.MFunction {
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

	return mir.Build(cctx, m, tgt)
}

// TestSelectLowersAddToX86Opcodes covers spec.md §4.5: after Select, the
// generic MIR Add no longer appears in the function's instruction stream.
func TestSelectLowersAddToX86Opcodes(t *testing.T) {
	fns := buildAddFunction(t)
	tgt := target.Default()

	x86_64.Select(fns, tgt)

	mf := fns[0]
	require.NotEmpty(t, mf.Blocks[0].Insts)
	for _, inst := range mf.Blocks[0].Insts {
		require.NotEqual(t, mir.OpAdd, inst.Op, "generic Add must not survive selection")
	}
}

// TestAllocateAssignsPhysicalRegisters covers spec.md §4.6: Allocate runs
// to completion on a selected function without panicking. The registers
// it assigns are not inspected.
func TestAllocateAssignsPhysicalRegisters(t *testing.T) {
	fns := buildAddFunction(t)
	tgt := target.Default()

	x86_64.Select(fns, tgt)
	desc := x86_64.DescriptionFor(tgt)

	mf := fns[0]
	require.NotPanics(t, func() {
		x86_64.Allocate(mf, desc)
	})
}

func buildSDivFunction(t *testing.T) []*mir.MFunction {
	t.Helper()
	tgt := target.Default()
	cctx := cc.NewContext(tgt)
	m := ir.NewModule(cctx)

	i64 := cctx.Types.Integer(64)
	fnType := cctx.Types.Function(i64, []*types.Type{i64, i64}, false, target.ConvC)
	f := m.NewFunction("divide", fnType, ir.External)

	entry := f.NewBlock("entry")
	q := entry.NewSDiv(f.Params()[0], f.Params()[1], cc.Loc{})
	entry.NewReturn(q, cc.Loc{})

	return mir.Build(cctx, m, tgt)
}

// TestSelectPinsDivDividendToRAX covers idiv's fixed RDX:RAX dividend
// (spec.md §4.6): selDivRem must move the dividend into RAX before the
// div opcode runs, and read the quotient back out of RAX, rather than
// leaving the dividend in whatever register the allocator later assigns.
func TestSelectPinsDivDividendToRAX(t *testing.T) {
	fns := buildSDivFunction(t)
	tgt := target.Default()

	x86_64.Select(fns, tgt)

	insts := fns[0].Blocks[0].Insts
	var divIdx = -1
	for i, inst := range insts {
		if inst.Op == mir.OpSDiv {
			divIdx = i
			break
		}
	}
	require.GreaterOrEqual(t, divIdx, 1, "an OpSDiv instruction must survive selection")

	div := insts[divIdx]
	require.Equal(t, x86_64.RAX, x86_64.PhysicalRegister(div.Def), "quotient must land in RAX")

	pin := insts[divIdx-1]
	require.Equal(t, x86_64.Move, pin.Op)
	require.Equal(t, x86_64.RAX, x86_64.PhysicalRegister(pin.Def), "dividend must be pinned to RAX before the div")
}
