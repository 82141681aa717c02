package opt

import (
	"github.com/lcc-go/lcc/cc"
	"github.com/lcc-go/lcc/ir"
	"github.com/lcc-go/lcc/types"
)

// inline finds one eligible call site across m and inlines it, returning
// whether it found one. It is re-invoked by Run's cross-function loop until
// it (and attribute re-propagation) both report no change, so inlining one
// call per invocation is sufficient for the driver to converge (spec.md
// §4.2.8): the callee must be a direct, non-indirect, non-recursive call
// whose instruction count is within threshold.
func inline(cctx *cc.Context, m *ir.Module, threshold int) bool {
	for _, f := range m.Functions() {
		if f.IsExtern() {
			continue
		}
		for _, b := range f.Blocks() {
			for _, inst := range b.Instructions() {
				if inst.Kind() != ir.Call {
					continue
				}
				c := inst.Call()
				if c.IsIndirect {
					continue
				}
				callee := c.CalleeFunction
				if callee == f || callee.IsExtern() {
					continue
				}
				if instructionCount(callee) > threshold {
					continue
				}
				inlineCallSite(f, b, inst, callee)
				return true
			}
		}
	}
	return false
}

func instructionCount(f *ir.Function) int {
	n := 0
	for _, b := range f.Blocks() {
		n += len(b.Instructions())
	}
	return n
}

// inlineCallSite splices a fresh copy of callee's body into f in place of
// call: the call site's block is split at call, callee's blocks are cloned
// with parameters substituted by the call's arguments, every cloned Return
// becomes a Branch to the continuation block, and (when callee returns a
// value) a Phi in the continuation merges every clone's return value.
func inlineCallSite(f *ir.Function, callSite *ir.Block, call *ir.Instruction, callee *ir.Function) {
	cont := callSite.SplitAfter(call)

	blockMap := make(map[*ir.Block]*ir.Block)
	for _, cb := range callee.Blocks() {
		blockMap[cb] = f.NewBlock(callee.Name() + "." + cb.Name())
	}
	callSite.NewBranch(blockMap[callee.Entry()], call.Loc())

	valueMap := make(map[*ir.Instruction]*ir.Instruction)
	args := call.Operands()
	for i, p := range callee.Params() {
		valueMap[p] = args[i]
	}
	lookup := func(v *ir.Instruction) *ir.Instruction {
		if mapped, ok := valueMap[v]; ok {
			return mapped
		}
		return v
	}

	// First pass: create empty Phi placeholders so forward/back references
	// within the callee resolve to the right clone.
	for _, cb := range callee.Blocks() {
		nb := blockMap[cb]
		for _, inst := range cb.Instructions() {
			if inst.Kind() == ir.Phi {
				valueMap[inst] = nb.NewPhi(inst.Type(), inst.Loc())
			}
		}
	}

	type returnSite struct {
		block *ir.Block
		value *ir.Instruction
	}
	var returns []returnSite

	for _, cb := range callee.Blocks() {
		nb := blockMap[cb]
		for _, inst := range cb.Instructions() {
			switch inst.Kind() {
			case ir.Phi:
				clone := valueMap[inst]
				for _, a := range inst.PhiArgs() {
					clone.AddIncoming(blockMap[a.Pred], lookup(a.Value))
				}
			case ir.Branch:
				nb.NewBranch(blockMap[inst.BranchTarget()], inst.Loc())
			case ir.CondBranch:
				nb.NewCondBranch(lookup(inst.Operands()[0]), blockMap[inst.CondThen()], blockMap[inst.CondElse()], inst.Loc())
			case ir.Unreachable:
				nb.NewUnreachable(inst.Loc())
			case ir.Return:
				ops := inst.Operands()
				if len(ops) == 1 {
					returns = append(returns, returnSite{block: nb, value: lookup(ops[0])})
				}
				nb.NewBranch(cont, inst.Loc())
			default:
				clone := ir.CloneSimple(nb, inst, lookup)
				valueMap[inst] = clone
			}
		}
	}

	switch {
	case call.Type().Kind() == types.Void:
		// no value to merge
	case len(returns) == 1:
		ir.ReplaceAllUsesWith(call, returns[0].value)
	case len(returns) > 1:
		phi := cont.PrependPhi(call.Type(), call.Loc())
		for _, r := range returns {
			phi.AddIncoming(r.block, r.value)
		}
		ir.ReplaceAllUsesWith(call, phi)
	}

	call.Erase()
}
