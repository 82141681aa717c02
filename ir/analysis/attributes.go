package analysis

import "github.com/lcc-go/lcc/ir"

// InferAttributes runs the three monotone per-function analyses (pure,
// leaf, noreturn) to a fixed point across every function in m, as
// described in spec.md §4.1. It reports whether any attribute changed on
// any function, driving the cross-function optimizer's outer fixed-point
// loop (spec.md §4.2.8).
func InferAttributes(m *ir.Module) (changed bool) {
	for _, f := range m.Functions() {
		if f.IsExtern() {
			continue
		}
		changed = checkPure(f) || changed
		changed = checkLeaf(f) || changed
		changed = checkNoreturn(f) || changed
	}
	return changed
}

// checkPure reports whether f's pure attribute changed during the call
// (it sets the attribute as a side effect and returns whether the
// *value* flipped, matching the source's "returns whether the attribute
// changed, not whether it holds" contract).
func checkPure(f *ir.Function) bool {
	pure := true
outer:
	for _, b := range f.Blocks() {
		for _, inst := range b.Instructions() {
			if !instructionHasSideEffect(inst) {
				continue
			}
			// An instruction with a side effect may still be compatible
			// with a pure function: a store to a local (Alloca'd)
			// address, or a direct call to an already-pure function.
			switch inst.Kind() {
			case ir.Store:
				if inst.Operands()[1].Kind() == ir.Alloca {
					continue
				}
			case ir.Call:
				c := inst.Call()
				if !c.IsIndirect && c.CalleeFunction != nil && c.CalleeFunction.AttrPure() {
					continue
				}
			}
			pure = false
			break outer
		}
	}

	if f.AttrPure() == pure {
		return false
	}
	f.SetAttrPure(pure)
	return true
}

// checkLeaf reports whether f's leaf attribute changed. A leaf function
// contains no Call except an indirect-free direct tail call to itself or
// to another leaf function.
func checkLeaf(f *ir.Function) bool {
	leaf := true
outer:
	for _, b := range f.Blocks() {
		for _, inst := range b.Instructions() {
			if inst.Kind() != ir.Call {
				continue
			}
			c := inst.Call()
			if !c.IsIndirect && c.TailCall {
				if c.CalleeFunction == f || c.CalleeFunction.AttrLeaf() {
					continue
				}
			}
			leaf = false
			break outer
		}
	}

	if f.AttrLeaf() == leaf {
		return false
	}
	f.SetAttrLeaf(leaf)
	return true
}

// checkNoreturn reports whether f's noreturn attribute changed. A function
// is noreturn iff no Return instruction is reachable and any tail call is
// itself to a direct noreturn callee.
func checkNoreturn(f *ir.Function) bool {
	noreturn := true
outer:
	for _, b := range f.Blocks() {
		for _, inst := range b.Instructions() {
			switch inst.Kind() {
			case ir.Call:
				c := inst.Call()
				if c.TailCall {
					if !c.IsIndirect && c.CalleeFunction.AttrNoreturn() {
						continue
					}
					noreturn = false
					break outer
				}
			case ir.Return:
				noreturn = false
				break outer
			}
		}
	}

	if f.AttrNoreturn() == noreturn {
		return false
	}
	f.SetAttrNoreturn(noreturn)
	return true
}

func instructionHasSideEffect(inst *ir.Instruction) bool {
	if inst.Kind().IsTerminator() {
		// Branches (unconditional/conditional) are never side-effectful
		// (spec.md §4.1); Return/Unreachable are handled specially by
		// checkNoreturn and do not count against purity here.
		return false
	}
	return !inst.IsSideEffectFreeForDCE()
}
