package ir

// IsSideEffectFreeForDCE reports whether an instruction with an empty
// use-list may be deleted outright by dead-code elimination (spec.md
// §4.2.2). Side-effect-free instructions are exactly: constants/refs,
// Load, Alloca, arithmetic/bitwise/compares/casts/Neg/Compl/Not, and Calls
// to direct pure non-tail callees. All branches, stores, and the
// Unreachable terminator are always side-effectful.
func (v *Instruction) IsSideEffectFreeForDCE() bool {
	switch v.kind {
	case IntegerConstant, ArrayConstant, Poison, GlobalVariable, FuncRef, LitInteger, LitString, Parameter,
		Load, Alloca,
		Add, Sub, Mul, SDiv, UDiv, SRem, URem, Shl, Shr, Sar, And, Or, Xor,
		Eq, Ne, SLt, SLe, SGt, SGe, ULt, ULe, UGt, UGe,
		Neg, Compl, Not, ZExt, SExt, Trunc, Bitcast, GetElementPtr, Copy:
		return true
	case Call:
		return !v.call.IsIndirect && v.call.CalleeFunction != nil && v.call.CalleeFunction.attrPure && !v.call.TailCall
	default:
		return false
	}
}
