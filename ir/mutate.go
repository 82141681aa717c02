package ir

import (
	"github.com/lcc-go/lcc/cc"
	"github.com/lcc-go/lcc/types"
)

// ReplaceWithImmediate converts v in place into an IntegerConstant holding
// value, preserving v's identity and therefore its existing use-list
// (spec.md §8 concrete scenario 1: "use-list of the Add is transferred to
// the new Const"). Callers must remove uses of v's old operands first via
// RemoveUse, or call DropOperandUses, before calling this.
func (v *Instruction) ReplaceWithImmediate(value uint64) {
	v.kind = IntegerConstant
	v.operands = nil
	v.imm = maskToBits(value, v.typ.Bits())
	v.call = nil
	v.phiArgs = nil
	v.branchTgt = nil
	v.condThen = nil
	v.condElse = nil
}

// DropOperandUses removes v's use-list entry from every one of its current
// operands, without touching v's own operand list. Used by instcombine
// immediately before an in-place rewrite that discards those operands
// (ReplaceWithImmediate, ReplaceWithOperand).
func (v *Instruction) DropOperandUses() {
	for _, o := range v.operands {
		RemoveUse(o, v)
	}
}

// ReplaceWithOperand rewrites every use of v to refer to repl instead
// (v's own operand uses must already have been dropped via
// DropOperandUses). Used for identities like x+0 -> x.
func (v *Instruction) ReplaceWithOperand(repl *Instruction) {
	v.operands = nil
	ReplaceAllUsesWith(v, repl)
}

// ConvertCondBranchToBranch rewrites a CondBranch in place into an
// unconditional Branch to target, dropping the use of the condition
// operand (spec.md §4.2.1, "CondBranch(const, t, f) -> Branch(t or f)").
func (v *Instruction) ConvertCondBranchToBranch(target *Block) {
	if v.kind != CondBranch {
		cc.Fatal(v.loc, "ConvertCondBranchToBranch on non-CondBranch instruction")
	}
	v.DropOperandUses()
	v.kind = Branch
	v.operands = nil
	v.condThen = nil
	v.condElse = nil
	v.branchTgt = target
}

// SimplifyCondBranchSameTarget rewrites a CondBranch whose then- and
// else-targets are identical into an unconditional Branch (spec.md
// §4.2.6, "CondBranch(c, X, X) -> Branch(X)").
func (v *Instruction) SimplifyCondBranchSameTarget() {
	if v.kind != CondBranch || v.condThen != v.condElse {
		cc.Fatal(v.loc, "SimplifyCondBranchSameTarget: preconditions not met")
	}
	v.ConvertCondBranchToBranch(v.condThen)
}

// ConvertIndirectCallToDirect rewrites an indirect Call in place into a
// direct call to target, dropping the callee-value operand (spec.md
// §4.2.1, "Indirect Call whose callee is a FuncRef ... rewritten to a
// direct Call").
func (v *Instruction) ConvertIndirectCallToDirect(target *Function) {
	if v.kind != Call || v.call == nil || !v.call.IsIndirect {
		cc.Fatal(v.loc, "ConvertIndirectCallToDirect on non-indirect-call instruction")
	}
	RemoveUse(v.operands[0], v)
	v.operands = v.operands[1:]
	v.call = &CallInfo{IsIndirect: false, CalleeFunction: target}
}

// RemovePhiArg drops exactly one incoming (predecessor, value) pair,
// removing the corresponding use-list entry. Used by jump threading when a
// predecessor block is eliminated and by block deletion during
// reachability cleanup.
func (v *Instruction) RemovePhiArg(pred *Block) {
	for i, a := range v.phiArgs {
		if a.Pred == pred {
			RemoveUse(a.Value, v)
			v.phiArgs = append(v.phiArgs[:i], v.phiArgs[i+1:]...)
			return
		}
	}
}

// RetargetPhiArgPred rewrites a Phi's incoming-block reference from one
// predecessor to another without touching the incoming value or its
// use-list; used when jump threading collapses a single-branch block and
// every Phi referring to it as a predecessor must instead refer to that
// block's own predecessor (spec.md §4.2.6).
func (v *Instruction) RetargetPhiArgPred(from, to *Block) {
	for i, a := range v.phiArgs {
		if a.Pred == from {
			v.phiArgs[i].Pred = to
		}
	}
}

// PrependHiddenParam adds a new Pointer-typed Parameter at index 0 of f's
// parameter list, renumbering the existing ones, and rebuilds f's function
// type through the module's type universe with the extra leading
// parameter (spec.md §4.3's oversized-return hidden out-parameter; types
// are interned and otherwise immutable, so the Function's type is replaced
// wholesale rather than mutated).
func (f *Function) PrependHiddenParam(ptrType *types.Type) *Instruction {
	hidden := &Instruction{id: f.nextID(), kind: Parameter, typ: ptrType, paramIndex: 0}
	for _, p := range f.params {
		p.paramIndex++
	}
	f.params = append([]*Instruction{hidden}, f.params...)

	old := f.typ
	newParams := append([]*types.Type{ptrType}, old.Params()...)
	u := f.module.ctx.Types
	f.typ = u.Function(old.Return(), newParams, old.Variadic(), old.CallConv())
	return hidden
}

// ConvertReturnToVoid drops the use of a Return's operand (if any) and
// clears it, turning it into a bare "ret" with no value -- the second half
// of spec.md §4.3's oversized-return rewrite, paired with a MemCopy into
// the hidden out-parameter emitted just before it.
func (v *Instruction) ConvertReturnToVoid() {
	if v.kind != Return {
		cc.Fatal(v.loc, "ConvertReturnToVoid on non-Return instruction")
	}
	v.DropOperandUses()
	v.operands = nil
}

// PrependOperand inserts op at the front of v's operand list, registering
// the use-list edge. Used to add the hidden out-pointer argument at every
// call site of a function whose return was rewritten by abi.Lower.
func (v *Instruction) PrependOperand(op *Instruction) {
	v.operands = append([]*Instruction{op}, v.operands...)
	AddUse(op, v)
}

// ConvertCallToVoid changes a Call's result type to Void in place, for a
// callee whose return value no longer flows through the call's own value
// (because it was rewritten to write through a hidden out-pointer).
func (v *Instruction) ConvertCallToVoid() {
	v.typ = v.block.fn.module.ctx.Types.Void()
}

// NewAllocaBefore creates a Pointer-typed Alloca and inserts it immediately
// before mark in b, bypassing the append-only emit path. Used by ABI
// lowering to materialize a caller-side return slot at an existing call
// site, whose block is usually already terminated.
func (b *Block) NewAllocaBefore(mark *Instruction, elemType *types.Type, loc cc.Loc) *Instruction {
	inst := &Instruction{id: b.fn.nextID(), kind: Alloca, typ: b.fn.module.ctx.Types.Pointer(), loc: loc, elemType: elemType}
	b.InsertBefore(mark, inst)
	return inst
}

// NewMemCopyBefore creates a MemCopy and inserts it immediately before mark
// in b, bypassing the append-only emit path. Used by ABI lowering to
// splice a copy into a block whose terminator (or the load/store being
// replaced) already sits at or after the insertion point.
func (b *Block) NewMemCopyBefore(mark, dest, src *Instruction, bytes uint64, loc cc.Loc) *Instruction {
	inst := &Instruction{
		id:       b.fn.nextID(),
		kind:     MemCopy,
		typ:      b.fn.module.ctx.Types.Void(),
		loc:      loc,
		operands: []*Instruction{dest, src},
		memBytes: bytes,
	}
	AddUse(dest, inst)
	AddUse(src, inst)
	b.InsertBefore(mark, inst)
	return inst
}

// NewCopyBefore creates a Copy and inserts it immediately before mark in b,
// bypassing the append-only emit path. Used by ABI lowering when the
// instruction being replaced sits mid-block.
func (b *Block) NewCopyBefore(mark, v *Instruction, loc cc.Loc) *Instruction {
	inst := &Instruction{
		id:       b.fn.nextID(),
		kind:     Copy,
		typ:      v.typ,
		loc:      loc,
		operands: []*Instruction{v},
	}
	AddUse(v, inst)
	b.InsertBefore(mark, inst)
	return inst
}

// ConvertBinaryKind changes v's kind in place without touching its operands
// or use-list. Used by instcombine's power-of-two division/remainder
// strength reduction, which turns a SDiv/UDiv into a Sar/Shr of the same
// two operands (spec.md §4.2.1).
func (v *Instruction) ConvertBinaryKind(newKind Kind) {
	v.kind = newKind
}

// MarkTailCall marks a Call as a tail call (spec.md §4.2.7); the
// actual stack-frame adjustment happens in the backend.
func (v *Instruction) MarkTailCall() {
	if v.kind != Call {
		cc.Fatal(v.loc, "MarkTailCall on non-Call instruction")
	}
	v.call.TailCall = true
}
