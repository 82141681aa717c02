package ir

import "github.com/lcc-go/lcc/cc"

// CloneSimple duplicates a non-control-flow, non-Phi, non-Parameter
// instruction into b, with operands remapped through lookup. It is the
// inliner's workhorse (spec.md §4.2.8): control flow (Branch, CondBranch,
// Return), Phi, and Parameter are handled specially by the caller, since
// they need block-level context (continuation targets, merge points,
// call-argument substitution) CloneSimple does not have.
func CloneSimple(b *Block, orig *Instruction, lookup func(*Instruction) *Instruction) *Instruction {
	ops := make([]*Instruction, len(orig.operands))
	for i, o := range orig.operands {
		ops[i] = lookup(o)
	}

	switch orig.kind {
	case IntegerConstant:
		inst := b.emit(IntegerConstant, orig.typ, orig.loc)
		inst.imm = orig.imm
		return inst
	case ArrayConstant:
		inst := b.emit(ArrayConstant, orig.typ, orig.loc, ops...)
		inst.elements = ops
		return inst
	case Poison:
		return b.emit(Poison, orig.typ, orig.loc)
	case GlobalVariable:
		inst := b.emit(GlobalVariable, orig.typ, orig.loc)
		inst.global = orig.global
		return inst
	case FuncRef:
		inst := b.emit(FuncRef, orig.typ, orig.loc)
		inst.funcRef = orig.funcRef
		return inst
	case LitInteger:
		inst := b.emit(LitInteger, orig.typ, orig.loc)
		inst.str, inst.imm = orig.str, orig.imm
		return inst
	case LitString:
		inst := b.emit(LitString, orig.typ, orig.loc)
		inst.str = orig.str
		return inst
	case Alloca:
		inst := b.emit(Alloca, orig.typ, orig.loc)
		inst.elemType = orig.elemType
		return inst
	case Load:
		return b.emit(Load, orig.typ, orig.loc, ops[0])
	case Store:
		return b.emit(Store, orig.typ, orig.loc, ops[0], ops[1])
	case GetElementPtr:
		inst := b.emit(GetElementPtr, orig.typ, orig.loc, ops...)
		inst.gepIndices = ops[1:]
		return inst
	case Copy:
		return b.emit(Copy, orig.typ, orig.loc, ops[0])
	case Add, Sub, Mul, SDiv, UDiv, SRem, URem, Shl, Shr, Sar, And, Or, Xor,
		Eq, Ne, SLt, SLe, SGt, SGe, ULt, ULe, UGt, UGe:
		return b.emit(orig.kind, orig.typ, orig.loc, ops[0], ops[1])
	case Neg, Compl, Not, ZExt, SExt, Trunc, Bitcast:
		return b.emit(orig.kind, orig.typ, orig.loc, ops[0])
	case Call:
		inst := b.emit(Call, orig.typ, orig.loc, ops...)
		c := *orig.call
		if c.IsIndirect {
			c.CalleeValue = ops[0]
		}
		c.TailCall = false
		inst.call = &c
		return inst
	case MemCopy:
		inst := b.emit(MemCopy, orig.typ, orig.loc, ops[0], ops[1])
		inst.memBytes = orig.memBytes
		return inst
	default:
		cc.Fatal(orig.loc, "CloneSimple: unsupported kind %s", orig.kind)
		return nil
	}
}
