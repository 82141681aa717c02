package ir

import (
	"github.com/lcc-go/lcc/cc"
	"github.com/lcc-go/lcc/types"
)

// Every constructor in this file validates the instruction-specific type
// constraints of invariant 4 (spec.md §3.3) before appending to the block,
// and wires up use-list edges for every operand via AddUse. A violated
// constraint is an ICE: frontends are required to deliver a fully-typed,
// already-checked IR (spec.md §6 frontend contract) so a mismatch here
// means the frontend (or a pass) is broken, not that the user wrote bad
// source.

func (b *Block) emit(kind Kind, typ *types.Type, loc cc.Loc, operands ...*Instruction) *Instruction {
	inst := &Instruction{
		id:       b.fn.nextID(),
		kind:     kind,
		typ:      typ,
		loc:      loc,
		operands: operands,
	}
	for _, o := range operands {
		AddUse(o, inst)
	}
	b.append(inst)
	return inst
}

func requireSameType(loc cc.Loc, kind Kind, a, b *types.Type) {
	if a != b {
		cc.Fatal(loc, "%s: operand types differ (%s vs %s)", kind, a, b)
	}
}

func requireInteger(loc cc.Loc, kind Kind, t *types.Type) {
	if !t.IsInteger() {
		cc.Fatal(loc, "%s: expected integer operand, got %s", kind, t)
	}
}

func requirePointer(loc cc.Loc, kind Kind, t *types.Type) {
	if !t.IsPointer() {
		cc.Fatal(loc, "%s: expected pointer operand, got %s", kind, t)
	}
}

// --- Constants / refs -------------------------------------------------

func (b *Block) NewIntegerConstant(typ *types.Type, value uint64, loc cc.Loc) *Instruction {
	requireInteger(loc, IntegerConstant, typ)
	inst := b.emit(IntegerConstant, typ, loc)
	inst.imm = maskToBits(value, typ.Bits())
	return inst
}

func (b *Block) NewArrayConstant(typ *types.Type, elements []*Instruction, loc cc.Loc) *Instruction {
	if typ.Kind() != types.Array {
		cc.Fatal(loc, "%s: expected array type, got %s", ArrayConstant, typ)
	}
	inst := b.emit(ArrayConstant, typ, loc, elements...)
	inst.elements = elements
	return inst
}

func (b *Block) NewPoison(typ *types.Type, loc cc.Loc) *Instruction {
	return b.emit(Poison, typ, loc)
}

func (b *Block) NewFuncRef(target *Function, loc cc.Loc) *Instruction {
	inst := b.emit(FuncRef, b.fn.module.ctx.Types.Pointer(), loc)
	inst.funcRef = target
	return inst
}

func (b *Block) NewLitInteger(typ *types.Type, text string, value uint64, loc cc.Loc) *Instruction {
	inst := b.emit(LitInteger, typ, loc)
	inst.str = text
	inst.imm = value
	return inst
}

func (b *Block) NewLitString(value string, loc cc.Loc) *Instruction {
	elem := b.fn.module.ctx.Types.Integer(8)
	typ := b.fn.module.ctx.Types.Array(elem, uint64(len(value)))
	inst := b.emit(LitString, typ, loc)
	inst.str = value
	return inst
}

// --- Memory -------------------------------------------------------------

func (b *Block) NewAlloca(elemType *types.Type, loc cc.Loc) *Instruction {
	inst := b.emit(Alloca, b.fn.module.ctx.Types.Pointer(), loc)
	inst.elemType = elemType
	return inst
}

func (b *Block) NewLoad(resultType *types.Type, ptr *Instruction, loc cc.Loc) *Instruction {
	requirePointer(loc, Load, ptr.typ)
	return b.emit(Load, resultType, loc, ptr)
}

func (b *Block) NewStore(value, ptr *Instruction, loc cc.Loc) *Instruction {
	requirePointer(loc, Store, ptr.typ)
	return b.emit(Store, b.fn.module.ctx.Types.Void(), loc, value, ptr)
}

func (b *Block) NewGetElementPtr(base *Instruction, indices []*Instruction, loc cc.Loc) *Instruction {
	requirePointer(loc, GetElementPtr, base.typ)
	operands := append([]*Instruction{base}, indices...)
	inst := b.emit(GetElementPtr, b.fn.module.ctx.Types.Pointer(), loc, operands...)
	inst.gepIndices = indices
	return inst
}

func (b *Block) NewCopy(v *Instruction, loc cc.Loc) *Instruction {
	return b.emit(Copy, v.typ, loc, v)
}

// --- Arithmetic / bitwise -------------------------------------------------

func (b *Block) newBinary(kind Kind, l, r *Instruction, loc cc.Loc) *Instruction {
	requireInteger(loc, kind, l.typ)
	requireSameType(loc, kind, l.typ, r.typ)
	return b.emit(kind, l.typ, loc, l, r)
}

func (b *Block) NewAdd(l, r *Instruction, loc cc.Loc) *Instruction  { return b.newBinary(Add, l, r, loc) }
func (b *Block) NewSub(l, r *Instruction, loc cc.Loc) *Instruction  { return b.newBinary(Sub, l, r, loc) }
func (b *Block) NewMul(l, r *Instruction, loc cc.Loc) *Instruction  { return b.newBinary(Mul, l, r, loc) }
func (b *Block) NewSDiv(l, r *Instruction, loc cc.Loc) *Instruction { return b.newBinary(SDiv, l, r, loc) }
func (b *Block) NewUDiv(l, r *Instruction, loc cc.Loc) *Instruction { return b.newBinary(UDiv, l, r, loc) }
func (b *Block) NewSRem(l, r *Instruction, loc cc.Loc) *Instruction { return b.newBinary(SRem, l, r, loc) }
func (b *Block) NewURem(l, r *Instruction, loc cc.Loc) *Instruction { return b.newBinary(URem, l, r, loc) }
func (b *Block) NewShl(l, r *Instruction, loc cc.Loc) *Instruction  { return b.newBinary(Shl, l, r, loc) }
func (b *Block) NewShr(l, r *Instruction, loc cc.Loc) *Instruction  { return b.newBinary(Shr, l, r, loc) }
func (b *Block) NewSar(l, r *Instruction, loc cc.Loc) *Instruction  { return b.newBinary(Sar, l, r, loc) }
func (b *Block) NewAnd(l, r *Instruction, loc cc.Loc) *Instruction  { return b.newBinary(And, l, r, loc) }
func (b *Block) NewOr(l, r *Instruction, loc cc.Loc) *Instruction   { return b.newBinary(Or, l, r, loc) }
func (b *Block) NewXor(l, r *Instruction, loc cc.Loc) *Instruction  { return b.newBinary(Xor, l, r, loc) }

// --- Unary ----------------------------------------------------------------

func (b *Block) NewNeg(v *Instruction, loc cc.Loc) *Instruction {
	requireInteger(loc, Neg, v.typ)
	return b.emit(Neg, v.typ, loc, v)
}

func (b *Block) NewCompl(v *Instruction, loc cc.Loc) *Instruction {
	requireInteger(loc, Compl, v.typ)
	return b.emit(Compl, v.typ, loc, v)
}

func (b *Block) NewNot(v *Instruction, loc cc.Loc) *Instruction {
	requireInteger(loc, Not, v.typ)
	return b.emit(Not, v.typ, loc, v)
}

func (b *Block) NewZExt(v *Instruction, dest *types.Type, loc cc.Loc) *Instruction {
	requireInteger(loc, ZExt, v.typ)
	requireInteger(loc, ZExt, dest)
	if dest.Bits() < v.typ.Bits() {
		cc.Fatal(loc, "%s: destination width %d narrower than source %d", ZExt, dest.Bits(), v.typ.Bits())
	}
	return b.emit(ZExt, dest, loc, v)
}

func (b *Block) NewSExt(v *Instruction, dest *types.Type, loc cc.Loc) *Instruction {
	requireInteger(loc, SExt, v.typ)
	requireInteger(loc, SExt, dest)
	if dest.Bits() < v.typ.Bits() {
		cc.Fatal(loc, "%s: destination width %d narrower than source %d", SExt, dest.Bits(), v.typ.Bits())
	}
	return b.emit(SExt, dest, loc, v)
}

func (b *Block) NewTrunc(v *Instruction, dest *types.Type, loc cc.Loc) *Instruction {
	requireInteger(loc, Trunc, v.typ)
	requireInteger(loc, Trunc, dest)
	if dest.Bits() > v.typ.Bits() {
		cc.Fatal(loc, "%s: destination width %d wider than source %d", Trunc, dest.Bits(), v.typ.Bits())
	}
	return b.emit(Trunc, dest, loc, v)
}

func (b *Block) NewBitcast(v *Instruction, dest *types.Type, loc cc.Loc) *Instruction {
	return b.emit(Bitcast, dest, loc, v)
}

// --- Compares ---------------------------------------------------------

func (b *Block) newCompare(kind Kind, l, r *Instruction, loc cc.Loc) *Instruction {
	requireSameType(loc, kind, l.typ, r.typ)
	return b.emit(kind, b.fn.module.ctx.Types.Integer(1), loc, l, r)
}

func (b *Block) NewEq(l, r *Instruction, loc cc.Loc) *Instruction  { return b.newCompare(Eq, l, r, loc) }
func (b *Block) NewNe(l, r *Instruction, loc cc.Loc) *Instruction  { return b.newCompare(Ne, l, r, loc) }
func (b *Block) NewSLt(l, r *Instruction, loc cc.Loc) *Instruction { return b.newCompare(SLt, l, r, loc) }
func (b *Block) NewSLe(l, r *Instruction, loc cc.Loc) *Instruction { return b.newCompare(SLe, l, r, loc) }
func (b *Block) NewSGt(l, r *Instruction, loc cc.Loc) *Instruction { return b.newCompare(SGt, l, r, loc) }
func (b *Block) NewSGe(l, r *Instruction, loc cc.Loc) *Instruction { return b.newCompare(SGe, l, r, loc) }
func (b *Block) NewULt(l, r *Instruction, loc cc.Loc) *Instruction { return b.newCompare(ULt, l, r, loc) }
func (b *Block) NewULe(l, r *Instruction, loc cc.Loc) *Instruction { return b.newCompare(ULe, l, r, loc) }
func (b *Block) NewUGt(l, r *Instruction, loc cc.Loc) *Instruction { return b.newCompare(UGt, l, r, loc) }
func (b *Block) NewUGe(l, r *Instruction, loc cc.Loc) *Instruction { return b.newCompare(UGe, l, r, loc) }

// --- Control flow -----------------------------------------------------

func (b *Block) NewBranch(target *Block, loc cc.Loc) *Instruction {
	inst := b.emit(Branch, b.fn.module.ctx.Types.Void(), loc)
	inst.branchTgt = target
	return inst
}

func (b *Block) NewCondBranch(cond *Instruction, then, els *Block, loc cc.Loc) *Instruction {
	requireInteger(loc, CondBranch, cond.typ)
	inst := b.emit(CondBranch, b.fn.module.ctx.Types.Void(), loc, cond)
	inst.condThen = then
	inst.condElse = els
	return inst
}

// NewReturn creates a Return terminator. value must be nil iff the
// enclosing function's return type is Void (invariant 6, spec.md §3.3).
// A function returning a Struct or Array may return a Pointer to the
// aggregate instead of the aggregate itself; ABI lowering copies through it.
func (b *Block) NewReturn(value *Instruction, loc cc.Loc) *Instruction {
	retType := b.fn.typ.Return()
	if retType.Kind() == types.Void {
		if value != nil {
			cc.Fatal(loc, "%s: function %q returns void but a value was given", Return, b.fn.name)
		}
		return b.emit(Return, b.fn.module.ctx.Types.Void(), loc)
	}
	if value == nil {
		cc.Fatal(loc, "%s: function %q returns %s but no value was given", Return, b.fn.name, retType)
	}
	if !(retType.IsAggregate() && value.typ.IsPointer()) {
		requireSameType(loc, Return, value.typ, retType)
	}
	return b.emit(Return, b.fn.module.ctx.Types.Void(), loc, value)
}

func (b *Block) NewUnreachable(loc cc.Loc) *Instruction {
	return b.emit(Unreachable, b.fn.module.ctx.Types.Void(), loc)
}

// NewPhi creates an empty Phi; incoming (predecessor, value) pairs are
// attached with AddIncoming as blocks are linked, since a block's
// predecessor set is often not fully known until the whole function is
// constructed.
func (b *Block) NewPhi(typ *types.Type, loc cc.Loc) *Instruction {
	return b.emit(Phi, typ, loc)
}

// AddIncoming appends one (pred, value) pair to a Phi's argument list,
// registering the use-list edge. Invariant 5 (spec.md §3.3) -- exactly one
// pair per predecessor, dominance of value at the end of pred -- is
// checked by ir.Verify, not at construction time, since predecessors may
// still be under construction.
func (p *Instruction) AddIncoming(pred *Block, value *Instruction) {
	if p.kind != Phi {
		cc.Fatal(p.loc, "AddIncoming on non-Phi instruction")
	}
	requireSameType(p.loc, Phi, value.typ, p.typ)
	p.phiArgs = append(p.phiArgs, PhiArg{Pred: pred, Value: value})
	AddUse(value, p)
}

// --- Calls --------------------------------------------------------------

// NewCall creates a direct call to callee.
func (b *Block) NewCall(typ *types.Type, callee *Function, args []*Instruction, loc cc.Loc) *Instruction {
	inst := b.emit(Call, typ, loc, args...)
	inst.call = &CallInfo{IsIndirect: false, CalleeFunction: callee}
	return inst
}

// NewCallIndirect creates a call through a function-pointer value.
func (b *Block) NewCallIndirect(typ *types.Type, calleeVal *Instruction, args []*Instruction, loc cc.Loc) *Instruction {
	requirePointer(loc, Call, calleeVal.typ)
	operands := append([]*Instruction{calleeVal}, args...)
	inst := b.emit(Call, typ, loc, operands...)
	inst.call = &CallInfo{IsIndirect: true, CalleeValue: calleeVal}
	return inst
}

// --- Intrinsics -----------------------------------------------------------

func (b *Block) NewMemCopy(dest, src *Instruction, bytes uint64, loc cc.Loc) *Instruction {
	requirePointer(loc, MemCopy, dest.typ)
	requirePointer(loc, MemCopy, src.typ)
	inst := b.emit(MemCopy, b.fn.module.ctx.Types.Void(), loc, dest, src)
	inst.memBytes = bytes
	return inst
}

func maskToBits(v uint64, bits uint8) uint64 {
	if bits >= 64 {
		return v
	}
	return v & ((uint64(1) << bits) - 1)
}
