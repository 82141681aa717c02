package x86_64

import (
	"github.com/lcc-go/lcc/cc"
	"github.com/lcc-go/lcc/mir"
	"github.com/lcc-go/lcc/target"
)

// physVReg encodes a physical register as a virtual-register id reserved
// for this purpose: ids at or below -1000 are never produced by mir.Build (which
// only ever allocates non-negative ids), so the allocator can recognise
// and leave them pinned rather than reassigning them (spec.md §4.6's
// "fixed-register operands where present, e.g. shift count in CL").
const physBase = mir.VReg(-1000)

func physVReg(r Reg) mir.VReg { return physBase - mir.VReg(r) }

func isPhysVReg(v mir.VReg) bool { return v <= physBase }

func physFromVReg(v mir.VReg) Reg { return Reg(physBase - v) }

func physOperand(r Reg, bits int) mir.Operand { return mir.RegOperand(physVReg(r), bits) }

// pattern is one entry of the instruction-selection table (spec.md §4.5):
// a matcher on the generic opcode plus a replacement builder. Patterns are
// tried in declared order and the first match fires.
type pattern struct {
	match func(*mir.MInst) bool
	build func(sel *selector, inst *mir.MInst) []*mir.MInst
}

type selector struct {
	mf      *mir.MFunction
	argRegs []Reg
}

func newSelector(mf *mir.MFunction, tgt *target.Target) *selector {
	if tgt.IsWindows() {
		return &selector{mf: mf, argRegs: Win64ArgRegs}
	}
	return &selector{mf: mf, argRegs: SysVArgRegs}
}

// Select rewrites every MFunction's generic MIR into x86-64 MIR in place
// (spec.md §4.5). Each pattern replaces one generic MInst with zero or
// more architecture MInsts; when a replacement still needs the original's
// result, it reuses inst.Def as its own Def so later uses resolve without
// remapping.
func Select(fns []*mir.MFunction, tgt *target.Target) {
	for _, mf := range fns {
		sel := newSelector(mf, tgt)
		for _, b := range mf.Blocks {
			var out []*mir.MInst
			for _, inst := range b.Insts {
				out = append(out, selectOne(sel, inst)...)
			}
			b.Insts = out
		}
	}
}

func selectOne(sel *selector, inst *mir.MInst) []*mir.MInst {
	for _, p := range patterns {
		if p.match(inst) {
			return p.build(sel, inst)
		}
	}
	cc.Fatal(inst.Loc, "x86_64.Select: no pattern for opcode %s", inst.Op)
	return nil
}

func opIs(ops ...mir.Op) func(*mir.MInst) bool {
	return func(i *mir.MInst) bool {
		for _, o := range ops {
			if i.Op == o {
				return true
			}
		}
		return false
	}
}

var compareOps = []mir.Op{mir.OpEq, mir.OpNe, mir.OpSLt, mir.OpSLe, mir.OpSGt, mir.OpSGe, mir.OpULt, mir.OpULe, mir.OpUGt, mir.OpUGe}

var patterns = []pattern{
	{opIs(mir.OpIntegerConstant, mir.OpLitInteger), selImmediate},
	{opIs(mir.OpFuncRef), selFuncRef},
	{opIs(mir.OpGlobalVariable), selGlobal},
	{opIs(mir.OpCopy, mir.OpBitcast), selCopy},
	{opIs(mir.OpAlloca), selAlloca},
	{opIs(mir.OpLoad), selLoad},
	{opIs(mir.OpStore), selStore},
	{opIs(mir.OpGetElementPtr), selGEP},
	{opIs(mir.OpAdd), selArith(Add)},
	{opIs(mir.OpSub), selArith(Sub)},
	{opIs(mir.OpMul), selMul},
	{opIs(mir.OpSDiv, mir.OpUDiv, mir.OpSRem, mir.OpURem), selDivRem},
	{opIs(mir.OpShl, mir.OpShr, mir.OpSar), selShift},
	{opIs(mir.OpAnd), selArith(And)},
	{opIs(mir.OpOr), selArith(OrOp)},
	{opIs(mir.OpXor), selArith(XorOp)},
	{opIs(mir.OpNeg), selNeg},
	{opIs(mir.OpCompl, mir.OpNot), selNot},
	{opIs(mir.OpZExt, mir.OpSExt, mir.OpTrunc), selExtend},
	{func(i *mir.MInst) bool { return isCompare(i.Op) }, selCompare},
	{opIs(mir.OpBranch), selBranch},
	{opIs(mir.OpCondBranch), selCondBranch},
	{opIs(mir.OpReturn), selReturn},
	{opIs(mir.OpUnreachable), selUnreachable},
	{opIs(mir.OpPhi), selPhi},
	{opIs(mir.OpCall), selCall},
	{opIs(mir.OpMemCopy), selMemCopy},
}

func isCompare(op mir.Op) bool {
	for _, o := range compareOps {
		if op == o {
			return true
		}
	}
	return false
}

func selImmediate(sel *selector, inst *mir.MInst) []*mir.MInst {
	return []*mir.MInst{{Op: Move, Loc: inst.Loc, Def: inst.Def, DefBits: inst.DefBits, Operands: []mir.Operand{inst.Operands[0]}}}
}

func selFuncRef(sel *selector, inst *mir.MInst) []*mir.MInst {
	return []*mir.MInst{{Op: LoadEffectiveAddress, Loc: inst.Loc, Def: inst.Def, DefBits: inst.DefBits, Operands: []mir.Operand{inst.Operands[0]}}}
}

func selGlobal(sel *selector, inst *mir.MInst) []*mir.MInst {
	return []*mir.MInst{{Op: LoadEffectiveAddress, Loc: inst.Loc, Def: inst.Def, DefBits: inst.DefBits, Operands: []mir.Operand{inst.Operands[0]}}}
}

func selCopy(sel *selector, inst *mir.MInst) []*mir.MInst {
	return []*mir.MInst{{Op: Move, Loc: inst.Loc, Def: inst.Def, DefBits: inst.DefBits, Operands: []mir.Operand{inst.Operands[0]}}}
}

func selAlloca(sel *selector, inst *mir.MInst) []*mir.MInst {
	return []*mir.MInst{{Op: LoadEffectiveAddress, Loc: inst.Loc, Def: inst.Def, DefBits: inst.DefBits, Operands: []mir.Operand{inst.Operands[0]}}}
}

func selLoad(sel *selector, inst *mir.MInst) []*mir.MInst {
	return []*mir.MInst{{Op: MoveDereferenceRHS, Loc: inst.Loc, Def: inst.Def, DefBits: inst.DefBits, Operands: []mir.Operand{inst.Operands[0]}}}
}

func selStore(sel *selector, inst *mir.MInst) []*mir.MInst {
	return []*mir.MInst{{Op: MoveDereferenceLHS, Loc: inst.Loc, Def: mir.NoReg, Operands: []mir.Operand{inst.Operands[0], inst.Operands[1]}}}
}

// selGEP computes base + sum(indices) into Def. Indices at the IR level
// are already byte offsets by the time they reach MIR (the frontend's
// GetElementPtr indices are required to have been scaled by element size
// during IR construction); ISel's job is only to emit the adds.
func selGEP(sel *selector, inst *mir.MInst) []*mir.MInst {
	out := []*mir.MInst{{Op: Move, Loc: inst.Loc, Def: inst.Def, DefBits: inst.DefBits, Operands: []mir.Operand{inst.Operands[0]}}}
	for _, idx := range inst.Operands[1:] {
		out = append(out, &mir.MInst{Op: Add, Loc: inst.Loc, Def: inst.Def, DefBits: inst.DefBits, Operands: []mir.Operand{mir.RegOperand(inst.Def, inst.DefBits), idx}})
	}
	return out
}

func selArith(op Op) func(*selector, *mir.MInst) []*mir.MInst {
	return func(sel *selector, inst *mir.MInst) []*mir.MInst {
		return []*mir.MInst{
			{Op: Move, Loc: inst.Loc, Def: inst.Def, DefBits: inst.DefBits, Operands: []mir.Operand{inst.Operands[0]}},
			{Op: op, Loc: inst.Loc, Def: inst.Def, DefBits: inst.DefBits, Operands: []mir.Operand{mir.RegOperand(inst.Def, inst.DefBits), inst.Operands[1]}},
		}
	}
}

// selMul lowers to the two-operand x86 imul: operand 0 is moved into the
// def, then Multiply multiplies the def by operand 1 in place.
func selMul(sel *selector, inst *mir.MInst) []*mir.MInst {
	return []*mir.MInst{
		{Op: Move, Loc: inst.Loc, Def: inst.Def, DefBits: inst.DefBits, Operands: []mir.Operand{inst.Operands[0]}},
		{Op: Multiply, Loc: inst.Loc, Def: inst.Def, DefBits: inst.DefBits, Operands: []mir.Operand{mir.RegOperand(inst.Def, inst.DefBits), inst.Operands[1]}},
	}
}

// selDivRem pins the dividend to RAX (idiv/div's cqo/xor-rdx sequence in
// the emitter always divides RDX:RAX, never an arbitrary register pair)
// and reads the quotient back out of RAX or the remainder out of RDX,
// whichever the opcode produces. The generic opcode is kept through to
// the emitter, which special-cases idiv/div mnemonics by signedness --
// avoids a fourth near-duplicate arithmetic opcode in this architecture's
// table.
func selDivRem(sel *selector, inst *mir.MInst) []*mir.MInst {
	bits := inst.DefBits
	result := RAX
	if inst.Op == mir.OpSRem || inst.Op == mir.OpURem {
		result = RDX
	}
	return []*mir.MInst{
		{Op: Move, Loc: inst.Loc, Def: physVReg(RAX), DefBits: bits, Operands: []mir.Operand{inst.Operands[0]}},
		{Op: inst.Op, Loc: inst.Loc, Def: physVReg(result), DefBits: bits, Operands: []mir.Operand{physOperand(RAX, bits), inst.Operands[1]}},
		{Op: Move, Loc: inst.Loc, Def: inst.Def, DefBits: bits, Operands: []mir.Operand{physOperand(result, bits)}},
	}
}

// selShift pins the shift count to CL, the only encoding x86 offers for a
// register shift count (spec.md §4.6's fixed-register operand example).
func selShift(sel *selector, inst *mir.MInst) []*mir.MInst {
	out := []*mir.MInst{{Op: Move, Loc: inst.Loc, Def: inst.Def, DefBits: inst.DefBits, Operands: []mir.Operand{inst.Operands[0]}}}
	count := inst.Operands[1]
	if count.Kind != mir.Immediate {
		out = append(out, &mir.MInst{Op: Move, Loc: inst.Loc, Def: physVReg(RCX), DefBits: 8, Operands: []mir.Operand{count}})
		count = physOperand(RCX, 8)
	}
	out = append(out, &mir.MInst{Op: inst.Op, Loc: inst.Loc, Def: inst.Def, DefBits: inst.DefBits, Operands: []mir.Operand{mir.RegOperand(inst.Def, inst.DefBits), count}})
	return out
}

func selNeg(sel *selector, inst *mir.MInst) []*mir.MInst {
	zero := mir.ImmOperand(0, inst.DefBits)
	return []*mir.MInst{
		{Op: Move, Loc: inst.Loc, Def: inst.Def, DefBits: inst.DefBits, Operands: []mir.Operand{zero}},
		{Op: Sub, Loc: inst.Loc, Def: inst.Def, DefBits: inst.DefBits, Operands: []mir.Operand{mir.RegOperand(inst.Def, inst.DefBits), inst.Operands[0]}},
	}
}

func selNot(sel *selector, inst *mir.MInst) []*mir.MInst {
	// Compl (~x) and boolean Not share a single mask-xor encoding: Not's
	// operand is always an i1, so xor-with-all-ones is equivalent to
	// logical negation at that width.
	mask := mir.ImmOperand(^uint64(0), inst.DefBits)
	return []*mir.MInst{
		{Op: Move, Loc: inst.Loc, Def: inst.Def, DefBits: inst.DefBits, Operands: []mir.Operand{inst.Operands[0]}},
		{Op: XorOp, Loc: inst.Loc, Def: inst.Def, DefBits: inst.DefBits, Operands: []mir.Operand{mir.RegOperand(inst.Def, inst.DefBits), mask}},
	}
}

func selExtend(sel *selector, inst *mir.MInst) []*mir.MInst {
	if inst.Op == mir.OpTrunc {
		return []*mir.MInst{{Op: Move, Loc: inst.Loc, Def: inst.Def, DefBits: inst.DefBits, Operands: []mir.Operand{inst.Operands[0]}}}
	}
	return []*mir.MInst{{Op: MoveSignExtended, Loc: inst.Loc, Def: inst.Def, DefBits: inst.DefBits, Operands: []mir.Operand{inst.Operands[0]}}}
}

var setByteOp = map[mir.Op]Op{
	mir.OpEq:  SetByteIfEqual,
	mir.OpSLt: SetByteIfLessSigned,
	mir.OpULt: SetByteIfLessUnsigned,
	mir.OpSGt: SetByteIfGreaterSigned,
	mir.OpUGt: SetByteIfGreaterUnsigned,
	mir.OpSLe: SetByteIfEqualOrLessSigned,
	mir.OpULe: SetByteIfEqualOrLessUnsigned,
	mir.OpSGe: SetByteIfEqualOrGreaterSigned,
	mir.OpUGe: SetByteIfEqualOrGreaterUnsigned,
}

func selCompare(sel *selector, inst *mir.MInst) []*mir.MInst {
	if inst.Op == mir.OpNe {
		// No SetByteIfNotEqual in the architecture opcode table (spec.md
		// §4.5's list); Ne is Eq negated: compare, sete, then xor $1.
		return []*mir.MInst{
			{Op: Compare, Loc: inst.Loc, Operands: []mir.Operand{inst.Operands[0], inst.Operands[1]}},
			{Op: SetByteIfEqual, Loc: inst.Loc, Def: inst.Def, DefBits: 8},
			{Op: XorOp, Loc: inst.Loc, Def: inst.Def, DefBits: 8, Operands: []mir.Operand{mir.RegOperand(inst.Def, 8), mir.ImmOperand(1, 8)}},
		}
	}
	return []*mir.MInst{
		{Op: Compare, Loc: inst.Loc, Operands: []mir.Operand{inst.Operands[0], inst.Operands[1]}},
		{Op: setByteOp[inst.Op], Loc: inst.Loc, Def: inst.Def, DefBits: 8},
	}
}

func selBranch(sel *selector, inst *mir.MInst) []*mir.MInst {
	return []*mir.MInst{{Op: Jump, Loc: inst.Loc, Def: mir.NoReg, Operands: inst.Operands}}
}

func selCondBranch(sel *selector, inst *mir.MInst) []*mir.MInst {
	cond, then, els := inst.Operands[0], inst.Operands[1], inst.Operands[2]
	return []*mir.MInst{
		{Op: Test, Loc: inst.Loc, Operands: []mir.Operand{cond, cond}},
		{Op: JumpIfZeroFlag, Loc: inst.Loc, Operands: []mir.Operand{els}},
		{Op: Jump, Loc: inst.Loc, Operands: []mir.Operand{then}},
	}
}

func selReturn(sel *selector, inst *mir.MInst) []*mir.MInst {
	var out []*mir.MInst
	if len(inst.Operands) == 1 {
		out = append(out, &mir.MInst{Op: Move, Loc: inst.Loc, Def: physVReg(RETURN), DefBits: inst.Operands[0].Bits, Operands: []mir.Operand{inst.Operands[0]}})
	}
	out = append(out, &mir.MInst{Op: Return, Loc: inst.Loc, Def: mir.NoReg})
	return out
}

func selUnreachable(sel *selector, inst *mir.MInst) []*mir.MInst {
	return []*mir.MInst{{Op: Poison, Loc: inst.Loc, Def: mir.NoReg}}
}

// selPhi keeps the Phi opcode through ISel: it carries no physical
// encoding of its own and is resolved by the register allocator, which
// inserts the parallel-copy moves a Phi's incoming edges require (in the
// same spirit as the teacher's own phifix pass).
func selPhi(sel *selector, inst *mir.MInst) []*mir.MInst {
	return []*mir.MInst{inst}
}

func selCall(sel *selector, inst *mir.MInst) []*mir.MInst {
	var out []*mir.MInst

	argOperands := inst.Operands
	if !inst.CallDirect {
		argOperands = inst.Operands[1:]
	}
	for i, a := range argOperands {
		if i >= len(sel.argRegs) {
			cc.Fatal(inst.Loc, "x86_64.selCall: more than %d integer arguments unimplemented", len(sel.argRegs))
		}
		bits := 64
		if i < len(inst.CallArgBits) {
			bits = inst.CallArgBits[i]
		}
		out = append(out, &mir.MInst{Op: Move, Loc: inst.Loc, Def: physVReg(sel.argRegs[i]), DefBits: bits, Operands: []mir.Operand{a}})
	}

	call := &mir.MInst{
		Loc: inst.Loc, Def: mir.NoReg,
		CallDirect: inst.CallDirect, CallTarget: inst.CallTarget, CallSymbol: inst.CallSymbol,
	}
	if !inst.CallDirect {
		call.Operands = []mir.Operand{inst.Operands[0]}
	}

	if inst.TailCall {
		call.Op = Jump
		out = append(out, call)
		return out
	}

	call.Op = Call
	out = append(out, call)

	if inst.Def != mir.NoReg {
		out = append(out, &mir.MInst{Op: Move, Loc: inst.Loc, Def: inst.Def, DefBits: inst.DefBits, Operands: []mir.Operand{physOperand(RETURN, inst.DefBits)}})
	}

	return out
}

// selMemCopy expands a fixed-size MemCopy into 8/4/2/1-byte chunked
// dereference moves (spec.md §4.3's over-sized load/store lowering feeds
// this). Addresses are recomputed per chunk via Add on scratch copies of
// the base pointers rather than folding an addressing-mode offset, since
// this architecture's MIR operand shape (spec.md §3.5) has no base+offset
// memory operand of its own.
func selMemCopy(sel *selector, inst *mir.MInst) []*mir.MInst {
	dest, src := inst.Operands[0], inst.Operands[1]
	remaining := inst.MemBytes
	var out []*mir.MInst
	var offset uint64

	chunk := func(size uint64, bits int) {
		destAddr := sel.mf.NewVReg()
		srcAddr := sel.mf.NewVReg()
		tmp := sel.mf.NewVReg()

		out = append(out,
			&mir.MInst{Op: Move, Loc: inst.Loc, Def: destAddr, DefBits: 64, Operands: []mir.Operand{dest}},
			&mir.MInst{Op: Move, Loc: inst.Loc, Def: srcAddr, DefBits: 64, Operands: []mir.Operand{src}},
		)
		if offset != 0 {
			out = append(out,
				&mir.MInst{Op: Add, Loc: inst.Loc, Def: destAddr, DefBits: 64, Operands: []mir.Operand{mir.RegOperand(destAddr, 64), mir.ImmOperand(offset, 64)}},
				&mir.MInst{Op: Add, Loc: inst.Loc, Def: srcAddr, DefBits: 64, Operands: []mir.Operand{mir.RegOperand(srcAddr, 64), mir.ImmOperand(offset, 64)}},
			)
		}
		out = append(out,
			&mir.MInst{Op: MoveDereferenceRHS, Loc: inst.Loc, Def: tmp, DefBits: bits, Operands: []mir.Operand{mir.RegOperand(srcAddr, 64)}},
			&mir.MInst{Op: MoveDereferenceLHS, Loc: inst.Loc, Def: mir.NoReg, Operands: []mir.Operand{mir.RegOperand(tmp, bits), mir.RegOperand(destAddr, 64)}},
		)

		offset += size
		remaining -= size
	}

	for remaining >= 8 {
		chunk(8, 64)
	}
	if remaining >= 4 {
		chunk(4, 32)
	}
	if remaining >= 2 {
		chunk(2, 16)
	}
	if remaining >= 1 {
		chunk(1, 8)
	}

	return out
}
