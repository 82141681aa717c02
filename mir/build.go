package mir

import (
	"github.com/lcc-go/lcc/cc"
	"github.com/lcc-go/lcc/ir"
	"github.com/lcc-go/lcc/target"
	"github.com/lcc-go/lcc/types"
)

// Build lowers every non-extern Function of m into an MFunction (spec.md
// §4.4): each IR Value gets a fresh virtual register, and each IR
// instruction becomes one MInst carrying a generic opcode and operands
// referencing those virtual-register ids. Constants become Immediate
// operands, block references become Block operands, and function
// references become Function operands.
func Build(cctx *cc.Context, m *ir.Module, tgt *target.Target) []*MFunction {
	var defined []*ir.Function
	shells := map[*ir.Function]*MFunction{}
	var order []*MFunction

	for _, f := range m.Functions() {
		if f.IsExtern() {
			continue
		}
		mf := &MFunction{Name: f.Name()}
		shells[f] = mf
		order = append(order, mf)
		defined = append(defined, f)
	}

	for _, f := range defined {
		buildFunction(cctx, f, shells[f], shells, tgt)
	}

	return order
}

func buildFunction(cctx *cc.Context, f *ir.Function, mf *MFunction, shells map[*ir.Function]*MFunction, tgt *target.Target) {
	vregs := map[*ir.Instruction]VReg{}

	for _, p := range f.Params() {
		r := mf.NewVReg()
		vregs[p] = r
		mf.ParamRegs = append(mf.ParamRegs, r)
		mf.ParamBits = append(mf.ParamBits, bitsOf(p.Type(), tgt))
	}
	if ret := f.Type().Return(); ret.Kind() != types.Void {
		mf.ReturnBits = bitsOf(ret, tgt)
	}

	blocks := map[*ir.Block]*MBlock{}
	for _, b := range f.Blocks() {
		mb := &MBlock{Name: b.Name()}
		blocks[b] = mb
		mf.Blocks = append(mf.Blocks, mb)
	}

	// Pre-assign virtual registers to every value-producing instruction so
	// forward references (a Phi's incoming value defined later in program
	// order, a Branch to a not-yet-visited block) resolve on first sight.
	for _, b := range f.Blocks() {
		for _, inst := range b.Instructions() {
			if producesValue(inst) {
				vregs[inst] = mf.NewVReg()
			}
		}
	}

	operand := func(v *ir.Instruction) Operand {
		switch v.Kind() {
		case ir.IntegerConstant, ir.LitInteger:
			return ImmOperand(v.Imm(), bitsOf(v.Type(), tgt))
		case ir.FuncRef:
			return funcRefOperand(v.FuncRefTarget(), shells)
		case ir.GlobalVariable:
			return GlobalOperand(v.Global().Name)
		default:
			return RegOperand(vregs[v], bitsOf(v.Type(), tgt))
		}
	}

	for _, b := range f.Blocks() {
		mb := blocks[b]
		for _, inst := range b.Instructions() {
			mb.Insts = append(mb.Insts, buildInst(inst, mf, blocks, shells, operand, vregs, tgt))
		}
	}
}

func buildInst(inst *ir.Instruction, mf *MFunction, blocks map[*ir.Block]*MBlock, shells map[*ir.Function]*MFunction, operand func(*ir.Instruction) Operand, vregs map[*ir.Instruction]VReg, tgt *target.Target) *MInst {
	m := &MInst{Loc: inst.Loc(), Def: NoReg}
	if producesValue(inst) {
		m.Def = vregs[inst]
		m.DefBits = bitsOf(inst.Type(), tgt)
	}

	ops := inst.Operands()

	switch inst.Kind() {
	case ir.IntegerConstant:
		m.Op = OpIntegerConstant
		m.Operands = []Operand{ImmOperand(inst.Imm(), bitsOf(inst.Type(), tgt))}
	case ir.ArrayConstant:
		m.Op = OpArrayConstant
		for _, e := range ops {
			m.Operands = append(m.Operands, operand(e))
		}
	case ir.Poison:
		m.Op = OpPoison
	case ir.GlobalVariable:
		m.Op = OpGlobalVariable
		m.Operands = []Operand{GlobalOperand(inst.Global().Name)}
	case ir.FuncRef:
		m.Op = OpFuncRef
		m.Operands = []Operand{funcRefOperand(inst.FuncRefTarget(), shells)}
	case ir.LitInteger:
		m.Op = OpLitInteger
		m.Operands = []Operand{ImmOperand(inst.Imm(), bitsOf(inst.Type(), tgt))}
	case ir.LitString:
		m.Op = OpLitString
	case ir.Alloca:
		slot := mf.NewFrameSlot(inst.ElemType().Size(tgt), inst.ElemType().Align(tgt))
		m.Op = OpAlloca
		m.Operands = []Operand{LocalOperand(slot)}
	case ir.Load:
		m.Op = OpLoad
		m.Operands = []Operand{operand(ops[0])}
	case ir.Store:
		m.Op = OpStore
		m.Operands = []Operand{operand(ops[0]), operand(ops[1])}
	case ir.GetElementPtr:
		m.Op = OpGetElementPtr
		for _, o := range ops {
			m.Operands = append(m.Operands, operand(o))
		}
	case ir.Copy:
		m.Op = OpCopy
		m.Operands = []Operand{operand(ops[0])}
	case ir.Add, ir.Sub, ir.Mul, ir.SDiv, ir.UDiv, ir.SRem, ir.URem, ir.Shl, ir.Shr, ir.Sar, ir.And, ir.Or, ir.Xor,
		ir.Eq, ir.Ne, ir.SLt, ir.SLe, ir.SGt, ir.SGe, ir.ULt, ir.ULe, ir.UGt, ir.UGe:
		m.Op = binOp(inst.Kind())
		m.Operands = []Operand{operand(ops[0]), operand(ops[1])}
	case ir.Neg, ir.Compl, ir.Not, ir.ZExt, ir.SExt, ir.Trunc, ir.Bitcast:
		m.Op = unOp(inst.Kind())
		m.Operands = []Operand{operand(ops[0])}
	case ir.Branch:
		m.Op = OpBranch
		m.Operands = []Operand{BlockOperand(blocks[inst.BranchTarget()])}
	case ir.CondBranch:
		m.Op = OpCondBranch
		m.Operands = []Operand{operand(ops[0]), BlockOperand(blocks[inst.CondThen()]), BlockOperand(blocks[inst.CondElse()])}
	case ir.Return:
		m.Op = OpReturn
		if len(ops) == 1 {
			m.Operands = []Operand{operand(ops[0])}
		}
	case ir.Unreachable:
		m.Op = OpUnreachable
	case ir.Phi:
		m.Op = OpPhi
		for _, a := range inst.PhiArgs() {
			m.Incoming = append(m.Incoming, PhiIncoming{Pred: blocks[a.Pred], Value: operand(a.Value)})
		}
	case ir.Call:
		m.Op = OpCall
		c := inst.Call()
		m.TailCall = c.TailCall
		if c.IsIndirect {
			m.Operands = append(m.Operands, operand(c.CalleeValue))
			for _, a := range ops[1:] {
				m.Operands = append(m.Operands, operand(a))
				m.CallArgBits = append(m.CallArgBits, bitsOf(a.Type(), tgt))
			}
		} else {
			m.CallDirect = true
			m.CallTarget = shells[c.CalleeFunction]
			m.CallSymbol = c.CalleeFunction.Name()
			for _, a := range ops {
				m.Operands = append(m.Operands, operand(a))
				m.CallArgBits = append(m.CallArgBits, bitsOf(a.Type(), tgt))
			}
		}
	case ir.MemCopy:
		m.Op = OpMemCopy
		m.Operands = []Operand{operand(ops[0]), operand(ops[1])}
		m.MemBytes = inst.MemCopyBytes()
	default:
		cc.Fatal(inst.Loc(), "mir.Build: unsupported instruction kind %s", inst.Kind())
	}

	return m
}

func funcRefOperand(f *ir.Function, shells map[*ir.Function]*MFunction) Operand {
	return Operand{Kind: FuncSym, Func: shells[f], Sym: f.Name()}
}

func producesValue(inst *ir.Instruction) bool {
	return inst.Type().Kind() != types.Void
}

func bitsOf(t *types.Type, tgt *target.Target) int {
	if t.Kind() == types.Integer {
		return int(t.Bits())
	}
	if t.Kind() == types.Void {
		return 0
	}
	return int(t.Size(tgt)) * 8
}

func binOp(k ir.Kind) Op {
	switch k {
	case ir.Add:
		return OpAdd
	case ir.Sub:
		return OpSub
	case ir.Mul:
		return OpMul
	case ir.SDiv:
		return OpSDiv
	case ir.UDiv:
		return OpUDiv
	case ir.SRem:
		return OpSRem
	case ir.URem:
		return OpURem
	case ir.Shl:
		return OpShl
	case ir.Shr:
		return OpShr
	case ir.Sar:
		return OpSar
	case ir.And:
		return OpAnd
	case ir.Or:
		return OpOr
	case ir.Xor:
		return OpXor
	case ir.Eq:
		return OpEq
	case ir.Ne:
		return OpNe
	case ir.SLt:
		return OpSLt
	case ir.SLe:
		return OpSLe
	case ir.SGt:
		return OpSGt
	case ir.SGe:
		return OpSGe
	case ir.ULt:
		return OpULt
	case ir.ULe:
		return OpULe
	case ir.UGt:
		return OpUGt
	case ir.UGe:
		return OpUGe
	default:
		cc.Fatal(cc.Loc{}, "mir.binOp: not a binary kind %s", k)
		return 0
	}
}

func unOp(k ir.Kind) Op {
	switch k {
	case ir.Neg:
		return OpNeg
	case ir.Compl:
		return OpCompl
	case ir.Not:
		return OpNot
	case ir.ZExt:
		return OpZExt
	case ir.SExt:
		return OpSExt
	case ir.Trunc:
		return OpTrunc
	case ir.Bitcast:
		return OpBitcast
	default:
		cc.Fatal(cc.Loc{}, "mir.unOp: not a unary kind %s", k)
		return 0
	}
}
