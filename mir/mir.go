// Package mir implements the target-neutral machine IR that sits between
// ABI lowering and instruction selection (spec.md §3.5, §4.4): a flat
// register-based representation where every operand is a small tagged
// struct rather than a pointer into the SSA IR, so that ISel and register
// allocation can rewrite opcodes and operands in place.
package mir

import "github.com/lcc-go/lcc/cc"

// VReg is a virtual register id, fresh per MFunction. NoReg marks an
// instruction with no result (Store, Branch, terminators, void Call).
type VReg int

const NoReg VReg = -1

// Op is an instruction opcode. Values below ArchStart are generic,
// produced directly from ir.Kind by Build; an architecture package
// defines its own opcodes starting at ArchStart (spec.md §3.5).
type Op int

const (
	OpIntegerConstant Op = iota
	OpArrayConstant
	OpPoison
	OpGlobalVariable
	OpFuncRef
	OpLitInteger
	OpLitString
	OpAlloca
	OpLoad
	OpStore
	OpGetElementPtr
	OpCopy
	OpAdd
	OpSub
	OpMul
	OpSDiv
	OpUDiv
	OpSRem
	OpURem
	OpShl
	OpShr
	OpSar
	OpAnd
	OpOr
	OpXor
	OpNeg
	OpCompl
	OpNot
	OpZExt
	OpSExt
	OpTrunc
	OpBitcast
	OpEq
	OpNe
	OpSLt
	OpSLe
	OpSGt
	OpSGe
	OpULt
	OpULe
	OpUGt
	OpUGe
	OpBranch
	OpCondBranch
	OpReturn
	OpUnreachable
	OpPhi
	OpCall
	OpMemCopy

	// ArchStart is the first opcode value an architecture package may use
	// for its own, ISel-introduced opcodes.
	ArchStart
)

var opNames = [...]string{
	OpIntegerConstant: "integer_constant", OpArrayConstant: "array_constant", OpPoison: "poison",
	OpGlobalVariable: "global_variable", OpFuncRef: "func_ref", OpLitInteger: "lit_integer",
	OpLitString: "lit_string", OpAlloca: "alloca", OpLoad: "load", OpStore: "store",
	OpGetElementPtr: "gep", OpCopy: "copy",
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpSDiv: "sdiv", OpUDiv: "udiv",
	OpSRem: "srem", OpURem: "urem", OpShl: "shl", OpShr: "shr", OpSar: "sar",
	OpAnd: "and", OpOr: "or", OpXor: "xor",
	OpNeg: "neg", OpCompl: "compl", OpNot: "not", OpZExt: "zext", OpSExt: "sext",
	OpTrunc: "trunc", OpBitcast: "bitcast",
	OpEq: "eq", OpNe: "ne", OpSLt: "slt", OpSLe: "sle", OpSGt: "sgt", OpSGe: "sge",
	OpULt: "ult", OpULe: "ule", OpUGt: "ugt", OpUGe: "uge",
	OpBranch: "branch", OpCondBranch: "condbranch", OpReturn: "return",
	OpUnreachable: "unreachable", OpPhi: "phi", OpCall: "call", OpMemCopy: "memcopy",
}

func (o Op) String() string {
	if int(o) >= 0 && int(o) < len(opNames) && opNames[o] != "" {
		return opNames[o]
	}
	return "unknown_op"
}

// OperandKind tags the variant carried by an Operand (spec.md §3.5).
type OperandKind int

const (
	Register OperandKind = iota
	Immediate
	Local
	Global
	BlockRef
	FuncSym
)

// Operand is one MInst input or a Phi incoming value. Exactly one of the
// payload fields is meaningful, selected by Kind.
type Operand struct {
	Kind OperandKind

	Reg  VReg
	Bits int // size in bits, meaningful for Register and Immediate

	Imm uint64

	Local int // frame-slot index

	Sym string // Global: linker symbol name

	Block *MBlock
	Func  *MFunction
}

func RegOperand(r VReg, bits int) Operand { return Operand{Kind: Register, Reg: r, Bits: bits} }
func ImmOperand(v uint64, bits int) Operand {
	return Operand{Kind: Immediate, Imm: v, Bits: bits}
}
func BlockOperand(b *MBlock) Operand  { return Operand{Kind: BlockRef, Block: b} }
func FuncOperand(f *MFunction) Operand { return Operand{Kind: FuncSym, Func: f} }
func GlobalOperand(sym string) Operand { return Operand{Kind: Global, Sym: sym} }
func LocalOperand(slot int) Operand   { return Operand{Kind: Local, Local: slot} }

// PhiIncoming is one (predecessor, value) pair of a Phi MInst, mirroring
// ir.PhiArg at the MIR level.
type PhiIncoming struct {
	Pred  *MBlock
	Value Operand
}

// MInst is one machine instruction: an opcode, an optional result
// register, and an ordered operand list. Call and Phi carry additional
// payload the generic Operand shape cannot express.
type MInst struct {
	Op  Op
	Loc cc.Loc

	Def     VReg
	DefBits int

	Operands []Operand

	// Call payload.
	CallDirect  bool
	CallTarget  *MFunction // nil when the callee has no body (extern)
	CallSymbol  string     // always set for a direct call, even when CallTarget is nil
	CallArgBits []int
	TailCall    bool

	// MemCopy payload.
	MemBytes uint64

	// Phi payload.
	Incoming []PhiIncoming
}

// MBlock is a straight-line list of MInsts; the last one is always a
// terminator (Branch, CondBranch, Return, Unreachable) once Build has run.
type MBlock struct {
	Name  string
	Insts []*MInst
}

// FrameSlot is one fixed-size, fixed-alignment stack slot, indexed by a
// Local operand.
type FrameSlot struct {
	Size  uint64
	Align uint64
}

// MFunction mirrors ir.Function at the machine level: a name, a stack
// frame descriptor, and a list of MBlocks (spec.md §3.5).
type MFunction struct {
	Name string

	ParamRegs  []VReg
	ParamBits  []int
	ReturnBits int // 0 when the function returns void

	Blocks []*MBlock
	Frame  []FrameSlot

	NextVReg VReg
}

func (f *MFunction) Entry() *MBlock {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// NewVReg allocates and returns a fresh virtual register for f.
func (f *MFunction) NewVReg() VReg {
	r := f.NextVReg
	f.NextVReg++
	return r
}

// NewFrameSlot reserves a stack slot of the given size/alignment and
// returns its Local index.
func (f *MFunction) NewFrameSlot(size, align uint64) int {
	f.Frame = append(f.Frame, FrameSlot{Size: size, Align: align})
	return len(f.Frame) - 1
}
