// Package ir implements lcc's typed SSA intermediate representation:
// Module -> Function -> Block -> Instruction, with every Instruction
// doubling as an SSA Value carrying a use-list.
package ir

import (
	"github.com/lcc-go/lcc/cc"
	"github.com/lcc-go/lcc/types"
)

type ID int

// Kind is the tag of the Instruction variant. Instruction is modelled as a
// single struct carrying every field any kind might need (akin to how
// cmd/compile/internal/ssa.Value or this project's own front-end Exprs
// arrays store a polymorphic payload), rather than as a base-class
// hierarchy with downcasts, per the core's "polymorphic instruction kinds"
// design note.
type Kind int

const (
	// Constants / refs.
	IntegerConstant Kind = iota
	ArrayConstant
	Poison
	GlobalVariable
	FuncRef
	LitInteger
	LitString
	Parameter

	// Memory.
	Alloca
	Load
	Store
	GetElementPtr
	Copy

	// Arithmetic / bitwise.
	Add
	Sub
	Mul
	SDiv
	UDiv
	SRem
	URem
	Shl
	Shr
	Sar
	And
	Or
	Xor

	// Unary.
	Neg
	Compl
	Not
	ZExt
	SExt
	Trunc
	Bitcast

	// Compares.
	Eq
	Ne
	SLt
	SLe
	SGt
	SGe
	ULt
	ULe
	UGt
	UGe

	// Control flow.
	Branch
	CondBranch
	Return
	Unreachable
	Phi

	// Calls.
	Call

	// Intrinsics.
	MemCopy
)

var kindNames = [...]string{
	IntegerConstant: "integer_constant", ArrayConstant: "array_constant", Poison: "poison",
	GlobalVariable: "global_variable", FuncRef: "func_ref", LitInteger: "lit_integer",
	LitString: "lit_string", Parameter: "parameter",
	Alloca: "alloca", Load: "load", Store: "store", GetElementPtr: "gep", Copy: "copy",
	Add: "add", Sub: "sub", Mul: "mul", SDiv: "sdiv", UDiv: "udiv", SRem: "srem", URem: "urem",
	Shl: "shl", Shr: "shr", Sar: "sar", And: "and", Or: "or", Xor: "xor",
	Neg: "neg", Compl: "compl", Not: "not", ZExt: "zext", SExt: "sext", Trunc: "trunc", Bitcast: "bitcast",
	Eq: "eq", Ne: "ne", SLt: "slt", SLe: "sle", SGt: "sgt", SGe: "sge", ULt: "ult", ULe: "ule", UGt: "ugt", UGe: "uge",
	Branch: "branch", CondBranch: "condbranch", Return: "return", Unreachable: "unreachable", Phi: "phi",
	Call: "call", MemCopy: "memcopy",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "unknown_kind"
}

// IsBinary reports whether k is one of the two-operand arithmetic/bitwise
// or compare kinds, for which §4.2.1's constant-folding and identity
// rewrites apply uniformly.
func (k Kind) IsBinary() bool {
	switch k {
	case Add, Sub, Mul, SDiv, UDiv, SRem, URem, Shl, Shr, Sar, And, Or, Xor,
		Eq, Ne, SLt, SLe, SGt, SGe, ULt, ULe, UGt, UGe:
		return true
	default:
		return false
	}
}

func (k Kind) IsTerminator() bool {
	switch k {
	case Branch, CondBranch, Return, Unreachable:
		return true
	default:
		return false
	}
}

func (k Kind) IsCompare() bool {
	switch k {
	case Eq, Ne, SLt, SLe, SGt, SGe, ULt, ULe, UGt, UGe:
		return true
	default:
		return false
	}
}

// PhiArg is one (predecessor-block, value) pair of a Phi instruction.
type PhiArg struct {
	Pred  *Block
	Value *Instruction
}

// CallInfo is the Call-kind payload described in spec.md §3.2.
type CallInfo struct {
	IsIndirect      bool
	TailCall        bool
	CalleeFunction  *Function // set when !IsIndirect
	CalleeValue     *Instruction
}

// Linkage controls whether a Function/GlobalVariable survives the
// reachability pass (spec.md §4.1) regardless of whether it is referenced.
type Linkage int

const (
	Internal Linkage = iota
	External
)

// Instruction is both a node in a Block's instruction list and an SSA
// Value: every other Instruction that uses it as an operand is recorded in
// its use-list, maintained exclusively through AddUse/RemoveUse (never by
// direct slice surgery) per invariant 3 (spec.md §3.3) and the "Use-lists"
// design note.
type Instruction struct {
	id    ID
	kind  Kind
	typ   *types.Type
	block *Block
	loc   cc.Loc

	operands []*Instruction
	uses     []*Instruction

	// Kind-specific payload. Populated selectively; see the accessor
	// methods below for which kinds set which fields.
	imm        uint64   // IntegerConstant, LitInteger (as parsed width)
	str        string   // LitString, GlobalVariable/FuncRef/Parameter name
	elements   []*Instruction // ArrayConstant
	global     *GlobalInfo
	funcRef    *Function
	paramIndex int
	gepIndices []*Instruction
	phiArgs    []PhiArg
	branchTgt  *Block
	condThen   *Block
	condElse   *Block
	call       *CallInfo
	memBytes   uint64
	elemType   *types.Type // Alloca: type of the slot being allocated
}

// GlobalInfo is the GlobalVariable-kind payload: a named static variable or
// constant, owned by the Module.
type GlobalInfo struct {
	Name    string
	Linkage Linkage
	Init    *Instruction // optional initializer, module scope
}

func (v *Instruction) ID() ID              { return v.id }
func (v *Instruction) Kind() Kind          { return v.kind }
func (v *Instruction) Type() *types.Type   { return v.typ }
func (v *Instruction) Block() *Block       { return v.block }
func (v *Instruction) Loc() cc.Loc         { return v.loc }
func (v *Instruction) Operands() []*Instruction { return v.operands }
func (v *Instruction) Uses() []*Instruction { return v.uses }

func (v *Instruction) Imm() uint64             { return v.imm }
func (v *Instruction) Elements() []*Instruction { return v.elements }
func (v *Instruction) Global() *GlobalInfo     { return v.global }
func (v *Instruction) FuncRefTarget() *Function { return v.funcRef }
func (v *Instruction) Name() string            { return v.str }
func (v *Instruction) ParamIndex() int         { return v.paramIndex }
func (v *Instruction) GEPIndices() []*Instruction { return v.gepIndices }
func (v *Instruction) PhiArgs() []PhiArg       { return v.phiArgs }
func (v *Instruction) SetPhiArgs(a []PhiArg)   { v.phiArgs = a }
func (v *Instruction) BranchTarget() *Block    { return v.branchTgt }
func (v *Instruction) SetBranchTarget(b *Block) { v.branchTgt = b }
func (v *Instruction) CondThen() *Block        { return v.condThen }
func (v *Instruction) CondElse() *Block        { return v.condElse }
func (v *Instruction) SetCondThen(b *Block)    { v.condThen = b }
func (v *Instruction) SetCondElse(b *Block)    { v.condElse = b }
func (v *Instruction) Call() *CallInfo         { return v.call }
func (v *Instruction) MemCopyBytes() uint64    { return v.memBytes }
func (v *Instruction) ElemType() *types.Type   { return v.elemType }

// HasOperand reports whether this instruction references other as an
// operand (as opposed to a block reference like a Branch target, which is
// not a use).
func (v *Instruction) HasOperand(other *Instruction) bool {
	for _, o := range v.operands {
		if o == other {
			return true
		}
	}
	return false
}

// AddUse registers user as referencing v. It must be called exactly once
// per operand slot that references v; duplicate operand slots referencing
// the same v (e.g. Add(%x, %x)) call AddUse twice, producing two entries,
// matching invariant 3's "for each operand v of i, i is in uses(v)".
func AddUse(v *Instruction, user *Instruction) {
	if v == nil {
		return
	}
	v.uses = append(v.uses, user)
}

// RemoveUse removes a single occurrence of user from v's use-list.
func RemoveUse(v *Instruction, user *Instruction) {
	if v == nil {
		return
	}
	for i, u := range v.uses {
		if u == user {
			v.uses = append(v.uses[:i], v.uses[i+1:]...)
			return
		}
	}
}

// SetOperand replaces the operand at idx, updating use-lists on both the
// old and new value.
func (v *Instruction) SetOperand(idx int, newVal *Instruction) {
	old := v.operands[idx]
	RemoveUse(old, v)
	v.operands[idx] = newVal
	AddUse(newVal, v)
}

// ReplaceAllUsesWith rewrites every user of v to reference repl instead,
// and clears v's use-list. Used pervasively by the optimizer (constant
// folding, mem2reg, jump threading, phi simplification).
func ReplaceAllUsesWith(v *Instruction, repl *Instruction) {
	if v == repl {
		return
	}
	users := append([]*Instruction(nil), v.uses...)
	for _, u := range users {
		for i, o := range u.operands {
			if o == v {
				u.SetOperand(i, repl)
			}
		}
		for i, a := range u.phiArgs {
			if a.Value == v {
				u.phiArgs[i].Value = repl
				AddUse(repl, u)
			}
		}
	}
	v.uses = nil
}

// Erase removes v from its block's instruction list. v must have an empty
// use-list (checked by callers; violating it is an ICE, since a dangling
// use would break invariant 3).
func (v *Instruction) Erase() {
	if len(v.uses) != 0 {
		cc.Fatal(v.loc, "erasing instruction %d (%s) with non-empty use-list", v.id, v.kind)
	}
	for _, o := range v.operands {
		RemoveUse(o, v)
	}
	for _, a := range v.phiArgs {
		RemoveUse(a.Value, v)
	}
	v.block.removeInstruction(v)
}
