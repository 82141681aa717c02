package x86_64

import (
	"github.com/lcc-go/lcc/cc"
	"github.com/lcc-go/lcc/mir"
)

// Reg is a physical x86-64 register id (spec.md §4.5's architecture
// register file), plus a synthetic RETURN placeholder used pre-RA to mark
// a value that must end up in the ABI return register -- the allocator
// replaces every RETURN occurrence with MachineDescription.ReturnRegister
// as its final step (spec.md §4.6).
type Reg int

const (
	RAX Reg = iota
	RBX
	RCX
	RDX
	RSI
	RDI
	RBP
	RSP
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
	RIP
	RETURN
)

const NoReg Reg = -1

var regNames = [...]string{
	RAX: "rax", RBX: "rbx", RCX: "rcx", RDX: "rdx", RSI: "rsi", RDI: "rdi",
	RBP: "rbp", RSP: "rsp", R8: "r8", R9: "r9", R10: "r10", R11: "r11",
	R12: "r12", R13: "r13", R14: "r14", R15: "r15", RIP: "rip", RETURN: "x86_64.RETURN",
}

func (r Reg) String() string {
	if int(r) >= 0 && int(r) < len(regNames) && regNames[r] != "" {
		return regNames[r]
	}
	return "x86_64.INVALID"
}

// byWidth[reg][size-class] is the AT&T register spelling at a given
// operand width; size-class 0=8, 1=16, 2=32, 3=64 bits.
var byWidth = [...][4]string{
	RAX: {"al", "ax", "eax", "rax"},
	RBX: {"bl", "bx", "ebx", "rbx"},
	RCX: {"cl", "cx", "ecx", "rcx"},
	RDX: {"dl", "dx", "edx", "rdx"},
	RSI: {"sil", "si", "esi", "rsi"},
	RDI: {"dil", "di", "edi", "rdi"},
	RBP: {"bpl", "bp", "ebp", "rbp"},
	RSP: {"spl", "sp", "esp", "rsp"},
	R8:  {"r8b", "r8w", "r8d", "r8"},
	R9:  {"r9b", "r9w", "r9d", "r9"},
	R10: {"r10b", "r10w", "r10d", "r10"},
	R11: {"r11b", "r11w", "r11d", "r11"},
	R12: {"r12b", "r12w", "r12d", "r12"},
	R13: {"r13b", "r13w", "r13d", "r13"},
	R14: {"r14b", "r14w", "r14d", "r14"},
	R15: {"r15b", "r15w", "r15d", "r15"},
	RIP: {"ip", "ip", "eip", "rip"},
}

// Name returns r's AT&T spelling at the given operand width in bits (8,
// 16, 32, or 64); widths in between round up.
func Name(r Reg, bits int) string {
	if r == RETURN {
		cc.Fatal(cc.Loc{}, "x86_64.Name: RETURN placeholder was not replaced by register allocation")
	}
	cls := widthClass(bits)
	if int(r) < 0 || int(r) >= len(byWidth) || byWidth[r][cls] == "" {
		cc.Fatal(cc.Loc{}, "x86_64.Name: no spelling for %s at %d bits", r, bits)
	}
	return byWidth[r][cls]
}

// PhysicalRegister decodes a Register operand's Reg field after Allocate
// has run, recovering the physical register it was resolved to.
func PhysicalRegister(v mir.VReg) Reg {
	if !isPhysVReg(v) {
		cc.Fatal(cc.Loc{}, "x86_64.PhysicalRegister: %d was not resolved by register allocation", v)
	}
	return physFromVReg(v)
}

func widthClass(bits int) int {
	switch {
	case bits <= 8:
		return 0
	case bits <= 16:
		return 1
	case bits <= 32:
		return 2
	default:
		return 3
	}
}

// CallerSaved/volatile registers clobbered by any Call, per §4.6 -- used
// by the allocator to force a spill-before-call for anything live across
// one. Callee-saved registers (RBX, RBP, R12-R15 in both conventions) are
// intentionally not modelled as allocatable (spec.md §9's REDESIGN FLAGS:
// "Register allocator ignores callee-saved registers" is kept as-is here,
// not fixed, per the explicit redesign decision).
var Volatile = []Reg{RAX, RCX, RDX, RSI, RDI, R8, R9, R10, R11}

// SysVAllocatable is the Linux/sysv calling convention's allocatable
// register set (spec.md §4.6).
var SysVAllocatable = []Reg{RAX, RCX, RDX, RSI, RDI, R8, R9, R10, R11}

// Win64Allocatable is the Windows x64 calling convention's allocatable
// register set (spec.md §4.6): sysv's set minus RSI/RDI.
var Win64Allocatable = []Reg{RAX, RCX, RDX, R8, R9, R10, R11}

// SysVArgRegs/Win64ArgRegs are each convention's integer argument-passing
// registers in order.
var SysVArgRegs = []Reg{RDI, RSI, RDX, RCX, R8, R9}
var Win64ArgRegs = []Reg{RCX, RDX, R8, R9}

const SysVReturnReg = RAX
const Win64ReturnReg = RAX
