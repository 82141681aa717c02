// Package x86_64 implements the architecture-specific stages of the
// backend named in spec.md §4.5-4.7: instruction selection from generic
// MIR, register allocation over the x86-64 physical register file, and
// AT&T-syntax text emission (object emission lives in package emit, which
// consumes the same post-RA MIR).
package x86_64

import "github.com/lcc-go/lcc/mir"

// Op is an x86-64-specific MIR opcode, numbered starting at mir.ArchStart
// so it shares the same opcode space as the generic opcodes it replaces
// (spec.md §3.5, §4.5).
type Op = mir.Op

const (
	Poison Op = mir.ArchStart + iota
	Return
	Jump
	Call
	Move
	MoveDereferenceLHS
	MoveDereferenceRHS
	MoveSignExtended
	LoadEffectiveAddress
	Add
	Sub
	Multiply
	And
	OrOp
	XorOp
	Push
	Pop
	Test
	JumpIfZeroFlag
	Compare
	StoreLocal
	SetByteIfEqual
	SetByteIfLessUnsigned
	SetByteIfLessSigned
	SetByteIfGreaterUnsigned
	SetByteIfGreaterSigned
	SetByteIfEqualOrLessUnsigned
	SetByteIfEqualOrLessSigned
	SetByteIfEqualOrGreaterUnsigned
	SetByteIfEqualOrGreaterSigned
)

var mnemonics = map[Op]string{
	Poison:               "x86_64.poison",
	Return:               "ret",
	Jump:                 "jmp",
	Call:                 "call",
	Move:                 "mov",
	MoveDereferenceLHS:   "mov",
	MoveDereferenceRHS:   "mov",
	MoveSignExtended:     "movsx",
	LoadEffectiveAddress: "lea",
	Add:                  "add",
	Sub:                  "sub",
	Multiply:             "imul",
	And:                  "and",
	OrOp:                 "or",
	XorOp:                "xor",
	Push:                 "push",
	Pop:                  "pop",
	Test:                 "test",
	JumpIfZeroFlag:       "jz",
	Compare:              "cmp",
	StoreLocal:           "mov",

	SetByteIfEqual:                   "sete",
	SetByteIfLessUnsigned:            "setb",
	SetByteIfLessSigned:              "setl",
	SetByteIfGreaterUnsigned:         "seta",
	SetByteIfGreaterSigned:           "setg",
	SetByteIfEqualOrLessUnsigned:     "setbe",
	SetByteIfEqualOrLessSigned:       "setle",
	SetByteIfEqualOrGreaterUnsigned:  "setae",
	SetByteIfEqualOrGreaterSigned:    "setge",
}

// Mnemonic returns op's AT&T base mnemonic, before any size suffix the
// emitter appends (spec.md §4.7).
func Mnemonic(op Op) string {
	if m, ok := mnemonics[op]; ok {
		return m
	}
	return op.String()
}

// SizeSuffix maps an operand width in bits to the AT&T mnemonic suffix.
func SizeSuffix(bits int) byte {
	switch widthClass(bits) {
	case 0:
		return 'b'
	case 1:
		return 'w'
	case 2:
		return 'l'
	default:
		return 'q'
	}
}
