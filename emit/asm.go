// Package emit implements the backend's three output formats (spec.md
// §4.7, §6): AT&T assembly text directly from post-allocation MIR, and
// ELF64/COFF relocatable objects built on top of the object package's
// generic section/symbol/relocation model.
package emit

import (
	"fmt"
	"io"

	"github.com/lcc-go/lcc/cc"
	"github.com/lcc-go/lcc/codegen/x86_64"
	"github.com/lcc-go/lcc/mir"
)

// WriteAssembly renders every function's post-ISel, post-allocation MIR as
// AT&T-syntax x86-64 assembly, mirroring the teacher's fmt.Appendf-based
// codegenFunc (compiler/back/back4.go) generalized from ARM64 mnemonics
// and registers to this architecture's.
func WriteAssembly(w io.Writer, fns []*mir.MFunction) error {
	var b []byte

	for _, mf := range fns {
		b = writeFunction(b, mf)
	}

	_, err := w.Write(b)
	return err
}

func writeFunction(b []byte, mf *mir.MFunction) []byte {
	offsets, frameSize := frameLayout(mf)

	b = fmt.Appendf(b, "\n.globl %s\n.align 16\n%s:\n", mf.Name, mf.Name)
	b = fmt.Appendf(b, "\tpush\t%%rbp\n\tmov\t%%rsp, %%rbp\n")
	if frameSize > 0 {
		b = fmt.Appendf(b, "\tsub\t$%d, %%rsp\n", frameSize)
	}

	for _, blk := range mf.Blocks {
		b = fmt.Appendf(b, "%s:\n", blockLabel(mf, blk))

		for _, inst := range blk.Insts {
			b = writeInst(b, mf, inst, offsets)
		}
	}

	return b
}

func blockLabel(mf *mir.MFunction, b *mir.MBlock) string {
	return fmt.Sprintf(".L%s_%s", mf.Name, b.Name)
}

// frameLayout assigns each frame slot a fixed offset below %rbp, growing
// downward and rounding to each slot's own alignment; the whole frame is
// then rounded up to a 16-byte boundary.
func frameLayout(mf *mir.MFunction) ([]int64, int64) {
	offsets := make([]int64, len(mf.Frame))
	var cur int64
	for i, slot := range mf.Frame {
		cur += int64(slot.Size)
		if align := int64(slot.Align); align > 1 {
			cur = (cur + align - 1) &^ (align - 1)
		}
		offsets[i] = -cur
	}
	frameSize := (cur + 15) &^ 15
	return offsets, frameSize
}

func writeInst(b []byte, mf *mir.MFunction, inst *mir.MInst, offsets []int64) []byte {
	reg := func(v mir.VReg, bits int) string {
		return "%" + x86_64.Name(x86_64.PhysicalRegister(v), bits)
	}
	src := func(op mir.Operand) string { return operandText(op, offsets, reg) }

	switch inst.Op {
	case x86_64.Return:
		return fmt.Appendf(b, "\tleave\n\tret\n")
	case x86_64.Jump:
		if inst.CallDirect || inst.CallSymbol != "" {
			return fmt.Appendf(b, "\tjmp\t%s\n", inst.CallSymbol)
		}
		return fmt.Appendf(b, "\tjmp\t%s\n", blockOperandText(mf, inst.Operands[0]))
	case x86_64.JumpIfZeroFlag:
		return fmt.Appendf(b, "\tjz\t%s\n", blockOperandText(mf, inst.Operands[0]))
	case x86_64.Call:
		if inst.CallDirect || inst.CallSymbol != "" {
			return fmt.Appendf(b, "\tcall\t%s\n", inst.CallSymbol)
		}
		return fmt.Appendf(b, "\tcall\t*%s\n", src(inst.Operands[0]))
	case x86_64.Push:
		return fmt.Appendf(b, "\tpush\t%s\n", src(inst.Operands[0]))
	case x86_64.Pop:
		return fmt.Appendf(b, "\tpop\t%s\n", reg(inst.Def, inst.DefBits))
	case x86_64.Move:
		return fmt.Appendf(b, "\tmov\t%s, %s\n", src(inst.Operands[0]), reg(inst.Def, inst.DefBits))
	case x86_64.StoreLocal:
		return fmt.Appendf(b, "\tmov\t%s, %s\n", src(inst.Operands[0]), src(inst.Operands[1]))
	case x86_64.MoveDereferenceRHS:
		return fmt.Appendf(b, "\tmov\t(%s), %s\n", src(inst.Operands[0]), reg(inst.Def, inst.DefBits))
	case x86_64.MoveDereferenceLHS:
		return fmt.Appendf(b, "\tmov\t%s, (%s)\n", src(inst.Operands[0]), src(inst.Operands[1]))
	case x86_64.MoveSignExtended:
		return fmt.Appendf(b, "\tmovsx\t%s, %s\n", src(inst.Operands[0]), reg(inst.Def, inst.DefBits))
	case x86_64.LoadEffectiveAddress:
		return fmt.Appendf(b, "\tlea\t%s, %s\n", leaOperandText(inst.Operands[0], offsets), reg(inst.Def, inst.DefBits))
	case x86_64.Add, x86_64.Sub, x86_64.And, x86_64.OrOp, x86_64.XorOp:
		return fmt.Appendf(b, "\t%s\t%s, %s\n", x86_64.Mnemonic(inst.Op), src(inst.Operands[1]), reg(inst.Def, inst.DefBits))
	case x86_64.Multiply:
		return fmt.Appendf(b, "\t%s\t%s, %s\n", x86_64.Mnemonic(inst.Op), src(inst.Operands[1]), reg(inst.Def, inst.DefBits))
	case x86_64.Test:
		return fmt.Appendf(b, "\ttest\t%s, %s\n", src(inst.Operands[1]), src(inst.Operands[0]))
	case x86_64.Compare:
		return fmt.Appendf(b, "\tcmp\t%s, %s\n", src(inst.Operands[1]), src(inst.Operands[0]))
	case x86_64.SetByteIfEqual, x86_64.SetByteIfLessUnsigned, x86_64.SetByteIfLessSigned,
		x86_64.SetByteIfGreaterUnsigned, x86_64.SetByteIfGreaterSigned,
		x86_64.SetByteIfEqualOrLessUnsigned, x86_64.SetByteIfEqualOrLessSigned,
		x86_64.SetByteIfEqualOrGreaterUnsigned, x86_64.SetByteIfEqualOrGreaterSigned:
		return fmt.Appendf(b, "\t%s\t%s\n", x86_64.Mnemonic(inst.Op), reg(inst.Def, 8))
	case x86_64.Poison:
		return fmt.Appendf(b, "\tud2\n")
	case mir.OpSDiv, mir.OpSRem:
		return fmt.Appendf(b, "\tcqo\n\tidiv%c\t%s\t// %s -> %s\n", sizeSuffix(inst.DefBits), src(inst.Operands[1]), inst.Op, reg(inst.Def, inst.DefBits))
	case mir.OpUDiv, mir.OpURem:
		return fmt.Appendf(b, "\txor\t%%rdx, %%rdx\n\tdiv%c\t%s\t// %s -> %s\n", sizeSuffix(inst.DefBits), src(inst.Operands[1]), inst.Op, reg(inst.Def, inst.DefBits))
	default:
		cc.Fatal(inst.Loc, "emit.WriteAssembly: unhandled opcode %s", inst.Op)
		return b
	}
}

func blockOperandText(mf *mir.MFunction, op mir.Operand) string {
	return blockLabel(mf, op.Block)
}

// sizeSuffix is the AT&T mnemonic suffix for an operand-size-implied form
// (spec.md §4.7: "mnemonics suffixed by operand size"). idiv/div take a
// single r/m operand with no register to infer the width from when that
// operand is a memory reference, so the suffix is load-bearing there,
// unlike the two-operand forms above where the register name already
// disambiguates.
func sizeSuffix(bits int) byte {
	switch bits {
	case 8:
		return 'b'
	case 16:
		return 'w'
	case 32:
		return 'l'
	default:
		return 'q'
	}
}

func leaOperandText(op mir.Operand, offsets []int64) string {
	switch op.Kind {
	case mir.Local:
		return fmt.Sprintf("%d(%%rbp)", offsets[op.Local])
	case mir.Global:
		return fmt.Sprintf("%s(%%rip)", op.Sym)
	case mir.FuncSym:
		return fmt.Sprintf("%s(%%rip)", op.Sym)
	default:
		cc.Fatal(cc.Loc{}, "emit: lea operand must be a local, global, or function symbol")
		return ""
	}
}

func operandText(op mir.Operand, offsets []int64, reg func(mir.VReg, int) string) string {
	switch op.Kind {
	case mir.Register:
		return reg(op.Reg, op.Bits)
	case mir.Immediate:
		return fmt.Sprintf("$%d", op.Imm)
	case mir.Local:
		return fmt.Sprintf("%d(%%rbp)", offsets[op.Local])
	case mir.Global:
		return fmt.Sprintf("%s(%%rip)", op.Sym)
	case mir.FuncSym:
		return op.Sym
	default:
		cc.Fatal(cc.Loc{}, "emit: unsupported operand kind %d", op.Kind)
		return ""
	}
}
