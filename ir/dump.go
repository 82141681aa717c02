package ir

import (
	"fmt"
	"io"
)

// WriteLLVMIR serializes m in an LLVM-compatible textual form, preserving
// every instruction kind of spec.md §3.2, for consumption by external
// tooling (spec.md §6). This is a dedicated writer rather than the
// structured-log idiom the rest of the pipeline uses for progress
// reporting (tlog.Printw, see opt and codegen/x86_64), since the textual
// dump is a first-class output format, not a debug trace.
func (m *Module) WriteLLVMIR(w io.Writer) error {
	for _, g := range m.globals {
		if _, err := fmt.Fprintf(w, "@%s = global %s\n", g.global.Name, g.typ); err != nil {
			return err
		}
	}
	if len(m.globals) > 0 {
		fmt.Fprintln(w)
	}

	for i, f := range m.functions {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if err := writeFunction(w, f); err != nil {
			return err
		}
	}
	return nil
}

func writeFunction(w io.Writer, f *Function) error {
	kw := "define"
	if f.IsExtern() {
		kw = "declare"
	}
	params := ""
	for i, p := range f.typ.Params() {
		if i > 0 {
			params += ", "
		}
		params += p.String()
	}
	if _, err := fmt.Fprintf(w, "%s %s @%s(%s)", kw, f.typ.Return(), f.name, params); err != nil {
		return err
	}
	if f.IsExtern() {
		fmt.Fprintln(w)
		return nil
	}
	fmt.Fprintln(w, " {")

	names := nameInstructions(f)

	for _, b := range f.blocks {
		fmt.Fprintf(w, "%s:\n", b.name)
		for _, inst := range b.instructions {
			writeInstruction(w, inst, names)
		}
	}

	fmt.Fprintln(w, "}")
	return nil
}

func nameInstructions(f *Function) map[*Instruction]string {
	names := map[*Instruction]string{}
	for _, p := range f.params {
		names[p] = fmt.Sprintf("%%arg%d", p.paramIndex)
	}
	for _, b := range f.blocks {
		for _, inst := range b.instructions {
			names[inst] = fmt.Sprintf("%%%d", inst.id)
		}
	}
	return names
}

func ref(names map[*Instruction]string, v *Instruction) string {
	if v == nil {
		return "<nil>"
	}
	if n, ok := names[v]; ok {
		return n
	}
	return fmt.Sprintf("%%%d", v.id)
}

func writeInstruction(w io.Writer, inst *Instruction, names map[*Instruction]string) {
	self := names[inst]
	switch inst.kind {
	case IntegerConstant:
		fmt.Fprintf(w, "  %s = %s %d\n", self, inst.typ, inst.imm)
	case GlobalVariable:
		fmt.Fprintf(w, "  ; global %s\n", inst.global.Name)
	case FuncRef:
		fmt.Fprintf(w, "  %s = funcref @%s\n", self, inst.funcRef.name)
	case Parameter:
		// printed in the function signature; nothing to emit in the body.
	case Alloca:
		fmt.Fprintf(w, "  %s = alloca %s\n", self, inst.elemType)
	case Load:
		fmt.Fprintf(w, "  %s = load %s, %s\n", self, inst.typ, ref(names, inst.operands[0]))
	case Store:
		fmt.Fprintf(w, "  store %s, %s\n", ref(names, inst.operands[0]), ref(names, inst.operands[1]))
	case GetElementPtr:
		fmt.Fprintf(w, "  %s = gep %s", self, ref(names, inst.operands[0]))
		for _, idx := range inst.gepIndices {
			fmt.Fprintf(w, ", %s", ref(names, idx))
		}
		fmt.Fprintln(w)
	case Copy:
		fmt.Fprintf(w, "  %s = copy %s\n", self, ref(names, inst.operands[0]))
	case Branch:
		fmt.Fprintf(w, "  br label %%%s\n", inst.branchTgt.name)
	case CondBranch:
		fmt.Fprintf(w, "  br %s, label %%%s, label %%%s\n", ref(names, inst.operands[0]), inst.condThen.name, inst.condElse.name)
	case Return:
		if len(inst.operands) == 0 {
			fmt.Fprintln(w, "  ret void")
		} else {
			fmt.Fprintf(w, "  ret %s\n", ref(names, inst.operands[0]))
		}
	case Unreachable:
		fmt.Fprintln(w, "  unreachable")
	case Phi:
		fmt.Fprintf(w, "  %s = phi %s ", self, inst.typ)
		for i, a := range inst.phiArgs {
			if i > 0 {
				fmt.Fprint(w, ", ")
			}
			fmt.Fprintf(w, "[ %s, %%%s ]", ref(names, a.Value), a.Pred.name)
		}
		fmt.Fprintln(w)
	case Call:
		fmt.Fprintf(w, "  %s = call %s ", self, inst.typ)
		if inst.call.IsIndirect {
			fmt.Fprintf(w, "%s(", ref(names, inst.call.CalleeValue))
		} else {
			fmt.Fprintf(w, "@%s(", inst.call.CalleeFunction.name)
		}
		args := inst.operands
		if inst.call.IsIndirect {
			args = args[1:]
		}
		for i, a := range args {
			if i > 0 {
				fmt.Fprint(w, ", ")
			}
			fmt.Fprint(w, ref(names, a))
		}
		fmt.Fprint(w, ")")
		if inst.call.TailCall {
			fmt.Fprint(w, " tail")
		}
		fmt.Fprintln(w)
	case MemCopy:
		fmt.Fprintf(w, "  memcopy %s, %s, %d\n", ref(names, inst.operands[0]), ref(names, inst.operands[1]), inst.memBytes)
	default:
		// Binary/unary/compare kinds share a uniform two- or one-operand
		// textual shape.
		if len(inst.operands) == 2 {
			fmt.Fprintf(w, "  %s = %s %s, %s\n", self, inst.kind, ref(names, inst.operands[0]), ref(names, inst.operands[1]))
		} else if len(inst.operands) == 1 {
			fmt.Fprintf(w, "  %s = %s %s\n", self, inst.kind, ref(names, inst.operands[0]))
		} else {
			fmt.Fprintf(w, "  %s = %s\n", self, inst.kind)
		}
	}
}
