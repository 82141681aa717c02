package analysis

import "github.com/lcc-go/lcc/ir"

// Reachability marks every function ever_referenced = false except the
// entry point and any externally-linked function, then walks every
// instruction (including global-variable initializers) marking every
// FuncRef and direct Call target as referenced. Functions never marked are
// deleted from the module (spec.md §4.1).
//
// entryName names the program's entry point (e.g. "main"); it is always
// considered referenced even if nothing in the IR calls it directly.
func Reachability(m *ir.Module, entryName string) {
	for _, f := range m.Functions() {
		f.SetEverReferenced(f.Linkage() == ir.External || f.Name() == entryName)
	}

	mark := func(inst *ir.Instruction) {
		switch inst.Kind() {
		case ir.FuncRef:
			inst.FuncRefTarget().SetEverReferenced(true)
		case ir.Call:
			c := inst.Call()
			if !c.IsIndirect && c.CalleeFunction != nil {
				c.CalleeFunction.SetEverReferenced(true)
			}
		}
	}

	for _, f := range m.Functions() {
		for _, b := range f.Blocks() {
			for _, inst := range b.Instructions() {
				mark(inst)
			}
		}
	}
	for _, g := range m.Globals() {
		if g.Global().Init != nil {
			mark(g.Global().Init)
		}
	}

	var dead []*ir.Function
	for _, f := range m.Functions() {
		if !f.EverReferenced() {
			dead = append(dead, f)
		}
	}
	for _, f := range dead {
		m.RemoveFunction(f)
	}
}
