package opt

import "github.com/lcc-go/lcc/ir"

// DCE deletes every instruction with an empty use-list that is not
// side-effecting (spec.md §4.2.2), returning whether it deleted anything.
// Like opt_dce, it walks each block once per call; the fixed-point driver
// in Run repeats it alongside the other passes until nothing changes.
func DCE(f *ir.Function) bool {
	changed := false
	for _, b := range f.Blocks() {
		var dead []*ir.Instruction
		for _, inst := range b.Instructions() {
			if len(inst.Uses()) == 0 && inst.IsSideEffectFreeForDCE() {
				dead = append(dead, inst)
			}
		}
		for _, inst := range dead {
			inst.Erase()
			changed = true
		}
	}
	return changed
}
