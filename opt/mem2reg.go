package opt

import (
	"tlog.app/go/tlog"

	"github.com/lcc-go/lcc/ir"
)

type stackVar struct {
	alloca        *ir.Instruction
	store         *ir.Instruction
	loads         []*ir.Instruction
	unoptimisable bool
}

// Mem2Reg promotes stack slots that are stored into exactly once and whose
// address never escapes (every other use is a Load) into plain SSA values,
// replacing every Load with the stored value and deleting the Load/Store/
// Alloca trio (spec.md §4.2.3). A load observed before any store marks the
// variable unoptimisable and emits a warning, matching the source's
// "load of uninitialised variable" diagnostic.
func Mem2Reg(f *ir.Function) bool {
	var vars []*stackVar
	byAlloca := make(map[*ir.Instruction]*stackVar)

	for _, b := range f.Blocks() {
		for _, inst := range b.Instructions() {
			switch inst.Kind() {
			case ir.Alloca:
				v := &stackVar{alloca: inst}
				vars = append(vars, v)
				byAlloca[inst] = v
			case ir.Store:
				addr := inst.Operands()[1]
				if v, ok := byAlloca[addr]; ok && !v.unoptimisable {
					if v.store != nil {
						v.unoptimisable = true
					} else {
						v.store = inst
					}
				}
			case ir.Load:
				addr := inst.Operands()[0]
				if v, ok := byAlloca[addr]; ok && !v.unoptimisable {
					if v.store == nil {
						v.unoptimisable = true
						tlog.Printw("warning: load of uninitialised variable", "func", f.Name())
					} else {
						v.loads = append(v.loads, inst)
					}
				}
			}
		}
	}

	changed := false
	for _, v := range vars {
		if v.unoptimisable || v.store == nil || len(v.alloca.Uses()) != len(v.loads)+1 {
			continue
		}

		changed = true
		storedValue := v.store.Operands()[0]
		for _, ld := range v.loads {
			ir.ReplaceAllUsesWith(ld, storedValue)
			ld.Erase()
		}

		v.store.Erase()
		v.alloca.Erase()
	}
	return changed
}
