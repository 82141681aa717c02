package opt

import "github.com/lcc-go/lcc/ir"

type forwardVar struct {
	alloca *ir.Instruction
	store  *ir.Instruction
}

// StoreForwarding replaces, within each block independently, every Load
// from an Alloca with the value most recently Stored to that Alloca in the
// same block, and elides the superseded Store when nothing could have
// observed it in between (spec.md §4.2.4). Restricted to Alloca-rooted
// addresses only -- never GetElementPtr or otherwise-derived pointers --
// since only an Alloca's use-list can be inspected exhaustively for
// possible aliasing; this keeps elision conservative and sound by
// construction rather than by accident.
func StoreForwarding(f *ir.Function) bool {
	changed := false
	for _, b := range f.Blocks() {
		var vars []*forwardVar
		instrs := b.Instructions()
		for idx, i := range instrs {
			switch i.Kind() {
			case ir.Store:
				addr := i.Operands()[1]
				if addr.Kind() != ir.Alloca {
					continue
				}
				v := findForwardVar(vars, addr)
				if v != nil {
					if !allocaUsedBetween(v.alloca, instrs, idx, v.store) {
						v.store.Erase()
					}
					v.store = i
				} else {
					vars = append(vars, &forwardVar{alloca: addr, store: i})
				}
			case ir.Load:
				addr := i.Operands()[0]
				v := findForwardVar(vars, addr)
				if v == nil {
					continue
				}
				stored := v.store.Operands()[0]
				ir.ReplaceAllUsesWith(i, stored)
				i.Erase()
				changed = true
			}
		}
	}
	return changed
}

func findForwardVar(vars []*forwardVar, alloca *ir.Instruction) *forwardVar {
	for _, v := range vars {
		if v.alloca == alloca {
			return v
		}
	}
	return nil
}

// allocaUsedBetween reports whether any instruction strictly between the
// previous store and the current one (exclusive of both) is a user of
// alloca -- matching the source's scan for an intervening use before
// eliding the superseded store.
func allocaUsedBetween(alloca *ir.Instruction, instrs []*ir.Instruction, untilIdx int, prevStore *ir.Instruction) bool {
	started := false
	for _, inst := range instrs[:untilIdx] {
		if inst == prevStore {
			started = true
			continue
		}
		if !started {
			continue
		}
		if inst.HasOperand(alloca) {
			return true
		}
	}
	return false
}
