package opt

import "github.com/lcc-go/lcc/ir"

// TailCallElim marks a Call (direct or indirect) as a tail call when nothing but
// branches and Phis separate it from a Return that consumes either its
// result directly or via one of those Phis, then marks the containing
// block unreachable past that point -- the actual frame-teardown/jump
// happens in the backend (spec.md §4.2.7). At most one call per block is
// converted, matching the source's single "goto next_block" on first
// success.
func TailCallElim(f *ir.Function) bool {
	changed := false
	for _, b := range f.Blocks() {
		for _, i := range b.Instructions() {
			if i.Kind() != ir.Call {
				continue
			}
			if tryConvertToTailCall(i) {
				changed = true
				break
			}
		}
	}
	return changed
}

func tryConvertToTailCall(call *ir.Instruction) bool {
	if !tailCallPossible(call, call.Block(), nil) {
		return false
	}
	call.MarkTailCall()
	call.Block().MarkUnreachable()
	return true
}

// tailCallPossible walks forward from call (or from the start of a
// successor block) through Phis and Branches to see whether the call's
// value (or a Phi that transitively carries it) reaches a Return
// unmodified.
func tailCallPossible(call *ir.Instruction, b *ir.Block, phis []*ir.Instruction) bool {
	instrs := b.Instructions()
	start := 0
	if b == call.Block() {
		for idx, inst := range instrs {
			if inst == call {
				start = idx + 1
				break
			}
		}
	}

	for _, inst := range instrs[start:] {
		switch inst.Kind() {
		case ir.Phi:
			carried := false
			for _, a := range inst.PhiArgs() {
				if a.Value == call {
					carried = true
					break
				}
				for _, p := range phis {
					if a.Value == p {
						carried = true
						break
					}
				}
				if carried {
					break
				}
			}
			if !carried {
				return false
			}
			phis = append(phis, inst)
		case ir.Return:
			ret := inst.Operands()
			if len(ret) == 0 {
				return false
			}
			for _, p := range phis {
				if ret[0] == p {
					return true
				}
			}
			return ret[0] == call
		case ir.Branch:
			return tailCallPossible(call, inst.BranchTarget(), phis)
		case ir.CondBranch:
			return tailCallPossible(call, inst.CondThen(), phis) &&
				tailCallPossible(call, inst.CondElse(), phis)
		default:
			return false
		}
	}
	return false
}
