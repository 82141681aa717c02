package ir

import "tlog.app/go/errors"

// Verify spot-checks a Function against the invariants of spec.md §3.3:
// every instruction belongs to exactly one block, only the last
// instruction of a block is a terminator, use-lists are mutual, and every
// Phi has exactly one incoming value per predecessor. It is not run on
// every pipeline transition (that would duplicate the cost of the passes
// themselves) but is available to tests and to a debug-mode driver.
func Verify(f *Function) error {
	preds := Predecessors(f)

	for _, b := range f.blocks {
		for i, inst := range b.instructions {
			if inst.block != b {
				return errors.New("instruction %d claims block %q, found in %q", inst.id, inst.block.name, b.name)
			}
			isLast := i == len(b.instructions)-1
			if inst.kind.IsTerminator() && !isLast {
				return errors.New("non-terminal terminator %s in block %q", inst.kind, b.name)
			}
			if !inst.kind.IsTerminator() && isLast {
				return errors.New("block %q has no terminator", b.name)
			}

			for _, o := range inst.operands {
				if !containsInstr(o.uses, inst) {
					return errors.New("instruction %d uses %d but is absent from its use-list", inst.id, o.id)
				}
			}
		}
	}

	for _, b := range f.blocks {
		for _, inst := range b.instructions {
			for _, u := range inst.uses {
				if !instrReferences(u, inst) {
					return errors.New("instruction %d in use-list of %d but does not reference it", u.id, inst.id)
				}
			}

			if inst.kind == Phi {
				want := preds[b]
				seen := map[*Block]bool{}
				for _, a := range inst.phiArgs {
					if seen[a.Pred] {
						return errors.New("phi %d has duplicate incoming block %q", inst.id, a.Pred.name)
					}
					seen[a.Pred] = true
				}
				if len(seen) != len(want) {
					return errors.New("phi %d has %d incoming values, block %q has %d predecessors", inst.id, len(seen), b.name, len(want))
				}
				for _, p := range want {
					if !seen[p] {
						return errors.New("phi %d missing incoming value for predecessor %q", inst.id, p.name)
					}
				}
			}
		}
	}

	return nil
}

func containsInstr(list []*Instruction, x *Instruction) bool {
	for _, v := range list {
		if v == x {
			return true
		}
	}
	return false
}

func instrReferences(u, v *Instruction) bool {
	if u.HasOperand(v) {
		return true
	}
	for _, a := range u.phiArgs {
		if a.Value == v {
			return true
		}
	}
	return false
}

// Predecessors computes, for every block in f, the set of blocks whose
// terminator branches to it. Non-owning and recomputed on demand (see the
// "cross-edges are non-owning" ownership note); callers that need it more
// than once should cache the result themselves, as analysis.Dominators and
// opt's passes do.
func Predecessors(f *Function) map[*Block][]*Block {
	preds := make(map[*Block][]*Block, len(f.blocks))
	for _, b := range f.blocks {
		preds[b] = nil
	}
	for _, b := range f.blocks {
		for _, s := range b.Successors() {
			preds[s] = append(preds[s], b)
		}
	}
	return preds
}
