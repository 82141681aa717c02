package opt

import (
	"github.com/lcc-go/lcc/ir"
	"github.com/lcc-go/lcc/ir/analysis"
)

// JumpThreading removes blocks that consist of a single unconditional
// Branch, retargeting every predecessor's terminator (and every Phi's
// incoming-block reference) to branch straight to the eliminated block's
// target, and collapses CondBranch(c, X, X) into Branch(X) (spec.md
// §4.2.6). dom is unused by the rewrite itself but accepted to mirror the
// driver's per-iteration dominator-tree rebuild ordering.
func JumpThreading(f *ir.Function, dom *analysis.DomTree) bool {
	changed := false
	var toRemove []*ir.Block

	for _, b := range f.Blocks() {
		term := b.Terminator()
		if term == nil {
			continue
		}

		if len(b.Instructions()) == 1 && term.Kind() == ir.Branch {
			target := term.BranchTarget()
			for _, b2 := range f.Blocks() {
				if b2 == b {
					continue
				}
				retargetBlock(b2, b, target)
			}
			toRemove = append(toRemove, b)
			changed = true
			continue
		}

		if term.Kind() == ir.CondBranch && term.CondThen() == term.CondElse() {
			term.SimplifyCondBranchSameTarget()
			changed = true
		}
	}

	for _, b := range toRemove {
		f.RemoveBlock(b)
	}
	return changed
}

func retargetBlock(b2, from, to *ir.Block) {
	branch := b2.Terminator()
	if branch == nil {
		return
	}
	switch branch.Kind() {
	case ir.Branch:
		if branch.BranchTarget() == from {
			branch.SetBranchTarget(to)
		}
	case ir.CondBranch:
		if branch.CondThen() == from {
			branch.SetCondThen(to)
		}
		if branch.CondElse() == from {
			branch.SetCondElse(to)
		}
	}

	for _, i := range b2.Instructions() {
		if i.Kind() == ir.Phi {
			i.RetargetPhiArgPred(from, to)
		}
	}
}
