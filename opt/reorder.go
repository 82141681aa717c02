package opt

import (
	"github.com/lcc-go/lcc/ir"
	"github.com/lcc-go/lcc/ir/analysis"
)

// ReorderBlocks rebuilds f's block list in dominator-tree preorder, biasing
// each block's fall-through successor (an unconditional Branch target, or
// a CondBranch's then-target) to be visited immediately afterward so the
// backend can later elide the jump (spec.md §4.2.5).
//
// The traversal uses an explicit stack rather than recursion, pushing a
// block's non-biased children first and its biased successor last so the
// biased successor is popped -- and therefore placed -- immediately next,
// matching the dominator-tree preorder walk the source performs after each
// optimizer sweep.
func ReorderBlocks(f *ir.Function, dom *analysis.DomTree) {
	var order []*ir.Block
	visited := make(map[*ir.Block]bool)
	stack := []*ir.Block{dom.Root()}

	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[b] {
			continue
		}
		visited[b] = true
		order = append(order, b)

		var next *ir.Block
		if term := b.Terminator(); term != nil {
			switch term.Kind() {
			case ir.Branch:
				next = term.BranchTarget()
			case ir.CondBranch:
				next = term.CondThen()
			}
		}

		var nextChild *ir.Block
		for _, child := range dom.Children(b) {
			if child == next {
				nextChild = child
				continue
			}
			if !visited[child] {
				stack = append(stack, child)
			}
		}
		if nextChild != nil && !visited[nextChild] {
			stack = append(stack, nextChild)
		}
	}

	f.SetBlocks(order)
}
