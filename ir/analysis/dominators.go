// Package analysis implements the core's per-function analyses: the
// dominator tree, the pure/leaf/noreturn fixed-point attribute inference,
// and post-optimizer reachability.
package analysis

import "github.com/lcc-go/lcc/ir"

// DomTree is the dominator tree of one Function, rooted at its entry
// block. Children lists preserve CFG order (spec.md §4.1) so that a
// preorder walk is deterministic run to run.
type DomTree struct {
	root     *ir.Block
	idom     map[*ir.Block]*ir.Block
	children map[*ir.Block][]*ir.Block
}

func (t *DomTree) Root() *ir.Block { return t.root }

// IDom returns b's immediate dominator, or nil for the root.
func (t *DomTree) IDom(b *ir.Block) *ir.Block {
	if t.idom[b] == b {
		return nil
	}
	return t.idom[b]
}

func (t *DomTree) Children(b *ir.Block) []*ir.Block { return t.children[b] }

// Dominates reports whether a dominates b (reflexively: a dominates a).
func (t *DomTree) Dominates(a, b *ir.Block) bool {
	for cur := b; cur != nil; cur = t.IDom(cur) {
		if cur == a {
			return true
		}
	}
	return a == b
}

// PreorderWalk visits every block reachable in the dominator tree in
// preorder, the traversal block reordering (spec.md §4.2.5) and inlining
// use to process a function in dominance order.
func (t *DomTree) PreorderWalk(fn func(b *ir.Block)) {
	var walk func(b *ir.Block)
	walk = func(b *ir.Block) {
		fn(b)
		for _, c := range t.children[b] {
			walk(c)
		}
	}
	if t.root != nil {
		walk(t.root)
	}
}

// Dominators computes the dominator tree of f using the standard iterative
// data-flow algorithm (Cooper, Harvey & Kennedy) over f's forward CFG.
func Dominators(f *ir.Function) *DomTree {
	return computeTree(f, false)
}

// PostDominators computes the post-dominator tree of f: the first block
// with no successors is the root, and edges run backwards (successor ->
// predecessor).
func PostDominators(f *ir.Function) *DomTree {
	return computeTree(f, true)
}

func computeTree(f *ir.Function, reverse bool) *DomTree {
	blocks := f.Blocks()
	if len(blocks) == 0 {
		return &DomTree{idom: map[*ir.Block]*ir.Block{}, children: map[*ir.Block][]*ir.Block{}}
	}

	preds := ir.Predecessors(f)
	succOf := func(b *ir.Block) []*ir.Block { return b.Successors() }
	predOf := func(b *ir.Block) []*ir.Block { return preds[b] }
	if reverse {
		succOf, predOf = predOf, succOf
	}

	root := blocks[0]
	if reverse {
		// Virtual root: dominator computation over the reversed graph
		// needs a single exit. Pick the first block with no successors;
		// if the function has multiple exits this is an approximation
		// (the other exits are not post-dominated by the root). No pass
		// in this core calls PostDominators.
		for _, b := range blocks {
			if len(b.Successors()) == 0 {
				root = b
				break
			}
		}
	}

	order := reversePostorder(root, succOf)
	rpoIndex := make(map[*ir.Block]int, len(order))
	for i, b := range order {
		rpoIndex[b] = i
	}

	idom := map[*ir.Block]*ir.Block{root: root}
	changed := true
	for changed {
		changed = false
		for _, b := range order {
			if b == root {
				continue
			}
			var newIdom *ir.Block
			for _, p := range predOf(b) {
				if idom[p] == nil {
					continue
				}
				if newIdom == nil {
					newIdom = p
					continue
				}
				newIdom = intersect(newIdom, p, idom, rpoIndex)
			}
			if newIdom != nil && idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}

	children := map[*ir.Block][]*ir.Block{}
	for _, b := range blocks {
		p, ok := idom[b]
		if !ok || p == b {
			continue
		}
		children[p] = append(children[p], b)
	}

	return &DomTree{root: root, idom: idom, children: children}
}

func intersect(a, b *ir.Block, idom map[*ir.Block]*ir.Block, rpoIndex map[*ir.Block]int) *ir.Block {
	for a != b {
		for rpoIndex[a] > rpoIndex[b] {
			a = idom[a]
		}
		for rpoIndex[b] > rpoIndex[a] {
			b = idom[b]
		}
	}
	return a
}

func reversePostorder(root *ir.Block, succ func(*ir.Block) []*ir.Block) []*ir.Block {
	var order []*ir.Block
	visited := map[*ir.Block]bool{}

	var visit func(b *ir.Block)
	visit = func(b *ir.Block) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, s := range succ(b) {
			visit(s)
		}
		order = append(order, b)
	}
	visit(root)

	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}
