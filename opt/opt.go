// Package opt implements the core's fixed-point optimizer: per-function
// instcombine/DCE/mem2reg/jump-threading/store-forwarding/TCE, block
// reordering along the dominator tree, and a cross-function driver that
// alternates inlining with attribute re-propagation (spec.md §4.2).
package opt

import (
	"context"

	"tlog.app/go/tlog"

	"github.com/lcc-go/lcc/cc"
	"github.com/lcc-go/lcc/ir"
	"github.com/lcc-go/lcc/ir/analysis"
)

// InlineCostThreshold bounds how large a callee may be (in instructions)
// before the cross-function inliner refuses to inline it (spec.md §4.2.8).
const InlineCostThreshold = 20

// Run drives the whole optimizer to a fixed point over m: per-function
// passes run to convergence, then the cross-function driver alternates
// inlining and attribute propagation until neither reports a change,
// finally a reachability sweep deletes anything left unreferenced.
//
// entryName is the program entry point, always considered referenced (see
// analysis.Reachability).
func Run(ctx context.Context, cctx *cc.Context, m *ir.Module, entryName string) {
	tr := tlog.SpanFromContext(ctx)

	analysis.InferAttributes(m)

	for _, f := range m.Functions() {
		if f.IsExtern() {
			continue
		}
		optimizeFunction(ctx, f)
	}

	for {
		changed := inline(cctx, m, InlineCostThreshold)
		changed = analysis.InferAttributes(m) || changed
		if !changed {
			break
		}
	}

	analysis.Reachability(m, entryName)

	if tr.OK() {
		tr.Printw("optimise done", "functions", len(m.Functions()))
	}
}

// optimizeFunction iterates the per-function passes to a fixed point. Each
// iteration first rebuilds the dominator tree and reorders blocks along
// it, then runs the rewrite passes in the order the original
// implementation does: instcombine, DCE, mem2reg, jump threading, store
// forwarding, tail-call elimination. The passes are not combined with a
// short-circuit OR: within one sweep every pass runs even after an
// earlier one reported a change, and the loop as a whole repeats while any
// single pass reported a change.
func optimizeFunction(ctx context.Context, f *ir.Function) {
	tr := tlog.SpanFromContext(ctx)

	for {
		dom := analysis.Dominators(f)
		ReorderBlocks(f, dom)

		changed := InstCombine(f)
		changed = DCE(f) || changed
		changed = Mem2Reg(f) || changed
		changed = JumpThreading(f, dom) || changed
		changed = StoreForwarding(f) || changed
		changed = TailCallElim(f) || changed

		if tr.OK() {
			tr.Printw("pass sweep", "func", f.Name(), "changed", changed)
		}

		if !changed {
			return
		}
	}
}
