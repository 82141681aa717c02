package ir

import (
	"github.com/lcc-go/lcc/cc"
	"github.com/lcc-go/lcc/types"
)

// Block belongs to exactly one Function and owns an ordered list of
// Instructions. Its terminator is always its final instruction (invariant
// 2, spec.md §3.3).
type Block struct {
	id   ID
	fn   *Function
	name string

	instructions []*Instruction

	// unreachable marks a block whose contents should not be code
	// generated (set by tail-call elimination, spec.md §4.2.7); the
	// block remains in the list for CFG bookkeeping until jump
	// threading/reachability clean it up.
	unreachable bool
}

func (b *Block) ID() ID            { return b.id }
func (b *Block) Function() *Function { return b.fn }
func (b *Block) Name() string      { return b.name }
func (b *Block) Instructions() []*Instruction { return b.instructions }
func (b *Block) Unreachable() bool { return b.unreachable }
func (b *Block) MarkUnreachable()  { b.unreachable = true }

// Terminator returns the block's last instruction, or nil if the block is
// still being constructed (no terminator appended yet).
func (b *Block) Terminator() *Instruction {
	if len(b.instructions) == 0 {
		return nil
	}
	last := b.instructions[len(b.instructions)-1]
	if !last.kind.IsTerminator() {
		return nil
	}
	return last
}

// Successors returns this block's CFG successors, derived from its
// terminator. Non-owning, computed on demand rather than cached, matching
// the "cross-edges are non-owning" ownership rule (spec.md §3.4); callers
// needing repeated access (dominators, reordering) should cache locally.
func (b *Block) Successors() []*Block {
	term := b.Terminator()
	if term == nil {
		return nil
	}
	switch term.kind {
	case Branch:
		return []*Block{term.branchTgt}
	case CondBranch:
		return []*Block{term.condThen, term.condElse}
	default:
		return nil
	}
}

// append adds i as the next instruction in program order. It is an ICE to
// append after a terminator (invariant 2).
func (b *Block) append(i *Instruction) {
	if term := b.Terminator(); term != nil {
		cc.Fatal(i.loc, "appending instruction %s after terminator in block %q", i.kind, b.name)
	}
	i.block = b
	b.instructions = append(b.instructions, i)
}

// InsertBefore inserts i immediately before mark in this block's
// instruction list. Used by lowering passes (ABI rewriting, MemCopy
// expansion) that splice new instructions into an existing block.
func (b *Block) InsertBefore(mark, i *Instruction) {
	idx := b.indexOf(mark)
	if idx < 0 {
		cc.Fatal(i.loc, "InsertBefore: mark not found in block %q", b.name)
	}
	i.block = b
	b.instructions = append(b.instructions, nil)
	copy(b.instructions[idx+1:], b.instructions[idx:])
	b.instructions[idx] = i
}

func (b *Block) indexOf(i *Instruction) int {
	for idx, x := range b.instructions {
		if x == i {
			return idx
		}
	}
	return -1
}

func (b *Block) removeInstruction(i *Instruction) {
	idx := b.indexOf(i)
	if idx < 0 {
		return
	}
	b.instructions = append(b.instructions[:idx], b.instructions[idx+1:]...)
}

// SplitAfter moves every instruction strictly after mark into a new block
// appended to the same function, leaving mark as b's last instruction with
// no terminator. Used by the inliner to carve out a continuation block at
// a call site before splicing in the callee's cloned body (spec.md
// §4.2.8).
func (b *Block) SplitAfter(mark *Instruction) *Block {
	idx := b.indexOf(mark)
	if idx < 0 {
		cc.Fatal(mark.loc, "SplitAfter: mark not found in block %q", b.name)
	}
	rest := append([]*Instruction(nil), b.instructions[idx+1:]...)
	b.instructions = b.instructions[:idx+1]

	nb := b.fn.NewBlock(b.name + ".cont")
	for _, i := range rest {
		i.block = nb
	}
	nb.instructions = rest
	return nb
}

// PrependPhi creates a Phi instruction and inserts it as b's first
// instruction, bypassing the append-only emit path. Used by the inliner to
// merge multiple inlined return sites into a single value at the
// continuation block, where ordinary construction order (Phis are
// typically built before the rest of a block's body exists) does not
// apply.
func (b *Block) PrependPhi(typ *types.Type, loc cc.Loc) *Instruction {
	inst := &Instruction{id: b.fn.nextID(), kind: Phi, typ: typ, loc: loc, block: b}
	b.instructions = append([]*Instruction{inst}, b.instructions...)
	return inst
}

// replaceTerminatorTarget rewrites every outgoing branch target equal to
// from into to; used by jump threading (spec.md §4.2.6).
func (b *Block) replaceTerminatorTarget(from, to *Block) (changed bool) {
	term := b.Terminator()
	if term == nil {
		return false
	}
	switch term.kind {
	case Branch:
		if term.branchTgt == from {
			term.branchTgt = to
			return true
		}
	case CondBranch:
		if term.condThen == from {
			term.condThen = to
			changed = true
		}
		if term.condElse == from {
			term.condElse = to
			changed = true
		}
	}
	return changed
}
