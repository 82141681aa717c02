package ir

import "github.com/lcc-go/lcc/types"

// Function is named, has a function type, an ordered list of Parameters,
// an ordered list of Blocks, and cached attributes inferred by
// ir/analysis (pure, leaf, noreturn, ever-referenced).
type Function struct {
	id      ID
	module  *Module
	name    string
	typ     *types.Type
	linkage Linkage

	params []*Instruction
	blocks []*Block

	attrPure           bool
	attrLeaf           bool
	attrNoreturn       bool
	everReferenced     bool

	nextValueID ID
	nextBlockID ID
}

func (f *Function) ID() ID               { return f.id }
func (f *Function) Module() *Module      { return f.module }
func (f *Function) Name() string         { return f.name }
func (f *Function) Type() *types.Type    { return f.typ }
func (f *Function) Linkage() Linkage     { return f.linkage }
func (f *Function) Params() []*Instruction { return f.params }
func (f *Function) Blocks() []*Block     { return f.blocks }
func (f *Function) IsExtern() bool       { return len(f.blocks) == 0 }

func (f *Function) Entry() *Block {
	if len(f.blocks) == 0 {
		return nil
	}
	return f.blocks[0]
}

func (f *Function) AttrPure() bool     { return f.attrPure }
func (f *Function) AttrLeaf() bool     { return f.attrLeaf }
func (f *Function) AttrNoreturn() bool { return f.attrNoreturn }
func (f *Function) EverReferenced() bool { return f.everReferenced }

func (f *Function) SetAttrPure(v bool)       { f.attrPure = v }
func (f *Function) SetAttrLeaf(v bool)       { f.attrLeaf = v }
func (f *Function) SetAttrNoreturn(v bool)   { f.attrNoreturn = v }
func (f *Function) SetEverReferenced(v bool) { f.everReferenced = v }

func (f *Function) nextID() ID {
	id := f.nextValueID
	f.nextValueID++
	return id
}

// NewBlock creates and appends a fresh, empty Block owned by f.
func (f *Function) NewBlock(name string) *Block {
	b := &Block{id: f.nextBlockID, fn: f, name: name}
	f.nextBlockID++
	f.blocks = append(f.blocks, b)
	return b
}

// SetBlocks replaces the function's block list wholesale, preserving the
// blocks themselves; used by block reordering (spec.md §4.2.5), which
// rearranges but never creates or destroys blocks.
func (f *Function) SetBlocks(blocks []*Block) { f.blocks = blocks }

// RemoveBlock detaches b from the function's block list. Per invariant and
// ownership rules (spec.md §3.4), callers must first redirect or verify
// there are no remaining incoming branches; jump threading and
// reachability both do this before calling RemoveBlock.
func (f *Function) RemoveBlock(b *Block) {
	for i, x := range f.blocks {
		if x == b {
			f.blocks = append(f.blocks[:i], f.blocks[i+1:]...)
			return
		}
	}
}
