package x86_64

import (
	"github.com/lcc-go/lcc/cc"
	"github.com/lcc-go/lcc/compiler/set"
	"github.com/lcc-go/lcc/mir"
	"github.com/lcc-go/lcc/target"
	"nikand.dev/go/heap"
	"tlog.app/go/tlog"
)

// MachineDescription is the allocator's view of one calling convention's
// register file (spec.md §4.6): the allocatable set in preference order,
// and the synthetic return-register placeholder the allocator resolves as
// its last step.
type MachineDescription struct {
	Registers              []Reg
	ReturnRegister         Reg
	ReturnRegisterToReplace Reg
}

func SysV() MachineDescription {
	return MachineDescription{Registers: SysVAllocatable, ReturnRegister: SysVReturnReg, ReturnRegisterToReplace: RETURN}
}

func Win64() MachineDescription {
	return MachineDescription{Registers: Win64Allocatable, ReturnRegister: Win64ReturnReg, ReturnRegisterToReplace: RETURN}
}

func DescriptionFor(tgt *target.Target) MachineDescription {
	if tgt.IsWindows() {
		return Win64()
	}
	return SysV()
}

// Allocate assigns a physical register or a spill slot to every virtual
// register of mf (spec.md §4.6), grounded on the teacher's graph-coloring
// pipeline (buildGraph/colorGraph/fixPhi in compiler/back/back4.go): Phis
// are eliminated into predecessor-block copies first, then liveness and
// an interference graph are computed and colored; any vreg the coloring
// can't place gets a stack slot and is rewritten as load/store pairs, and
// the whole pipeline reruns until a pass needs no further spills. Every
// Register operand's Reg field ends up holding a physVReg-encoded
// physical register, uniformly for both pinned (call-argument, shift
// count) and allocator-chosen registers.
func Allocate(mf *mir.MFunction, desc MachineDescription) {
	eliminatePhis(mf)

	for iter := 0; ; iter++ {
		spills, ok := tryColor(mf, desc)
		if ok {
			return
		}

		if iter > len(mf.Blocks)*8+64 {
			cc.Fatal(cc.Loc{}, "x86_64.Allocate: register allocation did not converge for %s", mf.Name)
		}

		tlog.Printw("spilling", "func", mf.Name, "count", len(spills))

		for vr, bits := range spills {
			slot := mf.NewFrameSlot(8, 8)
			rewriteSpill(mf, vr, bits, slot)
		}
	}
}

// eliminatePhis replaces each block's leading Phi instructions with
// parallel-copy moves in every predecessor, snapshotting incoming values
// into fresh temporaries before writing the Phi's own register so that
// Phis exchanging values within the same block don't clobber one
// another's source.
func eliminatePhis(mf *mir.MFunction) {
	for _, b := range mf.Blocks {
		n := 0
		for n < len(b.Insts) && b.Insts[n].Op == mir.OpPhi {
			n++
		}
		if n == 0 {
			continue
		}

		phis := append([]*mir.MInst{}, b.Insts[:n]...)
		b.Insts = b.Insts[n:]

		preds := map[*mir.MBlock]bool{}
		for _, ph := range phis {
			for _, inc := range ph.Incoming {
				preds[inc.Pred] = true
			}
		}

		for pred := range preds {
			var tmps []mir.VReg
			var defs []mir.VReg
			var bits []int
			var loc = phis[0].Loc

			for _, ph := range phis {
				for _, inc := range ph.Incoming {
					if inc.Pred != pred {
						continue
					}
					tmp := mf.NewVReg()
					pred.Insts = insertBeforeTerminator(pred.Insts, &mir.MInst{Op: Move, Loc: ph.Loc, Def: tmp, DefBits: ph.DefBits, Operands: []mir.Operand{inc.Value}})
					tmps = append(tmps, tmp)
					defs = append(defs, ph.Def)
					bits = append(bits, ph.DefBits)
				}
			}

			for i, d := range defs {
				pred.Insts = insertBeforeTerminator(pred.Insts, &mir.MInst{Op: Move, Loc: loc, Def: d, DefBits: bits[i], Operands: []mir.Operand{mir.RegOperand(tmps[i], bits[i])}})
			}
		}
	}
}

func insertBeforeTerminator(insts []*mir.MInst, inst *mir.MInst) []*mir.MInst {
	if len(insts) == 0 {
		return []*mir.MInst{inst}
	}
	out := make([]*mir.MInst, 0, len(insts)+1)
	out = append(out, insts[:len(insts)-1]...)
	out = append(out, inst, insts[len(insts)-1])
	return out
}

func successors(b *mir.MBlock) []*mir.MBlock {
	var out []*mir.MBlock
	for _, inst := range b.Insts {
		for _, op := range inst.Operands {
			if op.Kind == mir.BlockRef {
				out = append(out, op.Block)
			}
		}
	}
	return out
}

type colorJob struct {
	idx    int
	degree int
}

// tryColor runs one liveness + interference + coloring pass over mf's
// current MIR. On success it mutates every Register operand and Def in
// place to its resolved physical register and returns (nil, true). On
// failure it returns, unmutated, the set of virtual registers that need a
// spill slot (their widest observed bit width alongside).
func tryColor(mf *mir.MFunction, desc MachineDescription) (map[mir.VReg]int, bool) {
	vidx := map[mir.VReg]int{}
	var vregOf []mir.VReg
	var maxBits []int

	note := func(v mir.VReg, bits int) int {
		if idx, ok := vidx[v]; ok {
			if bits > maxBits[idx] {
				maxBits[idx] = bits
			}
			return idx
		}
		idx := len(vregOf)
		vidx[v] = idx
		vregOf = append(vregOf, v)
		maxBits = append(maxBits, bits)
		return idx
	}

	for _, b := range mf.Blocks {
		for _, inst := range b.Insts {
			if inst.Def != mir.NoReg {
				note(inst.Def, inst.DefBits)
			}
			for _, op := range inst.Operands {
				if op.Kind == mir.Register {
					note(op.Reg, op.Bits)
				}
			}
		}
	}

	n := len(vregOf)
	pinned := make([]bool, n)
	for idx, v := range vregOf {
		if isPhysVReg(v) {
			pinned[idx] = true
		}
	}

	// Liveness: backward fixed point over the block CFG. Live sets only
	// grow across iterations (a monotone dataflow framework), so total
	// bit count stabilizing is a valid convergence test.
	liveIn := make([]set.Bitmap, len(mf.Blocks))
	liveOut := make([]set.Bitmap, len(mf.Blocks))
	blockIdx := map[*mir.MBlock]int{}
	for i, b := range mf.Blocks {
		blockIdx[b] = i
		liveIn[i] = set.MakeBitmap(n)
		liveOut[i] = set.MakeBitmap(n)
	}

	for {
		prev := 0
		for i := range mf.Blocks {
			prev += liveIn[i].Size() + liveOut[i].Size()
		}

		for i := len(mf.Blocks) - 1; i >= 0; i-- {
			b := mf.Blocks[i]
			out := set.MakeBitmap(n)
			for _, s := range successors(b) {
				out.Or(liveIn[blockIdx[s]])
			}

			in := out.Copy()
			for j := len(b.Insts) - 1; j >= 0; j-- {
				inst := b.Insts[j]
				if inst.Def != mir.NoReg {
					in.Clear(vidx[inst.Def])
				}
				for _, op := range inst.Operands {
					if op.Kind == mir.Register {
						in.Set(vidx[op.Reg])
					}
				}
			}

			liveIn[i] = in
			liveOut[i] = out
		}

		cur := 0
		for i := range mf.Blocks {
			cur += liveIn[i].Size() + liveOut[i].Size()
		}
		if cur == prev {
			break
		}
	}
	// Interference graph + forced-spill (live-across-call) detection, via
	// one more backward walk per block using the now-stable liveOut.
	interf := make([]set.Bitmap, n)
	for i := range interf {
		interf[i] = set.MakeBitmap(n)
	}
	forced := make([]bool, n)

	addEdge := func(a, b int) {
		if a == b {
			return
		}
		interf[a].Set(b)
		interf[b].Set(a)
	}

	for i, b := range mf.Blocks {
		live := liveOut[i].Copy()

		for j := len(b.Insts) - 1; j >= 0; j-- {
			inst := b.Insts[j]

			if inst.Def != mir.NoReg {
				d := vidx[inst.Def]
				live.Range(func(o int) bool {
					addEdge(d, o)
					return true
				})
				live.Clear(d)
			}

			if inst.Op == Call {
				live.Range(func(o int) bool {
					if !pinned[o] {
						forced[o] = true
					}
					return true
				})
			}

			for _, op := range inst.Operands {
				if op.Kind == mir.Register {
					live.Set(vidx[op.Reg])
				}
			}
		}
	}

	colorOf := make([]Reg, n)
	for i := range colorOf {
		colorOf[i] = NoReg
	}
	for idx, v := range vregOf {
		if pinned[idx] {
			colorOf[idx] = physFromVReg(v)
		}
	}

	jobsLess := func(a []colorJob, i, j int) bool { return a[i].degree > a[j].degree }
	pq := heap.Heap[colorJob]{Less: jobsLess}
	for idx := 0; idx < n; idx++ {
		if pinned[idx] || forced[idx] {
			continue
		}
		pq.Push(colorJob{idx: idx, degree: interf[idx].Size()})
	}

	var failed []int
	for pq.Len() > 0 {
		j := pq.Pop()
		idx := j.idx

		used := map[Reg]bool{}
		interf[idx].Range(func(o int) bool {
			if colorOf[o] != NoReg {
				used[colorOf[o]] = true
			}
			return true
		})

		chosen := NoReg
		for _, r := range desc.Registers {
			if !used[r] {
				chosen = r
				break
			}
		}

		if chosen == NoReg {
			failed = append(failed, idx)
			continue
		}
		colorOf[idx] = chosen
	}

	for idx, f := range forced {
		if f {
			failed = append(failed, idx)
		}
	}

	if len(failed) > 0 {
		spills := map[mir.VReg]int{}
		for _, idx := range failed {
			spills[vregOf[idx]] = maxBits[idx]
		}
		return spills, false
	}

	resolve := func(v mir.VReg) mir.VReg {
		var r Reg
		if isPhysVReg(v) {
			r = physFromVReg(v)
		} else {
			r = colorOf[vidx[v]]
		}
		if r == desc.ReturnRegisterToReplace {
			r = desc.ReturnRegister
		}
		return physVReg(r)
	}

	for _, b := range mf.Blocks {
		for _, inst := range b.Insts {
			if inst.Def != mir.NoReg {
				inst.Def = resolve(inst.Def)
			}
			for i, op := range inst.Operands {
				if op.Kind == mir.Register {
					inst.Operands[i].Reg = resolve(op.Reg)
				}
			}
		}
	}

	return nil, true
}

// rewriteSpill gives vr its own stack slot: every use becomes a fresh
// load into a new temporary immediately before the using instruction, and
// every def is followed by a store of the defining instruction's own
// result register out to the slot. The defining instruction keeps vr as
// its Def (still a valid, if now dead outside this instruction, virtual
// register) so the subsequent pipeline restart can color it like any
// other short-lived value.
func rewriteSpill(mf *mir.MFunction, vr mir.VReg, bits int, slot int) {
	for _, b := range mf.Blocks {
		var out []*mir.MInst
		for _, inst := range b.Insts {
			var loads []*mir.MInst
			for i, op := range inst.Operands {
				if op.Kind == mir.Register && op.Reg == vr {
					tmp := mf.NewVReg()
					loads = append(loads, &mir.MInst{Op: Move, Loc: inst.Loc, Def: tmp, DefBits: op.Bits, Operands: []mir.Operand{mir.LocalOperand(slot)}})
					inst.Operands[i] = mir.RegOperand(tmp, op.Bits)
				}
			}

			out = append(out, loads...)
			out = append(out, inst)

			if inst.Def == vr {
				out = append(out, &mir.MInst{Op: StoreLocal, Loc: inst.Loc, Def: mir.NoReg, Operands: []mir.Operand{mir.RegOperand(inst.Def, bits), mir.LocalOperand(slot)}})
			}
		}
		b.Insts = out
	}
}
