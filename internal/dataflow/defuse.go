// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package dataflow

import "aegleak/internal/ir"

// ValueDefs maps a ValueID to the index of the instruction defining it.
type ValueDefs map[ir.ValueID]int

// BuildValueDefs records, for every instruction with a non-zero Result, the
// instruction that defines it.
func BuildValueDefs(fn ir.Function) ValueDefs {
	defs := make(ValueDefs, len(fn.Instructions))
	for _, inst := range fn.Instructions {
		if inst.Result != ir.NoValue {
			defs[inst.Result] = inst.Index
		}
	}
	return defs
}

// operandGraph is a Graph over the value-flow def-use edges selected by
// pick: for every value an instruction reads (as chosen by pick), an edge
// runs from that value's defining instruction to the reader. Passing a
// different pick function per analysis is how AddressDependencyAnalysis and
// DataDependencyAnalysis each walk a distinct operand slot while sharing
// one fixpoint engine.
type operandGraph struct {
	preds map[int][]int
	succs map[int][]int
}

func newOperandGraph(fn ir.Function, defs ValueDefs, pick func(ir.Instruction) []ir.ValueID) *operandGraph {
	g := &operandGraph{preds: map[int][]int{}, succs: map[int][]int{}}
	for _, inst := range fn.Instructions {
		for _, v := range pick(inst) {
			if v == ir.NoValue {
				continue
			}
			src, ok := defs[v]
			if !ok || src == inst.Index {
				continue
			}
			g.preds[inst.Index] = append(g.preds[inst.Index], src)
			g.succs[src] = append(g.succs[src], inst.Index)
		}
	}
	return g
}

func (g *operandGraph) Predecessors(idx int) []int { return g.preds[idx] }
func (g *operandGraph) Successors(idx int) []int   { return g.succs[idx] }

// reachSet is the lattice value shared by the dependency analyses: the set
// of "origin" instruction indices (loads, for address dependency; calls,
// for data dependency) that an instruction's computed value may have
// observed.
type reachSet map[int]struct{}

// reachLattice implements Lattice[reachSet]. isOrigin reports whether an
// instruction introduces a fresh dependency origin at this point.
type reachLattice struct {
	isOrigin func(ir.Instruction) bool
}

func (reachLattice) Top() reachSet       { return reachSet{} }
func (reachLattice) EntryValue() reachSet { return reachSet{} }

func (reachLattice) Meet(a, b reachSet) reachSet {
	out := make(reachSet, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}

func (reachLattice) Equal(a, b reachSet) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func (l reachLattice) Transfer(inst ir.Instruction, in reachSet) reachSet {
	out := make(reachSet, len(in)+1)
	for k := range in {
		out[k] = struct{}{}
	}
	if l.isOrigin(inst) {
		out[inst.Index] = struct{}{}
	}
	return out
}

// AddressDependencyAnalysis computes, for every memory instruction, the set
// of earlier loads whose result may flow into its address operand —
// directly, or transitively through arithmetic ("other") instructions. The
// result seeds the AEG's addr edge construction.
func AddressDependencyAnalysis(fn ir.Function) BinaryInstRel {
	defs := BuildValueDefs(fn)
	g := newOperandGraph(fn, defs, func(inst ir.Instruction) []ir.ValueID {
		if inst.IsMemOp() {
			return []ir.ValueID{inst.Address}
		}
		return inst.Operands
	})
	lat := reachLattice{isOrigin: func(inst ir.Instruction) bool { return inst.Kind == ir.KindLoad }}
	out := Run(fn, g, lat)

	rel := NewBinaryInstRel()
	for _, inst := range fn.Instructions {
		if !inst.IsMemOp() {
			continue
		}
		for loadIdx := range out[inst.Index] {
			if loadIdx == inst.Index {
				continue
			}
			rel.Add(inst.Index, loadIdx)
		}
	}
	return rel
}

// DataDependencyAnalysis computes, for every instruction, the set of
// earlier loads or calls whose result may flow into its data operand (for
// memory ops) or any operand (otherwise). It seeds the AEG's data edge
// construction and, since calls stand in for this tool's non-goal of full
// inter-procedural analysis, the call-return taint seed consumed by
// internal/taint.
func DataDependencyAnalysis(fn ir.Function) BinaryInstRel {
	defs := BuildValueDefs(fn)
	g := newOperandGraph(fn, defs, func(inst ir.Instruction) []ir.ValueID {
		if inst.IsMemOp() {
			vals := []ir.ValueID{inst.Data}
			return append(vals, inst.Operands...)
		}
		return inst.Operands
	})
	lat := reachLattice{isOrigin: func(inst ir.Instruction) bool {
		return inst.Kind == ir.KindLoad || inst.Kind == ir.KindCall
	}}
	out := Run(fn, g, lat)

	rel := NewBinaryInstRel()
	for _, inst := range fn.Instructions {
		for srcIdx := range out[inst.Index] {
			if srcIdx == inst.Index {
				continue
			}
			rel.Add(inst.Index, srcIdx)
		}
	}
	return rel
}

// ControlDependencyAnalysis maps each branch instruction's condition
// operand back to the loads or calls it may depend on, seeding the AEG's
// ctrl edge construction.
func ControlDependencyAnalysis(fn ir.Function) BinaryInstRel {
	defs := BuildValueDefs(fn)
	g := newOperandGraph(fn, defs, func(inst ir.Instruction) []ir.ValueID {
		return inst.Operands
	})
	lat := reachLattice{isOrigin: func(inst ir.Instruction) bool {
		return inst.Kind == ir.KindLoad || inst.Kind == ir.KindCall
	}}
	out := Run(fn, g, lat)

	rel := NewBinaryInstRel()
	for _, inst := range fn.Instructions {
		if inst.Kind != ir.KindBranch {
			continue
		}
		for srcIdx := range out[inst.Index] {
			if srcIdx == inst.Index {
				continue
			}
			rel.Add(inst.Index, srcIdx)
		}
	}
	return rel
}
