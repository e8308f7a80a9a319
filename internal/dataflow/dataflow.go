// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Package dataflow implements a generic fixpoint framework and its three
// concrete instantiations: address, data and control dependency analysis.
package dataflow

import "aegleak/internal/ir"

// Lattice is the contract a dataflow instance must satisfy: Top is the
// pre-iteration placeholder value, Meet combines values flowing in along
// converging edges, Equal detects a fixpoint, and Transfer computes a
// node's outgoing value from its incoming one. Top is owned per Lattice
// instance rather than shared through a process-wide mutable singleton.
type Lattice[V any] interface {
	Top() V
	Meet(a, b V) V
	Equal(a, b V) bool
	Transfer(inst ir.Instruction, in V) V
	EntryValue() V
}

// Graph supplies the predecessor/successor relation the fixpoint walks.
// Passing the def-use graph (an operand's defining instruction points to
// its users) computes a dependency-reachability fact; passing the
// control-flow predecessor relation computes a standard forward CFG
// dataflow fact. Run is agnostic to which graph it is given.
type Graph interface {
	Predecessors(instIdx int) []int
	Successors(instIdx int) []int
}

// Run iterates a FIFO worklist until no instruction's value changes.
// Contract: meet is commutative, associative and
// idempotent; transfer is monotonic w.r.t. meet; the lattice is finite
// (here, always a power set of instruction indices), so the loop
// terminates.
func Run[V any](fn ir.Function, g Graph, lat Lattice[V]) map[int]V {
	out := make(map[int]V, len(fn.Instructions))
	for _, inst := range fn.Instructions {
		out[inst.Index] = lat.Top()
	}

	n := len(fn.Instructions)
	queue := make([]int, n)
	queued := make([]bool, n)
	for i, inst := range fn.Instructions {
		queue[i] = inst.Index
		queued[inst.Index] = true
	}

	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]
		queued[idx] = false

		preds := g.Predecessors(idx)
		var in V
		switch len(preds) {
		case 0:
			in = lat.EntryValue()
		default:
			in = out[preds[0]]
			for _, p := range preds[1:] {
				in = lat.Meet(in, out[p])
			}
		}

		next := lat.Transfer(fn.Instructions[idx], in)
		if lat.Equal(out[idx], next) {
			continue
		}
		out[idx] = next
		for _, succ := range g.Successors(idx) {
			if !queued[succ] {
				queue = append(queue, succ)
				queued[succ] = true
			}
		}
	}
	return out
}
