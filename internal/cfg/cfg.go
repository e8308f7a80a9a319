// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Package cfg builds the plain program-order graph (CFG2) and its bounded
// speculative unrolling (Expanded).
package cfg

import (
	"aegleak/internal/ir"

	"github.com/pkg/errors"
)

// NodeRef identifies a CFG2 node. It is numerically identical to the
// underlying ir.Instruction.Index — CFG2 carries exactly one node per
// instruction, since this tool does not model inter-procedural call stacks
//; a richer front end would instead key nodes by
// (instruction, call-stack id).
type NodeRef int

// CFG2 is the acyclic program-order graph derived directly from a
// function's instructions and their Successors lists.
type CFG2 struct {
	fn    ir.Function
	Entry NodeRef
	Exits []NodeRef
	preds map[NodeRef][]NodeRef
}

// Build constructs CFG2 from a validated function.
func Build(fn ir.Function) (*CFG2, error) {
	if err := fn.Validate(); err != nil {
		return nil, errors.Wrap(err, "cfg")
	}
	c := &CFG2{fn: fn, preds: make(map[NodeRef][]NodeRef, len(fn.Instructions))}
	haveEntry := false
	for _, inst := range fn.Instructions {
		if inst.Kind == ir.KindEntry {
			c.Entry = NodeRef(inst.Index)
			haveEntry = true
		}
		if inst.Kind == ir.KindExit {
			c.Exits = append(c.Exits, NodeRef(inst.Index))
		}
		for _, s := range inst.Successors {
			c.preds[NodeRef(s)] = append(c.preds[NodeRef(s)], NodeRef(inst.Index))
		}
	}
	if !haveEntry {
		return nil, errors.Errorf("cfg: function %q has no entry instruction", fn.Name)
	}
	if len(c.Exits) == 0 {
		return nil, errors.Errorf("cfg: function %q has no exit instruction", fn.Name)
	}
	if err := c.checkReachability(); err != nil {
		return nil, err
	}
	return c, nil
}

// checkReachability enforces CFG2's two-sided invariant: every node is
// reachable from Entry, and every node can in turn reach some Exit. A node
// failing the first is dead code; a node failing the second is a dead end
// the front end should never have produced (a non-exit instruction with no
// path out of the function).
func (c *CFG2) checkReachability() error {
	forward := c.bfs(c.Entry, c.Successors)
	for _, inst := range c.fn.Instructions {
		if !forward[NodeRef(inst.Index)] {
			return errors.Errorf("cfg: function %q: instruction %d is unreachable from entry", c.fn.Name, inst.Index)
		}
	}

	backward := make(map[NodeRef]bool, len(c.fn.Instructions))
	for _, exit := range c.Exits {
		for n := range c.bfs(exit, c.Predecessors) {
			backward[n] = true
		}
	}
	for _, inst := range c.fn.Instructions {
		if !backward[NodeRef(inst.Index)] {
			return errors.Errorf("cfg: function %q: instruction %d cannot reach any exit", c.fn.Name, inst.Index)
		}
	}
	return nil
}

// bfs returns the set of nodes reachable from start by repeatedly following
// next, start included.
func (c *CFG2) bfs(start NodeRef, next func(NodeRef) []NodeRef) map[NodeRef]bool {
	reached := map[NodeRef]bool{start: true}
	queue := []NodeRef{start}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, s := range next(n) {
			if !reached[s] {
				reached[s] = true
				queue = append(queue, s)
			}
		}
	}
	return reached
}

// Instruction returns the instruction a node carries.
func (c *CFG2) Instruction(n NodeRef) ir.Instruction {
	return c.fn.Instructions[int(n)]
}

// Successors returns n's outgoing edges, in front-end order (architecturally
// taken target first, for branches).
func (c *CFG2) Successors(n NodeRef) []NodeRef {
	raw := c.fn.Instructions[int(n)].Successors
	out := make([]NodeRef, len(raw))
	for i, s := range raw {
		out[i] = NodeRef(s)
	}
	return out
}

// Predecessors returns n's incoming edges.
func (c *CFG2) Predecessors(n NodeRef) []NodeRef {
	return c.preds[n]
}

// NumNodes returns the number of nodes in the graph.
func (c *CFG2) NumNodes() int {
	return len(c.fn.Instructions)
}

// Function returns the underlying function.
func (c *CFG2) Function() ir.Function {
	return c.fn
}
