// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package cfg

import (
	"aegleak/internal/ir"

	"github.com/pkg/errors"
)

// ExpandedRef identifies a node of the bounded speculative unrolling.
type ExpandedRef int

// Node pairs a CFG2 node with the speculation depth at which it was
// reached: depth 0 is architectural, depth d>0 means the path taken to
// reach this node includes d nested mis-speculations.
type Node struct {
	Source NodeRef
	Depth  uint
}

// Expanded is the bounded speculative unrolling of a CFG2:
// for every branch, both the architecturally-taken successor and every
// alternative successor are followed, the latter opening (or continuing) a
// transient path capped by RobSize in length and NumSpecs in nesting depth.
type Expanded struct {
	cfg      *CFG2
	NumSpecs uint
	RobSize  uint
	Nodes    []Node
	Entry    ExpandedRef
	Exits    []ExpandedRef
	succ     map[ExpandedRef][]ExpandedRef
	pred     map[ExpandedRef][]ExpandedRef
}

// Instruction returns the instruction a node carries.
func (e *Expanded) Instruction(r ExpandedRef) ir.Instruction {
	return e.cfg.Instruction(e.Nodes[r].Source)
}

// Source returns the CFG2 node a speculative node was expanded from.
func (e *Expanded) Source(r ExpandedRef) NodeRef {
	return e.Nodes[r].Source
}

// Depth returns a node's speculation depth (0 = architectural).
func (e *Expanded) Depth(r ExpandedRef) uint {
	return e.Nodes[r].Depth
}

// IsSpeculative reports whether a node lies on a mis-speculated path.
func (e *Expanded) IsSpeculative(r ExpandedRef) bool {
	return e.Nodes[r].Depth > 0
}

// Successors returns a node's outgoing program-order edges in the expanded
// graph (both architectural continuations and transient branches).
func (e *Expanded) Successors(r ExpandedRef) []ExpandedRef {
	return e.succ[r]
}

// Predecessors returns a node's incoming program-order edges.
func (e *Expanded) Predecessors(r ExpandedRef) []ExpandedRef {
	return e.pred[r]
}

// NumNodes returns the number of nodes in the expanded graph.
func (e *Expanded) NumNodes() int {
	return len(e.Nodes)
}

type task struct {
	inDst  NodeRef
	src    ExpandedRef
	depth  uint
	segLen uint // length of the transient path ending at inDst, counted from its most recent mis-speculation origin; meaningless at depth 0
}

// Construct builds the bounded speculative unrolling of c. numSpecs bounds
// the nesting depth of mis-speculation (the aeg num_specs parameter);
// robSize bounds the length, in nodes, of any single transient path (the
// aeg rob_size parameter).
func Construct(c *CFG2, numSpecs, robSize uint) (*Expanded, error) {
	if numSpecs == 0 {
		return nil, errors.New("cfg: num_specs must be >= 1")
	}
	if robSize == 0 {
		return nil, errors.New("cfg: rob_size must be >= 1")
	}

	e := &Expanded{
		cfg:      c,
		NumSpecs: numSpecs,
		RobSize:  robSize,
		succ:     map[ExpandedRef][]ExpandedRef{},
		pred:     map[ExpandedRef][]ExpandedRef{},
	}

	// nodeMaps[depth] coalesces (source, depth) pairs so that converging
	// paths reaching the same CFG2 node at the same speculation depth
	// share a single expanded node, bounding the graph's size.
	nodeMaps := make(map[uint]map[NodeRef]ExpandedRef)
	newNode := func(src NodeRef, depth uint) ExpandedRef {
		m, ok := nodeMaps[depth]
		if !ok {
			m = make(map[NodeRef]ExpandedRef)
			nodeMaps[depth] = m
		}
		if ref, ok := m[src]; ok {
			return ref
		}
		ref := ExpandedRef(len(e.Nodes))
		e.Nodes = append(e.Nodes, Node{Source: src, Depth: depth})
		m[src] = ref
		if depth == 0 {
			for _, exit := range c.Exits {
				if exit == src {
					e.Exits = append(e.Exits, ref)
					break
				}
			}
		}
		return ref
	}

	e.Entry = newNode(c.Entry, 0)

	var queue []task
	for _, succ := range c.Successors(c.Entry) {
		queue = append(queue, task{inDst: succ, src: e.Entry, depth: 0, segLen: 0})
	}

	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]

		if t.depth > 0 && t.segLen > robSize {
			continue // transient path exhausted its reorder-buffer window
		}
		if t.depth > 0 && c.Instruction(t.inDst).Kind == ir.KindExit {
			continue // exit nodes exist only on the architectural path
		}

		dst := newNode(t.inDst, t.depth)
		e.succ[t.src] = append(e.succ[t.src], dst)
		e.pred[dst] = append(e.pred[dst], t.src)

		for i, succ := range c.Successors(t.inDst) {
			if i == 0 {
				nextLen := t.segLen
				if t.depth > 0 {
					nextLen++
				}
				queue = append(queue, task{inDst: succ, src: dst, depth: t.depth, segLen: nextLen})
				continue
			}
			if t.depth+1 > numSpecs {
				continue
			}
			queue = append(queue, task{inDst: succ, src: dst, depth: t.depth + 1, segLen: 1})
		}
	}
	return e, nil
}
