// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Package aeg builds the Abstract Event Graph: one symbolic node per
// (instruction, speculation depth) pair of a function's bounded speculative
// unrolling, annotated with boolean execution predicates and bitvector
// address/data terms, plus the dependency and memory-model edges the
// leakage detector traces.
package aeg

import (
	"aegleak/internal/alias"
	"aegleak/internal/cfg"
	"aegleak/internal/ir"
	"aegleak/internal/smtctx"
	"aegleak/internal/taint"
)

// NodeRef identifies an AEG node. It is numerically identical to the
// underlying expanded-CFG node reference.
type NodeRef = cfg.ExpandedRef

// EdgeKind distinguishes the kinds of edges AEG stores explicitly. The
// architectural/transient memory-model relations (rf, co, fr and their
// extended rfx/cox/frx counterparts) are deliberately not edge kinds here:
// they are symbolic predicates computed on demand ("pseudo-edges"), not
// materialized adjacency.
type EdgeKind int

const (
	EdgePO EdgeKind = iota
	EdgeTFO
	EdgeAddr
	EdgeData
	EdgeCtrl
	EdgeCom
)

func (k EdgeKind) String() string {
	switch k {
	case EdgePO:
		return "po"
	case EdgeTFO:
		return "tfo"
	case EdgeAddr:
		return "addr"
	case EdgeData:
		return "data"
	case EdgeCtrl:
		return "ctrl"
	case EdgeCom:
		return "com"
	default:
		return "unknown"
	}
}

// Node is one AEG node's symbolic annotation.
type Node struct {
	Ref    NodeRef
	Source cfg.NodeRef
	Depth  uint

	// ArchOrder is this node's position along the single architectural
	// (depth-0) program-order chain, or -1 if the node is transient. The
	// architectural subset of the expanded graph never merges or
	// branches internally — CFG expansion always continues the
	// architectural path through a branch's first successor — so this
	// chain admits a plain sequential index.
	ArchOrder int

	// XSAccessOrder is this node's position in a topological order over
	// the full expanded graph (architectural and transient nodes alike),
	// computed once during construction. It is a necessary, not
	// sufficient, condition for program-order precedence: x before y in
	// program order implies XSAccessOrder[x] < XSAccessOrder[y], but two
	// incomparable nodes are numbered in an arbitrary relative order, so
	// a smaller index alone proves nothing. Used to prune relation searches before
	// falling back to a real reachability check.
	XSAccessOrder int

	Arch  *smtctx.Expr // executes on the architectural path
	Trans *smtctx.Expr // executes only transiently (never commits)
	Exec  *smtctx.Expr // Arch or Trans
	Write *smtctx.Expr // Exec and the instruction may write memory
	Read  *smtctx.Expr // Exec and the instruction may read memory

	Addr smtctx.BV // symbolic memory address, meaningful iff IsMemOp
	Data smtctx.BV // symbolic stored/loaded datum, meaningful iff IsMemOp
}

// AEG is the constructed event graph for one function at one (num_specs,
// rob_size) configuration.
type AEG struct {
	Ctx      *smtctx.Context
	Expanded *cfg.Expanded
	Nodes    []Node

	// RobSize bounds the store-buffer window the memory-model relations
	// search: a candidate source store RobSize or more hops away in
	// program order from the load it would forward to is out of reach.
	RobSize uint

	out map[EdgeKind]map[NodeRef][]NodeRef
	in  map[EdgeKind]map[NodeRef][]NodeRef

	aliasOf  map[pairKey]alias.Result
	taint    taint.Tainter
	memNodes []NodeRef

	Constraints *Constraints
}

type pairKey struct{ a, b NodeRef }

func makePairKey(a, b NodeRef) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}

// Instruction returns the instruction a node carries.
func (a *AEG) Instruction(n NodeRef) ir.Instruction {
	return a.Expanded.Instruction(n)
}

// NumNodes returns the number of nodes in the graph.
func (a *AEG) NumNodes() int {
	return len(a.Nodes)
}

// AddEdge records a directed edge of the given kind.
func (a *AEG) addEdge(kind EdgeKind, src, dst NodeRef) {
	if a.out[kind] == nil {
		a.out[kind] = map[NodeRef][]NodeRef{}
		a.in[kind] = map[NodeRef][]NodeRef{}
	}
	a.out[kind][src] = append(a.out[kind][src], dst)
	a.in[kind][dst] = append(a.in[kind][dst], src)
}

// Successors returns the nodes src has an edge of the given kind to.
func (a *AEG) Successors(kind EdgeKind, src NodeRef) []NodeRef {
	return a.out[kind][src]
}

// Predecessors returns the nodes that have an edge of the given kind to dst.
func (a *AEG) Predecessors(kind EdgeKind, dst NodeRef) []NodeRef {
	return a.in[kind][dst]
}

// AliasResult returns the cached alias oracle verdict for a node pair,
// computed during construction.
func (a *AEG) AliasResult(x, y NodeRef) alias.Result {
	if r, ok := a.aliasOf[makePairKey(x, y)]; ok {
		return r
	}
	return alias.MayAlias
}

// MayAlias reports whether two memory-accessing nodes might touch the same
// address.
func (a *AEG) MayAlias(x, y NodeRef) bool {
	return a.AliasResult(x, y) != alias.NoAlias
}

// AddrEq returns the symbolic equality of two nodes' addresses.
func (a *AEG) AddrEq(x, y NodeRef) *smtctx.Expr {
	return a.Ctx.Eq(a.Nodes[x].Addr, a.Nodes[y].Addr)
}

// Exists reports the conjunction of two nodes' Exec predicates — the
// shared "exists" condition every AEG edge and relation gates on.
func (a *AEG) Exists(x, y NodeRef) *smtctx.Expr {
	return smtctx.And(a.Nodes[x].Exec, a.Nodes[y].Exec)
}
