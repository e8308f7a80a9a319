// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package aeg

import "aegleak/internal/smtctx"

// Before reports whether x necessarily happens before y in program order,
// computed by reachability over the stored po/tfo edges rather than kept
// as a symbolic predicate — structural order is a property of the graph,
// not of any particular execution.
func (a *AEG) Before(x, y NodeRef) bool {
	visited := make(map[NodeRef]bool)
	queue := []NodeRef{x}
	visited[x] = true
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, succ := range a.Successors(EdgePO, n) {
			if succ == y {
				return true
			}
			if !visited[succ] {
				visited[succ] = true
				queue = append(queue, succ)
			}
		}
	}
	return false
}

// hasInterveningWrite reports whether some write other than w and r, not
// provably distinct in address from w, executes architecturally strictly
// between them in program order. An architectural rf/co/fr relation must
// exclude this case: a later, intervening write to the same address is the
// one actually observed architecturally, not w. XSAccessOrder gives a cheap
// necessary-condition prefilter (true program-order betweenness still needs
// Before, since topological order alone does not decide it).
func (a *AEG) hasInterveningWrite(w, r NodeRef) bool {
	lo, hi := a.Nodes[w].XSAccessOrder, a.Nodes[r].XSAccessOrder
	for _, w0 := range a.memNodesCache() {
		if w0 == w || w0 == r || !a.isWrite(w0) || a.Nodes[w0].Depth != 0 {
			continue
		}
		if o := a.Nodes[w0].XSAccessOrder; o <= lo || o >= hi {
			continue
		}
		if !a.MayAlias(w0, w) {
			continue
		}
		if a.Before(w, w0) && a.Before(w0, r) {
			return true
		}
	}
	return false
}

// POHops returns the shortest program-order distance, in edges, from x to
// y, or (0, false) if y is not reachable from x. The leakage package uses
// this to bound how far back a candidate bypassed-from store may lie from
// the load it forwards to (the store-buffer window).
func (a *AEG) POHops(x, y NodeRef) (int, bool) {
	if x == y {
		return 0, true
	}
	visited := map[NodeRef]bool{x: true}
	queue := []NodeRef{x}
	dist := map[NodeRef]int{x: 0}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, succ := range a.Successors(EdgePO, n) {
			if succ == y {
				return dist[n] + 1, true
			}
			if !visited[succ] {
				visited[succ] = true
				dist[succ] = dist[n] + 1
				queue = append(queue, succ)
			}
		}
	}
	return 0, false
}

// RFExists returns the symbolic condition under which w's write is the one
// r's read observes, in the architectural memory model: program order must
// place w before r, the two may alias, both must execute, their addresses
// must coincide, and no other write of the same address may intervene
// architecturally between them.
func (a *AEG) RFExists(w, r NodeRef) *smtctx.Expr {
	if !a.isWrite(w) || !a.isRead(r) || !a.MayAlias(w, r) || !a.Before(w, r) {
		return smtctx.False()
	}
	if a.hasInterveningWrite(w, r) {
		return smtctx.False()
	}
	return smtctx.And(a.Exists(w, r), a.AddrEq(w, r))
}

// RFXExists is RFExists without the program-order requirement: the
// relaxation that makes a Spectre-v4 style store-to-load bypass
// expressible — a speculative load may read from a store that has not yet
// retired its conflicting successor, regardless of where that store sits
// in program order relative to the load.
func (a *AEG) RFXExists(w, r NodeRef) *smtctx.Expr {
	if !a.isWrite(w) || !a.isRead(r) || !a.MayAlias(w, r) {
		return smtctx.False()
	}
	return smtctx.And(a.Exists(w, r), a.AddrEq(w, r))
}

// COExists returns the symbolic condition under which w1 and w2, two
// writes that may alias, are both present in an execution — i.e. they are
// coherence-ordered with respect to each other (architectural model: w1
// must precede w2 in program order, with no same-address write
// intervening).
func (a *AEG) COExists(w1, w2 NodeRef) *smtctx.Expr {
	if w1 == w2 || !a.isWrite(w1) || !a.isWrite(w2) || !a.MayAlias(w1, w2) || !a.Before(w1, w2) {
		return smtctx.False()
	}
	if a.hasInterveningWrite(w1, w2) {
		return smtctx.False()
	}
	return smtctx.And(a.Exists(w1, w2), a.AddrEq(w1, w2))
}

// COXExists is COExists's transient relaxation, dropping the program-order
// requirement for the same reason RFXExists drops it for RFExists.
func (a *AEG) COXExists(w1, w2 NodeRef) *smtctx.Expr {
	if w1 == w2 || !a.isWrite(w1) || !a.isWrite(w2) || !a.MayAlias(w1, w2) {
		return smtctx.False()
	}
	return smtctx.And(a.Exists(w1, w2), a.AddrEq(w1, w2))
}

// FRExists returns the symbolic condition under which read r observed a
// value that write w later overwrote: there exists some write w0 that r
// actually read from, coherence-ordered before w. No separate intervening-
// write guard is needed here: RFExists(w0,r) and COExists(w0,w) already
// each exclude their own intervening writes, and FRExists is defined purely
// in terms of those two.
func (a *AEG) FRExists(r, w NodeRef) *smtctx.Expr {
	if !a.isRead(r) || !a.isWrite(w) || !a.MayAlias(r, w) {
		return smtctx.False()
	}
	var parts []*smtctx.Expr
	for _, w0 := range a.memNodesCache() {
		if w0 == w || !a.isWrite(w0) {
			continue
		}
		rf := a.RFExists(w0, r)
		co := a.COExists(w0, w)
		if smtctx.IsFalse(rf) || smtctx.IsFalse(co) {
			continue
		}
		parts = append(parts, smtctx.And(rf, co))
	}
	if len(parts) == 0 {
		return smtctx.False()
	}
	return smtctx.Or(parts...)
}

// FRXExists is FRExists built from the transient rfx/cox relaxations,
// expressing that a transient read observed a stale value.
func (a *AEG) FRXExists(r, w NodeRef) *smtctx.Expr {
	if !a.isRead(r) || !a.isWrite(w) || !a.MayAlias(r, w) {
		return smtctx.False()
	}
	var parts []*smtctx.Expr
	for _, w0 := range a.memNodesCache() {
		if w0 == w || !a.isWrite(w0) {
			continue
		}
		rfx := a.RFXExists(w0, r)
		cox := a.COXExists(w0, w)
		if smtctx.IsFalse(rfx) || smtctx.IsFalse(cox) {
			continue
		}
		parts = append(parts, smtctx.And(rfx, cox))
	}
	if len(parts) == 0 {
		return smtctx.False()
	}
	return smtctx.Or(parts...)
}

func (a *AEG) isWrite(n NodeRef) bool {
	return a.Expanded.Instruction(n).MayWrite()
}

func (a *AEG) isRead(n NodeRef) bool {
	return a.Expanded.Instruction(n).MayRead()
}

// WriteCandidates returns every write node that may alias r — the full
// candidate set a memory-model query over r's address needs to consider.
// Program-order filtering happens inside RFExists/COExists themselves.
func (a *AEG) WriteCandidates(r NodeRef) []NodeRef {
	var out []NodeRef
	for _, w := range a.memNodesCache() {
		if a.isWrite(w) && a.MayAlias(w, r) {
			out = append(out, w)
		}
	}
	return out
}

// WithinSTBWindow reports whether w lies within RobSize program-order hops
// of r — the store-buffer window bounding how far back a speculative load
// may reach for a stale forwarding candidate.
func (a *AEG) WithinSTBWindow(w, r NodeRef) bool {
	hops, ok := a.POHops(w, r)
	return ok && hops < int(a.RobSize)
}

func (a *AEG) memNodesCache() []NodeRef {
	if a.memNodes != nil {
		return a.memNodes
	}
	for i := range a.Nodes {
		if a.Expanded.Instruction(NodeRef(i)).IsMemOp() {
			a.memNodes = append(a.memNodes, NodeRef(i))
		}
	}
	return a.memNodes
}
