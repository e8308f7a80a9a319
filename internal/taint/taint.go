// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Package taint computes, for every AEG node, a symbolic predicate for
// "this node's value may carry data that originated outside the analyzed
// function". It depends only on internal/cfg and
// internal/smtctx, never on internal/aeg: AEGView is the capability
// interface *aeg.AEG implements structurally, replacing the original
// implementation's friend-class coupling between the taint engine and the
// graph it annotates.
package taint

import (
	"aegleak/internal/cfg"
	"aegleak/internal/smtctx"
)

// AEGView is the read-only slice of AEG state a taint strategy needs.
type AEGView interface {
	NumNodes() int
	Exec(n cfg.ExpandedRef) *smtctx.Expr
	IsCallSite(n cfg.ExpandedRef) bool
	AddrPredecessors(n cfg.ExpandedRef) []cfg.ExpandedRef
	DataPredecessors(n cfg.ExpandedRef) []cfg.ExpandedRef
	MemPredecessors(n cfg.ExpandedRef) []cfg.ExpandedRef
}

// Tainter answers whether a node may carry tainted data.
type Tainter interface {
	Flag(n cfg.ExpandedRef) *smtctx.Expr
}

type taintMap struct {
	vals map[cfg.ExpandedRef]*smtctx.Expr
}

// Flag implements Tainter.
func (t *taintMap) Flag(n cfg.ExpandedRef) *smtctx.Expr {
	if e, ok := t.vals[n]; ok {
		return e
	}
	return smtctx.False()
}

// Strategy computes a Tainter from an AEGView. BitvectorTaint and
// ArrayTaint are this tool's two strategies, grounded on the original's
// taint_bv.h: the former only follows direct operand (address/data) flow,
// the latter additionally follows flow through memory itself — a store of
// tainted data taints every load it is connected to by a COM edge.
type Strategy interface {
	Compute(view AEGView, ctx *smtctx.Context) Tainter
}

// BitvectorTaint propagates taint purely along def-use (address/data
// dependency) edges: a node is tainted if it executes and either is a call
// site (an opaque, potentially secret-bearing boundary) or depends on an
// already-tainted node.
type BitvectorTaint struct{}

// Compute implements Strategy.
func (BitvectorTaint) Compute(view AEGView, ctx *smtctx.Context) Tainter {
	return relax(view, func(n cfg.ExpandedRef) []cfg.ExpandedRef {
		srcs := append([]cfg.ExpandedRef{}, view.AddrPredecessors(n)...)
		return append(srcs, view.DataPredecessors(n)...)
	})
}

// ArrayTaint additionally propagates taint through memory itself: a load
// is tainted not only through direct operand flow but whenever a
// possibly-aliasing store of tainted data reaches it through AEG's COM
// edges (surfaced here as MemPredecessors); those edges do not take
// program order into account, so a store placed after the load counts too.
type ArrayTaint struct{}

// Compute implements Strategy.
func (ArrayTaint) Compute(view AEGView, ctx *smtctx.Context) Tainter {
	return relax(view, func(n cfg.ExpandedRef) []cfg.ExpandedRef {
		srcs := append([]cfg.ExpandedRef{}, view.AddrPredecessors(n)...)
		srcs = append(srcs, view.DataPredecessors(n)...)
		return append(srcs, view.MemPredecessors(n)...)
	})
}

// relax runs a bounded Gauss-Seidel relaxation: taint only ever grows (it is
// a monotone OR-accumulation), so n+1 passes over an n-node DAG are always
// enough to reach the fixpoint regardless of traversal order.
func relax(view AEGView, sources func(cfg.ExpandedRef) []cfg.ExpandedRef) Tainter {
	n := view.NumNodes()
	vals := make(map[cfg.ExpandedRef]*smtctx.Expr, n)
	for i := 0; i < n; i++ {
		vals[cfg.ExpandedRef(i)] = smtctx.False()
	}
	for pass := 0; pass <= n; pass++ {
		for i := 0; i < n; i++ {
			ref := cfg.ExpandedRef(i)
			parts := []*smtctx.Expr{vals[ref]}
			if view.IsCallSite(ref) {
				parts = append(parts, view.Exec(ref))
			}
			for _, src := range sources(ref) {
				parts = append(parts, smtctx.And(vals[src], view.Exec(ref)))
			}
			vals[ref] = smtctx.Or(parts...)
		}
	}
	return &taintMap{vals: vals}
}
