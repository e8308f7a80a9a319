// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Package alias provides the pluggable alias oracle AEG construction
// consults when deciding whether two memory accesses may, must, or cannot
// touch the same address.
package alias

import "aegleak/internal/ir"

// Result is the three-valued outcome of an alias query.
type Result int

const (
	// NoAlias means the two locations provably never overlap.
	NoAlias Result = iota
	// MayAlias means the two locations might overlap; AEG must consider
	// both the aliasing and non-aliasing case.
	MayAlias
	// MustAlias means the two locations always overlap.
	MustAlias
)

func (r Result) String() string {
	switch r {
	case NoAlias:
		return "no-alias"
	case MayAlias:
		return "may-alias"
	case MustAlias:
		return "must-alias"
	default:
		return "unknown"
	}
}

// Loc identifies a memory access site by its owning instruction, so the
// oracle can consult instruction-level metadata (e.g. a front end's points-to
// sets) instead of only the raw address ValueID, which may be identical for
// two unrelated front-end pointers coincidentally reusing a ValueID number.
type Loc struct {
	Inst int
	Addr ir.ValueID
}

// Oracle answers alias queries. A real deployment backs this with the front
// end's points-to analysis; DefaultOracle is this tool's conservative
// stand-in.
type Oracle interface {
	Query(a, b Loc) Result
}

// DefaultOracle decides aliasing purely from the two locations' ValueID:
// identical ValueIDs must alias, everything else may alias. This is the
// conservative choice required when no real points-to analysis is wired in
//: reporting MayAlias rather than NoAlias never hides a real leak,
// it can only make AEG construction consider pairs that do not actually
// interact.
type DefaultOracle struct{}

// Query implements Oracle.
func (DefaultOracle) Query(a, b Loc) Result {
	if a.Addr == b.Addr {
		return MustAlias
	}
	return MayAlias
}

// ConstantOracle is a testing/demo oracle that treats distinct literal
// ValueIDs below the given threshold as provably distinct constant
// addresses (NoAlias), useful for exercising the "no aliasing, no leak"
// scenario without a full points-to analysis.
type ConstantOracle struct {
	// ConstantBelow marks every ValueID strictly less than this bound as
	// a known-distinct compile-time constant address.
	ConstantBelow ir.ValueID
}

// Query implements Oracle.
func (o ConstantOracle) Query(a, b Loc) Result {
	if a.Addr == b.Addr {
		return MustAlias
	}
	if a.Addr < o.ConstantBelow && b.Addr < o.ConstantBelow {
		return NoAlias
	}
	return MayAlias
}

// Memo wraps an Oracle with a memoization table keyed by the unordered
// location pair, so repeated queries for the same pair skip the inner
// oracle.
type Memo struct {
	inner Oracle
	cache map[pairKey]Result
}

type pairKey struct {
	a, b Loc
}

// NewMemo wraps inner with a memoization cache.
func NewMemo(inner Oracle) *Memo {
	return &Memo{inner: inner, cache: make(map[pairKey]Result)}
}

// Query implements Oracle, consulting the cache before delegating to inner.
func (m *Memo) Query(a, b Loc) Result {
	key := pairKey{a, b}
	if a.Inst > b.Inst || (a.Inst == b.Inst && a.Addr > b.Addr) {
		key = pairKey{b, a}
	}
	if r, ok := m.cache[key]; ok {
		return r
	}
	r := m.inner.Query(a, b)
	m.cache[key] = r
	return r
}
