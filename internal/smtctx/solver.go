// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package smtctx

import "github.com/pkg/errors"

// Status is the three-valued outcome of a Check.
type Status int

const (
	Unknown Status = iota
	Sat
	Unsat
)

func (s Status) String() string {
	switch s {
	case Sat:
		return "sat"
	case Unsat:
		return "unsat"
	default:
		return "unknown"
	}
}

// Solver accumulates assertions under a stack of scopes. Push/PopTo follows
// the same scoped-assertion idiom the leakage detector needs for its
// dependency traceback, without this
// package depending on that caller.
type Solver struct {
	ctx        *Context
	assertions []*Expr
}

// NewSolver returns an empty solver bound to ctx.
func (c *Context) NewSolver() *Solver {
	return &Solver{ctx: c}
}

// Assert adds e to the current scope.
func (s *Solver) Assert(e *Expr) {
	s.assertions = append(s.assertions, e)
}

// Push returns a mark that PopTo can later restore to, discarding every
// assertion added since.
func (s *Solver) Push() int {
	return len(s.assertions)
}

// PopTo discards every assertion added since the given mark.
func (s *Solver) PopTo(mark int) {
	s.assertions = s.assertions[:mark]
}

// atomKey canonicalizes a leaf proposition (a boolean variable or an
// equality atom) so that separately-constructed *Expr values referring to
// the same proposition compare equal.
type atomKey struct {
	isEq bool
	v    int
	a, b BV
}

func atomKeyOf(e *Expr) atomKey {
	if e.kind == opVar {
		return atomKey{v: e.id}
	}
	return atomKey{isEq: true, a: e.a, b: e.b}
}

func collectAtoms(e *Expr, seen map[atomKey]int, atoms *[]atomKey) {
	switch e.kind {
	case opVar, opEq:
		k := atomKeyOf(e)
		if _, ok := seen[k]; !ok {
			seen[k] = len(*atoms)
			*atoms = append(*atoms, k)
		}
	case opNot:
		collectAtoms(e.sub[0], seen, atoms)
	case opAnd, opOr:
		for _, s := range e.sub {
			collectAtoms(s, seen, atoms)
		}
	}
}

type ternary int

const (
	tUnknown ternary = iota
	tTrue
	tFalse
)

func evalBool(e *Expr, seen map[atomKey]int, assign []ternary) ternary {
	switch e.kind {
	case opConst:
		if e.v {
			return tTrue
		}
		return tFalse
	case opVar, opEq:
		idx, ok := seen[atomKeyOf(e)]
		if !ok {
			return tUnknown
		}
		return assign[idx]
	case opNot:
		switch evalBool(e.sub[0], seen, assign) {
		case tTrue:
			return tFalse
		case tFalse:
			return tTrue
		default:
			return tUnknown
		}
	case opAnd:
		sawUnknown := false
		for _, s := range e.sub {
			switch evalBool(s, seen, assign) {
			case tFalse:
				return tFalse
			case tUnknown:
				sawUnknown = true
			}
		}
		if sawUnknown {
			return tUnknown
		}
		return tTrue
	case opOr:
		sawUnknown := false
		for _, s := range e.sub {
			switch evalBool(s, seen, assign) {
			case tTrue:
				return tTrue
			case tUnknown:
				sawUnknown = true
			}
		}
		if sawUnknown {
			return tUnknown
		}
		return tFalse
	default:
		return tUnknown
	}
}

type unionFind struct {
	parent map[BV]BV
}

func newUnionFind() *unionFind {
	return &unionFind{parent: map[BV]BV{}}
}

func (u *unionFind) find(x BV) BV {
	p, ok := u.parent[x]
	if !ok || p == x {
		return x
	}
	root := u.find(p)
	u.parent[x] = root
	return root
}

func (u *unionFind) union(a, b BV) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[ra] = rb
	}
}

// consistent checks the equality atoms' congruence-closure consistency
// under a fully-resolved boolean assignment: every atom assigned true is
// merged; no atom assigned false may end up transitively merged; and no
// equivalence class may contain two differently-valued constants.
func consistent(atoms []atomKey, assign []ternary) (bool, *unionFind) {
	uf := newUnionFind()
	for i, a := range atoms {
		if a.isEq && assign[i] == tTrue {
			uf.union(a.a, a.b)
		}
	}
	classConst := map[BV]int64{}
	classHasConst := map[BV]bool{}
	seenBV := map[BV]bool{}
	for _, a := range atoms {
		if !a.isEq {
			continue
		}
		for _, bv := range [2]BV{a.a, a.b} {
			if seenBV[bv] || bv.kind != bvConst {
				continue
			}
			seenBV[bv] = true
			root := uf.find(bv)
			if classHasConst[root] && classConst[root] != bv.val {
				return false, uf
			}
			classHasConst[root] = true
			classConst[root] = bv.val
		}
	}
	for i, a := range atoms {
		if a.isEq && assign[i] == tFalse && uf.find(a.a) == uf.find(a.b) {
			return false, uf
		}
	}
	return true, uf
}

type searchResult int

const (
	searchUnsat searchResult = iota
	searchSat
	searchBudgetExceeded
)

func dpll(conj *Expr, seen map[atomKey]int, atoms []atomKey, assign []ternary, idx int, steps *int, maxSteps int) searchResult {
	*steps++
	if *steps > maxSteps {
		return searchBudgetExceeded
	}
	switch evalBool(conj, seen, assign) {
	case tFalse:
		return searchUnsat
	case tTrue:
		if ok, _ := consistent(atoms, assign); ok {
			return searchSat
		}
		return searchUnsat
	}
	for idx < len(atoms) && assign[idx] != tUnknown {
		idx++
	}
	if idx == len(atoms) {
		if ok, _ := consistent(atoms, assign); ok {
			return searchSat
		}
		return searchUnsat
	}

	assign[idx] = tTrue
	if r := dpll(conj, seen, atoms, assign, idx+1, steps, maxSteps); r != searchUnsat {
		return r
	}

	assign[idx] = tFalse
	r := dpll(conj, seen, atoms, assign, idx+1, steps, maxSteps)
	if r == searchUnsat {
		assign[idx] = tUnknown
	}
	return r
}

// DefaultSearchBudget bounds the number of search nodes Check explores
// before giving up and reporting Unknown — this package's stand-in for an
// external solver's wall-clock timeout.
const DefaultSearchBudget = 200_000

// Check reports whether the solver's current assertions are jointly
// satisfiable. maxSteps bounds the search; DefaultSearchBudget is a
// reasonable choice for callers with no specific budget of their own. On
// Sat, the returned Model answers queries against this exact assignment; it
// is invalidated by any further Assert/Push/PopTo on the same solver.
func (s *Solver) Check(maxSteps int) (Status, *Model, error) {
	if maxSteps <= 0 {
		return Unknown, nil, errors.New("smtctx: maxSteps must be positive")
	}
	conj := And(s.assertions...)
	seen := map[atomKey]int{}
	var atoms []atomKey
	collectAtoms(conj, seen, &atoms)

	assign := make([]ternary, len(atoms))
	steps := 0
	switch dpll(conj, seen, atoms, assign, 0, &steps, maxSteps) {
	case searchSat:
		return Sat, &Model{seen: seen, assign: assign}, nil
	case searchUnsat:
		return Unsat, nil, nil
	default:
		return Unknown, nil, nil
	}
}
