// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Package smtctx is a small symbolic boolean and bitvector-equality solver
// standing in for an external SMT backend. It has no grounding in the example corpus,
// which carries no Z3/SMT binding anywhere; see DESIGN.md.
package smtctx

// BVKind distinguishes a free bitvector variable from a known constant.
type BVKind int

const (
	bvVar BVKind = iota
	bvConst
)

// BV is an opaque handle to a symbolic bitvector term: either a fresh
// variable (an address, a datum) or a known constant. BV values are
// comparable and may be used as map keys.
type BV struct {
	kind BVKind
	id   int
	val  int64
}

// Context allocates fresh symbolic variables and builds expressions. A
// Context is not safe for concurrent use; callers needing parallelism
// create one Context per worker, matching this tool's process-per-function
// concurrency model.
type Context struct {
	nextBV   int
	nextBool int
}

// NewContext returns an empty context.
func NewContext() *Context {
	return &Context{}
}

// FreshBV allocates a new, otherwise-unconstrained bitvector variable.
func (c *Context) FreshBV() BV {
	c.nextBV++
	return BV{kind: bvVar, id: c.nextBV}
}

// ConstBV returns the BV representing a known constant value.
func (c *Context) ConstBV(v int64) BV {
	return BV{kind: bvConst, val: v}
}

// op identifies an Expr's shape.
type op int

const (
	opConst op = iota
	opVar
	opEq
	opNot
	opAnd
	opOr
)

// Expr is an immutable boolean expression node: a literal, a fresh boolean
// variable, a bitvector equality atom, or a connective over sub-Exprs.
type Expr struct {
	kind op
	sub  []*Expr
	v    bool // for opConst
	id   int  // for opVar
	a, b BV   // for opEq
}

// True returns the constant true expression.
func True() *Expr { return &Expr{kind: opConst, v: true} }

// False returns the constant false expression.
func False() *Expr { return &Expr{kind: opConst, v: false} }

// FreshBool allocates a new, otherwise-unconstrained boolean variable.
func (c *Context) FreshBool() *Expr {
	c.nextBool++
	return &Expr{kind: opVar, id: c.nextBool}
}

// Eq returns the proposition that a and b denote the same value. Comparing
// a BV against itself, or two identical constants, folds to True; two
// distinct constants fold to False, without needing the solver.
func (c *Context) Eq(a, b BV) *Expr {
	if a == b {
		return True()
	}
	if a.kind == bvConst && b.kind == bvConst {
		if a.val == b.val {
			return True()
		}
		return False()
	}
	lo, hi := a, b
	if greaterBV(lo, hi) {
		lo, hi = hi, lo
	}
	return &Expr{kind: opEq, a: lo, b: hi}
}

func greaterBV(a, b BV) bool {
	if a.kind != b.kind {
		return a.kind > b.kind
	}
	if a.kind == bvConst {
		return a.val > b.val
	}
	return a.id > b.id
}

// Not negates e.
func Not(e *Expr) *Expr {
	if e.kind == opConst {
		if e.v {
			return False()
		}
		return True()
	}
	return &Expr{kind: opNot, sub: []*Expr{e}}
}

// And conjoins zero or more expressions (And() is True).
func And(es ...*Expr) *Expr {
	flat := make([]*Expr, 0, len(es))
	for _, e := range es {
		if e.kind == opConst {
			if !e.v {
				return False()
			}
			continue
		}
		flat = append(flat, e)
	}
	if len(flat) == 0 {
		return True()
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return &Expr{kind: opAnd, sub: flat}
}

// Or disjoins zero or more expressions (Or() is False).
func Or(es ...*Expr) *Expr {
	flat := make([]*Expr, 0, len(es))
	for _, e := range es {
		if e.kind == opConst {
			if e.v {
				return True()
			}
			continue
		}
		flat = append(flat, e)
	}
	if len(flat) == 0 {
		return False()
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return &Expr{kind: opOr, sub: flat}
}

// Implies returns a => b.
func Implies(a, b *Expr) *Expr {
	return Or(Not(a), b)
}

// IsTrue reports whether e is syntactically the constant true, e.g. for
// callers pruning trivially-satisfied constraints before handing a
// constraint list to a solver.
func IsTrue(e *Expr) bool {
	return e.kind == opConst && e.v
}

// IsFalse reports whether e is syntactically the constant false.
func IsFalse(e *Expr) bool {
	return e.kind == opConst && !e.v
}

// Equal reports whether a and b are the same syntactic expression, without
// consulting the solver — two separately-built Not(x) terms over equal x
// compare equal, but two expressions that merely happen to be equisatisfiable
// do not.
func Equal(a, b *Expr) bool {
	if a == b {
		return true
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case opConst:
		return a.v == b.v
	case opVar:
		return a.id == b.id
	case opEq:
		return a.a == b.a && a.b == b.b
	case opNot:
		return Equal(a.sub[0], b.sub[0])
	case opAnd, opOr:
		if len(a.sub) != len(b.sub) {
			return false
		}
		for i := range a.sub {
			if !Equal(a.sub[i], b.sub[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Negation reports whether one of a, b is syntactically Not of the other —
// a direct e/¬e contradiction a caller can catch without a solver query.
func Negation(a, b *Expr) bool {
	if a.kind == opNot && Equal(a.sub[0], b) {
		return true
	}
	if b.kind == opNot && Equal(b.sub[0], a) {
		return true
	}
	return false
}
