// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package smtctx

// Model is a satisfying assignment returned by a successful Check. It
// answers boolean-value and equivalence-class queries against exactly the
// assignment the solver found.
type Model struct {
	seen   map[atomKey]int
	assign []ternary
}

// BoolValue reports e's truth value under this model. An atom that never
// appeared in any asserted expression is unconstrained; BoolValue reports
// false for it, matching the solver's convention that an unconstrained
// proposition may be assigned either value.
func (m *Model) BoolValue(e *Expr) bool {
	return evalBool(e, m.seen, m.assign) == tTrue
}

// SameClass reports whether a and b were merged into the same equivalence
// class by the equalities this model satisfies.
func (m *Model) SameClass(a, b BV) bool {
	if a == b {
		return true
	}
	atoms := make([]atomKey, len(m.seen))
	for k, idx := range m.seen {
		atoms[idx] = k
	}
	ok, uf := consistent(atoms, m.assign)
	if !ok {
		// unreachable for a model returned by a successful Check, which
		// only ever returns consistent assignments.
		return false
	}
	return uf.find(a) == uf.find(b)
}
