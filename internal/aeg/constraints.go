// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package aeg

import (
	"aegleak/internal/smtctx"

	"github.com/pkg/errors"
)

// Constraints holds the named hard assertions accumulated during
// construction. Names let witnesses and logs explain *why* a particular
// assignment was forced, not just that it was.
type Constraints struct {
	names []string
	exprs []*smtctx.Expr
}

func newConstraints() *Constraints {
	return &Constraints{}
}

func (c *Constraints) add(name string, e *smtctx.Expr) {
	c.names = append(c.names, name)
	c.exprs = append(c.exprs, e)
}

// All returns every named assertion, for a caller assembling a solver
// scope (e.g. the leakage detector seeding a fresh Solver per function).
func (c *Constraints) All() []*smtctx.Expr {
	return c.exprs
}

// Names returns the assertion names in the same order as All.
func (c *Constraints) Names() []string {
	return c.names
}

// unsatisfiableTrivially is a cheap sanity check run once at the end of
// construction: if a hard constraint is the constant false, or two hard
// constraints are syntactically e and Not(e), this function flags the
// construction rather than let every later query silently come back unsat.
// It does not replace a real Check, which callers still run in their own
// scope.
func (c *Constraints) unsatisfiableTrivially() error {
	for i, e := range c.exprs {
		if smtctx.IsFalse(e) {
			return errors.Errorf("constraint %q is trivially false", c.names[i])
		}
		for j := i + 1; j < len(c.exprs); j++ {
			if smtctx.Negation(e, c.exprs[j]) {
				return errors.Errorf("constraints %q and %q directly contradict each other", c.names[i], c.names[j])
			}
		}
	}
	return nil
}

// Simplify folds away constant-true constraints, matching the original's
// post-construction simplify() pass — dead weight for the solver, not a
// behavior change.
func (a *AEG) Simplify() {
	kept := a.Constraints.exprs[:0]
	keptNames := a.Constraints.names[:0]
	for i, e := range a.Constraints.exprs {
		if smtctx.IsTrue(e) {
			continue
		}
		kept = append(kept, e)
		keptNames = append(keptNames, a.Constraints.names[i])
	}
	a.Constraints.exprs = kept
	a.Constraints.names = keptNames
}
