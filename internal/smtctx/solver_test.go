// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package smtctx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckTrivialSat(t *testing.T) {
	ctx := NewContext()
	s := ctx.NewSolver()
	a := ctx.FreshBool()
	s.Assert(a)
	status, model, err := s.Check(DefaultSearchBudget)
	require.NoError(t, err)
	require.Equal(t, Sat, status)
	assert.True(t, model.BoolValue(a))
}

func TestCheckContradictionUnsat(t *testing.T) {
	ctx := NewContext()
	s := ctx.NewSolver()
	a := ctx.FreshBool()
	s.Assert(a)
	s.Assert(Not(a))
	status, model, err := s.Check(DefaultSearchBudget)
	require.NoError(t, err)
	assert.Equal(t, Unsat, status)
	assert.Nil(t, model)
}

func TestCheckEqualityTransitivity(t *testing.T) {
	ctx := NewContext()
	s := ctx.NewSolver()
	x, y, z := ctx.FreshBV(), ctx.FreshBV(), ctx.FreshBV()
	s.Assert(ctx.Eq(x, y))
	s.Assert(ctx.Eq(y, z))
	s.Assert(Not(ctx.Eq(x, z)))
	status, _, err := s.Check(DefaultSearchBudget)
	require.NoError(t, err)
	assert.Equal(t, Unsat, status, "equality is transitive: x=y and y=z force x=z")
}

func TestCheckDistinctConstantsUnsat(t *testing.T) {
	ctx := NewContext()
	s := ctx.NewSolver()
	s.Assert(ctx.Eq(ctx.ConstBV(10), ctx.ConstBV(20)))
	status, _, err := s.Check(DefaultSearchBudget)
	require.NoError(t, err)
	assert.Equal(t, Unsat, status)
}

func TestPushPopRestoresScope(t *testing.T) {
	ctx := NewContext()
	s := ctx.NewSolver()
	a := ctx.FreshBool()
	s.Assert(a)
	mark := s.Push()
	s.Assert(Not(a))
	status, _, err := s.Check(DefaultSearchBudget)
	require.NoError(t, err)
	assert.Equal(t, Unsat, status)

	s.PopTo(mark)
	status, _, err = s.Check(DefaultSearchBudget)
	require.NoError(t, err)
	assert.Equal(t, Sat, status)
}

func TestModelSameClass(t *testing.T) {
	ctx := NewContext()
	s := ctx.NewSolver()
	x, y := ctx.FreshBV(), ctx.FreshBV()
	s.Assert(ctx.Eq(x, y))
	status, model, err := s.Check(DefaultSearchBudget)
	require.NoError(t, err)
	require.Equal(t, Sat, status)
	assert.True(t, model.SameClass(x, y))
}

func TestImpliesSatisfiable(t *testing.T) {
	ctx := NewContext()
	s := ctx.NewSolver()
	a, b := ctx.FreshBool(), ctx.FreshBool()
	s.Assert(Implies(a, b))
	s.Assert(a)
	status, model, err := s.Check(DefaultSearchBudget)
	require.NoError(t, err)
	require.Equal(t, Sat, status)
	assert.True(t, model.BoolValue(b))
}

func TestCheckBudgetExhaustion(t *testing.T) {
	ctx := NewContext()
	s := ctx.NewSolver()
	for i := 0; i < 40; i++ {
		s.Assert(Or(ctx.FreshBool(), ctx.FreshBool()))
	}
	status, _, err := s.Check(1)
	require.NoError(t, err)
	assert.Equal(t, Unknown, status)
}
