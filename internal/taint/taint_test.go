// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package taint

import (
	"testing"

	"aegleak/internal/cfg"
	"aegleak/internal/smtctx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeView is a minimal AEGView over a chain of nodes for testing.
type fakeView struct {
	ctx        *smtctx.Context
	n          int
	callSites  map[cfg.ExpandedRef]bool
	addrPreds  map[cfg.ExpandedRef][]cfg.ExpandedRef
	dataPreds  map[cfg.ExpandedRef][]cfg.ExpandedRef
	memPreds   map[cfg.ExpandedRef][]cfg.ExpandedRef
}

func (f *fakeView) NumNodes() int { return f.n }
func (f *fakeView) Exec(cfg.ExpandedRef) *smtctx.Expr { return smtctx.True() }
func (f *fakeView) IsCallSite(n cfg.ExpandedRef) bool { return f.callSites[n] }
func (f *fakeView) AddrPredecessors(n cfg.ExpandedRef) []cfg.ExpandedRef { return f.addrPreds[n] }
func (f *fakeView) DataPredecessors(n cfg.ExpandedRef) []cfg.ExpandedRef { return f.dataPreds[n] }
func (f *fakeView) MemPredecessors(n cfg.ExpandedRef) []cfg.ExpandedRef { return f.memPreds[n] }

func TestBitvectorTaintPropagatesFromCallSite(t *testing.T) {
	ctx := smtctx.NewContext()
	view := &fakeView{
		ctx:       ctx,
		n:         3,
		callSites: map[cfg.ExpandedRef]bool{0: true},
		dataPreds: map[cfg.ExpandedRef][]cfg.ExpandedRef{
			1: {0},
			2: {1},
		},
	}
	taint := BitvectorTaint{}.Compute(view, ctx)
	s := ctx.NewSolver()
	s.Assert(taint.Flag(2))
	status, _, err := s.Check(smtctx.DefaultSearchBudget)
	require.NoError(t, err)
	assert.Equal(t, smtctx.Sat, status, "taint should reach node 2 transitively through node 1")
}

func TestBitvectorTaintDoesNotReachUnrelatedNode(t *testing.T) {
	ctx := smtctx.NewContext()
	view := &fakeView{
		ctx:       ctx,
		n:         3,
		callSites: map[cfg.ExpandedRef]bool{0: true},
		dataPreds: map[cfg.ExpandedRef][]cfg.ExpandedRef{
			1: {0},
		},
	}
	taint := BitvectorTaint{}.Compute(view, ctx)
	s := ctx.NewSolver()
	s.Assert(taint.Flag(2))
	status, _, err := s.Check(smtctx.DefaultSearchBudget)
	require.NoError(t, err)
	assert.Equal(t, smtctx.Unsat, status, "node 2 has no dependency path from the call site")
}

func TestArrayTaintPropagatesThroughMemory(t *testing.T) {
	ctx := smtctx.NewContext()
	view := &fakeView{
		ctx:       ctx,
		n:         3,
		callSites: map[cfg.ExpandedRef]bool{0: true},
		dataPreds: map[cfg.ExpandedRef][]cfg.ExpandedRef{
			1: {0}, // a store whose data comes from the call site
		},
		memPreds: map[cfg.ExpandedRef][]cfg.ExpandedRef{
			2: {1}, // a load that may read the tainted store
		},
	}
	bv := BitvectorTaint{}.Compute(view, ctx)
	arr := ArrayTaint{}.Compute(view, ctx)

	s1 := ctx.NewSolver()
	s1.Assert(bv.Flag(2))
	status1, _, err := s1.Check(smtctx.DefaultSearchBudget)
	require.NoError(t, err)
	assert.Equal(t, smtctx.Unsat, status1, "bitvector taint never crosses memory")

	s2 := ctx.NewSolver()
	s2.Assert(arr.Flag(2))
	status2, _, err := s2.Check(smtctx.DefaultSearchBudget)
	require.NoError(t, err)
	assert.Equal(t, smtctx.Sat, status2, "array taint follows the memory edge")
}
