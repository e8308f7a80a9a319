// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package dataflow

import (
	"strings"
	"testing"

	"aegleak/internal/ir"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) ir.Function {
	t.Helper()
	fn, err := ir.ParseModule(strings.NewReader(src))
	require.NoError(t, err)
	return fn
}

func TestAddressDependencyAnalysisClassicV4(t *testing.T) {
	// store 0 -> p; store 1 -> p; load p -> r; load r -> s
	fn := parse(t, `function classic_v4
0: entry
1: store addr=10 data=100
2: store addr=10 data=101
3: load addr=10 result=20
4: load addr=20 result=21
5: exit
`)
	rel := AddressDependencyAnalysis(fn)
	assert.True(t, rel.Has(4, 3), "load r's address must depend on load p")
	assert.False(t, rel.Has(3, 4))
	assert.False(t, rel.Has(1, 3))
}

func TestAddressDependencyAnalysisNoDependency(t *testing.T) {
	// load at a; store to an unrelated constant address.
	fn := parse(t, `function independent
0: entry
1: load addr=10 result=20
2: store addr=99 data=5
3: exit
`)
	rel := AddressDependencyAnalysis(fn)
	assert.False(t, rel.Has(2, 1))
}

func TestAddressDependencyAnalysisThroughArithmetic(t *testing.T) {
	// load at a -> r; other computes r2 = f(r); store to addr=r2.
	fn := parse(t, `function via_arith
0: entry
1: load addr=10 result=20
2: other result=30 name=add
3: store addr=30 data=5
4: exit
`)
	fn.Instructions[2].Operands = []ir.ValueID{20}
	rel := AddressDependencyAnalysis(fn)
	assert.True(t, rel.Has(3, 1), "store's address transitively depends on the load through arithmetic")
}

func TestDataDependencyAnalysisCallSeed(t *testing.T) {
	fn := parse(t, `function call_seed
0: entry
1: call addr=10 result=20
2: store addr=99 data=20
3: exit
`)
	rel := DataDependencyAnalysis(fn)
	assert.True(t, rel.Has(2, 1))
}

func TestControlDependencyAnalysis(t *testing.T) {
	fn := parse(t, `function ctrl
0: entry
1: load addr=10 result=20
2: branch succs=3,4
3: exit
4: exit
`)
	fn.Instructions[2].Operands = []ir.ValueID{20}
	rel := ControlDependencyAnalysis(fn)
	assert.True(t, rel.Has(2, 1))
}
