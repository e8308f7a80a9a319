// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package cfg

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

func TestBuildStraightLine(t *testing.T) {
	fn := parse(t, `function straight
0: entry
1: load addr=10 result=20
2: exit
`)
	c, err := Build(fn)
	require.NoError(t, err)
	assert.Equal(t, NodeRef(0), c.Entry)
	assert.Equal(t, []NodeRef{2}, c.Exits)
	assert.Equal(t, []NodeRef{1}, c.Successors(0))
	assert.Equal(t, []NodeRef{0}, c.Predecessors(1))
}

func TestBuildRejectsUnreachable(t *testing.T) {
	fn := parse(t, `function disjoint
0: entry
1: exit
2: load addr=10 result=20 succs=1
`)
	// instruction 2 is never a successor of anything, so it is unreachable.
	_, err := Build(fn)
	assert.Error(t, err)
}

func TestConstructRob(t *testing.T) {
	// entry -> branch(taken=load_good, alt=load_bad) -> exit
	fn := parse(t, `function branch_rob
0: entry
1: branch succs=2,3
2: load addr=10 result=20
3: load addr=11 result=21
4: exit
`)
	fn.Instructions[2].Successors = []int{4}
	fn.Instructions[3].Successors = []int{4}
	c, err := Build(fn)
	require.NoError(t, err)

	exp, err := Construct(c, 1, 8)
	require.NoError(t, err)

	var sawSpeculative bool
	for _, n := range exp.Nodes {
		if n.Depth > 0 {
			sawSpeculative = true
			assert.Equal(t, NodeRef(3), n.Source, "the mis-speculated path follows the non-taken successor")
		}
	}
	assert.True(t, sawSpeculative)
}

func TestConstructRobSizeBoundsTransientLength(t *testing.T) {
	fn := parse(t, `function long_transient
0: entry
1: branch succs=5,2
2: other succs=3 result=30
3: other succs=4 result=31
4: other succs=6 result=32
5: other succs=6 result=33
6: exit
`)
	c, err := Build(fn)
	require.NoError(t, err)

	exp, err := Construct(c, 1, 1)
	require.NoError(t, err)

	for _, n := range exp.Nodes {
		if n.Depth > 0 {
			assert.NotEqual(t, NodeRef(4), n.Source, "rob_size=1 must cut the transient path before a third node")
		}
	}
}

func TestConstructNumSpecsBoundsNesting(t *testing.T) {
	fn := parse(t, `function nested_branches
0: entry
1: branch succs=3,2
2: branch succs=4,5
3: exit
4: exit
5: exit
`)
	c, err := Build(fn)
	require.NoError(t, err)

	exp, err := Construct(c, 1, 8)
	require.NoError(t, err)

	for _, n := range exp.Nodes {
		assert.LessOrEqual(t, n.Depth, uint(1))
	}
}
