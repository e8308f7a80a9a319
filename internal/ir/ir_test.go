// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package ir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModuleClassicV4(t *testing.T) {
	src := `function classic_v4
0: entry
1: store addr=10 data=100
2: store addr=10 data=101
3: load addr=10 result=20
4: load addr=20 result=21
5: exit
`
	fn, err := ParseModule(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, "classic_v4", fn.Name)
	require.Len(t, fn.Instructions, 6)
	assert.Equal(t, KindEntry, fn.Instructions[0].Kind)
	assert.Equal(t, KindExit, fn.Instructions[5].Kind)
	assert.Equal(t, []int{1}, fn.Instructions[0].Successors)
	assert.Equal(t, []int{5}, fn.Instructions[4].Successors)
	assert.Empty(t, fn.Instructions[5].Successors)
	assert.True(t, fn.Instructions[3].IsMemOp())
	assert.True(t, fn.Instructions[3].MayRead())
	assert.False(t, fn.Instructions[3].MayWrite())
}

func TestParseModuleBranch(t *testing.T) {
	src := `function with_branch
0: entry
1: branch succs=2,3
2: load addr=10 result=20
3: exit
`
	fn, err := ParseModule(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, fn.Instructions[1].Successors)
}

func TestParseModuleRejectsBadAddressOnNonMemOp(t *testing.T) {
	src := `function bad
0: entry
1: other addr=10
2: exit
`
	_, err := ParseModule(strings.NewReader(src))
	assert.Error(t, err)
}

func TestParseModuleRequiresEntryFirst(t *testing.T) {
	src := `function bad
0: exit
`
	_, err := ParseModule(strings.NewReader(src))
	assert.Error(t, err)
}

func TestInstructionString(t *testing.T) {
	load := Instruction{Kind: KindLoad, Address: 10, Result: 20}
	assert.Contains(t, load.String(), "load")
	store := Instruction{Kind: KindStore, Address: 10, Data: 100}
	assert.Contains(t, store.String(), "store")
}
