// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package alias

import (
	"testing"

	"aegleak/internal/ir"

	"github.com/stretchr/testify/assert"
)

func TestDefaultOracleIdenticalAddrMustAlias(t *testing.T) {
	o := DefaultOracle{}
	a := Loc{Inst: 1, Addr: ir.ValueID(10)}
	b := Loc{Inst: 2, Addr: ir.ValueID(10)}
	assert.Equal(t, MustAlias, o.Query(a, b))
}

func TestDefaultOracleDistinctAddrMayAlias(t *testing.T) {
	o := DefaultOracle{}
	a := Loc{Inst: 1, Addr: ir.ValueID(10)}
	b := Loc{Inst: 2, Addr: ir.ValueID(11)}
	assert.Equal(t, MayAlias, o.Query(a, b))
}

func TestConstantOracleNoAliasBelowThreshold(t *testing.T) {
	o := ConstantOracle{ConstantBelow: 100}
	a := Loc{Inst: 1, Addr: ir.ValueID(10)}
	b := Loc{Inst: 2, Addr: ir.ValueID(20)}
	assert.Equal(t, NoAlias, o.Query(a, b))
}

func TestMemoCachesBothOrderings(t *testing.T) {
	calls := 0
	inner := oracleFunc(func(a, b Loc) Result {
		calls++
		return MayAlias
	})
	m := NewMemo(inner)
	a := Loc{Inst: 1, Addr: 10}
	b := Loc{Inst: 2, Addr: 20}
	m.Query(a, b)
	m.Query(b, a)
	assert.Equal(t, 1, calls)
}

type oracleFunc func(a, b Loc) Result

func (f oracleFunc) Query(a, b Loc) Result { return f(a, b) }
