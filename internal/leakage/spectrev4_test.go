// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package leakage

import (
	"strings"
	"testing"

	"aegleak/internal/aeg"
	"aegleak/internal/alias"
	"aegleak/internal/cfg"
	"aegleak/internal/dataflow"
	"aegleak/internal/ir"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, src string, numSpecs, robSize uint, oracle alias.Oracle) *aeg.AEG {
	t.Helper()
	fn, err := ir.ParseModule(strings.NewReader(src))
	require.NoError(t, err)

	c, err := cfg.Build(fn)
	require.NoError(t, err)
	exp, err := cfg.Construct(c, numSpecs, robSize)
	require.NoError(t, err)

	deps := aeg.Deps{
		Addr: dataflow.AddressDependencyAnalysis(fn),
		Data: dataflow.DataDependencyAnalysis(fn),
		Ctrl: dataflow.ControlDependencyAnalysis(fn),
	}
	g, err := aeg.Construct(exp, deps, aeg.Options{Oracle: oracle})
	require.NoError(t, err)
	return g
}

// TestSpectreV4ClassicLeak is scenario S2: two stores to the same address
// followed by a load of that address used as a second load's address —
// the canonical speculative store-bypass gadget.
func TestSpectreV4ClassicLeak(t *testing.T) {
	g := build(t, `function classic_v4
0: entry
1: store addr=10 data=100
2: store addr=10 data=101
3: load addr=10 result=20
4: load addr=20 result=21
5: exit
`, 1, 8, alias.DefaultOracle{})

	d := &Detector{Graph: g, Mode: SlowMode, ConcreteSourcedStores: true}
	witnesses, err := d.RunSpectreV4()
	require.NoError(t, err)
	require.NotEmpty(t, witnesses, "the classic bypass gadget must be detected")

	w := witnesses[0]
	assert.Equal(t, aeg.NodeRef(4), w.Transmitter)
	assert.Equal(t, aeg.NodeRef(3), w.Load)
	assert.Equal(t, aeg.NodeRef(2), w.BypassedStore)
	require.NotNil(t, w.SourcedStore)
	assert.Equal(t, aeg.NodeRef(1), *w.SourcedStore)
}

// TestSpectreV4NoSecondMemOpNoLeak is scenario S1: a single load followed
// immediately by exit has no candidate transmitter at all.
func TestSpectreV4NoSecondMemOpNoLeak(t *testing.T) {
	g := build(t, `function single_load
0: entry
1: load addr=10 result=20
2: exit
`, 1, 8, alias.DefaultOracle{})

	d := &Detector{Graph: g, Mode: SlowMode, ConcreteSourcedStores: true}
	witnesses, err := d.RunSpectreV4()
	require.NoError(t, err)
	assert.Empty(t, witnesses)
}

// TestSpectreV4NoAliasingNoLeak is scenario S3: the two stores provably
// touch distinct constant addresses, so no bypass is possible.
func TestSpectreV4NoAliasingNoLeak(t *testing.T) {
	g := build(t, `function distinct_addrs
0: entry
1: store addr=10 data=100
2: store addr=11 data=101
3: load addr=10 result=20
4: load addr=20 result=21
5: exit
`, 1, 8, alias.ConstantOracle{ConstantBelow: 1000})

	d := &Detector{Graph: g, Mode: SlowMode, ConcreteSourcedStores: true}
	witnesses, err := d.RunSpectreV4()
	require.NoError(t, err)
	assert.Empty(t, witnesses, "distinct constant addresses cannot alias, so no bypass exists")
}

// TestSpectreV4ExistentialModeFindsLeakWithoutNamingSource exercises the
// ConcreteSourcedStores=false path.
func TestSpectreV4ExistentialModeFindsLeakWithoutNamingSource(t *testing.T) {
	g := build(t, `function classic_v4
0: entry
1: store addr=10 data=100
2: store addr=10 data=101
3: load addr=10 result=20
4: load addr=20 result=21
5: exit
`, 1, 8, alias.DefaultOracle{})

	d := &Detector{Graph: g, Mode: SlowMode, ConcreteSourcedStores: false}
	witnesses, err := d.RunSpectreV4()
	require.NoError(t, err)
	require.NotEmpty(t, witnesses)
	assert.Nil(t, witnesses[0].SourcedStore)
}

// TestSpectreV4ROBWindowExcludesFarBypassedStore is scenario S4: the same
// gadget as S2, but with a store-buffer window too narrow to reach the
// bypassed-from store, so no leak should be reported.
func TestSpectreV4ROBWindowExcludesFarBypassedStore(t *testing.T) {
	g := build(t, `function classic_v4
0: entry
1: store addr=10 data=100
2: store addr=10 data=101
3: load addr=10 result=20
4: load addr=20 result=21
5: exit
`, 1, 2, alias.DefaultOracle{})

	d := &Detector{Graph: g, Mode: SlowMode, ConcreteSourcedStores: true}
	witnesses, err := d.RunSpectreV4()
	require.NoError(t, err)
	assert.Empty(t, witnesses, "store0 lies two hops from load_p, outside a rob_size=2 store-buffer window")
}

// buildWithOverride is build, but lets the caller mutate the parsed
// function (e.g. to set Operands an "other" instruction the text format
// cannot express) before the CFG/AEG pipeline runs.
func buildWithOverride(t *testing.T, src string, numSpecs, robSize uint, oracle alias.Oracle, override func(*ir.Function)) *aeg.AEG {
	t.Helper()
	fn, err := ir.ParseModule(strings.NewReader(src))
	require.NoError(t, err)
	override(&fn)

	c, err := cfg.Build(fn)
	require.NoError(t, err)
	exp, err := cfg.Construct(c, numSpecs, robSize)
	require.NoError(t, err)

	deps := aeg.Deps{
		Addr: dataflow.AddressDependencyAnalysis(fn),
		Data: dataflow.DataDependencyAnalysis(fn),
		Ctrl: dataflow.ControlDependencyAnalysis(fn),
	}
	g, err := aeg.Construct(exp, deps, aeg.Options{Oracle: oracle})
	require.NoError(t, err)
	return g
}

// TestTracebackDepsFastModeStopsAtFirstPath builds a store whose address
// depends directly on two distinct loads (via an arithmetic "other"
// instruction combining them), so the ADDR traceback has two branches: one
// per load. Slow mode must walk both; fast mode must stop at the first.
func TestTracebackDepsFastModeStopsAtFirstPath(t *testing.T) {
	g := buildWithOverride(t, `function dual_addr_paths
0: entry
1: load addr=10 result=20
2: load addr=11 result=21
3: other result=30 name=combine
4: store addr=30 data=5
5: exit
`, 1, 8, alias.DefaultOracle{}, func(fn *ir.Function) {
		fn.Instructions[3].Operands = []ir.ValueID{20, 21}
	})

	slow := &Detector{Graph: g, Mode: SlowMode}
	slowPaths, outcome := slow.tracebackDeps(4, aeg.EdgeAddr, addrTracebackHops)
	require.Equal(t, LookaheadFound, outcome)
	assert.Len(t, slowPaths, 2, "slow mode walks every address-dependency branch")

	fast := &Detector{Graph: g, Mode: FastMode}
	fastPaths, outcome := fast.tracebackDeps(4, aeg.EdgeAddr, addrTracebackHops)
	require.Equal(t, LookaheadFound, outcome)
	assert.Len(t, fastPaths, 1, "fast mode stops at the first load-rooted branch")
}

// TestWitnessExecutionsCapsResults verifies the witness-count cap stops
// the search early.
func TestWitnessExecutionsCapsResults(t *testing.T) {
	g := build(t, `function classic_v4
0: entry
1: store addr=10 data=100
2: store addr=10 data=101
3: load addr=10 result=20
4: load addr=20 result=21
5: exit
`, 1, 8, alias.DefaultOracle{})

	d := &Detector{Graph: g, Mode: SlowMode, ConcreteSourcedStores: true, WitnessExecutions: 0}
	all, err := d.RunSpectreV4()
	require.NoError(t, err)
	require.NotEmpty(t, all)

	d2 := &Detector{Graph: g, Mode: SlowMode, ConcreteSourcedStores: true, WitnessExecutions: 1}
	capped, err := d2.RunSpectreV4()
	require.NoError(t, err)
	assert.LessOrEqual(t, len(capped), 1)
}
