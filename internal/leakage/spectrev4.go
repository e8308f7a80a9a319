// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package leakage

import (
	"fmt"

	"aegleak/internal/aeg"
	"aegleak/internal/smtctx"
)

// addrTracebackHops bounds how many ADDR hops the Spectre-v4 routine walks
// back from a candidate transmitter looking for the load whose value it
// transmits. AddressDependencyAnalysis already computes the full
// transitive closure of "which loads may reach this instruction's
// address" (internal/dataflow), so a single AEG ADDR edge already encodes
// an arbitrarily long front-end dependency chain; two hops gives headroom
// for a transmitter whose address itself is computed by a further
// dependent memory op rather than directly by arithmetic.
const addrTracebackHops = 2

// RunSpectreV4 searches the graph for speculative store-bypass leaks: a
// load L that may transiently read from an older, "bypassed-from" store
// w0 instead of the architecturally-correct, more recent store w1 to the
// same address, where L's value then reaches a transmitter T through an
// address or data dependency.
func (d *Detector) RunSpectreV4() ([]Witness, error) {
	var witnesses []Witness

	for _, t := range d.candidateTransmitters() {
		if d.witnessCapReached(len(witnesses)) {
			break
		}
		paths, outcome := d.tracebackDeps(t, aeg.EdgeAddr, addrTracebackHops)
		if outcome == SkipTransmitter {
			continue
		}
		for _, path := range paths {
			if d.witnessCapReached(len(witnesses)) {
				break
			}
			w, found, err := d.checkSpectreV4AtLoad(t, path)
			if err != nil {
				return witnesses, err
			}
			if found {
				witnesses = append(witnesses, w)
				if d.Mode == FastMode {
					// fast mode reports at most one witness per
					// transmitter, trading completeness for speed.
					break
				}
			}
		}
	}
	return witnesses, nil
}

func (d *Detector) checkSpectreV4AtLoad(transmitter aeg.NodeRef, path Path) (Witness, bool, error) {
	g := d.Graph
	load := path.Load()

	var actions []string
	writes := g.WriteCandidates(load)
	for _, w1 := range writes {
		rf := g.RFExists(w1, load)
		if smtctx.IsFalse(rf) {
			continue
		}
		actions = append(actions, fmt.Sprintf("rf(%d,%d) candidate", w1, load))

		if d.ConcreteSourcedStores {
			for _, w0 := range writes {
				if w0 == w1 || !g.WithinSTBWindow(w0, load) {
					continue
				}
				co := g.COExists(w0, w1)
				if smtctx.IsFalse(co) {
					continue
				}
				rfx := g.RFXExists(w0, load)
				if smtctx.IsFalse(rfx) {
					continue
				}
				trace := append(append([]string{}, actions...),
					fmt.Sprintf("co(%d,%d) candidate", w0, w1),
					fmt.Sprintf("rfx(%d,%d) candidate", w0, load))
				sat, err := d.checkBypass(rf, co, rfx, transmitter)
				if err != nil {
					return Witness{}, false, err
				}
				if sat {
					w0Copy := w0
					trace = append(trace, "bypass confirmed sat")
					return Witness{
						Kind:          "spectre-v4",
						Transmitter:   transmitter,
						Load:          load,
						BypassedStore: w1,
						SourcedStore:  &w0Copy,
						Path:          path.Nodes,
						Actions:       trace,
					}, true, nil
				}
			}
			continue
		}

		// Existential form (ConcreteSourcedStores = false): instead of
		// checking each candidate source store individually, assert that
		// at least one exists in a single query — the same fact, proved
		// once rather than once per candidate.
		var bypassParts []*smtctx.Expr
		for _, w0 := range writes {
			if w0 == w1 || !g.WithinSTBWindow(w0, load) {
				continue
			}
			co := g.COExists(w0, w1)
			rfx := g.RFXExists(w0, load)
			if smtctx.IsFalse(co) || smtctx.IsFalse(rfx) {
				continue
			}
			bypassParts = append(bypassParts, smtctx.And(co, rfx))
			actions = append(actions, fmt.Sprintf("exists(co,rfx) via %d within stb window", w0))
		}
		if len(bypassParts) == 0 {
			continue
		}
		sat, err := d.checkBypass(rf, smtctx.Or(bypassParts...), smtctx.True(), transmitter)
		if err != nil {
			return Witness{}, false, err
		}
		if sat {
			trace := append(append([]string{}, actions...), "bypass confirmed sat")
			return Witness{
				Kind:          "spectre-v4",
				Transmitter:   transmitter,
				Load:          load,
				BypassedStore: w1,
				Path:          path.Nodes,
				Actions:       trace,
			}, true, nil
		}
	}
	return Witness{}, false, nil
}

// checkBypass opens a scoped solver (graph constraints + the three
// relation predicates + the transmitter's own execution) and checks
// satisfiability, discarding the scope on return either way.
func (d *Detector) checkBypass(rf, co, rfx *smtctx.Expr, transmitter aeg.NodeRef) (bool, error) {
	solver := d.Graph.Ctx.NewSolver()
	for _, c := range d.Graph.Constraints.All() {
		solver.Assert(c)
	}
	mark := solver.Push()
	solver.Assert(rf)
	solver.Assert(co)
	solver.Assert(rfx)
	solver.Assert(d.Graph.Nodes[transmitter].Exec)
	status, _ := d.check(solver)
	solver.PopTo(mark)
	return status == smtctx.Sat, nil
}
