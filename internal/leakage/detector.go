// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Package leakage implements the central dependency-traceback algorithm and
// the Spectre-v4 (speculative store bypass) transmitter routine built on
// top of it.
package leakage

import (
	"time"

	"aegleak/internal/aeg"
	"aegleak/internal/smtctx"
)

// TracebackResult unwinds out of a nested traceback search without an
// exception: Continue means the caller should keep examining other
// candidates, SkipTransmitter means this transmitter's traceback found no
// load-rooted path within the hop budget, and LookaheadFound means at least
// one was found and is available for the caller to check.
type TracebackResult int

const (
	Continue TracebackResult = iota
	SkipTransmitter
	LookaheadFound
)

func (r TracebackResult) String() string {
	switch r {
	case Continue:
		return "continue"
	case SkipTransmitter:
		return "skip-transmitter"
	case LookaheadFound:
		return "lookahead-found"
	default:
		return "unknown"
	}
}

// Mode selects the traceback search's thoroughness/cost tradeoff.
type Mode int

const (
	FastMode Mode = iota
	SlowMode
)

// fastStepBudget bounds the underlying solver's search in FAST mode, trading
// completeness for speed on large functions; SLOW mode spends the full
// smtctx.DefaultSearchBudget instead.
const fastStepBudget = 5_000

// Path is a traceback result: the node sequence from a transmitter back to
// the load that terminated the search, in traceback (reverse program)
// order: Nodes[0] is the transmitter, Nodes[len-1] is the load.
type Path struct {
	Nodes []aeg.NodeRef
}

// Load returns the load instruction a path terminates at.
func (p Path) Load() aeg.NodeRef {
	return p.Nodes[len(p.Nodes)-1]
}

// CheckStats records the number of solver calls, how many ran out of budget,
// their total duration and a rolling average duration. The statistics are
// reported only: each call's step budget is fixed by Mode (see stepBudget)
// and does not depend on earlier calls' durations.
type CheckStats struct {
	Checks        int
	TimedOut      int
	TotalDuration time.Duration
	avgDuration   time.Duration
}

func (s *CheckStats) record(d time.Duration, timedOut bool) {
	s.Checks++
	s.TotalDuration += d
	if timedOut {
		s.TimedOut++
	}
	if s.avgDuration == 0 {
		s.avgDuration = d
		return
	}
	// exponentially-weighted rolling average, weight 1/8 to the newest
	// sample.
	s.avgDuration = (s.avgDuration*7 + d) / 8
}

// AverageDuration returns the current rolling-average solver call duration.
func (s *CheckStats) AverageDuration() time.Duration {
	return s.avgDuration
}

// Detector runs the dependency-traceback algorithm and the per-leakage-
// class transmitter routines against one constructed AEG.
type Detector struct {
	Graph *aeg.AEG
	Mode  Mode

	// WitnessExecutions caps the number of distinct witnesses collected
	// before the detector stops searching; zero means unbounded.
	WitnessExecutions int

	// ConcreteSourcedStores, when true, has the Spectre-v4 routine search
	// for and report a specific bypassed-from store in every witness, at
	// the cost of one solver call per (bypassed store, candidate source)
	// pair. When false, the routine instead asserts the existence of *some*
	// source store in a single combined query — cheaper, and sufficient to
	// confirm the leak, but the witness does not name the concrete source.
	ConcreteSourcedStores bool

	Stats CheckStats
}

func (d *Detector) stepBudget() int {
	if d.Mode == FastMode {
		return fastStepBudget
	}
	return smtctx.DefaultSearchBudget
}

// check runs solver.Check with the detector's configured step budget,
// recording the call's wall-clock duration into Stats.
func (d *Detector) check(solver *smtctx.Solver) (smtctx.Status, *smtctx.Model) {
	start := time.Now()
	status, model, err := solver.Check(d.stepBudget())
	d.Stats.record(time.Since(start), status == smtctx.Unknown)
	if err != nil {
		return smtctx.Unknown, nil
	}
	return status, model
}

// tracebackDeps walks backward from start along edges of the given kind,
// up to maxHops deep, stopping a branch as soon as it reaches an
// instruction that may read memory (a load or a call). In SlowMode it returns every such branch, matching the full
// disjunction the SMT-backed search asserts. In FastMode it returns as soon
// as the first branch is found — the "lookahead_found" short-circuit a
// best-effort, single-witness-per-transmitter search only needs one of.
func (d *Detector) tracebackDeps(start aeg.NodeRef, kind aeg.EdgeKind, maxHops int) ([]Path, TracebackResult) {
	var results []Path
	var visit func(node aeg.NodeRef, path []aeg.NodeRef, hops int) (stop bool)
	visit = func(node aeg.NodeRef, path []aeg.NodeRef, hops int) bool {
		for _, pred := range d.Graph.Predecessors(kind, node) {
			nextPath := append(append([]aeg.NodeRef{}, path...), pred)
			if d.Graph.Instruction(pred).MayRead() {
				results = append(results, Path{Nodes: nextPath})
				if d.Mode == FastMode {
					return true
				}
				continue
			}
			if hops+1 >= maxHops {
				continue
			}
			if visit(pred, nextPath, hops+1) {
				return true
			}
		}
		return false
	}
	visit(start, []aeg.NodeRef{start}, 0)
	if len(results) == 0 {
		return nil, SkipTransmitter
	}
	return results, LookaheadFound
}

// candidateTransmitters returns every node whose address or data operand
// depends, directly or transitively, on an earlier load — the universal
// set of transmitter candidates any leakage class routine searches over
//.
func (d *Detector) candidateTransmitters() []aeg.NodeRef {
	var out []aeg.NodeRef
	for i := 0; i < d.Graph.NumNodes(); i++ {
		ref := aeg.NodeRef(i)
		if len(d.Graph.Predecessors(aeg.EdgeAddr, ref)) > 0 || len(d.Graph.Predecessors(aeg.EdgeData, ref)) > 0 {
			out = append(out, ref)
		}
	}
	return out
}

func (d *Detector) witnessCapReached(n int) bool {
	return d.WitnessExecutions > 0 && n >= d.WitnessExecutions
}
