// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package dataflow

// BinaryInstRel maps each destination instruction index to the set of
// source instruction indices that contribute to it — the shared output
// shape of the address, data and control dependency analyses. AEG construction consumes one of these per edge kind.
type BinaryInstRel map[int]map[int]struct{}

// NewBinaryInstRel returns an empty relation.
func NewBinaryInstRel() BinaryInstRel {
	return make(BinaryInstRel)
}

// Add records that dst depends on src.
func (r BinaryInstRel) Add(dst, src int) {
	set, ok := r[dst]
	if !ok {
		set = make(map[int]struct{})
		r[dst] = set
	}
	set[src] = struct{}{}
}

// Sources returns the (unordered) set of instructions dst depends on.
func (r BinaryInstRel) Sources(dst int) []int {
	set, ok := r[dst]
	if !ok {
		return nil
	}
	out := make([]int, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	return out
}

// Has reports whether dst depends on src.
func (r BinaryInstRel) Has(dst, src int) bool {
	set, ok := r[dst]
	if !ok {
		return false
	}
	_, ok = set[src]
	return ok
}

// Pairs yields every (dst, src) pair in the relation, for callers that want
// to enumerate it rather than query it (e.g. AEG construction).
func (r BinaryInstRel) Pairs(yield func(dst, src int)) {
	for dst, set := range r {
		for src := range set {
			yield(dst, src)
		}
	}
}
