// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package leakage

import (
	"fmt"
	"strings"

	"aegleak/internal/aeg"
)

// Witness is a concrete execution trace the detector found satisfiable:
// evidence that the named leakage class can actually occur.
type Witness struct {
	Kind string

	Transmitter   aeg.NodeRef
	Load          aeg.NodeRef
	BypassedStore aeg.NodeRef
	SourcedStore  *aeg.NodeRef // nil when ConcreteSourcedStores is false

	// Path is the address-dependency chain from the secret-bearing Load to
	// the Transmitter, in traceback (transmitter-first) order.
	Path []aeg.NodeRef

	// Actions is the breadcrumb of relation checks the search actually
	// made before confirming this witness, in the order they were tried.
	Actions []string
}

// Describe renders a human-readable breadcrumb trail for leakage.txt and
// the .dot witness file, using g to resolve each node back to its source
// instruction.
func (w Witness) Describe(g *aeg.AEG) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]\n", w.Kind)
	fmt.Fprintf(&b, "  bypassed store: node %d: %s\n", w.BypassedStore, g.Instruction(w.BypassedStore))
	if w.SourcedStore != nil {
		fmt.Fprintf(&b, "  sourced store:  node %d: %s\n", *w.SourcedStore, g.Instruction(*w.SourcedStore))
	}
	fmt.Fprintf(&b, "  load:           node %d: %s\n", w.Load, g.Instruction(w.Load))
	fmt.Fprintf(&b, "  transmitter:    node %d: %s\n", w.Transmitter, g.Instruction(w.Transmitter))
	if len(w.Actions) > 0 {
		fmt.Fprintf(&b, "  actions:        %s\n", strings.Join(w.Actions, " -> "))
	}
	return b.String()
}
