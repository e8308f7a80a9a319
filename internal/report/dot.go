// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"aegleak/internal/aeg"
	"aegleak/internal/leakage"

	"github.com/pkg/errors"
)

// dotNodeLabel escapes an instruction dump for use inside a graphviz quoted
// label.
func dotNodeLabel(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

// WriteDotWitness writes a graphviz execution-witness file named
// "<name>-<ref1>-<ref2>....dot" under OutputDir, rendering every node
// w mentions and the edges connecting them along its traceback path plus
// the bypassed/sourced store relationship.
func (rw Writer) WriteDotWitness(name string, w leakage.Witness, g *aeg.AEG) error {
	refs := make([]string, 0, len(w.Path)+2)
	for _, n := range w.Path {
		refs = append(refs, fmt.Sprintf("%d", n))
	}
	refs = append(refs, fmt.Sprintf("%d", w.BypassedStore))
	if w.SourcedStore != nil {
		refs = append(refs, fmt.Sprintf("%d", *w.SourcedStore))
	}
	filename := fmt.Sprintf("%s-%s.dot", name, strings.Join(refs, "-"))
	path := filepath.Join(rw.OutputDir, filename)

	var b strings.Builder
	fmt.Fprintf(&b, "digraph %s {\n", graphName(name))
	fmt.Fprintf(&b, "  rankdir=LR;\n")

	nodeLine := func(ref aeg.NodeRef, role string) {
		label := dotNodeLabel(fmt.Sprintf("[%d] %s\\n%s", ref, role, g.Instruction(ref)))
		fmt.Fprintf(&b, "  n%d [label=\"%s\", shape=box];\n", ref, label)
	}
	nodeLine(w.Transmitter, "transmitter")
	nodeLine(w.Load, "load")
	nodeLine(w.BypassedStore, "bypassed store")
	if w.SourcedStore != nil {
		nodeLine(*w.SourcedStore, "sourced store")
	}

	for i := 0; i+1 < len(w.Path); i++ {
		fmt.Fprintf(&b, "  n%d -> n%d [label=\"addr\"];\n", w.Path[i+1], w.Path[i])
	}
	fmt.Fprintf(&b, "  n%d -> n%d [label=\"rf\"];\n", w.BypassedStore, w.Load)
	if w.SourcedStore != nil {
		fmt.Fprintf(&b, "  n%d -> n%d [label=\"co\"];\n", *w.SourcedStore, w.BypassedStore)
		fmt.Fprintf(&b, "  n%d -> n%d [label=\"rfx\"];\n", *w.SourcedStore, w.Load)
	}
	b.WriteString("}\n")

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return errors.Wrap(err, "report: write dot witness")
	}
	return nil
}

// graphName sanitizes name for use as a graphviz graph identifier.
func graphName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "witness"
	}
	return b.String()
}
