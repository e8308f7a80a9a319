// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Package report renders a detector run's results to the output-directory
// file formats this tool produces: leakage.txt, transmitters.txt,
// per-witness graphviz .dot files, and an optional .xlsx summary.
package report

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"aegleak/internal/aeg"
	"aegleak/internal/leakage"

	"github.com/pkg/errors"
)

// Writer renders one function analysis's results into OutputDir. Batch
// selects leakage.txt's open mode: append when multiple functions share one
// run.
type Writer struct {
	OutputDir string
	Batch     bool
}

// nodeRefSequence renders a witness's path as a space-separated sequence of
// node-ref numbers.
func nodeRefSequence(w leakage.Witness) string {
	refs := make([]string, 0, len(w.Path)+2)
	for _, n := range w.Path {
		refs = append(refs, fmt.Sprintf("%d", n))
	}
	refs = append(refs, fmt.Sprintf("%d", w.BypassedStore))
	if w.SourcedStore != nil {
		refs = append(refs, fmt.Sprintf("%d", *w.SourcedStore))
	}
	return strings.Join(refs, " ")
}

// actions renders the breadcrumb of relation checks the search actually
// made before confirming this witness. Witnesses produced before this
// breadcrumb was threaded through the search have no Actions; fall back to
// naming the witness kind rather than printing nothing.
func actions(w leakage.Witness) string {
	if len(w.Actions) == 0 {
		return w.Kind
	}
	return strings.Join(w.Actions, " ")
}

// WriteLeakage appends (batch mode) or truncates-then-writes leakage.txt:
// one line per witness, sequence of node refs, then ": <actions>" and
// "-- <instruction dump>".
func (rw Writer) WriteLeakage(witnesses []leakage.Witness, g *aeg.AEG) error {
	path := filepath.Join(rw.OutputDir, "leakage.txt")
	flags := os.O_CREATE | os.O_WRONLY
	if rw.Batch {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return errors.Wrap(err, "report: open leakage.txt")
	}
	defer f.Close()

	for _, w := range witnesses {
		line := fmt.Sprintf("%s: %s -- %s\n", nodeRefSequence(w), actions(w), strings.TrimSpace(g.Instruction(w.Transmitter).String()))
		if _, err := f.WriteString(line); err != nil {
			return errors.Wrap(err, "report: write leakage.txt")
		}
	}
	slog.Debug("report: wrote leakage.txt", slog.String("path", path), slog.Int("count", len(witnesses)))
	return nil
}

// WriteTransmitters writes transmitters.txt: sorted unique transmitter
// instruction dumps. In batch mode the new transmitters are merged with
// whatever the file already holds, so that several functions analyzed in
// separate worker processes within one run each
// contribute to the same shared file without clobbering one another.
func (rw Writer) WriteTransmitters(witnesses []leakage.Witness, g *aeg.AEG) error {
	path := filepath.Join(rw.OutputDir, "transmitters.txt")
	seen := make(map[string]struct{}, len(witnesses))
	if rw.Batch {
		if existing, err := os.ReadFile(path); err == nil {
			for _, line := range strings.Split(strings.TrimRight(string(existing), "\n"), "\n") {
				if line != "" {
					seen[line] = struct{}{}
				}
			}
		} else if !os.IsNotExist(err) {
			return errors.Wrap(err, "report: read transmitters.txt")
		}
	}
	for _, w := range witnesses {
		seen[g.Instruction(w.Transmitter).String()] = struct{}{}
	}
	lines := make([]string, 0, len(seen))
	for dump := range seen {
		lines = append(lines, dump)
	}
	sort.Strings(lines)

	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return errors.Wrap(err, "report: write transmitters.txt")
	}
	slog.Debug("report: wrote transmitters.txt", slog.String("path", path), slog.Int("count", len(lines)))
	return nil
}

// ResetLeakage establishes this run's starting state for leakage.txt and
// transmitters.txt: truncated to empty unless Batch is set, in which case
// they are left as-is so this run's workers append to whatever a prior run
// already wrote.
func (rw Writer) ResetLeakage() error {
	if rw.Batch {
		return nil
	}
	for _, name := range []string{"leakage.txt", "transmitters.txt"} {
		path := filepath.Join(rw.OutputDir, name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			return errors.Wrapf(err, "report: reset %s", name)
		}
		if err := f.Close(); err != nil {
			return errors.Wrapf(err, "report: reset %s", name)
		}
	}
	return nil
}
