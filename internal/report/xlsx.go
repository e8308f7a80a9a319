// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package report

import (
	"fmt"
	"path/filepath"

	"aegleak/internal/aeg"
	"aegleak/internal/leakage"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// xlsxSheetName is the single sheet the summary workbook uses; this domain
// has no use for a multi-target brief-sheet split.
const xlsxSheetName = "Leaks"

// WitnessRecord is a flat, serializable rendering of one witness, used both
// for in-process xlsx rows and as the JSON shape a forked per-function
// worker reports back to the parent process.
type WitnessRecord struct {
	Function      string `json:"function"`
	Kind          string `json:"kind"`
	Transmitter   string `json:"transmitter"`
	Load          string `json:"load"`
	BypassedStore string `json:"bypassed_store"`
	SourcedStore  string `json:"sourced_store,omitempty"`
}

// RecordsFromWitnesses flattens a function's witnesses into WitnessRecords
// while the AEG they were found in is still available (i.e. inside the
// per-function worker that constructed it).
func RecordsFromWitnesses(function string, g *aeg.AEG, witnesses []leakage.Witness) []WitnessRecord {
	records := make([]WitnessRecord, 0, len(witnesses))
	for _, w := range witnesses {
		rec := WitnessRecord{
			Function:      function,
			Kind:          w.Kind,
			Transmitter:   g.Instruction(w.Transmitter).String(),
			Load:          g.Instruction(w.Load).String(),
			BypassedStore: g.Instruction(w.BypassedStore).String(),
		}
		if w.SourcedStore != nil {
			rec.SourcedStore = g.Instruction(*w.SourcedStore).String()
		}
		records = append(records, rec)
	}
	return records
}

// WriteXlsxSummary writes summary.xlsx under OutputDir: one row per
// witness across every analyzed function, columns function/kind/
// transmitter/load/bypassed/sourced.
func (rw Writer) WriteXlsxSummary(records []WitnessRecord) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", xlsxSheetName); err != nil {
		return errors.Wrap(err, "report: rename xlsx sheet")
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "report: build xlsx header style")
	}

	headers := []string{"function", "kind", "transmitter", "load", "bypassed_store", "sourced_store"}
	for col, h := range headers {
		cell := cellRef(col+1, 1)
		_ = f.SetCellValue(xlsxSheetName, cell, h)
		_ = f.SetCellStyle(xlsxSheetName, cell, cell, headerStyle)
	}

	row := 2
	for _, rec := range records {
		values := []any{rec.Function, rec.Kind, rec.Transmitter, rec.Load, rec.BypassedStore, rec.SourcedStore}
		for col, v := range values {
			_ = f.SetCellValue(xlsxSheetName, cellRef(col+1, row), v)
		}
		row++
	}

	for _, col := range []string{"A", "B", "C", "D", "E", "F"} {
		_ = f.SetColWidth(xlsxSheetName, col, col, 30)
	}

	path := filepath.Join(rw.OutputDir, "summary.xlsx")
	if err := f.SaveAs(path); err != nil {
		return errors.Wrap(err, "report: save summary.xlsx")
	}
	return nil
}

func cellRef(col, row int) string {
	name, err := excelize.ColumnNumberToName(col)
	if err != nil {
		return fmt.Sprintf("A%d", row)
	}
	cell, err := excelize.JoinCellName(name, row)
	if err != nil {
		return fmt.Sprintf("A%d", row)
	}
	return cell
}
