// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package report

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// EncodeWitnessRecords writes records to w as newline-delimited JSON: the
// shape a per-function worker process prints to stdout for its parent to
// read back.
func EncodeWitnessRecords(w io.Writer, records []WitnessRecord) error {
	enc := json.NewEncoder(w)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return errors.Wrap(err, "report: encode witness record")
		}
	}
	return nil
}

// DecodeWitnessRecords reads back the newline-delimited JSON EncodeWitnessRecords
// produced.
func DecodeWitnessRecords(r io.Reader) ([]WitnessRecord, error) {
	dec := json.NewDecoder(r)
	var records []WitnessRecord
	for dec.More() {
		var rec WitnessRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, errors.Wrap(err, "report: decode witness record")
		}
		records = append(records, rec)
	}
	return records, nil
}
