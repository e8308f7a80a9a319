// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWitnessRecordsRoundTripThroughEncoding(t *testing.T) {
	records := []WitnessRecord{
		{Function: "classic_v4", Kind: "spectre-v4", Transmitter: "t", Load: "l", BypassedStore: "bs", SourcedStore: "ss"},
		{Function: "classic_v4", Kind: "spectre-v4", Transmitter: "t2", Load: "l2", BypassedStore: "bs2"},
	}

	var buf bytes.Buffer
	require.NoError(t, EncodeWitnessRecords(&buf, records))

	got, err := DecodeWitnessRecords(&buf)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestDecodeWitnessRecordsEmptyInputYieldsNoRecords(t *testing.T) {
	got, err := DecodeWitnessRecords(bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Empty(t, got)
}
