// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package config

import (
	"os"
	"path/filepath"
	"testing"

	"aegleak/internal/leakage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rob_size: 64\nfast_mode: true\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint(64), cfg.RobSize)
	assert.True(t, cfg.FastMode)
	// num_specs was absent from the document, so it keeps its default.
	assert.Equal(t, Default().NumSpecs, cfg.NumSpecs)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rob_size: 0\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestMarshalRoundTrips(t *testing.T) {
	cfg := Default()
	cfg.RobSize = 16

	data, err := cfg.Marshal()
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "roundtrip.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestLeakageModeMapping(t *testing.T) {
	fast := Default()
	fast.FastMode = true
	assert.Equal(t, leakage.FastMode, fast.LeakageMode())

	slow := Default()
	slow.FastMode = false
	assert.Equal(t, leakage.SlowMode, slow.LeakageMode())
}
