// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCmdPrintsBuiltInDefaultsWhenNoConfigGiven(t *testing.T) {
	flagConfig = ""
	var buf bytes.Buffer
	Cmd.SetOut(&buf)
	require.NoError(t, runCmd(Cmd, nil))
}

func TestRunCmdValidatesAndPrintsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aegleak.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rob_size: 64\nfast_mode: true\n"), 0o644))
	flagConfig = path
	defer func() { flagConfig = "" }()

	assert.NoError(t, runCmd(Cmd, nil))
}

func TestRunCmdRejectsInvalidConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rob_size: 0\n"), 0o644))
	flagConfig = path
	defer func() { flagConfig = "" }()

	assert.Error(t, runCmd(Cmd, nil))
}
