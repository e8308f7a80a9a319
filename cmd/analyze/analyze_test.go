// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package analyze

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetCmd gives the package-level Cmd a fresh flag set with every
// Changed() bit cleared, so test cases don't leak state into one another.
func resetCmd(t *testing.T) {
	t.Helper()
	Cmd.ResetFlags()
	registerFlags()
	t.Cleanup(func() {
		Cmd.ResetFlags()
		registerFlags()
	})
}

func TestValidateFlagsRequiresInput(t *testing.T) {
	resetCmd(t)
	flagInput = ""
	assert.Error(t, validateFlags(Cmd, nil))
}

func TestValidateFlagsRejectsMissingFile(t *testing.T) {
	resetCmd(t)
	flagInput = filepath.Join(t.TempDir(), "does-not-exist.ir")
	assert.Error(t, validateFlags(Cmd, nil))
}

func TestValidateFlagsAcceptsExistingFile(t *testing.T) {
	resetCmd(t)
	path := filepath.Join(t.TempDir(), "module.ir")
	require.NoError(t, os.WriteFile(path, []byte("function f\n0: entry\n1: exit\n"), 0o644))
	flagInput = path
	assert.NoError(t, validateFlags(Cmd, nil))
}

func TestResolvedConfigDefaultsWhenNoFlagsChanged(t *testing.T) {
	resetCmd(t)
	conf, err := resolvedConfig(Cmd)
	require.NoError(t, err)
	assert.Equal(t, uint(32), conf.RobSize)
	assert.Equal(t, uint(2), conf.NumSpecs)
	assert.True(t, conf.ConcreteSourcedStores)
}

func TestResolvedConfigFlagsOverrideDefaults(t *testing.T) {
	resetCmd(t)
	require.NoError(t, Cmd.Flags().Set(flagRobSizeName, "64"))
	require.NoError(t, Cmd.Flags().Set(flagFastModeName, "true"))

	conf, err := resolvedConfig(Cmd)
	require.NoError(t, err)
	assert.Equal(t, uint(64), conf.RobSize)
	assert.True(t, conf.FastMode)
	// num_specs was not touched, so it keeps the default.
	assert.Equal(t, uint(2), conf.NumSpecs)
}

func TestResolvedConfigFlagsOverrideLoadedFile(t *testing.T) {
	resetCmd(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rob_size: 48\nnum_specs: 5\n"), 0o644))
	require.NoError(t, Cmd.Flags().Set(flagConfigName, path))
	require.NoError(t, Cmd.Flags().Set(flagRobSizeName, "64"))

	conf, err := resolvedConfig(Cmd)
	require.NoError(t, err)
	assert.Equal(t, uint(64), conf.RobSize, "flag beats the config file")
	assert.Equal(t, uint(5), conf.NumSpecs, "config file beats the built-in default")
}

func TestResolvedConfigRejectsInvalidOverride(t *testing.T) {
	resetCmd(t)
	require.NoError(t, Cmd.Flags().Set(flagRobSizeName, "0"))
	_, err := resolvedConfig(Cmd)
	assert.Error(t, err)
}
