// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFlagsRequiresSocket(t *testing.T) {
	flagSocket = ""
	assert.Error(t, validateFlags(Cmd, nil))
}

func TestValidateFlagsAcceptsSocketPath(t *testing.T) {
	flagSocket = "/tmp/aegleak-test.sock"
	defer func() { flagSocket = "" }()
	assert.NoError(t, validateFlags(Cmd, nil))
}
