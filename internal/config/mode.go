// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package config

import "aegleak/internal/leakage"

// LeakageMode translates the FastMode flag into the leakage package's Mode
// enum, the boundary between this package's flat config shape and the
// detector's own vocabulary.
func (c Config) LeakageMode() leakage.Mode {
	if c.FastMode {
		return leakage.FastMode
	}
	return leakage.SlowMode
}
