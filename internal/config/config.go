// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Package config loads and validates the YAML-backed analysis
// configuration, merged under whatever CLI flags the caller has set.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable analysis input and optional flag, plus the
// ambient additions (metrics, monitor socket, job count) the CLI adds.
type Config struct {
	RobSize               uint   `yaml:"rob_size"`
	NumSpecs              uint   `yaml:"num_specs"`
	FastMode              bool   `yaml:"fast_mode"`
	BatchMode             bool   `yaml:"batch_mode"`
	WitnessExecutions     int    `yaml:"witness_executions"`
	ConcreteSourcedStores bool   `yaml:"concrete_sourced_stores"`
	OutputDir             string `yaml:"output_dir"`
	Jobs                  int    `yaml:"jobs"`
	MonitorSocket         string `yaml:"monitor_socket"`
	MetricsAddr           string `yaml:"metrics_addr"`
	XLSX                  bool   `yaml:"xlsx"`
}

// Default returns the configuration used when no YAML file and no flags
// override a value.
func Default() Config {
	return Config{
		RobSize:               32,
		NumSpecs:              2,
		FastMode:              false,
		BatchMode:             false,
		WitnessExecutions:     0,
		ConcreteSourcedStores: true,
		OutputDir:             ".",
		Jobs:                  0, // 0 means runtime.NumCPU()
		MonitorSocket:         "",
		MetricsAddr:           "",
		XLSX:                  false,
	}
}

// Load reads a YAML file at path and merges it over Default(); a field
// absent from the file keeps its default value (yaml.Unmarshal only
// overwrites fields the document sets).
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config: read %q", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "config: parse %q", path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that rob_size/num_specs are usable bounds, plus the
// ambient flags this tool adds.
func (c Config) Validate() error {
	if c.RobSize == 0 {
		return errors.New("config: rob_size must be >= 1")
	}
	if c.NumSpecs == 0 {
		return errors.New("config: num_specs must be >= 1")
	}
	if c.WitnessExecutions < 0 {
		return errors.New("config: witness_executions must be >= 0")
	}
	if c.Jobs < 0 {
		return errors.New("config: jobs must be >= 0")
	}
	if c.OutputDir == "" {
		return errors.New("config: output_dir must not be empty")
	}
	return nil
}

// Marshal renders c back to YAML, for the config command's "print the
// effective configuration" mode.
func (c Config) Marshal() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "config: marshal")
	}
	return out, nil
}
