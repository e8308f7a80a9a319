// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Package config is a subcommand of the root command. It validates and
// prints the effective YAML analysis configuration.
package config

import (
	"fmt"
	"strings"

	analysisconfig "aegleak/internal/config"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const cmdName = "config"

var examples = []string{
	fmt.Sprintf("  Print the built-in defaults:     $ aegleak %s", cmdName),
	fmt.Sprintf("  Validate and print a file:       $ aegleak %s --config aegleak.yaml", cmdName),
}

var Cmd = &cobra.Command{
	Use:           cmdName,
	Short:         "Validate and print the effective analysis configuration",
	Example:       strings.Join(examples, "\n"),
	RunE:          runCmd,
	GroupID:       "primary",
	Args:          cobra.NoArgs,
	SilenceErrors: true,
}

var flagConfig string

const flagConfigName = "config"

func init() {
	Cmd.Flags().StringVar(&flagConfig, flagConfigName, "", "YAML file to validate; prints built-in defaults if omitted")
}

func runCmd(cmd *cobra.Command, args []string) error {
	cfg := analysisconfig.Default()
	if flagConfig != "" {
		loaded, err := analysisconfig.Load(flagConfig)
		if err != nil {
			return err
		}
		cfg = loaded
	} else if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "config: built-in defaults are invalid")
	}

	out, err := cfg.Marshal()
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}
