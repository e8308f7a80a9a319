// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Package monitor is a subcommand of the root command. It runs a reference
// monitor server for manual smoke-testing of the monitor wire protocol
//.
package monitor

import (
	"fmt"
	"log/slog"
	"net"
	"strings"

	"aegleak/internal/monitorproto"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const cmdName = "monitor"

var examples = []string{
	fmt.Sprintf("  Listen on a socket for analyzer clients: $ aegleak %s --socket /tmp/aegleak.sock", cmdName),
}

var Cmd = &cobra.Command{
	Use:           cmdName,
	Short:         "Run a reference monitor server",
	Example:       strings.Join(examples, "\n"),
	RunE:          runCmd,
	PreRunE:       validateFlags,
	GroupID:       "primary",
	Args:          cobra.NoArgs,
	SilenceErrors: true,
}

var flagSocket string

const flagSocketName = "socket"

func init() {
	Cmd.Flags().StringVar(&flagSocket, flagSocketName, "", "Unix socket path to listen on (required)")
}

func validateFlags(cmd *cobra.Command, args []string) error {
	if flagSocket == "" {
		return errors.Errorf("--%s is required", flagSocketName)
	}
	return nil
}

func runCmd(cmd *cobra.Command, args []string) error {
	ln, err := monitorproto.Listen(flagSocket)
	if err != nil {
		return errors.Wrap(err, "monitor: listen")
	}
	defer ln.Close()

	hub := monitorproto.NewHub()
	hub.OnMessage = logEvent

	slog.Info("monitor listening", slog.String("socket", flagSocket))
	fmt.Printf("listening on %s\n", flagSocket)
	hub.Serve(ln)
	return nil
}

// logEvent prints one line per message received instead of drawing a
// terminal dashboard.
func logEvent(conn net.Conn, msg monitorproto.Message) {
	fmt.Printf("[%s] %s: %s\n", conn.RemoteAddr(), msg.Type, string(msg.Payload))
}
