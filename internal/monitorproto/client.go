// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package monitorproto

import (
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// Client is the core analyzer's side of the monitor connection. A nil
// socket path, or any dial failure, yields a Client whose Send calls are
// no-ops — loss of the monitor socket is non-fatal to the core.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
}

// Dial connects to the monitor's Unix-domain socket at path and sends the
// mandatory initial ClientConnect message. If path is empty, or the dial
// fails, Dial logs at Debug and returns a disconnected Client rather than
// an error, matching the non-fatal monitor-loss policy.
func Dial(path string) *Client {
	c := &Client{}
	if path == "" {
		return c
	}
	conn, err := net.Dial("unix", path)
	if err != nil {
		slog.Debug("monitorproto: failed to dial monitor socket", slog.String("path", path), slog.String("error", err.Error()))
		return c
	}
	c.conn = conn
	if err := c.send(TypeClientConnect, ClientConnect{PID: os.Getpid()}); err != nil {
		slog.Debug("monitorproto: failed to send ClientConnect", slog.String("error", err.Error()))
		_ = conn.Close()
		c.conn = nil
	}
	return c
}

// Connected reports whether the client currently holds a live socket.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Client) send(typ Type, body any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	if err := WriteMessage(c.conn, typ, body); err != nil {
		_ = c.conn.Close()
		c.conn = nil
		return errors.Wrap(err, "monitorproto: send")
	}
	return nil
}

// FunctionStarted reports the start of one function's analysis.
func (c *Client) FunctionStarted(function string) {
	c.logSendErr(c.send(TypeFunctionStarted, FunctionStarted{Function: function}))
}

// FunctionCompleted reports the end of one function's analysis.
func (c *Client) FunctionCompleted(function string, witnesses int, err error) {
	msg := FunctionCompleted{Function: function, Witnesses: witnesses}
	if err != nil {
		msg.Err = err.Error()
	}
	c.logSendErr(c.send(TypeFunctionCompleted, msg))
}

// FunctionProgress reports fractional progress through one function.
func (c *Client) FunctionProgress(function string, frac float64) {
	c.logSendErr(c.send(TypeFunctionProgress, FunctionProgress{Function: function, Frac: frac}))
}

// FunctionsAnalyzed reports the cumulative set of completed function names.
func (c *Client) FunctionsAnalyzed(functions []string) {
	c.logSendErr(c.send(TypeFunctionsAnalyzed, FunctionsAnalyzed{Functions: functions}))
}

// FunctionStep names the construction/detection phase currently running.
func (c *Client) FunctionStep(function, step string) {
	c.logSendErr(c.send(TypeFunctionStep, FunctionStep{Function: function, Step: step}))
}

// FunctionProperties reports free-form per-function facts.
func (c *Client) FunctionProperties(function string, properties map[string]string) {
	c.logSendErr(c.send(TypeFunctionProperties, FunctionProperties{Function: function, Properties: properties}))
}

func (c *Client) logSendErr(err error) {
	if err != nil {
		slog.Debug("monitorproto: send failed, continuing without telemetry", slog.String("error", err.Error()))
	}
}

// Close releases the underlying socket, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
