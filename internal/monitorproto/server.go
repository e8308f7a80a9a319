// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package monitorproto

import (
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
)

// Job tracks one client connection's last-known progress, as the monitor's
// Hub understands it.
type Job struct {
	PID      int
	Function string
	Frac     float64
	Done     bool
	Err      string
}

// Hub is the monitor's shared state: the client table, the running-job
// list and the analyzed-function set, guarded by a single mutex. No lock is
// held across I/O. It is a reference
// implementation sufficient for manual smoke testing (cmd/monitor), not a
// full terminal UI.
type Hub struct {
	mu        sync.Mutex
	jobs      map[net.Conn]*Job
	analyzed  map[string]struct{}
	OnMessage func(conn net.Conn, msg Message)
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{
		jobs:     make(map[net.Conn]*Job),
		analyzed: make(map[string]struct{}),
	}
}

// Jobs returns a snapshot of the current running-job list.
func (h *Hub) Jobs() []Job {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Job, 0, len(h.jobs))
	for _, j := range h.jobs {
		out = append(out, *j)
	}
	return out
}

// AnalyzedCount reports the size of the analyzed-function set.
func (h *Hub) AnalyzedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.analyzed)
}

// Serve accepts connections on ln until it is closed, spawning one
// goroutine per client to drain its socket.
func (h *Hub) Serve(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			slog.Debug("monitorproto: listener closed", slog.String("error", err.Error()))
			return
		}
		go h.handleClient(conn)
	}
}

func (h *Hub) handleClient(conn net.Conn) {
	defer conn.Close()
	defer h.removeClient(conn)

	first, err := ReadMessage(conn)
	if err != nil {
		slog.Debug("monitorproto: client disconnected before ClientConnect", slog.String("error", err.Error()))
		return
	}
	if first.Type != TypeClientConnect {
		slog.Warn("monitorproto: first message was not ClientConnect", slog.String("type", string(first.Type)))
		return
	}
	var connect ClientConnect
	if err := Decode(first, &connect); err != nil {
		slog.Warn("monitorproto: malformed ClientConnect", slog.String("error", err.Error()))
		return
	}
	h.mu.Lock()
	h.jobs[conn] = &Job{PID: connect.PID}
	h.mu.Unlock()
	h.dispatch(conn, first)

	for {
		msg, err := ReadMessage(conn)
		if err != nil {
			if err != io.EOF {
				slog.Debug("monitorproto: client read error, treating as disconnect", slog.String("error", err.Error()))
			}
			return
		}
		h.dispatch(conn, msg)
	}
}

func (h *Hub) dispatch(conn net.Conn, msg Message) {
	h.mu.Lock()
	job := h.jobs[conn]
	switch msg.Type {
	case TypeFunctionStarted:
		var m FunctionStarted
		if err := Decode(msg, &m); err == nil && job != nil {
			job.Function = m.Function
			job.Done = false
		}
	case TypeFunctionProgress:
		var m FunctionProgress
		if err := Decode(msg, &m); err == nil && job != nil {
			job.Frac = m.Frac
		}
	case TypeFunctionCompleted:
		var m FunctionCompleted
		if err := Decode(msg, &m); err == nil && job != nil {
			job.Done = true
			job.Err = m.Err
			h.analyzed[m.Function] = struct{}{}
		}
	case TypeFunctionsAnalyzed:
		var m FunctionsAnalyzed
		if err := Decode(msg, &m); err == nil {
			for _, fn := range m.Functions {
				h.analyzed[fn] = struct{}{}
			}
		}
	}
	h.mu.Unlock()

	if h.OnMessage != nil {
		h.OnMessage(conn, msg)
	}
}

func (h *Hub) removeClient(conn net.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.jobs, conn)
}

// Listen creates the Unix-domain socket at path, removing any stale socket
// file left behind by a previous run.
func Listen(path string) (net.Listener, error) {
	_ = os.Remove(path)
	return net.Listen("unix", path)
}
