// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Package monitorproto implements the monitor wire protocol:
// a length-prefixed framing of tagged JSON messages over a Unix-domain
// stream socket, by which the core analyzer reports progress to an external
// UI process. No protobuf binding suited to a small tagged-union message
// exists anywhere in the retrieved corpus (see DESIGN.md), so framing is
// big-endian uint32 length + JSON body instead.
package monitorproto

// Type tags a Message's payload so a reader knows which concrete struct to
// unmarshal Payload into.
type Type string

const (
	TypeClientConnect      Type = "client_connect"
	TypeFunctionStarted    Type = "function_started"
	TypeFunctionCompleted  Type = "function_completed"
	TypeFunctionProgress   Type = "function_progress"
	TypeFunctionsAnalyzed  Type = "functions_analyzed"
	TypeFunctionStep       Type = "function_step"
	TypeFunctionProperties Type = "function_properties"
)

// Message is the wire envelope: Type selects how Payload round-trips
// through JSON on the wire (see WriteMessage/ReadMessage); call Decode with
// the struct matching Type to unmarshal it back into a concrete value.
type Message struct {
	Type    Type   `json:"type"`
	Payload []byte `json:"payload"`
}

// ClientConnect is always the first message a client sends after dialing
// the monitor socket.
type ClientConnect struct {
	PID int `json:"pid"`
}

// FunctionStarted announces that a child has begun analyzing a function.
type FunctionStarted struct {
	Function string `json:"function"`
}

// FunctionCompleted announces that a child has finished analyzing a
// function, successfully or not.
type FunctionCompleted struct {
	Function string `json:"function"`
	Witnesses int   `json:"witnesses"`
	Err      string `json:"error,omitempty"`
}

// FunctionProgress reports fractional progress through one function's
// analysis, in [0, 1].
type FunctionProgress struct {
	Function string  `json:"function"`
	Frac     float64 `json:"frac"`
}

// FunctionsAnalyzed reports the cumulative set of function names the
// sending client has completed, so the monitor can track the analyzed-
// function set even across client reconnects.
type FunctionsAnalyzed struct {
	Functions []string `json:"functions"`
}

// FunctionStep names the construction/detection phase currently running,
// for a live progress line (e.g. "constructing AEG", "traceback ADDR").
type FunctionStep struct {
	Function string `json:"function"`
	Step     string `json:"step"`
}

// FunctionProperties reports free-form per-function facts discovered during
// analysis (e.g. node counts, speculation depth actually reached).
type FunctionProperties struct {
	Function   string            `json:"function"`
	Properties map[string]string `json:"properties"`
}
