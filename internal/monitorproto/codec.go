// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package monitorproto

import (
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// maxFrameLen bounds a single frame's payload, guarding a misbehaving peer
// from forcing an unbounded allocation.
const maxFrameLen = 16 << 20

// WriteMessage frames typ/body as big-endian uint32 length + JSON body and
// writes it to w. Partial writes never leave a half-written frame length
// visible to a reader on another file descriptor, since w.Write below is
// given the fully-assembled frame in one call.
func WriteMessage(w io.Writer, typ Type, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "monitorproto: marshal payload")
	}
	msg := Message{Type: typ, Payload: payload}
	frame, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "monitorproto: marshal envelope")
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(frame)))
	buf := make([]byte, 0, len(lenBuf)+len(frame))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, frame...)
	if _, err := w.Write(buf); err != nil {
		return errors.Wrap(err, "monitorproto: write frame")
	}
	return nil
}

// ReadMessage blocks until a full frame is available on r,
// then decodes its envelope. It does not decode Payload; call the
// Decode with the payload struct matching Type once Type is known.
func ReadMessage(r io.Reader) (Message, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Message{}, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameLen {
		return Message{}, errors.Errorf("monitorproto: frame length %d exceeds maximum %d", n, maxFrameLen)
	}
	frame := make([]byte, n)
	if _, err := io.ReadFull(r, frame); err != nil {
		return Message{}, errors.Wrap(err, "monitorproto: read frame body")
	}
	var msg Message
	if err := json.Unmarshal(frame, &msg); err != nil {
		return Message{}, errors.Wrap(err, "monitorproto: unmarshal envelope")
	}
	return msg, nil
}

// Decode unmarshals msg.Payload into out, which must be a pointer to the
// struct matching msg.Type (e.g. *ClientConnect for TypeClientConnect).
func Decode(msg Message, out any) error {
	if err := json.Unmarshal(msg.Payload, out); err != nil {
		return errors.Wrapf(err, "monitorproto: decode %s payload", msg.Type)
	}
	return nil
}
