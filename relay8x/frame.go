// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package relay8x implements the framing protocol of daisy-chained 8-relay
// cards: every request and response is a 4-byte frame
//
//	Command   : 1 byte
//	Address   : 1 byte
//	Data      : 1 byte
//	Checksum  : 1 byte, Command ^ Address ^ Data
package relay8x

import (
	"encoding/hex"
	"fmt"
	"io"
)

// Frame is a single request or response.
type Frame [FrameSize]byte

// NewFrame builds a frame and fills in its checksum.
func NewFrame(command, address, data byte) Frame {
	return Frame{command, address, data, command ^ address ^ data}
}

func (f Frame) Command() byte  { return f[0] }
func (f Frame) Address() byte  { return f[1] }
func (f Frame) Data() byte     { return f[2] }
func (f Frame) Checksum() byte { return f[3] }

// Valid reports whether the checksum byte matches the first three bytes.
func (f Frame) Valid() bool {
	return f[3] == f[0]^f[1]^f[2]
}

// Bytes returns the wire representation of f.
func (f Frame) Bytes() []byte {
	b := make([]byte, FrameSize)
	copy(b, f[:])
	return b
}

func (f Frame) String() string {
	return hex.EncodeToString(f[:])
}

// Encode builds the request frame for kind.
//
// Init is always addressed at start and carries no data; card and relays are
// ignored. Set, Reset and Toggle are addressed at the card offset relative to
// start and carry the packed relay bitmask.
func Encode(kind CommandKind, start byte, card int, relays RelayIndex) (Frame, error) {
	switch kind {
	case CmdInit:
		return NewFrame(byte(kind), start, 0), nil
	case CmdSet, CmdReset, CmdToggle:
		address, err := Addressed(start, card)
		if err != nil {
			return Frame{}, err
		}
		data, err := Pack(relays)
		if err != nil {
			return Frame{}, err
		}
		return NewFrame(byte(kind), address, data), nil
	default:
		return Frame{}, fmt.Errorf("%w: %d", ErrUnknownCommand, byte(kind))
	}
}

// ReadFrame reads exactly one frame from r.
func ReadFrame(r io.Reader) (Frame, error) {
	var f Frame
	if r == nil {
		return f, fmt.Errorf("reader is nil")
	}
	if _, err := io.ReadFull(r, f[:]); err != nil {
		return Frame{}, err
	}
	return f, nil
}
