// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrTimeout is wrapped by every channel when a single read or write call
// exceeds the configured per-call timeout.
var ErrTimeout = errors.New("transport: i/o timeout")

// ErrNotConnected is returned when I/O is attempted on a closed channel.
var ErrNotConnected = errors.New("transport: not connected")

// FlowControl selects the line flow control.
type FlowControl int

const (
	FlowNone FlowControl = iota
	FlowSoftware
	FlowHardware
)

func (f FlowControl) String() string {
	switch f {
	case FlowNone:
		return "none"
	case FlowSoftware:
		return "xon/xoff"
	case FlowHardware:
		return "rts/cts"
	default:
		return fmt.Sprintf("flow(%d)", int(f))
	}
}

// Line parameters of the relay card bus.
const (
	DefaultBaudRate = 19200
	DefaultDataBits = 8
	DefaultParity   = "N"
	DefaultStopBits = 1
	DefaultTimeout  = 1000 * time.Millisecond
)

// Settings are the line parameters applied by Configure.
type Settings struct {
	BaudRate    int
	DataBits    int
	Parity      string // N, E, O
	StopBits    int
	FlowControl FlowControl

	// Timeout bounds every single Read or Write call.
	Timeout time.Duration
}

// DefaultSettings returns the fixed 19200-8-N-1 setup of the relay cards with
// no flow control and a one second per-call timeout.
func DefaultSettings() Settings {
	return Settings{
		BaudRate:    DefaultBaudRate,
		DataBits:    DefaultDataBits,
		Parity:      DefaultParity,
		StopBits:    DefaultStopBits,
		FlowControl: FlowNone,
		Timeout:     DefaultTimeout,
	}
}

// Channel is a bidirectional byte stream to the card chain. A Channel is owned
// by exactly one session and is not safe for concurrent use.
type Channel interface {
	io.ReadWriter

	// Configure applies line settings and the per-call timeout.
	Configure(ctx context.Context, s Settings) error

	Close() error
}
