// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.
package session

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/ffutop/relay8x/relay8x"
	"github.com/ffutop/relay8x/transport"
)

// fakeChannel answers every written frame through respond. Reads with
// nothing queued time out.
type fakeChannel struct {
	respond func(req relay8x.Frame) []relay8x.Frame

	tx      []relay8x.Frame
	partial []byte
	rx      bytes.Buffer

	// timeouts is the number of reads answered with a timeout before rx is
	// served.
	timeouts int
	reads    int

	configureErr error
	readErr      error
	writeErr     error

	settings []transport.Settings
	closed   bool
}

func (f *fakeChannel) Configure(ctx context.Context, s transport.Settings) error {
	f.settings = append(f.settings, s)
	return f.configureErr
}

func (f *fakeChannel) Write(b []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.partial = append(f.partial, b...)
	for len(f.partial) >= relay8x.FrameSize {
		var req relay8x.Frame
		copy(req[:], f.partial)
		f.partial = f.partial[relay8x.FrameSize:]
		f.tx = append(f.tx, req)
		if f.respond != nil {
			for _, resp := range f.respond(req) {
				f.rx.Write(resp[:])
			}
		}
	}
	return len(b), nil
}

func (f *fakeChannel) Read(b []byte) (int, error) {
	f.reads++
	if f.readErr != nil {
		return 0, f.readErr
	}
	if f.timeouts > 0 || f.rx.Len() == 0 {
		if f.timeouts > 0 {
			f.timeouts--
		}
		time.Sleep(time.Millisecond)
		return 0, fmt.Errorf("%w: fake", transport.ErrTimeout)
	}
	return f.rx.Read(b)
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

// loopback answers Init with the start address tagged frame and every
// control request with a proper acknowledgement.
func loopback(req relay8x.Frame) []relay8x.Frame {
	if req.Command() == byte(relay8x.CmdInit) {
		return []relay8x.Frame{relay8x.NewFrame(req.Address(), req.Address()+1, 0)}
	}
	return []relay8x.Frame{relay8x.NewFrame(^req.Command(), req.Address(), req.Data())}
}
