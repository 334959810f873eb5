// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ffutop/relay8x/relay8x"
	"github.com/ffutop/relay8x/transport"
)

// Init configures the channel and synchronizes with the chain.
//
// It sends an Init frame to the start address and polls the line until a
// frame whose first byte equals the start address comes back. Every other
// frame is an echo of an intermediate card and is discarded. Single reads
// that time out do not end the poll; the init deadline does, measured from
// the first read, and leaves the session Degraded.
//
// Init may be re-run from any state. Transport failures and cancellation
// leave the state unchanged.
func (s *Session) Init(ctx context.Context) error {
	if err := s.ch.Configure(ctx, s.settings); err != nil {
		return &TransportError{Op: "configure", Err: err}
	}

	req, err := relay8x.Encode(relay8x.CmdInit, s.start, 0, nil)
	if err != nil {
		return err
	}
	if err := s.send(ctx, req); err != nil {
		return err
	}
	return s.poll(ctx)
}

func (s *Session) poll(ctx context.Context) error {
	started := time.Now()
	deadline := started.Add(s.initDeadline)
	discarded := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !time.Now().Before(deadline) {
			s.state = Degraded
			s.metrics.InitDone(time.Since(started), discarded, true)
			s.logger.Error("init timed out", "deadline", s.initDeadline, "discarded", discarded)
			return fmt.Errorf("%w: no loop-back for address %d within %s", ErrInitTimeout, s.start, s.initDeadline)
		}

		resp, err := s.receive()
		if err != nil {
			if errors.Is(err, transport.ErrTimeout) {
				continue
			}
			s.metrics.ResponseError("transport")
			return err
		}
		if resp.Command() != s.start {
			discarded++
			continue
		}

		s.state = Ready
		s.metrics.InitDone(time.Since(started), discarded, false)
		s.logger.Info("chain initialized", "discarded", discarded, "elapsed", time.Since(started))
		return nil
	}
}
