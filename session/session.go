// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package session drives a chain of relay cards over a transport.Channel.
//
// A Session owns its channel exclusively and talks to the cards strictly one
// request and one response at a time. It must not be used concurrently.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/ffutop/relay8x/internal/metrics"
	"github.com/ffutop/relay8x/relay8x"
	"github.com/ffutop/relay8x/transport"
)

// DefaultInitDeadline bounds the init poll loop.
const DefaultInitDeadline = 30 * time.Second

// State of a Session.
type State int

const (
	Uninitialized State = iota
	Ready
	Degraded
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Degraded:
		return "degraded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session is the single owner of a channel to a card chain.
type Session struct {
	id    string
	ch    transport.Channel
	start byte
	state State

	settings     transport.Settings
	initDeadline time.Duration
	validateOpts []relay8x.ValidateOption
	pacer        *rate.Limiter

	logger  *slog.Logger
	metrics *metrics.BusMetrics
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records bus activity into m.
func WithMetrics(m *metrics.BusMetrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithAddressWildcard accepts any responding address for requests sent to
// address 0.
func WithAddressWildcard() Option {
	return func(s *Session) {
		s.validateOpts = append(s.validateOpts, relay8x.WithAddressWildcard())
	}
}

// WithRequestPause keeps at least d between two requests written to the bus.
func WithRequestPause(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.pacer = rate.NewLimiter(rate.Every(d), 1)
		} else {
			s.pacer = nil
		}
	}
}

// WithInitDeadline overrides DefaultInitDeadline.
func WithInitDeadline(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.initDeadline = d
		}
	}
}

// WithTimeout overrides the per-call channel timeout applied by Init. The
// line parameters themselves are fixed.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.settings.Timeout = d
		}
	}
}

// Open takes ownership of ch for a chain whose first card sits at start. The
// session starts Uninitialized; call Init before any control operation.
func Open(ch transport.Channel, start byte, opts ...Option) *Session {
	s := &Session{
		id:           uuid.NewString(),
		ch:           ch,
		start:        start,
		settings:     transport.DefaultSettings(),
		initDeadline: DefaultInitDeadline,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session", s.id, "start", start)
	return s
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// State returns the current state.
func (s *Session) State() State { return s.state }

// Close releases the channel. The session is Uninitialized afterwards.
func (s *Session) Close() error {
	s.state = Uninitialized
	return s.ch.Close()
}

// send writes req, waiting for the request pause first.
func (s *Session) send(ctx context.Context, req relay8x.Frame) error {
	if s.pacer != nil {
		if err := s.pacer.Wait(ctx); err != nil {
			return err
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}

	n, err := s.ch.Write(req[:])
	if err == nil && n < relay8x.FrameSize {
		err = io.ErrShortWrite
	}
	if err != nil {
		s.metrics.ResponseError("transport")
		return &TransportError{Op: "write", Err: err}
	}
	s.metrics.FrameSent(relay8x.CommandKind(req.Command()).String())
	s.logger.Debug("frame sent", "frame", req)
	return nil
}

// receive reads one frame.
func (s *Session) receive() (relay8x.Frame, error) {
	resp, err := relay8x.ReadFrame(s.ch)
	if err != nil {
		return relay8x.Frame{}, &TransportError{Op: "read", Err: err}
	}
	s.logger.Debug("frame received", "frame", resp)
	return resp, nil
}

func ruleLabel(err error) string {
	switch {
	case errors.Is(err, relay8x.ErrBadAck):
		return "bad_ack"
	case errors.Is(err, relay8x.ErrAddressMismatch):
		return "address_mismatch"
	case errors.Is(err, relay8x.ErrChecksumMismatch):
		return "checksum_mismatch"
	default:
		return "transport"
	}
}
