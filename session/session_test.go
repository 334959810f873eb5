// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.
package session

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ffutop/relay8x/internal/metrics"
	"github.com/ffutop/relay8x/relay8x"
	"github.com/ffutop/relay8x/transport"
)

func ready(t *testing.T, ch *fakeChannel, start byte, opts ...Option) *Session {
	t.Helper()

	if ch.respond == nil {
		ch.respond = loopback
	}
	s := Open(ch, start, opts...)
	require.NoError(t, s.Init(context.Background()))
	require.Equal(t, Ready, s.State())
	ch.tx = nil
	return s
}

func TestOpen(t *testing.T) {
	ch := &fakeChannel{}
	s := Open(ch, 1)

	assert.Equal(t, Uninitialized, s.State())
	assert.NotEmpty(t, s.ID())
	assert.Equal(t, DefaultInitDeadline, s.initDeadline)
	assert.Equal(t, transport.DefaultSettings(), s.settings)
	assert.Empty(t, ch.tx, "open must not touch the bus")

	require.NoError(t, s.Close())
	assert.True(t, ch.closed)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "uninitialized", Uninitialized.String())
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "degraded", Degraded.String())
	assert.Equal(t, "state(7)", State(7).String())
}

func TestInit_DiscardsEchoes(t *testing.T) {
	ch := &fakeChannel{
		respond: func(req relay8x.Frame) []relay8x.Frame {
			return []relay8x.Frame{
				relay8x.NewFrame(0xFE, 5, 11),
				relay8x.NewFrame(0xFE, 6, 11),
				{9, 9, 9, 9},
				relay8x.NewFrame(5, 7, 0),
				relay8x.NewFrame(0xAA, 0, 0),
			}
		},
	}
	s := Open(ch, 5)

	require.NoError(t, s.Init(context.Background()))
	assert.Equal(t, Ready, s.State())
	assert.Equal(t, []relay8x.Frame{{1, 5, 0, 4}}, ch.tx)
	assert.Equal(t, []transport.Settings{transport.DefaultSettings()}, ch.settings)
	// the poll stops at the match; the trailing frame stays unread
	assert.Equal(t, relay8x.FrameSize, ch.rx.Len())
}

func TestInit_ContinuesAfterReadTimeouts(t *testing.T) {
	ch := &fakeChannel{respond: loopback, timeouts: 5}
	s := Open(ch, 1)

	require.NoError(t, s.Init(context.Background()))
	assert.Equal(t, Ready, s.State())
	assert.Equal(t, 6, ch.reads)
}

func TestInit_Timeout(t *testing.T) {
	ch := &fakeChannel{
		respond: func(req relay8x.Frame) []relay8x.Frame {
			return []relay8x.Frame{relay8x.NewFrame(0xFE, 5, 11), relay8x.NewFrame(0xFE, 6, 11)}
		},
	}
	s := Open(ch, 5, WithInitDeadline(30*time.Millisecond))

	started := time.Now()
	err := s.Init(context.Background())
	require.ErrorIs(t, err, ErrInitTimeout)
	assert.GreaterOrEqual(t, time.Since(started), 30*time.Millisecond)
	assert.Equal(t, Degraded, s.State())

	// control commands are refused and nothing reaches the bus
	ch.tx = nil
	_, err = s.Set(context.Background(), relay8x.CardIndex{1}, relay8x.RelayIndex{1})
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = s.Toggle(context.Background(), relay8x.CardIndex{1}, relay8x.RelayIndex{1})
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Empty(t, ch.tx)

	// a successful handshake recovers
	ch.rx.Reset()
	ch.respond = loopback
	require.NoError(t, s.Init(context.Background()))
	assert.Equal(t, Ready, s.State())
}

func TestInit_TransportErrorKeepsState(t *testing.T) {
	ch := &fakeChannel{readErr: io.EOF}
	s := Open(ch, 1)

	err := s.Init(context.Background())
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "read", terr.Op)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, Uninitialized, s.State())

	ch.readErr = nil
	ch.respond = loopback
	require.NoError(t, s.Init(context.Background()))

	ch.readErr = io.ErrUnexpectedEOF
	require.Error(t, s.Init(context.Background()))
	assert.Equal(t, Ready, s.State())
}

func TestInit_ConfigureError(t *testing.T) {
	ch := &fakeChannel{configureErr: errors.New("no such device")}
	s := Open(ch, 1)

	err := s.Init(context.Background())
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "configure", terr.Op)
	assert.Empty(t, ch.tx)
	assert.Equal(t, Uninitialized, s.State())
}

func TestInit_Canceled(t *testing.T) {
	ch := &fakeChannel{}
	s := Open(ch, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Init(ctx), context.Canceled)
	assert.Equal(t, Uninitialized, s.State())
}

func TestInit_Timeout_Option(t *testing.T) {
	ch := &fakeChannel{respond: loopback}
	s := Open(ch, 1, WithTimeout(250*time.Millisecond))

	require.NoError(t, s.Init(context.Background()))
	require.Len(t, ch.settings, 1)
	assert.Equal(t, 250*time.Millisecond, ch.settings[0].Timeout)
	assert.Equal(t, transport.DefaultBaudRate, ch.settings[0].BaudRate)
}

func TestSet_TwoCards(t *testing.T) {
	ch := &fakeChannel{}
	s := ready(t, ch, 1)

	resps, err := s.Set(context.Background(), relay8x.CardIndex{1, 2}, relay8x.RelayIndex{1, 3, 5})
	require.NoError(t, err)
	assert.Equal(t, []relay8x.Frame{{6, 1, 21, 18}, {6, 2, 21, 17}}, ch.tx)
	assert.Equal(t, []relay8x.Frame{
		relay8x.NewFrame(0xF9, 1, 21),
		relay8x.NewFrame(0xF9, 2, 21),
	}, resps)
}

func TestCommands(t *testing.T) {
	tests := []struct {
		name string
		call func(*Session, context.Context, relay8x.CardIndex, relay8x.RelayIndex) ([]relay8x.Frame, error)
		code byte
	}{
		{"Set", (*Session).Set, 6},
		{"Reset", (*Session).Reset, 7},
		{"Toggle", (*Session).Toggle, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := &fakeChannel{}
			s := ready(t, ch, 3)

			resps, err := tt.call(s, context.Background(), relay8x.CardIndex{2, 1}, relay8x.RelayIndex{8})
			require.NoError(t, err)
			require.Len(t, resps, 2)
			// cards are addressed in the order given
			assert.Equal(t, []relay8x.Frame{
				relay8x.NewFrame(tt.code, 4, 0x80),
				relay8x.NewFrame(tt.code, 3, 0x80),
			}, ch.tx)
			assert.Equal(t, ^tt.code, resps[0].Command())
		})
	}
}

func TestApply_InvalidInputSendsNothing(t *testing.T) {
	ch := &fakeChannel{}
	s := ready(t, ch, 1)

	_, err := s.Set(context.Background(), relay8x.CardIndex{1, 2}, relay8x.RelayIndex{1, 9})
	assert.ErrorIs(t, err, relay8x.ErrInvalidRelayNumber)

	_, err = s.Reset(context.Background(), relay8x.CardIndex{1, 0}, relay8x.RelayIndex{1})
	assert.ErrorIs(t, err, relay8x.ErrInvalidCardOffset)
	var cerr *CardError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, 0, cerr.Card)

	_, err = s.Toggle(context.Background(), relay8x.CardIndex{1, math.MaxInt}, relay8x.RelayIndex{1})
	assert.ErrorIs(t, err, relay8x.ErrInvalidCardOffset)
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, math.MaxInt, cerr.Card)

	_, err = s.Toggle(context.Background(), nil, relay8x.RelayIndex{1})
	assert.ErrorIs(t, err, ErrEmptyIndex)

	_, err = s.Toggle(context.Background(), relay8x.CardIndex{1}, nil)
	assert.ErrorIs(t, err, ErrEmptyIndex)

	assert.Empty(t, ch.tx)
	assert.Equal(t, Ready, s.State())
}

func TestApply_ChecksumMismatchStopsBatch(t *testing.T) {
	ch := &fakeChannel{}
	s := ready(t, ch, 1)
	ch.respond = func(req relay8x.Frame) []relay8x.Frame {
		resp := relay8x.NewFrame(^req.Command(), req.Address(), req.Data())
		if req.Address() == 2 {
			resp[3] ^= 0xFF
		}
		return []relay8x.Frame{resp}
	}

	resps, err := s.Set(context.Background(), relay8x.CardIndex{1, 2, 3}, relay8x.RelayIndex{1})
	require.Error(t, err)
	assert.ErrorIs(t, err, relay8x.ErrChecksumMismatch)

	var cerr *CardError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, 2, cerr.Card)
	assert.Equal(t, byte(2), cerr.Address)

	assert.Equal(t, []relay8x.Frame{relay8x.NewFrame(0xF9, 1, 1)}, resps)
	assert.Len(t, ch.tx, 2, "card 3 must not be addressed")
	assert.Equal(t, Ready, s.State())
}

func TestApply_ProtocolRules(t *testing.T) {
	tests := []struct {
		name    string
		respond func(req relay8x.Frame) []relay8x.Frame
		rule    error
	}{
		{"BadAck", func(req relay8x.Frame) []relay8x.Frame {
			return []relay8x.Frame{relay8x.NewFrame(relay8x.CodeError, req.Address(), 0)}
		}, relay8x.ErrBadAck},
		{"AddressMismatch", func(req relay8x.Frame) []relay8x.Frame {
			return []relay8x.Frame{relay8x.NewFrame(^req.Command(), req.Address()+1, req.Data())}
		}, relay8x.ErrAddressMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := &fakeChannel{}
			s := ready(t, ch, 1)
			ch.respond = tt.respond

			_, err := s.Toggle(context.Background(), relay8x.CardIndex{1}, relay8x.RelayIndex{1})
			assert.ErrorIs(t, err, tt.rule)
			assert.ErrorIs(t, err, relay8x.ErrProtocol)
		})
	}
}

func TestApply_AddressWildcard(t *testing.T) {
	broadcastReply := func(req relay8x.Frame) []relay8x.Frame {
		if req.Command() == byte(relay8x.CmdInit) {
			return loopback(req)
		}
		return []relay8x.Frame{relay8x.NewFrame(^req.Command(), 1, req.Data())}
	}

	strict := ready(t, &fakeChannel{respond: broadcastReply}, 0)
	_, err := strict.Set(context.Background(), relay8x.CardIndex{1}, relay8x.RelayIndex{1})
	assert.ErrorIs(t, err, relay8x.ErrAddressMismatch)

	loose := ready(t, &fakeChannel{respond: broadcastReply}, 0, WithAddressWildcard())
	resps, err := loose.Set(context.Background(), relay8x.CardIndex{1}, relay8x.RelayIndex{1})
	require.NoError(t, err)
	assert.Equal(t, byte(1), resps[0].Address())
}

func TestApply_TransportErrors(t *testing.T) {
	ch := &fakeChannel{}
	s := ready(t, ch, 1)

	ch.writeErr = errors.New("line down")
	_, err := s.Set(context.Background(), relay8x.CardIndex{1}, relay8x.RelayIndex{1})
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "write", terr.Op)
	assert.Equal(t, Ready, s.State())

	// a silent card surfaces the read timeout, no retry
	ch.writeErr = nil
	ch.respond = nil
	_, err = s.Toggle(context.Background(), relay8x.CardIndex{1, 2}, relay8x.RelayIndex{1})
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "read", terr.Op)
	assert.ErrorIs(t, err, transport.ErrTimeout)
	assert.Len(t, ch.tx, 1)
	assert.Equal(t, Ready, s.State())
}

func TestApply_RequestPause(t *testing.T) {
	ch := &fakeChannel{}
	s := ready(t, ch, 1, WithRequestPause(20*time.Millisecond))

	started := time.Now()
	_, err := s.Set(context.Background(), relay8x.CardIndex{1, 2, 3}, relay8x.RelayIndex{1})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(started), 40*time.Millisecond)
}

func TestApply_Canceled(t *testing.T) {
	ch := &fakeChannel{}
	s := ready(t, ch, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Set(ctx, relay8x.CardIndex{1}, relay8x.RelayIndex{1})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ch.tx)
}

func TestMetrics(t *testing.T) {
	reg := metrics.NewRegistry()
	m := metrics.NewBusMetrics(reg)

	ch := &fakeChannel{}
	s := ready(t, ch, 1, WithMetrics(m))
	_, err := s.Set(context.Background(), relay8x.CardIndex{1, 2}, relay8x.RelayIndex{1})
	require.NoError(t, err)

	ch.respond = func(req relay8x.Frame) []relay8x.Frame {
		return []relay8x.Frame{{^req.Command(), req.Address(), 0, 0}}
	}
	_, err = s.Reset(context.Background(), relay8x.CardIndex{1}, relay8x.RelayIndex{1})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesSent.WithLabelValues("init")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesSent.WithLabelValues("set")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesSent.WithLabelValues("reset")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResponseErrors.WithLabelValues("checksum_mismatch")))
}
