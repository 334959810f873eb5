// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package tcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/ffutop/relay8x/relay8x"
	"github.com/ffutop/relay8x/transport"
)

// DefaultQuiet is how long the bus must stay silent after a request before
// the server waits for the next one.
const DefaultQuiet = 50 * time.Millisecond

// Server exposes a bus channel on a TCP port, like a serial device server.
// Clients are served one at a time; further clients wait in the accept queue
// until the current one disconnects.
type Server struct {
	Address string
	Bus     transport.Channel
	Quiet   time.Duration

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a Server forwarding to bus.
func NewServer(address string, bus transport.Channel) *Server {
	return &Server{
		Address: address,
		Bus:     bus,
		Quiet:   DefaultQuiet,
	}
}

// Start configures the bus, listens and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(ctx); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Listen configures the bus and opens the listener.
func (s *Server) Listen(ctx context.Context) error {
	settings := transport.DefaultSettings()
	settings.Timeout = s.Quiet
	if err := s.Bus.Configure(ctx, settings); err != nil {
		return fmt.Errorf("failed to configure bus: %w", err)
	}

	listener, err := net.Listen("tcp", s.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Address, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	slog.Info("Relay device server listening", "addr", listener.Addr())
	return nil
}

// Addr returns the listening address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts clients until ctx is done or the listener is closed.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return fmt.Errorf("server is not listening")
	}

	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			slog.Error("Failed to accept connection", "err", err)
			continue
		}
		s.handleConnection(ctx, conn)
	}
}

// Close closes the listener.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	slog.Info("New TCP client connected", "addr", conn.RemoteAddr())
	for {
		req, err := relay8x.ReadFrame(conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				slog.Info("TCP client disconnected gracefully", "addr", conn.RemoteAddr())
			} else if ctx.Err() == nil {
				slog.Error("Failed to read from connection", "addr", conn.RemoteAddr(), "err", err)
			}
			return
		}

		if _, err := s.Bus.Write(req[:]); err != nil {
			slog.Error("Failed to write request to bus", "request", req, "err", err)
			return
		}
		if err := s.drain(conn); err != nil {
			slog.Error("Failed to forward bus response", "request", req, "err", err)
			return
		}
	}
}

// drain forwards every frame the bus sends until it stays quiet.
func (s *Server) drain(conn net.Conn) error {
	for {
		resp, err := relay8x.ReadFrame(s.Bus)
		if errors.Is(err, transport.ErrTimeout) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := conn.Write(resp[:]); err != nil {
			return err
		}
	}
}
