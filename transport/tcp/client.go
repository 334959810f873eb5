// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package tcp provides a transport.Channel to a serial device server, which
// forwards a raw TCP stream to the RS-232 line of the card chain.
package tcp

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/ffutop/relay8x/transport"
)

const (
	tcpDialTimeout = 10 * time.Second
)

// Client is a raw byte channel over one TCP connection.
type Client struct {
	Address     string
	DialTimeout time.Duration

	timeout time.Duration
	conn    net.Conn
}

var _ transport.Channel = (*Client)(nil)

// NewClient allocates a Client for a device server at address.
func NewClient(address string) *Client {
	return &Client{
		Address:     address,
		DialTimeout: tcpDialTimeout,
		timeout:     transport.DefaultTimeout,
	}
}

// Connect dials the device server if not connected yet.
func (c *Client) Connect(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	dialer := net.Dialer{Timeout: c.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.Address)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.Address, err)
	}
	c.conn = conn
	return nil
}

// Configure records the per-call timeout. The line settings belong to the
// device server's serial port and must match s; they cannot be changed
// through the raw stream.
func (c *Client) Configure(ctx context.Context, s transport.Settings) error {
	if s.Timeout > 0 {
		c.timeout = s.Timeout
	}
	slog.Debug("device server line settings are configured out of band", "addr", c.Address, "baudRate", s.BaudRate, "dataBits", s.DataBits, "parity", s.Parity, "stopBits", s.StopBits, "flow", s.FlowControl)
	return c.Connect(ctx)
}

func (c *Client) Write(b []byte) (int, error) {
	if c.conn == nil {
		return 0, transport.ErrNotConnected
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	slog.Debug("send to device server", "addr", c.Address, "request", hex.EncodeToString(b))
	n, err := c.conn.Write(b)
	return n, wrapTimeout(err)
}

func (c *Client) Read(b []byte) (int, error) {
	if c.conn == nil {
		return 0, transport.ErrNotConnected
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	n, err := c.conn.Read(b)
	if n > 0 {
		slog.Debug("recv from device server", "addr", c.Address, "response", hex.EncodeToString(b[:n]))
	}
	return n, wrapTimeout(err)
}

// Close closes the connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func wrapTimeout(err error) error {
	if err != nil && errors.Is(err, os.ErrDeadlineExceeded) {
		return fmt.Errorf("%w: %w", transport.ErrTimeout, err)
	}
	return err
}
