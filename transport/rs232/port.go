// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package rs232 provides a transport.Channel on a local serial device.
package rs232

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/ffutop/relay8x/transport"
	"github.com/grid-x/serial"
)

// Port has configuration and I/O controller.
type Port struct {
	// Serial port configuration.
	serial.Config

	// Exclusive takes an advisory lock on the device while it is open, so a
	// second process cannot talk to the same bus.
	Exclusive bool

	mu sync.Mutex
	// port is platform-dependent data structure for serial port.
	port io.ReadWriteCloser
	lock *deviceLock
	// open is the function used to open the device, replaced in tests.
	open func(*serial.Config) (io.ReadWriteCloser, error)
}

var _ transport.Channel = (*Port)(nil)

// NewPort allocates a Port for device with the default relay card settings.
// The device is opened by Connect or the first Configure.
func NewPort(device string) *Port {
	p := &Port{Exclusive: true}
	p.Config.Address = device
	p.apply(transport.DefaultSettings())
	p.open = func(c *serial.Config) (io.ReadWriteCloser, error) {
		return serial.Open(c)
	}
	return p
}

func (p *Port) apply(s transport.Settings) {
	p.Config.BaudRate = s.BaudRate
	p.Config.DataBits = s.DataBits
	p.Config.Parity = s.Parity
	p.Config.StopBits = s.StopBits
	p.Config.Timeout = s.Timeout
}

// Connect opens the device if it is not open yet.
func (p *Port) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.connect(ctx)
}

// connect connects to the serial port if it is not connected. Caller must hold the mutex.
func (p *Port) connect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if p.port != nil {
		return nil
	}
	if p.Exclusive && p.lock == nil {
		lock, err := lockDevice(p.Config.Address)
		if err != nil {
			return fmt.Errorf("could not lock %s: %w", p.Config.Address, err)
		}
		p.lock = lock
	}
	port, err := p.open(&p.Config)
	if err != nil {
		p.unlock()
		return fmt.Errorf("could not open %s: %w", p.Config.Address, err)
	}
	p.port = port
	return nil
}

// Configure applies s. The underlying driver cannot change the line settings
// of an open handle, so an open port is closed and opened again.
func (p *Port) Configure(ctx context.Context, s transport.Settings) error {
	if s.FlowControl != transport.FlowNone {
		return fmt.Errorf("%s: flow control %s is not supported", p.Config.Address, s.FlowControl)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.apply(s)
	if p.port != nil {
		if err := p.port.Close(); err != nil {
			slog.Warn("Failed to close serial port before reconfiguring", "device", p.Config.Address, "err", err)
		}
		p.port = nil
	}
	slog.Debug("configure serial port", "device", p.Config.Address, "baudRate", s.BaudRate, "dataBits", s.DataBits, "parity", s.Parity, "stopBits", s.StopBits, "timeout", s.Timeout)
	return p.connect(ctx)
}

func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.port == nil {
		return 0, transport.ErrNotConnected
	}
	slog.Debug("send to relay bus", "device", p.Config.Address, "request", hex.EncodeToString(b))
	n, err := p.port.Write(b)
	return n, wrapTimeout(err)
}

func (p *Port) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.port == nil {
		return 0, transport.ErrNotConnected
	}
	n, err := p.port.Read(b)
	if n > 0 {
		slog.Debug("recv from relay bus", "device", p.Config.Address, "response", hex.EncodeToString(b[:n]))
	}
	return n, wrapTimeout(err)
}

// Close closes the device and releases its lock.
func (p *Port) Close() (err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.port != nil {
		err = p.port.Close()
		p.port = nil
	}
	p.unlock()
	return
}

// unlock releases the device lock. Caller must hold the mutex.
func (p *Port) unlock() {
	if p.lock == nil {
		return
	}
	if err := p.lock.release(); err != nil {
		slog.Warn("Failed to release device lock", "device", p.Config.Address, "err", err)
	}
	p.lock = nil
}

func wrapTimeout(err error) error {
	if err != nil && errors.Is(err, serial.ErrTimeout) {
		return fmt.Errorf("%w: %w", transport.ErrTimeout, err)
	}
	return err
}
