// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package local provides a transport.Channel wired to a simulated card chain
// in the same process.
package local

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ffutop/relay8x/internal/config"
	"github.com/ffutop/relay8x/internal/simulator"
	"github.com/ffutop/relay8x/internal/simulator/model"
	"github.com/ffutop/relay8x/internal/simulator/persistence"
	"github.com/ffutop/relay8x/relay8x"
	"github.com/ffutop/relay8x/transport"
)

// Client implements transport.Channel on top of a simulator.Chain.
type Client struct {
	chain   *simulator.Chain
	bank    *model.Bank
	storage persistence.Storage

	timeout time.Duration
	// deaf is set when the line settings do not match the cards, which then
	// never see a valid frame.
	deaf bool

	tx bytes.Buffer
	rx bytes.Buffer
}

var _ transport.Channel = (*Client)(nil)

// NewClient creates a Client for a simulated chain described by cfg.
func NewClient(cfg config.LocalConfig) *Client {
	storage := persistence.New(cfg.Persistence.Type, cfg.Persistence.Path)
	slog.Info("Initializing simulated relay chain", "cards", cfg.Cards, "persistence", cfg.Persistence.Type, "path", cfg.Persistence.Path)

	bank, err := storage.Load()
	if err != nil {
		slog.Error("Failed to load persistence data, starting with fresh bank", "err", err)
		if bank == nil {
			slog.Warn("Falling back to MemoryStorage")
			storage = persistence.NewMemoryStorage()
			bank, _ = storage.Load()
		}
	}

	firmware := cfg.Firmware
	if firmware == 0 {
		firmware = simulator.DefaultFirmware
	}
	return &Client{
		chain:   simulator.NewChain(cfg.Cards, firmware, bank, storage),
		bank:    bank,
		storage: storage,
		timeout: transport.DefaultTimeout,
	}
}

// Chain returns the simulated chain behind the client.
func (c *Client) Chain() *simulator.Chain { return c.chain }

// Configure records the per-call timeout and checks the line settings
// against what the cards speak.
func (c *Client) Configure(ctx context.Context, s transport.Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	want := transport.DefaultSettings()
	c.deaf = s.BaudRate != want.BaudRate || s.DataBits != want.DataBits ||
		s.Parity != want.Parity || s.StopBits != want.StopBits || s.FlowControl != want.FlowControl
	if c.deaf {
		slog.Warn("simulated chain does not understand line settings", "baudRate", s.BaudRate, "dataBits", s.DataBits, "parity", s.Parity, "stopBits", s.StopBits, "flow", s.FlowControl)
	}
	if s.Timeout > 0 {
		c.timeout = s.Timeout
	}
	return nil
}

// Write hands every complete frame to the chain and queues its answers.
func (c *Client) Write(b []byte) (int, error) {
	c.tx.Write(b)
	for c.tx.Len() >= relay8x.FrameSize {
		var req relay8x.Frame
		copy(req[:], c.tx.Next(relay8x.FrameSize))
		if c.deaf {
			continue
		}
		for _, resp := range c.chain.Process(req) {
			c.rx.Write(resp[:])
		}
	}
	return len(b), nil
}

// Read returns queued answers. With nothing queued it waits for the
// per-call timeout, like a silent line would.
func (c *Client) Read(b []byte) (int, error) {
	if c.rx.Len() == 0 {
		time.Sleep(c.timeout)
		return 0, fmt.Errorf("%w: simulated chain is silent", transport.ErrTimeout)
	}
	return c.rx.Read(b)
}

// Close saves and closes the storage.
func (c *Client) Close() error {
	if err := c.storage.Save(c.bank); err != nil {
		slog.Error("Failed to save simulated relay states", "err", err)
	}
	return c.storage.Close()
}
