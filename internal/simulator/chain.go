// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package simulator emulates a daisy chain of 8-relay cards. It answers
// request frames the way the hardware does and keeps the relay states in a
// model.Bank that can be persisted.
package simulator

import (
	"log/slog"

	"github.com/ffutop/relay8x/internal/simulator/model"
	"github.com/ffutop/relay8x/internal/simulator/persistence"
	"github.com/ffutop/relay8x/relay8x"
)

// DefaultFirmware is the version byte cards report when acknowledging Init.
const DefaultFirmware byte = 11

// broadcastAddress addresses every card of the chain at once.
const broadcastAddress byte = 0

// Chain is a simulated chain of cards. It is not safe for concurrent use.
type Chain struct {
	cards    int
	firmware byte

	// base is the address of the first card, assigned by Init.
	base        byte
	initialized bool

	bank    *model.Bank
	storage persistence.Storage
}

// NewChain creates a chain of cards whose relay states live in bank. Every
// state change is reported to storage, which may be nil.
func NewChain(cards int, firmware byte, bank *model.Bank, storage persistence.Storage) *Chain {
	if bank == nil {
		bank = model.NewBank()
	}
	if storage == nil {
		storage = persistence.NewMemoryStorage()
	}
	return &Chain{
		cards:    cards,
		firmware: firmware,
		bank:     bank,
		storage:  storage,
	}
}

// State returns the relay state of the card at address.
func (c *Chain) State(address byte) byte { return c.bank.State(address) }

// Process handles one request and returns the frames the chain sends back,
// in wire order. Requests nobody answers yield no frames.
func (c *Chain) Process(req relay8x.Frame) []relay8x.Frame {
	if !req.Valid() {
		slog.Debug("simulator: corrupt request", "request", req)
		if !c.owns(req.Address()) {
			return nil
		}
		return []relay8x.Frame{relay8x.NewFrame(relay8x.CodeError, req.Address(), 0)}
	}

	kind := relay8x.CommandKind(req.Command())
	switch {
	case kind == relay8x.CmdInit:
		return c.init(req.Address())
	case kind.IsControl():
		return c.control(kind, req.Address(), req.Data())
	default:
		if !c.owns(req.Address()) {
			return nil
		}
		return []relay8x.Frame{relay8x.NewFrame(relay8x.CodeError, req.Address(), 0)}
	}
}

// init lets every card take the next address and acknowledge with its
// firmware version; the last card loops the init frame back to the host
// tagged with the start address.
func (c *Chain) init(start byte) []relay8x.Frame {
	if c.cards == 0 {
		return nil
	}
	c.base = start
	c.initialized = true

	out := make([]relay8x.Frame, 0, c.cards+1)
	for i := 0; i < c.cards; i++ {
		out = append(out, relay8x.NewFrame(relay8x.CmdInit.Ack(), start+byte(i), c.firmware))
	}
	out = append(out, relay8x.NewFrame(start, start+byte(c.cards), 0))
	return out
}

func (c *Chain) control(kind relay8x.CommandKind, address, mask byte) []relay8x.Frame {
	if !c.initialized {
		return nil
	}
	// a chain initialized at 0 owns that address, so there is no broadcast
	if address == broadcastAddress && !c.owns(address) {
		var first byte
		for i := 0; i < c.cards; i++ {
			state := c.apply(kind, c.base+byte(i), mask)
			if i == 0 {
				first = state
			}
		}
		return []relay8x.Frame{relay8x.NewFrame(kind.Ack(), c.base, first)}
	}
	if !c.owns(address) {
		return nil
	}
	state := c.apply(kind, address, mask)
	return []relay8x.Frame{relay8x.NewFrame(kind.Ack(), address, state)}
}

func (c *Chain) apply(kind relay8x.CommandKind, address, mask byte) byte {
	var state byte
	switch kind {
	case relay8x.CmdSet:
		state = c.bank.Set(address, mask)
	case relay8x.CmdReset:
		state = c.bank.Reset(address, mask)
	case relay8x.CmdToggle:
		state = c.bank.Toggle(address, mask)
	}
	c.storage.OnWrite(address)
	slog.Debug("simulator: relays switched", "command", kind, "address", address, "mask", mask, "state", state)
	return state
}

// owns reports whether a card of the initialized chain sits at address.
func (c *Chain) owns(address byte) bool {
	if !c.initialized {
		return false
	}
	offset := int(address) - int(c.base)
	return offset >= 0 && offset < c.cards
}
