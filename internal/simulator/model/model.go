// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package model

import (
	"sync"
)

const (
	// AddressSpace is the number of bus addresses (one byte).
	AddressSpace = 256
)

// Bank holds the relay state byte of every bus address. Bit n-1 of a state
// byte is relay n of the card at that address.
type Bank struct {
	mu sync.RWMutex

	States []byte
}

// NewBank creates a bank with every relay off.
func NewBank() *Bank {
	return &Bank{
		States: make([]byte, AddressSpace),
	}
}

// State returns the relay state of the card at address.
func (b *Bank) State(address byte) byte {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.States[address]
}

// Set switches on the relays in mask and returns the new state.
func (b *Bank) Set(address, mask byte) byte {
	return b.update(address, func(s byte) byte { return s | mask })
}

// Reset switches off the relays in mask and returns the new state.
func (b *Bank) Reset(address, mask byte) byte {
	return b.update(address, func(s byte) byte { return s &^ mask })
}

// Toggle flips the relays in mask and returns the new state.
func (b *Bank) Toggle(address, mask byte) byte {
	return b.update(address, func(s byte) byte { return s ^ mask })
}

func (b *Bank) update(address byte, fn func(byte) byte) byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.States[address] = fn(b.States[address])
	return b.States[address]
}
