// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"github.com/ffutop/relay8x/internal/simulator/model"
)

// Storage defines the interface for persisting the simulated relay states.
type Storage interface {
	// Load loads the bank from storage.
	// If no data exists, it returns a bank with every relay off.
	Load() (*model.Bank, error)

	// Save saves the current bank to storage.
	Save(bank *model.Bank) error

	// OnWrite is a hook called whenever the state of a card changes.
	// It allows the storage to perform real-time persistence.
	OnWrite(address byte)

	Close() error
}

// New returns the storage of the given kind: "memory" (default), "file" or
// "mmap". path is ignored for memory storage.
func New(kind, path string) Storage {
	switch kind {
	case "file":
		return NewFileStorage(path)
	case "mmap":
		return NewMmapStorage(path)
	default:
		return NewMemoryStorage()
	}
}
