// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ffutop/relay8x/internal/simulator/model"
)

// A relay bank file is
//
//	Magic    : 4 bytes, "R8XB"
//	Version  : 1 byte
//	Reserved : 3 bytes
//	States   : 256 bytes, one relay state byte per bus address
const (
	magic         = "R8XB"
	layoutVersion = 1
	headerSize    = 8
	totalSize     = headerSize + model.AddressSpace
)

// ErrLayout is returned when a file does not hold a relay bank.
var ErrLayout = errors.New("persistence: not a relay bank file")

// checkSize accepts an empty file, which is then grown to totalSize, or a
// file of exactly totalSize.
func checkSize(size int64) error {
	if size != 0 && size != int64(totalSize) {
		return fmt.Errorf("%w: size %d, want %d", ErrLayout, size, totalSize)
	}
	return nil
}

// initHeader stamps a blank header and validates an existing one.
func initHeader(data []byte) error {
	if len(data) < totalSize {
		return fmt.Errorf("%w: size %d, want %d", ErrLayout, len(data), totalSize)
	}
	hdr := data[:headerSize]
	if bytes.Equal(hdr, make([]byte, headerSize)) {
		copy(hdr, magic)
		hdr[4] = layoutVersion
		return nil
	}
	if string(hdr[:len(magic)]) != magic {
		return fmt.Errorf("%w: bad magic %q", ErrLayout, hdr[:len(magic)])
	}
	if hdr[4] != layoutVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrLayout, hdr[4])
	}
	return nil
}

// mapBytesToBank constructs a Bank backed by the state section of data, so
// writes to the bank land directly in the file or mapping behind it.
func mapBytesToBank(data []byte) *model.Bank {
	return &model.Bank{States: data[headerSize:totalSize:totalSize]}
}
