// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package relay8x

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRelayNumber indicates a relay number outside 1..8.
	ErrInvalidRelayNumber = errors.New("relay8x: invalid relay number")

	// ErrInvalidCardOffset indicates a card offset below 1, or one that
	// resolves past the last bus address.
	ErrInvalidCardOffset = errors.New("relay8x: invalid card offset")

	// ErrUnknownCommand indicates a command kind without a wire code.
	ErrUnknownCommand = errors.New("relay8x: unknown command")
)

var (
	// ErrProtocol is matched by every response validation failure.
	ErrProtocol = errors.New("relay8x: protocol error")

	// ErrBadAck indicates the first response byte is not the complement of
	// the command code.
	ErrBadAck = errors.New("bad ack")

	// ErrAddressMismatch indicates the response reports another card address.
	ErrAddressMismatch = errors.New("address mismatch")

	// ErrChecksumMismatch indicates the XOR byte of the response is wrong.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// ProtocolError describes a response that failed validation.
type ProtocolError struct {
	// Rule is one of ErrBadAck, ErrAddressMismatch or ErrChecksumMismatch.
	Rule     error
	Expected byte
	Actual   byte
	Received Frame
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("relay8x: %v: expected 0x%02x, got 0x%02x (response %s)", e.Rule, e.Expected, e.Actual, e.Received)
}

// Unwrap allows errors.Is to match both the rule and ErrProtocol.
func (e *ProtocolError) Unwrap() []error {
	return []error{e.Rule, ErrProtocol}
}
