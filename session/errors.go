// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned by control operations before a successful Init.
	ErrNotReady = errors.New("session: not ready")

	// ErrInitTimeout is returned when no card loops the init frame back
	// within the init deadline. The session is Degraded afterwards.
	ErrInitTimeout = errors.New("session: init timeout")

	// ErrEmptyIndex is returned when a control operation names no card or
	// no relay.
	ErrEmptyIndex = errors.New("session: empty card or relay index")
)

// TransportError wraps a failure of the underlying channel.
type TransportError struct {
	Op  string // "configure", "read", "write"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("session: transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// CardError identifies the card a batch operation stopped at. Address is
// zero when no frame could be built for the card.
type CardError struct {
	Card    int
	Address byte
	Err     error
}

func (e *CardError) Error() string {
	return fmt.Sprintf("session: card %d (address %d): %v", e.Card, e.Address, e.Err)
}

func (e *CardError) Unwrap() error { return e.Err }
