// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package relay8x

// ValidateOption adjusts response validation.
type ValidateOption func(*validateConfig)

type validateConfig struct {
	addressWildcard bool
}

// WithAddressWildcard lets a request sent to address 0 accept a response
// from any address. Some card firmwares answer a broadcast with their own
// address; without this option the address must be echoed exactly.
func WithAddressWildcard() ValidateOption {
	return func(c *validateConfig) {
		c.addressWildcard = true
	}
}

// Validate checks a response against the request that produced it. The
// acknowledge byte is checked first, then the address, then the checksum;
// the first failing rule is reported as a *ProtocolError.
func Validate(sent, received Frame, opts ...ValidateOption) error {
	var cfg validateConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if ack := ^sent.Command(); received.Command() != ack {
		return &ProtocolError{Rule: ErrBadAck, Expected: ack, Actual: received.Command(), Received: received}
	}

	if received.Address() != sent.Address() && !(cfg.addressWildcard && sent.Address() == 0) {
		return &ProtocolError{Rule: ErrAddressMismatch, Expected: sent.Address(), Actual: received.Address(), Received: received}
	}

	if sum := received.Command() ^ received.Address() ^ received.Data(); received.Checksum() != sum {
		return &ProtocolError{Rule: ErrChecksumMismatch, Expected: sum, Actual: received.Checksum(), Received: received}
	}
	return nil
}
