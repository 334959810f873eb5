// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.
package relay8x

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	sent := NewFrame(byte(CmdSet), 2, 0x15)

	tests := []struct {
		name     string
		received Frame
		wantRule error
		expected byte
		actual   byte
	}{
		{"Ok", NewFrame(0xF9, 2, 0x15), nil, 0, 0},
		{"OkOtherData", NewFrame(0xF9, 2, 0xFF), nil, 0, 0},
		{"BadAck", NewFrame(0x06, 2, 0x15), ErrBadAck, 0xF9, 0x06},
		{"AddressMismatch", NewFrame(0xF9, 3, 0x15), ErrAddressMismatch, 2, 3},
		{"ChecksumMismatch", Frame{0xF9, 2, 0x15, 0x00}, ErrChecksumMismatch, 0xF9 ^ 2 ^ 0x15, 0x00},
		// ack is checked before the address and checksum
		{"AllWrongReportsAck", Frame{0x00, 9, 0, 1}, ErrBadAck, 0xF9, 0x00},
		{"AddressBeforeChecksum", Frame{0xF9, 9, 0, 1}, ErrAddressMismatch, 2, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(sent, tt.received)
			if tt.wantRule == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantRule)
			require.ErrorIs(t, err, ErrProtocol)

			var perr *ProtocolError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.expected, perr.Expected)
			assert.Equal(t, tt.actual, perr.Actual)
			assert.Equal(t, tt.received, perr.Received)
		})
	}
}

func TestValidate_AddressWildcard(t *testing.T) {
	broadcast := NewFrame(byte(CmdToggle), 0, 0x01)
	resp := NewFrame(CmdToggle.Ack(), 4, 0x01)

	// strict by default
	assert.ErrorIs(t, Validate(broadcast, resp), ErrAddressMismatch)
	assert.NoError(t, Validate(broadcast, resp, WithAddressWildcard()))

	// the wildcard only applies to address 0
	sent := NewFrame(byte(CmdToggle), 1, 0x01)
	assert.ErrorIs(t, Validate(sent, resp, WithAddressWildcard()), ErrAddressMismatch)

	// and does not relax the checksum
	bad := resp
	bad[3]++
	assert.ErrorIs(t, Validate(broadcast, bad, WithAddressWildcard()), ErrChecksumMismatch)
}
