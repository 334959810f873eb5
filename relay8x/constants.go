// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package relay8x

const (
	// FrameSize is the length of every request and response on the wire.
	FrameSize = 4

	MinRelay = 1
	MaxRelay = 8

	MinCard = 1
)

// Response code sent by a card that could not decode a request.
const CodeError byte = 0xFF

// CommandKind is the wire code of a relay card command.
type CommandKind byte

// Command codes
const (
	CmdInit   CommandKind = 1
	CmdSet    CommandKind = 6
	CmdReset  CommandKind = 7
	CmdToggle CommandKind = 8
)

func (k CommandKind) String() string {
	switch k {
	case CmdInit:
		return "init"
	case CmdSet:
		return "set"
	case CmdReset:
		return "reset"
	case CmdToggle:
		return "toggle"
	default:
		return "unknown"
	}
}

// Ack returns the code a card answers with when it accepts k.
func (k CommandKind) Ack() byte {
	return ^byte(k)
}

// IsControl reports whether k switches relays (Set, Reset or Toggle).
func (k CommandKind) IsControl() bool {
	return k == CmdSet || k == CmdReset || k == CmdToggle
}
