// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package relay8x

import (
	"fmt"
	"strconv"
	"strings"
)

// RelayIndex is a set of relay numbers (1..8). Order and duplicates do not
// change the packed result.
type RelayIndex []int

// AllRelays returns every relay slot of a card.
func AllRelays() RelayIndex {
	relays := make(RelayIndex, 0, MaxRelay)
	for n := MinRelay; n <= MaxRelay; n++ {
		relays = append(relays, n)
	}
	return relays
}

// Pack maps relays to the data byte of a control frame: relay n sets bit n-1.
// Every number is checked before any bit is set.
func Pack(relays RelayIndex) (byte, error) {
	for _, n := range relays {
		if n < MinRelay || n > MaxRelay {
			return 0, fmt.Errorf("%w: %d", ErrInvalidRelayNumber, n)
		}
	}
	var mask byte
	for _, n := range relays {
		mask |= 1 << (n - 1)
	}
	return mask, nil
}

// Unpack lists the relay numbers whose bit is set in mask, ascending.
func Unpack(mask byte) RelayIndex {
	var relays RelayIndex
	for n := MinRelay; n <= MaxRelay; n++ {
		if mask&(1<<(n-1)) != 0 {
			relays = append(relays, n)
		}
	}
	return relays
}

// ParseIndex parses a list of numbers such as "1,3,5-8" into a slice,
// keeping the order given. Ranges are inclusive. Range checks against cards
// or relay slots are left to Encode.
func ParseIndex(input string) ([]int, error) {
	var out []int
	parts := strings.Split(input, ",")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "-") {
			bounds := strings.Split(part, "-")
			if len(bounds) != 2 {
				return nil, fmt.Errorf("invalid range: %s", part)
			}
			start, err := strconv.Atoi(strings.TrimSpace(bounds[0]))
			if err != nil {
				return nil, fmt.Errorf("invalid start of range: %w", err)
			}
			end, err := strconv.Atoi(strings.TrimSpace(bounds[1]))
			if err != nil {
				return nil, fmt.Errorf("invalid end of range: %w", err)
			}
			if start > end {
				return nil, fmt.Errorf("start of range %d is greater than end %d", start, end)
			}
			if end-start > 0xFF {
				return nil, fmt.Errorf("range too wide: %s", part)
			}
			for i := start; i <= end; i++ {
				out = append(out, i)
			}
		} else {
			n, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid number: %w", err)
			}
			out = append(out, n)
		}
	}
	return out, nil
}
