// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package relay8x

import "fmt"

// CardIndex is an ordered list of 1-based card offsets. Commands are
// dispatched to the cards in this order.
type CardIndex []int

// Addressed returns the bus address of the card at offset card, where card 1
// sits at start and each following card at the next address. Chained cards
// assign themselves sequential addresses during Init.
func Addressed(start byte, card int) (byte, error) {
	if card < MinCard {
		return 0, fmt.Errorf("%w: %d", ErrInvalidCardOffset, card)
	}
	// compare before adding, card may be near math.MaxInt
	if card-1 > 0xFF-int(start) {
		return 0, fmt.Errorf("%w: card %d from start address %d exceeds bus address range", ErrInvalidCardOffset, card, start)
	}
	return start + byte(card-1), nil
}
