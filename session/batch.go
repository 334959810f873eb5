// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package session

import (
	"context"
	"fmt"

	"github.com/ffutop/relay8x/relay8x"
)

// Set switches relays on for every card in cards.
func (s *Session) Set(ctx context.Context, cards relay8x.CardIndex, relays relay8x.RelayIndex) ([]relay8x.Frame, error) {
	return s.apply(ctx, relay8x.CmdSet, cards, relays)
}

// Reset switches relays off for every card in cards.
func (s *Session) Reset(ctx context.Context, cards relay8x.CardIndex, relays relay8x.RelayIndex) ([]relay8x.Frame, error) {
	return s.apply(ctx, relay8x.CmdReset, cards, relays)
}

// Toggle flips relays for every card in cards.
func (s *Session) Toggle(ctx context.Context, cards relay8x.CardIndex, relays relay8x.RelayIndex) ([]relay8x.Frame, error) {
	return s.apply(ctx, relay8x.CmdToggle, cards, relays)
}

// apply sends one frame per card, in order, and stops at the first card that
// fails. The responses of the cards before it are returned with the
// *CardError. Nothing is sent unless every frame could be encoded.
func (s *Session) apply(ctx context.Context, kind relay8x.CommandKind, cards relay8x.CardIndex, relays relay8x.RelayIndex) ([]relay8x.Frame, error) {
	if s.state != Ready {
		return nil, fmt.Errorf("%w: session is %s", ErrNotReady, s.state)
	}
	if len(cards) == 0 || len(relays) == 0 {
		return nil, ErrEmptyIndex
	}

	reqs := make([]relay8x.Frame, len(cards))
	for i, card := range cards {
		req, err := relay8x.Encode(kind, s.start, card, relays)
		if err != nil {
			return nil, &CardError{Card: card, Err: err}
		}
		reqs[i] = req
	}

	resps := make([]relay8x.Frame, 0, len(reqs))
	for i, req := range reqs {
		resp, err := s.exchange(ctx, req)
		if err != nil {
			s.logger.Warn("card failed", "command", kind, "card", cards[i], "address", req.Address(), "err", err)
			return resps, &CardError{Card: cards[i], Address: req.Address(), Err: err}
		}
		resps = append(resps, resp)
	}
	return resps, nil
}

// exchange writes req and reads and validates exactly one response.
func (s *Session) exchange(ctx context.Context, req relay8x.Frame) (relay8x.Frame, error) {
	if err := s.send(ctx, req); err != nil {
		return relay8x.Frame{}, err
	}
	resp, err := s.receive()
	if err != nil {
		s.metrics.ResponseError("transport")
		return relay8x.Frame{}, err
	}
	if err := relay8x.Validate(req, resp, s.validateOpts...); err != nil {
		s.metrics.ResponseError(ruleLabel(err))
		return resp, err
	}
	return resp, nil
}
