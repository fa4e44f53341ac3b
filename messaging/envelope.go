// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

// Package messaging composes, sends, receives, orders, and persists
// messages, grounded on the teacher's core/message envelope shape and
// core/handshake flow, generalized from A2A agent RPC messages to
// spec.md §3's message envelope (content hash, chain sequence, routing
// path, TTL).
package messaging

import (
	"crypto/sha256"
	"fmt"

	"github.com/google/uuid"

	"github.com/chikuno/dchat/errs"
)

// MaxPayloadSize bounds a message's plaintext size; Send rejects
// anything larger with errs.PayloadTooLarge. spec.md leaves the exact
// limit to the implementation; 64KiB comfortably covers chat-sized
// payloads while keeping onion cells and offline-queue entries small.
const MaxPayloadSize = 64 * 1024

// Route names a delivery path an envelope can take, per spec.md
// §4.4's route-selection step.
type Route int

const (
	RouteDirect Route = iota
	RouteOnion
	RouteDHTGossip
)

func (r Route) String() string {
	switch r {
	case RouteDirect:
		return "direct"
	case RouteOnion:
		return "onion"
	case RouteDHTGossip:
		return "dht_gossip"
	default:
		return "unknown"
	}
}

// Envelope is spec.md §3's wire message shape.
type Envelope struct {
	MessageID      string
	SenderUserID   string
	Recipient      string
	ContentHash    [32]byte
	PayloadSize    int
	ChainSequence  uint64
	TimestampChain int64
	Ciphertext     []byte
	RoutingPath    []string
	TTLSeconds     int
}

// ComputeContentHash returns H(plaintext) per spec.md §3's envelope
// invariant content_hash = H(plaintext).
func ComputeContentHash(plaintext []byte) [32]byte {
	return sha256.Sum256(plaintext)
}

// NewMessageID mints a fresh local message_id (UUIDv4, per SPEC_FULL.md
// §3's user_id convention applied to message identifiers too).
func NewMessageID() string {
	return uuid.NewString()
}

// ValidateSize enforces spec.md §4.4 Send step 1's payload-size check.
func ValidateSize(plaintext []byte) error {
	if len(plaintext) > MaxPayloadSize {
		return errs.New(errs.PayloadTooLarge, fmt.Sprintf("messaging: payload size %d exceeds max %d", len(plaintext), MaxPayloadSize))
	}
	return nil
}
