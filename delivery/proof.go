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

// Package delivery tracks a message's Pending->Delivered->Read lifecycle
// via signed relay proofs, verified the way the teacher's
// did/verification.go verifies resolved agent metadata against a
// trusted source — here an Ed25519 signature under the relay's
// published key instead of a DID document fetch.
package delivery

import (
	"crypto/ed25519"
	"encoding/binary"
	"fmt"

	"github.com/chikuno/dchat/errs"
	"github.com/chikuno/dchat/pkg/storage"
)

// Status mirrors storage.DeliveryProof's lifecycle states, ordered so
// regressions can be rejected by simple integer comparison.
type Status int

const (
	StatusPending Status = iota
	StatusDelivered
	StatusRead
	StatusFailed
)

// ParseStatus maps a storage.DeliveryProof.Status string to a Status.
func ParseStatus(s string) (Status, bool) {
	switch s {
	case "Pending":
		return StatusPending, true
	case "Delivered":
		return StatusDelivered, true
	case "Read":
		return StatusRead, true
	case "Failed":
		return StatusFailed, true
	default:
		return 0, false
	}
}

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusDelivered:
		return "Delivered"
	case StatusRead:
		return "Read"
	case StatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// signedMessage builds the bytes a relay signs: message_id || status ||
// block_height, per spec.md §3's delivery-proof definition.
func signedMessage(messageID string, status Status, blockHeight uint64) []byte {
	buf := make([]byte, 0, len(messageID)+1+8)
	buf = append(buf, messageID...)
	buf = append(buf, byte(status))
	var h [8]byte
	binary.BigEndian.PutUint64(h[:], blockHeight)
	buf = append(buf, h[:]...)
	return buf
}

// Sign produces a relay's signature over a delivery proof, called by
// the relay submitting the proof.
func Sign(relayKey ed25519.PrivateKey, messageID string, status Status, blockHeight uint64) []byte {
	return ed25519.Sign(relayKey, signedMessage(messageID, status, blockHeight))
}

// Verify checks a delivery proof per spec.md §4.5's invariant: the
// signature verifies under the relay's published key, block_height is
// no greater than the chain gateway's latest finalized height, and the
// proof's status is not a regression from the previously known status
// for message_id. previous may be nil if no prior proof exists.
func Verify(proof *storage.DeliveryProof, relayPub ed25519.PublicKey, latestFinalizedHeight uint64, previous *Status) error {
	status, ok := ParseStatus(proof.Status)
	if !ok {
		return errs.New(errs.AuthenticationFailed, fmt.Sprintf("delivery: unknown proof status %q", proof.Status))
	}

	if proof.BlockHeight > latestFinalizedHeight {
		return errs.New(errs.AuthenticationFailed, fmt.Sprintf("delivery: block_height %d not yet finalized (latest finalized %d)", proof.BlockHeight, latestFinalizedHeight))
	}

	if !ed25519.Verify(relayPub, signedMessage(proof.MessageID, status, proof.BlockHeight), proof.Signature) {
		return errs.New(errs.AuthenticationFailed, "delivery: proof signature does not verify under relay key")
	}

	if previous != nil && status < *previous && status != StatusFailed {
		return errs.New(errs.AuthenticationFailed, fmt.Sprintf("delivery: status regression %s after %s", status, *previous))
	}

	return nil
}
