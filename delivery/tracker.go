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

package delivery

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/chikuno/dchat/pkg/storage"
)

// FinalizedHeightSource reports the chain gateway's latest finalized
// height, the quantity Verify checks a proof's block_height against.
type FinalizedHeightSource interface {
	LatestFinalizedHeight(ctx context.Context) (uint64, error)
}

// RelayKeyResolver resolves a relay peer's published Ed25519 key.
type RelayKeyResolver interface {
	RelayPublicKey(ctx context.Context, relayPeerID string) (ed25519.PublicKey, error)
}

// RewardHook is invoked once a proof transitions a message to
// Delivered or Read, giving the caller a chance to credit the relay
// (e.g. a StakeOp/Transfer chain transaction); failures here do not
// roll back the delivery-state transition itself.
type RewardHook func(ctx context.Context, proof *storage.DeliveryProof)

// DefaultTimeout is spec.md §6's delivery_timeout_seconds: a message
// stuck Pending past this is moved to Failed.
const DefaultTimeout = 1800 * time.Second

// Tracker drives the Pending->Delivered->Read->Failed state machine
// against a storage.DeliveryProofStore.
type Tracker struct {
	store   storage.DeliveryProofStore
	heights FinalizedHeightSource
	relays  RelayKeyResolver
	onDeliveredOrRead RewardHook
}

// NewTracker constructs a Tracker. reward may be nil to skip reward
// hooking.
func NewTracker(store storage.DeliveryProofStore, heights FinalizedHeightSource, relays RelayKeyResolver, reward RewardHook) *Tracker {
	return &Tracker{store: store, heights: heights, relays: relays, onDeliveredOrRead: reward}
}

// Submit verifies an incoming proof and, if valid, persists it as the
// message's current delivery state, firing the reward hook on a
// Delivered or Read transition.
func (t *Tracker) Submit(ctx context.Context, proof *storage.DeliveryProof) error {
	relayPub, err := t.relays.RelayPublicKey(ctx, proof.RelayPeerID)
	if err != nil {
		return fmt.Errorf("delivery: resolve relay key: %w", err)
	}
	latest, err := t.heights.LatestFinalizedHeight(ctx)
	if err != nil {
		return fmt.Errorf("delivery: fetch latest finalized height: %w", err)
	}

	var previous *Status
	if existing, err := t.store.Get(ctx, proof.MessageID); err == nil && existing != nil {
		if s, ok := ParseStatus(existing.Status); ok {
			previous = &s
		}
	}

	if err := Verify(proof, relayPub, latest, previous); err != nil {
		return err
	}

	if err := t.store.Upsert(ctx, proof); err != nil {
		return fmt.Errorf("delivery: persist proof: %w", err)
	}

	status, _ := ParseStatus(proof.Status)
	if (status == StatusDelivered || status == StatusRead) && t.onDeliveredOrRead != nil {
		t.onDeliveredOrRead(ctx, proof)
	}
	return nil
}

// CheckTimeout returns whether a message created at createdAt and
// still Pending should be moved to Failed.
func CheckTimeout(createdAt time.Time, now time.Time) bool {
	return now.Sub(createdAt) >= DefaultTimeout
}

// MarkTimedOut builds the Failed proof a tracker (or caller holding
// the relay's own signing key) submits once CheckTimeout fires.
func MarkTimedOut(relayKey ed25519.PrivateKey, messageID, recipientID, relayPeerID string, blockHeight uint64, now time.Time) *storage.DeliveryProof {
	return &storage.DeliveryProof{
		MessageID:   messageID,
		RecipientID: recipientID,
		RelayPeerID: relayPeerID,
		Status:      StatusFailed.String(),
		Signature:   Sign(relayKey, messageID, StatusFailed, blockHeight),
		BlockHeight: blockHeight,
		CreatedAt:   now,
	}
}
