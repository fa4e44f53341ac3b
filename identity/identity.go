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

// Package identity implements the participant identity hierarchy: a
// master seed derives per-account, per-device, per-purpose, per-chain
// keys, device attestation is a JWT signed by the account's root key,
// and burner identities are ordinary identities with a TTL.
package identity

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chikuno/dchat/pkg/storage"
)

// Path names one node in the derivation tree:
// master -> account -> device -> purpose -> chain -> index.
type Path struct {
	Account uint32
	Device  uint32
	Purpose uint32
	Chain   uint32
	Index   uint32
}

// Purpose constants name the fixed slots in the derivation tree.
const (
	PurposeMessaging uint32 = 0
	PurposeChainSign uint32 = 1
	PurposeDeviceAuth uint32 = 2
)

// Root is a participant's master identity: the seed all account/device
// keys are derived from, and the long-lived Ed25519 keypair used to sign
// device attestations.
type Root struct {
	seed       []byte
	rootPriv   ed25519.PrivateKey
	rootPub    ed25519.PublicKey
	userID     string
}

// NewRoot creates a fresh master identity from cryptographically random
// seed material and assigns it a uuid-derived user_id, independent of
// key material so a key rotation never changes the user_id.
func NewRoot(seed []byte) (*Root, error) {
	if len(seed) < 32 {
		return nil, fmt.Errorf("identity: seed must be at least 32 bytes, got %d", len(seed))
	}

	rootSeed := derive(seed, "dchat/identity/root", Path{})
	priv := ed25519.NewKeyFromSeed(rootSeed)

	return &Root{
		seed:     append([]byte(nil), seed...),
		rootPriv: priv,
		rootPub:  priv.Public().(ed25519.PublicKey),
		userID:   uuid.NewString(),
	}, nil
}

// UserID returns the participant's stable identifier.
func (r *Root) UserID() string { return r.userID }

// RootPublicKey returns the long-lived key other participants pin trust
// to; device keys are attested by, not replacements for, this key.
func (r *Root) RootPublicKey() ed25519.PublicKey { return r.rootPub }

// DeriveDeviceKey derives the Ed25519 keypair for one (device, purpose,
// chain, index) leaf. The same Path always yields the same key from the
// same Root, so devices can be re-derived after reinstall without
// additional state.
func (r *Root) DeriveDeviceKey(p Path) ed25519.PrivateKey {
	seed := derive(r.seed, "dchat/identity/device", p)
	return ed25519.NewKeyFromSeed(seed)
}

// ToStorageIdentity builds the persisted record for a derived device key.
func (r *Root) ToStorageIdentity(p Path, isBurner bool, ttl time.Duration) *storage.Identity {
	priv := r.DeriveDeviceKey(p)
	pub := priv.Public().(ed25519.PublicKey)

	now := time.Now()
	id := &storage.Identity{
		UserID:    r.userID,
		PublicKey: append([]byte(nil), pub...),
		KeyType:   "Ed25519",
		IsBurner:  isBurner,
		CreatedAt: now,
		SchemaVer: storage.SchemaVersion,
	}
	if isBurner {
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		id.ExpiresAt = now.Add(ttl)
	}
	return id
}

// NewBurner derives a new Root with no relation to r's master seed, for
// a disposable identity that is never linked back to the account.
// It still reports a fresh random user_id and TTL-bounded storage record.
func NewBurner(seed []byte) (*Root, error) {
	return NewRoot(seed)
}
