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

package bridge

import (
	"crypto/ed25519"
	"fmt"
)

// ValidatorSet is the abstract set of M signers the bridge treats
// finalized receipts as needing a quorum from; it verifies quorum
// signatures but does not run consensus itself (spec.md §4.6).
type ValidatorSet struct {
	members []ed25519.PublicKey
}

// NewValidatorSet constructs a set from M validator public keys.
func NewValidatorSet(members []ed25519.PublicKey) *ValidatorSet {
	return &ValidatorSet{members: append([]ed25519.PublicKey(nil), members...)}
}

// Quorum returns floor(M*2/3)+1.
func (v *ValidatorSet) Quorum() int {
	m := len(v.members)
	return (m*2)/3 + 1
}

// Size returns M, the validator set size.
func (v *ValidatorSet) Size() int { return len(v.members) }

// Signature pairs a validator's identity with its signature over a
// receipt's canonical bytes.
type Signature struct {
	Validator ed25519.PublicKey
	Sig       []byte
}

// VerifyQuorum checks that at least Quorum() distinct, valid validator
// signatures cover message.
func (v *ValidatorSet) VerifyQuorum(message []byte, sigs []Signature) error {
	known := make(map[string]bool, len(v.members))
	for _, m := range v.members {
		known[string(m)] = true
	}

	seen := map[string]bool{}
	valid := 0
	for _, s := range sigs {
		key := string(s.Validator)
		if !known[key] || seen[key] {
			continue
		}
		if !ed25519.Verify(s.Validator, message, s.Sig) {
			continue
		}
		seen[key] = true
		valid++
	}

	if valid < v.Quorum() {
		return fmt.Errorf("bridge: quorum not met: %d of required %d (M=%d)", valid, v.Quorum(), v.Size())
	}
	return nil
}
