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

package crypto

import "fmt"

// SuiteID is a closed enum of the key-agreement/AEAD suites a session can
// negotiate. New algorithms are added as new suite IDs and a dispatch-table
// entry, not as a new interface implementation — this keeps call sites
// switching on a value instead of growing a type hierarchy.
type SuiteID uint8

const (
	// SuiteX25519ChaCha20 is the baseline suite: X25519 ECDH, HKDF-SHA256,
	// ChaCha20-Poly1305 AEAD.
	SuiteX25519ChaCha20 SuiteID = iota + 1

	// SuiteHybridHPKE layers an HPKE KEM-combiner over X25519 so the same
	// session-key derivation can later absorb a lattice KEM share without
	// changing the wire format or the session layer above it.
	SuiteHybridHPKE
)

func (s SuiteID) String() string {
	switch s {
	case SuiteX25519ChaCha20:
		return "x25519-chacha20poly1305"
	case SuiteHybridHPKE:
		return "hybrid-hpke-x25519"
	default:
		return fmt.Sprintf("suite(%d)", uint8(s))
	}
}

// SuiteDescriptor names the algorithm identifiers a suite binds together,
// used for transcript binding and diagnostics.
type SuiteDescriptor struct {
	ID        SuiteID
	KEM       string
	KDF       string
	AEAD      string
	Signature string
}

// suiteTable is the dispatch table backing SuiteByID. It is the single
// place new suites are registered.
var suiteTable = map[SuiteID]SuiteDescriptor{
	SuiteX25519ChaCha20: {
		ID:        SuiteX25519ChaCha20,
		KEM:       "X25519",
		KDF:       "HKDF-SHA256",
		AEAD:      "ChaCha20-Poly1305",
		Signature: "Ed25519",
	},
	SuiteHybridHPKE: {
		ID:        SuiteHybridHPKE,
		KEM:       "HPKE(X25519-HKDF-SHA256)",
		KDF:       "HKDF-SHA256",
		AEAD:      "ChaCha20-Poly1305",
		Signature: "Ed25519",
	},
}

// SuiteByID looks up a suite's algorithm bindings. It returns false for an
// unregistered or zero SuiteID.
func SuiteByID(id SuiteID) (SuiteDescriptor, bool) {
	d, ok := suiteTable[id]
	return d, ok
}

// DefaultSuite is negotiated when a peer's handshake offer does not pin a
// specific suite.
const DefaultSuite = SuiteX25519ChaCha20
