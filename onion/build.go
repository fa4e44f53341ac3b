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

package onion

import (
	"crypto/ed25519"
	"fmt"

	"github.com/chikuno/dchat/crypto/keys"
)

// BuildOnion layer-encrypts payload for delivery through hops in order:
// each layer is sealed to one hop's identity key (crypto/keys'
// EncryptWithEd25519Peer, the same Ed25519-to-X25519 ECIES the teacher
// uses for bootstrap handshake envelopes), carrying the next hop's
// fingerprint so that hop learns only where to forward, never the final
// destination. Returns the single cell to hand to hops[0].
func BuildOnion(hops []Hop, payload []byte) ([]byte, error) {
	if len(hops) == 0 {
		return nil, fmt.Errorf("onion: at least one hop required")
	}

	inner := layerPlaintext{typ: cellData, payload: payload}
	var sealed []byte

	for i := len(hops) - 1; i >= 0; i-- {
		encoded := encodeLayer(inner)
		ct, err := sealForHop(hops[i], encoded)
		if err != nil {
			return nil, fmt.Errorf("onion: seal layer for hop %d: %w", i, err)
		}
		sealed = ct
		if i > 0 {
			inner = layerPlaintext{nextHop: hops[i].Fingerprint, typ: cellData, payload: sealed}
		}
	}

	return padToCell(sealed)
}

// sealForHop seals one encoded layer to a hop's identity key.
func sealForHop(h Hop, encoded []byte) ([]byte, error) {
	return keys.EncryptWithEd25519Peer(h.PublicKey, encoded)
}

// PeelLayer opens one hop's layer from a received cell: priv is the
// hop's own identity private key. If the returned layer's NextHop is
// non-empty, Forward is the next cell to send that hop; otherwise
// FinalPayload holds the delivered application payload.
type PeelResult struct {
	Type         byte
	NextHop      []byte
	Forward      []byte
	FinalPayload []byte
}

func PeelLayer(priv ed25519.PrivateKey, cell []byte) (PeelResult, error) {
	ct, err := unpadCell(cell)
	if err != nil {
		return PeelResult{}, err
	}
	plaintext, err := keys.DecryptWithEd25519Peer(priv, ct)
	if err != nil {
		return PeelResult{}, fmt.Errorf("onion: open layer: %w", err)
	}
	layer, err := decodeLayer(plaintext)
	if err != nil {
		return PeelResult{}, err
	}

	if len(layer.nextHop) == 0 {
		return PeelResult{Type: byte(layer.typ), FinalPayload: layer.payload}, nil
	}

	forward, err := padToCell(layer.payload)
	if err != nil {
		return PeelResult{}, fmt.Errorf("onion: re-pad for forwarding: %w", err)
	}
	return PeelResult{Type: byte(layer.typ), NextHop: layer.nextHop, Forward: forward}, nil
}
