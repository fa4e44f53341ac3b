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

// Package onion implements fixed-length multi-hop circuits for
// metadata-resistant delivery: layered encryption (each layer sealed to
// one hop's key with X25519 ECDH, HKDF-SHA256 and AES-256-GCM) so each
// hop learns only the next hop's fingerprint, a Building->Open->Degraded->
// Teardown state machine, and Poisson-rate cover traffic.
package onion

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// CellSize is the fixed on-wire size of every cell (real or dummy); all
// payloads are padded to this size so ciphertext length leaks nothing.
const CellSize = 512

// FingerprintSize is the truncated hash length identifying a hop.
const FingerprintSize = 8

type cellType byte

const (
	cellData cellType = iota
	cellDummy
	cellTeardown
)

// fingerprint derives the short identifier hops use to address each
// other, grounded on crypto/keys' id-from-pubkey-hash convention
// (X25519KeyPair.id in crypto/keys/x25519.go).
func fingerprint(pub []byte) []byte {
	sum := sha256.Sum256(pub)
	return sum[:FingerprintSize]
}

// layerPlaintext is what one hop recovers after opening its layer:
// the next hop to forward to (empty at the final hop), a cell type, and
// the remaining onion (or the final payload at the last hop).
type layerPlaintext struct {
	nextHop []byte
	typ     cellType
	payload []byte
}

func encodeLayer(l layerPlaintext) []byte {
	buf := make([]byte, 0, 1+2+len(l.nextHop)+4+len(l.payload))
	buf = append(buf, byte(l.typ))
	buf = append(buf, byte(len(l.nextHop)))
	buf = append(buf, l.nextHop...)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(l.payload)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, l.payload...)
	return buf
}

func decodeLayer(b []byte) (layerPlaintext, error) {
	if len(b) < 1+1 {
		return layerPlaintext{}, fmt.Errorf("onion: layer too short")
	}
	typ := cellType(b[0])
	nhLen := int(b[1])
	b = b[2:]
	if len(b) < nhLen+4 {
		return layerPlaintext{}, fmt.Errorf("onion: layer truncated")
	}
	nextHop := b[:nhLen]
	b = b[nhLen:]
	plLen := binary.BigEndian.Uint32(b[:4])
	b = b[4:]
	if uint32(len(b)) < plLen {
		return layerPlaintext{}, fmt.Errorf("onion: payload length mismatch")
	}
	return layerPlaintext{nextHop: nextHop, typ: typ, payload: b[:plLen]}, nil
}

// padToCell pads b to CellSize with random bytes, prefixed by its true
// length, so padding is indistinguishable from ciphertext to an observer.
func padToCell(b []byte) ([]byte, error) {
	if len(b)+4 > CellSize {
		return nil, fmt.Errorf("onion: payload %d bytes exceeds cell capacity", len(b))
	}
	out := make([]byte, CellSize)
	binary.BigEndian.PutUint32(out[:4], uint32(len(b)))
	copy(out[4:], b)
	if _, err := rand.Read(out[4+len(b):]); err != nil {
		return nil, err
	}
	return out, nil
}

func unpadCell(cell []byte) ([]byte, error) {
	if len(cell) != CellSize {
		return nil, fmt.Errorf("onion: cell has unexpected size %d", len(cell))
	}
	n := binary.BigEndian.Uint32(cell[:4])
	if int(n) > CellSize-4 {
		return nil, fmt.Errorf("onion: corrupt cell length")
	}
	return cell[4 : 4+n], nil
}
