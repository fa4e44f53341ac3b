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

package identity

import (
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/hkdf"
)

// derive expands seed into a 32-byte Ed25519 key-generation seed using
// HKDF-SHA256, binding the derivation to label and every level of p so
// distinct paths never collide. Like crypto/session's key derivation
// (see DeriveSeed) it uses HKDF-SHA256, here with no salt and the path
// carried in the info string, rather than a BIP32-style elliptic-curve
// tweak, since Ed25519 has no public child-key derivation.
func derive(seed []byte, label string, p Path) []byte {
	info := make([]byte, 0, len(label)+20)
	info = append(info, label...)
	info = appendUint32(info, p.Account)
	info = appendUint32(info, p.Device)
	info = appendUint32(info, p.Purpose)
	info = appendUint32(info, p.Chain)
	info = appendUint32(info, p.Index)

	out := make([]byte, 32)
	r := hkdf.New(sha256.New, seed, nil, info)
	if _, err := io.ReadFull(r, out); err != nil {
		panic("identity: hkdf expand failed: " + err.Error())
	}
	return out
}

func appendUint32(b []byte, v uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return append(b, buf[:]...)
}
