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

package dht

import "math/bits"

// Distance returns the XOR distance between a and b.
func Distance(a, b NodeID) NodeID {
	var out NodeID
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// Less reports whether distance d1 is smaller than d2.
func Less(d1, d2 NodeID) bool {
	for i := range d1 {
		if d1[i] != d2[i] {
			return d1[i] < d2[i]
		}
	}
	return false
}

// bucketIndex returns the bucket holding a node at XOR distance d from
// self: the position (0 = least significant bit) of the highest set bit,
// i.e. distance in [2^i, 2^(i+1)). Returns -1 for zero distance (self).
func bucketIndex(d NodeID) int {
	for i, b := range d {
		if b != 0 {
			return (len(d)-1-i)*8 + bits.Len8(b) - 1
		}
	}
	return -1
}
