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

// Package dht implements the Kademlia-style routing table and iterative
// node lookup used to locate peers by XOR distance, with eclipse-attack
// resistance via ASN and /24 (or /48) diversity enforcement.
package dht

import (
	"encoding/hex"
	"time"
)

const (
	NumBuckets           = 256
	DefaultK             = 20
	DefaultAlpha         = 3
	DefaultStaleAfter    = 10 * time.Minute
	DefaultLookupTimeout = 5 * time.Second
	DefaultPingTimeout   = 2 * time.Second
)

// NodeID is a 256-bit identifier; distance between two IDs is their XOR.
type NodeID [32]byte

func (id NodeID) String() string { return hex.EncodeToString(id[:]) }

// IsZero reports whether id is the zero value (used to detect "self").
func (id NodeID) IsZero() bool {
	for _, b := range id {
		if b != 0 {
			return false
		}
	}
	return true
}

// Record is a DHT node record: a node_id bound to a peer_id and network
// address, plus liveness bookkeeping used for bucket eviction and
// diversity scoring.
type Record struct {
	NodeID   NodeID
	PeerID   string
	Address  string // host:port, or bare host
	Port     uint16
	LastSeen time.Time
	Uptime   uint64 // responder-reported uptime counter, for reputation
}
