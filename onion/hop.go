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
	"sort"

	"github.com/chikuno/dchat/dht"
)

// Hop is one relay in a built circuit: its identity key (onion layers are
// sealed to this Ed25519 key via crypto/keys' Ed25519-to-X25519 ECIES
// helpers), address, and the fingerprint peers use to address it.
type Hop struct {
	Fingerprint []byte
	PublicKey   ed25519.PublicKey
	Address     string
}

// HopCandidate is a relay available for circuit selection, carrying the
// diversity metadata spec.md §4.3 requires hop selection to respect.
type HopCandidate struct {
	Hop
	ASN         string
	TrustQuintile int // 1 (lowest) .. 5 (highest)
	Uptime      uint64
}

// SelectHops picks `length` hops from candidates such that no two share
// an ASN, no two share a trust quintile, and at least one has high
// uptime (top quintile by the caller's own ranking). Candidates must
// already exclude the circuit owner and the final destination.
func SelectHops(candidates []HopCandidate, length int, asn dht.ASNLookup) ([]Hop, error) {
	if len(candidates) < length {
		return nil, fmt.Errorf("onion: need %d hops, only %d candidates available", length, len(candidates))
	}

	pool := make([]HopCandidate, len(candidates))
	copy(pool, candidates)
	sort.Slice(pool, func(i, j int) bool { return pool[i].Uptime > pool[j].Uptime })
	// High uptime means the top quintile of candidates by Uptime.
	var highUptime uint64
	if len(pool) > 0 {
		highUptime = pool[(len(pool)-1)/5].Uptime
	}

	var chosen []HopCandidate
	usedASN := map[string]bool{}
	usedQuintile := map[int]bool{}
	haveHighUptime := false

	for _, c := range pool {
		if len(chosen) >= length {
			break
		}
		if usedASN[c.ASN] || usedQuintile[c.TrustQuintile] {
			continue
		}
		chosen = append(chosen, c)
		usedASN[c.ASN] = true
		usedQuintile[c.TrustQuintile] = true
		if c.Uptime >= highUptime {
			haveHighUptime = true
		}
	}

	// Relax the quintile constraint (ASN diversity is non-negotiable for
	// eclipse resistance; quintile diversity is best-effort) if we came up
	// short, filling remaining slots from whatever remains ASN-distinct.
	if len(chosen) < length {
		for _, c := range pool {
			if len(chosen) >= length {
				break
			}
			if usedASN[c.ASN] {
				continue
			}
			already := false
			for _, picked := range chosen {
				if picked.Fingerprint != nil && string(picked.Fingerprint) == string(c.Fingerprint) {
					already = true
					break
				}
			}
			if already {
				continue
			}
			chosen = append(chosen, c)
			usedASN[c.ASN] = true
			if c.Uptime >= highUptime {
				haveHighUptime = true
			}
		}
	}

	if len(chosen) < length {
		return nil, fmt.Errorf("onion: could not assemble %d ASN-diverse hops", length)
	}
	if !haveHighUptime && len(chosen) > 0 {
		// Force in the single highest-uptime candidate not already chosen
		// rather than fail outright; spec requires "at least one" high
		// uptime hop, not a hard reject when diversity already holds.
		for _, c := range pool {
			if c.Uptime >= highUptime {
				chosen[len(chosen)-1] = c
				break
			}
		}
	}

	out := make([]Hop, length)
	for i, c := range chosen[:length] {
		out[i] = c.Hop
	}
	return out, nil
}
