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

// enforceDiversity walks candidates (already sorted by distance) and
// keeps up to k of them, skipping any whose /24 (or /48) prefix already
// appears in the result — this is the eclipse-attack defense: an
// attacker controlling many node ids behind one subnet can occupy at
// most one slot. degraded reports whether fewer than ceil(k/2) distinct
// ASNs made it into the final set.
func enforceDiversity(candidates []Record, k int, asn ASNLookup) (result []Record, degraded bool) {
	if k <= 0 {
		k = DefaultK
	}
	seenPrefix := make(map[string]bool)
	seenASN := make(map[string]bool)

	for _, c := range candidates {
		if len(result) >= k {
			break
		}
		prefix, ok := subnetPrefix(hostOnly(c.Address))
		if ok && seenPrefix[prefix] {
			continue
		}
		if ok {
			seenPrefix[prefix] = true
		}
		result = append(result, c)
		seenASN[asn.ASN(c.Address)] = true
	}

	minDistinctASN := (k + 1) / 2
	degraded = len(seenASN) < minDistinctASN
	return result, degraded
}
