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

import (
	"net"
	"strings"
	"sync"
)

// ASNLookup resolves the autonomous system number for an address. Kept
// pluggable so a real WHOIS/RIR feed can be wired in later without
// widening this package's dependency surface; the default is a static
// table with a prefix-derived fallback.
type ASNLookup interface {
	ASN(address string) string
}

// StaticASNLookup answers from a fixed host->ASN table, falling back to a
// pseudo-ASN derived from the /24 (or /48) prefix so unknown hosts still
// participate in diversity scoring instead of collapsing to one bucket.
type StaticASNLookup struct {
	mu    sync.RWMutex
	table map[string]string
}

// NewStaticASNLookup builds a StaticASNLookup from an optional host->ASN
// table (nil starts empty; all addresses fall back to prefix derivation).
func NewStaticASNLookup(table map[string]string) *StaticASNLookup {
	t := make(map[string]string, len(table))
	for k, v := range table {
		t[k] = v
	}
	return &StaticASNLookup{table: t}
}

// Set records a host->ASN mapping.
func (s *StaticASNLookup) Set(host, asn string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table[host] = asn
}

func (s *StaticASNLookup) ASN(address string) string {
	host := hostOnly(address)
	s.mu.RLock()
	if asn, ok := s.table[host]; ok {
		s.mu.RUnlock()
		return asn
	}
	s.mu.RUnlock()

	if prefix, ok := subnetPrefix(host); ok {
		return "unknown-" + prefix
	}
	return "unknown-" + host
}

func hostOnly(address string) string {
	if host, _, err := net.SplitHostPort(address); err == nil {
		return host
	}
	return address
}

// subnetPrefix returns the /24 prefix for IPv4 or /48 prefix for IPv6.
func subnetPrefix(host string) (string, bool) {
	ip := net.ParseIP(host)
	if ip == nil {
		return "", false
	}
	if v4 := ip.To4(); v4 != nil {
		mask := net.CIDRMask(24, 32)
		return v4.Mask(mask).String(), true
	}
	mask := net.CIDRMask(48, 128)
	masked := ip.Mask(mask)
	return strings.ToLower(masked.String()), true
}
