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

package peer

import (
	"sync"

	"go.uber.org/ratelimit"
)

// MinRatePerSecond/MaxRatePerSecond bound the linear trust-to-rate
// mapping from spec.md §4.7: a trust score of 0 gets MinRatePerSecond,
// a trust score of 100 gets MaxRatePerSecond.
const (
	MinRatePerSecond = 5
	MaxRatePerSecond = 200
)

// rateForTrust linearly interpolates between MinRatePerSecond and
// MaxRatePerSecond by trust score (clamped to [0, 100]).
func rateForTrust(trustScore int) int {
	if trustScore < 0 {
		trustScore = 0
	}
	if trustScore > 100 {
		trustScore = 100
	}
	span := MaxRatePerSecond - MinRatePerSecond
	return MinRatePerSecond + (span*trustScore)/100
}

// Limiter is a per-peer token-bucket rate limiter whose rate scales
// linearly with the peer's trust score, built on go.uber.org/ratelimit
// the way the teacher's transport layer has no analogue for (the
// teacher trusts every agent equally); dchat instead throttles
// low-trust peers harder.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]ratelimit.Limiter
	trust    map[string]int
}

// NewLimiter constructs an empty per-peer rate limiter set.
func NewLimiter() *Limiter {
	return &Limiter{
		limiters: make(map[string]ratelimit.Limiter),
		trust:    make(map[string]int),
	}
}

// SetTrust updates peerID's trust score, rebuilding its token bucket
// at the new scaled rate. Existing in-flight Take calls are unaffected.
func (l *Limiter) SetTrust(peerID string, trustScore int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trust[peerID] = trustScore
	l.limiters[peerID] = ratelimit.New(rateForTrust(trustScore))
}

// Take blocks until peerID's bucket has capacity for one more message,
// creating a bucket at the default (zero-trust) rate if none exists
// yet.
func (l *Limiter) Take(peerID string) {
	l.mu.Lock()
	lim, ok := l.limiters[peerID]
	if !ok {
		lim = ratelimit.New(rateForTrust(0))
		l.limiters[peerID] = lim
		l.trust[peerID] = 0
	}
	l.mu.Unlock()

	lim.Take()
}

// RateFor reports the current scaled rate (messages/sec) for peerID.
func (l *Limiter) RateFor(peerID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	trust, ok := l.trust[peerID]
	if !ok {
		return rateForTrust(0)
	}
	return rateForTrust(trust)
}
