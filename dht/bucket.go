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
	"context"
	"sync"
	"time"
)

// Pinger probes whether a record is still reachable.
type Pinger interface {
	Ping(ctx context.Context, r Record) bool
}

// kbucket holds up to k records ordered oldest-first; the tail is the
// most recently seen entry. Each bucket carries its own lock so lookups
// against different buckets never contend.
type kbucket struct {
	mu      sync.Mutex
	k       int
	records []Record
}

func newBucket(k int) *kbucket {
	return &kbucket{k: k}
}

func (b *kbucket) indexOf(id NodeID) int {
	for i, r := range b.records {
		if r.NodeID == id {
			return i
		}
	}
	return -1
}

// insert adds or refreshes rec. If the bucket is full and rec is new, the
// least-recently-seen entry is pinged: if it answers, it is promoted to
// most-recent and rec is dropped; otherwise it is evicted and rec takes
// its place.
func (b *kbucket) insert(ctx context.Context, rec Record, pinger Pinger) {
	b.mu.Lock()
	if i := b.indexOf(rec.NodeID); i >= 0 {
		b.records = append(b.records[:i], b.records[i+1:]...)
		b.records = append(b.records, rec)
		b.mu.Unlock()
		return
	}
	if len(b.records) < b.k {
		b.records = append(b.records, rec)
		b.mu.Unlock()
		return
	}
	oldest := b.records[0]
	b.mu.Unlock()

	alive := pinger != nil && pinger.Ping(ctx, oldest)

	b.mu.Lock()
	defer b.mu.Unlock()
	if i := b.indexOf(oldest.NodeID); i >= 0 {
		if alive {
			oldest.LastSeen = time.Now()
			b.records = append(b.records[:i], b.records[i+1:]...)
			b.records = append(b.records, oldest)
			return
		}
		b.records = append(b.records[:i], b.records[i+1:]...)
	}
	if len(b.records) < b.k {
		b.records = append(b.records, rec)
	}
}

func (b *kbucket) all() []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Record, len(b.records))
	copy(out, b.records)
	return out
}

// prune removes records whose LastSeen exceeds staleAfter, returning the
// number removed.
func (b *kbucket) prune(staleAfter time.Duration) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	cutoff := time.Now().Add(-staleAfter)
	kept := b.records[:0]
	removed := 0
	for _, r := range b.records {
		if r.LastSeen.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	b.records = kept
	return removed
}
