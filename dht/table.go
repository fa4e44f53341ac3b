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
	"sort"
	"time"
)

// Table is the node's routing table: 256 k-buckets indexed by the
// position of the highest differing bit from self.
type Table struct {
	self    NodeID
	k       int
	buckets [NumBuckets]*kbucket
	pinger  Pinger
	asn     ASNLookup
}

// NewTable builds an empty routing table for self, sized to k entries per
// bucket. pinger is used for liveness checks on bucket eviction; asn
// resolves diversity metadata for lookups (a StaticASNLookup if nil).
func NewTable(self NodeID, k int, pinger Pinger, asn ASNLookup) *Table {
	if k <= 0 {
		k = DefaultK
	}
	if asn == nil {
		asn = NewStaticASNLookup(nil)
	}
	t := &Table{self: self, k: k, pinger: pinger, asn: asn}
	for i := range t.buckets {
		t.buckets[i] = newBucket(k)
	}
	return t
}

func (t *Table) bucketFor(id NodeID) *kbucket {
	idx := bucketIndex(Distance(t.self, id))
	if idx < 0 {
		return nil
	}
	return t.buckets[idx]
}

// Insert places rec into its bucket, following the eviction rule
// documented on kbucket.insert. Inserting self is a no-op.
func (t *Table) Insert(ctx context.Context, rec Record) {
	if rec.NodeID == t.self {
		return
	}
	if b := t.bucketFor(rec.NodeID); b != nil {
		if rec.LastSeen.IsZero() {
			rec.LastSeen = time.Now()
		}
		b.insert(ctx, rec, t.pinger)
	}
}

// Prune removes records across all buckets whose LastSeen exceeds
// staleAfter (default T_stale = 10 minutes) and returns the count removed.
func (t *Table) Prune(staleAfter time.Duration) int {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	removed := 0
	for _, b := range t.buckets {
		removed += b.prune(staleAfter)
	}
	return removed
}

// Closest returns up to count records ordered by increasing XOR distance
// to target, without diversity filtering (used to answer FIND_NODE RPCs
// and to seed an iterative lookup's local candidate set).
func (t *Table) Closest(target NodeID, count int) []Record {
	idx := bucketIndex(Distance(t.self, target))
	if idx < 0 {
		idx = 0
	}

	var candidates []Record
	for offset := 0; offset < NumBuckets && len(candidates) < count*4; offset++ {
		for _, i := range []int{idx + offset, idx - offset} {
			if offset == 0 && i != idx {
				continue
			}
			if i < 0 || i >= NumBuckets {
				continue
			}
			candidates = append(candidates, t.buckets[i].all()...)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		di := Distance(candidates[i].NodeID, target)
		dj := Distance(candidates[j].NodeID, target)
		return Less(di, dj)
	})
	if len(candidates) > count {
		candidates = candidates[:count]
	}
	return candidates
}

// Self returns the table's own node id.
func (t *Table) Self() NodeID { return t.self }

// Size returns the total number of records held across all buckets.
func (t *Table) Size() int {
	n := 0
	for _, b := range t.buckets {
		n += len(b.all())
	}
	return n
}

// K returns the configured bucket size.
func (t *Table) K() int { return t.k }
