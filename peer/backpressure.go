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
	"fmt"
	"sync"

	"github.com/chikuno/dchat/errs"
)

// DefaultQueueBound caps how many envelopes queue locally per peer
// before Backpressure is signaled, per spec.md §4.7.
const DefaultQueueBound = 256

// Queue is a bounded per-peer outbound envelope queue. Enqueue beyond
// the bound returns errs.Backpressure so the Messaging Engine can
// react (e.g. reroute via onion/DHT, or surface to the sender).
type Queue struct {
	mu     sync.Mutex
	bound  int
	queues map[string][][]byte
}

// NewQueue constructs a Queue bounded at bound (DefaultQueueBound if <= 0).
func NewQueue(bound int) *Queue {
	if bound <= 0 {
		bound = DefaultQueueBound
	}
	return &Queue{bound: bound, queues: make(map[string][][]byte)}
}

// Enqueue appends envelope to peerID's queue, returning
// errs.Backpressure if the peer's queue is already at its bound.
func (q *Queue) Enqueue(peerID string, envelope []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.queues[peerID]) >= q.bound {
		return errs.New(errs.Backpressure, fmt.Sprintf("peer: outbound queue for %s is full (%d envelopes)", peerID, q.bound))
	}
	q.queues[peerID] = append(q.queues[peerID], envelope)
	return nil
}

// Dequeue pops the oldest queued envelope for peerID, if any.
func (q *Queue) Dequeue(peerID string) ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.queues[peerID]
	if len(items) == 0 {
		return nil, false
	}
	env := items[0]
	q.queues[peerID] = items[1:]
	return env, true
}

// Len reports how many envelopes are currently queued for peerID.
func (q *Queue) Len(peerID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues[peerID])
}
