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

package messaging

import (
	"context"
	"math/rand"
	"time"

	"github.com/chikuno/dchat/pkg/storage"
)

// OfflineBackoffBase/Cap/Jitter implement spec.md §4.4's offline-queue
// retry policy: exponential backoff, base 1s, cap 5 minutes, jitter
// +/-20%, grounded on the same doubling-with-cap shape used by
// chain/ethereum's retryWithBackoff and peer's nextBackoff.
const (
	OfflineBackoffBase = 1 * time.Second
	OfflineBackoffCap  = 5 * time.Minute
)

// nextOfflineBackoff doubles previous (starting at OfflineBackoffBase),
// caps at OfflineBackoffCap, and applies +/-20% jitter.
func nextOfflineBackoff(previous time.Duration) time.Duration {
	next := previous * 2
	if next < OfflineBackoffBase {
		next = OfflineBackoffBase
	}
	if next > OfflineBackoffCap {
		next = OfflineBackoffCap
	}
	jitter := time.Duration(rand.Int63n(int64(next) / 5))
	if rand.Intn(2) == 0 {
		return next + jitter
	}
	return next - jitter
}

// OfflineQueue durably persists outgoing envelopes the Peer Fabric
// couldn't reach immediately, retrying with exponential backoff until
// TTL expiry, per spec.md §4.4's offline-queue clause.
type OfflineQueue struct {
	store storage.OfflineQueueStore
	seq   uint64
}

// NewOfflineQueue wraps a storage.OfflineQueueStore.
func NewOfflineQueue(store storage.OfflineQueueStore) *OfflineQueue {
	return &OfflineQueue{store: store}
}

// Enqueue persists envelope for retry, expiring at now+ttl.
func (q *OfflineQueue) Enqueue(ctx context.Context, messageID string, envelope []byte, ttl time.Duration, now time.Time) error {
	q.seq++
	entry := &storage.OfflineEntry{
		LocalSeq:   q.seq,
		MessageID:  messageID,
		Envelope:   envelope,
		Attempts:   0,
		NextRetry:  now,
		EnqueuedAt: now,
		ExpiresAt:  now.Add(ttl),
	}
	return q.store.Enqueue(ctx, entry)
}

// DueSender delivers one due offline entry; Drain calls it per entry
// that is due and not yet expired.
type DueSender func(ctx context.Context, entry *storage.OfflineEntry) error

// Drain first reaps entries whose TTL has expired (ListDue never
// surfaces these, so Drain must ask for them separately), then attempts
// every due entry (up to limit) via send. A successful send dequeues
// the entry; a failure reschedules it with the next backoff step.
func (q *OfflineQueue) Drain(ctx context.Context, now time.Time, limit int, send DueSender) error {
	expired, err := q.store.ListExpired(ctx, now, limit)
	if err != nil {
		return err
	}
	for _, entry := range expired {
		if err := q.store.Dequeue(ctx, entry.LocalSeq); err != nil {
			return err
		}
	}

	due, err := q.store.ListDue(ctx, now, limit)
	if err != nil {
		return err
	}
	for _, entry := range due {
		if err := send(ctx, entry); err != nil {
			previous := time.Duration(0)
			if entry.Attempts > 0 {
				previous = OfflineBackoffBase
				for i := 1; i < entry.Attempts && previous < OfflineBackoffCap; i++ {
					previous *= 2
				}
			}
			backoff := nextOfflineBackoff(previous)
			if uerr := q.store.UpdateRetry(ctx, entry.LocalSeq, entry.Attempts+1, now.Add(backoff)); uerr != nil {
				return uerr
			}
			continue
		}

		if err := q.store.Dequeue(ctx, entry.LocalSeq); err != nil {
			return err
		}
	}
	return nil
}
