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

package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/chikuno/dchat/pkg/storage"
)

// OfflineQueueStore implements storage.OfflineQueueStore.
type OfflineQueueStore struct {
	store *Store
}

func (o *OfflineQueueStore) Enqueue(ctx context.Context, entry *storage.OfflineEntry) error {
	o.store.offlineMu.Lock()
	defer o.store.offlineMu.Unlock()

	if _, exists := o.store.offline[entry.LocalSeq]; exists {
		return fmt.Errorf("offline entry already exists: %d", entry.LocalSeq)
	}

	entryCopy := *entry
	entryCopy.Envelope = append([]byte(nil), entry.Envelope...)
	o.store.offline[entry.LocalSeq] = &entryCopy
	return nil
}

func (o *OfflineQueueStore) Dequeue(ctx context.Context, localSeq uint64) error {
	o.store.offlineMu.Lock()
	defer o.store.offlineMu.Unlock()

	if _, exists := o.store.offline[localSeq]; !exists {
		return fmt.Errorf("offline entry not found: %d", localSeq)
	}

	delete(o.store.offline, localSeq)
	return nil
}

func (o *OfflineQueueStore) ListDue(ctx context.Context, now time.Time, limit int) ([]*storage.OfflineEntry, error) {
	o.store.offlineMu.RLock()
	defer o.store.offlineMu.RUnlock()

	var due []*storage.OfflineEntry
	for _, entry := range o.store.offline {
		if !entry.ExpiresAt.IsZero() && now.After(entry.ExpiresAt) {
			continue
		}
		if now.Before(entry.NextRetry) {
			continue
		}
		entryCopy := *entry
		due = append(due, &entryCopy)
	}

	sort.Slice(due, func(i, j int) bool { return due[i].LocalSeq < due[j].LocalSeq })
	if limit > 0 && limit < len(due) {
		due = due[:limit]
	}
	return due, nil
}

func (o *OfflineQueueStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]*storage.OfflineEntry, error) {
	o.store.offlineMu.RLock()
	defer o.store.offlineMu.RUnlock()

	var expired []*storage.OfflineEntry
	for _, entry := range o.store.offline {
		if entry.ExpiresAt.IsZero() || !now.After(entry.ExpiresAt) {
			continue
		}
		entryCopy := *entry
		expired = append(expired, &entryCopy)
	}

	sort.Slice(expired, func(i, j int) bool { return expired[i].LocalSeq < expired[j].LocalSeq })
	if limit > 0 && limit < len(expired) {
		expired = expired[:limit]
	}
	return expired, nil
}

func (o *OfflineQueueStore) UpdateRetry(ctx context.Context, localSeq uint64, attempts int, nextRetry time.Time) error {
	o.store.offlineMu.Lock()
	defer o.store.offlineMu.Unlock()

	entry, exists := o.store.offline[localSeq]
	if !exists {
		return fmt.Errorf("offline entry not found: %d", localSeq)
	}

	entry.Attempts = attempts
	entry.NextRetry = nextRetry
	return nil
}

func (o *OfflineQueueStore) Count(ctx context.Context) (int64, error) {
	o.store.offlineMu.RLock()
	defer o.store.offlineMu.RUnlock()

	return int64(len(o.store.offline)), nil
}
