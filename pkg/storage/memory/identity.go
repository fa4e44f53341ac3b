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
	"time"

	"github.com/chikuno/dchat/pkg/storage"
)

// IdentityStore implements storage.IdentityStore.
type IdentityStore struct {
	store *Store
}

func (d *IdentityStore) Create(ctx context.Context, id *storage.Identity) error {
	d.store.identitiesMu.Lock()
	defer d.store.identitiesMu.Unlock()

	if _, exists := d.store.identities[id.UserID]; exists {
		return fmt.Errorf("identity already exists: %s", id.UserID)
	}

	idCopy := *id
	if id.PublicKey != nil {
		idCopy.PublicKey = append([]byte(nil), id.PublicKey...)
	}

	d.store.identities[id.UserID] = &idCopy
	return nil
}

func (d *IdentityStore) Get(ctx context.Context, userID string) (*storage.Identity, error) {
	d.store.identitiesMu.RLock()
	defer d.store.identitiesMu.RUnlock()

	id, exists := d.store.identities[userID]
	if !exists {
		return nil, fmt.Errorf("identity not found: %s", userID)
	}

	idCopy := *id
	return &idCopy, nil
}

func (d *IdentityStore) Destroy(ctx context.Context, userID string) error {
	d.store.identitiesMu.Lock()
	defer d.store.identitiesMu.Unlock()

	id, exists := d.store.identities[userID]
	if !exists {
		return fmt.Errorf("identity not found: %s", userID)
	}

	id.Destroyed = true
	id.PublicKey = nil
	return nil
}

func (d *IdentityStore) DeleteExpiredBurners(ctx context.Context) (int64, error) {
	d.store.identitiesMu.Lock()
	defer d.store.identitiesMu.Unlock()

	now := time.Now()
	var count int64

	for userID, id := range d.store.identities {
		if id.IsBurner && !id.ExpiresAt.IsZero() && now.After(id.ExpiresAt) {
			delete(d.store.identities, userID)
			count++
		}
	}

	return count, nil
}

func (d *IdentityStore) Count(ctx context.Context) (int64, error) {
	d.store.identitiesMu.RLock()
	defer d.store.identitiesMu.RUnlock()

	return int64(len(d.store.identities)), nil
}
