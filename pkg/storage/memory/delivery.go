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

	"github.com/chikuno/dchat/pkg/storage"
)

// DeliveryProofStore implements storage.DeliveryProofStore.
type DeliveryProofStore struct {
	store *Store
}

func (d *DeliveryProofStore) Upsert(ctx context.Context, proof *storage.DeliveryProof) error {
	d.store.proofsMu.Lock()
	defer d.store.proofsMu.Unlock()

	proofCopy := *proof
	proofCopy.Signature = append([]byte(nil), proof.Signature...)
	d.store.proofs[proof.MessageID] = &proofCopy
	return nil
}

func (d *DeliveryProofStore) Get(ctx context.Context, messageID string) (*storage.DeliveryProof, error) {
	d.store.proofsMu.RLock()
	defer d.store.proofsMu.RUnlock()

	proof, exists := d.store.proofs[messageID]
	if !exists {
		return nil, fmt.Errorf("delivery proof not found: %s", messageID)
	}

	proofCopy := *proof
	return &proofCopy, nil
}

func (d *DeliveryProofStore) Delete(ctx context.Context, messageID string) error {
	d.store.proofsMu.Lock()
	defer d.store.proofsMu.Unlock()

	if _, exists := d.store.proofs[messageID]; !exists {
		return fmt.Errorf("delivery proof not found: %s", messageID)
	}

	delete(d.store.proofs, messageID)
	return nil
}
