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

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chikuno/dchat/pkg/storage"
)

// DeliveryProofStore implements storage.DeliveryProofStore for PostgreSQL.
type DeliveryProofStore struct {
	db *pgxpool.Pool
}

func (d *DeliveryProofStore) Upsert(ctx context.Context, proof *storage.DeliveryProof) error {
	query := `
		INSERT INTO delivery_proofs (message_id, recipient_user_id, relay_peer_id, status, signature, block_height, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (message_id) DO UPDATE SET
			recipient_user_id = EXCLUDED.recipient_user_id,
			relay_peer_id = EXCLUDED.relay_peer_id,
			status = EXCLUDED.status,
			signature = EXCLUDED.signature,
			block_height = EXCLUDED.block_height
	`

	_, err := d.db.Exec(ctx, query,
		proof.MessageID, proof.RecipientID, proof.RelayPeerID, proof.Status, proof.Signature, proof.BlockHeight, proof.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert delivery proof: %w", err)
	}

	return nil
}

func (d *DeliveryProofStore) Get(ctx context.Context, messageID string) (*storage.DeliveryProof, error) {
	query := `
		SELECT message_id, recipient_user_id, relay_peer_id, status, signature, block_height, created_at
		FROM delivery_proofs WHERE message_id = $1
	`

	var result storage.DeliveryProof
	err := d.db.QueryRow(ctx, query, messageID).Scan(
		&result.MessageID, &result.RecipientID, &result.RelayPeerID, &result.Status, &result.Signature, &result.BlockHeight, &result.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("delivery proof not found: %s", messageID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery proof: %w", err)
	}

	return &result, nil
}

func (d *DeliveryProofStore) Delete(ctx context.Context, messageID string) error {
	query := `DELETE FROM delivery_proofs WHERE message_id = $1`

	result, err := d.db.Exec(ctx, query, messageID)
	if err != nil {
		return fmt.Errorf("failed to delete delivery proof: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("delivery proof not found: %s", messageID)
	}

	return nil
}
