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

// IdentityStore implements storage.IdentityStore for PostgreSQL.
type IdentityStore struct {
	db *pgxpool.Pool
}

func (d *IdentityStore) Create(ctx context.Context, id *storage.Identity) error {
	query := `
		INSERT INTO identities (user_id, public_key, key_type, is_burner, created_at, expires_at, destroyed, schema_version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := d.db.Exec(ctx, query,
		id.UserID, id.PublicKey, id.KeyType, id.IsBurner,
		id.CreatedAt, id.ExpiresAt, id.Destroyed, id.SchemaVer,
	)
	if err != nil {
		return fmt.Errorf("failed to create identity: %w", err)
	}

	return nil
}

func (d *IdentityStore) Get(ctx context.Context, userID string) (*storage.Identity, error) {
	query := `
		SELECT user_id, public_key, key_type, is_burner, created_at, expires_at, destroyed, schema_version
		FROM identities WHERE user_id = $1
	`

	var result storage.Identity
	err := d.db.QueryRow(ctx, query, userID).Scan(
		&result.UserID, &result.PublicKey, &result.KeyType, &result.IsBurner,
		&result.CreatedAt, &result.ExpiresAt, &result.Destroyed, &result.SchemaVer,
	)

	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("identity not found: %s", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}

	return &result, nil
}

func (d *IdentityStore) Destroy(ctx context.Context, userID string) error {
	query := `UPDATE identities SET destroyed = true, public_key = NULL WHERE user_id = $1`

	result, err := d.db.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to destroy identity: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("identity not found: %s", userID)
	}

	return nil
}

func (d *IdentityStore) DeleteExpiredBurners(ctx context.Context) (int64, error) {
	query := `DELETE FROM identities WHERE is_burner AND expires_at <= NOW()`

	result, err := d.db.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired burner identities: %w", err)
	}

	return result.RowsAffected(), nil
}

func (d *IdentityStore) Count(ctx context.Context) (int64, error) {
	query := `SELECT COUNT(*) FROM identities WHERE NOT destroyed`

	var count int64
	if err := d.db.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count identities: %w", err)
	}

	return count, nil
}
