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
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chikuno/dchat/pkg/storage"
)

// OfflineQueueStore implements storage.OfflineQueueStore for PostgreSQL.
type OfflineQueueStore struct {
	db *pgxpool.Pool
}

func (o *OfflineQueueStore) Enqueue(ctx context.Context, entry *storage.OfflineEntry) error {
	query := `
		INSERT INTO offline_queue (local_seq, message_id, envelope, attempts, next_retry, enqueued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := o.db.Exec(ctx, query,
		entry.LocalSeq, entry.MessageID, entry.Envelope, entry.Attempts, entry.NextRetry, entry.EnqueuedAt, entry.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue offline entry: %w", err)
	}

	return nil
}

func (o *OfflineQueueStore) Dequeue(ctx context.Context, localSeq uint64) error {
	query := `DELETE FROM offline_queue WHERE local_seq = $1`

	result, err := o.db.Exec(ctx, query, localSeq)
	if err != nil {
		return fmt.Errorf("failed to dequeue offline entry: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("offline entry not found: %d", localSeq)
	}

	return nil
}

func (o *OfflineQueueStore) ListDue(ctx context.Context, now time.Time, limit int) ([]*storage.OfflineEntry, error) {
	query := `
		SELECT local_seq, message_id, envelope, attempts, next_retry, enqueued_at, expires_at
		FROM offline_queue
		WHERE next_retry <= $1 AND (expires_at IS NULL OR expires_at > $1)
		ORDER BY local_seq ASC LIMIT $2
	`

	rows, err := o.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due offline entries: %w", err)
	}
	defer rows.Close()

	var entries []*storage.OfflineEntry
	for rows.Next() {
		var entry storage.OfflineEntry
		if err := rows.Scan(
			&entry.LocalSeq, &entry.MessageID, &entry.Envelope, &entry.Attempts, &entry.NextRetry, &entry.EnqueuedAt, &entry.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan offline entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating offline entries: %w", err)
	}

	return entries, nil
}

func (o *OfflineQueueStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]*storage.OfflineEntry, error) {
	query := `
		SELECT local_seq, message_id, envelope, attempts, next_retry, enqueued_at, expires_at
		FROM offline_queue
		WHERE expires_at IS NOT NULL AND expires_at <= $1
		ORDER BY local_seq ASC LIMIT $2
	`

	rows, err := o.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired offline entries: %w", err)
	}
	defer rows.Close()

	var entries []*storage.OfflineEntry
	for rows.Next() {
		var entry storage.OfflineEntry
		if err := rows.Scan(
			&entry.LocalSeq, &entry.MessageID, &entry.Envelope, &entry.Attempts, &entry.NextRetry, &entry.EnqueuedAt, &entry.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan offline entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating offline entries: %w", err)
	}

	return entries, nil
}

func (o *OfflineQueueStore) UpdateRetry(ctx context.Context, localSeq uint64, attempts int, nextRetry time.Time) error {
	query := `UPDATE offline_queue SET attempts = $1, next_retry = $2 WHERE local_seq = $3`

	result, err := o.db.Exec(ctx, query, attempts, nextRetry, localSeq)
	if err != nil {
		return fmt.Errorf("failed to update retry: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("offline entry not found: %d", localSeq)
	}

	return nil
}

func (o *OfflineQueueStore) Count(ctx context.Context) (int64, error) {
	query := `SELECT COUNT(*) FROM offline_queue`

	var count int64
	if err := o.db.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count offline queue: %w", err)
	}

	return count, nil
}
