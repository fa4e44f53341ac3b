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

// MessageStore implements storage.MessageStore for PostgreSQL.
type MessageStore struct {
	db *pgxpool.Pool
}

func (m *MessageStore) Create(ctx context.Context, msg *storage.Message) error {
	query := `
		INSERT INTO messages (message_id, sender_user_id, recipient, content_hash, payload_size,
			chain_sequence, timestamp_chain, ciphertext, ttl_seconds, state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := m.db.Exec(ctx, query,
		msg.MessageID, msg.SenderUserID, msg.Recipient, msg.ContentHash, msg.PayloadSize,
		msg.ChainSequence, msg.TimestampChain, msg.Ciphertext, msg.TTLSeconds, msg.State, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

func (m *MessageStore) Get(ctx context.Context, messageID string) (*storage.Message, error) {
	query := `
		SELECT message_id, sender_user_id, recipient, content_hash, payload_size,
			chain_sequence, timestamp_chain, ciphertext, ttl_seconds, state, created_at
		FROM messages WHERE message_id = $1
	`

	var result storage.Message
	err := m.db.QueryRow(ctx, query, messageID).Scan(
		&result.MessageID, &result.SenderUserID, &result.Recipient, &result.ContentHash, &result.PayloadSize,
		&result.ChainSequence, &result.TimestampChain, &result.Ciphertext, &result.TTLSeconds, &result.State, &result.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("message not found: %s", messageID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return &result, nil
}

func (m *MessageStore) UpdateState(ctx context.Context, messageID, state string) error {
	query := `UPDATE messages SET state = $1 WHERE message_id = $2`

	result, err := m.db.Exec(ctx, query, state, messageID)
	if err != nil {
		return fmt.Errorf("failed to update message state: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("message not found: %s", messageID)
	}

	return nil
}

func (m *MessageStore) SetChainSequence(ctx context.Context, messageID string, seq uint64, chainTS int64) error {
	query := `UPDATE messages SET chain_sequence = $1, timestamp_chain = $2 WHERE message_id = $3`

	result, err := m.db.Exec(ctx, query, seq, chainTS, messageID)
	if err != nil {
		return fmt.Errorf("failed to set chain sequence: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("message not found: %s", messageID)
	}

	return nil
}

func (m *MessageStore) ListBySender(ctx context.Context, senderUserID string, fromSeq uint64, limit int) ([]*storage.Message, error) {
	query := `
		SELECT message_id, sender_user_id, recipient, content_hash, payload_size,
			chain_sequence, timestamp_chain, ciphertext, ttl_seconds, state, created_at
		FROM messages
		WHERE sender_user_id = $1 AND chain_sequence >= $2
		ORDER BY chain_sequence ASC LIMIT $3
	`
	return scanMessages(ctx, m.db, query, senderUserID, fromSeq, limit)
}

func (m *MessageStore) ListByRecipient(ctx context.Context, recipientUserID string, fromSeq uint64, limit int) ([]*storage.Message, error) {
	query := `
		SELECT message_id, sender_user_id, recipient, content_hash, payload_size,
			chain_sequence, timestamp_chain, ciphertext, ttl_seconds, state, created_at
		FROM messages
		WHERE recipient = $1 AND chain_sequence >= $2
		ORDER BY chain_sequence ASC LIMIT $3
	`
	return scanMessages(ctx, m.db, query, recipientUserID, fromSeq, limit)
}

func scanMessages(ctx context.Context, db *pgxpool.Pool, query string, args ...interface{}) ([]*storage.Message, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var msgs []*storage.Message
	for rows.Next() {
		var msg storage.Message
		if err := rows.Scan(
			&msg.MessageID, &msg.SenderUserID, &msg.Recipient, &msg.ContentHash, &msg.PayloadSize,
			&msg.ChainSequence, &msg.TimestampChain, &msg.Ciphertext, &msg.TTLSeconds, &msg.State, &msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return msgs, nil
}

func (m *MessageStore) DeleteExpired(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM messages
		WHERE ttl_seconds > 0 AND created_at + (ttl_seconds || ' seconds')::interval <= NOW()
	`

	result, err := m.db.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired messages: %w", err)
	}

	return result.RowsAffected(), nil
}
