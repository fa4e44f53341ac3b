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

// PeerStore implements storage.PeerStore for PostgreSQL.
type PeerStore struct {
	db *pgxpool.Pool
}

func (p *PeerStore) Upsert(ctx context.Context, peer *storage.Peer) error {
	query := `
		INSERT INTO peers (peer_id, addresses, state, trust_score, last_seen,
			bytes_sent, bytes_recv, messages_sent, messages_recv, asn)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (peer_id) DO UPDATE SET
			addresses = EXCLUDED.addresses,
			state = EXCLUDED.state,
			trust_score = EXCLUDED.trust_score,
			last_seen = EXCLUDED.last_seen,
			bytes_sent = EXCLUDED.bytes_sent,
			bytes_recv = EXCLUDED.bytes_recv,
			messages_sent = EXCLUDED.messages_sent,
			messages_recv = EXCLUDED.messages_recv,
			asn = EXCLUDED.asn
	`

	_, err := p.db.Exec(ctx, query,
		peer.PeerID, peer.Addresses, peer.State, peer.TrustScore, peer.LastSeen,
		peer.BytesSent, peer.BytesRecv, peer.MessagesSent, peer.MessagesRecv, peer.ASN,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert peer: %w", err)
	}

	return nil
}

func (p *PeerStore) Get(ctx context.Context, peerID string) (*storage.Peer, error) {
	query := `
		SELECT peer_id, addresses, state, trust_score, last_seen,
			bytes_sent, bytes_recv, messages_sent, messages_recv, asn
		FROM peers WHERE peer_id = $1
	`

	var result storage.Peer
	err := p.db.QueryRow(ctx, query, peerID).Scan(
		&result.PeerID, &result.Addresses, &result.State, &result.TrustScore, &result.LastSeen,
		&result.BytesSent, &result.BytesRecv, &result.MessagesSent, &result.MessagesRecv, &result.ASN,
	)

	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("peer not found: %s", peerID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get peer: %w", err)
	}

	return &result, nil
}

func (p *PeerStore) Delete(ctx context.Context, peerID string) error {
	query := `DELETE FROM peers WHERE peer_id = $1`

	result, err := p.db.Exec(ctx, query, peerID)
	if err != nil {
		return fmt.Errorf("failed to delete peer: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("peer not found: %s", peerID)
	}

	return nil
}

func (p *PeerStore) ListByTrust(ctx context.Context, limit int) ([]*storage.Peer, error) {
	query := `
		SELECT peer_id, addresses, state, trust_score, last_seen,
			bytes_sent, bytes_recv, messages_sent, messages_recv, asn
		FROM peers ORDER BY trust_score DESC LIMIT $1
	`

	rows, err := p.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list peers: %w", err)
	}
	defer rows.Close()

	var peers []*storage.Peer
	for rows.Next() {
		var peer storage.Peer
		if err := rows.Scan(
			&peer.PeerID, &peer.Addresses, &peer.State, &peer.TrustScore, &peer.LastSeen,
			&peer.BytesSent, &peer.BytesRecv, &peer.MessagesSent, &peer.MessagesRecv, &peer.ASN,
		); err != nil {
			return nil, fmt.Errorf("failed to scan peer: %w", err)
		}
		peers = append(peers, &peer)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating peers: %w", err)
	}

	return peers, nil
}

func (p *PeerStore) Count(ctx context.Context) (int64, error) {
	query := `SELECT COUNT(*) FROM peers`

	var count int64
	if err := p.db.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count peers: %w", err)
	}

	return count, nil
}
