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

// Package storage defines the persisted state layout: identities, peers,
// sessions, messages, delivery proofs, and the offline send queue.
package storage

import "time"

// Identity is a participant's stable record, keyed by user_id.
type Identity struct {
	UserID    string    `json:"user_id"`
	PublicKey []byte    `json:"public_key"`
	KeyType   string    `json:"key_type"`
	IsBurner  bool      `json:"is_burner"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Destroyed bool      `json:"destroyed"`
	SchemaVer int       `json:"schema_version"`
}

// Peer is a routing-table entry, keyed by peer_id.
type Peer struct {
	PeerID       string    `json:"peer_id"`
	Addresses    []string  `json:"addresses"`
	State        string    `json:"state"` // Unknown|Connecting|Connected|Disconnected
	TrustScore   int       `json:"trust_score"`
	LastSeen     time.Time `json:"last_seen"`
	BytesSent    uint64    `json:"bytes_sent"`
	BytesRecv    uint64    `json:"bytes_recv"`
	MessagesSent uint64    `json:"messages_sent"`
	MessagesRecv uint64    `json:"messages_recv"`
	ASN          string    `json:"asn,omitempty"`
}

// Session represents a stored cryptographic session, keyed by
// (local_user_id, remote_user_id).
type Session struct {
	ID           string                 `json:"id"`
	LocalUserID  string                 `json:"local_user_id"`
	RemoteUserID string                 `json:"remote_user_id"`
	SuiteID      int                    `json:"suite_id"`
	SendKey      []byte                 `json:"send_key"`
	RecvKey      []byte                 `json:"recv_key"`
	SendCounter  uint64                 `json:"send_counter"`
	RecvCounter  uint64                 `json:"recv_counter"`
	CreatedAt    time.Time              `json:"created_at"`
	ExpiresAt    time.Time              `json:"expires_at"`
	LastActivity time.Time              `json:"last_activity"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// Nonce represents a used (keyid, nonce) pair for replay prevention.
type Nonce struct {
	Nonce     string    `json:"nonce"`
	SessionID string    `json:"session_id"`
	UsedAt    time.Time `json:"used_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Message is a stored envelope, indexed by (sender_user_id, chain_sequence)
// and (recipient_user_id, chain_sequence).
type Message struct {
	MessageID      string    `json:"message_id"`
	SenderUserID   string    `json:"sender_user_id"`
	Recipient      string    `json:"recipient"`
	ContentHash    []byte    `json:"content_hash"`
	PayloadSize    int       `json:"payload_size"`
	ChainSequence  uint64    `json:"chain_sequence"`
	TimestampChain int64     `json:"timestamp_chain"`
	Ciphertext     []byte    `json:"ciphertext"`
	TTLSeconds     int       `json:"ttl_seconds"`
	State          string    `json:"state"` // Pending|Ordered|ReorderPending|Delivered|Read|Failed
	CreatedAt      time.Time `json:"created_at"`
}

// DeliveryProof is keyed by message_id.
type DeliveryProof struct {
	MessageID   string    `json:"message_id"`
	RecipientID string    `json:"recipient_user_id"`
	RelayPeerID string    `json:"relay_peer_id"`
	Status      string    `json:"status"` // Pending|Delivered|Read|Failed
	Signature   []byte    `json:"signature"`
	BlockHeight uint64    `json:"block_height"`
	CreatedAt   time.Time `json:"created_at"`
}

// OfflineEntry is a durable outgoing-message record, keyed by local_seq.
type OfflineEntry struct {
	LocalSeq   uint64    `json:"local_seq"`
	MessageID  string    `json:"message_id"`
	Envelope   []byte    `json:"envelope"`
	Attempts   int       `json:"attempts"`
	NextRetry  time.Time `json:"next_retry"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// SchemaVersion is recorded alongside persisted records to support migration.
const SchemaVersion = 1
