package storage

import (
	"context"
	"time"
)

// IdentityStore defines the interface for identity persistence.
type IdentityStore interface {
	Create(ctx context.Context, id *Identity) error
	Get(ctx context.Context, userID string) (*Identity, error)
	Destroy(ctx context.Context, userID string) error
	DeleteExpiredBurners(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// PeerStore defines the interface for peer-table persistence.
type PeerStore interface {
	Upsert(ctx context.Context, peer *Peer) error
	Get(ctx context.Context, peerID string) (*Peer, error)
	Delete(ctx context.Context, peerID string) error
	ListByTrust(ctx context.Context, limit int) ([]*Peer, error)
	Count(ctx context.Context) (int64, error)
}

// SessionStore defines the interface for session persistence.
type SessionStore interface {
	// Create creates a new session
	Create(ctx context.Context, session *Session) error

	// Get retrieves a session by (local_user_id, remote_user_id)
	Get(ctx context.Context, localUserID, remoteUserID string) (*Session, error)

	// Update updates an existing session
	Update(ctx context.Context, session *Session) error

	// Delete deletes a session by ID
	Delete(ctx context.Context, id string) error

	// DeleteExpired deletes all expired sessions
	DeleteExpired(ctx context.Context) (int64, error)

	// List lists all sessions for a local user
	List(ctx context.Context, localUserID string, limit, offset int) ([]*Session, error)

	// UpdateActivity updates the last activity timestamp
	UpdateActivity(ctx context.Context, id string) error

	// Count returns the total number of active sessions
	Count(ctx context.Context) (int64, error)
}

// NonceStore defines the interface for nonce management.
type NonceStore interface {
	// CheckAndStore atomically checks if nonce is used and stores it
	CheckAndStore(ctx context.Context, nonce string, sessionID string, expiresAt time.Time) error

	// IsUsed checks if a nonce has been used
	IsUsed(ctx context.Context, nonce string) (bool, error)

	// DeleteExpired deletes all expired nonces
	DeleteExpired(ctx context.Context) (int64, error)

	// Count returns the total number of stored nonces
	Count(ctx context.Context) (int64, error)
}

// MessageStore defines the interface for the local message log.
type MessageStore interface {
	Create(ctx context.Context, msg *Message) error
	Get(ctx context.Context, messageID string) (*Message, error)
	UpdateState(ctx context.Context, messageID, state string) error
	SetChainSequence(ctx context.Context, messageID string, seq uint64, chainTS int64) error
	ListBySender(ctx context.Context, senderUserID string, fromSeq uint64, limit int) ([]*Message, error)
	ListByRecipient(ctx context.Context, recipientUserID string, fromSeq uint64, limit int) ([]*Message, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

// DeliveryProofStore defines the interface for delivery-proof persistence.
type DeliveryProofStore interface {
	Upsert(ctx context.Context, proof *DeliveryProof) error
	Get(ctx context.Context, messageID string) (*DeliveryProof, error)
	Delete(ctx context.Context, messageID string) error
}

// OfflineQueueStore defines the interface for the durable outbound queue.
type OfflineQueueStore interface {
	Enqueue(ctx context.Context, entry *OfflineEntry) error
	Dequeue(ctx context.Context, localSeq uint64) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]*OfflineEntry, error)
	// ListExpired returns entries whose ExpiresAt has passed, so callers
	// can reap them; ListDue excludes these entries from its own results.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*OfflineEntry, error)
	UpdateRetry(ctx context.Context, localSeq uint64, attempts int, nextRetry time.Time) error
	Count(ctx context.Context) (int64, error)
}

// Store combines all storage interfaces over the persisted state layout.
type Store interface {
	IdentityStore() IdentityStore
	PeerStore() PeerStore
	SessionStore() SessionStore
	NonceStore() NonceStore
	MessageStore() MessageStore
	DeliveryProofStore() DeliveryProofStore
	OfflineQueueStore() OfflineQueueStore

	// Close closes the storage connection
	Close() error

	// Ping checks the storage connection
	Ping(ctx context.Context) error
}
