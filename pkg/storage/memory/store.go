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

// Package memory provides an in-memory storage.Store, used by tests and
// single-process deployments that do not need durability.
package memory

import (
	"context"
	"sync"

	"github.com/chikuno/dchat/pkg/storage"
)

// Store implements storage.Store over in-memory maps.
type Store struct {
	identities map[string]*storage.Identity
	peers      map[string]*storage.Peer
	sessions   map[string]*storage.Session
	nonces     map[string]*storage.Nonce
	messages   map[string]*storage.Message
	proofs     map[string]*storage.DeliveryProof
	offline    map[uint64]*storage.OfflineEntry

	identitiesMu sync.RWMutex
	peersMu      sync.RWMutex
	sessionsMu   sync.RWMutex
	noncesMu     sync.RWMutex
	messagesMu   sync.RWMutex
	proofsMu     sync.RWMutex
	offlineMu    sync.RWMutex

	identityStore *IdentityStore
	peerStore     *PeerStore
	sessionStore  *SessionStore
	nonceStore    *NonceStore
	messageStore  *MessageStore
	proofStore    *DeliveryProofStore
	offlineStore  *OfflineQueueStore
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	s := &Store{
		identities: make(map[string]*storage.Identity),
		peers:      make(map[string]*storage.Peer),
		sessions:   make(map[string]*storage.Session),
		nonces:     make(map[string]*storage.Nonce),
		messages:   make(map[string]*storage.Message),
		proofs:     make(map[string]*storage.DeliveryProof),
		offline:    make(map[uint64]*storage.OfflineEntry),
	}

	s.identityStore = &IdentityStore{store: s}
	s.peerStore = &PeerStore{store: s}
	s.sessionStore = &SessionStore{store: s}
	s.nonceStore = &NonceStore{store: s}
	s.messageStore = &MessageStore{store: s}
	s.proofStore = &DeliveryProofStore{store: s}
	s.offlineStore = &OfflineQueueStore{store: s}

	return s
}

func (s *Store) IdentityStore() storage.IdentityStore           { return s.identityStore }
func (s *Store) PeerStore() storage.PeerStore                   { return s.peerStore }
func (s *Store) SessionStore() storage.SessionStore             { return s.sessionStore }
func (s *Store) NonceStore() storage.NonceStore                 { return s.nonceStore }
func (s *Store) MessageStore() storage.MessageStore             { return s.messageStore }
func (s *Store) DeliveryProofStore() storage.DeliveryProofStore { return s.proofStore }
func (s *Store) OfflineQueueStore() storage.OfflineQueueStore   { return s.offlineStore }

// Close closes the store (no-op for memory store).
func (s *Store) Close() error {
	return nil
}

// Ping checks the store (always succeeds for memory store).
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Clear removes all data. Useful for tests.
func (s *Store) Clear() {
	s.identitiesMu.Lock()
	s.identities = make(map[string]*storage.Identity)
	s.identitiesMu.Unlock()

	s.peersMu.Lock()
	s.peers = make(map[string]*storage.Peer)
	s.peersMu.Unlock()

	s.sessionsMu.Lock()
	s.sessions = make(map[string]*storage.Session)
	s.sessionsMu.Unlock()

	s.noncesMu.Lock()
	s.nonces = make(map[string]*storage.Nonce)
	s.noncesMu.Unlock()

	s.messagesMu.Lock()
	s.messages = make(map[string]*storage.Message)
	s.messagesMu.Unlock()

	s.proofsMu.Lock()
	s.proofs = make(map[string]*storage.DeliveryProof)
	s.proofsMu.Unlock()

	s.offlineMu.Lock()
	s.offline = make(map[uint64]*storage.OfflineEntry)
	s.offlineMu.Unlock()
}

func sessionKey(localUserID, remoteUserID string) string {
	return localUserID + "|" + remoteUserID
}
