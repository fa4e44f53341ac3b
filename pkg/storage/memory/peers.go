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
	"sort"

	"github.com/chikuno/dchat/pkg/storage"
)

// PeerStore implements storage.PeerStore.
type PeerStore struct {
	store *Store
}

func (p *PeerStore) Upsert(ctx context.Context, peer *storage.Peer) error {
	p.store.peersMu.Lock()
	defer p.store.peersMu.Unlock()

	peerCopy := *peer
	peerCopy.Addresses = append([]string(nil), peer.Addresses...)
	p.store.peers[peer.PeerID] = &peerCopy
	return nil
}

func (p *PeerStore) Get(ctx context.Context, peerID string) (*storage.Peer, error) {
	p.store.peersMu.RLock()
	defer p.store.peersMu.RUnlock()

	peer, exists := p.store.peers[peerID]
	if !exists {
		return nil, fmt.Errorf("peer not found: %s", peerID)
	}

	peerCopy := *peer
	return &peerCopy, nil
}

func (p *PeerStore) Delete(ctx context.Context, peerID string) error {
	p.store.peersMu.Lock()
	defer p.store.peersMu.Unlock()

	if _, exists := p.store.peers[peerID]; !exists {
		return fmt.Errorf("peer not found: %s", peerID)
	}

	delete(p.store.peers, peerID)
	return nil
}

func (p *PeerStore) ListByTrust(ctx context.Context, limit int) ([]*storage.Peer, error) {
	p.store.peersMu.RLock()
	defer p.store.peersMu.RUnlock()

	peers := make([]*storage.Peer, 0, len(p.store.peers))
	for _, peer := range p.store.peers {
		peerCopy := *peer
		peers = append(peers, &peerCopy)
	}

	sort.Slice(peers, func(i, j int) bool {
		return peers[i].TrustScore > peers[j].TrustScore
	})

	if limit > 0 && limit < len(peers) {
		peers = peers[:limit]
	}

	return peers, nil
}

func (p *PeerStore) Count(ctx context.Context) (int64, error) {
	p.store.peersMu.RLock()
	defer p.store.peersMu.RUnlock()

	return int64(len(p.store.peers)), nil
}
