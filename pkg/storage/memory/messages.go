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
	"time"

	"github.com/chikuno/dchat/pkg/storage"
)

// MessageStore implements storage.MessageStore.
type MessageStore struct {
	store *Store
}

func (m *MessageStore) Create(ctx context.Context, msg *storage.Message) error {
	m.store.messagesMu.Lock()
	defer m.store.messagesMu.Unlock()

	if _, exists := m.store.messages[msg.MessageID]; exists {
		return fmt.Errorf("message already exists: %s", msg.MessageID)
	}

	msgCopy := *msg
	msgCopy.ContentHash = append([]byte(nil), msg.ContentHash...)
	msgCopy.Ciphertext = append([]byte(nil), msg.Ciphertext...)
	m.store.messages[msg.MessageID] = &msgCopy
	return nil
}

func (m *MessageStore) Get(ctx context.Context, messageID string) (*storage.Message, error) {
	m.store.messagesMu.RLock()
	defer m.store.messagesMu.RUnlock()

	msg, exists := m.store.messages[messageID]
	if !exists {
		return nil, fmt.Errorf("message not found: %s", messageID)
	}

	msgCopy := *msg
	return &msgCopy, nil
}

func (m *MessageStore) UpdateState(ctx context.Context, messageID, state string) error {
	m.store.messagesMu.Lock()
	defer m.store.messagesMu.Unlock()

	msg, exists := m.store.messages[messageID]
	if !exists {
		return fmt.Errorf("message not found: %s", messageID)
	}

	msg.State = state
	return nil
}

func (m *MessageStore) SetChainSequence(ctx context.Context, messageID string, seq uint64, chainTS int64) error {
	m.store.messagesMu.Lock()
	defer m.store.messagesMu.Unlock()

	msg, exists := m.store.messages[messageID]
	if !exists {
		return fmt.Errorf("message not found: %s", messageID)
	}

	msg.ChainSequence = seq
	msg.TimestampChain = chainTS
	return nil
}

func (m *MessageStore) ListBySender(ctx context.Context, senderUserID string, fromSeq uint64, limit int) ([]*storage.Message, error) {
	m.store.messagesMu.RLock()
	defer m.store.messagesMu.RUnlock()

	var msgs []*storage.Message
	for _, msg := range m.store.messages {
		if msg.SenderUserID == senderUserID && msg.ChainSequence >= fromSeq {
			msgCopy := *msg
			msgs = append(msgs, &msgCopy)
		}
	}

	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ChainSequence < msgs[j].ChainSequence })
	if limit > 0 && limit < len(msgs) {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (m *MessageStore) ListByRecipient(ctx context.Context, recipientUserID string, fromSeq uint64, limit int) ([]*storage.Message, error) {
	m.store.messagesMu.RLock()
	defer m.store.messagesMu.RUnlock()

	var msgs []*storage.Message
	for _, msg := range m.store.messages {
		if msg.Recipient == recipientUserID && msg.ChainSequence >= fromSeq {
			msgCopy := *msg
			msgs = append(msgs, &msgCopy)
		}
	}

	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ChainSequence < msgs[j].ChainSequence })
	if limit > 0 && limit < len(msgs) {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (m *MessageStore) DeleteExpired(ctx context.Context) (int64, error) {
	m.store.messagesMu.Lock()
	defer m.store.messagesMu.Unlock()

	now := time.Now()
	var count int64

	for id, msg := range m.store.messages {
		if msg.TTLSeconds <= 0 {
			continue
		}
		expiry := msg.CreatedAt.Add(time.Duration(msg.TTLSeconds) * time.Second)
		if now.After(expiry) {
			delete(m.store.messages, id)
			count++
		}
	}

	return count, nil
}
