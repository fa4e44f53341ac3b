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

package messaging

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// DefaultOrderingHoldTimeout is spec.md §4.4 Receive step 3's
// pending-order queue timeout: a message whose ordering transaction
// hasn't landed on chain within this window is dropped as Unordered.
const DefaultOrderingHoldTimeout = 60 * time.Second

// pendingEnvelope is a received envelope waiting on its ordering
// transaction or on a chain_sequence gap to close.
type pendingEnvelope struct {
	env       Envelope
	heldSince time.Time
}

// OrderManager enforces spec.md §4.4's ordering contract: for a fixed
// sender, the log observed by any honest recipient is a prefix of the
// chain's canonical transaction order restricted to that sender's
// messages. It tracks the next expected chain_sequence per
// (sender, recipient) pair and holds out-of-order or unordered
// envelopes until the gap closes or the hold expires, the same
// per-session last-sequence bookkeeping as the teacher's
// core/message/order.Manager generalized from a single-stream gRPC
// sequence check to a chain_sequence-keyed reorder buffer.
type OrderManager struct {
	mu       sync.Mutex
	nextSeq  map[string]uint64            // "sender|recipient" -> next expected chain_sequence
	held     map[string]map[uint64]pendingEnvelope // same key -> chain_sequence -> held envelope
}

// NewOrderManager constructs an empty OrderManager.
func NewOrderManager() *OrderManager {
	return &OrderManager{
		nextSeq: make(map[string]uint64),
		held:    make(map[string]map[uint64]pendingEnvelope),
	}
}

func streamKey(sender, recipient string) string {
	return sender + "|" + recipient
}

// Accept processes an ordered envelope (its chain_sequence is already
// known). It returns the envelopes that are now deliverable in order
// (the envelope itself plus any previously held envelopes the gap
// closing unblocks), or holds it (and returns nil) if it arrives ahead
// of the expected sequence.
func (m *OrderManager) Accept(env Envelope, now time.Time) []Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := streamKey(env.SenderUserID, env.Recipient)
	expected, ok := m.nextSeq[key]
	if !ok {
		expected = env.ChainSequence
	}

	if env.ChainSequence < expected {
		// Already delivered or stale; drop silently (at-least-once chain
		// replay should not re-surface an old message).
		return nil
	}

	if env.ChainSequence > expected {
		if m.held[key] == nil {
			m.held[key] = make(map[uint64]pendingEnvelope)
		}
		m.held[key][env.ChainSequence] = pendingEnvelope{env: env, heldSince: now}
		return nil
	}

	// env.ChainSequence == expected: deliver it and drain any held
	// envelopes that are now contiguous.
	deliverable := []Envelope{env}
	next := expected + 1
	for {
		pending, ok := m.held[key][next]
		if !ok {
			break
		}
		deliverable = append(deliverable, pending.env)
		delete(m.held[key], next)
		next++
	}
	m.nextSeq[key] = next
	return deliverable
}

// ExpireHolds returns, for every (sender, recipient) stream, the held
// envelopes whose hold has exceeded timeout, removing them from the
// hold buffer so the caller can mark them Unordered.
func (m *OrderManager) ExpireHolds(now time.Time, timeout time.Duration) []Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []Envelope
	for key, bySeq := range m.held {
		for seq, pending := range bySeq {
			if now.Sub(pending.heldSince) >= timeout {
				expired = append(expired, pending.env)
				delete(bySeq, seq)
			}
		}
		if len(bySeq) == 0 {
			delete(m.held, key)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ChainSequence < expired[j].ChainSequence })
	return expired
}

// NextExpected reports the next chain_sequence Accept expects for
// (sender, recipient), for diagnostics/tests.
func (m *OrderManager) NextExpected(sender, recipient string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextSeq[streamKey(sender, recipient)]
}

// String describes a stream key, useful in error messages.
func (m *OrderManager) String() string {
	return fmt.Sprintf("OrderManager{streams=%d}", len(m.nextSeq))
}
