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

package rotation

import (
	"fmt"
	"sync"
	"time"

	"github.com/chikuno/dchat/crypto/session"
)

// SessionRotationEvent records one traffic-key rotation of an
// established session, mirroring sagecrypto.KeyRotationEvent's shape
// but keyed by epoch rather than by a stored key ID, since traffic
// keys are derived on the fly rather than persisted.
type SessionRotationEvent struct {
	Timestamp time.Time
	SessionID string
	OldEpoch  uint64
	NewEpoch  uint64
	Reason    string
}

// SessionRotator drives crypto/session.Secure.Rotate on the schedule
// spec.md §4.2's session-rotation invariant requires (every
// RotateAfterMessages frames, or on an operator-triggered rotation),
// the traffic-key analogue of keyRotator's identity-key rotation: same
// history bookkeeping, same "rotating" in-flight guard, applied to a
// live AEAD channel instead of a KeyStorage-backed KeyPair.
type SessionRotator struct {
	mu       sync.RWMutex
	history  map[string][]SessionRotationEvent
	rotating map[string]bool
}

// NewSessionRotator constructs an empty SessionRotator.
func NewSessionRotator() *SessionRotator {
	return &SessionRotator{
		history:  make(map[string][]SessionRotationEvent),
		rotating: make(map[string]bool),
	}
}

// RotateIfNeeded rotates sec's traffic keys when sec.NeedsRotation()
// reports the configured message threshold has been crossed, and is a
// no-op otherwise. Callers needing an unconditional rotation (e.g. an
// operator-issued "rotate now") should call RotateNow instead.
func (r *SessionRotator) RotateIfNeeded(sec *session.Secure) (rotated bool, err error) {
	if !sec.NeedsRotation() {
		return false, nil
	}
	if err := r.RotateNow(sec, "RotateAfterMessages threshold crossed"); err != nil {
		return false, err
	}
	return true, nil
}

// RotateNow unconditionally rotates sec's traffic keys, recording the
// transition in this rotator's history under sec.ID().
func (r *SessionRotator) RotateNow(sec *session.Secure, reason string) error {
	id := sec.ID()

	r.mu.Lock()
	if r.rotating[id] {
		r.mu.Unlock()
		return fmt.Errorf("session %s is already being rotated", id)
	}
	r.rotating[id] = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.rotating, id)
		r.mu.Unlock()
	}()

	oldEpoch := sec.Epoch()
	newEpoch, err := sec.Rotate()
	if err != nil {
		return fmt.Errorf("rotate session %s: %w", id, err)
	}

	r.mu.Lock()
	r.history[id] = append(r.history[id], SessionRotationEvent{
		Timestamp: time.Now(),
		SessionID: id,
		OldEpoch:  oldEpoch,
		NewEpoch:  newEpoch,
		Reason:    reason,
	})
	r.mu.Unlock()
	return nil
}

// GetRotationHistory returns sessionID's rotation events, most recent
// first, matching keyRotator.GetRotationHistory's ordering convention.
func (r *SessionRotator) GetRotationHistory(sessionID string) []SessionRotationEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	history, ok := r.history[sessionID]
	if !ok {
		return []SessionRotationEvent{}
	}
	result := make([]SessionRotationEvent, len(history))
	for i, event := range history {
		result[len(history)-1-i] = event
	}
	return result
}
