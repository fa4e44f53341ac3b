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

package session

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/chikuno/dchat/errs"
)

// Seal encrypts plaintext with the send key and an incrementing counter
// used as part of the nonce, then advances the send counter. The frame
// layout is counter(8) || nonce_rand(4) || ciphertext.
func (s *Secure) Seal(plaintext, aad []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isExpiredLocked() {
		return nil, errs.New(errs.AuthenticationFailed, "session expired")
	}

	nonce := make([]byte, s.sendAEAD.NonceSize())
	binary.BigEndian.PutUint64(nonce[:8], s.sendCtr)
	if _, err := io.ReadFull(rand.Reader, nonce[8:]); err != nil {
		return nil, fmt.Errorf("generate nonce tail: %w", err)
	}

	ciphertext := s.sendAEAD.Seal(nil, nonce, plaintext, aad)

	frame := make([]byte, len(nonce)+len(ciphertext))
	copy(frame, nonce)
	copy(frame[len(nonce):], ciphertext)

	s.sendCtr++
	s.lastUsed = time.Now()
	return frame, nil
}

// Open decrypts a frame sealed by the peer's Seal, checking the embedded
// counter against the replay cache before accepting it.
func (s *Secure) Open(frame, aad []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isExpiredLocked() {
		return nil, errs.New(errs.AuthenticationFailed, "session expired")
	}

	nonceSize := s.recvAEAD.NonceSize()
	if len(frame) < nonceSize {
		return nil, errs.New(errs.AuthenticationFailed, "frame too short")
	}
	nonce := frame[:nonceSize]
	ciphertext := frame[nonceSize:]

	counter := binary.BigEndian.Uint64(nonce[:8])
	if s.replay != nil {
		nonceKey := fmt.Sprintf("%s:%d:%x", s.id, counter, nonce[8:])
		if s.replay.Seen(s.id, nonceKey) {
			return nil, errs.New(errs.AuthenticationFailed, "replayed frame")
		}
	}

	plaintext, err := s.recvAEAD.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, errs.Wrap(errs.AuthenticationFailed, "AEAD open failed", err)
	}

	if counter > s.recvCtr {
		s.recvCtr = counter
	}
	s.lastUsed = time.Now()
	return plaintext, nil
}
