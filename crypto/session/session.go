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

// Package session implements the post-handshake secure channel: directional
// traffic keys, AEAD sealing with per-direction counters, and replay
// detection. It sits above crypto/handshake, which negotiates the shared
// secret this package derives keys from.
package session

import (
	"bytes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	sagecrypto "github.com/chikuno/dchat/crypto"
	"github.com/chikuno/dchat/errs"
)

// Params describes the handshake transcript inputs needed to
// deterministically derive a session ID and a directional key schedule on
// both peers.
type Params struct {
	ContextID string
	SelfEph   []byte
	PeerEph   []byte
	Label     string
	Suite     sagecrypto.SuiteID
}

// Config defines session policies and limits.
type Config struct {
	MaxAge      time.Duration
	IdleTimeout time.Duration
	MaxMessages int
	// RotateAfterMessages triggers rotation.SessionRotator once SendCounter
	// crosses this threshold. Zero disables counter-based rotation.
	RotateAfterMessages uint64
}

// Secure is an established, directional AEAD channel between a local and a
// remote user. Unlike the teacher's single-key SecureSession, send and
// receive use independent keys so a compromise of one direction's traffic
// key does not expose the other.
type Secure struct {
	mu sync.Mutex

	id         string
	localUser  string
	remoteUser string
	suite      sagecrypto.SuiteID
	createdAt  time.Time
	lastUsed   time.Time
	config     Config
	closed     bool

	seed        []byte
	sendKey     []byte
	recvKey     []byte
	sendAEAD    cipher.AEAD
	recvAEAD    cipher.AEAD
	sendCtr     uint64
	recvCtr     uint64
	replay      *NonceCache
	isInitiator bool
	epoch       uint64
}

// New derives directional send/recv keys from sharedSecret and constructs
// a Secure channel. isInitiator decides which derived key is "send" vs
// "recv": the initiator's "client" label becomes its send key and the
// responder's recv key, and vice versa, so both peers end up with
// complementary (not identical) directional keys.
func New(localUser, remoteUser string, sharedSecret []byte, p Params, cfg Config, isInitiator bool, replay *NonceCache) (*Secure, error) {
	seed, err := DeriveSeed(sharedSecret, p)
	if err != nil {
		return nil, err
	}
	id, err := ComputeID(seed, p.Label)
	if err != nil {
		return nil, err
	}

	clientKey, serverKey, err := deriveDirectionalKeys(seed, id, 0)
	if err != nil {
		return nil, err
	}

	sendKeyBytes, recvKeyBytes := serverKey, clientKey
	if isInitiator {
		sendKeyBytes, recvKeyBytes = clientKey, serverKey
	}

	sendAEAD, err := chacha20poly1305.New(sendKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("create send AEAD: %w", err)
	}
	recvAEAD, err := chacha20poly1305.New(recvKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("create recv AEAD: %w", err)
	}

	now := time.Now()
	return &Secure{
		id:         id,
		localUser:  localUser,
		remoteUser: remoteUser,
		suite:      p.Suite,
		createdAt:  now,
		lastUsed:   now,
		config:     cfg,
		seed:       seed,
		sendKey:    sendKeyBytes,
		recvKey:    recvKeyBytes,
		sendAEAD:    sendAEAD,
		recvAEAD:    recvAEAD,
		replay:      replay,
		isInitiator: isInitiator,
	}, nil
}

// DeriveSeed returns PRK = HKDF-Extract(sharedSecret, salt(label, ctxID, ephs)).
func DeriveSeed(sharedSecret []byte, p Params) ([]byte, error) {
	if len(sharedSecret) == 0 {
		return nil, fmt.Errorf("empty shared secret")
	}
	if p.ContextID == "" || len(p.SelfEph) == 0 || len(p.PeerEph) == 0 {
		return nil, fmt.Errorf("invalid session params")
	}
	label := p.Label
	if label == "" {
		label = "dchat/session v1"
	}
	lo, hi := canonicalOrder(p.SelfEph, p.PeerEph)

	h := sha256.New()
	h.Write([]byte(label))
	h.Write([]byte(p.ContextID))
	h.Write(lo)
	h.Write(hi)
	salt := h.Sum(nil)

	prk := hkdf.Extract(sha256.New, sharedSecret, salt)
	out := make([]byte, len(prk))
	copy(out, prk)
	return out, nil
}

// ComputeID deterministically maps a seed to a compact session ID.
func ComputeID(seed []byte, label string) (string, error) {
	if len(seed) == 0 {
		return "", fmt.Errorf("empty seed")
	}
	h := sha256.New()
	h.Write([]byte(label))
	h.Write(seed)
	full := h.Sum(nil)
	return base64.RawURLEncoding.EncodeToString(full[:16]), nil
}

// deriveDirectionalKeys derives the client->server and server->client
// traffic keys for a given epoch. epoch 0 reproduces the original
// handshake-time keys; each later epoch (driven by Secure.Rotate)
// derives an unlinkable new pair from the same seed, so compromising
// one epoch's traffic keys does not expose another epoch's.
func deriveDirectionalKeys(seed []byte, sessionID string, epoch uint64) (clientKey, serverKey []byte, err error) {
	salt := make([]byte, len(sessionID)+8)
	copy(salt, sessionID)
	binary.BigEndian.PutUint64(salt[len(sessionID):], epoch)

	clientKey = make([]byte, chacha20poly1305.KeySize)
	if _, err = io.ReadFull(hkdf.New(sha256.New, seed, salt, []byte("client-to-server")), clientKey); err != nil {
		return nil, nil, fmt.Errorf("derive client key: %w", err)
	}

	serverKey = make([]byte, chacha20poly1305.KeySize)
	if _, err = io.ReadFull(hkdf.New(sha256.New, seed, salt, []byte("server-to-client")), serverKey); err != nil {
		return nil, nil, fmt.Errorf("derive server key: %w", err)
	}

	return clientKey, serverKey, nil
}

func canonicalOrder(a, b []byte) (lo, hi []byte) {
	if bytes.Compare(a, b) <= 0 {
		return a, b
	}
	return b, a
}

// ID returns the session identifier.
func (s *Secure) ID() string { return s.id }

// LocalUser returns the local participant's user ID.
func (s *Secure) LocalUser() string { return s.localUser }

// RemoteUser returns the remote participant's user ID.
func (s *Secure) RemoteUser() string { return s.remoteUser }

// Suite returns the negotiated crypto suite.
func (s *Secure) Suite() sagecrypto.SuiteID { return s.suite }

// IsExpired reports whether the session has passed its policy limits.
func (s *Secure) IsExpired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isExpiredLocked()
}

func (s *Secure) isExpiredLocked() bool {
	if s.closed {
		return true
	}
	now := time.Now()
	if s.config.MaxAge > 0 && now.After(s.createdAt.Add(s.config.MaxAge)) {
		return true
	}
	if s.config.IdleTimeout > 0 && now.After(s.lastUsed.Add(s.config.IdleTimeout)) {
		return true
	}
	if s.config.MaxMessages > 0 && int(s.sendCtr+s.recvCtr) >= s.config.MaxMessages {
		return true
	}
	return false
}

// Close zeroizes key material and marks the session closed.
func (s *Secure) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	zero(s.seed)
	zero(s.sendKey)
	zero(s.recvKey)
	s.closed = true
	return nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// SendCounter returns the number of AEAD frames sealed so far.
func (s *Secure) SendCounter() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendCtr
}

// NeedsRotation reports whether the send counter has crossed the
// configured rotation threshold.
func (s *Secure) NeedsRotation() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.RotateAfterMessages > 0 && s.sendCtr >= s.config.RotateAfterMessages
}

// Epoch returns the session's current traffic-key epoch, incremented
// once per Rotate call.
func (s *Secure) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Rotate re-derives both directional traffic keys from the session's
// original seed at the next epoch, zeroizes the retired keys, and
// resets both frame counters to zero. It does not change the session
// ID or re-run the handshake: the seed (HKDF-Extract of the original
// shared secret) is long-lived, and Rotate only advances which HKDF-Expand
// output both peers derive from it, so both sides rotate in lockstep by
// each calling Rotate after agreeing on the new epoch number out of band.
// Frames do not carry the epoch: a peer still on the old epoch fails to
// open frames sealed under the new one.
func (s *Secure) Rotate() (newEpoch uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, errs.New(errs.AuthenticationFailed, "cannot rotate a closed session")
	}

	nextEpoch := s.epoch + 1
	clientKey, serverKey, err := deriveDirectionalKeys(s.seed, s.id, nextEpoch)
	if err != nil {
		return 0, fmt.Errorf("rotate traffic keys: %w", err)
	}

	sendKeyBytes, recvKeyBytes := serverKey, clientKey
	if s.isInitiator {
		sendKeyBytes, recvKeyBytes = clientKey, serverKey
	}

	sendAEAD, err := chacha20poly1305.New(sendKeyBytes)
	if err != nil {
		return 0, fmt.Errorf("create rotated send AEAD: %w", err)
	}
	recvAEAD, err := chacha20poly1305.New(recvKeyBytes)
	if err != nil {
		return 0, fmt.Errorf("create rotated recv AEAD: %w", err)
	}

	zero(s.sendKey)
	zero(s.recvKey)

	s.sendKey = sendKeyBytes
	s.recvKey = recvKeyBytes
	s.sendAEAD = sendAEAD
	s.recvAEAD = recvAEAD
	s.sendCtr = 0
	s.recvCtr = 0
	s.epoch = nextEpoch
	return nextEpoch, nil
}
