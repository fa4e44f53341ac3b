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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/chacha20poly1305"

	sagecrypto "github.com/chikuno/dchat/crypto"
)

func pairedSessions(t *testing.T, cfg Config) (alice, bob *Secure) {
	t.Helper()

	shared := make([]byte, chacha20poly1305.KeySize)
	_, err := rand.Read(shared)
	require.NoError(t, err)

	aliceEph := make([]byte, 32)
	bobEph := make([]byte, 32)
	_, err = rand.Read(aliceEph)
	require.NoError(t, err)
	_, err = rand.Read(bobEph)
	require.NoError(t, err)

	params := Params{
		ContextID: "ctx-1",
		SelfEph:   aliceEph,
		PeerEph:   bobEph,
		Label:     "dchat/session v1",
		Suite:     sagecrypto.SuiteX25519ChaCha20,
	}

	replay := NewNonceCache(time.Minute)
	t.Cleanup(replay.Close)

	alice, err = New("alice", "bob", shared, params, cfg, true, replay)
	require.NoError(t, err)

	// Bob sees the same transcript with self/peer swapped.
	bobParams := params
	bobParams.SelfEph, bobParams.PeerEph = bobEph, aliceEph
	bob, err = New("bob", "alice", shared, bobParams, cfg, false, replay)
	require.NoError(t, err)

	require.Equal(t, alice.ID(), bob.ID())
	return alice, bob
}

func TestSecureSessionRoundTrip(t *testing.T) {
	alice, bob := pairedSessions(t, Config{MaxAge: time.Hour, IdleTimeout: time.Hour})

	plaintext := []byte("hello bob")
	frame, err := alice.Seal(plaintext, nil)
	require.NoError(t, err)

	got, err := bob.Open(frame, nil)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)

	// Replaying alice's frame to bob must fail: the shared replay cache
	// has already seen its nonce.
	_, err = bob.Open(frame, nil)
	require.Error(t, err)
}

func TestSecureSessionTamperedFrameFails(t *testing.T) {
	alice, bob := pairedSessions(t, Config{MaxAge: time.Hour, IdleTimeout: time.Hour})

	frame, err := alice.Seal([]byte("payload"), nil)
	require.NoError(t, err)
	frame[len(frame)-1] ^= 0xFF

	_, err = bob.Open(frame, nil)
	require.Error(t, err)
}

func TestSecureSessionExpiresByMaxMessages(t *testing.T) {
	alice, bob := pairedSessions(t, Config{MaxAge: time.Hour, IdleTimeout: time.Hour, MaxMessages: 1})

	_, err := alice.Seal([]byte("one"), nil)
	require.NoError(t, err)

	require.True(t, alice.IsExpired())
	_, err = alice.Seal([]byte("two"), nil)
	require.Error(t, err)

	require.NoError(t, bob.Close())
}

func TestSecureSessionRotateAdvancesEpochAndResetsCounters(t *testing.T) {
	alice, bob := pairedSessions(t, Config{MaxAge: time.Hour, IdleTimeout: time.Hour})

	_, err := alice.Seal([]byte("pre-rotation"), nil)
	require.NoError(t, err)
	require.Equal(t, uint64(1), alice.SendCounter())

	newEpoch, err := alice.Rotate()
	require.NoError(t, err)
	require.Equal(t, uint64(1), newEpoch)
	require.Equal(t, uint64(1), alice.Epoch())
	require.Equal(t, uint64(0), alice.SendCounter())

	bobEpoch, err := bob.Rotate()
	require.NoError(t, err)
	require.Equal(t, newEpoch, bobEpoch)

	frame, err := alice.Seal([]byte("post-rotation"), nil)
	require.NoError(t, err)
	got, err := bob.Open(frame, nil)
	require.NoError(t, err)
	require.Equal(t, []byte("post-rotation"), got)
}

func TestSecureSessionRotateFailsAfterClose(t *testing.T) {
	alice, bob := pairedSessions(t, Config{MaxAge: time.Hour, IdleTimeout: time.Hour})
	require.NoError(t, bob.Close())
	require.NoError(t, alice.Close())

	_, err := alice.Rotate()
	require.Error(t, err)
}

func TestSecureSessionMismatchedEpochFailsToDecrypt(t *testing.T) {
	alice, bob := pairedSessions(t, Config{MaxAge: time.Hour, IdleTimeout: time.Hour})

	_, err := alice.Rotate()
	require.NoError(t, err)

	// bob never rotated: his recv key is still epoch 0, alice's send key
	// is epoch 1, so the frame must fail to decrypt.
	frame, err := alice.Seal([]byte("drift"), nil)
	require.NoError(t, err)
	_, err = bob.Open(frame, nil)
	require.Error(t, err)
}

func TestNonceCacheReplay(t *testing.T) {
	nc := NewNonceCache(50 * time.Millisecond)
	defer nc.Close()

	require.False(t, nc.Seen("sess", "n1"))
	require.True(t, nc.Seen("sess", "n1"))

	time.Sleep(100 * time.Millisecond)
	require.False(t, nc.Seen("sess", "n1"))
}
