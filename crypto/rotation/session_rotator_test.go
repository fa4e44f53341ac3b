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
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/chacha20poly1305"

	sagecrypto "github.com/chikuno/dchat/crypto"
	"github.com/chikuno/dchat/crypto/session"
)

func pairedSecureSessions(t *testing.T, cfg session.Config) (alice, bob *session.Secure) {
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

	params := session.Params{
		ContextID: "ctx-rotator",
		SelfEph:   aliceEph,
		PeerEph:   bobEph,
		Label:     "dchat/session v1",
		Suite:     sagecrypto.SuiteX25519ChaCha20,
	}

	replay := session.NewNonceCache(time.Minute)
	t.Cleanup(replay.Close)

	alice, err = session.New("alice", "bob", shared, params, cfg, true, replay)
	require.NoError(t, err)

	bobParams := params
	bobParams.SelfEph, bobParams.PeerEph = aliceEph, bobEph
	bob, err = session.New("bob", "alice", shared, bobParams, cfg, false, replay)
	require.NoError(t, err)

	return alice, bob
}

func TestSessionRotatorRotateIfNeededNoOpBelowThreshold(t *testing.T) {
	alice, _ := pairedSecureSessions(t, session.Config{MaxAge: time.Hour, IdleTimeout: time.Hour, RotateAfterMessages: 10})
	rotator := NewSessionRotator()

	rotated, err := rotator.RotateIfNeeded(alice)
	require.NoError(t, err)
	require.False(t, rotated)
	require.Empty(t, rotator.GetRotationHistory(alice.ID()))
}

func TestSessionRotatorRotateIfNeededFiresAtThreshold(t *testing.T) {
	alice, _ := pairedSecureSessions(t, session.Config{MaxAge: time.Hour, IdleTimeout: time.Hour, RotateAfterMessages: 2})
	rotator := NewSessionRotator()

	_, err := alice.Seal([]byte("one"), nil)
	require.NoError(t, err)
	_, err = alice.Seal([]byte("two"), nil)
	require.NoError(t, err)
	require.True(t, alice.NeedsRotation())

	rotated, err := rotator.RotateIfNeeded(alice)
	require.NoError(t, err)
	require.True(t, rotated)
	require.False(t, alice.NeedsRotation())

	history := rotator.GetRotationHistory(alice.ID())
	require.Len(t, history, 1)
	require.Equal(t, uint64(0), history[0].OldEpoch)
	require.Equal(t, uint64(1), history[0].NewEpoch)
}

func TestSessionRotatorRotateNowRecordsMultipleEvents(t *testing.T) {
	alice, _ := pairedSecureSessions(t, session.Config{MaxAge: time.Hour, IdleTimeout: time.Hour})
	rotator := NewSessionRotator()

	require.NoError(t, rotator.RotateNow(alice, "operator requested"))
	require.NoError(t, rotator.RotateNow(alice, "operator requested again"))

	history := rotator.GetRotationHistory(alice.ID())
	require.Len(t, history, 2)
	// Most recent first.
	require.Equal(t, uint64(2), history[0].NewEpoch)
	require.Equal(t, uint64(1), history[1].NewEpoch)
}

func TestSessionRotatorRotateNowFailsOnClosedSession(t *testing.T) {
	alice, bob := pairedSecureSessions(t, session.Config{MaxAge: time.Hour, IdleTimeout: time.Hour})
	require.NoError(t, bob.Close())
	require.NoError(t, alice.Close())

	rotator := NewSessionRotator()
	err := rotator.RotateNow(alice, "forced")
	require.Error(t, err)
	require.Empty(t, rotator.GetRotationHistory(alice.ID()))
}
