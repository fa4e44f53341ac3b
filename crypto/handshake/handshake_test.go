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

package handshake

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	sagecrypto "github.com/chikuno/dchat/crypto"
	"github.com/chikuno/dchat/crypto/session"
	"github.com/chikuno/dchat/errs"
)

func genIdentity(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return pub, priv
}

func TestHandshakeEstablishesComplementarySessions(t *testing.T) {
	alicePub, alicePriv := genIdentity(t)
	bobPub, bobPriv := genIdentity(t)

	client, err := NewInitiator("alice", "ctx-1",
		[]sagecrypto.SuiteID{sagecrypto.SuiteHybridHPKE, sagecrypto.SuiteX25519ChaCha20}, alicePriv)
	require.NoError(t, err)

	server, err := NewResponder("bob", "ctx-1",
		[]sagecrypto.SuiteID{sagecrypto.SuiteX25519ChaCha20}, bobPriv)
	require.NoError(t, err)

	hello, err := client.Hello()
	require.NoError(t, err)

	serverHello, err := server.ProcessClientHello(hello)
	require.NoError(t, err)
	require.Equal(t, sagecrypto.SuiteX25519ChaCha20, serverHello.ChosenSuite)

	finish, err := client.ProcessServerHello(serverHello, bobPub)
	require.NoError(t, err)

	err = server.ProcessClientFinish(finish, alicePub)
	require.NoError(t, err)

	replay := session.NewNonceCache(time.Minute)
	defer replay.Close()
	cfg := session.Config{MaxAge: time.Hour, IdleTimeout: time.Hour}

	aliceSession, err := client.Established("bob", cfg, replay)
	require.NoError(t, err)
	bobSession, err := server.Established("alice", cfg, replay)
	require.NoError(t, err)

	require.Equal(t, aliceSession.ID(), bobSession.ID())

	frame, err := aliceSession.Seal([]byte("hi"), nil)
	require.NoError(t, err)
	got, err := bobSession.Open(frame, nil)
	require.NoError(t, err)
	require.Equal(t, []byte("hi"), got)
}

func TestHandshakeRejectsWhenNoSuiteOverlap(t *testing.T) {
	_, alicePriv := genIdentity(t)
	_, bobPriv := genIdentity(t)

	client, err := NewInitiator("alice", "ctx-2", []sagecrypto.SuiteID{sagecrypto.SuiteHybridHPKE}, alicePriv)
	require.NoError(t, err)
	server, err := NewResponder("bob", "ctx-2", []sagecrypto.SuiteID{sagecrypto.SuiteX25519ChaCha20}, bobPriv)
	require.NoError(t, err)

	hello, err := client.Hello()
	require.NoError(t, err)

	_, err = server.ProcessClientHello(hello)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.HandshakeRejected))
}

func TestHandshakeRejectsTamperedClientHelloHash(t *testing.T) {
	alicePub, alicePriv := genIdentity(t)
	_, bobPriv := genIdentity(t)

	client, err := NewInitiator("alice", "ctx-3", []sagecrypto.SuiteID{sagecrypto.SuiteX25519ChaCha20}, alicePriv)
	require.NoError(t, err)
	server, err := NewResponder("bob", "ctx-3", []sagecrypto.SuiteID{sagecrypto.SuiteX25519ChaCha20}, bobPriv)
	require.NoError(t, err)

	hello, err := client.Hello()
	require.NoError(t, err)

	serverHello, err := server.ProcessClientHello(hello)
	require.NoError(t, err)

	serverHello.ClientHelloHash[0] ^= 0xFF

	_, err = client.ProcessServerHello(serverHello, alicePub)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.HandshakeRejected))
}

func TestHandshakeRejectsWrongServerIdentity(t *testing.T) {
	_, alicePriv := genIdentity(t)
	_, bobPriv := genIdentity(t)
	wrongPub, _ := genIdentity(t)

	client, err := NewInitiator("alice", "ctx-4", []sagecrypto.SuiteID{sagecrypto.SuiteX25519ChaCha20}, alicePriv)
	require.NoError(t, err)
	server, err := NewResponder("bob", "ctx-4", []sagecrypto.SuiteID{sagecrypto.SuiteX25519ChaCha20}, bobPriv)
	require.NoError(t, err)

	hello, err := client.Hello()
	require.NoError(t, err)
	serverHello, err := server.ProcessClientHello(hello)
	require.NoError(t, err)

	_, err = client.ProcessServerHello(serverHello, wrongPub)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.HandshakeRejected))
}
