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

package identity

import (
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func randSeed(t *testing.T) []byte {
	t.Helper()
	seed := make([]byte, 32)
	_, err := rand.Read(seed)
	require.NoError(t, err)
	return seed
}

func TestDeriveDeviceKeyIsDeterministic(t *testing.T) {
	seed := randSeed(t)
	root, err := NewRoot(seed)
	require.NoError(t, err)

	p := Path{Account: 0, Device: 1, Purpose: PurposeMessaging, Chain: 0, Index: 0}
	k1 := root.DeriveDeviceKey(p)
	k2 := root.DeriveDeviceKey(p)
	require.Equal(t, k1, k2)

	other := Path{Account: 0, Device: 2, Purpose: PurposeMessaging, Chain: 0, Index: 0}
	k3 := root.DeriveDeviceKey(other)
	require.NotEqual(t, k1, k3)
}

func TestNewRootRejectsShortSeed(t *testing.T) {
	_, err := NewRoot(make([]byte, 16))
	require.Error(t, err)
}

func TestUserIDStableAcrossDeviceDerivation(t *testing.T) {
	seed := randSeed(t)
	root, err := NewRoot(seed)
	require.NoError(t, err)

	id1 := root.UserID()
	_ = root.DeriveDeviceKey(Path{Device: 1})
	require.Equal(t, id1, root.UserID())
}

func TestToStorageIdentityBurnerTTL(t *testing.T) {
	seed := randSeed(t)
	root, err := NewRoot(seed)
	require.NoError(t, err)

	p := Path{Device: 1, Purpose: PurposeMessaging}

	perm := root.ToStorageIdentity(p, false, 0)
	require.False(t, perm.IsBurner)
	require.True(t, perm.ExpiresAt.IsZero())

	burner := root.ToStorageIdentity(p, true, time.Minute)
	require.True(t, burner.IsBurner)
	require.WithinDuration(t, time.Now().Add(time.Minute), burner.ExpiresAt, 5*time.Second)

	defaultTTL := root.ToStorageIdentity(p, true, 0)
	require.WithinDuration(t, time.Now().Add(24*time.Hour), defaultTTL.ExpiresAt, 5*time.Second)
}

func TestAttestationIssueAndVerifyRoundTrip(t *testing.T) {
	seed := randSeed(t)
	root, err := NewRoot(seed)
	require.NoError(t, err)

	p := Path{Device: 3, Purpose: PurposeDeviceAuth}
	token, err := root.Attest(p, time.Hour)
	require.NoError(t, err)

	devicePub, claims, err := VerifyAttestation(token, root.RootPublicKey())
	require.NoError(t, err)
	require.Equal(t, root.UserID(), claims.Issuer)
	require.Equal(t, PurposeDeviceAuth, claims.Purpose)

	wantPub := root.DeriveDeviceKey(p).Public()
	require.Equal(t, wantPub, devicePub)
}

func TestAttestationRejectsWrongRootKey(t *testing.T) {
	seed := randSeed(t)
	root, err := NewRoot(seed)
	require.NoError(t, err)

	other, err := NewRoot(randSeed(t))
	require.NoError(t, err)

	token, err := root.Attest(Path{Device: 1}, time.Hour)
	require.NoError(t, err)

	_, _, err = VerifyAttestation(token, other.RootPublicKey())
	require.Error(t, err)
}

func TestAttestationRejectsExpiredToken(t *testing.T) {
	seed := randSeed(t)
	root, err := NewRoot(seed)
	require.NoError(t, err)

	token, err := root.Attest(Path{Device: 1}, -time.Minute)
	require.NoError(t, err)

	_, _, err = VerifyAttestation(token, root.RootPublicKey())
	require.Error(t, err)
}
