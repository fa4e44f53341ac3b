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
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/chikuno/dchat/errs"
)

// DeviceClaims are the JWT claims carried by a device attestation token:
// the root identity vouches that DeviceKey belongs to UserID.
type DeviceClaims struct {
	jwt.RegisteredClaims
	DeviceKey string `json:"device_key"` // hex-encoded Ed25519 public key
	Purpose   uint32 `json:"purpose"`
}

// Attest signs a device attestation token binding the derived device key
// at p to r's user_id, using EdDSA (the JWT alg family for Ed25519) so
// the same key family signs both session transcripts and attestations.
func (r *Root) Attest(p Path, ttl time.Duration) (string, error) {
	devicePriv := r.DeriveDeviceKey(p)
	devicePub := devicePriv.Public().(ed25519.PublicKey)

	now := time.Now()
	claims := DeviceClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    r.userID,
			Subject:   r.userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		DeviceKey: encodeKey(devicePub),
		Purpose:   p.Purpose,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(r.rootPriv)
}

// VerifyAttestation checks a device attestation token against the
// claimed root public key and returns the attested device key.
func VerifyAttestation(tokenString string, rootPub ed25519.PublicKey) (ed25519.PublicKey, *DeviceClaims, error) {
	claims := &DeviceClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != "EdDSA" {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}
		return rootPub, nil
	})
	if err != nil {
		return nil, nil, errs.Wrap(errs.AuthenticationFailed, "attestation verification failed", err)
	}
	if !token.Valid {
		return nil, nil, errs.New(errs.AuthenticationFailed, "attestation token invalid")
	}

	devicePub, err := decodeKey(claims.DeviceKey)
	if err != nil {
		return nil, nil, errs.Wrap(errs.AuthenticationFailed, "malformed device key claim", err)
	}

	return devicePub, claims, nil
}

func encodeKey(pub ed25519.PublicKey) string {
	return fmt.Sprintf("%x", []byte(pub))
}

func decodeKey(s string) (ed25519.PublicKey, error) {
	if len(s) != ed25519.PublicKeySize*2 {
		return nil, fmt.Errorf("unexpected device key length")
	}
	out := make([]byte, ed25519.PublicKeySize)
	if _, err := fmt.Sscanf(s, "%x", &out); err != nil {
		return nil, err
	}
	return out, nil
}
