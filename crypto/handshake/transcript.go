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
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

const transcriptKeyLabel = "dchat/handshake transcript v1"

// canonicalClientHello encodes the fields an attacker must not be able to
// alter unnoticed, in a fixed field order so both sides compute the same
// bytes.
func canonicalClientHello(ch *ClientHello) []byte {
	buf := new(bytes.Buffer)
	writeField(buf, []byte(ch.UserID))
	writeField(buf, []byte(ch.ContextID))
	writeField(buf, ch.ClientEphemeral)
	suites := make([]byte, len(ch.SupportedSuites))
	for i, s := range ch.SupportedSuites {
		suites[i] = byte(s)
	}
	writeField(buf, suites)
	writeField(buf, []byte(ch.Nonce))
	ts, _ := ch.Timestamp.UTC().MarshalBinary()
	writeField(buf, ts)
	return buf.Bytes()
}

func clientHelloHash(ch *ClientHello) []byte {
	sum := sha256.Sum256(canonicalClientHello(ch))
	return sum[:]
}

// canonicalServerHello encodes everything in ServerHello except the MAC
// and signature, which are computed over this plus the ClientHello.
func canonicalServerHello(sh *ServerHello) []byte {
	buf := new(bytes.Buffer)
	writeField(buf, []byte(sh.UserID))
	writeField(buf, []byte(sh.ContextID))
	writeField(buf, sh.ServerEphemeral)
	buf.WriteByte(byte(sh.ChosenSuite))
	writeField(buf, sh.ClientHelloHash)
	writeField(buf, []byte(sh.Nonce))
	ts, _ := sh.Timestamp.UTC().MarshalBinary()
	writeField(buf, ts)
	return buf.Bytes()
}

func writeField(buf *bytes.Buffer, b []byte) {
	var lenBuf [4]byte
	n := uint32(len(b))
	lenBuf[0] = byte(n >> 24)
	lenBuf[1] = byte(n >> 16)
	lenBuf[2] = byte(n >> 8)
	lenBuf[3] = byte(n)
	buf.Write(lenBuf[:])
	buf.Write(b)
}

// deriveTranscriptKey binds the ephemeral ECDH shared secret to this
// handshake's context so a transcript key is never reused across runs.
func deriveTranscriptKey(sharedSecret []byte, contextID string) ([]byte, error) {
	info := []byte(transcriptKeyLabel + "|" + contextID)
	out := make([]byte, 32)
	r := hkdf.New(sha256.New, sharedSecret, nil, info)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

func transcriptMAC(key, transcript []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(transcript)
	return mac.Sum(nil)
}
