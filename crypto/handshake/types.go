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

// Package handshake implements the 3-message authenticated key exchange
// that bootstraps a crypto/session.Secure channel between two
// participants: ClientHello, ServerHello, ClientFinish.
package handshake

import (
	"time"

	sagecrypto "github.com/chikuno/dchat/crypto"
)

// State is a step in the handshake state machine.
type State int

const (
	StatePending State = iota
	StateHelloSent
	StateHelloReceived
	StateVerified
	StateEstablished
	StateRejected
)

// ClientHello is the first message: the initiator's ephemeral key and its
// suites in preference order, strongest first.
type ClientHello struct {
	UserID          string              `json:"user_id"`
	ContextID       string              `json:"context_id"`
	ClientEphemeral []byte              `json:"client_ephemeral"`
	SupportedSuites []sagecrypto.SuiteID `json:"supported_suites"`
	Nonce           string              `json:"nonce"`
	Timestamp       time.Time           `json:"timestamp"`
}

// ServerHello is the second message: the responder's ephemeral key, its
// chosen suite, a hash of the ClientHello it received (so the initiator
// can detect any in-transit tampering with the offered suite list), and a
// transcript MAC plus an identity signature over the transcript so far.
type ServerHello struct {
	UserID          string    `json:"user_id"`
	ContextID       string    `json:"context_id"`
	ServerEphemeral []byte    `json:"server_ephemeral"`
	ChosenSuite     sagecrypto.SuiteID `json:"chosen_suite"`
	ClientHelloHash []byte    `json:"client_hello_hash"`
	Nonce           string    `json:"nonce"`
	Timestamp       time.Time `json:"timestamp"`
	TranscriptMAC   []byte    `json:"transcript_mac"`
	Signature       []byte    `json:"signature"`
}

// ClientFinish is the third message: the initiator's transcript MAC and
// identity signature, completing mutual authentication.
type ClientFinish struct {
	ContextID     string `json:"context_id"`
	TranscriptMAC []byte `json:"transcript_mac"`
	Signature     []byte `json:"signature"`
}
