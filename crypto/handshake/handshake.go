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
	"crypto/ecdh"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"

	sagecrypto "github.com/chikuno/dchat/crypto"
	"github.com/chikuno/dchat/crypto/session"
	"github.com/chikuno/dchat/errs"
)

func randomNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func generateEphemeral() (*ecdh.PrivateKey, error) {
	return ecdh.X25519().GenerateKey(rand.Reader)
}

// Initiator drives the client side of the handshake.
type Initiator struct {
	userID    string
	contextID string
	eph       *ecdh.PrivateKey
	ephPub    []byte
	offered   []sagecrypto.SuiteID
	signKey   ed25519.PrivateKey

	state         State
	hello         *ClientHello
	sharedSecret  []byte
	transcriptKey []byte
	chosenSuite   sagecrypto.SuiteID
	peerEphPub    []byte
}

// NewInitiator starts a handshake for userID in contextID, offering suites
// in preference order (strongest first), authenticated by signKey.
func NewInitiator(userID, contextID string, offered []sagecrypto.SuiteID, signKey ed25519.PrivateKey) (*Initiator, error) {
	if len(offered) == 0 {
		return nil, fmt.Errorf("handshake: at least one suite must be offered")
	}
	eph, err := generateEphemeral()
	if err != nil {
		return nil, fmt.Errorf("handshake: generate ephemeral key: %w", err)
	}
	return &Initiator{
		userID:    userID,
		contextID: contextID,
		eph:       eph,
		ephPub:    eph.PublicKey().Bytes(),
		offered:   append([]sagecrypto.SuiteID(nil), offered...),
		signKey:   signKey,
		state:     StatePending,
	}, nil
}

// Hello builds the ClientHello to send to the responder.
func (in *Initiator) Hello() (*ClientHello, error) {
	nonce, err := randomNonce()
	if err != nil {
		return nil, err
	}
	in.hello = &ClientHello{
		UserID:          in.userID,
		ContextID:       in.contextID,
		ClientEphemeral: in.ephPub,
		SupportedSuites: in.offered,
		Nonce:           nonce,
		Timestamp:       time.Now(),
	}
	in.state = StateHelloSent
	return in.hello, nil
}

// ProcessServerHello verifies the responder's hello against its known
// long-term identity key, detects suite-downgrade tampering via the
// echoed ClientHello hash, and returns the ClientFinish message.
func (in *Initiator) ProcessServerHello(sh *ServerHello, peerIdentityPub ed25519.PublicKey) (*ClientFinish, error) {
	if in.state != StateHelloSent {
		return nil, errs.New(errs.HandshakeRejected, "unexpected ServerHello in current state")
	}
	if sh.ContextID != in.contextID {
		return nil, errs.New(errs.HandshakeRejected, "context id mismatch")
	}

	wantHash := clientHelloHash(in.hello)
	if subtle.ConstantTimeCompare(wantHash, sh.ClientHelloHash) != 1 {
		return nil, errs.New(errs.HandshakeRejected, "client hello hash mismatch: possible suite downgrade")
	}

	offeredOK := false
	for _, s := range in.offered {
		if s == sh.ChosenSuite {
			offeredOK = true
			break
		}
	}
	if !offeredOK {
		return nil, errs.New(errs.HandshakeRejected, "chosen suite was never offered")
	}

	peerPub, err := ecdh.X25519().NewPublicKey(sh.ServerEphemeral)
	if err != nil {
		return nil, errs.Wrap(errs.HandshakeRejected, "invalid server ephemeral key", err)
	}
	shared, err := in.eph.ECDH(peerPub)
	if err != nil {
		return nil, errs.Wrap(errs.HandshakeRejected, "ecdh failed", err)
	}

	transcriptKey, err := deriveTranscriptKey(shared, in.contextID)
	if err != nil {
		return nil, errs.Wrap(errs.HandshakeRejected, "transcript key derivation failed", err)
	}

	transcript := append(canonicalClientHello(in.hello), canonicalServerHello(sh)...)
	wantMAC := transcriptMAC(transcriptKey, transcript)
	if !bytes.Equal(wantMAC, sh.TranscriptMAC) {
		return nil, errs.New(errs.HandshakeRejected, "server transcript MAC mismatch")
	}
	if !ed25519.Verify(peerIdentityPub, wantMAC, sh.Signature) {
		return nil, errs.New(errs.HandshakeRejected, "server identity signature invalid")
	}

	in.sharedSecret = shared
	in.transcriptKey = transcriptKey
	in.chosenSuite = sh.ChosenSuite
	in.peerEphPub = append([]byte(nil), sh.ServerEphemeral...)
	in.state = StateVerified

	finishTranscript := append(transcript, []byte("finish")...)
	finishMAC := transcriptMAC(transcriptKey, finishTranscript)
	sig := ed25519.Sign(in.signKey, finishMAC)

	return &ClientFinish{
		ContextID:     in.contextID,
		TranscriptMAC: finishMAC,
		Signature:     sig,
	}, nil
}

// Established derives the post-handshake secure session. Call only after
// ProcessServerHello succeeds.
func (in *Initiator) Established(remoteUserID string, cfg session.Config, replay *session.NonceCache) (*session.Secure, error) {
	if in.state != StateVerified {
		return nil, errs.New(errs.HandshakeRejected, "handshake not verified")
	}
	s, err := session.New(in.userID, remoteUserID, in.sharedSecret, session.Params{
		ContextID: in.contextID,
		SelfEph:   in.ephPub,
		PeerEph:   in.peerEphPub,
		Label:     transcriptKeyLabel,
		Suite:     in.chosenSuite,
	}, cfg, true, replay)
	if err != nil {
		return nil, err
	}
	in.state = StateEstablished
	return s, nil
}

// Responder drives the server side of the handshake.
type Responder struct {
	userID    string
	contextID string
	eph       *ecdh.PrivateKey
	ephPub    []byte
	supported []sagecrypto.SuiteID
	signKey   ed25519.PrivateKey

	state         State
	clientHello   *ClientHello
	serverHello   *ServerHello
	sharedSecret  []byte
	transcriptKey []byte
	chosenSuite   sagecrypto.SuiteID
}

// NewResponder prepares a responder for userID in contextID, supporting
// the given suites (any preference order; ClientHello's order decides the
// winner among the intersection).
func NewResponder(userID, contextID string, supported []sagecrypto.SuiteID, signKey ed25519.PrivateKey) (*Responder, error) {
	if len(supported) == 0 {
		return nil, fmt.Errorf("handshake: responder must support at least one suite")
	}
	eph, err := generateEphemeral()
	if err != nil {
		return nil, fmt.Errorf("handshake: generate ephemeral key: %w", err)
	}
	return &Responder{
		userID:    userID,
		contextID: contextID,
		eph:       eph,
		ephPub:    eph.PublicKey().Bytes(),
		supported: append([]sagecrypto.SuiteID(nil), supported...),
		signKey:   signKey,
		state:     StatePending,
	}, nil
}

func (r *Responder) supportsSuite(id sagecrypto.SuiteID) bool {
	for _, s := range r.supported {
		if s == id {
			return true
		}
	}
	return false
}

// ProcessClientHello picks the client's most-preferred mutually supported
// suite, performs the ephemeral ECDH, and returns the signed ServerHello.
// Returns a HandshakeRejected error if no offered suite is supported.
func (r *Responder) ProcessClientHello(ch *ClientHello) (*ServerHello, error) {
	if ch.ContextID != r.contextID {
		return nil, errs.New(errs.HandshakeRejected, "context id mismatch")
	}

	var chosen sagecrypto.SuiteID
	found := false
	for _, offered := range ch.SupportedSuites {
		if r.supportsSuite(offered) {
			chosen = offered
			found = true
			break
		}
	}
	if !found {
		r.state = StateRejected
		return nil, errs.New(errs.HandshakeRejected, "no mutually supported suite")
	}

	peerPub, err := ecdh.X25519().NewPublicKey(ch.ClientEphemeral)
	if err != nil {
		return nil, errs.Wrap(errs.HandshakeRejected, "invalid client ephemeral key", err)
	}
	shared, err := r.eph.ECDH(peerPub)
	if err != nil {
		return nil, errs.Wrap(errs.HandshakeRejected, "ecdh failed", err)
	}
	transcriptKey, err := deriveTranscriptKey(shared, r.contextID)
	if err != nil {
		return nil, errs.Wrap(errs.HandshakeRejected, "transcript key derivation failed", err)
	}

	nonce, err := randomNonce()
	if err != nil {
		return nil, err
	}

	sh := &ServerHello{
		UserID:          r.userID,
		ContextID:       r.contextID,
		ServerEphemeral: r.ephPub,
		ChosenSuite:     chosen,
		ClientHelloHash: clientHelloHash(ch),
		Nonce:           nonce,
		Timestamp:       time.Now(),
	}

	transcript := append(canonicalClientHello(ch), canonicalServerHello(sh)...)
	mac := transcriptMAC(transcriptKey, transcript)
	sh.TranscriptMAC = mac
	sh.Signature = ed25519.Sign(r.signKey, mac)

	r.clientHello = ch
	r.serverHello = sh
	r.sharedSecret = shared
	r.transcriptKey = transcriptKey
	r.chosenSuite = chosen
	r.state = StateHelloReceived

	return sh, nil
}

// ProcessClientFinish verifies the initiator's ClientFinish against its
// known identity key, completing mutual authentication.
func (r *Responder) ProcessClientFinish(cf *ClientFinish, peerIdentityPub ed25519.PublicKey) error {
	if r.state != StateHelloReceived {
		return errs.New(errs.HandshakeRejected, "unexpected ClientFinish in current state")
	}
	if cf.ContextID != r.contextID {
		return errs.New(errs.HandshakeRejected, "context id mismatch")
	}

	transcript := append(canonicalClientHello(r.clientHello), canonicalServerHello(r.serverHello)...)
	finishTranscript := append(transcript, []byte("finish")...)
	wantMAC := transcriptMAC(r.transcriptKey, finishTranscript)
	if !bytes.Equal(wantMAC, cf.TranscriptMAC) {
		return errs.New(errs.HandshakeRejected, "client finish MAC mismatch")
	}
	if !ed25519.Verify(peerIdentityPub, wantMAC, cf.Signature) {
		return errs.New(errs.HandshakeRejected, "client identity signature invalid")
	}

	r.state = StateVerified
	return nil
}

// Established derives the post-handshake secure session. Call only after
// ProcessClientFinish succeeds.
func (r *Responder) Established(remoteUserID string, cfg session.Config, replay *session.NonceCache) (*session.Secure, error) {
	if r.state != StateVerified {
		return nil, errs.New(errs.HandshakeRejected, "handshake not verified")
	}
	s, err := session.New(r.userID, remoteUserID, r.sharedSecret, session.Params{
		ContextID: r.contextID,
		SelfEph:   r.ephPub,
		PeerEph:   r.clientHello.ClientEphemeral,
		Label:     transcriptKeyLabel,
		Suite:     r.chosenSuite,
	}, cfg, false, replay)
	if err != nil {
		return nil, err
	}
	r.state = StateEstablished
	return s, nil
}
