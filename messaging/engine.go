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

package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/chikuno/dchat/chain"
	"github.com/chikuno/dchat/crypto/session"
	"github.com/chikuno/dchat/errs"
	"github.com/chikuno/dchat/pkg/storage"
)

// SessionProvider acquires (or establishes, via a handshake if needed)
// the Secure channel between two users, the Crypto Session Layer's
// contract from spec.md §4.4 Send step 2 / Receive step 1.
type SessionProvider interface {
	Acquire(ctx context.Context, localUser, remoteUser string) (*session.Secure, error)
}

// Router selects a delivery route for an outbound envelope, per
// spec.md §4.4 Send step 4: direct peer if connected, else onion
// circuit if the caller marked the message metadata-sensitive, else
// DHT-routed gossip.
type Router interface {
	SelectRoute(ctx context.Context, recipientUserID string, sensitive bool) (Route, error)
}

// WireSender hands a fully-built envelope to the wire for one route;
// peer.Pool.Send, onion.Circuit.Send, and a DHT-gossip sender all
// satisfy this shape.
type WireSender interface {
	Send(ctx context.Context, route Route, recipientUserID string, wire []byte) error
}

// Engine composes, sends, receives, orders, and persists messages.
type Engine struct {
	localUser string

	sessions SessionProvider
	router   Router
	sender   WireSender
	gateway  *chain.Gateway

	messages storage.MessageStore
	offline  *OfflineQueue
	order    *OrderManager

	orderingHoldTimeout time.Duration
}

// Config bundles Engine's collaborators.
type Config struct {
	LocalUser           string
	Sessions            SessionProvider
	Router              Router
	Sender              WireSender
	Gateway             *chain.Gateway
	Messages            storage.MessageStore
	Offline             *OfflineQueue
	OrderingHoldTimeout time.Duration
}

// NewEngine constructs an Engine from cfg, defaulting
// OrderingHoldTimeout to DefaultOrderingHoldTimeout.
func NewEngine(cfg Config) *Engine {
	timeout := cfg.OrderingHoldTimeout
	if timeout <= 0 {
		timeout = DefaultOrderingHoldTimeout
	}
	return &Engine{
		localUser:           cfg.LocalUser,
		sessions:            cfg.Sessions,
		router:              cfg.Router,
		sender:              cfg.Sender,
		gateway:             cfg.Gateway,
		messages:            cfg.Messages,
		offline:             cfg.Offline,
		order:               NewOrderManager(),
		orderingHoldTimeout: timeout,
	}
}

// SendOptions customizes a single Send call.
type SendOptions struct {
	// Sensitive marks the message as metadata-sensitive, routing it
	// through an onion circuit instead of a direct/gossip path.
	Sensitive bool
	TTL       time.Duration
	ToChannel bool // true selects PostToChannel instead of SendDirectMessage
}

// Send implements spec.md §4.4's Send sequence.
func (e *Engine) Send(ctx context.Context, recipient string, plaintext []byte, opts SendOptions) (*Envelope, error) {
	if err := ValidateSize(plaintext); err != nil {
		return nil, err
	}
	contentHash := ComputeContentHash(plaintext)

	sec, err := e.sessions.Acquire(ctx, e.localUser, recipient)
	if err != nil {
		return nil, errs.Wrap(errs.HandshakeRejected, "messaging: acquire session", err)
	}

	ciphertext, err := sec.Seal(plaintext, contentHash[:])
	if err != nil {
		return nil, fmt.Errorf("messaging: seal envelope: %w", err)
	}

	messageID := NewMessageID()
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	env := Envelope{
		MessageID:    messageID,
		SenderUserID: e.localUser,
		Recipient:    recipient,
		ContentHash:  contentHash,
		PayloadSize:  len(plaintext),
		Ciphertext:   ciphertext,
		TTLSeconds:   int(ttl.Seconds()),
	}

	route, err := e.router.SelectRoute(ctx, recipient, opts.Sensitive)
	if err != nil {
		return nil, fmt.Errorf("messaging: select route: %w", err)
	}

	kind := chain.TxSendDirectMessage
	if opts.ToChannel {
		kind = chain.TxPostToChannel
	}
	tx := chain.Tx{Kind: kind, Fields: []chain.Field{
		{Name: "message_id", Value: messageID},
		{Name: "sender", Value: e.localUser},
		{Name: "recipient", Value: recipient},
		{Name: "content_hash", Value: fmt.Sprintf("%x", contentHash)},
		{Name: "payload_size", Value: fmt.Sprintf("%d", len(plaintext))},
	}}
	chatProvider, err := e.gateway.Provider(chain.ChainChat)
	if err != nil {
		return nil, fmt.Errorf("messaging: chat chain provider: %w", err)
	}
	if _, err := chatProvider.Submit(ctx, tx); err != nil {
		return nil, errs.Wrap(errs.ChainSubmitFailed, "messaging: submit ordering transaction", err)
	}

	if err := e.messages.Create(ctx, &storage.Message{
		MessageID:    messageID,
		SenderUserID: e.localUser,
		Recipient:    recipient,
		ContentHash:  contentHash[:],
		PayloadSize:  len(plaintext),
		Ciphertext:   ciphertext,
		TTLSeconds:   int(ttl.Seconds()),
		State:        "Pending",
		CreatedAt:    time.Now(),
	}); err != nil {
		return nil, fmt.Errorf("messaging: persist outgoing message: %w", err)
	}

	wire := ciphertext // the transport-level wire shape is the sealed frame itself
	if err := e.sender.Send(ctx, route, recipient, wire); err != nil {
		if errs.Is(err, errs.Backpressure) && e.offline != nil {
			if qerr := e.offline.Enqueue(ctx, messageID, wire, ttl, time.Now()); qerr != nil {
				return nil, fmt.Errorf("messaging: enqueue offline after backpressure: %w", qerr)
			}
			return &env, nil
		}
		return nil, fmt.Errorf("messaging: wire delivery: %w", err)
	}

	return &env, nil
}

// ReceiveResult reports what Receive did with an inbound envelope.
type ReceiveResult struct {
	Delivered []Envelope // envelopes now deliverable in chain_sequence order
	Held      bool       // true if env was buffered awaiting ordering or a sequence gap
}

// Receive implements spec.md §4.4's Receive sequence. It opens the
// envelope and checks its content hash, but does not return the
// decrypted plaintext: ReceiveResult carries only the envelopes, with
// their ciphertext.
func (e *Engine) Receive(ctx context.Context, env Envelope) (*ReceiveResult, error) {
	sec, err := e.sessions.Acquire(ctx, e.localUser, env.SenderUserID)
	if err != nil {
		return nil, errs.Wrap(errs.HandshakeRejected, "messaging: acquire session for inbound envelope", err)
	}

	plaintext, err := sec.Open(env.Ciphertext, env.ContentHash[:])
	if err != nil {
		return nil, fmt.Errorf("messaging: open envelope: %w", err)
	}
	if ComputeContentHash(plaintext) != env.ContentHash {
		return nil, errs.New(errs.ContentHashMismatch, "messaging: decrypted content does not match content_hash")
	}

	chatProvider, err := e.gateway.Provider(chain.ChainChat)
	if err != nil {
		return nil, fmt.Errorf("messaging: chat chain provider: %w", err)
	}
	txs, err := chatProvider.QueryByKey(ctx, env.MessageID)
	if err != nil {
		return nil, fmt.Errorf("messaging: query ordering transaction: %w", err)
	}
	if len(txs) == 0 {
		// No ordering transaction yet: the caller should re-deliver this
		// same envelope once one appears, or drop it as Unordered after
		// DefaultOrderingHoldTimeout elapses (see OrderManager.ExpireHolds).
		return &ReceiveResult{Held: true}, nil
	}

	// env.ChainSequence is filled in by the caller from the ordering
	// transaction's block-inclusion position before Receive is invoked;
	// Receive only needs to know that a transaction now exists.
	delivered := e.order.Accept(env, time.Now())
	if delivered == nil {
		return &ReceiveResult{Held: true}, nil
	}
	return &ReceiveResult{Delivered: delivered}, nil
}

// ExpireUnordered drops envelopes that have been held past the
// ordering-hold timeout, per spec.md §4.4 Receive step 3.
func (e *Engine) ExpireUnordered(now time.Time) []Envelope {
	return e.order.ExpireHolds(now, e.orderingHoldTimeout)
}
