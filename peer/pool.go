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

// Package peer manages the connection pool, NAT traversal, and
// trust-scaled rate limiting underlying every other subsystem's wire
// traffic, adapted from the teacher's
// pkg/agent/transport/websocket.WSTransport (gorilla/websocket
// persistent-connection client) generalized from agent-RPC
// request/response into the fire-and-forget envelope delivery model of
// spec.md §4.7.
package peer

import (
	"container/list"
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// DefaultMaxPeers is spec.md §6's connection-pool cap.
const DefaultMaxPeers = 100

// DefaultHealthInterval is spec.md §4.7's per-connection probe cadence.
const DefaultHealthInterval = 30 * time.Second

// MaxConsecutiveFailures marks a peer Disconnected after this many
// consecutive probe failures.
const MaxConsecutiveFailures = 3

// BackoffBase/BackoffCap bound the reconnection exponential backoff.
const (
	BackoffBase = 2 * time.Second
	BackoffCap  = 5 * time.Minute
)

// ConnState mirrors storage.Peer.State.
type ConnState string

const (
	StateUnknown      ConnState = "Unknown"
	StateConnecting   ConnState = "Connecting"
	StateConnected    ConnState = "Connected"
	StateDisconnected ConnState = "Disconnected"
)

// Transport is the fire-and-forget wire primitive a pooled connection
// wraps; a gorilla/websocket-backed implementation lives in
// peer/transport.go, generalized from the teacher's WSTransport.Send's
// request/response shape to envelope delivery with no reply.
type Transport interface {
	Dial(ctx context.Context, address string) error
	Send(ctx context.Context, envelope []byte) error
	Ping(ctx context.Context) error
	Close() error
}

// TransportFactory builds a fresh Transport for a peer's address.
type TransportFactory func(address string) Transport

type conn struct {
	peerID      string
	address     string
	transport   Transport
	state       ConnState
	failures    int
	backoff     time.Duration
	lastAttempt time.Time
}

// Pool is an LRU-bounded connection pool with health probing and
// exponential-backoff reconnection.
type Pool struct {
	mu      sync.Mutex
	maxSize int
	factory TransportFactory

	order *list.List               // front = most recently used
	elems map[string]*list.Element // peerID -> list element holding *conn
}

// NewPool constructs a pool bounded at maxSize (DefaultMaxPeers if <= 0).
func NewPool(maxSize int, factory TransportFactory) *Pool {
	if maxSize <= 0 {
		maxSize = DefaultMaxPeers
	}
	return &Pool{
		maxSize: maxSize,
		factory: factory,
		order:   list.New(),
		elems:   make(map[string]*list.Element),
	}
}

// Connect dials peerID at address, evicting the least-recently-used
// entry if the pool is at capacity.
func (p *Pool) Connect(ctx context.Context, peerID, address string) error {
	p.mu.Lock()
	if el, ok := p.elems[peerID]; ok {
		p.order.MoveToFront(el)
		p.mu.Unlock()
		return nil
	}
	if p.order.Len() >= p.maxSize {
		p.evictLRULocked()
	}
	c := &conn{peerID: peerID, address: address, transport: p.factory(address), state: StateConnecting}
	el := p.order.PushFront(c)
	p.elems[peerID] = el
	p.mu.Unlock()

	if err := c.transport.Dial(ctx, address); err != nil {
		p.mu.Lock()
		c.state = StateDisconnected
		p.mu.Unlock()
		return fmt.Errorf("peer: dial %s: %w", peerID, err)
	}
	p.mu.Lock()
	c.state = StateConnected
	p.mu.Unlock()
	return nil
}

// evictLRULocked removes the least-recently-used connection; caller
// holds p.mu.
func (p *Pool) evictLRULocked() {
	back := p.order.Back()
	if back == nil {
		return
	}
	c := back.Value.(*conn)
	_ = c.transport.Close()
	p.order.Remove(back)
	delete(p.elems, c.peerID)
}

// Send forwards envelope to peerID's live transport, marking it
// most-recently-used.
func (p *Pool) Send(ctx context.Context, peerID string, envelope []byte) error {
	p.mu.Lock()
	el, ok := p.elems[peerID]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("peer: %s not connected", peerID)
	}
	p.order.MoveToFront(el)
	c := el.Value.(*conn)
	p.mu.Unlock()

	return c.transport.Send(ctx, envelope)
}

// State reports a peer's current connection state.
func (p *Pool) State(peerID string) (ConnState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.elems[peerID]
	if !ok {
		return StateUnknown, false
	}
	return el.Value.(*conn).state, true
}

// Probe runs one health check against peerID. Three consecutive
// failures mark it Disconnected and record the next reconnect delay
// from nextBackoff; Probe does not reconnect the peer itself.
func (p *Pool) Probe(ctx context.Context, peerID string) error {
	p.mu.Lock()
	el, ok := p.elems[peerID]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("peer: %s not connected", peerID)
	}
	c := el.Value.(*conn)
	p.mu.Unlock()

	err := c.transport.Ping(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		c.failures++
		if c.failures >= MaxConsecutiveFailures {
			c.state = StateDisconnected
			c.backoff = nextBackoff(c.backoff)
			c.lastAttempt = time.Now()
		}
		return err
	}
	c.failures = 0
	c.state = StateConnected
	return nil
}

// nextBackoff doubles the previous backoff (starting at BackoffBase),
// capped at BackoffCap, with +/-20% jitter.
func nextBackoff(previous time.Duration) time.Duration {
	next := previous * 2
	if next < BackoffBase {
		next = BackoffBase
	}
	if next > BackoffCap {
		next = BackoffCap
	}
	jitter := time.Duration(rand.Int63n(int64(next) / 5)) // up to 20%
	if rand.Intn(2) == 0 {
		return next + jitter
	}
	return next - jitter
}

// Remove closes and evicts peerID regardless of LRU order.
func (p *Pool) Remove(peerID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.elems[peerID]
	if !ok {
		return
	}
	c := el.Value.(*conn)
	_ = c.transport.Close()
	p.order.Remove(el)
	delete(p.elems, peerID)
}

// Len returns the number of pooled connections.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.order.Len()
}
