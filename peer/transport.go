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

package peer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSTransport is a gorilla/websocket-backed Transport, adapted from
// the teacher's pkg/agent/transport/websocket.WSTransport: same
// persistent-dialer/timeout shape, but envelopes are fire-and-forget
// (no per-message response channel keyed by message ID) since dchat's
// delivery acknowledgement travels as its own signed proof rather
// than a synchronous RPC reply.
type WSTransport struct {
	mu           sync.Mutex
	conn         *websocket.Conn
	dialTimeout  time.Duration
	writeTimeout time.Duration
	pingTimeout  time.Duration
}

// NewWSTransport constructs a WSTransport with the teacher's default
// timeout values.
func NewWSTransport() *WSTransport {
	return &WSTransport{
		dialTimeout:  30 * time.Second,
		writeTimeout: 30 * time.Second,
		pingTimeout:  10 * time.Second,
	}
}

// NewWSTransportFactory adapts NewWSTransport to the TransportFactory
// shape Pool expects, ignoring the address at construction time since
// WSTransport.Dial takes it explicitly.
func NewWSTransportFactory() TransportFactory {
	return func(address string) Transport {
		return NewWSTransport()
	}
}

// Dial opens the WebSocket connection to address (a ws:// or wss:// URL).
func (t *WSTransport) Dial(ctx context.Context, address string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return nil
	}
	dialer := &websocket.Dialer{HandshakeTimeout: t.dialTimeout}
	conn, resp, err := dialer.DialContext(ctx, address, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("peer: websocket dial %s failed (HTTP %d): %w", address, resp.StatusCode, err)
		}
		return fmt.Errorf("peer: websocket dial %s failed: %w", address, err)
	}
	t.conn = conn
	return nil
}

// Send writes envelope as a single binary WebSocket frame.
func (t *WSTransport) Send(ctx context.Context, envelope []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return fmt.Errorf("peer: transport not connected")
	}
	_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	return t.conn.WriteMessage(websocket.BinaryMessage, envelope)
}

// Ping sends a WebSocket ping control frame and waits for the matching
// pong, the health-probe primitive Pool.Probe drives every
// DefaultHealthInterval.
func (t *WSTransport) Ping(ctx context.Context) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("peer: transport not connected")
	}

	pongCh := make(chan struct{}, 1)
	conn.SetPongHandler(func(string) error {
		select {
		case pongCh <- struct{}{}:
		default:
		}
		return nil
	})

	if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.pingTimeout)); err != nil {
		return fmt.Errorf("peer: send ping: %w", err)
	}

	select {
	case <-pongCh:
		return nil
	case <-time.After(t.pingTimeout):
		return fmt.Errorf("peer: pong timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the underlying WebSocket connection.
func (t *WSTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
