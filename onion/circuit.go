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

package onion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chikuno/dchat/errs"
)

// State is a circuit's lifecycle position.
type State int

const (
	StateBuilding State = iota
	StateOpen
	StateDegraded
	StateTeardown
)

func (s State) String() string {
	switch s {
	case StateBuilding:
		return "Building"
	case StateOpen:
		return "Open"
	case StateDegraded:
		return "Degraded"
	case StateTeardown:
		return "Teardown"
	default:
		return "Unknown"
	}
}

// HeartbeatProber checks whether a hop is still responsive.
type HeartbeatProber interface {
	Heartbeat(ctx context.Context, hop Hop) bool
}

// Circuit is one built multi-hop path.
type Circuit struct {
	mu sync.Mutex

	id       string
	hops     []Hop
	state    State
	failures map[string]int // fingerprint -> consecutive heartbeat failures
	createdAt time.Time
}

// NewCircuit builds a circuit through hops (outermost hop first) and
// marks it Open; hops is assumed already selected for diversity via
// SelectHops.
func NewCircuit(id string, hops []Hop) (*Circuit, error) {
	if len(hops) == 0 {
		return nil, fmt.Errorf("onion: circuit requires at least one hop")
	}
	return &Circuit{
		id:        id,
		hops:      hops,
		state:     StateOpen,
		failures:  make(map[string]int),
		createdAt: time.Now(),
	}, nil
}

// ID returns the circuit's identifier.
func (c *Circuit) ID() string { return c.id }

// Hops returns the ordered hop list.
func (c *Circuit) Hops() []Hop {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Hop, len(c.hops))
	copy(out, c.hops)
	return out
}

// State returns the circuit's current lifecycle state.
func (c *Circuit) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Send layer-encrypts payload through the circuit's hops.
func (c *Circuit) Send(payload []byte) ([]byte, error) {
	c.mu.Lock()
	state := c.state
	hops := c.hops
	c.mu.Unlock()
	if state == StateTeardown {
		return nil, errs.New(errs.PeerUnreachable, "circuit is torn down")
	}
	return BuildOnion(hops, payload)
}

// SendDummy builds a cover-traffic cell: a cellDummy-typed layer that
// carries no application payload and that receivers discard on sight,
// indistinguishable on the wire from a real data cell.
func (c *Circuit) SendDummy() ([]byte, error) {
	c.mu.Lock()
	state := c.state
	hops := c.hops
	c.mu.Unlock()
	if state == StateTeardown {
		return nil, errs.New(errs.PeerUnreachable, "circuit is torn down")
	}

	inner := layerPlaintext{typ: cellDummy}
	var sealed []byte
	for i := len(hops) - 1; i >= 0; i-- {
		encoded := encodeLayer(inner)
		ct, err := sealForHop(hops[i], encoded)
		if err != nil {
			return nil, err
		}
		sealed = ct
		if i > 0 {
			inner = layerPlaintext{nextHop: hops[i].Fingerprint, typ: cellDummy, payload: sealed}
		}
	}
	return padToCell(sealed)
}

// Heartbeat probes every hop; a failing hop moves the circuit to
// Degraded on its first failure and to Teardown on its second
// consecutive failure (per-hop), matching spec.md §4.3's two-strike rule.
func (c *Circuit) Heartbeat(ctx context.Context, prober HeartbeatProber) error {
	c.mu.Lock()
	hops := append([]Hop(nil), c.hops...)
	c.mu.Unlock()

	anyFailed := false
	for _, h := range hops {
		alive := prober.Heartbeat(ctx, h)
		key := string(h.Fingerprint)

		c.mu.Lock()
		if alive {
			c.failures[key] = 0
			c.mu.Unlock()
			continue
		}
		c.failures[key]++
		failCount := c.failures[key]
		c.mu.Unlock()

		anyFailed = true
		if failCount >= 2 {
			c.Teardown()
			return errs.New(errs.PeerUnreachable, fmt.Sprintf("hop %x failed heartbeat twice", h.Fingerprint))
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if anyFailed && c.state == StateOpen {
		c.state = StateDegraded
	} else if !anyFailed && c.state == StateDegraded {
		c.state = StateOpen
	}
	return nil
}

// Teardown marks the circuit closed. It sends nothing itself: the
// zeroing-signal cell (a reserved cellTeardown cell addressed to the
// first hop) is built by TeardownCell, and nothing in this package
// sends it.
func (c *Circuit) Teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateTeardown
}

// TeardownCell builds the zeroing-signal cell sent to the first hop.
func (c *Circuit) TeardownCell() ([]byte, error) {
	c.mu.Lock()
	hops := c.hops
	c.mu.Unlock()
	inner := layerPlaintext{typ: cellTeardown}
	var sealed []byte
	for i := len(hops) - 1; i >= 0; i-- {
		encoded := encodeLayer(inner)
		var err error
		sealed, err = sealForHop(hops[i], encoded)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			inner = layerPlaintext{nextHop: hops[i].Fingerprint, typ: cellTeardown, payload: sealed}
		}
	}
	return padToCell(sealed)
}
