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

	"github.com/chikuno/dchat/dht"
)

// DefaultCircuitLength is the fixed hop count spec.md §4.3 mandates.
const DefaultCircuitLength = 3

// DefaultCoverLambda is the default mean cover-cell rate per circuit.
const DefaultCoverLambda = 0.5

// Manager builds and tracks circuits, selecting hops via SelectHops and
// running a cover-traffic emitter per open circuit.
type Manager struct {
	mu        sync.Mutex
	circuits  map[string]*Circuit
	emitters  map[string]*CoverEmitter
	sink      CellSink
	prober    HeartbeatProber
	asn       dht.ASNLookup
	nextID    uint64
	coverRate float64
}

// NewManager constructs a circuit manager. sink receives cover cells;
// prober answers per-hop heartbeat probes.
func NewManager(sink CellSink, prober HeartbeatProber, asn dht.ASNLookup, coverRate float64) *Manager {
	if coverRate <= 0 {
		coverRate = DefaultCoverLambda
	}
	return &Manager{
		circuits:  make(map[string]*Circuit),
		emitters:  make(map[string]*CoverEmitter),
		sink:      sink,
		prober:    prober,
		asn:       asn,
		coverRate: coverRate,
	}
}

// BuildCircuit selects DefaultCircuitLength hops from candidates,
// constructs a circuit, registers it, and starts its cover-traffic
// emitter under ctx (cancel ctx, or call Teardown, to stop emitting).
func (m *Manager) BuildCircuit(ctx context.Context, candidates []HopCandidate) (*Circuit, error) {
	hops, err := SelectHops(candidates, DefaultCircuitLength, m.asn)
	if err != nil {
		return nil, fmt.Errorf("onion: select hops: %w", err)
	}

	m.mu.Lock()
	m.nextID++
	id := fmt.Sprintf("circuit-%d", m.nextID)
	m.mu.Unlock()

	c, err := NewCircuit(id, hops)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.circuits[id] = c
	m.mu.Unlock()

	if m.sink != nil {
		emitter := NewCoverEmitter(ctx, c, m.sink, m.coverRate)
		m.mu.Lock()
		m.emitters[id] = emitter
		m.mu.Unlock()
	}

	return c, nil
}

// Circuit looks up a tracked circuit by ID.
func (m *Manager) Circuit(id string) (*Circuit, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.circuits[id]
	return c, ok
}

// HeartbeatAll probes every tracked circuit once, tearing down (and
// stopping cover traffic for) any that fail twice in a row.
func (m *Manager) HeartbeatAll(ctx context.Context) {
	m.mu.Lock()
	circuits := make([]*Circuit, 0, len(m.circuits))
	for _, c := range m.circuits {
		circuits = append(circuits, c)
	}
	m.mu.Unlock()

	for _, c := range circuits {
		_ = c.Heartbeat(ctx, m.prober)
		if c.State() == StateTeardown {
			m.Close(c.ID())
		}
	}
}

// OpenCircuits returns the number of circuits currently tracked.
func (m *Manager) OpenCircuits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.circuits)
}

// Close tears down a circuit and stops its cover-traffic emitter.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	c, ok := m.circuits[id]
	emitter, hasEmitter := m.emitters[id]
	delete(m.circuits, id)
	delete(m.emitters, id)
	m.mu.Unlock()

	if ok {
		c.Teardown()
	}
	if hasEmitter {
		emitter.Stop()
	}
}
