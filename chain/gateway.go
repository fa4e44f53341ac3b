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

package chain

import (
	"fmt"
	"sync"
)

// Gateway multiplexes Providers by Role, mirroring the teacher's
// crypto/chain.ChainRegistry but keyed by logical role (chat/currency)
// instead of an open ChainType set, since dchat only ever anchors to
// exactly two chains.
type Gateway struct {
	mu        sync.RWMutex
	providers map[Role]Provider
}

// NewGateway constructs an empty Gateway.
func NewGateway() *Gateway {
	return &Gateway{providers: make(map[Role]Provider)}
}

// Register adds a provider for its own Role.
func (g *Gateway) Register(p Provider) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	role := p.Role()
	if _, exists := g.providers[role]; exists {
		return fmt.Errorf("%w: %s", ErrRoleExists, role)
	}
	g.providers[role] = p
	return nil
}

// Provider returns the provider registered for role.
func (g *Gateway) Provider(role Role) (Provider, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.providers[role]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoleNotRegistered, role)
	}
	return p, nil
}

// Roles lists every registered role.
func (g *Gateway) Roles() []Role {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Role, 0, len(g.providers))
	for r := range g.providers {
		out = append(out, r)
	}
	return out
}
