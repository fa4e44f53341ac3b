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

package health

import (
	"context"
	"fmt"

	"github.com/chikuno/dchat/chain"
	"github.com/chikuno/dchat/dht"
	"github.com/chikuno/dchat/onion"
	"github.com/chikuno/dchat/peer"
)

// DchatDeps bundles the live components a node's /health endpoint
// reports on: routing table size, open onion circuits, peer pool
// occupancy, and which chain roles have a registered provider.
type DchatDeps struct {
	Table      *dht.Table
	Onion      *onion.Manager
	Peers      *peer.Pool
	Chain      *chain.Gateway
	MaxPeers   int
	MinDHTSize int
}

// RegisterDchatChecks wires deps into hc as named checks: "dht",
// "onion", "peers", and "chain". Each reports unhealthy only when the
// component is missing or in a state that degrades the node's ability
// to serve traffic; falling table size below MinDHTSize or peer pool
// occupancy at or above MaxPeers are treated as conditions a human would
// want raised, not build-time assertions.
func RegisterDchatChecks(hc *HealthChecker, deps DchatDeps) {
	hc.RegisterCheck("dht", func(ctx context.Context) error {
		if deps.Table == nil {
			return fmt.Errorf("dht table not initialized")
		}
		if size := deps.Table.Size(); deps.MinDHTSize > 0 && size < deps.MinDHTSize {
			return fmt.Errorf("routing table has %d records, below minimum %d", size, deps.MinDHTSize)
		}
		return nil
	})

	hc.RegisterCheck("onion", func(ctx context.Context) error {
		if deps.Onion == nil {
			return fmt.Errorf("onion circuit manager not initialized")
		}
		return nil
	})

	hc.RegisterCheck("peers", func(ctx context.Context) error {
		if deps.Peers == nil {
			return fmt.Errorf("peer pool not initialized")
		}
		if deps.MaxPeers > 0 && deps.Peers.Len() >= deps.MaxPeers {
			return fmt.Errorf("peer pool at capacity: %d/%d", deps.Peers.Len(), deps.MaxPeers)
		}
		return nil
	})

	hc.RegisterCheck("chain", func(ctx context.Context) error {
		if deps.Chain == nil {
			return fmt.Errorf("chain gateway not initialized")
		}
		if len(deps.Chain.Roles()) == 0 {
			return fmt.Errorf("no chain providers registered")
		}
		return nil
	})
}

// DchatStatusReport summarizes DchatDeps for JSON serving, independent
// of the pass/fail CheckFunc view CheckAll gives per-component.
type DchatStatusReport struct {
	DHTTableSize  int      `json:"dht_table_size"`
	OpenCircuits  int      `json:"open_circuits"`
	PeerPoolSize  int      `json:"peer_pool_size"`
	ChainRoles    []string `json:"chain_roles"`
}

// Snapshot builds a DchatStatusReport from deps for embedding in a
// richer status endpoint than the plain healthy/unhealthy CheckResult
// view.
func (deps DchatDeps) Snapshot() DchatStatusReport {
	report := DchatStatusReport{}
	if deps.Table != nil {
		report.DHTTableSize = deps.Table.Size()
	}
	if deps.Onion != nil {
		report.OpenCircuits = deps.Onion.OpenCircuits()
	}
	if deps.Peers != nil {
		report.PeerPoolSize = deps.Peers.Len()
	}
	if deps.Chain != nil {
		for _, r := range deps.Chain.Roles() {
			report.ChainRoles = append(report.ChainRoles, string(r))
		}
	}
	return report
}
