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

package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chikuno/dchat/dht"
)

// parseNodeID accepts either a hex-encoded 32-byte node ID or an
// arbitrary string, which is hashed down to one the same way a node
// derives its own ID from a stable identity.
func parseNodeID(s string) (dht.NodeID, error) {
	var id dht.NodeID
	if raw, err := hex.DecodeString(s); err == nil && len(raw) == len(id) {
		copy(id[:], raw)
		return id, nil
	}
	id = sha256.Sum256([]byte(s))
	return id, nil
}

func newDHTLookupCmd() *cobra.Command {
	var self string
	var target string
	var count int
	var seed []string

	cmd := &cobra.Command{
		Use:   "dht-lookup",
		Short: "Seed a local routing table and report the closest records to a target",
		RunE: func(cmd *cobra.Command, args []string) error {
			selfID, err := parseNodeID(self)
			if err != nil {
				return fmt.Errorf("parse --self: %w", err)
			}
			targetID, err := parseNodeID(target)
			if err != nil {
				return fmt.Errorf("parse --target: %w", err)
			}

			table := dht.NewTable(selfID, dht.DefaultK, nil, nil)
			ctx := context.Background()

			for i, addr := range seed {
				peerID := fmt.Sprintf("seed-%d", i+1)
				nodeID, err := parseNodeID(peerID)
				if err != nil {
					return err
				}
				table.Insert(ctx, dht.Record{
					NodeID:   nodeID,
					PeerID:   peerID,
					Address:  addr,
					LastSeen: time.Now(),
				})
			}

			if table.Size() == 0 {
				// No --seed flags given: generate a handful of random
				// records so the command has something to rank, since a
				// standalone process has no network Querier to fall back
				// to for FIND_NODE.
				for i := 0; i < count*2; i++ {
					var raw [32]byte
					if _, err := rand.Read(raw[:]); err != nil {
						return fmt.Errorf("generate demo record: %w", err)
					}
					table.Insert(ctx, dht.Record{
						NodeID:   raw,
						PeerID:   fmt.Sprintf("demo-%d", i+1),
						Address:  fmt.Sprintf("127.0.0.1:%d", 30000+i),
						LastSeen: time.Now(),
					})
				}
			}

			fmt.Printf("self:         %s\n", selfID)
			fmt.Printf("target:       %s\n", targetID)
			fmt.Printf("table size:   %d\n", table.Size())
			fmt.Println("closest records:")
			for _, rec := range table.Closest(targetID, count) {
				fmt.Printf("  %-10s %-20s %s\n", rec.PeerID, rec.Address, rec.NodeID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&self, "self", "local-node", "this node's identity (hashed into a node_id unless already 32-byte hex)")
	cmd.Flags().StringVar(&target, "target", "lookup-target", "the node_id or identity to find closest records to")
	cmd.Flags().IntVar(&count, "count", 5, "number of closest records to return")
	cmd.Flags().StringSliceVar(&seed, "seed", nil, "address (host:port) to seed into the table, repeatable")
	return cmd
}
