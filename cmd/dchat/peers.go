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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chikuno/dchat/peer"
)

func newPeersCmd() *cobra.Command {
	var maxPeers int
	var connect []string

	cmd := &cobra.Command{
		Use:   "peers",
		Short: "Dial one or more peer addresses into a connection pool and report its state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			pool := peer.NewPool(maxPeers, peer.NewWSTransportFactory())

			for i, addr := range connect {
				peerID := fmt.Sprintf("peer-%d", i+1)
				if err := pool.Connect(ctx, peerID, addr); err != nil {
					fmt.Printf("%-10s %-30s FAILED: %v\n", peerID, addr, err)
					continue
				}
				state, _ := pool.State(peerID)
				fmt.Printf("%-10s %-30s %s\n", peerID, addr, state)
			}

			fmt.Printf("pool size: %d/%d\n", pool.Len(), maxPeers)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxPeers, "max-peers", peer.DefaultMaxPeers, "connection pool capacity")
	cmd.Flags().StringSliceVar(&connect, "connect", nil, "peer address (host:port) to dial, repeatable")
	return cmd
}
