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
	"crypto/ed25519"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/chikuno/dchat/bridge"
	"github.com/chikuno/dchat/chain"
)

// bridgeDemoProvider is an in-memory chain.Provider, one instance per
// Role, used to drive a full Prepare/Finalize cycle without a live
// ethereum or solana RPC endpoint behind it.
type bridgeDemoProvider struct {
	mu   sync.Mutex
	role chain.Role
	txs  map[string]chain.Tx
	fail bool
}

func newBridgeDemoProvider(role chain.Role, fail bool) *bridgeDemoProvider {
	return &bridgeDemoProvider{role: role, txs: make(map[string]chain.Tx), fail: fail}
}

func (p *bridgeDemoProvider) Role() chain.Role { return p.role }

func (p *bridgeDemoProvider) Submit(ctx context.Context, tx chain.Tx) (string, error) {
	if p.fail {
		return "", fmt.Errorf("%s leg rejected by demo provider", p.role)
	}
	txID, err := chain.TxID(tx)
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	p.txs[txID] = tx
	p.mu.Unlock()
	return txID, nil
}

func (p *bridgeDemoProvider) Status(ctx context.Context, txID string) (chain.TxStatus, error) {
	return chain.TxStatus{Kind: chain.StatusConfirmed, BlockHeight: 1, Confirmations: chain.DefaultConfirmations}, nil
}

func (p *bridgeDemoProvider) AwaitConfirmation(ctx context.Context, txID string, kBlocks uint64, deadline time.Duration) (chain.Receipt, error) {
	return chain.Receipt{TxID: txID, BlockHeight: 1, Confirmations: chain.DefaultConfirmations}, nil
}

func (p *bridgeDemoProvider) QueryByKey(ctx context.Context, key string) ([]chain.Tx, error) {
	return nil, nil
}

func (p *bridgeDemoProvider) LatestFinalizedHeight(ctx context.Context) (uint64, error) {
	return 1, nil
}

func newBridgeStatusCmd() *cobra.Command {
	var failChat, failCurrency bool

	cmd := &cobra.Command{
		Use:   "bridge-status",
		Short: "Run a Prepare/Finalize cycle against in-memory chain legs and report the resulting status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			chatProvider := newBridgeDemoProvider(chain.ChainChat, failChat)
			currencyProvider := newBridgeDemoProvider(chain.ChainCurrency, failCurrency)
			gateway := chain.NewGateway()
			if err := gateway.Register(chatProvider); err != nil {
				return err
			}
			if err := gateway.Register(currencyProvider); err != nil {
				return err
			}

			_, validatorKey, err := ed25519.GenerateKey(nil)
			if err != nil {
				return fmt.Errorf("generate demo validator key: %w", err)
			}
			validators := bridge.NewValidatorSet([]ed25519.PublicKey{validatorKey.Public().(ed25519.PublicKey)})
			coordinator := bridge.NewCoordinator(gateway, validators)

			chatTx := chain.Tx{Kind: chain.TxBridgeInitiate, Fields: []chain.Field{{Name: "leg", Value: "chat"}}}
			currencyTx := chain.Tx{Kind: chain.TxBridgeInitiate, Fields: []chain.Field{{Name: "leg", Value: "currency"}}}

			bt, err := coordinator.Prepare(ctx, chatTx, currencyTx)
			if err != nil {
				fmt.Printf("bridge_id: %s\n", bt.ID)
				fmt.Printf("status:    %s\n", bt.Status)
				fmt.Printf("reason:    %s\n", bt.Reason)
				return nil
			}

			if ferr := coordinator.Finalize(ctx, bt, nil, nil); ferr != nil {
				fmt.Printf("bridge_id: %s\n", bt.ID)
				fmt.Printf("status:    %s\n", bt.Status)
				fmt.Printf("reason:    %s\n", bt.Reason)
				return nil
			}

			fmt.Printf("bridge_id:     %s\n", bt.ID)
			fmt.Printf("chat_tx_id:    %s\n", bt.ChatTxID)
			fmt.Printf("currency_tx_id: %s\n", bt.CurrencyTxID)
			fmt.Printf("status:        %s\n", bt.Status)
			return nil
		},
	}

	cmd.Flags().BoolVar(&failChat, "fail-chat", false, "simulate the chat leg being rejected at prepare time")
	cmd.Flags().BoolVar(&failCurrency, "fail-currency", false, "simulate the currency leg being rejected at prepare time")
	return cmd
}
