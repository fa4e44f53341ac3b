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

// Package solana adapts the teacher's did/solana.SolanaClient
// (gagliardetto/solana-go, rpc.Client.SendTransaction +
// GetSignatureStatuses polling against rpc.ConfirmationStatusFinalized)
// into dchat's currency-chain provider: StakeOp, Transfer,
// BridgeInitiate, BridgeFinalize transactions memo-anchored on Solana.
package solana

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/chikuno/dchat/chain"
)

// RPCClient narrows *rpc.Client to what this provider needs.
type RPCClient interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	GetSlot(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
}

type pending struct {
	sig solana.Signature
	key string
}

// Provider is dchat's currency-chain chain.Provider implementation.
type Provider struct {
	client    RPCClient
	feePayer  solana.PrivateKey
	memoProg  solana.PublicKey
	maxRetries int

	mu     sync.RWMutex
	byTxID map[string]pending
}

// NewProvider builds a currency-chain provider. memoProgram is the
// on-chain memo program address transactions' canonical JSON is
// attached to (the same memo-instruction pattern Solana programs use
// for off-chain-verifiable data, in place of a bespoke smart contract).
func NewProvider(client RPCClient, feePayer solana.PrivateKey, memoProgram solana.PublicKey, maxRetries int) *Provider {
	if maxRetries <= 0 {
		maxRetries = 30
	}
	return &Provider{
		client:     client,
		feePayer:   feePayer,
		memoProg:   memoProgram,
		maxRetries: maxRetries,
		byTxID:     make(map[string]pending),
	}
}

// Role implements chain.Provider.
func (p *Provider) Role() chain.Role { return chain.ChainCurrency }

// Submit implements chain.Provider: the canonical JSON body is carried
// as a memo instruction on a transaction signed by the fee payer.
func (p *Provider) Submit(ctx context.Context, tx chain.Tx) (string, error) {
	txID, err := chain.TxID(tx)
	if err != nil {
		return "", fmt.Errorf("solana: compute tx_id: %w", err)
	}
	memo, err := chain.CanonicalJSON(tx)
	if err != nil {
		return "", err
	}

	recent, err := p.client.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return "", fmt.Errorf("solana: fetch blockhash: %w", err)
	}

	built, err := solana.NewTransaction(
		[]solana.Instruction{
			solana.NewInstruction(p.memoProg, solana.AccountMetaSlice{}, memo),
		},
		recent.Value.Blockhash,
		solana.TransactionPayer(p.feePayer.PublicKey()),
	)
	if err != nil {
		return "", fmt.Errorf("solana: build transaction: %w", err)
	}
	if _, err := built.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(p.feePayer.PublicKey()) {
			return &p.feePayer
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("solana: sign transaction: %w", err)
	}

	sig, err := p.client.SendTransaction(ctx, built)
	if err != nil {
		return "", fmt.Errorf("%w: %v", chain.ErrTxFailed, err)
	}

	p.mu.Lock()
	p.byTxID[txID] = pending{sig: sig, key: firstField(tx)}
	p.mu.Unlock()
	return txID, nil
}

func firstField(tx chain.Tx) string {
	if len(tx.Fields) == 0 {
		return ""
	}
	return tx.Fields[0].Value
}

// Status implements chain.Provider.
func (p *Provider) Status(ctx context.Context, txID string) (chain.TxStatus, error) {
	p.mu.RLock()
	rec, ok := p.byTxID[txID]
	p.mu.RUnlock()
	if !ok {
		return chain.TxStatus{}, fmt.Errorf("solana: unknown tx_id %s", txID)
	}

	result, err := p.client.GetSignatureStatuses(ctx, false, rec.sig)
	if err != nil {
		return chain.TxStatus{}, err
	}
	if result == nil || result.Value == nil || len(result.Value) == 0 || result.Value[0] == nil {
		return chain.TxStatus{Kind: chain.StatusPending}, nil
	}
	s := result.Value[0]
	if s.Err != nil {
		return chain.TxStatus{Kind: chain.StatusFailed, Reason: fmt.Sprintf("%v", s.Err)}, nil
	}

	confirmations := uint64(0)
	if s.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
		confirmations = chain.DefaultConfirmations
	} else if s.ConfirmationStatus == rpc.ConfirmationStatusConfirmed {
		confirmations = 1
	}
	return chain.TxStatus{Kind: chain.StatusConfirmed, BlockHeight: s.Slot, Confirmations: confirmations}, nil
}

// AwaitConfirmation implements chain.Provider by polling Status every
// 2 seconds, mirroring did/solana.SolanaClient.waitForConfirmation.
func (p *Provider) AwaitConfirmation(ctx context.Context, txID string, kBlocks uint64, deadline time.Duration) (chain.Receipt, error) {
	if kBlocks == 0 {
		kBlocks = chain.DefaultConfirmations
	}
	if deadline <= 0 {
		deadline = chain.DefaultAwaitDeadline
	}
	waitCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-waitCtx.Done():
			return chain.Receipt{}, chain.ErrTimeout
		case <-ticker.C:
			status, err := p.Status(ctx, txID)
			if err != nil {
				return chain.Receipt{}, err
			}
			switch status.Kind {
			case chain.StatusFailed:
				return chain.Receipt{}, fmt.Errorf("%w: %s", chain.ErrTxFailed, status.Reason)
			case chain.StatusConfirmed:
				if status.Confirmations >= kBlocks {
					return chain.Receipt{TxID: txID, BlockHeight: status.BlockHeight, Confirmations: status.Confirmations}, nil
				}
			}
		}
	}
}

// QueryByKey implements chain.Provider with a linear scan, same
// trade-off as the ethereum provider: enough for dchat's own ordering
// needs without standing up a Solana program indexer.
func (p *Provider) QueryByKey(ctx context.Context, key string) ([]chain.Tx, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []chain.Tx
	for txID, rec := range p.byTxID {
		if rec.key != key {
			continue
		}
		out = append(out, chain.Tx{Fields: []chain.Field{{Name: "tx_id", Value: txID}}})
	}
	return out, nil
}

// LatestFinalizedHeight implements chain.Provider as the current slot.
func (p *Provider) LatestFinalizedHeight(ctx context.Context) (uint64, error) {
	return p.client.GetSlot(ctx, rpc.CommitmentFinalized)
}
