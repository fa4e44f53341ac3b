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

// Package ethereum adapts the teacher's crypto/chain/ethereum
// EnhancedProvider (go-ethereum ethclient, retry-with-backoff,
// confirmation counting by comparing receipt.BlockNumber against the
// chain head) into dchat's chat-chain provider: identity and messaging
// transactions (RegisterUser, SendDirectMessage, CreateChannel,
// PostToChannel, SubmitDeliveryProof, GovernanceVote) anchored on an
// EVM chain via calldata on a fixed anchor contract address.
package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/chikuno/dchat/chain"
	"github.com/chikuno/dchat/config"
)

// Client is the subset of *ethclient.Client this provider needs,
// narrowed the way the teacher's EthClient interface narrows it so
// tests can substitute a fake.
type Client interface {
	NetworkID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// Signer produces a signed transaction for the anchor call; abstracted
// so tests and the currency-bridge flow can swap in any bind.SignerFn.
type Signer func(addr common.Address, tx *types.Transaction) (*types.Transaction, error)

type pending struct {
	txHash common.Hash
	query  []byte // calldata, kept so QueryByKey can linear-scan submissions
	key    string
}

// Provider is dchat's chat-chain chain.Provider implementation.
type Provider struct {
	client  Client
	cfg     *config.BlockchainConfig
	from    common.Address
	sign    Signer
	anchor  common.Address

	mu      sync.RWMutex
	byTxID  map[string]pending
}

// NewProvider builds a chat-chain provider around an already-dialed
// client (ethclient.Client satisfies Client).
func NewProvider(client Client, cfg *config.BlockchainConfig, from common.Address, anchor common.Address, sign Signer) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ethereum: invalid config: %w", err)
	}
	return &Provider{
		client: client,
		cfg:    cfg,
		from:   from,
		sign:   sign,
		anchor: anchor,
		byTxID: make(map[string]pending),
	}, nil
}

// Role implements chain.Provider.
func (p *Provider) Role() chain.Role { return chain.ChainChat }

// Submit implements chain.Provider: it encodes tx's canonical JSON as
// calldata on a zero-value transaction to the anchor address and
// returns the canonical tx_id immediately after local signing/broadcast
// acceptance, without waiting for a receipt.
func (p *Provider) Submit(ctx context.Context, tx chain.Tx) (string, error) {
	txID, err := chain.TxID(tx)
	if err != nil {
		return "", fmt.Errorf("ethereum: compute tx_id: %w", err)
	}
	calldata, err := chain.CanonicalJSON(tx)
	if err != nil {
		return "", err
	}

	var nonce uint64
	var gasPrice *big.Int
	err = retryWithBackoff(ctx, p.cfg.MaxRetries, p.cfg.RetryDelay, func() error {
		n, err := p.client.PendingNonceAt(ctx, p.from)
		if err != nil {
			return err
		}
		nonce = n
		gp, err := p.client.SuggestGasPrice(ctx)
		if err != nil {
			return err
		}
		if gp.Cmp(p.cfg.MaxGasPrice) > 0 {
			gp = p.cfg.MaxGasPrice
		}
		gasPrice = gp
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ethereum: prepare submission: %w", err)
	}

	gas, err := p.client.EstimateGas(ctx, ethereum.CallMsg{From: p.from, To: &p.anchor, Data: calldata})
	if err != nil {
		gas = p.cfg.GasLimit
	}
	gas += gas / 5
	if gas > p.cfg.GasLimit {
		gas = p.cfg.GasLimit
	}

	unsigned := types.NewTransaction(nonce, p.anchor, big.NewInt(0), gas, gasPrice, calldata)
	signed, err := p.sign(p.from, unsigned)
	if err != nil {
		return "", fmt.Errorf("ethereum: sign anchor tx: %w", err)
	}

	err = retryWithBackoff(ctx, p.cfg.MaxRetries, p.cfg.RetryDelay, func() error {
		return p.client.SendTransaction(ctx, signed)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", chain.ErrTxFailed, err)
	}

	p.mu.Lock()
	p.byTxID[txID] = pending{txHash: signed.Hash(), query: calldata, key: firstField(tx)}
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
		return chain.TxStatus{}, fmt.Errorf("ethereum: unknown tx_id %s", txID)
	}

	receipt, err := p.client.TransactionReceipt(ctx, rec.txHash)
	if err != nil {
		if err == ethereum.NotFound {
			return chain.TxStatus{Kind: chain.StatusPending}, nil
		}
		return chain.TxStatus{}, err
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return chain.TxStatus{Kind: chain.StatusFailed, Reason: "reverted"}, nil
	}

	head, err := p.client.BlockNumber(ctx)
	if err != nil {
		return chain.TxStatus{}, err
	}
	confirmations := uint64(0)
	blockNum := receipt.BlockNumber.Uint64()
	if head >= blockNum {
		confirmations = head - blockNum + 1
	}
	return chain.TxStatus{Kind: chain.StatusConfirmed, BlockHeight: blockNum, Confirmations: confirmations}, nil
}

// AwaitConfirmation implements chain.Provider, blocking cooperatively
// (honoring ctx cancellation) until kBlocks confirmations or deadline.
func (p *Provider) AwaitConfirmation(ctx context.Context, txID string, kBlocks uint64, deadline time.Duration) (chain.Receipt, error) {
	if kBlocks == 0 {
		kBlocks = chain.DefaultConfirmations
	}
	if deadline <= 0 {
		deadline = chain.DefaultAwaitDeadline
	}
	waitCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	ticker := time.NewTicker(3 * time.Second)
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

// QueryByKey implements chain.Provider with a linear scan of submitted
// transactions sharing a first-field key (e.g. sender user_id), enough
// for the messaging engine's ordering needs without a real indexer.
func (p *Provider) QueryByKey(ctx context.Context, key string) ([]chain.Tx, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []chain.Tx
	for _, rec := range p.byTxID {
		if rec.key != key {
			continue
		}
		out = append(out, chain.Tx{Fields: []chain.Field{{Name: "raw", Value: string(rec.query)}}})
	}
	return out, nil
}

// LatestFinalizedHeight implements chain.Provider.
func (p *Provider) LatestFinalizedHeight(ctx context.Context) (uint64, error) {
	head, err := p.client.BlockNumber(ctx)
	if err != nil {
		return 0, err
	}
	// Status counts the including block itself as one confirmation, so
	// the block DefaultConfirmations-1 below head is already final.
	if head+1 < chain.DefaultConfirmations {
		return 0, nil
	}
	return head + 1 - chain.DefaultConfirmations, nil
}

// SignerFromKey adapts a bind.TransactOpts-style signer into the
// Signer func type this provider expects.
func SignerFromKey(opts *bind.TransactOpts, signerFn bind.SignerFn) Signer {
	return func(addr common.Address, tx *types.Transaction) (*types.Transaction, error) {
		return signerFn(addr, tx)
	}
}

func retryWithBackoff(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func() error) error {
	delay := baseDelay
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if i < maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}
	return lastErr
}
