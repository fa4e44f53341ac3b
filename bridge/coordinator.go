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

package bridge

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/chikuno/dchat/chain"
)

// Coordinator drives prepare/finalize/compensate across a chat-chain
// and currency-chain chain.Provider pulled from a shared chain.Gateway.
type Coordinator struct {
	gateway    *chain.Gateway
	validators *ValidatorSet
}

// NewCoordinator builds a Coordinator over gateway's registered
// ChainChat/ChainCurrency providers.
func NewCoordinator(gateway *chain.Gateway, validators *ValidatorSet) *Coordinator {
	return &Coordinator{gateway: gateway, validators: validators}
}

// Prepare submits both legs in parallel. If either leg fails to be
// accepted locally, it aborts and reports OneSideFailed/BothSidesFailed
// without waiting on confirmation for either.
func (c *Coordinator) Prepare(ctx context.Context, chatTx, currencyTx chain.Tx) (*Tx, error) {
	chatProvider, err := c.gateway.Provider(chain.ChainChat)
	if err != nil {
		return nil, err
	}
	currencyProvider, err := c.gateway.Provider(chain.ChainCurrency)
	if err != nil {
		return nil, err
	}

	type legResult struct {
		txID string
		err  error
	}
	chatCh := make(chan legResult, 1)
	currencyCh := make(chan legResult, 1)

	go func() {
		id, err := chatProvider.Submit(ctx, chatTx)
		chatCh <- legResult{id, err}
	}()
	go func() {
		id, err := currencyProvider.Submit(ctx, currencyTx)
		currencyCh <- legResult{id, err}
	}()

	chatRes := <-chatCh
	currencyRes := <-currencyCh

	bt := &Tx{ID: uuid.NewString()}

	switch {
	case chatRes.err != nil && currencyRes.err != nil:
		bt.Status = StatusBothSidesFailed
		bt.Reason = fmt.Sprintf("chat: %v; currency: %v", chatRes.err, currencyRes.err)
		return bt, fmt.Errorf("bridge: prepare failed both legs")
	case chatRes.err != nil:
		bt.Status = StatusOneSideFailed
		bt.Reason = fmt.Sprintf("chat leg rejected locally: %v", chatRes.err)
		return bt, fmt.Errorf("bridge: prepare aborted, chat leg failed")
	case currencyRes.err != nil:
		bt.Status = StatusOneSideFailed
		bt.Reason = fmt.Sprintf("currency leg rejected locally: %v", currencyRes.err)
		return bt, fmt.Errorf("bridge: prepare aborted, currency leg failed")
	}

	bt.ChatTxID = chatRes.txID
	bt.CurrencyTxID = currencyRes.txID
	bt.Status = StatusPrepared
	return bt, nil
}

// Finalize waits for both legs to reach finality. If both finalize,
// the bridge tx is AtomicSuccess. If one finalizes and the other fails
// or times out, a compensating transaction is submitted on the
// finalized side and the bridge tx is RolledBack (or
// CompensationFailed if the compensating submission itself fails).
func (c *Coordinator) Finalize(ctx context.Context, bt *Tx, compensateChat, compensateCurrency *chain.Tx) error {
	chatProvider, err := c.gateway.Provider(chain.ChainChat)
	if err != nil {
		return err
	}
	currencyProvider, err := c.gateway.Provider(chain.ChainCurrency)
	if err != nil {
		return err
	}

	finalizeCtx, cancel := context.WithTimeout(ctx, DefaultFinalizeDeadline)
	defer cancel()

	type legResult struct {
		receipt chain.Receipt
		err     error
	}
	chatCh := make(chan legResult, 1)
	currencyCh := make(chan legResult, 1)

	go func() {
		r, err := chatProvider.AwaitConfirmation(finalizeCtx, bt.ChatTxID, chain.DefaultConfirmations, DefaultFinalizeDeadline)
		chatCh <- legResult{r, err}
	}()
	go func() {
		r, err := currencyProvider.AwaitConfirmation(finalizeCtx, bt.CurrencyTxID, chain.DefaultConfirmations, DefaultFinalizeDeadline)
		currencyCh <- legResult{r, err}
	}()

	chatRes := <-chatCh
	currencyRes := <-currencyCh

	switch {
	case chatRes.err == nil && currencyRes.err == nil:
		bt.Status = StatusAtomicSuccess
		return nil

	case chatRes.err == nil && currencyRes.err != nil:
		// Chat leg finalized, currency leg did not: roll back the chat leg.
		return c.compensate(ctx, bt, chatProvider, compensateChat, currencyRes.err)

	case chatRes.err != nil && currencyRes.err == nil:
		// Currency leg finalized, chat leg did not: roll back the currency leg.
		return c.compensate(ctx, bt, currencyProvider, compensateCurrency, chatRes.err)

	default:
		bt.Status = StatusAcceptedButNotFinalized
		bt.Reason = fmt.Sprintf("neither leg finalized: chat=%v currency=%v", chatRes.err, currencyRes.err)
		return fmt.Errorf("bridge: %s", bt.Status)
	}
}

func (c *Coordinator) compensate(ctx context.Context, bt *Tx, finalizedProvider chain.Provider, compensation *chain.Tx, otherErr error) error {
	if compensation == nil {
		bt.Status = StatusAcceptedButNotFinalized
		bt.Reason = fmt.Sprintf("one side finalized but no compensating tx supplied: %v", otherErr)
		return fmt.Errorf("bridge: %s", bt.Status)
	}

	_, err := finalizedProvider.Submit(ctx, *compensation)
	if err != nil {
		bt.Status = StatusCompensationFailed
		bt.Reason = fmt.Sprintf("compensation submission failed: %v (original failure: %v)", err, otherErr)
		return fmt.Errorf("bridge: %s: requires manual reconciliation", bt.Status)
	}

	bt.Status = StatusRolledBack
	bt.Reason = fmt.Sprintf("compensated for: %v", otherErr)
	return nil
}
