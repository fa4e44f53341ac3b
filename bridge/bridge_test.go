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
	"crypto/ed25519"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chikuno/dchat/chain"
)

type stubProvider struct {
	role        chain.Role
	submitErr   error
	confirmErr  error
	confirmations uint64
	submitted   []chain.Tx
}

func (s *stubProvider) Role() chain.Role { return s.role }
func (s *stubProvider) Submit(ctx context.Context, tx chain.Tx) (string, error) {
	if s.submitErr != nil {
		return "", s.submitErr
	}
	s.submitted = append(s.submitted, tx)
	return chain.TxID(tx)
}
func (s *stubProvider) Status(ctx context.Context, txID string) (chain.TxStatus, error) {
	if s.confirmErr != nil {
		return chain.TxStatus{Kind: chain.StatusFailed}, nil
	}
	return chain.TxStatus{Kind: chain.StatusConfirmed, Confirmations: s.confirmations}, nil
}
func (s *stubProvider) AwaitConfirmation(ctx context.Context, txID string, kBlocks uint64, deadline time.Duration) (chain.Receipt, error) {
	if s.confirmErr != nil {
		return chain.Receipt{}, s.confirmErr
	}
	return chain.Receipt{TxID: txID, Confirmations: s.confirmations}, nil
}
func (s *stubProvider) QueryByKey(ctx context.Context, key string) ([]chain.Tx, error) { return nil, nil }
func (s *stubProvider) LatestFinalizedHeight(ctx context.Context) (uint64, error)      { return 0, nil }

func newGateway(chat, currency *stubProvider) *chain.Gateway {
	g := chain.NewGateway()
	_ = g.Register(chat)
	_ = g.Register(currency)
	return g
}

func TestPrepareSucceedsWhenBothLegsAccepted(t *testing.T) {
	chat := &stubProvider{role: chain.ChainChat}
	currency := &stubProvider{role: chain.ChainCurrency}
	coord := NewCoordinator(newGateway(chat, currency), nil)

	bt, err := coord.Prepare(context.Background(),
		chain.Tx{Kind: chain.TxRegisterUser, Fields: []chain.Field{{Name: "user_id", Value: "A"}}},
		chain.Tx{Kind: chain.TxStakeOp, Fields: []chain.Field{{Name: "user_id", Value: "A"}, {Name: "amount", Value: "100"}}},
	)
	require.NoError(t, err)
	require.Equal(t, StatusPrepared, bt.Status)
	require.NotEmpty(t, bt.ChatTxID)
	require.NotEmpty(t, bt.CurrencyTxID)
}

func TestPrepareAbortsWhenOneLegRejected(t *testing.T) {
	chat := &stubProvider{role: chain.ChainChat, submitErr: fmt.Errorf("rpc down")}
	currency := &stubProvider{role: chain.ChainCurrency}
	coord := NewCoordinator(newGateway(chat, currency), nil)

	bt, err := coord.Prepare(context.Background(), chain.Tx{Kind: chain.TxRegisterUser}, chain.Tx{Kind: chain.TxStakeOp})
	require.Error(t, err)
	require.Equal(t, StatusOneSideFailed, bt.Status)
}

func TestFinalizeAtomicSuccessWhenBothLegsFinalize(t *testing.T) {
	chat := &stubProvider{role: chain.ChainChat, confirmations: 6}
	currency := &stubProvider{role: chain.ChainCurrency, confirmations: 6}
	coord := NewCoordinator(newGateway(chat, currency), nil)

	bt := &Tx{ID: "b1", ChatTxID: "c1", CurrencyTxID: "s1"}
	err := coord.Finalize(context.Background(), bt, nil, nil)
	require.NoError(t, err)
	require.Equal(t, StatusAtomicSuccess, bt.Status)
}

func TestFinalizeRollsBackWhenCurrencyLegFails(t *testing.T) {
	chat := &stubProvider{role: chain.ChainChat, confirmations: 6}
	currency := &stubProvider{role: chain.ChainCurrency, confirmErr: chain.ErrTimeout}
	coord := NewCoordinator(newGateway(chat, currency), nil)

	bt := &Tx{ID: "b2", ChatTxID: "c2", CurrencyTxID: "s2"}
	compensateChat := chain.Tx{Kind: chain.TxRegisterUser, Fields: []chain.Field{{Name: "op", Value: "unregister"}}}
	err := coord.Finalize(context.Background(), bt, &compensateChat, nil)
	require.NoError(t, err)
	require.Equal(t, StatusRolledBack, bt.Status)
	require.Len(t, chat.submitted, 1)
}

func TestFinalizeCompensationFailedRequiresReconciliation(t *testing.T) {
	chat := &stubProvider{role: chain.ChainChat, confirmations: 6, submitErr: fmt.Errorf("cannot submit compensation")}
	currency := &stubProvider{role: chain.ChainCurrency, confirmErr: chain.ErrTimeout}
	coord := NewCoordinator(newGateway(chat, currency), nil)

	bt := &Tx{ID: "b3", ChatTxID: "c3", CurrencyTxID: "s3"}
	compensateChat := chain.Tx{Kind: chain.TxRegisterUser}
	err := coord.Finalize(context.Background(), bt, &compensateChat, nil)
	require.Error(t, err)
	require.Equal(t, StatusCompensationFailed, bt.Status)
}

func TestFinalizeAcceptedButNotFinalizedWhenNeitherLegResolves(t *testing.T) {
	chat := &stubProvider{role: chain.ChainChat, confirmErr: chain.ErrTimeout}
	currency := &stubProvider{role: chain.ChainCurrency, confirmErr: chain.ErrTimeout}
	coord := NewCoordinator(newGateway(chat, currency), nil)

	bt := &Tx{ID: "b4", ChatTxID: "c4", CurrencyTxID: "s4"}
	err := coord.Finalize(context.Background(), bt, nil, nil)
	require.Error(t, err)
	require.Equal(t, StatusAcceptedButNotFinalized, bt.Status)
}

func TestValidatorSetQuorumAndVerification(t *testing.T) {
	pubs := make([]ed25519.PublicKey, 4)
	privs := make([]ed25519.PrivateKey, 4)
	for i := range pubs {
		pub, priv, err := ed25519.GenerateKey(nil)
		require.NoError(t, err)
		pubs[i] = pub
		privs[i] = priv
	}
	vs := NewValidatorSet(pubs)
	require.Equal(t, 3, vs.Quorum()) // floor(4*2/3)+1 = 2+1 = 3

	msg := []byte("finalized receipt bytes")
	var sigs []Signature
	for i := 0; i < 2; i++ {
		sigs = append(sigs, Signature{Validator: pubs[i], Sig: ed25519.Sign(privs[i], msg)})
	}
	require.Error(t, vs.VerifyQuorum(msg, sigs), "two of four signers is below quorum")

	sigs = append(sigs, Signature{Validator: pubs[2], Sig: ed25519.Sign(privs[2], msg)})
	require.NoError(t, vs.VerifyQuorum(msg, sigs))
}
