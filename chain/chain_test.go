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
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCanonicalJSONIsDeterministic(t *testing.T) {
	tx := Tx{Kind: TxSendDirectMessage, Fields: []Field{
		{Name: "sender", Value: "alice"},
		{Name: "recipient", Value: "bob"},
	}}
	b1, err := CanonicalJSON(tx)
	require.NoError(t, err)
	b2, err := CanonicalJSON(tx)
	require.NoError(t, err)
	require.Equal(t, b1, b2)

	reordered := Tx{Kind: TxSendDirectMessage, Fields: []Field{
		{Name: "recipient", Value: "bob"},
		{Name: "sender", Value: "alice"},
	}}
	b3, err := CanonicalJSON(reordered)
	require.NoError(t, err)
	require.NotEqual(t, b1, b3, "field order is part of the canonical encoding")
}

func TestTxIDStableForSameTx(t *testing.T) {
	tx := Tx{Kind: TxRegisterUser, Fields: []Field{{Name: "user_id", Value: "A"}}}
	id1, err := TxID(tx)
	require.NoError(t, err)
	id2, err := TxID(tx)
	require.NoError(t, err)
	require.Equal(t, id1, id2)
}

type fakeProvider struct {
	role   Role
	status TxStatus
}

func (f *fakeProvider) Role() Role { return f.role }
func (f *fakeProvider) Submit(ctx context.Context, tx Tx) (string, error) {
	return TxID(tx)
}
func (f *fakeProvider) Status(ctx context.Context, txID string) (TxStatus, error) {
	return f.status, nil
}
func (f *fakeProvider) AwaitConfirmation(ctx context.Context, txID string, kBlocks uint64, deadline time.Duration) (Receipt, error) {
	if f.status.Kind == StatusConfirmed && f.status.Confirmations >= kBlocks {
		return Receipt{TxID: txID, BlockHeight: f.status.BlockHeight, Confirmations: f.status.Confirmations}, nil
	}
	return Receipt{}, ErrTimeout
}
func (f *fakeProvider) QueryByKey(ctx context.Context, key string) ([]Tx, error) { return nil, nil }
func (f *fakeProvider) LatestFinalizedHeight(ctx context.Context) (uint64, error) {
	return f.status.BlockHeight, nil
}

func TestGatewayRegisterAndLookup(t *testing.T) {
	g := NewGateway()
	chat := &fakeProvider{role: ChainChat}
	require.NoError(t, g.Register(chat))

	err := g.Register(chat)
	require.ErrorIs(t, err, ErrRoleExists)

	got, err := g.Provider(ChainChat)
	require.NoError(t, err)
	require.Equal(t, chat, got)

	_, err = g.Provider(ChainCurrency)
	require.ErrorIs(t, err, ErrRoleNotRegistered)

	require.ElementsMatch(t, []Role{ChainChat}, g.Roles())
}

func TestAwaitConfirmationReturnsReceiptOnceConfirmed(t *testing.T) {
	p := &fakeProvider{role: ChainChat, status: TxStatus{Kind: StatusConfirmed, BlockHeight: 100, Confirmations: 6}}
	receipt, err := p.AwaitConfirmation(context.Background(), "tx1", 6, time.Second)
	require.NoError(t, err)
	require.Equal(t, uint64(100), receipt.BlockHeight)
}
