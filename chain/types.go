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

// Package chain abstracts the two chains dchat anchors state to: a chat
// chain carrying identity/messaging transactions and a currency chain
// carrying stake/transfer/bridge transactions. A Gateway multiplexes
// Provider implementations the way the teacher's crypto/chain package
// multiplexes ChainProvider by ChainType, generalized here to a fixed
// logical Role instead of an open set of blockchain families.
package chain

import (
	"context"
	"errors"
	"time"
)

// Role identifies which side of the bridge a provider serves.
type Role string

const (
	ChainChat     Role = "chat"
	ChainCurrency Role = "currency"
)

// TxKind enumerates the canonical transaction bodies spec.md §3 defines.
type TxKind string

const (
	TxRegisterUser      TxKind = "RegisterUser"
	TxSendDirectMessage TxKind = "SendDirectMessage"
	TxCreateChannel     TxKind = "CreateChannel"
	TxPostToChannel     TxKind = "PostToChannel"
	TxSubmitDeliveryProof TxKind = "SubmitDeliveryProof"
	TxGovernanceVote    TxKind = "GovernanceVote"
	TxStakeOp           TxKind = "StakeOp"
	TxTransfer          TxKind = "Transfer"
	TxBridgeInitiate    TxKind = "BridgeInitiate"
	TxBridgeFinalize    TxKind = "BridgeFinalize"
)

// Tx is a canonically-serializable transaction body; Fields holds an
// ordered list of (name, value) pairs so CanonicalJSON can produce the
// deterministic UTF-8 encoding spec.md §3 requires for tx_id hashing
// (ordered fields, no insignificant whitespace).
type Tx struct {
	Kind   TxKind
	Fields []Field
}

// Field is one ordered key/value pair of a Tx body.
type Field struct {
	Name  string
	Value string
}

// TxStatusKind is the status lattice a submitted transaction moves
// through; status(tx_id) never regresses once Confirmed or Failed.
type TxStatusKind int

const (
	StatusPending TxStatusKind = iota
	StatusConfirmed
	StatusFailed
)

// TxStatus is the result of a status(tx_id) poll.
type TxStatus struct {
	Kind          TxStatusKind
	BlockHeight   uint64
	Confirmations uint64
	Reason        string
}

// Receipt is what await_confirmation returns on success.
type Receipt struct {
	TxID        string
	BlockHeight uint64
	Confirmations uint64
}

// DefaultConfirmations is spec.md §3's K confirmations before a block
// event is considered finalized.
const DefaultConfirmations = 6

// DefaultAwaitDeadline is spec.md §4.6's default await_confirmation
// deadline.
const DefaultAwaitDeadline = 5 * time.Minute

var (
	// ErrTimeout is returned by AwaitConfirmation when the deadline
	// elapses before k_blocks confirmations are observed.
	ErrTimeout = errors.New("chain: await_confirmation timed out")
	// ErrTxFailed is returned when the chain itself reports the
	// transaction failed (not merely slow).
	ErrTxFailed = errors.New("chain: transaction failed")
	// ErrRoleNotRegistered is returned by Gateway.Provider for an
	// unregistered Role.
	ErrRoleNotRegistered = errors.New("chain: no provider registered for role")
	// ErrRoleExists is returned by Gateway.Register for a duplicate Role.
	ErrRoleExists = errors.New("chain: provider already registered for role")
)

// Provider is one chain's submission/query surface; concrete chat-chain
// and currency-chain providers implement this (chain/ethereum,
// chain/solana), generalizing the teacher's ChainProvider interface
// from per-blockchain address/signature operations to the transaction
// lifecycle spec.md §4.6 specifies.
type Provider interface {
	Role() Role

	// Submit returns immediately after local acceptance; it does not
	// block on confirmation.
	Submit(ctx context.Context, tx Tx) (txID string, err error)

	// Status polls the current lifecycle state of a submitted tx.
	Status(ctx context.Context, txID string) (TxStatus, error)

	// AwaitConfirmation blocks (cooperatively, honoring ctx) until the
	// transaction reaches kBlocks confirmations, fails, or deadline
	// elapses.
	AwaitConfirmation(ctx context.Context, txID string, kBlocks uint64, deadline time.Duration) (Receipt, error)

	// QueryByKey fetches transactions an ordering key is attached to
	// (e.g. all SendDirectMessage txs for a sender's chain_sequence),
	// used by the messaging engine to reconstruct chain order.
	QueryByKey(ctx context.Context, key string) ([]Tx, error)

	// LatestFinalizedHeight reports the highest block height with
	// DefaultConfirmations confirmations, used by delivery proof
	// verification (proof.block_height <= LatestFinalizedHeight()).
	LatestFinalizedHeight(ctx context.Context) (uint64, error)
}
