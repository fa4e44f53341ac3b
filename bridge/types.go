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

// Package bridge drives the two-phase atomic protocol across dchat's
// chat chain and currency chain, generalizing the teacher's
// did.Manager dual-registration flow (Configure/RegisterAgent run
// against an ethereum and a solana client in the same call) into a
// prepare/finalize/compensate lifecycle with an explicit failure
// taxonomy, per spec.md §4.6.
package bridge

import "time"

// Status is a bridge transaction's lifecycle outcome.
type Status int

const (
	StatusPrepared Status = iota
	StatusAtomicSuccess
	StatusRolledBack
	// Failure taxonomy: surfaced to observability, never silently
	// consumed.
	StatusAcceptedButNotFinalized
	StatusOneSideFailed
	StatusBothSidesFailed
	StatusCompensationFailed
)

func (s Status) String() string {
	switch s {
	case StatusPrepared:
		return "Prepared"
	case StatusAtomicSuccess:
		return "AtomicSuccess"
	case StatusRolledBack:
		return "RolledBack"
	case StatusAcceptedButNotFinalized:
		return "AcceptedButNotFinalized"
	case StatusOneSideFailed:
		return "OneSideFailed"
	case StatusBothSidesFailed:
		return "BothSidesFailed"
	case StatusCompensationFailed:
		return "CompensationFailed"
	default:
		return "Unknown"
	}
}

// DefaultFinalizeDeadline is spec.md §4.6's default wait before one
// finalized leg triggers compensation on the other.
const DefaultFinalizeDeadline = 10 * time.Minute

// Tx tracks one bridge operation's two legs.
type Tx struct {
	ID           string
	ChatTxID     string
	CurrencyTxID string
	Status       Status
	Reason       string
}
