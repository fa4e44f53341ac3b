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

// Package errs defines the tagged error kinds shared across dchat's
// subsystems, so callers can branch on failure category instead of
// string-matching error messages.
package errs

import (
	"errors"
	"fmt"
)

// Kind is a closed enum of failure categories.
type Kind string

const (
	HandshakeRejected  Kind = "HandshakeRejected"
	AuthenticationFailed Kind = "AuthenticationFailed"
	ContentHashMismatch  Kind = "ContentHashMismatch"
	Unordered            Kind = "Unordered"
	PayloadTooLarge      Kind = "PayloadTooLarge"
	PeerUnreachable      Kind = "PeerUnreachable"
	DiversityDegraded    Kind = "DiversityDegraded"
	Backpressure         Kind = "Backpressure"
	ChainSubmitFailed    Kind = "ChainSubmitFailed"
	BridgeRolledBack     Kind = "BridgeRolledBack"
	CompensationFailed   Kind = "CompensationFailed"
)

// Error is a tagged error: a Kind plus a human-readable message and
// optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a tagged error of the given kind.
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a tagged error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err is a tagged Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, if it is a tagged Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
